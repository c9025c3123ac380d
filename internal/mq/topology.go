package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeSnapshots — снимки StreamState (topic).
	ExchangeSnapshots Exchange = "stagerun.snapshots"

	// ExchangeControl — управляющие команды для run (fanout):
	// каждый процесс stagerun получает свою копию команды.
	ExchangeControl Exchange = "stagerun.control"
)

// Queues — имена очередей.
const (
	// QueueSnapshotsAudit — все снимки всех run, для внешних потребителей.
	QueueSnapshotsAudit Queue = "snapshots.audit"
)

// Routing keys.
const (
	RoutingKeySnapshotStep      RoutingKey = "snapshot.step"
	RoutingKeySnapshotFailed    RoutingKey = "snapshot.failed"
	RoutingKeySnapshotCompleted RoutingKey = "snapshot.completed"
	RoutingKeySnapshotAll       RoutingKey = "snapshot.#"
	RoutingKeyCancel            RoutingKey = "cancel"
)

// SetupTopology объявляет exchanges и общие очереди.
//
// Очередь команд у каждого процесса своя, её создаёт DeclareControlQueue.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		_, err := ch.QueueDeclare(
			string(QueueSnapshotsAudit), // name
			true,                        // durable
			false,                       // delete when unused
			false,                       // exclusive
			false,                       // no-wait
			nil,                         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueSnapshotsAudit, err)
		}

		err = ch.QueueBind(
			string(QueueSnapshotsAudit),
			string(RoutingKeySnapshotAll),
			string(ExchangeSnapshots),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueSnapshotsAudit, ExchangeSnapshots, err)
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeSnapshots, amqp.ExchangeTopic},
		{ExchangeControl, amqp.ExchangeFanout},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// DeclareControlQueue создаёт эксклюзивную очередь с именем от сервера,
// привязанную к ExchangeControl. Очередь удаляется вместе с соединением.
func DeclareControlQueue(ctx context.Context, conn *Connection) (Queue, error) {
	var name Queue

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			"",    // name (сгенерирует сервер)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare control queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, string(RoutingKeyCancel), string(ExchangeControl), false, nil); err != nil {
			return fmt.Errorf("bind control queue: %w", err)
		}

		name = Queue(q.Name)
		return nil
	})

	return name, err
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  stagerun RabbitMQ Topology:

    stagerun.snapshots (topic)
    └── snapshots.audit [routing: snapshot.#]
            snapshot.step | snapshot.failed | snapshot.completed

    stagerun.control (fanout)
    └── amq.gen-* (exclusive, per process)
            Consumer: CancelHandler
  `
}
