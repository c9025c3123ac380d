// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений из очередей
//   - sink.go       — SnapshotSink: stage.Sink, публикующий снимки run
//   - cancel.go     — CancelHandler: удалённая отмена run через stage.TokenRegistry
//
// Типы сообщений:
//   - run.snapshot — снимок StreamState (шаг, ошибка, завершение)
//   - run.cancel   — команда отмены run по RunID
//
// Exchanges:
//   - stagerun.snapshots (topic)  — snapshot.step / snapshot.failed / snapshot.completed
//   - stagerun.control   (fanout) — команды, у каждого процесса своя очередь
package mq
