package mq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/stagerun/internal/stage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakePublisher запоминает опубликованные снимки.
type fakePublisher struct {
	mu       sync.Mutex
	payloads []SnapshotPayload
	err      error
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, payload SnapshotPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestSnapshotPayload_RoutingKey(t *testing.T) {
	tests := []struct {
		name    string
		payload SnapshotPayload
		want    RoutingKey
	}{
		{"step", SnapshotPayload{StepIndex: 1}, RoutingKeySnapshotStep},
		{"failed", SnapshotPayload{Error: "boom"}, RoutingKeySnapshotFailed},
		{"completed", SnapshotPayload{IsComplete: true}, RoutingKeySnapshotCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.payload.RoutingKey(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSnapshotSink_PublishesEveryState(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewSnapshotSink[int](context.Background(), pub, quietLogger())

	increment := func(_ context.Context, prev int, _ string) (int, error) {
		return prev + 1, nil
	}

	engine := stage.New[string, int](stage.Config{Logger: quietLogger()})
	if _, err := engine.Run(context.Background(), []string{"a", "b"}, increment, sink, stage.Options[int]{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.payloads) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(pub.payloads))
	}

	keys := []RoutingKey{RoutingKeySnapshotStep, RoutingKeySnapshotStep, RoutingKeySnapshotCompleted}
	for i, p := range pub.payloads {
		if p.RoutingKey() != keys[i] {
			t.Errorf("snapshot %d: expected %s, got %s", i, keys[i], p.RoutingKey())
		}
		if p.RunID == uuid.Nil {
			t.Errorf("snapshot %d: run id must be set", i)
		}
	}

	last := pub.payloads[2]
	if last.Result != 2 || last.Status != "COMPLETED" {
		t.Errorf("unexpected completion snapshot: %+v", last)
	}
}

func TestSnapshotSink_ErrorState(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewSnapshotSink[int](context.Background(), pub, quietLogger())

	sink.Emit(stage.StreamState[int]{StepIndex: 3, Result: 9, Err: errors.New("boom"), Status: stage.StatusFailed})

	if len(pub.payloads) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(pub.payloads))
	}
	p := pub.payloads[0]
	if p.Error != "boom" || p.Status != "FAILED" || p.RoutingKey() != RoutingKeySnapshotFailed {
		t.Errorf("unexpected error snapshot: %+v", p)
	}
}

func TestSnapshotSink_PublishFailureDoesNotStopRun(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	sink := NewSnapshotSink[int](context.Background(), pub, quietLogger())

	increment := func(_ context.Context, prev int, _ string) (int, error) {
		return prev + 1, nil
	}

	result, err := stage.New[string, int](stage.Config{Logger: quietLogger()}).
		Run(context.Background(), []string{"a", "b", "c"}, increment, sink, stage.Options[int]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 3 {
		t.Errorf("expected 3, got %d", result)
	}
	if sink.Failures() != 4 {
		t.Errorf("expected 4 failed publications, got %d", sink.Failures())
	}
}

func cancelDelivery(t *testing.T, msgType MessageType, payload any) *Delivery {
	t.Helper()

	// Через JSON, как сообщение приходит из очереди
	body, err := json.Marshal(NewMessage(msgType, payload))
	if err != nil {
		t.Fatal(err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	return &Delivery{Message: msg}
}

func TestCancelHandler(t *testing.T) {
	registry := stage.NewTokenRegistry()
	runID := uuid.New()
	token := stage.NewManual()
	registry.Register(runID, token)

	handler := CancelHandler(registry, quietLogger())

	err := handler(context.Background(), cancelDelivery(t, MessageTypeCancel, CancelPayload{RunID: runID, Reason: "operator"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !token.IsCancelled() || token.Reason() != "operator" {
		t.Errorf("token must be cancelled by operator, got %v %q", token.IsCancelled(), token.Reason())
	}
}

func TestCancelHandler_DefaultReason(t *testing.T) {
	registry := stage.NewTokenRegistry()
	runID := uuid.New()
	token := stage.NewManual()
	registry.Register(runID, token)

	err := CancelHandler(registry, quietLogger())(context.Background(),
		cancelDelivery(t, MessageTypeCancel, CancelPayload{RunID: runID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Reason() != "remote cancel" {
		t.Errorf("expected default reason, got %q", token.Reason())
	}
}

func TestCancelHandler_UnknownRun(t *testing.T) {
	handler := CancelHandler(stage.NewTokenRegistry(), quietLogger())

	err := handler(context.Background(), cancelDelivery(t, MessageTypeCancel, CancelPayload{RunID: uuid.New()}))
	if err != nil {
		t.Errorf("unknown run must be acknowledged, got %v", err)
	}
}

func TestCancelHandler_Malformed(t *testing.T) {
	handler := CancelHandler(stage.NewTokenRegistry(), quietLogger())

	tests := []struct {
		name     string
		delivery *Delivery
	}{
		{"wrong type", cancelDelivery(t, MessageTypeSnapshot, CancelPayload{RunID: uuid.New()})},
		{"empty run id", cancelDelivery(t, MessageTypeCancel, CancelPayload{Reason: "x"})},
		{"bad run id", cancelDelivery(t, MessageTypeCancel, map[string]any{"run_id": "not-a-uuid"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(context.Background(), tt.delivery)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestConsumer_Verdicts(t *testing.T) {
	valid, _ := json.Marshal(NewMessage(MessageTypeCancel, CancelPayload{RunID: uuid.New()}))

	tests := []struct {
		name    string
		body    []byte
		handler error
		want    verdict
	}{
		{"ack", valid, nil, verdictAck},
		{"requeue on handler error", valid, errors.New("temporary"), verdictRequeue},
		{"reject malformed", valid, ErrMalformed, verdictReject},
		{"reject invalid json", []byte("{oops"), nil, verdictReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerErr := tt.handler
			c := NewConsumer(nil, quietLogger(), ConsumerConfig{
				Queue: "test",
				Handler: func(context.Context, *Delivery) error {
					return handlerErr
				},
			})

			if got := c.handle(context.Background(), amqp.Delivery{Body: tt.body}); got != tt.want {
				t.Errorf("expected verdict %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParsePayload(t *testing.T) {
	runID := uuid.New()
	d := cancelDelivery(t, MessageTypeCancel, CancelPayload{RunID: runID, Reason: "r"})

	payload, err := ParsePayload[CancelPayload](&d.Message)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.RunID != runID || payload.Reason != "r" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestNewMessage(t *testing.T) {
	a := NewMessage(MessageTypeSnapshot, nil)
	b := NewMessage(MessageTypeSnapshot, nil)

	if a.ID == "" || a.ID == b.ID {
		t.Error("messages must have unique ids")
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp must be set")
	}
}
