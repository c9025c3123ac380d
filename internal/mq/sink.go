package mq

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/stagerun/internal/stage"
)

// SnapshotPublisher — то, что нужно SnapshotSink от Publisher.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, payload SnapshotPayload) error
}

// defaultPublishTimeout — таймаут публикации одного снимка.
const defaultPublishTimeout = 5 * time.Second

// SnapshotSink публикует каждый StreamState в ExchangeSnapshots.
//
// Sink не может вернуть ошибку движку, поэтому ошибки публикации
// логируются и учитываются в Failures; run продолжается.
type SnapshotSink[R any] struct {
	ctx     context.Context
	pub     SnapshotPublisher
	logger  *slog.Logger
	timeout time.Duration

	failures atomic.Int64
}

// NewSnapshotSink создаёт SnapshotSink. ctx ограничивает время жизни публикаций.
func NewSnapshotSink[R any](ctx context.Context, pub SnapshotPublisher, logger *slog.Logger) *SnapshotSink[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotSink[R]{
		ctx:     ctx,
		pub:     pub,
		logger:  logger,
		timeout: defaultPublishTimeout,
	}
}

// Emit реализует stage.Sink.
func (s *SnapshotSink[R]) Emit(state stage.StreamState[R]) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.timeout)
	defer cancel()

	payload := SnapshotPayload{
		RunID:      state.RunID,
		StepIndex:  state.StepIndex,
		Result:     state.Result,
		IsComplete: state.IsComplete,
		Status:     state.Status.String(),
		Error:      state.ErrorMessage(),
		EmittedAt:  state.EmittedAt,
	}

	if err := s.pub.PublishSnapshot(ctx, payload); err != nil {
		s.failures.Add(1)
		s.logger.Warn("failed to publish snapshot",
			"run_id", state.RunID,
			"step_index", state.StepIndex,
			"error", err,
		)
	}
}

// Failures возвращает количество неудачных публикаций.
func (s *SnapshotSink[R]) Failures() int {
	return int(s.failures.Load())
}
