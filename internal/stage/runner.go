package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/stagerun/internal/telemetry"
)

// attemptFunc — примитив выполнения одного шага с известным индексом.
// Retry и батчи строятся поверх него, не дублируя основной цикл.
type attemptFunc[D, R any] func(ctx context.Context, stepIndex int, prev R, step D) (R, error)

// run — состояние одного выполнения плана.
type run[D, R any] struct {
	e      *Engine[D, R]
	id     uuid.UUID
	sink   Sink[R]
	hooks  Hooks[R]
	token  Token
	logger *slog.Logger

	status    Status
	startedAt time.Time
}

func (e *Engine[D, R]) newRun(ctx context.Context, mode string, sink Sink[R], opts Options[R]) *run[D, R] {
	id := opts.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}

	if sink == nil {
		sink = Discard[R]()
	}

	token := opts.Token
	if token == nil && e.tokens != nil {
		// Без токена внешняя отмена через реестр была бы невозможна.
		token = NewManual()
	}
	if e.tokens != nil {
		e.tokens.Register(id, token)
	}

	logger := e.logger
	if logger == nil {
		logger = telemetry.FromContext(ctx)
	}

	return &run[D, R]{
		e:      e,
		id:     id,
		sink:   sink,
		hooks:  opts.Hooks,
		token:  token,
		logger: telemetry.WithRunID(logger, id.String()).With("mode", mode),
		status: StatusIdle,
	}
}

// release освобождает токен и убирает run из реестра.
func (r *run[D, R]) release() {
	if r.token != nil {
		r.token.Release()
	}
	if r.e.tokens != nil {
		r.e.tokens.Remove(r.id)
	}
}

func (r *run[D, R]) start(steps int) {
	r.status = StatusRunning
	r.startedAt = r.e.clock.Now()
	r.logger.Info("run started", "steps", steps)
}

// steps выполняет шаги plan по порядку. offset — индекс первого шага
// в исходном плане, чтобы индексы снимков совпадали с последовательным run.
func (r *run[D, R]) steps(ctx context.Context, plan []D, offset int, initial R, attempt attemptFunc[D, R]) (R, error) {
	result := initial

	for i := range plan {
		stepIndex := offset + i

		if err := r.checkpoint(ctx, stepIndex); err != nil {
			return result, err
		}

		next, err := r.step(ctx, stepIndex, result, plan[i], attempt)
		if err != nil {
			return result, err
		}
		result = next
	}

	return result, nil
}

// checkpoint проверяет отмену на границе шага.
func (r *run[D, R]) checkpoint(ctx context.Context, stepIndex int) error {
	if r.token != nil && r.token.IsCancelled() {
		return newCancelError(stepIndex, r.token.Reason())
	}
	if ctx.Err() != nil {
		return newCancelError(stepIndex, context.Cause(ctx).Error())
	}
	return nil
}

// step выполняет один шаг: хук старта, вычисление, снимок, хук конца или ошибки.
func (r *run[D, R]) step(ctx context.Context, stepIndex int, prev R, step D, attempt attemptFunc[D, R]) (R, error) {
	r.hooks.stepStart(stepIndex)

	next, err := attempt(ctx, stepIndex, prev, step)
	if err != nil {
		var reported *reportedError
		notified := errors.As(err, &reported)
		if notified {
			err = reported.err
		}

		r.status = StatusFailed
		r.emit(StreamState[R]{StepIndex: stepIndex, Result: prev, Err: err})
		if !notified {
			r.hooks.stepError(err, stepIndex)
		}
		return prev, newStepError(stepIndex, err)
	}

	r.emit(StreamState[R]{StepIndex: stepIndex, Result: next})
	r.hooks.stepEnd(stepIndex, next)
	return next, nil
}

// finish переводит run в терминальный статус.
// При ошибке возвращает результат последнего успешного шага.
//
// Завершение — граница шага steps: отмена, запрошенная во время
// последнего шага, не даёт run дойти до completion. Для пустого плана
// границ нет, и он завершается всегда.
func (r *run[D, R]) finish(ctx context.Context, steps int, result R, err error) (R, error) {
	if err == nil && steps > 0 {
		err = r.checkpoint(ctx, steps)
	}

	duration := r.e.clock.Since(r.startedAt)

	if err != nil {
		runErr, _ := AsRunError(err)
		if runErr != nil && runErr.Kind == KindCancelled {
			r.status = StatusCancelled
			r.logger.Warn("run cancelled",
				"step_index", runErr.StepIndex,
				"reason", runErr.Reason,
				"duration", duration,
			)
		} else {
			r.status = StatusFailed
			r.logger.Error("run failed", "error", err, "duration", duration)
		}
		r.e.metrics.RunFinished(r.status.String())
		return result, err
	}

	r.status = StatusCompleted
	r.emit(StreamState[R]{StepIndex: steps, Result: result, IsComplete: true})
	r.hooks.complete(result)

	r.logger.Info("run completed", "steps", steps, "duration", duration)
	r.e.metrics.RunFinished(r.status.String())
	return result, nil
}

func (r *run[D, R]) emit(state StreamState[R]) {
	state.RunID = r.id
	state.Status = r.status
	state.EmittedAt = r.e.clock.Now()
	r.sink.Emit(state)
}

// measured оборачивает fn учётом длительности и исхода попытки.
func (r *run[D, R]) measured(fn StepFunc[D, R]) StepFunc[D, R] {
	return func(ctx context.Context, prev R, step D) (R, error) {
		started := r.e.clock.Now()
		next, err := fn(ctx, prev, step)

		outcome := telemetry.OutcomeSucceeded
		if err != nil {
			outcome = telemetry.OutcomeFailed
		}
		r.e.metrics.StepAttempt(outcome, r.e.clock.Since(started))
		return next, err
	}
}

func (r *run[D, R]) plainAttempt(fn StepFunc[D, R]) attemptFunc[D, R] {
	measured := r.measured(fn)
	return func(ctx context.Context, stepIndex int, prev R, step D) (R, error) {
		r.logger.Debug("step started", "step_index", stepIndex)
		return measured(ctx, prev, step)
	}
}
