package stage

import (
	"context"

	"github.com/jonboulle/clockwork"
)

// Retrying оборачивает fn так, что при ошибке вызов повторяется
// до policy.MaxRetries дополнительных раз с задержкой policy.Delay.
//
// Retrying различает только "вернул ошибку" и "вернул результат"
// и ничего не знает о смысле шага. onFailure (опционально) вызывается
// сразу после каждой неудачной попытки, за которой следует повтор,
// до ожидания policy.Delay. Исчерпавшая повторы попытка в onFailure
// не попадает и возвращается вызывающему как ошибка.
// Отмена ctx прерывает ожидание: повтора не будет, возвращается ошибка
// последней попытки (о ней onFailure уже вызван).
//
// При MaxRetries == 0 возвращает fn без изменений.
func Retrying[D, R any](fn StepFunc[D, R], policy RetryPolicy, clock clockwork.Clock, onFailure func(err error, attempt int)) StepFunc[D, R] {
	if policy.MaxRetries <= 0 {
		return fn
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return func(ctx context.Context, prev R, step D) (R, error) {
		for attempt := 1; ; attempt++ {
			next, err := fn(ctx, prev, step)
			if err == nil {
				return next, nil
			}

			if attempt > policy.MaxRetries {
				var zero R
				return zero, err
			}

			if onFailure != nil {
				onFailure(err, attempt)
			}

			if !wait(ctx, clock, policy.delayFor(attempt), nil) {
				var zero R
				return zero, err
			}
		}
	}
}

// reportedError — ошибка попытки, для которой OnError уже вызван
// (ожидание повтора прервано отменой ctx). Runner не вызывает хук повторно.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// retryingAttempt строит примитив шага с повторами.
// OnError вызывается сразу после каждой неудачной попытки, за которой
// запланирован повтор. Исчерпавшую повторы попытку runner обрабатывает
// как обычную ошибку шага.
func (r *run[D, R]) retryingAttempt(fn StepFunc[D, R], policy RetryPolicy) attemptFunc[D, R] {
	measured := r.measured(fn)

	return func(ctx context.Context, stepIndex int, prev R, step D) (R, error) {
		r.logger.Debug("step started", "step_index", stepIndex, "max_retries", policy.MaxRetries)

		notified := false
		tracked := func(ctx context.Context, prev R, step D) (R, error) {
			notified = false
			return measured(ctx, prev, step)
		}

		retrying := Retrying(tracked, policy, r.e.clock, func(err error, attempt int) {
			notified = true
			r.logger.Debug("retrying failed step attempt",
				"step_index", stepIndex,
				"attempt", attempt,
				"delay", policy.delayFor(attempt),
				"error", err,
			)
			r.e.metrics.RetryScheduled()
			r.hooks.stepError(err, stepIndex)
		})

		next, err := retrying(ctx, prev, step)
		if err != nil && notified {
			return next, &reportedError{err: err}
		}
		return next, err
	}
}
