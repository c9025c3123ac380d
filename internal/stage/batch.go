package stage

import (
	"context"
	"time"
)

// batches делит план на последовательные батчи по opts.BatchSize шагов
// (последний может быть меньше) и выполняет их через тот же цикл шагов.
//
// Результат батча становится начальным результатом следующего.
// Между батчами (но не внутри) выдерживается пауза opts.InterBatchDelay:
// для N шагов ровно ceil(N/BatchSize)-1 пауз. Отмена проверяется
// на первом шаге каждого батча, как на любой границе шага.
func (r *run[D, R]) batches(ctx context.Context, plan []D, opts BatchOptions[R], attempt attemptFunc[D, R]) (R, error) {
	result := opts.Initial

	for start := 0; start < len(plan); start += opts.BatchSize {
		if start > 0 {
			r.pause(ctx, start, opts.InterBatchDelay)
		}

		end := min(start+opts.BatchSize, len(plan))
		r.logger.Debug("batch started",
			"batch", start/opts.BatchSize,
			"first_step", start,
			"last_step", end-1,
		)

		next, err := r.steps(ctx, plan[start:end], start, result, attempt)
		if err != nil {
			return next, err
		}
		result = next
	}

	return result, nil
}

// pause выдерживает паузу перед батчем, начинающимся с шага nextStep.
// Отмена прерывает паузу; саму ошибку отмены формирует checkpoint следующего шага.
func (r *run[D, R]) pause(ctx context.Context, nextStep int, d time.Duration) {
	r.e.metrics.BatchPaused()
	r.logger.Debug("pausing between batches", "next_step", nextStep, "delay", d)

	var cancelled <-chan struct{}
	if r.token != nil {
		cancelled = r.token.Done()
	}

	if !wait(ctx, r.e.clock, d, cancelled) {
		r.logger.Debug("batch pause interrupted", "next_step", nextStep)
	}
}
