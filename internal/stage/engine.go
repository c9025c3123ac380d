package stage

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/stagerun/internal/telemetry"
)

// StepFunc — вычисление шага: из предыдущего результата и дескриптора шага
// получает следующий результат. Может вернуть ошибку.
type StepFunc[D, R any] func(ctx context.Context, prev R, step D) (R, error)

// Engine выполняет планы шагов типа D с результатом типа R.
//
// Engine не хранит состояния run: каждый вызов Run / RunWithRecovery /
// RunInBatches владеет своим результатом и последовательностью снимков,
// поэтому один Engine можно использовать из нескольких горутин.
type Engine[D, R any] struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	metrics *telemetry.Metrics
	tokens  *TokenRegistry
}

// Config — конфигурация Engine.
type Config struct {
	// Logger (если nil — логгер из context run, см. telemetry.FromContext).
	Logger *slog.Logger

	// Clock — часы для задержек retry и пауз между батчами.
	// Если nil — реальные часы.
	Clock clockwork.Clock

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// Tokens — реестр токенов для внешней отмены по RunID (опционально).
	// Если задан, каждый run регистрирует в нём свой токен на время выполнения.
	Tokens *TokenRegistry
}

// New создаёт новый Engine.
func New[D, R any](cfg Config) *Engine[D, R] {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine[D, R]{
		logger:  cfg.Logger,
		clock:   clock,
		metrics: cfg.Metrics,
		tokens:  cfg.Tokens,
	}
}

// Run выполняет план последовательно, начиная с opts.Initial.
//
// Возвращает итоговый результат или *RunError с Kind
// KindCancelled / KindStepFailed.
func (e *Engine[D, R]) Run(ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts Options[R]) (R, error) {
	r := e.newRun(ctx, "sequential", sink, opts)
	defer r.release()
	ctx = withRunID(ctx, r.id)

	r.start(len(plan))
	result, err := r.steps(ctx, plan, 0, opts.Initial, r.plainAttempt(fn))
	return r.finish(ctx, len(plan), result, err)
}

// RunWithRecovery выполняет план, повторяя упавший шаг согласно opts.Retry.
//
// Повторы локальны для шага: OnStepStart вызывается один раз, OnError —
// на каждую неудачную попытку. После исчерпания попыток ошибка
// обрабатывается как обычная ошибка шага.
func (e *Engine[D, R]) RunWithRecovery(ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts RecoveryOptions[R]) (R, error) {
	if err := opts.Retry.Validate(); err != nil {
		releaseToken(opts.Token)
		return opts.Initial, err
	}

	r := e.newRun(ctx, "recovery", sink, opts.Options)
	defer r.release()
	ctx = withRunID(ctx, r.id)

	r.start(len(plan))
	result, err := r.steps(ctx, plan, 0, opts.Initial, r.retryingAttempt(fn, opts.Retry))
	return r.finish(ctx, len(plan), result, err)
}

// RunInBatches выполняет план батчами по opts.BatchSize шагов
// с паузой opts.InterBatchDelay между ними.
func (e *Engine[D, R]) RunInBatches(ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts BatchOptions[R]) (R, error) {
	if err := opts.validate(); err != nil {
		releaseToken(opts.Token)
		return opts.Initial, err
	}

	r := e.newRun(ctx, "batched", sink, opts.Options)
	defer r.release()
	ctx = withRunID(ctx, r.id)

	r.start(len(plan))
	result, err := r.batches(ctx, plan, opts, r.retryingAttempt(fn, opts.Retry))
	return r.finish(ctx, len(plan), result, err)
}

// Run выполняет план движком с конфигурацией по умолчанию.
func Run[D, R any](ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts Options[R]) (R, error) {
	return New[D, R](Config{}).Run(ctx, plan, fn, sink, opts)
}

// RunWithRecovery выполняет план с повторами движком с конфигурацией по умолчанию.
func RunWithRecovery[D, R any](ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts RecoveryOptions[R]) (R, error) {
	return New[D, R](Config{}).RunWithRecovery(ctx, plan, fn, sink, opts)
}

// RunInBatches выполняет план батчами движком с конфигурацией по умолчанию.
func RunInBatches[D, R any](ctx context.Context, plan []D, fn StepFunc[D, R], sink Sink[R], opts BatchOptions[R]) (R, error) {
	return New[D, R](Config{}).RunInBatches(ctx, plan, fn, sink, opts)
}

// releaseToken освобождает токен run, который не был запущен
// из-за неверных опций.
func releaseToken(token Token) {
	if token != nil {
		token.Release()
	}
}

// wait ждёт d по часам clock. Возвращается раньше, если отменён ctx
// или закрыт cancelled. Возвращает false, если ожидание прервано.
func wait(ctx context.Context, clock clockwork.Clock, d time.Duration, cancelled <-chan struct{}) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	case <-cancelled:
		return false
	}
}
