package stage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Options — параметры одного run.
type Options[R any] struct {
	// Initial — начальный результат, который получает первый шаг.
	Initial R

	// Hooks — наблюдатели жизненного цикла (опционально).
	Hooks Hooks[R]

	// Token — токен отмены (опционально). Runner вызывает Token.Release
	// по завершении run.
	Token Token

	// RunID — идентификатор run. Если uuid.Nil, генерируется новый.
	RunID uuid.UUID
}

// Backoff — стратегия задержки между попытками.
type Backoff string

const (
	// BackoffFixed — одинаковая задержка перед каждой попыткой.
	BackoffFixed Backoff = "fixed"

	// BackoffExponential — задержка удваивается с каждой попыткой, но не больше MaxDelay.
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy — политика повторов для одного шага.
//
// Передаётся явно через опции run; глобального значения по умолчанию нет.
type RetryPolicy struct {
	// MaxRetries — количество дополнительных попыток (0 — без повторов).
	MaxRetries int

	// Delay — задержка перед повторной попыткой.
	Delay time.Duration

	// Backoff — стратегия задержки (по умолчанию fixed).
	Backoff Backoff

	// MaxDelay — верхняя граница задержки для exponential (по умолчанию 30s).
	MaxDelay time.Duration
}

// DefaultRetryPolicy возвращает политику: 3 повтора с фиксированной задержкой 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Delay:      time.Second,
		Backoff:    BackoffFixed,
	}
}

// Validate проверяет политику.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidOptions, p.MaxRetries)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: retry delay must be >= 0, got %s", ErrInvalidOptions, p.Delay)
	}
	switch p.Backoff {
	case "", BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown backoff %q", ErrInvalidOptions, p.Backoff)
	}
	return nil
}

// delayFor вычисляет задержку перед попыткой attempt+1,
// где attempt — номер неудачной попытки (начиная с 1).
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if p.Backoff != BackoffExponential {
		return p.Delay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	// delay = Delay * 2^(attempt-1)
	delay := p.Delay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

// RecoveryOptions — параметры RunWithRecovery.
type RecoveryOptions[R any] struct {
	Options[R]

	// Retry — политика повторов каждого шага.
	Retry RetryPolicy
}

// BatchOptions — параметры RunInBatches.
type BatchOptions[R any] struct {
	Options[R]

	// BatchSize — максимальное количество шагов в батче (> 0).
	BatchSize int

	// InterBatchDelay — пауза между батчами.
	InterBatchDelay time.Duration

	// Retry — политика повторов шагов внутри батчей (по умолчанию без повторов).
	Retry RetryPolicy
}

// validate проверяет параметры батчей.
func (o BatchOptions[R]) validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be > 0, got %d", ErrInvalidOptions, o.BatchSize)
	}
	if o.InterBatchDelay < 0 {
		return fmt.Errorf("%w: inter-batch delay must be >= 0, got %s", ErrInvalidOptions, o.InterBatchDelay)
	}
	return o.Retry.Validate()
}
