package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// StepTypeDelay — тип шага задержки.
	StepTypeDelay = "delay"

	// Ключи конфигурации delay.
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"
)

// DelayStep — шаг задержки.
//
// Приостанавливает выполнение на указанное время и передаёт
// результат дальше без изменений. Прерывается отменой ctx.
//
// Конфигурация:
//
//	{
//	    "duration_sec": 10,    // задержка в секундах
//	    // или
//	    "duration_ms": 5000    // задержка в миллисекундах
//	}
type DelayStep struct {
	clock clockwork.Clock
}

// NewDelayStep создаёт новый DelayStep. Если clock == nil, используются реальные часы.
func NewDelayStep(clock clockwork.Clock) *DelayStep {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DelayStep{clock: clock}
}

// Type возвращает тип шага.
func (s *DelayStep) Type() string {
	return StepTypeDelay
}

// Execute выполняет задержку.
func (s *DelayStep) Execute(ctx context.Context, prev float64, d Descriptor) (float64, error) {
	duration, err := s.parseDuration(d.Config)
	if err != nil {
		return prev, err
	}

	timer := s.clock.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return prev, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.Chan():
		return prev, nil
	}
}

// ValidateConfig реализует Validator.
func (s *DelayStep) ValidateConfig(config map[string]any) error {
	_, err := s.parseDuration(config)
	return err
}

// parseDuration извлекает длительность из конфигурации.
func (s *DelayStep) parseDuration(config map[string]any) (time.Duration, error) {
	// Сначала проверяем duration_sec
	if sec := GetConfigInt(config, configDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if ms := GetConfigInt(config, configDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidConfig, StepTypeDelay)
}
