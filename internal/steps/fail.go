package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/stagerun/internal/stage"
)

const (
	// StepTypeFail — шаг, который падает заданное число раз.
	StepTypeFail = "fail"

	configTimes   = "times"
	configMessage = "message"
)

// FailStep — шаг для проверки retry.
//
// Первые times вызовов для одного Descriptor.ID внутри одного run возвращают
// ErrInjectedFailure, дальше шаг передаёт результат без изменений.
// times < 0 — падать всегда. Счётчик ведётся по ID run из контекста
// (stage.RunIDFromContext), поэтому повторный run на том же реестре
// снова начинает с падений.
//
// Конфигурация:
//
//	{"times": 2, "message": "upstream unavailable"}
type FailStep struct {
	mu    sync.Mutex
	calls map[string]int // runID/stepID → вызовы в run
	total map[string]int // stepID → вызовы за всё время
}

// NewFailStep создаёт новый FailStep.
func NewFailStep() *FailStep {
	return &FailStep{
		calls: make(map[string]int),
		total: make(map[string]int),
	}
}

// Type возвращает тип шага.
func (s *FailStep) Type() string {
	return StepTypeFail
}

// Execute падает первые times вызовов.
func (s *FailStep) Execute(ctx context.Context, prev float64, d Descriptor) (float64, error) {
	times := GetConfigInt(d.Config, configTimes)

	key := d.ID
	if runID, ok := stage.RunIDFromContext(ctx); ok {
		key = runID.String() + "/" + d.ID
	}

	s.mu.Lock()
	s.calls[key]++
	s.total[d.ID]++
	call := s.calls[key]
	s.mu.Unlock()

	if times < 0 || call <= times {
		message := GetConfigString(d.Config, configMessage)
		if message == "" {
			message = fmt.Sprintf("attempt %d", call)
		}
		return prev, fmt.Errorf("%w: %s: %s", ErrInjectedFailure, d.ID, message)
	}
	return prev, nil
}

// Calls возвращает количество вызовов для шага с данным ID во всех run.
func (s *FailStep) Calls(stepID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total[stepID]
}

// Reset сбрасывает счётчики вызовов.
func (s *FailStep) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
	s.total = make(map[string]int)
}
