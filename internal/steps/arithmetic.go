package steps

import (
	"context"
	"fmt"
)

const (
	// StepTypeAdd — прибавляет config.value к результату.
	StepTypeAdd = "add"

	// StepTypeMul — умножает результат на config.factor.
	StepTypeMul = "mul"

	configValue  = "value"
	configFactor = "factor"
)

// AddStep — шаг сложения.
//
// Конфигурация:
//
//	{"value": 2.5}
type AddStep struct{}

// NewAddStep создаёт новый AddStep.
func NewAddStep() *AddStep {
	return &AddStep{}
}

// Type возвращает тип шага.
func (s *AddStep) Type() string {
	return StepTypeAdd
}

// Execute возвращает prev + value.
func (s *AddStep) Execute(_ context.Context, prev float64, d Descriptor) (float64, error) {
	value, err := requireNumber(d.Config, StepTypeAdd, configValue)
	if err != nil {
		return prev, err
	}
	return prev + value, nil
}

// ValidateConfig реализует Validator.
func (s *AddStep) ValidateConfig(config map[string]any) error {
	_, err := requireNumber(config, StepTypeAdd, configValue)
	return err
}

// MulStep — шаг умножения.
//
// Конфигурация:
//
//	{"factor": 3}
type MulStep struct{}

// NewMulStep создаёт новый MulStep.
func NewMulStep() *MulStep {
	return &MulStep{}
}

// Type возвращает тип шага.
func (s *MulStep) Type() string {
	return StepTypeMul
}

// Execute возвращает prev * factor.
func (s *MulStep) Execute(_ context.Context, prev float64, d Descriptor) (float64, error) {
	factor, err := requireNumber(d.Config, StepTypeMul, configFactor)
	if err != nil {
		return prev, err
	}
	return prev * factor, nil
}

// ValidateConfig реализует Validator.
func (s *MulStep) ValidateConfig(config map[string]any) error {
	_, err := requireNumber(config, StepTypeMul, configFactor)
	return err
}

func requireNumber(config map[string]any, stepType, key string) (float64, error) {
	n, ok := GetConfigFloat(config, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s: numeric %s required", ErrInvalidConfig, stepType, key)
	}
	return n, nil
}
