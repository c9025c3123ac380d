package steps

import (
	"encoding/json"
	"fmt"
	"os"
)

// Plan — файл плана: упорядоченный список шагов.
//
//	{
//	    "name": "pricing",
//	    "steps": [
//	        {"id": "base", "type": "add", "config": {"value": 100}},
//	        {"id": "vat",  "type": "mul", "config": {"factor": 1.2}}
//	    ]
//	}
type Plan struct {
	Name  string       `json:"name"`
	Steps []Descriptor `json:"steps"`
}

// ParsePlan разбирает JSON плана.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return &plan, nil
}

// LoadPlan читает и разбирает файл плана.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// Validate выполняет полную валидацию плана.
//
// Проверяет:
// - Наличие шагов
// - Уникальность ID шагов
// - Что тип каждого шага зарегистрирован в registry
// - Конфигурацию шагов, реализующих Validator
func Validate(plan *Plan, registry *Registry) error {
	if plan == nil || len(plan.Steps) == 0 {
		return ErrEmptyPlan
	}

	stepIDs := make(map[string]bool, len(plan.Steps))

	for i := range plan.Steps {
		if err := ValidateStep(plan.Steps[i], i, stepIDs, registry); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(d Descriptor, index int, stepIDs map[string]bool, registry *Registry) error {
	if d.ID == "" {
		return NewValidationError("", index, "id",
			fmt.Sprintf("step %d has empty ID", index), ErrEmptyStepID)
	}

	if stepIDs[d.ID] {
		return NewValidationError(d.ID, index, "id",
			fmt.Sprintf("duplicate step ID: %s", d.ID), ErrDuplicateStepID)
	}
	stepIDs[d.ID] = true

	if d.Type == "" {
		return NewValidationError(d.ID, index, "type",
			"step has empty type", ErrUnknownStepType)
	}

	step, err := registry.Get(d.Type)
	if err != nil {
		return NewValidationError(d.ID, index, "type",
			fmt.Sprintf("unknown step type: %s", d.Type), ErrUnknownStepType)
	}

	if v, ok := step.(Validator); ok {
		if err := v.ValidateConfig(d.Config); err != nil {
			return NewValidationError(d.ID, index, "config", err.Error(), err)
		}
	}

	return nil
}
