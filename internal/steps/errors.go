package steps

import "errors"

// Ошибки валидации плана.
var (
	// ErrEmptyPlan — план не содержит шагов.
	ErrEmptyPlan = errors.New("plan has no steps")

	// ErrInvalidPlan — файл плана не удалось разобрать.
	ErrInvalidPlan = errors.New("invalid plan file")

	// ErrEmptyStepID — шаг не имеет ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  string // ID шага, где произошла ошибка
	Index   int    // позиция шага в плане
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID string, index int, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Index:   index,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
