package stage

import (
	"errors"
	"fmt"
)

// Ошибки выполнения run.
var (
	// ErrCancelled — run прерван токеном отмены на границе шага.
	ErrCancelled = errors.New("run cancelled")

	// ErrStepFailed — вычисление шага вернуло ошибку (после исчерпания retry).
	ErrStepFailed = errors.New("step computation failed")

	// ErrInvalidOptions — некорректные параметры запуска.
	ErrInvalidOptions = errors.New("invalid run options")
)

// ErrorKind — категория ошибки run.
type ErrorKind string

const (
	// KindCancelled — отмена через токен или context.
	KindCancelled ErrorKind = "cancelled"

	// KindStepFailed — ошибка вычисления шага.
	KindStepFailed ErrorKind = "step_failed"
)

// RunError — ошибка run с контекстом шага.
//
// Вызывающий код различает категории через Kind или errors.Is
// с ErrCancelled / ErrStepFailed. Исходная ошибка шага доступна через errors.Unwrap.
type RunError struct {
	Kind      ErrorKind // категория ошибки
	Message   string    // описание ошибки
	StepIndex int       // индекс шага, на котором run остановился
	Reason    string    // причина отмены (только для KindCancelled)
	Err       error     // исходная ошибка шага (только для KindStepFailed)
}

// Error реализует интерфейс error.
func (e *RunError) Error() string {
	return fmt.Sprintf("step %d: %s", e.StepIndex, e.Message)
}

// Unwrap возвращает исходную ошибку шага.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Is сопоставляет RunError с сентинелами по категории.
func (e *RunError) Is(target error) bool {
	switch target {
	case ErrCancelled:
		return e.Kind == KindCancelled
	case ErrStepFailed:
		return e.Kind == KindStepFailed
	default:
		return false
	}
}

// newCancelError создаёт ошибку отмены.
func newCancelError(stepIndex int, reason string) *RunError {
	return &RunError{
		Kind:      KindCancelled,
		Message:   "cancelled: " + reason,
		StepIndex: stepIndex,
		Reason:    reason,
	}
}

// newStepError создаёт ошибку вычисления шага.
func newStepError(stepIndex int, err error) *RunError {
	return &RunError{
		Kind:      KindStepFailed,
		Message:   err.Error(),
		StepIndex: stepIndex,
		Err:       err,
	}
}

// AsRunError извлекает RunError из цепочки ошибок.
func AsRunError(err error) (*RunError, bool) {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr, true
	}
	return nil, false
}

// IsCancelled проверяет, что run завершился отменой.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
