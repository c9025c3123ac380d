package stage

// Status — состояние выполнения run.
//
// Жизненный цикл:
//
//	IDLE → RUNNING → COMPLETED
//	               ↘ FAILED
//	               ↘ CANCELLED
type Status string

const (
	// StatusIdle — run создан, но ни один шаг ещё не запускался.
	StatusIdle Status = "IDLE"

	// StatusRunning — run в процессе выполнения шагов.
	StatusRunning Status = "RUNNING"

	// StatusCompleted — все шаги плана выполнены успешно.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed — вычисление шага завершилось ошибкой.
	StatusFailed Status = "FAILED"

	// StatusCancelled — run остановлен токеном отмены на границе шага.
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление Status.
func (s Status) String() string {
	return string(s)
}
