package stage

import (
	"time"

	"github.com/google/uuid"
)

// StreamState — снимок состояния run, отправляемый в Sink после каждого перехода.
//
// На один run приходится:
//   - по одному состоянию на каждый успешный шаг (IsComplete=false, Err=nil)
//   - ровно одно терминальное состояние: завершение (IsComplete=true)
//     или ошибка шага (Err != nil)
//
// При отмене терминальное состояние не отправляется: Sink не вызывается
// для шага, на границе которого обнаружена отмена.
type StreamState[R any] struct {
	// RunID — идентификатор run, к которому относится снимок.
	RunID uuid.UUID `json:"run_id"`

	// StepIndex — индекс шага в плане (начиная с 0).
	// Для состояния завершения равен количеству выполненных шагов.
	StepIndex int `json:"step_index"`

	// Result — накопленный результат.
	// Для состояния ошибки — результат последнего успешного шага.
	Result R `json:"result"`

	// Err — ошибка вычисления шага. Заполняется только в терминальном
	// состоянии ошибки.
	Err error `json:"-"`

	// IsComplete — true только у последнего состояния успешного run.
	IsComplete bool `json:"is_complete"`

	// Status — статус run на момент снимка.
	Status Status `json:"status"`

	// EmittedAt — время формирования снимка.
	EmittedAt time.Time `json:"emitted_at"`
}

// IsTerminal возвращает true, если после этого состояния ничего не последует.
func (s StreamState[R]) IsTerminal() bool {
	return s.IsComplete || s.Err != nil
}

// ErrorMessage возвращает текст ошибки или пустую строку.
func (s StreamState[R]) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
