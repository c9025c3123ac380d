package stage

import (
	"log/slog"
	"sync"
)

// Sink — потребитель снимков StreamState.
//
// Emit вызывается синхронно, по одному разу на переход, в порядке
// выполнения. Sink не должен паниковать: паника прерывает run и
// считается дефектом sink, а не ошибкой шага.
type Sink[R any] interface {
	Emit(state StreamState[R])
}

// SinkFunc адаптирует функцию к интерфейсу Sink.
type SinkFunc[R any] func(state StreamState[R])

// Emit вызывает f.
func (f SinkFunc[R]) Emit(state StreamState[R]) {
	f(state)
}

// Discard возвращает Sink, который ничего не делает.
func Discard[R any]() Sink[R] {
	return SinkFunc[R](func(StreamState[R]) {})
}

// LogSink пишет каждый снимок в slog.
type LogSink[R any] struct {
	logger *slog.Logger
}

// NewLogSink создаёт LogSink. Если logger == nil, используется slog.Default().
func NewLogSink[R any](logger *slog.Logger) *LogSink[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink[R]{logger: logger}
}

// Emit реализует Sink.
func (s *LogSink[R]) Emit(state StreamState[R]) {
	attrs := []any{
		"run_id", state.RunID,
		"step_index", state.StepIndex,
		"status", state.Status,
		"result", state.Result,
	}

	switch {
	case state.Err != nil:
		s.logger.Warn("step failed", append(attrs, "error", state.Err)...)
	case state.IsComplete:
		s.logger.Info("run completed", attrs...)
	default:
		s.logger.Debug("step completed", attrs...)
	}
}

// Buffer — упорядоченная коллекция снимков, которой владеет вызывающий код.
//
// Несколько run могут писать в один Buffer; тогда записи перемежаются,
// но не теряются.
type Buffer[R any] struct {
	mu     sync.Mutex
	states []StreamState[R]
}

// NewBuffer создаёт пустой Buffer.
func NewBuffer[R any]() *Buffer[R] {
	return &Buffer[R]{}
}

// Append добавляет снимок в конец.
func (b *Buffer[R]) Append(state StreamState[R]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, state)
}

// States возвращает копию накопленных снимков.
func (b *Buffer[R]) States() []StreamState[R] {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]StreamState[R], len(b.states))
	copy(out, b.states)
	return out
}

// Len возвращает количество снимков.
func (b *Buffer[R]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states)
}

// Last возвращает последний снимок.
func (b *Buffer[R]) Last() (StreamState[R], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.states) == 0 {
		var zero StreamState[R]
		return zero, false
	}
	return b.states[len(b.states)-1], true
}

// BufferSink дописывает каждый снимок в Buffer.
type BufferSink[R any] struct {
	buf *Buffer[R]
}

// NewBufferSink создаёт BufferSink поверх buf.
func NewBufferSink[R any](buf *Buffer[R]) *BufferSink[R] {
	return &BufferSink[R]{buf: buf}
}

// Emit реализует Sink.
func (s *BufferSink[R]) Emit(state StreamState[R]) {
	s.buf.Append(state)
}

// HookSink направляет снимки в Hooks вместо логирования:
//   - состояние шага → OnStepEnd
//   - состояние ошибки → OnError
//   - состояние завершения → OnComplete
type HookSink[R any] struct {
	hooks Hooks[R]
}

// NewHookSink создаёт HookSink.
func NewHookSink[R any](hooks Hooks[R]) *HookSink[R] {
	return &HookSink[R]{hooks: hooks}
}

// Emit реализует Sink.
func (s *HookSink[R]) Emit(state StreamState[R]) {
	switch {
	case state.Err != nil:
		s.hooks.stepError(state.Err, state.StepIndex)
	case state.IsComplete:
		s.hooks.complete(state.Result)
	default:
		s.hooks.stepEnd(state.StepIndex, state.Result)
	}
}

// MultiSink рассылает снимок нескольким sink по порядку.
type MultiSink[R any] []Sink[R]

// Emit реализует Sink.
func (m MultiSink[R]) Emit(state StreamState[R]) {
	for _, s := range m {
		if s != nil {
			s.Emit(state)
		}
	}
}
