// Package stage — движок последовательного поэтапного выполнения.
//
// # Обзор
//
// Движок выполняет упорядоченный план шагов строго по одному:
// каждый шаг получает результат предыдущего. После каждого перехода
// в Sink отправляется снимок StreamState.
//
//	plan → Engine.Run → StreamState на каждый шаг → итог или *RunError
//
// Поверх одного и того же примитива шага построены:
//   - Run              — последовательный runner
//   - RunWithRecovery  — повтор упавшего шага по RetryPolicy
//   - RunInBatches     — выполнение батчами с паузой между ними
//
// # Отмена
//
// Отмена кооперативная и проверяется только на границах шагов
// (и между батчами): шаг, который уже начался, всегда доводится до конца.
// Токены:
//   - NewManual()      — отменяется вызовом Cancel(reason)
//   - NewTimeout(d)    — отменяет себя через d с причиной ReasonTimeout
//   - FromContext(ctx) — отменяется вместе с context
//
// Отмена ctx, переданного в Run, также наблюдается на следующей границе.
//
// Если отмена запрошена, пока шаг выполняется, шаг завершается и его исход
// (успех или ошибка) сообщается как обычно; отмена срабатывает на следующей
// границе. Поэтому упавший шаг всегда даёт KindStepFailed, даже если токен
// был отменён во время его выполнения.
//
// # Хуки и sink
//
// Hooks и Sink вызываются синхронно. Снимок, хуки и результат шага i
// полностью обработаны до начала шага i+1. Паника в хуке или sink
// не перехватывается.
//
// # Ошибки
//
//	var runErr *stage.RunError
//	if errors.As(err, &runErr) {
//	    switch runErr.Kind {
//	    case stage.KindCancelled:  // runErr.Reason, runErr.StepIndex
//	    case stage.KindStepFailed: // errors.Unwrap(runErr), runErr.StepIndex
//	    }
//	}
//
// # Время
//
// Задержки retry и паузы между батчами отсчитываются по clockwork.Clock
// из Config, таймаут TimeoutToken по часам из WithClock. В тестах
// используется clockwork.NewFakeClock().
package stage
