// Package steps содержит типы шагов и формат файла плана для stagerun.
//
// # Обзор
//
// Движок (пакет stage) не знает, что такое шаг: он получает план []D
// и функцию шага. Этот пакет даёт конкретный D — Descriptor — и
// результат float64:
//
//	registry := steps.DefaultRegistry(nil)
//	plan, err := steps.LoadPlan("plan.json")
//	if err := steps.Validate(plan, registry); err != nil {
//	    // неверный план
//	}
//
//	engine := stage.New[steps.Descriptor, float64](stage.Config{})
//	result, err := engine.Run(ctx, plan.Steps, registry.Dispatch(), sink, opts)
//
// # Типы шагов
//
//   - add   — prev + config.value
//   - mul   — prev * config.factor
//   - delay — пауза duration_sec / duration_ms, результат не меняется
//   - fail  — падает первые config.times вызовов (для проверки retry)
//   - http  — отправляет prev во внешний сервис и берёт value из ответа
//
// Шаг может реализовать Validator, тогда его конфигурация проверяется
// в Validate до запуска плана.
//
// # Обработка ошибок
//
//	var (
//	    ErrInvalidConfig    // неверная конфигурация
//	    ErrStepCancelled    // context cancelled
//	    ErrInjectedFailure  // ошибка шага fail
//	    ErrHTTPResponse     // ответ http шага без value
//	)
//
// Retry логика находится в движке, шаги просто возвращают ошибки.
package steps
