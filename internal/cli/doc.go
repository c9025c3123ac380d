// Package cli реализует команды stagerun.
//
// # Команды
//
//   - run PLAN_FILE      — выполнить план (последовательно, с retry или батчами)
//   - validate PLAN_FILE — проверить план без выполнения
//   - steps              — список типов шагов
//   - cancel RUN_ID      — отменить run в другом процессе через RabbitMQ
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей outputFn — замыкание для ленивого создания Output
// после парсинга PersistentFlags.
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: stagerun run plan.json --json | jq .result
//
// # Execute
//
// Execute — вся логика run без cobra: загрузка и валидация плана,
// выбор режима, токен отмены, sinks (буфер, лог, RabbitMQ), метрики.
package cli
