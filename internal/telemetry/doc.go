// Package telemetry обеспечивает наблюдаемость движка.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики run, шагов, retry и пауз между батчами
//
// Движок принимает *slog.Logger и *Metrics через stage.Config;
// cmd/stagerun экспортирует метрики на /metrics.
package telemetry
