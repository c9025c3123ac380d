package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig — параметры логгера.
type LoggerConfig struct {
	Level  slog.Level
	Format string    // "json" или "text"
	Output io.Writer // по умолчанию os.Stdout
}

// ParseLevel переводит строку уровня в slog.Level.
// Возможные значения: DEBUG, INFO, WARN, ERROR (регистр не важен).
// По умолчанию: INFO
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigFromEnv читает LOG_LEVEL и LOG_FORMAT.
func ConfigFromEnv() LoggerConfig {
	return LoggerConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
		Output: os.Stdout,
	}
}

// NewLogger строит логгер по конфигурации.
//
// Формат вывода:
//   - "json" (по умолчанию) — для production
//   - "text" — человекочитаемый формат для разработки
func NewLogger(cfg LoggerConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

// SetupLogger инициализирует глобальный логгер из переменных окружения.
// out — куда писать логи (nil — stdout). CLI пишет логи в stderr,
// чтобы stdout оставался для данных.
func SetupLogger(out io.Writer) *slog.Logger {
	cfg := ConfigFromEnv()
	if out != nil {
		cfg.Output = out
	}

	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

// ctxKey — ключ логгера в контексте.
type ctxKey struct{}

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithStepIndex возвращает логгер с добавленным step_index.
func WithStepIndex(logger *slog.Logger, stepIndex int) *slog.Logger {
	return logger.With("step_index", stepIndex)
}

// WithPlan возвращает логгер с именем плана.
func WithPlan(logger *slog.Logger, plan string) *slog.Logger {
	return logger.With("plan", plan)
}
