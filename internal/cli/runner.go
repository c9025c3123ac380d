package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/stagerun/internal/mq"
	"github.com/shaiso/stagerun/internal/stage"
	"github.com/shaiso/stagerun/internal/steps"
	"github.com/shaiso/stagerun/internal/telemetry"
)

// Режимы выполнения.
const (
	ModeSequential = "sequential"
	ModeRecovery   = "recovery"
	ModeBatched    = "batched"
)

// RunConfig — параметры команды run.
type RunConfig struct {
	PlanPath string
	Initial  float64

	// BatchSize > 0 включает режим батчей.
	BatchSize       int
	InterBatchDelay time.Duration

	// Retries > 0 включает повторы (в режиме батчей — внутри батчей).
	Retries    int
	RetryDelay time.Duration
	Backoff    string

	// Timeout > 0 — run отменяется токеном по таймауту.
	Timeout time.Duration

	// AMQPURL — публиковать снимки и принимать команды отмены через RabbitMQ.
	AMQPURL string

	// MetricsAddr — адрес HTTP сервера с /metrics на время run.
	MetricsAddr string

	Logger   *slog.Logger
	Clock    clockwork.Clock
	Registry *steps.Registry
}

// StateView — снимок для вывода.
type StateView struct {
	StepIndex  int     `json:"step_index"`
	StepID     string  `json:"step_id,omitempty"`
	Status     string  `json:"status"`
	Result     float64 `json:"result"`
	IsComplete bool    `json:"is_complete"`
	Error      string  `json:"error,omitempty"`
}

// Report — итог run.
type Report struct {
	RunID  uuid.UUID   `json:"run_id"`
	Plan   string      `json:"plan"`
	Mode   string      `json:"mode"`
	Status string      `json:"status"`
	Result float64     `json:"result"`
	Error  string      `json:"error,omitempty"`
	States []StateView `json:"states"`
}

// Mode возвращает режим выполнения для конфигурации.
func (c RunConfig) Mode() string {
	switch {
	case c.BatchSize > 0:
		return ModeBatched
	case c.Retries > 0:
		return ModeRecovery
	default:
		return ModeSequential
	}
}

func (c RunConfig) retryPolicy() stage.RetryPolicy {
	return stage.RetryPolicy{
		MaxRetries: c.Retries,
		Delay:      c.RetryDelay,
		Backoff:    stage.Backoff(c.Backoff),
	}
}

// Execute загружает план, выполняет его и возвращает отчёт.
//
// Ошибка run (отмена или ошибка шага) возвращается вместе с заполненным отчётом.
func Execute(ctx context.Context, cfg RunConfig) (*Report, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.FromContext(ctx)
	}
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry(cfg.Clock)
	}

	plan, err := steps.LoadPlan(cfg.PlanPath)
	if err != nil {
		return nil, err
	}
	if err := steps.Validate(plan, registry); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}

	runID := uuid.New()
	logger = telemetry.WithPlan(logger, plan.Name)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(reg)

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	tokens := stage.NewTokenRegistry()
	buf := stage.NewBuffer[float64]()
	sinks := stage.MultiSink[float64]{
		stage.NewBufferSink(buf),
		stage.NewLogSink[float64](logger),
	}

	if cfg.AMQPURL != "" {
		sink, stop := connectBroker(ctx, cfg.AMQPURL, tokens, logger)
		if sink != nil {
			sinks = append(sinks, sink)
			defer stop()
		}
	}

	engine := stage.New[steps.Descriptor, float64](stage.Config{
		Logger:  logger,
		Clock:   cfg.Clock,
		Metrics: metrics,
		Tokens:  tokens,
	})

	opts := stage.Options[float64]{
		Initial: cfg.Initial,
		RunID:   runID,
		Token:   newToken(ctx, cfg),
	}

	logger.Info("executing plan", "run_id", runID, "steps", len(plan.Steps), "mode", cfg.Mode())

	fn := registry.Dispatch()
	var result float64

	switch cfg.Mode() {
	case ModeBatched:
		result, err = engine.RunInBatches(ctx, plan.Steps, fn, sinks, stage.BatchOptions[float64]{
			Options:         opts,
			BatchSize:       cfg.BatchSize,
			InterBatchDelay: cfg.InterBatchDelay,
			Retry:           cfg.retryPolicy(),
		})
	case ModeRecovery:
		result, err = engine.RunWithRecovery(ctx, plan.Steps, fn, sinks, stage.RecoveryOptions[float64]{
			Options: opts,
			Retry:   cfg.retryPolicy(),
		})
	default:
		result, err = engine.Run(ctx, plan.Steps, fn, sinks, opts)
	}

	if errors.Is(err, stage.ErrInvalidOptions) {
		return nil, err
	}

	return buildReport(runID, plan, cfg.Mode(), result, err, buf.States()), err
}

// newToken выбирает токен отмены: по таймауту или по context (SIGINT/SIGTERM).
func newToken(ctx context.Context, cfg RunConfig) stage.Token {
	if cfg.Timeout > 0 {
		var opts []stage.TokenOption
		if cfg.Clock != nil {
			opts = append(opts, stage.WithClock(cfg.Clock))
		}
		return stage.NewTimeout(cfg.Timeout, opts...)
	}
	return stage.FromContext(ctx)
}

func buildReport(runID uuid.UUID, plan *steps.Plan, mode string, result float64, err error, states []stage.StreamState[float64]) *Report {
	report := &Report{
		RunID:  runID,
		Plan:   plan.Name,
		Mode:   mode,
		Status: string(stage.StatusCompleted),
		Result: result,
		States: make([]StateView, 0, len(states)),
	}

	if err != nil {
		report.Error = err.Error()
		report.Status = string(stage.StatusFailed)
		if stage.IsCancelled(err) {
			report.Status = string(stage.StatusCancelled)
		}
	}

	for _, s := range states {
		view := StateView{
			StepIndex:  s.StepIndex,
			Status:     s.Status.String(),
			Result:     s.Result,
			IsComplete: s.IsComplete,
			Error:      s.ErrorMessage(),
		}
		if !s.IsComplete && s.StepIndex < len(plan.Steps) {
			view.StepID = plan.Steps[s.StepIndex].ID
		}
		report.States = append(report.States, view)
	}

	return report
}

// metricsShutdownTimeout ограничивает остановку сервера метрик.
var metricsShutdownTimeout = 5 * time.Second

// serveMetrics поднимает /metrics и возвращает функцию остановки.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	return serveMetricsOn(ln, reg, logger), nil
}

func serveMetricsOn(ln net.Listener, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
}

// connectBroker подключается к RabbitMQ: снимки публикуются в SnapshotSink,
// команды отмены из ExchangeControl попадают в tokens.
//
// Брокер опционален: при ошибке подключения run выполняется без него.
func connectBroker(ctx context.Context, url string, tokens *stage.TokenRegistry, logger *slog.Logger) (stage.Sink[float64], func()) {
	conn, err := mq.NewConnection(mq.ConnectionConfig{URL: url, Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, running without broker", "error", err)
		return nil, nil
	}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	queue, err := mq.DeclareControlQueue(ctx, conn)
	if err != nil {
		logger.Warn("remote cancel disabled", "error", err)
	}

	consumeCtx, stopConsume := context.WithCancel(ctx)
	if queue != "" {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue:   queue,
			Handler: mq.CancelHandler(tokens, logger),
		})
		go func() {
			if err := consumer.Start(consumeCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("cancel consumer stopped", "error", err)
			}
		}()
	}

	sink := mq.NewSnapshotSink[float64](ctx, mq.NewPublisher(conn, logger), logger)

	return sink, func() {
		stopConsume()
		if err := conn.Close(); err != nil {
			logger.Warn("close broker connection", "error", err)
		}
	}
}
