package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт команду выполнения плана.
//
// amqpURLFn возвращает адрес брокера из PersistentFlags корневой команды.
func NewRunCmd(outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	var cfg RunConfig

	cmd := &cobra.Command{
		Use:   "run PLAN_FILE",
		Short: "Execute a plan file",
		Long: `Execute the steps of a plan file in order.

Mode is chosen by flags:
  --batch-size N   run in batches of N steps with --inter-batch-delay between them
  --retries K      retry each failed step up to K times with --retry-delay
  (neither)        plain sequential run

The run stops at the next step boundary on SIGINT/SIGTERM, on --timeout,
or when a cancel command for its run ID arrives through RabbitMQ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg.PlanPath = args[0]
			cfg.AMQPURL = amqpURLFn()

			report, err := Execute(withContext(cmd), cfg)
			if report == nil {
				return err
			}

			PrintReport(out, report)
			return err
		},
	}

	cmd.Flags().Float64Var(&cfg.Initial, "initial", 0, "Initial result passed to the first step")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 0, "Steps per batch (0 disables batching)")
	cmd.Flags().DurationVar(&cfg.InterBatchDelay, "inter-batch-delay", 0, "Pause between batches")
	cmd.Flags().IntVar(&cfg.Retries, "retries", 0, "Extra attempts for a failed step")
	cmd.Flags().DurationVar(&cfg.RetryDelay, "retry-delay", time.Second, "Delay before each retry")
	cmd.Flags().StringVar(&cfg.Backoff, "backoff", "fixed", "Retry backoff: fixed or exponential")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 0, "Cancel the run after this duration (0 disables)")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", metricsAddrFromEnv(), "Serve /metrics on this address during the run")

	return cmd
}

// PrintReport выводит отчёт: таблицу снимков и итог, либо JSON.
func PrintReport(out *Output, report *Report) {
	if out.JSONMode() {
		out.JSON(report)
		return
	}

	headers := []string{"STEP", "ID", "STATUS", "RESULT", "ERROR"}
	rows := make([][]string, len(report.States))
	for i, s := range report.States {
		id := s.StepID
		if s.IsComplete {
			id = "(complete)"
		}
		rows[i] = []string{
			strconv.Itoa(s.StepIndex),
			id,
			s.Status,
			strconv.FormatFloat(s.Result, 'g', -1, 64),
			s.Error,
		}
	}
	out.Table(headers, rows)

	msg := fmt.Sprintf("Run %s %s: result=%s", report.RunID, report.Status,
		strconv.FormatFloat(report.Result, 'g', -1, 64))
	if report.Error != "" {
		out.Error(msg + " (" + report.Error + ")")
		return
	}
	out.Success(msg)
}

// metricsAddrFromEnv строит адрес из METRICS_PORT.
func metricsAddrFromEnv() string {
	if port := os.Getenv("METRICS_PORT"); port != "" {
		return ":" + port
	}
	return ""
}

// withContext гарантирует непустой context у команды (cobra без ExecuteContext).
func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
