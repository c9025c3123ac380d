// stagerun — выполнение планов из последовательных шагов.
//
// Использование:
//
//	stagerun [--json] [--amqp-url URL] <command> [flags]
//
// Команды:
//
//	run       Выполнить план
//	validate  Проверить план
//	steps     Список типов шагов
//	cancel    Отменить run в другом процессе
//
// Переменные окружения: LOG_LEVEL, LOG_FORMAT, RABBITMQ_URL, METRICS_PORT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/cli"
	"github.com/shaiso/stagerun/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var amqpURL string
	var jsonOutput bool

	logger := telemetry.SetupLogger(os.Stderr)

	// graceful shutdown: сигнал отменяет run на ближайшей границе шага
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = telemetry.WithLogger(ctx, logger)

	rootCmd := &cobra.Command{
		Use:           "stagerun",
		Short:         "stagerun — sequential staged execution engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", os.Getenv("RABBITMQ_URL"), "RabbitMQ URL for snapshots and remote cancel")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	amqpURLFn := func() string { return amqpURL }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn, amqpURLFn),
		cli.NewValidateCmd(outputFn),
		cli.NewStepsCmd(outputFn),
		cli.NewCancelCmd(outputFn, amqpURLFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
