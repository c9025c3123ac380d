package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/mq"
	"github.com/shaiso/stagerun/internal/telemetry"
)

// NewCancelCmd создаёт команду удалённой отмены run через RabbitMQ.
func NewCancelCmd(outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "Cancel a running plan by its run ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			url := amqpURLFn()
			if url == "" {
				return errors.New("--amqp-url or RABBITMQ_URL is required")
			}

			ctx := withContext(cmd)
			logger := telemetry.FromContext(ctx)

			conn, err := mq.NewConnection(mq.ConnectionConfig{URL: url, Logger: logger})
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}
			if err := mq.NewPublisher(conn, logger).PublishCancel(ctx, runID, reason); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancel requested for run %s", runID))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cancelled from cli", "Cancellation reason")

	return cmd
}
