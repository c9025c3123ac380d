package mq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/stagerun/internal/stage"
)

// CancelHandler возвращает Handler команд отмены.
//
// Команда для run, который выполняется в этом процессе, отменяет его токен
// через registry. Команда для неизвестного run подтверждается без действий:
// ExchangeControl рассылает её всем процессам, и run живёт только в одном.
func CancelHandler(registry *stage.TokenRegistry, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(_ context.Context, d *Delivery) error {
		if d.Message.Type != MessageTypeCancel {
			return fmt.Errorf("%w: unexpected type %q", ErrMalformed, d.Message.Type)
		}

		payload, err := ParsePayload[CancelPayload](&d.Message)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if payload.RunID == uuid.Nil {
			return fmt.Errorf("%w: empty run_id", ErrMalformed)
		}

		reason := payload.Reason
		if reason == "" {
			reason = "remote cancel"
		}

		if !registry.Cancel(payload.RunID, reason) {
			logger.Debug("cancel for unknown run ignored", "run_id", payload.RunID)
			return nil
		}

		logger.Info("run cancel requested", "run_id", payload.RunID, "reason", reason)
		return nil
	}
}
