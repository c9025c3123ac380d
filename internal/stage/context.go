package stage

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// withRunID кладёт ID run в контекст, передаваемый шагам.
func withRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext возвращает ID run, внутри которого выполняется шаг.
// Шаги используют его, чтобы не смешивать состояние разных run.
func RunIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}
