package runlog

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists run logs
type Repository interface {
	Create(ctx context.Context, run *RunLog) error
	Save(ctx context.Context, run *RunLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*RunLog, error)
	// FindRunning returns the running log for the source, or nil when none is running
	FindRunning(ctx context.Context, kind SourceKind, sourceID uuid.UUID) (*RunLog, error)
	ListBySource(ctx context.Context, kind SourceKind, sourceID uuid.UUID, limit int) ([]RunLog, error)
}
