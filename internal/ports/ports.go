package ports

import (
	"context"

	"github.com/forPelevin/blockcut/internal/types"
)

// RunStore keeps one record per segment or reassemble run.
type RunStore interface {
	Record(ctx context.Context, r types.Run) error
	// Recent returns the newest runs first.
	Recent(ctx context.Context, limit int) ([]types.Run, error)
}
