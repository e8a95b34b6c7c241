package flagging

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, cfg *FlaggingConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*FlaggingConfig, error)

	// ListActiveByCode returns every active config for a test code in one
	// lookup; the resolver partitions and ranks them in memory.
	ListActiveByCode(ctx context.Context, testCode string) ([]*FlaggingConfig, error)

	// Supersede atomically deactivates the current active config for
	// (test code, gender) and inserts cfg as the next version.
	Supersede(ctx context.Context, cfg *FlaggingConfig) error
}
