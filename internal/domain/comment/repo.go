package comment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListBySubject(ctx context.Context, subjectType string, subjectID uuid.UUID) ([]*Comment, error)
	// SoftDelete stamps the comment deleted; the row is never removed.
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
