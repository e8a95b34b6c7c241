package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository owns test orders and their result rows. Lookups return
// (nil, nil) when the order does not exist; absence is not an error.
type Repository interface {
	Create(ctx context.Context, o *TestOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestOrder, error)
	GetWithResults(ctx context.Context, id uuid.UUID) (*TestOrder, error)
	List(ctx context.Context, limit, offset int) ([]*TestOrder, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// UpsertResults applies instrument measurements to an order inside one
	// transaction serialized per order. An existing (order, test code) row is
	// overwritten, so redelivered envelopes cannot duplicate results.
	UpsertResults(ctx context.Context, orderID uuid.UUID, results []*TestResult) error

	// SaveReviewOutcome persists a completed review pass: the batch of
	// updated result rows plus a status-only write on the order, in one
	// transaction serialized per order.
	SaveReviewOutcome(ctx context.Context, orderID uuid.UUID, results []*TestResult, status string) error
}
