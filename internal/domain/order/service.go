package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// statusTransitions defines the forward-only order state machine. A reviewed
// order may be reviewed again; every review pass is recomputed from scratch.
var statusTransitions = map[string][]string{
	StatusPending:      {StatusInProgress, StatusCompleted, StatusReviewedByAI},
	StatusInProgress:   {StatusCompleted, StatusReviewedByAI},
	StatusCompleted:    {StatusReviewedByAI},
	StatusReviewedByAI: {StatusReviewedByAI},
}

// ValidateTransition checks whether an order may move from one status to
// another.
func ValidateTransition(from, to string) error {
	allowed, ok := statusTransitions[from]
	if !ok {
		return fmt.Errorf("unknown from-status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, o *TestOrder) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if _, ok := statusTransitions[o.Status]; !ok {
		return fmt.Errorf("invalid order status: %s", o.Status)
	}
	return s.repo.Create(ctx, o)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetWithResults(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	return s.repo.GetWithResults(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*TestOrder, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// UpdateStatus validates the transition against the current persisted status
// before writing.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to string) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("order %s not found", id)
	}
	if err := ValidateTransition(o.Status, to); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, to)
}
