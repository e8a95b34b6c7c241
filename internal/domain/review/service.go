package review

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlims/lims/internal/domain/order"
	"github.com/openlims/lims/internal/platform/audit"
)

// InvalidStateError rejects a review trigger whose business precondition is
// unmet. The reason string is surfaced verbatim to the caller.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return e.Reason }

// Rejection reasons.
const (
	ReasonAIDisabled     = "AI review feature is not enabled for this test order"
	ReasonNoResults      = "Test order has no results to review"
	ReasonNoTrainingData = "No training data available. Cannot perform AI review."
)

// orderLocks hands out one mutex per order id so review triggers for the
// same order serialize within the process. Cross-process serialization is
// the advisory lock taken inside the repository transaction.
type orderLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{m: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *orderLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Service orchestrates the AI review pass over one order's results.
type Service struct {
	orders     order.Repository
	training   TrainingRepository
	classifier Classifier
	audit      *audit.Log
	logger     zerolog.Logger
	locks      *orderLocks
	now        func() time.Time
}

func NewService(orders order.Repository, training TrainingRepository, classifier Classifier, auditLog *audit.Log, logger zerolog.Logger) *Service {
	return &Service{
		orders:     orders,
		training:   training,
		classifier: classifier,
		audit:      auditLog,
		logger:     logger,
		locks:      newOrderLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// TriggerReview runs a full train-and-predict pass over the order's results
// and commits the outcome. A missing order returns (nil, nil). Re-triggering
// an already reviewed order recomputes the pass; it never duplicates result
// rows, values are overwritten in place.
func (s *Service) TriggerReview(ctx context.Context, orderID uuid.UUID) (*order.TestOrder, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	o, err := s.orders.GetWithResults(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}

	if !o.AIReviewEnabled {
		return nil, s.reject(ctx, orderID, ReasonAIDisabled)
	}
	if len(o.Results) == 0 {
		return nil, s.reject(ctx, orderID, ReasonNoResults)
	}

	samples, err := s.training.LoadLabeled(ctx)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, s.reject(ctx, orderID, ReasonNoTrainingData)
	}

	if err := s.classifier.Train(samples); err != nil {
		return nil, err
	}

	reviewedAt := s.now()
	for _, res := range o.Results {
		sample := Sample{TestCode: res.TestCode}
		if res.NumericValue != nil {
			sample.Value = *res.NumericValue
		}
		label, err := s.classifier.Predict(sample)
		if err != nil {
			return nil, err
		}
		res.Status = label
		res.ReviewedByAI = true
		at := reviewedAt
		res.ReviewedAt = &at
	}

	if err := s.orders.SaveReviewOutcome(ctx, orderID, o.Results, order.StatusReviewedByAI); err != nil {
		return nil, err
	}

	// Reload so the response reflects committed state, not the in-memory
	// mutation above.
	committed, err := s.orders.GetWithResults(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "ai_review.completed", "test_order", orderID, audit.OutcomeSuccess, map[string]any{
		"results":          len(o.Results),
		"training_samples": len(samples),
	})
	s.logger.Info().
		Str("order_id", orderID.String()).
		Int("results", len(o.Results)).
		Msg("ai review committed")

	return committed, nil
}

func (s *Service) reject(ctx context.Context, orderID uuid.UUID, reason string) error {
	s.audit.Record(ctx, "ai_review.rejected", "test_order", orderID, audit.OutcomeFailure, map[string]any{
		"reason": reason,
	})
	return &InvalidStateError{Reason: reason}
}
