package rawresult

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlims/lims/internal/domain/flagging"
	"github.com/openlims/lims/internal/domain/order"
	"github.com/openlims/lims/internal/platform/broker"
)

// FlagResolver resolves the governing threshold config for a test code.
// Satisfied by flagging.Service.
type FlagResolver interface {
	Resolve(ctx context.Context, testCode, gender string) (*flagging.FlaggingConfig, error)
}

// Service owns both hops of the raw-result pipeline. Handler errors signal
// the broker to redeliver; a nil return acknowledges the message, including
// the malformed ones that were dead-lettered instead.
type Service struct {
	repo     Repository
	orders   order.Repository
	flags    FlagResolver
	broker   broker.Broker
	labQueue string
	logger   zerolog.Logger
}

func NewService(repo Repository, orders order.Repository, flags FlagResolver, b broker.Broker, labQueue string, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		orders:   orders,
		flags:    flags,
		broker:   b,
		labQueue: labQueue,
		logger:   logger,
	}
}

func (s *Service) parse(ctx context.Context, queue string, body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.deadLetter(ctx, queue, body, fmt.Sprintf("malformed envelope: %v", err))
		return nil, nil
	}
	// schemaVersion is optional on the wire; an absent field means version 1.
	if env.SchemaVersion != 0 && env.SchemaVersion != SchemaVersion {
		s.deadLetter(ctx, queue, body, fmt.Sprintf("unsupported schema version %d", env.SchemaVersion))
		return nil, nil
	}
	if env.OrderID == uuid.Nil || env.Instrument == "" || env.PerformedAt.IsZero() || len(env.Items) == 0 {
		s.deadLetter(ctx, queue, body, "envelope missing required fields")
		return nil, nil
	}
	return &env, nil
}

// deadLetter records an unprocessable body. Failure to record is transient
// (the store is down), so it is the one case where a malformed message is
// left to redelivery instead of being dropped.
func (s *Service) deadLetter(ctx context.Context, queue string, body []byte, reason string) {
	if err := s.repo.DeadLetter(ctx, queue, body, reason); err != nil {
		s.logger.Error().Err(err).Str("queue", queue).Msg("dead-letter write failed")
		return
	}
	s.logger.Warn().Str("queue", queue).Str("reason", reason).Msg("message dead-lettered")
}

// Relay is the ingestion-tier handler: stage the envelope durably, then hand
// it onward to the laboratory core queue. A redelivered envelope that is
// already staged is forwarded again rather than dropped; the core dedupes on
// the same natural key, and a lost forward must not strand the order.
func (s *Service) Relay(queue string) broker.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		env, err := s.parse(ctx, queue, body)
		if err != nil || env == nil {
			return err
		}

		staged, err := s.repo.StageEnvelope(ctx, env, body)
		if err != nil {
			return err
		}
		if !staged {
			s.logger.Debug().
				Str("order_id", env.OrderID.String()).
				Str("instrument", env.Instrument).
				Msg("envelope already staged")
		}

		if err := s.broker.Publish(ctx, s.labQueue, body); err != nil {
			return fmt.Errorf("relay envelope: %w", err)
		}

		s.logger.Info().
			Str("order_id", env.OrderID.String()).
			Str("instrument", env.Instrument).
			Int("items", len(env.Items)).
			Msg("envelope relayed")
		return nil
	}
}

// Apply is the laboratory-core handler: write the measurements onto the
// order's result rows and advance the order. Result rows are upserted by
// (order, test code), so duplicate delivery overwrites instead of
// duplicating.
func (s *Service) Apply(queue string) broker.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		env, err := s.parse(ctx, queue, body)
		if err != nil || env == nil {
			return err
		}

		o, err := s.orders.GetByID(ctx, env.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			s.deadLetter(ctx, queue, body, fmt.Sprintf("order %s not found", env.OrderID))
			return nil
		}

		results := make([]*order.TestResult, 0, len(env.Items))
		for _, item := range env.Items {
			results = append(results, s.toResult(ctx, env.OrderID, item))
		}

		if err := s.orders.UpsertResults(ctx, env.OrderID, results); err != nil {
			return err
		}

		// A reviewed order keeps its status; fresh measurements do not undo
		// a committed review.
		if o.Status == order.StatusPending || o.Status == order.StatusInProgress {
			if err := s.orders.UpdateStatus(ctx, env.OrderID, order.StatusCompleted); err != nil {
				return err
			}
		}

		s.logger.Info().
			Str("order_id", env.OrderID.String()).
			Int("results", len(results)).
			Msg("raw result applied")
		return nil
	}
}

// toResult converts one raw item, re-grading its status against the active
// flagging config when one resolves. Instrument-supplied status is kept only
// when no config governs the code.
func (s *Service) toResult(ctx context.Context, orderID uuid.UUID, item RawResultItem) *order.TestResult {
	res := &order.TestResult{
		OrderID:      orderID,
		TestCode:     item.Code,
		NumericValue: item.NumericValue,
		TextValue:    item.TextValue,
		Status:       item.Status,
	}
	if item.Unit != "" {
		unit := item.Unit
		res.Unit = &unit
	}

	if item.NumericValue == nil {
		return res
	}
	cfg, err := s.flags.Resolve(ctx, item.Code, "")
	if err != nil {
		s.logger.Error().Err(err).Str("test_code", item.Code).Msg("flagging resolution failed")
		return res
	}
	if cfg != nil {
		res.Status = cfg.Classify(*item.NumericValue)
	}
	return res
}
