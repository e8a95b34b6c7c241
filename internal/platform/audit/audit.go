// Package audit records significant domain events for traceability. Writes
// are best-effort: a failed audit insert is logged and never propagated, so
// auditing can never abort the operation it describes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Entry is one recorded event in the audit trail.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Outcome    string         `json:"outcome"`
	Detail     map[string]any `json:"detail,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
}

// Log wraps a Repository with best-effort semantics.
type Log struct {
	repo   Repository
	logger zerolog.Logger
}

func NewLog(repo Repository, logger zerolog.Logger) *Log {
	return &Log{repo: repo, logger: logger}
}

// Record writes an audit entry. Errors are logged, not returned.
func (l *Log) Record(ctx context.Context, action, entityType string, entityID uuid.UUID, outcome string, detail map[string]any) {
	e := &Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    outcome,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}
	if err := l.repo.Insert(ctx, e); err != nil {
		l.logger.Error().
			Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Msg("audit write failed")
	}
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	var detail []byte
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = b
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, entity_type, entity_id, outcome, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.Outcome, detail, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// MemoryRepo keeps audit entries in memory for dev and tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []*Entry
	failErr error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Insert(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (m *MemoryRepo) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// FailWith makes subsequent inserts return err.
func (m *MemoryRepo) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
