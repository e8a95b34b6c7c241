package rawresult

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) StageEnvelope(ctx context.Context, env *Envelope, body []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO raw_result (id, order_id, instrument, performed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, instrument, performed_at) DO NOTHING`,
		uuid.New(), env.OrderID, env.Instrument, env.PerformedAt, body)
	if err != nil {
		return false, fmt.Errorf("stage raw result: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) DeadLetter(ctx context.Context, queue string, body []byte, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dead_letter (id, queue, body, reason)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), queue, body, reason)
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}
