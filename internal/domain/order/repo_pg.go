package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlims/lims/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const orderCols = `id, patient_id, ai_review_enabled, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*TestOrder, error) {
	var o TestOrder
	err := row.Scan(&o.ID, &o.PatientID, &o.AIReviewEnabled, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

const resultCols = `id, order_id, test_code, numeric_value, text_value, unit, status,
	reviewed_by_ai, reviewed_at, created_at, updated_at`

func scanResult(row pgx.Row) (*TestResult, error) {
	var r TestResult
	err := row.Scan(&r.ID, &r.OrderID, &r.TestCode, &r.NumericValue, &r.TextValue, &r.Unit, &r.Status,
		&r.ReviewedByAI, &r.ReviewedAt, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, o *TestOrder) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO test_order (id, patient_id, ai_review_enabled, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		o.ID, o.PatientID, o.AIReviewEnabled, o.Status)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("insert test order: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderCols+` FROM test_order WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get test order: %w", err)
	}
	return o, nil
}

func (r *repoPG) GetWithResults(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultCols+` FROM test_result WHERE order_id = $1 ORDER BY created_at, test_code`, id)
	if err != nil {
		return nil, fmt.Errorf("query order results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test result: %w", err)
		}
		o.Results = append(o.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order results: %w", err)
	}
	return o, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*TestOrder, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_order`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count test orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderCols+` FROM test_order ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list test orders: %w", err)
	}
	defer rows.Close()

	var orders []*TestOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan test order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate test orders: %w", err)
	}
	return orders, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_order SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order status: order %s not found", id)
	}
	return nil
}

func (r *repoPG) UpsertResults(ctx context.Context, orderID uuid.UUID, results []*TestResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert results: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.AcquireTxLock(ctx, tx, db.LockKey(orderID)); err != nil {
		return err
	}

	for _, res := range results {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO test_result (id, order_id, test_code, numeric_value, text_value, unit, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (order_id, test_code) DO UPDATE SET
				numeric_value = EXCLUDED.numeric_value,
				text_value = EXCLUDED.text_value,
				unit = EXCLUDED.unit,
				status = EXCLUDED.status,
				updated_at = NOW()`,
			res.ID, orderID, res.TestCode, res.NumericValue, res.TextValue, res.Unit, res.Status)
		if err != nil {
			return fmt.Errorf("upsert result %s: %w", res.TestCode, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *repoPG) SaveReviewOutcome(ctx context.Context, orderID uuid.UUID, results []*TestResult, status string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin review commit: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.AcquireTxLock(ctx, tx, db.LockKey(orderID)); err != nil {
		return err
	}

	for _, res := range results {
		tag, err := tx.Exec(ctx, `
			UPDATE test_result
			SET status = $3, reviewed_by_ai = $4, reviewed_at = $5, updated_at = NOW()
			WHERE id = $1 AND order_id = $2`,
			res.ID, orderID, res.Status, res.ReviewedByAI, res.ReviewedAt)
		if err != nil {
			return fmt.Errorf("update reviewed result %s: %w", res.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update reviewed result %s: row not found", res.ID)
		}
	}

	// Status-only write; the rest of the order row stays untouched.
	if _, err := tx.Exec(ctx,
		`UPDATE test_order SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, status); err != nil {
		return fmt.Errorf("update order status after review: %w", err)
	}

	return tx.Commit(ctx)
}
