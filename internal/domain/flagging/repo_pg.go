package flagging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const cfgCols = `id, test_code, gender, version, active, min_value, max_value, unit, created_at, updated_at`

func scanConfig(row pgx.Row) (*FlaggingConfig, error) {
	var c FlaggingConfig
	err := row.Scan(&c.ID, &c.TestCode, &c.Gender, &c.Version, &c.Active,
		&c.MinValue, &c.MaxValue, &c.Unit, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, cfg *FlaggingConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO flagging_config (id, test_code, gender, version, active, min_value, max_value, unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		cfg.ID, cfg.TestCode, cfg.Gender, cfg.Version, cfg.Active, cfg.MinValue, cfg.MaxValue, cfg.Unit)
	if err := row.Scan(&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("insert flagging config: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*FlaggingConfig, error) {
	c, err := scanConfig(r.pool.QueryRow(ctx,
		`SELECT `+cfgCols+` FROM flagging_config WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flagging config: %w", err)
	}
	return c, nil
}

func (r *repoPG) ListActiveByCode(ctx context.Context, testCode string) ([]*FlaggingConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cfgCols+` FROM flagging_config WHERE test_code = $1 AND active`, testCode)
	if err != nil {
		return nil, fmt.Errorf("list active configs for %s: %w", testCode, err)
	}
	defer rows.Close()

	var configs []*FlaggingConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flagging config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flagging configs: %w", err)
	}
	return configs, nil
}

func (r *repoPG) Supersede(ctx context.Context, cfg *FlaggingConfig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin supersede: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxVersion *int
	err = tx.QueryRow(ctx, `
		SELECT MAX(version) FROM flagging_config
		WHERE test_code = $1 AND gender IS NOT DISTINCT FROM $2`,
		cfg.TestCode, cfg.Gender).Scan(&maxVersion)
	if err != nil {
		return fmt.Errorf("query current version: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE flagging_config SET active = FALSE, updated_at = NOW()
		WHERE test_code = $1 AND gender IS NOT DISTINCT FROM $2 AND active`,
		cfg.TestCode, cfg.Gender); err != nil {
		return fmt.Errorf("deactivate current config: %w", err)
	}

	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.Version = 1
	if maxVersion != nil {
		cfg.Version = *maxVersion + 1
	}
	cfg.Active = true

	row := tx.QueryRow(ctx, `
		INSERT INTO flagging_config (id, test_code, gender, version, active, min_value, max_value, unit)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
		RETURNING created_at, updated_at`,
		cfg.ID, cfg.TestCode, cfg.Gender, cfg.Version, cfg.MinValue, cfg.MaxValue, cfg.Unit)
	if err := row.Scan(&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("insert superseding config: %w", err)
	}

	return tx.Commit(ctx)
}
