package comment

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

const commentCols = `id, subject_type, subject_id, message, author_id, deleted, deleted_at, created_at`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.SubjectType, &c.SubjectID, &c.Message, &c.AuthorID,
		&c.Deleted, &c.DeletedAt, &c.CreatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO comment (id, subject_type, subject_id, message, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.SubjectType, c.SubjectID, c.Message, c.AuthorID)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx,
		`SELECT `+commentCols+` FROM comment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (r *repoPG) ListBySubject(ctx context.Context, subjectType string, subjectID uuid.UUID) ([]*Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commentCols+` FROM comment
		 WHERE subject_type = $1 AND subject_id = $2 AND NOT deleted
		 ORDER BY created_at`,
		subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE comment SET deleted = TRUE, deleted_at = NOW() WHERE id = $1 AND NOT deleted`,
		id)
	if err != nil {
		return fmt.Errorf("soft-delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("soft-delete comment: %s not found or already deleted", id)
	}
	return nil
}
