package review

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TrainingRepository loads the labeled historical results the classifier
// trains on.
type TrainingRepository interface {
	LoadLabeled(ctx context.Context) ([]TrainingSample, error)
}

type trainingRepoPG struct{ pool *pgxpool.Pool }

func NewTrainingRepoPG(pool *pgxpool.Pool) TrainingRepository {
	return &trainingRepoPG{pool: pool}
}

func (r *trainingRepoPG) LoadLabeled(ctx context.Context) ([]TrainingSample, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT test_code, numeric_value, status
		FROM test_result
		WHERE numeric_value IS NOT NULL
		  AND status IN ('Low', 'Normal', 'High')`)
	if err != nil {
		return nil, fmt.Errorf("load training samples: %w", err)
	}
	defer rows.Close()

	var samples []TrainingSample
	for rows.Next() {
		var s TrainingSample
		if err := rows.Scan(&s.TestCode, &s.Value, &s.Label); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training samples: %w", err)
	}
	return samples, nil
}
