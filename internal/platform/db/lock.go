package db

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LockKey folds a UUID into the 64-bit keyspace used by Postgres advisory
// locks. Collisions only cost extra serialization, never correctness.
func LockKey(id uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(id[:])
	return int64(h.Sum64())
}

// AcquireTxLock takes a transaction-scoped advisory lock on the given key.
// The lock is released automatically when the transaction commits or rolls
// back.
func AcquireTxLock(ctx context.Context, tx pgx.Tx, key int64) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("acquire advisory lock %d: %w", key, err)
	}
	return nil
}
