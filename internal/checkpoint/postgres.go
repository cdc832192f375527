package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// advisoryLockKey serialises concurrent Put calls across auditor instances.
// The value is arbitrary but must be consistent across all instances.
const advisoryLockKey = int64(2_480_041_137)

// PostgresStore persists checkpoints to a PostgreSQL database. It
// implements the Store interface.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, asset string, kind repchain.ChainKind) (*Checkpoint, error) {
	cp := &Checkpoint{}
	var kindName string
	err := s.pool.QueryRow(ctx,
		`SELECT asset, kind, digest, event_count, slot, updated_at
		 FROM chain_checkpoints WHERE asset = $1 AND kind = $2`,
		asset, kind.String(),
	).Scan(&cp.Asset, &kindName, &cp.Digest, &cp.Count, &cp.Slot, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint %s/%s: %w", asset, kind, err)
	}
	if cp.Kind, err = repchain.ParseChainKind(kindName); err != nil {
		return nil, fmt.Errorf("stored checkpoint %s: %w", asset, err)
	}
	return cp, nil
}

// Put implements Store.
// It acquires a PostgreSQL advisory lock, compares the stored position, and
// upserts the checkpoint — all within a single transaction.
func (s *PostgresStore) Put(ctx context.Context, cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent puts with a transaction-scoped advisory lock.
	// The lock is automatically released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var storedCount uint64
	err = tx.QueryRow(ctx,
		"SELECT event_count FROM chain_checkpoints WHERE asset = $1 AND kind = $2",
		cp.Asset, cp.Kind.String(),
	).Scan(&storedCount)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// first checkpoint for this chain
	case err != nil:
		return fmt.Errorf("read stored checkpoint: %w", err)
	case storedCount > cp.Count:
		return fmt.Errorf("%w: stored count %d, incoming %d", ErrStaleCheckpoint, storedCount, cp.Count)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO chain_checkpoints (asset, kind, digest, event_count, slot, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (asset, kind) DO UPDATE
		 SET digest = EXCLUDED.digest, event_count = EXCLUDED.event_count,
		     slot = EXCLUDED.slot, updated_at = EXCLUDED.updated_at`,
		cp.Asset, cp.Kind.String(), cp.Digest, cp.Count, cp.Slot, cp.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint tx: %w", err)
	}

	s.logger.Debug("checkpoint stored",
		zap.String("asset", cp.Asset),
		zap.String("kind", cp.Kind.String()),
		zap.Uint64("count", cp.Count),
		zap.Uint64("slot", cp.Slot),
	)
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset, kind, digest, event_count, slot, updated_at
		 FROM chain_checkpoints ORDER BY asset ASC, kind ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var kindName string
		if err := rows.Scan(&cp.Asset, &kindName, &cp.Digest, &cp.Count, &cp.Slot, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		if cp.Kind, err = repchain.ParseChainKind(kindName); err != nil {
			return nil, fmt.Errorf("stored checkpoint %s: %w", cp.Asset, err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
