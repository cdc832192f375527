package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// PostgresRepository persists incidents to a PostgreSQL database. It
// implements the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, inc *Incident) error {
	inc.ID = uuid.New()
	inc.DetectedAt = time.Now().UTC()

	query := `INSERT INTO chain_incidents
	          (id, asset, kind, position, slot, expected_digest, computed_digest, severity, detail, detected_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		inc.ID, inc.Asset, inc.Kind.String(), inc.Position, inc.Slot,
		inc.ExpectedDigest, inc.ComputedDigest, string(inc.Severity), inc.Detail, inc.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Incident, error) {
	query := `SELECT id, asset, kind, position, slot, expected_digest, computed_digest, severity, detail, detected_at
	          FROM chain_incidents WHERE id = $1`
	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %s: %w", id, err)
	}
	return inc, nil
}

// List implements Repository. Results are newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*Incident, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, asset, kind, position, slot, expected_digest, computed_digest, severity, detail, detected_at
	          FROM chain_incidents
	          WHERE ($1 = '' OR asset = $1) AND ($2 = '' OR severity = $2)
	          ORDER BY detected_at DESC
	          LIMIT $3`
	rows, err := r.db.Query(ctx, query, f.Asset, string(f.Severity), limit)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident row: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanIncident(row pgx.Row) (*Incident, error) {
	var inc Incident
	var kindName, severity string
	if err := row.Scan(
		&inc.ID, &inc.Asset, &kindName, &inc.Position, &inc.Slot,
		&inc.ExpectedDigest, &inc.ComputedDigest, &severity, &inc.Detail, &inc.DetectedAt,
	); err != nil {
		return nil, err
	}
	kind, err := repchain.ParseChainKind(kindName)
	if err != nil {
		return nil, err
	}
	inc.Kind = kind
	inc.Severity = Severity(severity)
	return &inc, nil
}
