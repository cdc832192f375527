// Package checkpoint persists verified chain positions so that audits can
// resume from the last known-good digest instead of replaying from genesis.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// ErrNotFound is returned by Get when no checkpoint exists for the asset
// and chain kind.
var ErrNotFound = errors.New("checkpoint: not found")

// ErrStaleCheckpoint is returned by Put when the stored checkpoint is
// already ahead of the incoming one. Checkpoints only move forward.
var ErrStaleCheckpoint = errors.New("checkpoint: stored checkpoint is newer")

// Checkpoint records the verified tip of one asset's chain. Asset and
// Digest are lowercase hex.
type Checkpoint struct {
	Asset     string             `json:"asset"`
	Kind      repchain.ChainKind `json:"kind"`
	Digest    string             `json:"digest"`
	Count     uint64             `json:"count"`
	Slot      uint64             `json:"slot"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// DigestHash parses the checkpoint digest into a repchain.Hash.
func (c Checkpoint) DigestHash() (repchain.Hash, error) {
	return repchain.ParseHash(c.Digest)
}

// Store persists checkpoints keyed by (asset, kind).
type Store interface {
	// Get returns the checkpoint for the asset and kind, or ErrNotFound.
	Get(ctx context.Context, asset string, kind repchain.ChainKind) (*Checkpoint, error)

	// Put stores the checkpoint, replacing any previous one for the same
	// (asset, kind). Returns ErrStaleCheckpoint when the stored count is
	// greater than the incoming count.
	Put(ctx context.Context, cp Checkpoint) error

	// List returns every stored checkpoint ordered by asset then kind.
	List(ctx context.Context) ([]Checkpoint, error)
}
