// Package incident records and classifies chain integrity breaks found
// during audits.
package incident

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// ErrNotFound is returned when an incident is not found.
var ErrNotFound = errors.New("incident not found")

// Severity labels how bad a chain break is.
//
//	info     — bookkeeping anomaly, no digest conflict (e.g. head regression)
//	warning  — disagreement at the chain tip only, often a lagging indexer
//	critical — history behind the stored head fails to replay
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Incident is one detected integrity break on an asset's chain. Asset and
// the digest fields are lowercase hex.
type Incident struct {
	ID             uuid.UUID          `json:"id"`
	Asset          string             `json:"asset"`
	Kind           repchain.ChainKind `json:"kind"`
	Position       int64              `json:"position"`
	Slot           uint64             `json:"slot"`
	ExpectedDigest string             `json:"expected_digest,omitempty"`
	ComputedDigest string             `json:"computed_digest,omitempty"`
	Severity       Severity           `json:"severity"`
	Detail         string             `json:"detail,omitempty"`
	DetectedAt     time.Time          `json:"detected_at"`
}

// Assess classifies a break found at position breakPos in a chain whose
// stored head counts headCount events. A negative breakPos means no digest
// conflict was found and the anomaly is positional only.
func Assess(breakPos int, headCount uint64) Severity {
	switch {
	case breakPos < 0:
		return SeverityInfo
	case headCount > 0 && uint64(breakPos) == headCount-1:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Asset    string
	Severity Severity
	Limit    int
}

// DefaultListLimit bounds List results when the filter does not.
const DefaultListLimit = 100

// Repository provides persistence for incidents.
type Repository interface {
	// Create stores the incident, assigning its ID and DetectedAt.
	Create(ctx context.Context, inc *Incident) error

	// Get returns one incident by ID, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Incident, error)

	// List returns incidents matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Incident, error)
}
