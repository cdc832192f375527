package incident

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory, thread-safe Repository implementation
// for tests and single-process deployments.
type MemoryRepository struct {
	mu        sync.RWMutex
	incidents []*Incident
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create implements Repository.
func (r *MemoryRepository) Create(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc.ID = uuid.New()
	inc.DetectedAt = time.Now().UTC()

	stored := *inc
	r.incidents = append(r.incidents, &stored)
	return nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inc := range r.incidents {
		if inc.ID == id {
			out := *inc
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// List implements Repository. Results are newest first.
func (r *MemoryRepository) List(_ context.Context, f Filter) ([]*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	out := make([]*Incident, 0, limit)
	for i := len(r.incidents) - 1; i >= 0 && len(out) < limit; i-- {
		inc := r.incidents[i]
		if f.Asset != "" && inc.Asset != f.Asset {
			continue
		}
		if f.Severity != "" && inc.Severity != f.Severity {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	return out, nil
}
