package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for testing and for single-process deployments that do
// not require durable persistence across restarts.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[memoryKey]Checkpoint
}

type memoryKey struct {
	asset string
	kind  repchain.ChainKind
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[memoryKey]Checkpoint)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, asset string, kind repchain.ChainKind) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[memoryKey{asset: asset, kind: kind}]
	if !ok {
		return nil, ErrNotFound
	}
	return &cp, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{asset: cp.Asset, kind: cp.Kind}
	if existing, ok := s.checkpoints[key]; ok && existing.Count > cp.Count {
		return ErrStaleCheckpoint
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.checkpoints[key] = cp
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}
