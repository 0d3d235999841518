package history

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/types"
)

// MemoryStore is an in-memory Repository. Records are copied on the way in
// and out, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	swaps map[common.Hash]*types.Swap
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{swaps: make(map[common.Hash]*types.Swap)}
}

func (s *MemoryStore) Get(ctx context.Context, id common.Hash) (*types.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	swap, ok := s.swaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return swap.Clone(), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, swap *types.Swap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.swaps[swap.ID] = swap.Clone()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*types.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Swap, 0, len(s.swaps))
	for _, swap := range s.swaps {
		out = append(out, swap.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}
