// Package history persists swap records between tracker runs.
package history

import (
	"context"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/types"
)

// ErrNotFound is returned by Get for unknown swap ids.
var ErrNotFound = errors.New("swap not found")

// Repository stores whole swap records keyed by the initiating tx hash.
// Upsert replaces the full record; the last writer wins.
type Repository interface {
	Get(ctx context.Context, id common.Hash) (*types.Swap, error)
	Upsert(ctx context.Context, swap *types.Swap) error
	List(ctx context.Context) ([]*types.Swap, error)
}

// sortNewestFirst orders swaps by creation time, newest first, then by id.
func sortNewestFirst(swaps []*types.Swap) {
	sort.SliceStable(swaps, func(i, j int) bool {
		if !swaps[i].CreatedAt.Equal(swaps[j].CreatedAt) {
			return swaps[i].CreatedAt.After(swaps[j].CreatedAt)
		}
		return swaps[i].ID.Hex() < swaps[j].ID.Hex()
	})
}
