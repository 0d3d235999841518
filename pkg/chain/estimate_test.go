package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/chain"
	"cellroute/pkg/chain/chaintest"
)

func TestEstimateBlockAt(t *testing.T) {
	// Block n is produced at 1000 + 2n.
	client := chaintest.New(10_000)

	tests := []struct {
		name string
		ts   uint64
		avg  time.Duration
		want uint64
	}{
		{"exact block time", 1000 + 2*4321, 2 * time.Second, 4321},
		{"between blocks", 1000 + 2*4321 + 1, 2 * time.Second, 4321},
		{"guess too late", 1000 + 2*7000, 5 * time.Second, 7000},
		{"guess too early", 1000 + 2*3000, time.Second, 3000},
		{"after head", 1000 + 2*20_000, 2 * time.Second, 10_000},
		{"before genesis", 10, 2 * time.Second, 0},
		{"genesis", 1000, 2 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.EstimateBlockAt(context.Background(), client, tt.ts, tt.avg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateBlockAt_IrregularBlocks(t *testing.T) {
	client := chaintest.New(100)
	// Slow blocks: 10s each up to 50, then 1s.
	client.TimeAt = func(n uint64) uint64 {
		if n <= 50 {
			return 10 * n
		}
		return 500 + (n - 50)
	}

	got, err := chain.EstimateBlockAt(context.Background(), client, 255, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), got)

	got, err = chain.EstimateBlockAt(context.Background(), client, 530, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(80), got)
}
