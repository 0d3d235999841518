package quote

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rt "cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

func TestQuoter_RanksPricedRoutes(t *testing.T) {
	sim := newFakeSimulator(9_000)
	q := NewQuoter(testBuilder(), resolverWith(sim))

	routes, err := q.Quote(context.Background(), request(rt.AlphaID, rt.AlphaUSDC, rt.GammaID, rt.GammaUSDC, 1_000_000), nil, types.SortByAmount)
	require.NoError(t, err)
	require.NotEmpty(t, routes)
	for i := 1; i < len(routes); i++ {
		assert.True(t, routes[i-1].DstAmount.Cmp(routes[i].DstAmount) >= 0)
	}
	assert.False(t, routes[0].SufficientBalance)

	byDuration, err := q.Quote(context.Background(), request(rt.AlphaID, rt.AlphaUSDC, rt.GammaID, rt.GammaUSDC, 1_000_000), nil, types.SortByDuration)
	require.NoError(t, err)
	for i := 1; i < len(byDuration); i++ {
		assert.LessOrEqual(t, byDuration[i-1].Duration, byDuration[i].Duration)
	}
}

func TestQuoter_Errors(t *testing.T) {
	sim := newFakeSimulator(9_000)
	q := NewQuoter(testBuilder(), resolverWith(sim))

	_, err := q.Quote(context.Background(), request(rt.AlphaID, rt.AlphaUSDC, rt.GammaID, rt.GammaUSDC, 0), nil, types.SortByAmount)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Every swap simulation fails, so a route needing a swap cannot be priced.
	for _, c := range testRegistry().Chains() {
		for _, cell := range c.Cells {
			sim.fail[cell.Address] = true
		}
	}
	_, err = q.Quote(context.Background(), request(rt.BetaID, rt.BetaNative, rt.BetaID, rt.BetaUSDC, 1e18), nil, types.SortByAmount)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestQuoter_UsesBalance(t *testing.T) {
	sim := newFakeSimulator(10_000)
	q := NewQuoter(testBuilder(), NewResolver(testRegistry(), sim, ResolverConfig{}, zerolog.Nop()))

	balance := func(ctx context.Context, token *types.Token) (*big.Int, error) {
		return big.NewInt(1e18), nil
	}
	routes, err := q.Quote(context.Background(), request(rt.BetaID, rt.BetaNative, rt.BetaID, rt.BetaUSDC, 1e18), balance, "")
	require.NoError(t, err)
	assert.True(t, routes[0].SufficientBalance)
}
