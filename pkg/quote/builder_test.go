package quote

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/registry"
	rt "cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

func TestBuild_DirectBridgeNoSwap(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaUSDC, 1_000_000))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	route := routes[0]
	assert.Equal(t, types.RouteBridge, route.Type)
	assert.Equal(t, []types.HopAction{types.ActionHop}, actions(route))

	hop := route.Hops[0]
	assert.Equal(t, rt.AlphaYakCell, hop.SrcCell, "non-swapping side uses the primary cell")
	assert.Equal(t, common.Address{}, hop.DstCell)
	assert.Equal(t, big.NewInt(1_000_000), hop.DstAmount, "amount passes through a swap-less leg")
	assert.Equal(t, big.NewInt(1_000_000), route.DstAmount)
	require.Len(t, hop.Steps, 1)
	assert.Equal(t, types.StepBridge, hop.Steps[0].Type)
	require.NotNil(t, hop.Bridge)
	assert.Equal(t, rt.AlphaUSDCHome, hop.Bridge.SrcBridge)
}

func TestBuild_SameChainSwap(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.BetaID, rt.BetaNative, rt.BetaID, rt.BetaUSDC, 5))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	route := routes[0]
	assert.Equal(t, types.RouteSwap, route.Type)
	assert.Equal(t, []types.HopAction{types.ActionSwapAndTransfer}, actions(route))
	assert.Equal(t, rt.BetaYakCell, route.Hops[0].SrcCell)
	assert.Nil(t, route.Hops[0].DstAmount, "swap output is unknown until simulated")
}

func TestBuild_SameChainOneRoutePerCell(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaWNat, rt.AlphaID, rt.AlphaUSDC, 5))
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, rt.AlphaYakCell, routes[0].Hops[0].SrcCell)
	assert.Equal(t, rt.AlphaUniCell, routes[1].Hops[0].SrcCell)
}

func TestBuild_SourceSwapThenBridge(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaWNat, rt.BetaID, rt.BetaUSDC, 5))
	require.NoError(t, err)
	require.Len(t, routes, 2, "one candidate per source swap cell")

	for _, route := range routes {
		assert.Equal(t, []types.HopAction{types.ActionSwapAndHop}, actions(route))
		hop := route.Hops[0]
		require.Len(t, hop.Steps, 2)
		assert.Equal(t, types.StepSwap, hop.Steps[0].Type)
		assert.Equal(t, rt.AlphaUSDC, hop.Steps[0].DstTokenID)
		assert.Equal(t, types.StepBridge, hop.Steps[1].Type)
		assert.Nil(t, hop.DstAmount)
		assert.Nil(t, route.DstAmount)
	}
}

func TestBuild_DestinationSwap(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaNative, 7))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	route := routes[0]
	assert.Equal(t, []types.HopAction{types.ActionHopAndCall, types.ActionSwapAndTransfer}, actions(route))
	assert.Equal(t, rt.BetaYakCell, route.Hops[0].DstCell)
	assert.Equal(t, rt.BetaYakCell, route.Hops[1].SrcCell)
	assert.Equal(t, big.NewInt(7), route.Hops[1].SrcAmount)
}

func TestBuild_ViaInterimChain(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaUSDC, rt.GammaID, rt.GammaUSDC, 9))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	route := routes[0]
	assert.Equal(t, []types.HopAction{types.ActionHopAndCall, types.ActionHop}, actions(route))
	assert.Equal(t, rt.BetaID, route.Hops[0].DstChainID)
	assert.Equal(t, rt.BetaYakCell, route.Hops[0].DstCell)
	assert.Equal(t, rt.BetaYakCell, route.Hops[1].SrcCell)
	assert.Equal(t, rt.GammaID, route.Hops[1].DstChainID)
	assert.Equal(t, big.NewInt(9), route.DstAmount)
}

func TestBuild_SourceSwapViaInterim(t *testing.T) {
	routes, err := testBuilder().Build(request(rt.AlphaID, rt.AlphaWNat, rt.GammaID, rt.GammaUSDC, 9))
	require.NoError(t, err)
	require.Len(t, routes, 2)

	for _, route := range routes {
		assert.Equal(t, []types.HopAction{types.ActionSwapAndHop, types.ActionHop}, actions(route))
		assert.Equal(t, rt.BetaYakCell, route.Hops[0].DstCell)
		assert.Nil(t, route.Hops[1].SrcAmount)
	}
}

func TestBuild_InfeasibleSwapIsSilent(t *testing.T) {
	tests := []struct {
		name string
		req  types.QuoteRequest
	}{
		{"destination chain cannot swap", request(rt.BetaID, rt.BetaUSDC, rt.GammaID, rt.GammaNative, 1)},
		{"via interim into non-swap chain", request(rt.AlphaID, rt.AlphaWNat, rt.GammaID, rt.GammaNative, 1)},
		{"same chain without swap cells", request(rt.GammaID, rt.GammaNative, rt.GammaID, rt.GammaUSDC, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes, err := testBuilder().Build(tt.req)
			require.NoError(t, err)
			assert.Empty(t, routes)
		})
	}
}

func TestBuild_TopologyBound(t *testing.T) {
	b := testBuilder()
	r := testRegistry()

	for _, src := range r.Chains() {
		for _, srcToken := range r.TokensOnChain(src.ID) {
			for _, dst := range r.Chains() {
				for _, dstToken := range r.TokensOnChain(dst.ID) {
					if srcToken.ID == dstToken.ID {
						continue
					}
					routes, err := b.Build(request(src.ID, srcToken.ID, dst.ID, dstToken.ID, 100))
					require.NoError(t, err)

					for _, route := range routes {
						bridges := 0
						for _, hop := range route.Hops {
							for _, step := range hop.Steps {
								if step.Type == types.StepBridge {
									bridges++
								}
							}
						}
						assert.LessOrEqual(t, bridges, 2, "at most one interim chain")
						assert.LessOrEqual(t, len(route.Hops), 3)
						assert.NotEmpty(t, route.Hops)
						assert.Equal(t, route.DstTokenID, route.Hops[len(route.Hops)-1].DstTokenID)
					}
				}
			}
		}
	}
}

func TestBuild_CellRouteTypes(t *testing.T) {
	chains := rt.Chains()
	chains[1].Cells[0].RouteTypes = []types.HopAction{types.ActionHop}
	r, err := registry.NewStatic(chains, rt.Tokens())
	require.NoError(t, err)

	routes, err := NewBuilder(r, zerolog.Nop()).Build(request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaNative, 1))
	require.NoError(t, err)
	assert.Empty(t, routes, "beta cell refuses swap_and_transfer")
}

func TestBuild_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  types.QuoteRequest
	}{
		{"zero amount", request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaUSDC, 0)},
		{"negative amount", request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaUSDC, -1)},
		{"unknown source chain", request(99, rt.AlphaUSDC, rt.BetaID, rt.BetaUSDC, 1)},
		{"unknown destination chain", request(rt.AlphaID, rt.AlphaUSDC, 99, rt.BetaUSDC, 1)},
		{"token on wrong chain", request(rt.AlphaID, rt.BetaUSDC, rt.BetaID, rt.BetaUSDC, 1)},
		{"same token", request(rt.AlphaID, rt.AlphaUSDC, rt.AlphaID, rt.AlphaUSDC, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testBuilder().Build(tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	_, err := testBuilder().Build(types.QuoteRequest{SrcChainID: rt.AlphaID, SrcTokenID: rt.AlphaUSDC, DstChainID: rt.BetaID, DstTokenID: rt.BetaUSDC})
	assert.ErrorIs(t, err, ErrInvalidRequest, "nil amount")
}
