package quote

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/chain"
	rt "cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

var receiver = common.HexToAddress("0x00000000000000000000000000000000000000e1")

func params() InstructionParams {
	return InstructionParams{
		RollbackTeleporterFee: big.NewInt(0),
		RollbackGasLimit:      big.NewInt(500_000),
		RequiredGasBuffer:     100_000,
		RecipientGasBuffer:    50_000,
	}
}

func resolvedRoute(t *testing.T, req types.QuoteRequest) *types.Route {
	t.Helper()
	data := buildOne(t, req, 0)
	route, gap := resolverWith(newFakeSimulator(10_000)).Resolve(context.Background(), &data, nil)
	require.Equal(t, GapNone, gap)
	return route
}

func TestBuildInstructions_SwapAndHopViaInterim(t *testing.T) {
	route := resolvedRoute(t, request(rt.AlphaID, rt.AlphaWNat, rt.GammaID, rt.GammaUSDC, 1000))

	ins, err := BuildInstructions(route, receiver, false, params())
	require.NoError(t, err)

	assert.Equal(t, receiver, ins.Receiver)
	assert.False(t, ins.PayableReceiver)
	assert.Equal(t, big.NewInt(500_000), ins.RollbackGasLimit)
	require.Len(t, ins.Hops, 2)

	first := ins.Hops[0]
	assert.Equal(t, types.ActionSwapAndHop.Code(), first.Action)
	assert.Equal(t, big.NewInt(250_000), first.RequiredGasLimit)
	assert.Equal(t, big.NewInt(200_000), first.RecipientGasLimit)
	assert.Equal(t, route.Hops[0].MinTrade, first.Trade, "the slippage-protected trade is submitted")
	assert.Equal(t, rt.AlphaUSDCHome, first.BridgePath.BridgeSourceChain)
	assert.Equal(t, rt.BetaUSDCRemote, first.BridgePath.BridgeDestinationChain)
	assert.Equal(t, rt.BetaYakCell, first.BridgePath.CellDestinationChain)
	assert.Equal(t, [32]byte(rt.BetaBlockchain), first.BridgePath.DestinationBlockchainID)

	second := ins.Hops[1]
	assert.Equal(t, types.ActionHop.Code(), second.Action)
	assert.Equal(t, big.NewInt(100_000), second.RequiredGasLimit)
	assert.Empty(t, second.Trade)
	assert.Equal(t, common.Address{}, second.BridgePath.CellDestinationChain)
	assert.Equal(t, [32]byte(rt.GammaBlockchain), second.BridgePath.DestinationBlockchainID)
}

func TestBuildInstructions_SameChainHasNoBridgePath(t *testing.T) {
	route := resolvedRoute(t, request(rt.BetaID, rt.BetaNative, rt.BetaID, rt.BetaUSDC, 1000))

	ins, err := BuildInstructions(route, receiver, true, params())
	require.NoError(t, err)
	require.Len(t, ins.Hops, 1)
	assert.Equal(t, types.ActionSwapAndTransfer.Code(), ins.Hops[0].Action)
	assert.Equal(t, common.Address{}, ins.Hops[0].BridgePath.BridgeSourceChain)
	assert.Equal(t, 0, ins.Hops[0].BridgePath.TeleporterFee.Sign())
}

func TestBuildInstructions_Errors(t *testing.T) {
	_, err := BuildInstructions(nil, receiver, false, params())
	assert.Error(t, err)

	route := resolvedRoute(t, request(rt.AlphaID, rt.AlphaUSDC, rt.BetaID, rt.BetaUSDC, 1))
	_, err = BuildInstructions(route, common.Address{}, false, params())
	assert.Error(t, err)

	route.Hops[0].Bridge = nil
	_, err = BuildInstructions(route, receiver, false, params())
	assert.Error(t, err)
}

func TestPackInitiate(t *testing.T) {
	route := resolvedRoute(t, request(rt.AlphaID, rt.AlphaWNat, rt.BetaID, rt.BetaNative, 1000))
	ins, err := BuildInstructions(route, receiver, true, params())
	require.NoError(t, err)

	data, err := PackInitiate(rt.AlphaWNatAddr, big.NewInt(1000), ins)
	require.NoError(t, err)

	method := chain.CellABI.Methods["initiate"]
	assert.Equal(t, method.ID, data[:4])

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, rt.AlphaWNatAddr, args[0].(common.Address))
	assert.Equal(t, big.NewInt(1000), args[1].(*big.Int))

	_, err = PackInitiate(rt.AlphaWNatAddr, big.NewInt(1), nil)
	assert.Error(t, err)
}
