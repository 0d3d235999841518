package status

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/types"
)

func TestAggregate_StatusFollowsHops(t *testing.T) {
	statuses := []types.Status{types.StatusPending, types.StatusSuccess, types.StatusError}
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 500; n++ {
		swap := &types.Swap{}
		anyError, allSuccess := false, true
		for i := 0; i < 1+rng.Intn(4); i++ {
			s := statuses[rng.Intn(len(statuses))]
			anyError = anyError || s == types.StatusError
			allSuccess = allSuccess && s == types.StatusSuccess
			swap.Hops = append(swap.Hops, types.SwapHop{
				Index:  i,
				Status: s,
				Next:   types.NextDestination,
				Error:  "boom",
			})
		}
		hasDst := rng.Intn(2) == 0
		if hasDst {
			swap.DstData = &types.SwapData{ChainID: 3, TokenID: "3:USDC", Amount: big.NewInt(1)}
		}

		Aggregate(swap)

		switch {
		case anyError:
			assert.Equal(t, types.StatusError, swap.Status)
			assert.NotEmpty(t, swap.Error)
		case allSuccess && hasDst:
			assert.Equal(t, types.StatusSuccess, swap.Status)
		default:
			assert.Equal(t, types.StatusPending, swap.Status)
		}
	}
}

func TestAggregate_LocalLastHopSettlesDestination(t *testing.T) {
	swap := &types.Swap{
		Type: types.RouteBridge,
		Hops: []types.SwapHop{{
			Status:    types.StatusSuccess,
			Next:      types.NextNone,
			TxHash:    common.HexToHash("0x01"),
			Timestamp: 1000,
			DstData:   &types.SwapData{ChainID: 1, TokenID: "1:USDC", Amount: big.NewInt(990)},
		}},
		Events: []types.SwapEvent{{Type: types.EventSwap}},
	}

	Aggregate(swap)
	assert.Equal(t, types.StatusSuccess, swap.Status)
	assert.Equal(t, types.RouteSwap, swap.Type)
	assert.Equal(t, big.NewInt(990), swap.DstData.Amount)
	assert.Equal(t, common.HexToHash("0x01"), swap.DstTxHash)
	assert.Equal(t, time.Duration(0), swap.Duration)

	swap.DstData.Amount.SetInt64(1)
	assert.Equal(t, big.NewInt(990), swap.Hops[0].DstData.Amount, "destination data is a copy")
}

func TestAggregate_EmptySwapIsPending(t *testing.T) {
	swap := &types.Swap{Status: types.StatusSuccess}
	Aggregate(swap)
	assert.Equal(t, types.StatusPending, swap.Status)
}

func threeHopSwap() *types.Swap {
	ids := []common.Hash{common.HexToHash("0xa1"), common.HexToHash("0xa2"), common.HexToHash("0xa3")}
	swap := &types.Swap{}
	for i := 0; i < 3; i++ {
		hop := types.SwapHop{
			Index:     i,
			TxHash:    common.BigToHash(big.NewInt(int64(100 + i))),
			SentMsgID: ids[i],
			Status:    types.StatusSuccess,
		}
		if i > 0 {
			hop.ReceivedMsgID = ids[i-1]
		}
		swap.Hops = append(swap.Hops, hop)
	}
	return swap
}

func TestVerifyLinkage(t *testing.T) {
	swap := threeHopSwap()
	require.NoError(t, VerifyLinkage(swap))

	broken := threeHopSwap()
	broken.Hops[2].ReceivedMsgID = common.HexToHash("0xbad")
	err := VerifyLinkage(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hop 2")

	// Hops without data are not checked yet.
	pending := threeHopSwap()
	pending.Hops[2].TxHash = common.Hash{}
	pending.Hops[2].ReceivedMsgID = common.Hash{}
	assert.NoError(t, VerifyLinkage(pending))
}

func TestReplaceEvents_KeepsHopOrder(t *testing.T) {
	swap := &types.Swap{Events: []types.SwapEvent{
		{HopIndex: 0, Type: types.EventSwap},
		{HopIndex: 1, Type: types.EventSwap},
		{HopIndex: 2, Type: types.EventBridge},
	}}

	replaceEvents(swap, 1, []types.SwapEvent{
		{HopIndex: 1, Type: types.EventSwap},
		{HopIndex: 1, Type: types.EventBridge},
	})
	require.Len(t, swap.Events, 4)
	for i, want := range []int{0, 1, 1, 2} {
		assert.Equal(t, want, swap.Events[i].HopIndex)
	}

	replaceEvents(swap, 1, []types.SwapEvent{
		{HopIndex: 1, Type: types.EventSwap},
		{HopIndex: 1, Type: types.EventBridge},
	})
	assert.Len(t, swap.Events, 4)
}

func TestSearchFrom(t *testing.T) {
	tests := []struct {
		name        string
		lastChecked *uint64
		initiated   *uint64
		current     uint64
		want        uint64
	}{
		{"watermark wins", types.Uint64Ptr(100), types.Uint64Ptr(50), 101, 100},
		{"initiated block", nil, types.Uint64Ptr(50), 101, 50},
		{"lookback window", nil, nil, 1000, 900},
		{"window past genesis", nil, nil, 40, 0},
		{"clamped to current", nil, types.Uint64Ptr(500), 101, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, searchFrom(tt.lastChecked, tt.initiated, tt.current, 100))
		})
	}
}
