package history

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/types"
)

func sampleSwap(id string, created time.Time) *types.Swap {
	return &types.Swap{
		ID:         common.HexToHash(id),
		Account:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SrcData:    &types.SwapData{ChainID: 1, TokenID: "1:ALPHA", Amount: big.NewInt(1_000_000)},
		DstChainID: 3,
		DstTokenID: "3:USDC",
		Hops: []types.SwapHop{
			{
				Index:            0,
				SrcData:          &types.SwapData{ChainID: 1, TokenID: "1:ALPHA", Amount: big.NewInt(1_000_000)},
				DstData:          &types.SwapData{ChainID: 1, TokenID: "1:USDC", Amount: big.NewInt(990)},
				TxHash:           common.HexToHash(id),
				BlockNumber:      42,
				Timestamp:        1_700_000_000,
				SentMsgID:        common.HexToHash("0xabc"),
				Next:             types.NextHop,
				Status:           types.StatusSuccess,
				LastCheckedBlock: types.Uint64Ptr(42),
			},
			{
				Index:            1,
				SrcData:          &types.SwapData{ChainID: 2},
				Status:           types.StatusPending,
				SearchStartBlock: types.Uint64Ptr(100),
			},
		},
		Events: []types.SwapEvent{
			{
				HopIndex:  0,
				Type:      types.EventSwap,
				SrcData:   &types.SwapData{ChainID: 1, TokenID: "1:WALPHA", Amount: big.NewInt(1_000_000)},
				DstData:   &types.SwapData{ChainID: 1, TokenID: "1:USDC", Amount: big.NewInt(990)},
				Adapter:   common.HexToAddress("0xa2001"),
				TxHash:    common.HexToHash(id),
				Timestamp: 1_700_000_000,
				Status:    types.StatusSuccess,
			},
			{
				HopIndex: 0,
				Type:     types.EventBridge,
				SrcData:  &types.SwapData{ChainID: 1, TokenID: "1:USDC", Amount: big.NewInt(990)},
				DstData:  &types.SwapData{ChainID: 2, TokenID: "2:USDC"},
				TxHash:   common.HexToHash(id),
				Status:   types.StatusPending,
			},
		},
		Status:    types.StatusPending,
		Type:      types.RouteSwap,
		Duration:  1500 * time.Millisecond,
		CreatedAt: created.UTC(),
		UpdatedAt: created.UTC(),
	}
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	swap := sampleSwap("0x01", time.Unix(100, 0))

	require.NoError(t, store.Upsert(ctx, swap))
	swap.Status = types.StatusError
	swap.Hops[0].SrcData.Amount.SetInt64(1)

	got, err := store.Get(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, big.NewInt(1_000_000), got.Hops[0].SrcData.Amount)

	got.Hops[1].Status = types.StatusSuccess
	again, err := store.Get(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, again.Hops[1].Status)
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Repository{"memory": NewMemoryStore()}
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	stores["file"] = fs

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Upsert(ctx, sampleSwap("0x01", time.Unix(100, 0))))
			require.NoError(t, store.Upsert(ctx, sampleSwap("0x03", time.Unix(300, 0))))
			require.NoError(t, store.Upsert(ctx, sampleSwap("0x02", time.Unix(200, 0))))

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, common.HexToHash("0x03"), list[0].ID)
			assert.Equal(t, common.HexToHash("0x02"), list[1].ID)
			assert.Equal(t, common.HexToHash("0x01"), list[2].ID)
		})
	}
}

func TestFileStore_ReloadsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	swap := sampleSwap("0x0badf00d", time.Unix(1_700_000_000, 0))
	require.NoError(t, store.Upsert(ctx, swap))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, swap, got)

	_, err = reopened.Get(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_UpsertReplacesRecord(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	swap := sampleSwap("0x01", time.Unix(100, 0))
	require.NoError(t, store.Upsert(ctx, swap))

	swap.Status = types.StatusSuccess
	swap.DstData = &types.SwapData{ChainID: 3, TokenID: "3:USDC", Amount: big.NewInt(985)}
	swap.DstTxHash = common.HexToHash("0xfeed")
	require.NoError(t, store.Upsert(ctx, swap))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.StatusSuccess, list[0].Status)
	assert.Equal(t, big.NewInt(985), list[0].DstData.Amount)
	assert.Equal(t, common.HexToHash("0xfeed"), list[0].DstTxHash)
}

func TestFileStore_SharedPathKeepsOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")

	daemon, err := NewFileStore(path)
	require.NoError(t, err)
	cli, err := NewFileStore(path)
	require.NoError(t, err)

	registered := sampleSwap("0x0a", time.Unix(100, 0))
	require.NoError(t, cli.Upsert(ctx, registered))

	list, err := daemon.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, registered.ID, list[0].ID)

	require.NoError(t, daemon.Upsert(ctx, sampleSwap("0x0b", time.Unix(200, 0))))

	fresh, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fresh.Get(ctx, registered.ID)
	require.NoError(t, err)
	_, err = fresh.Get(ctx, common.HexToHash("0x0b"))
	require.NoError(t, err)

	updated := sampleSwap("0x0a", time.Unix(100, 0))
	updated.Status = types.StatusSuccess
	require.NoError(t, daemon.Upsert(ctx, updated))
	got, err := cli.Get(ctx, updated.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, got.Status)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestRecord_RejectsBadFields(t *testing.T) {
	rec := NewRecord(sampleSwap("0x01", time.Unix(100, 0)))

	bad := rec
	bad.ID = "0x1234"
	_, err := bad.Swap()
	assert.ErrorContains(t, err, "id")

	bad = rec
	bad.SrcData = &DataRecord{ChainID: 1, TokenID: "1:ALPHA", Amount: "12abc"}
	_, err = bad.Swap()
	assert.ErrorContains(t, err, "invalid amount")

	bad = rec
	bad.Account = "nope"
	_, err = bad.Swap()
	assert.ErrorContains(t, err, "account")
}

func TestRecord_LeavesUnsetHashesOut(t *testing.T) {
	rec := NewRecord(sampleSwap("0x01", time.Unix(100, 0)))
	assert.Empty(t, rec.DstTxHash)
	assert.Empty(t, rec.Hops[1].TxHash)
	assert.Empty(t, rec.Events[1].Adapter)
	assert.Equal(t, int64(1500), rec.DurationMs)
}
