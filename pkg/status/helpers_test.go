package status

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/chain/chaintest"
	"cellroute/pkg/history"
	"cellroute/pkg/notify"
	"cellroute/pkg/registry"
	rt "cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

var (
	account   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	relayer   = common.HexToAddress("0x3333333333333333333333333333333333333333")

	sourceTx = common.HexToHash("0x5000000000000000000000000000000000000000000000000000000000000001")
	betaTx   = common.HexToHash("0x5000000000000000000000000000000000000000000000000000000000000002")
	gammaTx  = common.HexToHash("0x5000000000000000000000000000000000000000000000000000000000000003")

	msgAlphaBeta = common.HexToHash("0x6000000000000000000000000000000000000000000000000000000000000001")
	msgBetaGamma = common.HexToHash("0x6000000000000000000000000000000000000000000000000000000000000002")
)

type harness struct {
	tracker  *Tracker
	repo     *history.MemoryStore
	notes    *notify.Recorder
	clients  chaintest.Clients
	alpha    *chaintest.Client
	beta     *chaintest.Client
	gamma    *chaintest.Client
	registry *registry.Static
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		repo:  history.NewMemoryStore(),
		notes: &notify.Recorder{},
		alpha: chaintest.New(50),
		beta:  chaintest.New(200),
		gamma: chaintest.New(300),
	}
	h.clients = chaintest.Clients{rt.AlphaID: h.alpha, rt.BetaID: h.beta, rt.GammaID: h.gamma}
	reg := rt.New()
	h.registry = reg
	h.tracker = NewTracker(reg, h.clients, h.repo, h.notes, nil, cfg, zerolog.Nop())
	h.tracker.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return h
}

// track registers the alpha -> gamma swap used by most tests.
func (h *harness) track(t *testing.T) *types.Swap {
	t.Helper()
	swap, err := h.tracker.Track(context.Background(), TrackRequest{
		TxHash:     sourceTx,
		ChainID:    rt.AlphaID,
		Account:    account,
		Recipient:  recipient,
		SrcTokenID: rt.AlphaNative,
		Amount:     big.NewInt(1e18),
		DstChainID: rt.GammaID,
		DstTokenID: rt.GammaUSDC,
	})
	require.NoError(t, err)
	return swap
}

func (h *harness) get(t *testing.T) *types.Swap {
	t.Helper()
	swap, err := h.repo.Get(context.Background(), sourceTx)
	require.NoError(t, err)
	return swap
}

// sourceReceipt swaps native ALPHA into USDC on alpha and sends it to the
// beta cell.
func sourceReceipt(block uint64) *ethtypes.Receipt {
	return chaintest.Receipt(sourceTx, block,
		chaintest.Initiated(rt.AlphaYakCell, account, common.Address{}, big.NewInt(1e18)),
		chaintest.Deposit(rt.AlphaWNatAddr, rt.AlphaYakCell, big.NewInt(1e18)),
		chaintest.YakAdapterSwap(rt.AlphaYakAdapter, rt.AlphaWNatAddr, rt.AlphaUSDCAddr, big.NewInt(1e18), big.NewInt(990)),
		chaintest.TokensAndCallSent(rt.AlphaUSDCHome, msgAlphaBeta, rt.AlphaYakCell, rt.BetaBlockchain, rt.BetaYakCell, big.NewInt(990)),
		chaintest.SendCrossChainMessage(rt.AlphaMessenger, msgAlphaBeta, rt.BetaBlockchain),
	)
}

// betaReceipt receives the USDC on beta and bridges it on to the recipient
// on gamma.
func betaReceipt(block uint64) *ethtypes.Receipt {
	return chaintest.Receipt(betaTx, block,
		chaintest.ReceiveCrossChainMessage(rt.BetaMessenger, msgAlphaBeta, rt.AlphaBlockchain, relayer),
		chaintest.Transfer(rt.BetaUSDCAddr, common.Address{}, rt.BetaYakCell, big.NewInt(990)),
		chaintest.CellReceivedTokens(rt.BetaYakCell, rt.AlphaBlockchain, rt.AlphaUSDCHome, rt.AlphaYakCell, rt.BetaUSDCAddr, big.NewInt(990)),
		chaintest.TokensSent(rt.BetaUSDCHome, msgBetaGamma, rt.BetaYakCell, rt.GammaBlockchain, recipient, big.NewInt(985)),
		chaintest.SendCrossChainMessage(rt.BetaMessenger, msgBetaGamma, rt.GammaBlockchain),
	)
}

// gammaReceipt delivers the USDC to the recipient on gamma.
func gammaReceipt(block uint64) *ethtypes.Receipt {
	return chaintest.Receipt(gammaTx, block,
		chaintest.ReceiveCrossChainMessage(rt.GammaMessenger, msgBetaGamma, rt.BetaBlockchain, relayer),
		chaintest.Transfer(rt.GammaUSDCAddr, common.Address{}, recipient, big.NewInt(985)),
	)
}

func withTx(l *ethtypes.Log, tx common.Hash, block uint64) *ethtypes.Log {
	l.TxHash = tx
	l.BlockNumber = block
	return l
}
