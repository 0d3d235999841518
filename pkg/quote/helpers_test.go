package quote

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"cellroute/pkg/registry"
	"cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

// fakeSimulator prices every swap at rate/10000 of the input, minus slippage.
type fakeSimulator struct {
	mu    sync.Mutex
	rate  int64
	fixed *big.Int // when set, every swap returns exactly this before slippage
	fail  map[common.Address]bool
	calls []SimulateRequest
}

func newFakeSimulator(rate int64) *fakeSimulator {
	return &fakeSimulator{rate: rate, fail: make(map[common.Address]bool)}
}

func (f *fakeSimulator) Simulate(ctx context.Context, req SimulateRequest) (*Simulation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if f.fail[req.Cell.Address] {
		return nil, errors.New("execution reverted")
	}

	out := new(big.Int)
	if f.fixed != nil {
		out.Set(f.fixed)
	} else {
		out.Mul(req.AmountIn, big.NewInt(f.rate))
		out.Div(out, big.NewInt(10_000))
	}
	out.Mul(out, big.NewInt(int64(10_000-req.SlippageBips)))
	out.Div(out, big.NewInt(10_000))

	trade, err := Trade{
		AmountIn:     req.AmountIn,
		MinAmountOut: out,
		Path:         []common.Address{req.TokenIn.Address, req.TokenOut.Address},
		Adapters:     []common.Address{{0x01}},
		Recipients:   []common.Address{req.Cell.Address},
	}.Encode()
	if err != nil {
		return nil, err
	}
	return &Simulation{Trade: trade, AmountOut: out, GasEstimate: 150_000}, nil
}

func (f *fakeSimulator) requests() []SimulateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SimulateRequest(nil), f.calls...)
}

func testRegistry() *registry.Static {
	return registrytest.New()
}

func testBuilder() *Builder {
	return NewBuilder(testRegistry(), zerolog.Nop())
}

func request(srcChain uint64, srcToken string, dstChain uint64, dstToken string, amount int64) types.QuoteRequest {
	return types.QuoteRequest{
		SrcChainID: srcChain,
		SrcTokenID: srcToken,
		Amount:     big.NewInt(amount),
		DstChainID: dstChain,
		DstTokenID: dstToken,
	}
}

func actions(route types.RouteQuoteData) []types.HopAction {
	var out []types.HopAction
	for _, h := range route.Hops {
		out = append(out, h.Action)
	}
	return out
}
