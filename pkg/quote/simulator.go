package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/chain"
	"cellroute/pkg/metrics"
	"cellroute/pkg/types"
)

// ErrCellNoRoute is returned when a cell finds no swap path for a pair.
var ErrCellNoRoute = errors.New("cell returned no route")

// SimulateRequest describes one dry-run swap through a cell.
type SimulateRequest struct {
	Chain        *types.Chain
	Cell         types.Cell
	TokenIn      *types.Token
	TokenOut     *types.Token
	AmountIn     *big.Int
	SlippageBips uint64
}

// Simulation is the outcome of a dry-run swap. AmountOut is the trade's
// minimum output, which for zero slippage is the expected output.
type Simulation struct {
	Trade       []byte
	AmountOut   *big.Int
	GasEstimate uint64
}

// Simulator prices a single swap leg.
type Simulator interface {
	Simulate(ctx context.Context, req SimulateRequest) (*Simulation, error)
}

var (
	uint256Type   = mustType("uint256")
	addressesType = mustType("address[]")

	tradeArgs = abi.Arguments{
		{Name: "amountIn", Type: uint256Type},
		{Name: "minAmountOut", Type: uint256Type},
		{Name: "path", Type: addressesType},
		{Name: "adapters", Type: addressesType},
		{Name: "recipients", Type: addressesType},
	}
	yakExtrasArgs = abi.Arguments{
		{Name: "slippageBips", Type: uint256Type},
		{Name: "maxSteps", Type: uint256Type},
		{Name: "gasPrice", Type: uint256Type},
	}
	uniswapExtrasArgs = abi.Arguments{
		{Name: "slippageBips", Type: uint256Type},
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Trade is the swap payload a cell returns from route and expects back in
// the hop instructions.
type Trade struct {
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Path         []common.Address
	Adapters     []common.Address
	Recipients   []common.Address
}

func (t Trade) Encode() ([]byte, error) {
	return tradeArgs.Pack(t.AmountIn, t.MinAmountOut, t.Path, t.Adapters, t.Recipients)
}

func DecodeTrade(data []byte) (*Trade, error) {
	values, err := tradeArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trade: %w", err)
	}
	return &Trade{
		AmountIn:     values[0].(*big.Int),
		MinAmountOut: values[1].(*big.Int),
		Path:         values[2].([]common.Address),
		Adapters:     values[3].([]common.Address),
		Recipients:   values[4].([]common.Address),
	}, nil
}

// DefaultMaxSteps bounds the aggregator's path search.
const DefaultMaxSteps = 3

// CellSimulator runs the cell's route view call through an RPC client.
type CellSimulator struct {
	clients  chain.Clients
	metrics  *metrics.Metrics
	maxSteps uint64
}

func NewCellSimulator(clients chain.Clients, m *metrics.Metrics) *CellSimulator {
	return &CellSimulator{clients: clients, metrics: m, maxSteps: DefaultMaxSteps}
}

// Simulate packs route(amountIn, tokenIn, tokenOut, extras), calls the cell
// and decodes (trade, gasEstimate).
func (s *CellSimulator) Simulate(ctx context.Context, req SimulateRequest) (*Simulation, error) {
	sim, err := s.simulate(ctx, req)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordSimulation(req.Chain.Name, result)
	return sim, err
}

func (s *CellSimulator) simulate(ctx context.Context, req SimulateRequest) (*Simulation, error) {
	client, err := s.clients.Client(req.Chain.ID)
	if err != nil {
		return nil, err
	}

	extras, err := s.extras(req)
	if err != nil {
		return nil, err
	}

	input, err := chain.CellABI.Pack("route", req.AmountIn, req.TokenIn.Address, req.TokenOut.Address, extras)
	if err != nil {
		return nil, fmt.Errorf("failed to pack route call: %w", err)
	}

	cell := req.Cell.Address
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &cell, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("route call on cell %s failed: %w", cell.Hex(), err)
	}

	values, err := chain.CellABI.Unpack("route", output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route result: %w", err)
	}
	tradeBytes, _ := values[0].([]byte)
	gas, _ := values[1].(*big.Int)
	if len(tradeBytes) == 0 {
		return nil, ErrCellNoRoute
	}

	trade, err := DecodeTrade(tradeBytes)
	if err != nil {
		return nil, err
	}
	if trade.MinAmountOut.Sign() == 0 {
		return nil, ErrCellNoRoute
	}

	sim := &Simulation{Trade: tradeBytes, AmountOut: trade.MinAmountOut}
	if gas != nil && gas.IsUint64() {
		sim.GasEstimate = gas.Uint64()
	}
	return sim, nil
}

// extras encodes the cell-specific route arguments.
func (s *CellSimulator) extras(req SimulateRequest) ([]byte, error) {
	slippage := new(big.Int).SetUint64(req.SlippageBips)
	switch req.Cell.Kind {
	case types.CellUniswapV2:
		return uniswapExtrasArgs.Pack(slippage)
	case types.CellYakSwap:
		gwei := req.Chain.GasPrice.Base + req.Chain.GasPrice.Priority
		gasPrice := new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(1_000_000_000))
		return yakExtrasArgs.Pack(slippage, new(big.Int).SetUint64(s.maxSteps), gasPrice)
	default:
		return nil, fmt.Errorf("cell kind %q cannot swap", req.Cell.Kind)
	}
}
