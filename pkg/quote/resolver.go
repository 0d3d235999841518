package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

// Gap names why a candidate produced no route. Gaps are expected outcomes,
// not errors: callers skip the candidate.
type Gap int

const (
	GapNone       Gap = iota
	GapRegistry       // A chain, token or cell is missing from the registry
	GapSimulation     // A route simulation failed or returned nothing
	GapIncomplete     // Some hop still has no destination amount
)

func (g Gap) String() string {
	switch g {
	case GapNone:
		return "none"
	case GapRegistry:
		return "registry"
	case GapSimulation:
		return "simulation"
	case GapIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// QueryKind labels swap legs in the order they must be simulated.
type QueryKind int

const (
	QueryPrimary QueryKind = iota
	QuerySecondary
	QueryFinal
)

func (k QueryKind) String() string {
	switch k {
	case QueryPrimary:
		return "primary"
	case QuerySecondary:
		return "secondary"
	default:
		return "final"
	}
}

// SwapQuery is one simulation the resolver issues for a route.
type SwapQuery struct {
	Kind     QueryKind
	HopIndex int
	Step     types.StepQuoteData
}

// Plan lists the swap legs of data in dependency order. Each leg consumes the
// output of the previous one, so they can only be simulated sequentially.
func Plan(data *types.RouteQuoteData) []SwapQuery {
	var queries []SwapQuery
	for i := range data.Hops {
		step, ok := data.Hops[i].SwapStep()
		if !ok {
			continue
		}
		kind := QueryFinal
		if len(queries) < int(QueryFinal) {
			kind = QueryKind(len(queries))
		}
		queries = append(queries, SwapQuery{Kind: kind, HopIndex: i, Step: *step})
	}
	return queries
}

// BalanceFunc returns the caller's balance of token on its chain.
type BalanceFunc func(ctx context.Context, token *types.Token) (*big.Int, error)

// ResolverConfig holds the pricing parameters of a Resolver.
type ResolverConfig struct {
	SlippageBips  uint64 // Used for the minimum amount pass
	Confirmations int    // Blocks waited per hop in duration estimates
	Parallel      int    // Routes resolved concurrently by ResolveAll
}

// Resolver prices route candidates by simulating their swap legs on chain.
type Resolver struct {
	registry  registry.Registry
	simulator Simulator
	cfg       ResolverConfig
	logger    zerolog.Logger
}

func NewResolver(r registry.Registry, sim Simulator, cfg ResolverConfig, logger zerolog.Logger) *Resolver {
	if cfg.Confirmations <= 0 {
		cfg.Confirmations = 1
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	return &Resolver{
		registry:  r,
		simulator: sim,
		cfg:       cfg,
		logger:    logger.With().Str("component", "quote-resolver").Logger(),
	}
}

// Resolve simulates every swap leg of data twice (expected and minimum),
// threading amounts hop to hop, and fills data in place. It returns the
// priced route, or nil and the gap that prevented it.
func (r *Resolver) Resolve(ctx context.Context, data *types.RouteQuoteData, balance BalanceFunc) (*types.Route, Gap) {
	hops := make([]types.HopQuote, len(data.Hops))
	for i := range data.Hops {
		hq, ok := r.lookupHop(data.Hops[i])
		if !ok {
			return nil, GapRegistry
		}
		hops[i] = hq
	}
	if len(hops) == 0 {
		return nil, GapIncomplete
	}

	amount := cloneInt(data.SrcAmount)
	minAmount := cloneInt(data.SrcAmount)
	for _, q := range Plan(data) {
		// Legs between swaps carry the amount unchanged.
		for i := 0; i < q.HopIndex; i++ {
			passThrough(&data.Hops[i])
		}

		hop := &data.Hops[q.HopIndex]
		hop.SrcAmount = cloneInt(amount)
		hop.MinSrcAmount = cloneInt(minAmount)

		tokenIn, okIn := r.registry.GetToken(q.Step.SrcTokenID, q.Step.SrcChainID)
		tokenOut, okOut := r.registry.GetToken(q.Step.DstTokenID, q.Step.DstChainID)
		if !okIn || !okOut {
			return nil, GapRegistry
		}
		chain := hops[q.HopIndex].SrcChain
		cell, ok := chain.Cell(hop.SrcCell)
		if !ok {
			return nil, GapRegistry
		}

		req := SimulateRequest{
			Chain:    chain,
			Cell:     cell,
			TokenIn:  r.swapToken(tokenIn),
			TokenOut: r.swapToken(tokenOut),
		}

		req.AmountIn, req.SlippageBips = amount, 0
		expected, err := r.simulator.Simulate(ctx, req)
		if err != nil || expected == nil || expected.AmountOut == nil {
			r.logger.Debug().Err(err).Str("leg", q.Kind.String()).Msg("expected simulation failed")
			return nil, GapSimulation
		}

		req.AmountIn, req.SlippageBips = minAmount, r.cfg.SlippageBips
		minimum, err := r.simulator.Simulate(ctx, req)
		if err != nil || minimum == nil || minimum.AmountOut == nil {
			r.logger.Debug().Err(err).Str("leg", q.Kind.String()).Msg("minimum simulation failed")
			return nil, GapSimulation
		}

		hop.Trade = expected.Trade
		hop.MinTrade = minimum.Trade
		hop.GasEstimate = expected.GasEstimate

		amount = cloneInt(expected.AmountOut)
		minAmount = cloneInt(minimum.AmountOut)

		for s := range hop.Steps {
			step := &hop.Steps[s]
			switch step.Type {
			case types.StepSwap:
				step.SrcAmount = cloneInt(hop.SrcAmount)
				step.DstAmount = cloneInt(amount)
			case types.StepBridge:
				step.SrcAmount = cloneInt(amount)
				step.DstAmount = cloneInt(amount)
			}
		}
		hop.DstAmount = cloneInt(amount)
		hop.MinDstAmount = cloneInt(minAmount)

		// The next hop starts from this output.
		if q.HopIndex+1 < len(data.Hops) {
			next := &data.Hops[q.HopIndex+1]
			next.SrcAmount = cloneInt(amount)
			next.MinSrcAmount = cloneInt(minAmount)
		}
	}
	for i := range data.Hops {
		passThrough(&data.Hops[i])
	}

	for i := range data.Hops {
		if !data.Hops[i].Resolved() {
			return nil, GapIncomplete
		}
		hops[i].HopQuoteData = data.Hops[i]
	}
	last := data.Hops[len(data.Hops)-1]
	data.DstAmount = cloneInt(last.DstAmount)

	return r.route(ctx, data, hops, balance)
}

// passThrough fills the amounts of a swap-less hop from its source amount.
func passThrough(hop *types.HopQuoteData) {
	if hop.Action.Swaps() || hop.SrcAmount == nil {
		return
	}
	if hop.MinSrcAmount == nil {
		hop.MinSrcAmount = cloneInt(hop.SrcAmount)
	}
	hop.DstAmount = cloneInt(hop.SrcAmount)
	hop.MinDstAmount = cloneInt(hop.MinSrcAmount)
	for s := range hop.Steps {
		hop.Steps[s].SrcAmount = cloneInt(hop.SrcAmount)
		hop.Steps[s].DstAmount = cloneInt(hop.SrcAmount)
	}
}

func (r *Resolver) route(ctx context.Context, data *types.RouteQuoteData, hops []types.HopQuote, balance BalanceFunc) (*types.Route, Gap) {
	first, last := hops[0], hops[len(hops)-1]

	srcToken, ok := r.registry.GetToken(data.SrcTokenID, data.SrcChainID)
	if !ok {
		return nil, GapRegistry
	}
	dstToken, ok := r.registry.GetToken(data.DstTokenID, data.DstChainID)
	if !ok {
		return nil, GapRegistry
	}
	dstChain, ok := r.registry.GetChain(data.DstChainID)
	if !ok {
		return nil, GapRegistry
	}

	srcCell, _ := first.SrcChain.Cell(first.SrcCell)
	dstCell, _ := dstChain.Cell(last.DstCell)

	route := &types.Route{
		Type:         data.Type,
		SrcChain:     first.SrcChain,
		SrcCell:      srcCell,
		SrcToken:     srcToken,
		SrcAmount:    cloneInt(data.SrcAmount),
		DstChain:     dstChain,
		DstCell:      dstCell,
		DstToken:     dstToken,
		DstAmount:    cloneInt(last.DstAmount),
		MinDstAmount: cloneInt(last.MinDstAmount),
		Hops:         hops,
	}

	confirmations := time.Duration(r.cfg.Confirmations)
	for _, hop := range hops {
		route.TotalGas += hop.GasEstimate
		route.Duration += hop.SrcChain.AvgBlockTime * confirmations
		for _, step := range hop.Steps {
			action, ok := r.action(step)
			if !ok {
				return nil, GapRegistry
			}
			route.Actions = append(route.Actions, action)
		}
	}
	// A final bridge still has to be delivered on the destination chain.
	if last.Action.Bridges() {
		route.Duration += last.DstChain.AvgBlockTime * confirmations
	}

	if len(route.Actions) == 0 {
		return nil, GapIncomplete
	}

	if balance != nil {
		bal, err := balance(ctx, srcToken)
		route.SufficientBalance = err == nil && bal != nil && bal.Cmp(route.SrcAmount) >= 0
	}

	return route, GapNone
}

func (r *Resolver) action(step types.StepQuoteData) (types.RouteAction, bool) {
	srcToken, ok := r.registry.GetToken(step.SrcTokenID, step.SrcChainID)
	if !ok {
		return types.RouteAction{}, false
	}
	dstToken, ok := r.registry.GetToken(step.DstTokenID, step.DstChainID)
	if !ok {
		return types.RouteAction{}, false
	}
	return types.RouteAction{
		Type:               step.Type,
		SrcChainID:         step.SrcChainID,
		SrcTokenID:         step.SrcTokenID,
		SrcAmount:          cloneInt(step.SrcAmount),
		SrcAmountFormatted: FormatAmount(step.SrcAmount, srcToken.Decimals),
		DstChainID:         step.DstChainID,
		DstTokenID:         step.DstTokenID,
		DstAmount:          cloneInt(step.DstAmount),
		DstAmountFormatted: FormatAmount(step.DstAmount, dstToken.Decimals),
	}, true
}

func (r *Resolver) lookupHop(h types.HopQuoteData) (types.HopQuote, bool) {
	srcChain, ok := r.registry.GetChain(h.SrcChainID)
	if !ok || !srcChain.IsCell(h.SrcCell) {
		return types.HopQuote{}, false
	}
	dstChain, ok := r.registry.GetChain(h.DstChainID)
	if !ok {
		return types.HopQuote{}, false
	}
	if h.DstCell != (common.Address{}) && !dstChain.IsCell(h.DstCell) {
		return types.HopQuote{}, false
	}
	srcToken, ok := r.registry.GetToken(h.SrcTokenID, h.SrcChainID)
	if !ok {
		return types.HopQuote{}, false
	}
	dstToken, ok := r.registry.GetToken(h.DstTokenID, h.DstChainID)
	if !ok {
		return types.HopQuote{}, false
	}
	return types.HopQuote{
		HopQuoteData: h,
		SrcChain:     srcChain,
		DstChain:     dstChain,
		SrcToken:     srcToken,
		DstToken:     dstToken,
	}, true
}

// swapToken maps a native token to the chain's wrapped native token, which
// is what cells swap through.
func (r *Resolver) swapToken(t *types.Token) *types.Token {
	if !t.IsNative {
		return t
	}
	for _, other := range r.registry.TokensOnChain(t.ChainID) {
		if other.IsWrappedNative {
			return other
		}
	}
	return t
}

// ResolveAll resolves candidates concurrently and returns the priced routes
// in candidate order, skipping gaps.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []types.RouteQuoteData, balance BalanceFunc) []*types.Route {
	results := make([]*types.Route, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.cfg.Parallel)
	for i := range candidates {
		g.Go(func() error {
			route, gap := r.Resolve(ctx, &candidates[i], balance)
			if gap != GapNone {
				r.logger.Debug().Int("candidate", i).Stringer("gap", gap).Msg("route skipped")
				return nil
			}
			results[i] = route
			return nil
		})
	}
	_ = g.Wait()

	routes := make([]*types.Route, 0, len(results))
	for _, route := range results {
		if route != nil {
			routes = append(routes, route)
		}
	}
	return routes
}
