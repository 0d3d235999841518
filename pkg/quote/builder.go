// Package quote discovers, prices and ranks cross-chain routes between cells.
package quote

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

// ErrInvalidRequest is returned by Build for requests that can never be
// routed.
var ErrInvalidRequest = errors.New("invalid quote request")

// Builder enumerates unpriced candidate routes from registry data.
type Builder struct {
	registry registry.Registry
	logger   zerolog.Logger
}

func NewBuilder(r registry.Registry, logger zerolog.Logger) *Builder {
	return &Builder{
		registry: r,
		logger:   logger.With().Str("component", "quote-builder").Logger(),
	}
}

// station is a cell visited by a candidate route.
type station struct {
	chain *types.Chain
	cells []types.Cell
	swap  bool
}

// Build returns every structurally valid route for req. Candidates that are
// infeasible (a required swap on a chain without swap cells, a cell not
// accepting the action) are dropped silently, so an empty result is not an
// error.
func (b *Builder) Build(req types.QuoteRequest) ([]types.RouteQuoteData, error) {
	srcChain, dstChain, err := b.validate(req)
	if err != nil {
		return nil, err
	}

	if srcChain.ID == dstChain.ID {
		return b.sameChain(req, srcChain), nil
	}

	var routes []types.RouteQuoteData
	for _, path := range b.bridgePaths(srcChain.ID, dstChain.ID) {
		routes = append(routes, b.bridged(req, path)...)
	}

	b.logger.Debug().
		Uint64("src_chain", req.SrcChainID).
		Str("src_token", req.SrcTokenID).
		Uint64("dst_chain", req.DstChainID).
		Str("dst_token", req.DstTokenID).
		Int("routes", len(routes)).
		Msg("built route candidates")

	return routes, nil
}

func (b *Builder) validate(req types.QuoteRequest) (*types.Chain, *types.Chain, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	srcChain, ok := b.registry.GetChain(req.SrcChainID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown source chain %d", ErrInvalidRequest, req.SrcChainID)
	}
	dstChain, ok := b.registry.GetChain(req.DstChainID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown destination chain %d", ErrInvalidRequest, req.DstChainID)
	}
	if _, ok := b.registry.GetToken(req.SrcTokenID, req.SrcChainID); !ok {
		return nil, nil, fmt.Errorf("%w: token %s not on chain %d", ErrInvalidRequest, req.SrcTokenID, req.SrcChainID)
	}
	if _, ok := b.registry.GetToken(req.DstTokenID, req.DstChainID); !ok {
		return nil, nil, fmt.Errorf("%w: token %s not on chain %d", ErrInvalidRequest, req.DstTokenID, req.DstChainID)
	}
	if req.SrcChainID == req.DstChainID && req.SrcTokenID == req.DstTokenID {
		return nil, nil, fmt.Errorf("%w: source and destination are the same token", ErrInvalidRequest)
	}
	return srcChain, dstChain, nil
}

// sameChain produces one SwapAndTransfer route per swap cell.
func (b *Builder) sameChain(req types.QuoteRequest, chain *types.Chain) []types.RouteQuoteData {
	var routes []types.RouteQuoteData
	for _, cell := range chain.SwapCells() {
		if !cell.Supports(types.ActionSwapAndTransfer) {
			continue
		}
		hop := types.HopQuoteData{
			Action:     types.ActionSwapAndTransfer,
			SrcChainID: chain.ID,
			SrcCell:    cell.Address,
			SrcTokenID: req.SrcTokenID,
			SrcAmount:  new(big.Int).Set(req.Amount),
			DstChainID: chain.ID,
			DstCell:    cell.Address,
			DstTokenID: req.DstTokenID,
			Steps: []types.StepQuoteData{
				swapStep(chain.ID, req.SrcTokenID, req.DstTokenID, req.Amount),
			},
		}
		routes = append(routes, types.RouteQuoteData{
			Type:       types.RouteSwap,
			SrcChainID: req.SrcChainID,
			SrcTokenID: req.SrcTokenID,
			SrcAmount:  new(big.Int).Set(req.Amount),
			DstChainID: req.DstChainID,
			DstTokenID: req.DstTokenID,
			Hops:       []types.HopQuoteData{hop},
		})
	}
	return routes
}

// bridgePaths lists direct paths and paths through exactly one interim chain.
func (b *Builder) bridgePaths(srcChainID, dstChainID uint64) []types.BridgePath {
	var paths []types.BridgePath
	for _, token := range b.registry.TokensOnChain(srcChainID) {
		for _, first := range token.Bridges {
			firstEdge := edge(token, first)
			if first.DstChainID == dstChainID {
				paths = append(paths, types.BridgePath{Legs: []types.BridgeRoute{firstEdge}})
				continue
			}
			if first.DstChainID == srcChainID {
				continue
			}
			for _, interimToken := range b.registry.TokensOnChain(first.DstChainID) {
				for _, second := range interimToken.BridgeTo(dstChainID) {
					paths = append(paths, types.BridgePath{
						Legs: []types.BridgeRoute{firstEdge, edge(interimToken, second)},
					})
				}
			}
		}
	}
	return paths
}

func edge(token *types.Token, bridge types.TokenBridge) types.BridgeRoute {
	return types.BridgeRoute{
		Bridge:     bridge,
		SrcChainID: token.ChainID,
		SrcTokenID: token.ID,
		DstChainID: bridge.DstChainID,
		DstTokenID: bridge.DstTokenID,
	}
}

// bridged expands one bridge path into routes, one per combination of cells
// on the sides that need a swap.
func (b *Builder) bridged(req types.QuoteRequest, path types.BridgePath) []types.RouteQuoteData {
	first, last := path.First(), path.Last()

	var stations []station
	src, ok := b.station(first.SrcChainID, req.SrcTokenID != first.SrcTokenID)
	if !ok {
		return nil
	}
	stations = append(stations, src)

	if !path.IsDirect() {
		interim, ok := b.station(first.DstChainID, first.DstTokenID != last.SrcTokenID)
		if !ok {
			return nil
		}
		stations = append(stations, interim)
	}

	if last.DstTokenID != req.DstTokenID {
		dst, ok := b.station(last.DstChainID, true)
		if !ok {
			return nil
		}
		stations = append(stations, dst)
	}

	var routes []types.RouteQuoteData
	for _, cells := range product(stations) {
		hops, ok := b.hopChain(req, path, stations, cells)
		if !ok {
			continue
		}
		route := types.RouteQuoteData{
			Type:       types.RouteBridge,
			SrcChainID: req.SrcChainID,
			SrcTokenID: req.SrcTokenID,
			SrcAmount:  new(big.Int).Set(req.Amount),
			DstChainID: req.DstChainID,
			DstTokenID: req.DstTokenID,
			Hops:       hops,
		}
		if last := hops[len(hops)-1]; last.DstAmount != nil {
			route.DstAmount = new(big.Int).Set(last.DstAmount)
		}
		routes = append(routes, route)
	}
	return routes
}

// station picks the candidate cells of a chain: every swap cell when a swap is
// needed there, otherwise the chain's primary cell.
func (b *Builder) station(chainID uint64, swap bool) (station, bool) {
	chain, ok := b.registry.GetChain(chainID)
	if !ok {
		return station{}, false
	}
	if swap {
		cells := chain.SwapCells()
		if len(cells) == 0 {
			return station{}, false
		}
		return station{chain: chain, cells: cells, swap: true}, true
	}
	primary, ok := chain.PrimaryCell()
	if !ok {
		return station{}, false
	}
	return station{chain: chain, cells: []types.Cell{primary}}, true
}

// product returns the cartesian product of the stations' cells.
func product(stations []station) [][]types.Cell {
	combos := [][]types.Cell{{}}
	for _, s := range stations {
		var next [][]types.Cell
		for _, combo := range combos {
			for _, cell := range s.cells {
				c := make([]types.Cell, len(combo), len(combo)+1)
				copy(c, combo)
				next = append(next, append(c, cell))
			}
		}
		combos = next
	}
	return combos
}

// hopChain lays out the hops of one candidate. stations[0] is the source
// chain; a second bridging station is the interim chain; a station on the
// destination chain only exists to run the trailing swap.
func (b *Builder) hopChain(req types.QuoteRequest, path types.BridgePath, stations []station, cells []types.Cell) ([]types.HopQuoteData, bool) {
	var hops []types.HopQuoteData
	amount := new(big.Int).Set(req.Amount)
	tokenID := req.SrcTokenID

	for i, leg := range path.Legs {
		st := stations[i]
		cell := cells[i]

		var nextCell types.Cell
		hasNext := i+1 < len(stations)
		if hasNext {
			nextCell = cells[i+1]
		}

		action := types.ActionHop
		switch {
		case st.swap:
			action = types.ActionSwapAndHop
		case i == 0 && hasNext:
			action = types.ActionHopAndCall
		}
		if !cell.Supports(action) {
			return nil, false
		}

		bridge := leg.Bridge
		hop := types.HopQuoteData{
			Action:     action,
			SrcChainID: leg.SrcChainID,
			SrcCell:    cell.Address,
			SrcTokenID: tokenID,
			SrcAmount:  cloneInt(amount),
			DstChainID: leg.DstChainID,
			DstCell:    nextCell.Address,
			DstTokenID: leg.DstTokenID,
			Bridge:     &bridge,
		}

		if st.swap {
			hop.Steps = append(hop.Steps, swapStep(leg.SrcChainID, tokenID, leg.SrcTokenID, amount))
			amount = nil
		}
		hop.Steps = append(hop.Steps, bridgeStep(leg, amount))
		hop.DstAmount = cloneInt(amount)

		hops = append(hops, hop)
		tokenID = leg.DstTokenID
	}

	if len(stations) > len(path.Legs) {
		st := stations[len(stations)-1]
		cell := cells[len(cells)-1]
		if !cell.Supports(types.ActionSwapAndTransfer) {
			return nil, false
		}
		hops = append(hops, types.HopQuoteData{
			Action:     types.ActionSwapAndTransfer,
			SrcChainID: st.chain.ID,
			SrcCell:    cell.Address,
			SrcTokenID: tokenID,
			SrcAmount:  cloneInt(amount),
			DstChainID: st.chain.ID,
			DstCell:    cell.Address,
			DstTokenID: req.DstTokenID,
			Steps:      []types.StepQuoteData{swapStep(st.chain.ID, tokenID, req.DstTokenID, amount)},
		})
	}

	return hops, true
}

func swapStep(chainID uint64, srcTokenID, dstTokenID string, amount *big.Int) types.StepQuoteData {
	return types.StepQuoteData{
		Type:       types.StepSwap,
		SrcChainID: chainID,
		SrcTokenID: srcTokenID,
		SrcAmount:  cloneInt(amount),
		DstChainID: chainID,
		DstTokenID: dstTokenID,
	}
}

// bridgeStep moves amount unchanged across the leg; a nil amount stays
// unknown until the preceding swap is simulated.
func bridgeStep(leg types.BridgeRoute, amount *big.Int) types.StepQuoteData {
	return types.StepQuoteData{
		Type:       types.StepBridge,
		SrcChainID: leg.SrcChainID,
		SrcTokenID: leg.SrcTokenID,
		SrcAmount:  cloneInt(amount),
		DstChainID: leg.DstChainID,
		DstTokenID: leg.DstTokenID,
		DstAmount:  cloneInt(amount),
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
