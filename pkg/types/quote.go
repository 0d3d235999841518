package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StepType is the kind of an atomic leg inside a hop.
type StepType string

const (
	StepSwap   StepType = "swap"
	StepBridge StepType = "bridge"
)

// HopAction is the instruction a cell executes for one hop.
type HopAction string

const (
	ActionHop             HopAction = "hop"               // Bridge to the next chain
	ActionHopAndCall      HopAction = "hop_and_call"      // Bridge and call the receiving cell
	ActionSwapAndHop      HopAction = "swap_and_hop"      // Swap, then bridge
	ActionSwapAndTransfer HopAction = "swap_and_transfer" // Swap and pay the receiver on this chain
)

// Code returns the on-chain enum value of the action.
func (a HopAction) Code() uint8 {
	switch a {
	case ActionHop:
		return 0
	case ActionHopAndCall:
		return 1
	case ActionSwapAndHop:
		return 2
	case ActionSwapAndTransfer:
		return 3
	default:
		return 255
	}
}

// Swaps reports whether the action performs a swap on its source chain.
func (a HopAction) Swaps() bool {
	return a == ActionSwapAndHop || a == ActionSwapAndTransfer
}

// Bridges reports whether the action leaves its source chain.
func (a HopAction) Bridges() bool {
	return a != ActionSwapAndTransfer
}

// RouteType classifies a whole route.
type RouteType string

const (
	RouteSwap   RouteType = "swap"
	RouteBridge RouteType = "bridge"
)

// SortType selects the metric routes are ranked by.
type SortType string

const (
	SortByAmount   SortType = "amount"
	SortByDuration SortType = "duration"
)

// QuoteRequest asks for every route from a source token to a destination token.
type QuoteRequest struct {
	SrcChainID uint64
	SrcTokenID string
	Amount     *big.Int
	DstChainID uint64
	DstTokenID string
}

// StepQuoteData is one atomic leg of a hop.
type StepQuoteData struct {
	Type       StepType `json:"type"`
	SrcChainID uint64   `json:"src_chain_id"`
	SrcTokenID string   `json:"src_token_id"`
	SrcAmount  *big.Int `json:"src_amount,omitempty"`
	DstChainID uint64   `json:"dst_chain_id"`
	DstTokenID string   `json:"dst_token_id"`
	DstAmount  *big.Int `json:"dst_amount,omitempty"`
}

// HopQuoteData is one on-chain transaction's worth of work. The trade and gas
// fields are filled in by the resolver.
type HopQuoteData struct {
	Action     HopAction       `json:"action"`
	SrcChainID uint64          `json:"src_chain_id"`
	SrcCell    common.Address  `json:"src_cell"`
	SrcTokenID string          `json:"src_token_id"`
	SrcAmount  *big.Int        `json:"src_amount,omitempty"`
	DstChainID uint64          `json:"dst_chain_id"`
	DstCell    common.Address  `json:"dst_cell"`
	DstTokenID string          `json:"dst_token_id"`
	DstAmount  *big.Int        `json:"dst_amount,omitempty"`
	Bridge     *TokenBridge    `json:"bridge,omitempty"`
	Steps      []StepQuoteData `json:"steps"`

	MinSrcAmount *big.Int `json:"min_src_amount,omitempty"`
	MinDstAmount *big.Int `json:"min_dst_amount,omitempty"`
	Trade        []byte   `json:"trade,omitempty"`
	MinTrade     []byte   `json:"min_trade,omitempty"`
	GasEstimate  uint64   `json:"gas_estimate"`
}

// SwapStep returns the swap step of the hop, if any.
func (h *HopQuoteData) SwapStep() (*StepQuoteData, bool) {
	for i := range h.Steps {
		if h.Steps[i].Type == StepSwap {
			return &h.Steps[i], true
		}
	}
	return nil, false
}

// Resolved reports whether the hop has a destination amount.
func (h *HopQuoteData) Resolved() bool {
	return h.DstAmount != nil
}

// RouteQuoteData is an unpriced candidate path, mutated in place while it is
// resolved.
type RouteQuoteData struct {
	Type       RouteType      `json:"type"`
	SrcChainID uint64         `json:"src_chain_id"`
	SrcTokenID string         `json:"src_token_id"`
	SrcAmount  *big.Int       `json:"src_amount"`
	DstChainID uint64         `json:"dst_chain_id"`
	DstTokenID string         `json:"dst_token_id"`
	DstAmount  *big.Int       `json:"dst_amount,omitempty"`
	Hops       []HopQuoteData `json:"hops"`
}

// HopQuote is a resolved hop ready to be encoded into instructions.
type HopQuote struct {
	HopQuoteData
	SrcChain *Chain `json:"-"`
	DstChain *Chain `json:"-"`
	SrcToken *Token `json:"-"`
	DstToken *Token `json:"-"`
}

// RouteAction is one user-visible swap or bridge transfer in execution order.
type RouteAction struct {
	Type               StepType `json:"type"`
	SrcChainID         uint64   `json:"src_chain_id"`
	SrcTokenID         string   `json:"src_token_id"`
	SrcAmount          *big.Int `json:"src_amount"`
	SrcAmountFormatted string   `json:"src_amount_formatted"`
	DstChainID         uint64   `json:"dst_chain_id"`
	DstTokenID         string   `json:"dst_token_id"`
	DstAmount          *big.Int `json:"dst_amount"`
	DstAmountFormatted string   `json:"dst_amount_formatted"`
}

// Route is a fully priced candidate.
type Route struct {
	Type              RouteType     `json:"type"`
	SrcChain          *Chain        `json:"-"`
	SrcCell           Cell          `json:"src_cell"`
	SrcToken          *Token        `json:"-"`
	SrcAmount         *big.Int      `json:"src_amount"`
	DstChain          *Chain        `json:"-"`
	DstCell           Cell          `json:"dst_cell"`
	DstToken          *Token        `json:"-"`
	DstAmount         *big.Int      `json:"dst_amount"`
	MinDstAmount      *big.Int      `json:"min_dst_amount"`
	Hops              []HopQuote    `json:"hops"`
	Actions           []RouteAction `json:"actions"`
	TotalGas          uint64        `json:"total_gas"`
	Duration          time.Duration `json:"duration"`
	SufficientBalance bool          `json:"sufficient_balance"`
}
