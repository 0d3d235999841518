package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CellKind identifies the ABI variant a cell contract speaks.
type CellKind string

const (
	CellYakSwap   CellKind = "yak"       // Cell routing through a Yak aggregator
	CellUniswapV2 CellKind = "uniswapv2" // Cell routing through a V2 style router
	CellHopOnly   CellKind = "hop"       // Cell that can only forward tokens
)

// AdapterKind identifies which swap event an adapter emits.
type AdapterKind string

const (
	AdapterYak       AdapterKind = "yak"
	AdapterUniswapV2 AdapterKind = "uniswapv2"
	AdapterUniswapV3 AdapterKind = "uniswapv3"
)

// TokenBridge is one entry of a token's bridge table: where the token can be
// sent and which contracts carry it.
type TokenBridge struct {
	Name              string         `json:"name"`
	DstChainID        uint64         `json:"dst_chain_id"`
	DstTokenID        string         `json:"dst_token_id"`
	SrcBridge         common.Address `json:"src_bridge"`
	DstBridge         common.Address `json:"dst_bridge"`
	SrcBridgeIsNative bool           `json:"src_bridge_is_native"`
}

// Token is immutable reference data for an asset on one chain.
type Token struct {
	ID              string         `json:"id"`
	ChainID         uint64         `json:"chain_id"`
	Symbol          string         `json:"symbol"`
	Address         common.Address `json:"address"`
	Decimals        int32          `json:"decimals"`
	IsNative        bool           `json:"is_native"`
	IsWrappedNative bool           `json:"is_wrapped_native"`
	Bridges         []TokenBridge  `json:"bridges,omitempty"`
}

// BridgeTo returns the bridge entries of t that land on dstChainID.
func (t *Token) BridgeTo(dstChainID uint64) []TokenBridge {
	var out []TokenBridge
	for _, b := range t.Bridges {
		if b.DstChainID == dstChainID {
			out = append(out, b)
		}
	}
	return out
}

// Cell is a router contract able to swap through adapters and/or start a
// cross-chain hop.
type Cell struct {
	Address    common.Address `json:"address"`
	Kind       CellKind       `json:"kind"`
	CanSwap    bool           `json:"can_swap"`
	RouteTypes []HopAction    `json:"route_types,omitempty"`
}

// Supports reports whether the cell accepts instructions of the given action.
// An empty RouteTypes list means every action is accepted.
func (c Cell) Supports(action HopAction) bool {
	if len(c.RouteTypes) == 0 {
		return true
	}
	for _, a := range c.RouteTypes {
		if a == action {
			return true
		}
	}
	return false
}

// Adapter describes a swap venue wrapped by a cell's aggregator.
type Adapter struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	Kind    AdapterKind    `json:"kind"`
}

// GasPrice holds the fee parameters of a chain, in gwei.
type GasPrice struct {
	Base     uint64 `json:"base"`
	Priority uint64 `json:"priority"`
}

// QueryConfig bounds how the engine batches log queries against a chain.
type QueryConfig struct {
	MaxBlockRange   uint64 `json:"max_block_range"`
	BatchSize       int    `json:"batch_size"`
	ParallelBatches int    `json:"parallel_batches"`
}

// Chain is immutable reference data for one EVM chain in the cell network.
type Chain struct {
	ID            uint64                     `json:"id"`
	Name          string                     `json:"name"`
	BlockchainID  common.Hash                `json:"blockchain_id"`
	RPCURL        string                     `json:"rpc_url"`
	Messenger     common.Address             `json:"messenger"`
	NativeTokenID string                     `json:"native_token_id"`
	Cells         []Cell                     `json:"cells"`
	Adapters      map[common.Address]Adapter `json:"adapters,omitempty"`
	AvgBlockTime  time.Duration              `json:"avg_block_time"`
	GasPrice      GasPrice                   `json:"gas_price"`
	Query         QueryConfig                `json:"query"`
}

// SwapCells returns the cells on the chain able to swap.
func (c *Chain) SwapCells() []Cell {
	var out []Cell
	for _, cell := range c.Cells {
		if cell.CanSwap {
			out = append(out, cell)
		}
	}
	return out
}

// CanSwap reports whether at least one swap-capable cell is deployed.
func (c *Chain) CanSwap() bool {
	return len(c.SwapCells()) > 0
}

// PrimaryCell returns the first registered cell, used for legs that only
// forward tokens.
func (c *Chain) PrimaryCell() (Cell, bool) {
	if len(c.Cells) == 0 {
		return Cell{}, false
	}
	return c.Cells[0], true
}

// Cell looks up a cell by address.
func (c *Chain) Cell(addr common.Address) (Cell, bool) {
	for _, cell := range c.Cells {
		if cell.Address == addr {
			return cell, true
		}
	}
	return Cell{}, false
}

// IsCell reports whether addr is one of the chain's cells.
func (c *Chain) IsCell(addr common.Address) bool {
	_, ok := c.Cell(addr)
	return ok
}

// BridgeRoute is a directed token->token edge across two chains.
type BridgeRoute struct {
	Bridge     TokenBridge `json:"bridge"`
	SrcChainID uint64      `json:"src_chain_id"`
	SrcTokenID string      `json:"src_token_id"`
	DstChainID uint64      `json:"dst_chain_id"`
	DstTokenID string      `json:"dst_token_id"`
}

// BridgePath composes one (direct) or two (via an interim chain) bridge routes.
type BridgePath struct {
	Legs []BridgeRoute `json:"legs"`
}

// IsDirect reports whether the path lands on the destination without an
// interim chain.
func (p BridgePath) IsDirect() bool {
	return len(p.Legs) == 1
}

// First returns the leg leaving the source chain.
func (p BridgePath) First() BridgeRoute {
	return p.Legs[0]
}

// Last returns the leg landing on the destination chain.
func (p BridgePath) Last() BridgeRoute {
	return p.Legs[len(p.Legs)-1]
}
