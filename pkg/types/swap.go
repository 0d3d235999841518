package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of a swap, a hop or an event.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// EventType is the kind of a sub-step observed inside a hop receipt.
type EventType string

const (
	EventSwap   EventType = "swap"
	EventBridge EventType = "bridge"
)

// NextKind describes where a hop forwards its output.
type NextKind string

const (
	NextNone        NextKind = ""            // Output paid out on this chain
	NextHop         NextKind = "hop"         // Output bridged into another cell
	NextDestination NextKind = "destination" // Output bridged straight to the recipient
)

// SwapData is an observed chain/token/amount triple.
type SwapData struct {
	ChainID uint64   `json:"chain_id"`
	TokenID string   `json:"token_id,omitempty"`
	Amount  *big.Int `json:"amount,omitempty"`
}

// Complete reports whether the token and amount have been observed.
func (d *SwapData) Complete() bool {
	return d != nil && d.TokenID != "" && d.Amount != nil
}

func (d *SwapData) clone() *SwapData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Amount != nil {
		c.Amount = new(big.Int).Set(d.Amount)
	}
	return &c
}

// SwapHop is one observed on-chain leg of a submitted swap.
type SwapHop struct {
	Index         int         `json:"index"`
	SrcData       *SwapData   `json:"src_data"`
	DstData       *SwapData   `json:"dst_data,omitempty"`
	TxHash        common.Hash `json:"tx_hash"`
	BlockNumber   uint64      `json:"block_number,omitempty"`
	Timestamp     uint64      `json:"timestamp,omitempty"`
	SentMsgID     common.Hash `json:"sent_msg_id"`
	ReceivedMsgID common.Hash `json:"received_msg_id"`
	Next          NextKind    `json:"next,omitempty"`
	Status        Status      `json:"status"`
	Error         string      `json:"error,omitempty"`
	Retryable     bool        `json:"retryable,omitempty"`

	LastCheckedBlock *uint64 `json:"last_checked_block,omitempty"`
	InitiatedBlock   *uint64 `json:"initiated_block,omitempty"`
	SearchStartBlock *uint64 `json:"search_start_block,omitempty"`
}

// SwapEvent is an adapter swap or bridge transfer parsed from a hop receipt.
type SwapEvent struct {
	HopIndex  int            `json:"hop_index"`
	Type      EventType      `json:"type"`
	SrcData   *SwapData      `json:"src_data"`
	DstData   *SwapData      `json:"dst_data"`
	Adapter   common.Address `json:"adapter"`
	TxHash    common.Hash    `json:"tx_hash"`
	Timestamp uint64         `json:"timestamp"`
	Status    Status         `json:"status"`
}

// Swap is the aggregate record of one user-initiated transaction.
type Swap struct {
	ID         common.Hash    `json:"id"`
	Account    common.Address `json:"account"`
	Recipient  common.Address `json:"recipient"`
	SrcData    *SwapData      `json:"src_data"`
	DstData    *SwapData      `json:"dst_data,omitempty"`
	DstChainID uint64         `json:"dst_chain_id"`
	DstTokenID string         `json:"dst_token_id"`

	DstTxHash           common.Hash `json:"dst_tx_hash"`
	DstTimestamp        uint64      `json:"dst_timestamp,omitempty"`
	DstReceivedMsgID    common.Hash `json:"dst_received_msg_id"`
	DstLastCheckedBlock *uint64     `json:"dst_last_checked_block,omitempty"`
	DstInitiatedBlock   *uint64     `json:"dst_initiated_block,omitempty"`

	Hops     []SwapHop     `json:"hops"`
	Events   []SwapEvent   `json:"events"`
	Status   Status        `json:"status"`
	Type     RouteType     `json:"type"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstPendingHop returns the index of the first hop still pending, or -1.
func (s *Swap) FirstPendingHop() int {
	for i := range s.Hops {
		if s.Hops[i].Status == StatusPending {
			return i
		}
	}
	return -1
}

// LastHop returns the last known hop.
func (s *Swap) LastHop() *SwapHop {
	if len(s.Hops) == 0 {
		return nil
	}
	return &s.Hops[len(s.Hops)-1]
}

// AwaitingDestination reports whether every hop succeeded but the final
// delivery has not been observed yet.
func (s *Swap) AwaitingDestination() bool {
	if len(s.Hops) == 0 || s.FirstPendingHop() >= 0 {
		return false
	}
	for i := range s.Hops {
		if s.Hops[i].Status != StatusSuccess {
			return false
		}
	}
	return !s.DstData.Complete()
}

// Clone returns a deep copy, so snapshots handed to persistence never alias
// the tracker's working record.
func (s *Swap) Clone() *Swap {
	if s == nil {
		return nil
	}
	c := *s
	c.SrcData = s.SrcData.clone()
	c.DstData = s.DstData.clone()
	c.DstLastCheckedBlock = cloneUint(s.DstLastCheckedBlock)
	c.DstInitiatedBlock = cloneUint(s.DstInitiatedBlock)
	c.Hops = make([]SwapHop, len(s.Hops))
	for i, h := range s.Hops {
		h.SrcData = h.SrcData.clone()
		h.DstData = h.DstData.clone()
		h.LastCheckedBlock = cloneUint(h.LastCheckedBlock)
		h.InitiatedBlock = cloneUint(h.InitiatedBlock)
		h.SearchStartBlock = cloneUint(h.SearchStartBlock)
		c.Hops[i] = h
	}
	c.Events = make([]SwapEvent, len(s.Events))
	for i, e := range s.Events {
		e.SrcData = e.SrcData.clone()
		e.DstData = e.DstData.clone()
		c.Events[i] = e
	}
	return &c
}

func cloneUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Uint64Ptr is a small helper for the optional block markers.
func Uint64Ptr(v uint64) *uint64 {
	return &v
}
