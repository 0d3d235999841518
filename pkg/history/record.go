package history

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"cellroute/pkg/types"
)

// Record is the JSON-safe form of a swap: big integers are decimal strings,
// hashes and addresses are hex, chains and tokens are their ids.
type Record struct {
	ID         string      `json:"id"`
	Account    string      `json:"account"`
	Recipient  string      `json:"recipient"`
	SrcData    *DataRecord `json:"src_data,omitempty"`
	DstData    *DataRecord `json:"dst_data,omitempty"`
	DstChainID uint64      `json:"dst_chain_id"`
	DstTokenID string      `json:"dst_token_id"`

	DstTxHash           string  `json:"dst_tx_hash,omitempty"`
	DstTimestamp        uint64  `json:"dst_timestamp,omitempty"`
	DstReceivedMsgID    string  `json:"dst_received_msg_id,omitempty"`
	DstLastCheckedBlock *uint64 `json:"dst_last_checked_block,omitempty"`
	DstInitiatedBlock   *uint64 `json:"dst_initiated_block,omitempty"`

	Hops       []HopRecord   `json:"hops"`
	Events     []EventRecord `json:"events"`
	Status     string        `json:"status"`
	Type       string        `json:"type,omitempty"`
	DurationMs int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type DataRecord struct {
	ChainID uint64 `json:"chain_id"`
	TokenID string `json:"token_id,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

type HopRecord struct {
	Index            int         `json:"index"`
	SrcData          *DataRecord `json:"src_data,omitempty"`
	DstData          *DataRecord `json:"dst_data,omitempty"`
	TxHash           string      `json:"tx_hash,omitempty"`
	BlockNumber      uint64      `json:"block_number,omitempty"`
	Timestamp        uint64      `json:"timestamp,omitempty"`
	SentMsgID        string      `json:"sent_msg_id,omitempty"`
	ReceivedMsgID    string      `json:"received_msg_id,omitempty"`
	Next             string      `json:"next,omitempty"`
	Status           string      `json:"status"`
	Error            string      `json:"error,omitempty"`
	Retryable        bool        `json:"retryable,omitempty"`
	LastCheckedBlock *uint64     `json:"last_checked_block,omitempty"`
	InitiatedBlock   *uint64     `json:"initiated_block,omitempty"`
	SearchStartBlock *uint64     `json:"search_start_block,omitempty"`
}

type EventRecord struct {
	HopIndex  int         `json:"hop_index"`
	Type      string      `json:"type"`
	SrcData   *DataRecord `json:"src_data,omitempty"`
	DstData   *DataRecord `json:"dst_data,omitempty"`
	Adapter   string      `json:"adapter,omitempty"`
	TxHash    string      `json:"tx_hash"`
	Timestamp uint64      `json:"timestamp"`
	Status    string      `json:"status"`
}

// NewRecord converts a swap into its stored form.
func NewRecord(s *types.Swap) Record {
	rec := Record{
		ID:                  s.ID.Hex(),
		Account:             s.Account.Hex(),
		Recipient:           s.Recipient.Hex(),
		SrcData:             dataRecord(s.SrcData),
		DstData:             dataRecord(s.DstData),
		DstChainID:          s.DstChainID,
		DstTokenID:          s.DstTokenID,
		DstTxHash:           hashString(s.DstTxHash),
		DstTimestamp:        s.DstTimestamp,
		DstReceivedMsgID:    hashString(s.DstReceivedMsgID),
		DstLastCheckedBlock: copyUint(s.DstLastCheckedBlock),
		DstInitiatedBlock:   copyUint(s.DstInitiatedBlock),
		Hops:                make([]HopRecord, len(s.Hops)),
		Events:              make([]EventRecord, len(s.Events)),
		Status:              string(s.Status),
		Type:                string(s.Type),
		DurationMs:          s.Duration.Milliseconds(),
		Error:               s.Error,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}

	for i, h := range s.Hops {
		rec.Hops[i] = HopRecord{
			Index:            h.Index,
			SrcData:          dataRecord(h.SrcData),
			DstData:          dataRecord(h.DstData),
			TxHash:           hashString(h.TxHash),
			BlockNumber:      h.BlockNumber,
			Timestamp:        h.Timestamp,
			SentMsgID:        hashString(h.SentMsgID),
			ReceivedMsgID:    hashString(h.ReceivedMsgID),
			Next:             string(h.Next),
			Status:           string(h.Status),
			Error:            h.Error,
			Retryable:        h.Retryable,
			LastCheckedBlock: copyUint(h.LastCheckedBlock),
			InitiatedBlock:   copyUint(h.InitiatedBlock),
			SearchStartBlock: copyUint(h.SearchStartBlock),
		}
	}

	for i, e := range s.Events {
		rec.Events[i] = EventRecord{
			HopIndex:  e.HopIndex,
			Type:      string(e.Type),
			SrcData:   dataRecord(e.SrcData),
			DstData:   dataRecord(e.DstData),
			TxHash:    e.TxHash.Hex(),
			Timestamp: e.Timestamp,
			Status:    string(e.Status),
		}
		if e.Adapter != (common.Address{}) {
			rec.Events[i].Adapter = e.Adapter.Hex()
		}
	}

	return rec
}

// Swap converts the record back, validating every encoded field.
func (r Record) Swap() (*types.Swap, error) {
	id, err := parseHash(r.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	s := &types.Swap{
		ID:                  id,
		DstChainID:          r.DstChainID,
		DstTokenID:          r.DstTokenID,
		DstTimestamp:        r.DstTimestamp,
		DstLastCheckedBlock: copyUint(r.DstLastCheckedBlock),
		DstInitiatedBlock:   copyUint(r.DstInitiatedBlock),
		Hops:                make([]types.SwapHop, len(r.Hops)),
		Events:              make([]types.SwapEvent, len(r.Events)),
		Status:              types.Status(r.Status),
		Type:                types.RouteType(r.Type),
		Duration:            time.Duration(r.DurationMs) * time.Millisecond,
		Error:               r.Error,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}

	if s.Account, err = parseAddress(r.Account); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	if s.Recipient, err = parseAddress(r.Recipient); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if s.SrcData, err = r.SrcData.data(); err != nil {
		return nil, fmt.Errorf("src data: %w", err)
	}
	if s.DstData, err = r.DstData.data(); err != nil {
		return nil, fmt.Errorf("dst data: %w", err)
	}
	if s.DstTxHash, err = parseHash(r.DstTxHash); err != nil {
		return nil, fmt.Errorf("dst tx hash: %w", err)
	}
	if s.DstReceivedMsgID, err = parseHash(r.DstReceivedMsgID); err != nil {
		return nil, fmt.Errorf("dst received msg id: %w", err)
	}

	for i, h := range r.Hops {
		hop := types.SwapHop{
			Index:            h.Index,
			BlockNumber:      h.BlockNumber,
			Timestamp:        h.Timestamp,
			Next:             types.NextKind(h.Next),
			Status:           types.Status(h.Status),
			Error:            h.Error,
			Retryable:        h.Retryable,
			LastCheckedBlock: copyUint(h.LastCheckedBlock),
			InitiatedBlock:   copyUint(h.InitiatedBlock),
			SearchStartBlock: copyUint(h.SearchStartBlock),
		}
		if hop.SrcData, err = h.SrcData.data(); err != nil {
			return nil, fmt.Errorf("hop %d src data: %w", i, err)
		}
		if hop.DstData, err = h.DstData.data(); err != nil {
			return nil, fmt.Errorf("hop %d dst data: %w", i, err)
		}
		if hop.TxHash, err = parseHash(h.TxHash); err != nil {
			return nil, fmt.Errorf("hop %d tx hash: %w", i, err)
		}
		if hop.SentMsgID, err = parseHash(h.SentMsgID); err != nil {
			return nil, fmt.Errorf("hop %d sent msg id: %w", i, err)
		}
		if hop.ReceivedMsgID, err = parseHash(h.ReceivedMsgID); err != nil {
			return nil, fmt.Errorf("hop %d received msg id: %w", i, err)
		}
		s.Hops[i] = hop
	}

	for i, e := range r.Events {
		ev := types.SwapEvent{
			HopIndex:  e.HopIndex,
			Type:      types.EventType(e.Type),
			Timestamp: e.Timestamp,
			Status:    types.Status(e.Status),
		}
		if ev.SrcData, err = e.SrcData.data(); err != nil {
			return nil, fmt.Errorf("event %d src data: %w", i, err)
		}
		if ev.DstData, err = e.DstData.data(); err != nil {
			return nil, fmt.Errorf("event %d dst data: %w", i, err)
		}
		if ev.TxHash, err = parseHash(e.TxHash); err != nil {
			return nil, fmt.Errorf("event %d tx hash: %w", i, err)
		}
		if e.Adapter != "" {
			if ev.Adapter, err = parseAddress(e.Adapter); err != nil {
				return nil, fmt.Errorf("event %d adapter: %w", i, err)
			}
		}
		s.Events[i] = ev
	}

	return s, nil
}

func dataRecord(d *types.SwapData) *DataRecord {
	if d == nil {
		return nil
	}
	rec := &DataRecord{ChainID: d.ChainID, TokenID: d.TokenID}
	if d.Amount != nil {
		rec.Amount = d.Amount.String()
	}
	return rec
}

func (d *DataRecord) data() (*types.SwapData, error) {
	if d == nil {
		return nil, nil
	}
	out := &types.SwapData{ChainID: d.ChainID, TokenID: d.TokenID}
	if d.Amount != "" {
		amount, ok := new(big.Int).SetString(d.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", d.Amount)
		}
		out.Amount = amount
	}
	return out, nil
}

// hashString leaves unset hashes out of the record.
func hashString(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

func parseHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func copyUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
