// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"cellroute/pkg/chain"
)

// CallFunc answers an eth_call.
type CallFunc func(msg ethereum.CallMsg) ([]byte, error)

// Client is a scripted chain. Zero values are usable after New.
type Client struct {
	mu sync.Mutex

	Head       uint64
	BlockTimes map[uint64]uint64 // block -> unix seconds; missing blocks use TimeAt
	TimeAt     func(block uint64) uint64
	Receipts   map[common.Hash]*ethtypes.Receipt
	Logs       []ethtypes.Log
	Balances   map[common.Address]*big.Int
	Call       CallFunc

	// Error injection; each is returned until cleared.
	BlockNumberErr error
	ReceiptErr     error
	FilterErr      error
	HeaderErr      error

	FilterCalls  []ethereum.FilterQuery
	HeaderCalls  int
	ReceiptCalls int
}

var _ chain.Client = (*Client)(nil)

// New returns a chain at head whose block n has timestamp 1000 + 2n.
func New(head uint64) *Client {
	return &Client{
		Head:       head,
		BlockTimes: make(map[uint64]uint64),
		TimeAt:     func(n uint64) uint64 { return 1000 + 2*n },
		Receipts:   make(map[common.Hash]*ethtypes.Receipt),
		Balances:   make(map[common.Address]*big.Int),
	}
}

// AddReceipt registers a receipt; its logs also become searchable.
func (c *Client) AddReceipt(r *ethtypes.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Receipts[r.TxHash] = r
	for _, l := range r.Logs {
		c.Logs = append(c.Logs, *l)
	}
}

// SetHead moves the chain head.
func (c *Client) SetHead(head uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Head = head
}

// Filters returns a copy of every FilterLogs query seen so far.
func (c *Client) Filters() []ethereum.FilterQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), c.FilterCalls...)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BlockNumberErr != nil {
		return 0, c.BlockNumberErr
	}
	return c.Head, nil
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HeaderCalls++
	if c.HeaderErr != nil {
		return nil, c.HeaderErr
	}
	n := c.Head
	if number != nil {
		n = number.Uint64()
	}
	if n > c.Head {
		return nil, ethereum.NotFound
	}
	ts, ok := c.BlockTimes[n]
	if !ok {
		ts = c.TimeAt(n)
	}
	return &ethtypes.Header{Number: new(big.Int).SetUint64(n), Time: ts}, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiptCalls++
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	r, ok := c.Receipts[txHash]
	if !ok || r.BlockNumber.Uint64() > c.Head {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FilterCalls = append(c.FilterCalls, q)
	if c.FilterErr != nil {
		return nil, c.FilterErr
	}
	if q.FromBlock == nil || q.ToBlock == nil {
		return nil, fmt.Errorf("unbounded log query")
	}

	var out []ethtypes.Log
	for _, l := range c.Logs {
		if l.BlockNumber < q.FromBlock.Uint64() || l.BlockNumber > q.ToBlock.Uint64() || l.BlockNumber > c.Head {
			continue
		}
		if matches(l, q) {
			out = append(out, l)
		}
	}
	return out, nil
}

func matches(l ethtypes.Log, q ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if c.Call == nil {
		return nil, fmt.Errorf("no call handler")
	}
	return c.Call(msg)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// Clients maps chain ids to fakes.
type Clients map[uint64]*Client

func (m Clients) Client(chainID uint64) (chain.Client, error) {
	c, ok := m[chainID]
	if !ok {
		return nil, fmt.Errorf("no client for chain %d", chainID)
	}
	return c, nil
}
