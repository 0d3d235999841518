package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"cellroute/pkg/registry"
)

// Client is the read-only subset of *ethclient.Client the engine uses.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Compile-time interface check.
var _ Client = (*ethclient.Client)(nil)

// Clients hands out a client per chain id.
type Clients interface {
	Client(chainID uint64) (Client, error)
}

// Pool lazily dials one ethclient per registry chain.
type Pool struct {
	registry registry.Registry
	mu       sync.Mutex
	clients  map[uint64]Client
}

// NewPool creates a pool over the chains of r.
func NewPool(r registry.Registry) *Pool {
	return &Pool{
		registry: r,
		clients:  make(map[uint64]Client),
	}
}

// Client returns the connection for chainID, dialing it on first use.
func (p *Pool) Client(chainID uint64) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[chainID]; ok {
		return c, nil
	}

	chain, ok := p.registry.GetChain(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d not in registry", chainID)
	}
	if chain.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}

	client, err := ethclient.DialContext(context.Background(), chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint of chain %d: %w", chainID, err)
	}

	p.clients[chainID] = client
	return client, nil
}

// Set installs a client for chainID, replacing any dialed connection.
func (p *Pool) Set(chainID uint64, c Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[chainID] = c
}

// Close closes every dialed connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, c := range p.clients {
		if ec, ok := c.(*ethclient.Client); ok {
			ec.Close()
		}
		delete(p.clients, id)
	}
}

// IsNotFound reports whether err means the receipt or block is not there yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
