package quote

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/chain"
	"cellroute/pkg/types"
)

// ChainBalances reads an account's token balances over RPC.
type ChainBalances struct {
	clients chain.Clients
	account common.Address
}

func NewChainBalances(clients chain.Clients, account common.Address) *ChainBalances {
	return &ChainBalances{clients: clients, account: account}
}

// Balance returns the native balance for native tokens and the ERC-20
// balanceOf otherwise. It satisfies BalanceFunc.
func (b *ChainBalances) Balance(ctx context.Context, token *types.Token) (*big.Int, error) {
	client, err := b.clients.Client(token.ChainID)
	if err != nil {
		return nil, err
	}

	if token.IsNative {
		return client.BalanceAt(ctx, b.account, nil)
	}

	input, err := chain.ERC20ABI.Pack("balanceOf", b.account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	to := token.Address
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s failed: %w", token.ID, err)
	}
	values, err := chain.ERC20ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balance: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", values[0])
	}
	return balance, nil
}
