package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"cellroute/pkg/chain"
)

// Receipt builds a successful receipt mined in block whose logs carry the
// receipt's position fields.
func Receipt(tx common.Hash, block uint64, logs ...*ethtypes.Log) *ethtypes.Receipt {
	for i, l := range logs {
		l.TxHash = tx
		l.BlockNumber = block
		l.Index = uint(i)
	}
	return &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusSuccessful,
		TxHash:      tx,
		BlockNumber: new(big.Int).SetUint64(block),
		Logs:        logs,
	}
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func event(contract abi.ABI, name string, addr common.Address, topics []common.Hash, values ...interface{}) *ethtypes.Log {
	ev := contract.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		panic(name + ": " + err.Error())
	}
	return &ethtypes.Log{
		Address: addr,
		Topics:  append([]common.Hash{ev.ID}, topics...),
		Data:    data,
	}
}

func Transfer(token, from, to common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.ERC20ABI, "Transfer", token, []common.Hash{addressTopic(from), addressTopic(to)}, amount)
}

func Deposit(wnative, dst common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.ERC20ABI, "Deposit", wnative, []common.Hash{addressTopic(dst)}, amount)
}

func Withdrawal(wnative, src common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.ERC20ABI, "Withdrawal", wnative, []common.Hash{addressTopic(src)}, amount)
}

func Initiated(cell, sender, token common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.CellABI, "Initiated", cell, []common.Hash{addressTopic(sender), addressTopic(token)}, amount)
}

func Rollback(cell, receiver, token common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.CellABI, "Rollback", cell, []common.Hash{addressTopic(receiver), addressTopic(token)}, amount)
}

func CellReceivedTokens(cell common.Address, sourceBlockchain common.Hash, sourceBridge, origin, token common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.CellABI, "CellReceivedTokens", cell,
		[]common.Hash{sourceBlockchain, addressTopic(sourceBridge), addressTopic(origin)}, token, amount)
}

// The messenger events carry the full message in their data; the tracker
// only reads topics, so the builders leave it empty.

func SendCrossChainMessage(messenger common.Address, msgID, dstBlockchain common.Hash) *ethtypes.Log {
	return &ethtypes.Log{
		Address: messenger,
		Topics:  []common.Hash{chain.TopicSendCrossChain, msgID, dstBlockchain},
	}
}

func ReceiveCrossChainMessage(messenger common.Address, msgID, srcBlockchain common.Hash, deliverer common.Address) *ethtypes.Log {
	return &ethtypes.Log{
		Address: messenger,
		Topics:  []common.Hash{chain.TopicReceiveCrossChain, msgID, srcBlockchain, addressTopic(deliverer)},
	}
}

func MessageExecutionFailed(messenger common.Address, msgID, srcBlockchain common.Hash) *ethtypes.Log {
	return &ethtypes.Log{
		Address: messenger,
		Topics:  []common.Hash{chain.TopicMessageExecFailed, msgID, srcBlockchain},
	}
}

type sendTokensInput struct {
	DestinationBlockchainID            [32]byte
	DestinationTokenTransferrerAddress common.Address
	Recipient                          common.Address
	PrimaryFeeTokenAddress             common.Address
	PrimaryFee                         *big.Int
	SecondaryFee                       *big.Int
	RequiredGasLimit                   *big.Int
	MultiHopFallback                   common.Address
}

type sendAndCallInput struct {
	DestinationBlockchainID            [32]byte
	DestinationTokenTransferrerAddress common.Address
	RecipientContract                  common.Address
	RecipientPayload                   []byte
	RequiredGasLimit                   *big.Int
	RecipientGasLimit                  *big.Int
	MultiHopFallback                   common.Address
	FallbackRecipient                  common.Address
	PrimaryFeeTokenAddress             common.Address
	PrimaryFee                         *big.Int
	SecondaryFee                       *big.Int
}

// TokensSent is a bridge transfer paying recipient directly on dstBlockchain.
func TokensSent(bridge common.Address, msgID common.Hash, sender common.Address, dstBlockchain common.Hash, recipient common.Address, amount *big.Int) *ethtypes.Log {
	input := sendTokensInput{
		DestinationBlockchainID: dstBlockchain,
		Recipient:               recipient,
		PrimaryFee:              new(big.Int),
		SecondaryFee:            new(big.Int),
		RequiredGasLimit:        big.NewInt(250_000),
	}
	return event(chain.ICTTABI, "TokensSent", bridge, []common.Hash{msgID, addressTopic(sender)}, input, amount)
}

// TokensAndCallSent is a bridge transfer calling cell on dstBlockchain.
func TokensAndCallSent(bridge common.Address, msgID common.Hash, sender common.Address, dstBlockchain common.Hash, cell common.Address, amount *big.Int) *ethtypes.Log {
	input := sendAndCallInput{
		DestinationBlockchainID: dstBlockchain,
		RecipientContract:       cell,
		RecipientPayload:        []byte{0x01},
		RequiredGasLimit:        big.NewInt(500_000),
		RecipientGasLimit:       big.NewInt(400_000),
		PrimaryFee:              new(big.Int),
		SecondaryFee:            new(big.Int),
	}
	return event(chain.ICTTABI, "TokensAndCallSent", bridge, []common.Hash{msgID, addressTopic(sender)}, input, amount)
}

func TokensWithdrawn(bridge, recipient common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.ICTTABI, "TokensWithdrawn", bridge, []common.Hash{addressTopic(recipient)}, amount)
}

func CallFailed(bridge, recipientContract common.Address, amount *big.Int) *ethtypes.Log {
	return event(chain.ICTTABI, "CallFailed", bridge, []common.Hash{addressTopic(recipientContract)}, amount)
}

func YakAdapterSwap(adapter, tokenIn, tokenOut common.Address, amountIn, amountOut *big.Int) *ethtypes.Log {
	return event(chain.YakABI, "YakAdapterSwap", adapter, []common.Hash{addressTopic(tokenIn), addressTopic(tokenOut)}, amountIn, amountOut)
}

func UniswapV2Swap(pool, sender, to common.Address, amount0In, amount1In, amount0Out, amount1Out *big.Int) *ethtypes.Log {
	return event(chain.UniswapV2ABI, "Swap", pool, []common.Hash{addressTopic(sender), addressTopic(to)},
		amount0In, amount1In, amount0Out, amount1Out)
}

// UniswapV3Swap takes the signed pool deltas: positive into the pool.
func UniswapV3Swap(pool, sender, recipient common.Address, amount0, amount1 *big.Int) *ethtypes.Log {
	return event(chain.UniswapV3ABI, "Swap", pool, []common.Hash{addressTopic(sender), addressTopic(recipient)},
		amount0, amount1, big.NewInt(1<<40), big.NewInt(1_000_000), big.NewInt(-120))
}
