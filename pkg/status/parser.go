package status

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"cellroute/pkg/chain"
	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

// AdapterSwap is what an adapter swap log reveals. Unknown tokens are zero
// addresses and unknown amounts are nil; the parser fills them from
// neighbouring logs.
type AdapterSwap struct {
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

// EventSet decodes one adapter swap event.
type EventSet struct {
	Name   string
	Topic  common.Hash
	Decode func(l *ethtypes.Log) (AdapterSwap, error)
}

// DefaultEventSets covers the Yak aggregator and both Uniswap pool versions.
func DefaultEventSets() []EventSet {
	return []EventSet{
		{Name: "yak", Topic: chain.TopicYakAdapterSwap, Decode: decodeYakSwap},
		{Name: "uniswapv2", Topic: chain.TopicUniswapV2Swap, Decode: decodeUniswapV2Swap},
		{Name: "uniswapv3", Topic: chain.TopicUniswapV3Swap, Decode: decodeUniswapV3Swap},
	}
}

func decodeYakSwap(l *ethtypes.Log) (AdapterSwap, error) {
	if len(l.Topics) != 3 {
		return AdapterSwap{}, fmt.Errorf("YakAdapterSwap: expected 3 topics, got %d", len(l.Topics))
	}
	values, err := chain.YakABI.Unpack("YakAdapterSwap", l.Data)
	if err != nil {
		return AdapterSwap{}, fmt.Errorf("YakAdapterSwap: %w", err)
	}
	if len(values) != 2 {
		return AdapterSwap{}, fmt.Errorf("YakAdapterSwap: expected 2 values, got %d", len(values))
	}
	amountIn, _ := values[0].(*big.Int)
	amountOut, _ := values[1].(*big.Int)
	return AdapterSwap{
		TokenIn:   common.BytesToAddress(l.Topics[1].Bytes()),
		TokenOut:  common.BytesToAddress(l.Topics[2].Bytes()),
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

func decodeUniswapV2Swap(l *ethtypes.Log) (AdapterSwap, error) {
	values, err := chain.UniswapV2ABI.Unpack("Swap", l.Data)
	if err != nil {
		return AdapterSwap{}, fmt.Errorf("uniswap v2 Swap: %w", err)
	}
	if len(values) != 4 {
		return AdapterSwap{}, fmt.Errorf("uniswap v2 Swap: expected 4 values, got %d", len(values))
	}
	amount0In, _ := values[0].(*big.Int)
	amount1In, _ := values[1].(*big.Int)
	amount0Out, _ := values[2].(*big.Int)
	amount1Out, _ := values[3].(*big.Int)
	return AdapterSwap{
		AmountIn:  nonZero(amount0In, amount1In),
		AmountOut: nonZero(amount0Out, amount1Out),
	}, nil
}

func decodeUniswapV3Swap(l *ethtypes.Log) (AdapterSwap, error) {
	values, err := chain.UniswapV3ABI.Unpack("Swap", l.Data)
	if err != nil {
		return AdapterSwap{}, fmt.Errorf("uniswap v3 Swap: %w", err)
	}
	if len(values) < 2 {
		return AdapterSwap{}, fmt.Errorf("uniswap v3 Swap: expected amounts, got %d values", len(values))
	}
	amount0, _ := values[0].(*big.Int)
	amount1, _ := values[1].(*big.Int)
	if amount0 == nil || amount1 == nil {
		return AdapterSwap{}, fmt.Errorf("uniswap v3 Swap: missing amounts")
	}

	// Positive deltas flow into the pool, negative ones out of it.
	var out AdapterSwap
	for _, a := range []*big.Int{amount0, amount1} {
		switch a.Sign() {
		case 1:
			out.AmountIn = new(big.Int).Set(a)
		case -1:
			out.AmountOut = new(big.Int).Neg(a)
		}
	}
	return out, nil
}

func nonZero(a, b *big.Int) *big.Int {
	if a != nil && a.Sign() != 0 {
		return a
	}
	if b != nil && b.Sign() != 0 {
		return b
	}
	return nil
}

// ReceiptData is everything the tracker learns from one hop receipt.
type ReceiptData struct {
	Src            *types.SwapData
	Dst            *types.SwapData
	SentMsgID      common.Hash
	ReceivedMsgID  common.Hash
	Next           types.NextKind
	NextChainID    uint64
	NextBlockchain common.Hash
	Events         []types.SwapEvent
	// Failure is set when the receipt shows the hop failed.
	Failure string
}

// Parser turns cell receipts into hop data.
type Parser struct {
	registry registry.Registry
	sets     map[common.Hash]EventSet
}

// NewParser builds a parser for the given adapter event sets, or the default
// ones when none are passed.
func NewParser(r registry.Registry, sets ...EventSet) *Parser {
	if len(sets) == 0 {
		sets = DefaultEventSets()
	}
	p := &Parser{registry: r, sets: make(map[common.Hash]EventSet, len(sets))}
	for _, s := range sets {
		p.sets[s.Topic] = s
	}
	return p
}

// Parse extracts hop data from a receipt mined on c. srcToken is the token
// the hop is expected to start with, used when no log reveals it.
func (p *Parser) Parse(c *types.Chain, receipt *ethtypes.Receipt, hopIndex int, srcTokenID string, recipient common.Address, timestamp uint64) (*ReceiptData, error) {
	out := &ReceiptData{}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		out.Failure = "transaction reverted"
		return out, nil
	}

	var (
		mint, withdrawal, payout *types.SwapData
		sent                     *types.SwapData
	)

	for i, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		topic := l.Topics[0]

		if set, ok := p.sets[topic]; ok {
			ev, err := p.swapEvent(c, receipt, i, set, hopIndex, timestamp)
			if err != nil {
				return nil, err
			}
			out.Events = append(out.Events, ev)
			continue
		}

		switch topic {
		case chain.TopicInitiated:
			if !c.IsCell(l.Address) || len(l.Topics) < 3 {
				continue
			}
			amount, err := unpackAmount(chain.CellABI, "Initiated", l.Data)
			if err != nil {
				return nil, err
			}
			out.Src = p.data(c.ID, common.BytesToAddress(l.Topics[2].Bytes()), amount)

		case chain.TopicCellReceivedTokens:
			if !c.IsCell(l.Address) {
				continue
			}
			values, err := chain.CellABI.Unpack("CellReceivedTokens", l.Data)
			if err != nil || len(values) != 2 {
				return nil, fmt.Errorf("CellReceivedTokens: unexpected data: %v", err)
			}
			token, _ := values[0].(common.Address)
			amount, _ := values[1].(*big.Int)
			if out.Src == nil {
				out.Src = p.data(c.ID, token, amount)
			}

		case chain.TopicRollback:
			if !c.IsCell(l.Address) || len(l.Topics) < 2 {
				continue
			}
			out.Failure = fmt.Sprintf("Rollback: cell %s returned tokens to %s",
				l.Address.Hex(), common.BytesToAddress(l.Topics[1].Bytes()).Hex())

		case chain.TopicCallFailed:
			if out.Failure == "" {
				out.Failure = "bridge call to the receiving cell failed"
			}

		case chain.TopicMessageExecFailed:
			if l.Address == c.Messenger && out.Failure == "" {
				out.Failure = fmt.Sprintf("cross-chain message %s failed to execute", topicHex(l, 1))
			}

		case chain.TopicReceiveCrossChain:
			if l.Address == c.Messenger && len(l.Topics) > 1 {
				out.ReceivedMsgID = l.Topics[1]
			}

		case chain.TopicSendCrossChain:
			if l.Address != c.Messenger || len(l.Topics) < 3 {
				continue
			}
			out.SentMsgID = l.Topics[1]
			out.NextBlockchain = l.Topics[2]
			if dst, ok := p.registry.GetChainByBlockchainID(l.Topics[2]); ok {
				out.NextChainID = dst.ID
			}

		case chain.TopicTokensSent, chain.TopicTokensAndCallSent:
			name := "TokensSent"
			next := types.NextDestination
			if topic == chain.TopicTokensAndCallSent {
				name = "TokensAndCallSent"
				next = types.NextHop
			}
			values, err := chain.ICTTABI.Unpack(name, l.Data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			amount, _ := values[len(values)-1].(*big.Int)
			out.Next = next
			sent = p.bridgeData(c, l.Address, amount)
			out.Events = append(out.Events, p.bridgeEvent(c, l.Address, amount, receipt.TxHash, hopIndex, timestamp))

		case chain.TopicTokensWithdrawn:
			if len(l.Topics) < 2 || common.BytesToAddress(l.Topics[1].Bytes()) != recipient {
				continue
			}
			amount, err := unpackAmount(chain.ICTTABI, "TokensWithdrawn", l.Data)
			if err != nil {
				return nil, err
			}
			if id := p.deliveredToken(c.ID, l.Address); id != "" {
				payout = &types.SwapData{ChainID: c.ID, TokenID: id, Amount: amount}
			}

		case chain.TopicTransfer:
			// ERC-721 shares the topic but indexes the token id as a fourth topic.
			if len(l.Topics) != 3 {
				continue
			}
			from := common.BytesToAddress(l.Topics[1].Bytes())
			to := common.BytesToAddress(l.Topics[2].Bytes())
			amount, err := unpackAmount(chain.ERC20ABI, "Transfer", l.Data)
			if err != nil {
				return nil, err
			}
			if from == (common.Address{}) && mint == nil {
				mint = p.data(c.ID, l.Address, amount)
			}
			if to == recipient {
				payout = p.data(c.ID, l.Address, amount)
			}

		case chain.TopicWithdrawal:
			if t, ok := p.registry.GetTokenByAddress(l.Address, c.ID); !ok || !t.IsWrappedNative {
				continue
			}
			amount, err := unpackAmount(chain.ERC20ABI, "Withdrawal", l.Data)
			if err != nil {
				return nil, err
			}
			if native, ok := p.registry.GetNativeToken(c.ID); ok {
				withdrawal = &types.SwapData{ChainID: c.ID, TokenID: native.ID, Amount: amount}
			}
		}
	}

	if out.Src == nil {
		switch {
		case mint != nil:
			out.Src = mint
		case withdrawal != nil:
			out.Src = withdrawal
		default:
			out.Src = &types.SwapData{ChainID: c.ID, TokenID: srcTokenID}
		}
	}
	if out.Src.TokenID == "" {
		out.Src.TokenID = srcTokenID
	}

	p.linkSwapEvents(out.Events, out.Src)

	if out.SentMsgID != (common.Hash{}) {
		if out.Next == "" {
			out.Next = types.NextDestination
		}
		out.Dst = sent
		if out.Dst != nil && out.NextChainID != 0 {
			out.Dst.ChainID = out.NextChainID
		}
		return out, nil
	}

	out.Next = types.NextNone
	switch {
	case payout != nil:
		out.Dst = payout
	case withdrawal != nil && withdrawal != out.Src:
		out.Dst = withdrawal
	default:
		out.Dst = lastSwapOutput(out.Events, out.Src)
	}
	return out, nil
}

// swapEvent decodes the adapter log at index i and fills unknown tokens from
// the transfers into and out of the adapter that precede it.
func (p *Parser) swapEvent(c *types.Chain, receipt *ethtypes.Receipt, i int, set EventSet, hopIndex int, timestamp uint64) (types.SwapEvent, error) {
	l := receipt.Logs[i]
	swap, err := set.Decode(l)
	if err != nil {
		return types.SwapEvent{}, err
	}

	if swap.TokenIn == (common.Address{}) || swap.TokenOut == (common.Address{}) {
		for j := i - 1; j >= 0; j-- {
			prev := receipt.Logs[j]
			if len(prev.Topics) > 0 {
				if _, isSwap := p.sets[prev.Topics[0]]; isSwap {
					break
				}
			}
			if len(prev.Topics) != 3 || prev.Topics[0] != chain.TopicTransfer {
				continue
			}
			from := common.BytesToAddress(prev.Topics[1].Bytes())
			to := common.BytesToAddress(prev.Topics[2].Bytes())
			if swap.TokenOut == (common.Address{}) && from == l.Address {
				swap.TokenOut = prev.Address
			}
			if swap.TokenIn == (common.Address{}) && to == l.Address {
				swap.TokenIn = prev.Address
			}
		}
	}

	ev := types.SwapEvent{
		HopIndex:  hopIndex,
		Type:      types.EventSwap,
		SrcData:   &types.SwapData{ChainID: c.ID, Amount: swap.AmountIn},
		DstData:   &types.SwapData{ChainID: c.ID, Amount: swap.AmountOut},
		Adapter:   l.Address,
		TxHash:    receipt.TxHash,
		Timestamp: timestamp,
		Status:    types.StatusSuccess,
	}
	if swap.TokenIn != (common.Address{}) {
		ev.SrcData.TokenID = p.tokenID(c.ID, swap.TokenIn)
	}
	if swap.TokenOut != (common.Address{}) {
		ev.DstData.TokenID = p.tokenID(c.ID, swap.TokenOut)
	}
	return ev, nil
}

// linkSwapEvents fills any input a swap event could not observe with the
// output of the swap before it, or with the hop input for the first one.
func (p *Parser) linkSwapEvents(events []types.SwapEvent, src *types.SwapData) {
	prev := src
	if src != nil && src.TokenID != "" {
		if t, ok := p.registry.GetToken(src.TokenID, src.ChainID); ok && t.IsNative {
			if wrapped := p.wrappedNative(src.ChainID); wrapped != "" {
				prev = &types.SwapData{ChainID: src.ChainID, TokenID: wrapped, Amount: src.Amount}
			}
		}
	}
	for i := range events {
		ev := &events[i]
		if ev.Type != types.EventSwap {
			continue
		}
		if prev != nil {
			if ev.SrcData.TokenID == "" {
				ev.SrcData.TokenID = prev.TokenID
			}
			if ev.SrcData.Amount == nil && prev.Amount != nil {
				ev.SrcData.Amount = new(big.Int).Set(prev.Amount)
			}
		}
		prev = ev.DstData
	}
}

func lastSwapOutput(events []types.SwapEvent, src *types.SwapData) *types.SwapData {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == types.EventSwap {
			d := *events[i].DstData
			return &d
		}
	}
	d := *src
	return &d
}

func (p *Parser) bridgeEvent(c *types.Chain, bridge common.Address, amount *big.Int, tx common.Hash, hopIndex int, timestamp uint64) types.SwapEvent {
	ev := types.SwapEvent{
		HopIndex:  hopIndex,
		Type:      types.EventBridge,
		SrcData:   &types.SwapData{ChainID: c.ID, Amount: amount},
		DstData:   &types.SwapData{},
		TxHash:    tx,
		Timestamp: timestamp,
		Status:    types.StatusPending,
	}
	if token, b, ok := p.bridgeBySource(c.ID, bridge); ok {
		ev.SrcData.TokenID = token
		ev.DstData.ChainID = b.DstChainID
		ev.DstData.TokenID = b.DstTokenID
	}
	return ev
}

func (p *Parser) bridgeData(c *types.Chain, bridge common.Address, amount *big.Int) *types.SwapData {
	_, b, ok := p.bridgeBySource(c.ID, bridge)
	if !ok {
		return &types.SwapData{ChainID: c.ID, Amount: amount}
	}
	return &types.SwapData{ChainID: b.DstChainID, TokenID: b.DstTokenID, Amount: amount}
}

// bridgeBySource finds the token sent through bridge on chainID.
func (p *Parser) bridgeBySource(chainID uint64, bridge common.Address) (string, types.TokenBridge, bool) {
	for _, t := range p.registry.TokensOnChain(chainID) {
		for _, b := range t.Bridges {
			if b.SrcBridge == bridge {
				return t.ID, b, true
			}
		}
	}
	return "", types.TokenBridge{}, false
}

// deliveredToken finds the token a bridge contract on chainID pays out.
func (p *Parser) deliveredToken(chainID uint64, bridge common.Address) string {
	for _, c := range p.registry.Chains() {
		for _, t := range p.registry.TokensOnChain(c.ID) {
			for _, b := range t.Bridges {
				if b.DstChainID == chainID && b.DstBridge == bridge {
					return b.DstTokenID
				}
			}
		}
	}
	return ""
}

// data maps a token address to its registry id; the zero address is the
// native token.
func (p *Parser) data(chainID uint64, token common.Address, amount *big.Int) *types.SwapData {
	return &types.SwapData{ChainID: chainID, TokenID: p.tokenID(chainID, token), Amount: amount}
}

func (p *Parser) tokenID(chainID uint64, token common.Address) string {
	if token == (common.Address{}) {
		if native, ok := p.registry.GetNativeToken(chainID); ok {
			return native.ID
		}
		return ""
	}
	if t, ok := p.registry.GetTokenByAddress(token, chainID); ok {
		return t.ID
	}
	return ""
}

func (p *Parser) wrappedNative(chainID uint64) string {
	for _, t := range p.registry.TokensOnChain(chainID) {
		if t.IsWrappedNative {
			return t.ID
		}
	}
	return ""
}

func unpackAmount(contract abi.ABI, event string, data []byte) (*big.Int, error) {
	values, err := contract.Unpack(event, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", event, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: no data", event)
	}
	amount, ok := values[len(values)-1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: amount is %T", event, values[len(values)-1])
	}
	return amount, nil
}

func topicHex(l *ethtypes.Log, i int) string {
	if i >= len(l.Topics) {
		return "?"
	}
	return l.Topics[i].Hex()
}
