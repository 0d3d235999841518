// Package status follows submitted swaps across chains until they settle.
package status

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"cellroute/pkg/chain"
	"cellroute/pkg/history"
	"cellroute/pkg/metrics"
	"cellroute/pkg/notify"
	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

var (
	// ErrInProgress is returned when another resolution of the same swap is
	// still running. Callers treat it as a skipped tick.
	ErrInProgress = errors.New("swap resolution already in progress")

	ErrInvalidRequest = errors.New("invalid track request")
)

// Config tunes the tracker.
type Config struct {
	// MaxPendingBlocks marks a hop as timed out once this many blocks have
	// been searched without a match. Zero waits forever.
	MaxPendingBlocks uint64
	// Workers bounds how many swaps OnNewBlock advances at once.
	Workers int
}

// TrackRequest describes a freshly submitted swap transaction.
type TrackRequest struct {
	TxHash     common.Hash
	ChainID    uint64
	Account    common.Address
	Recipient  common.Address
	SrcTokenID string
	Amount     *big.Int
	DstChainID uint64
	DstTokenID string
}

// Tracker owns the hop state machine. Each swap record is only mutated while
// its id is held in the in-flight set.
type Tracker struct {
	registry registry.Registry
	clients  chain.Clients
	searcher *chain.Searcher
	parser   *Parser
	repo     history.Repository
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[common.Hash]struct{}
}

func NewTracker(
	r registry.Registry,
	clients chain.Clients,
	repo history.Repository,
	notifier notify.Notifier,
	m *metrics.Metrics,
	cfg Config,
	logger zerolog.Logger,
) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger = logger.With().Str("component", "tracker").Logger()
	return &Tracker{
		registry: r,
		clients:  clients,
		searcher: chain.NewSearcher(m, logger),
		parser:   NewParser(r),
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		inFlight: make(map[common.Hash]struct{}),
	}
}

// Track registers a submitted transaction as a pending swap. Tracking the
// same transaction twice returns the stored record.
func (t *Tracker) Track(ctx context.Context, req TrackRequest) (*types.Swap, error) {
	if req.TxHash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: missing transaction hash", ErrInvalidRequest)
	}
	if _, ok := t.registry.GetChain(req.ChainID); !ok {
		return nil, fmt.Errorf("%w: unknown source chain %d", ErrInvalidRequest, req.ChainID)
	}
	if _, ok := t.registry.GetChain(req.DstChainID); !ok {
		return nil, fmt.Errorf("%w: unknown destination chain %d", ErrInvalidRequest, req.DstChainID)
	}

	existing, err := t.repo.Get(ctx, req.TxHash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, history.ErrNotFound) {
		return nil, fmt.Errorf("failed to load swap: %w", err)
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = req.Account
	}
	routeType := types.RouteBridge
	if req.ChainID == req.DstChainID {
		routeType = types.RouteSwap
	}

	now := t.now().UTC()
	src := &types.SwapData{ChainID: req.ChainID, TokenID: req.SrcTokenID, Amount: req.Amount}
	swap := &types.Swap{
		ID:         req.TxHash,
		Account:    req.Account,
		Recipient:  recipient,
		SrcData:    src,
		DstChainID: req.DstChainID,
		DstTokenID: req.DstTokenID,
		Hops: []types.SwapHop{{
			Index:   0,
			SrcData: cloneData(src),
			TxHash:  req.TxHash,
			Status:  types.StatusPending,
		}},
		Events:    []types.SwapEvent{},
		Status:    types.StatusPending,
		Type:      routeType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.repo.Upsert(ctx, swap); err != nil {
		return nil, fmt.Errorf("failed to save swap: %w", err)
	}
	t.metrics.RecordTracked()
	t.notifier.Notify(ctx, notify.New(types.StatusPending, "Swap submitted", "", swap.ID))
	t.logger.Info().Str("swap", swap.ID.Hex()).Uint64("chain", req.ChainID).Msg("tracking swap")
	return swap.Clone(), nil
}

// ResolveHop attempts to observe hop hopIndex of a swap at currentBlock of
// the hop's chain. Missing data leaves the hop pending with its watermark
// advanced; RPC and decode failures turn it to Error.
func (t *Tracker) ResolveHop(ctx context.Context, id common.Hash, hopIndex int, currentBlock uint64) (*types.Swap, error) {
	return t.mutate(ctx, id, func(swap *types.Swap) (bool, error) {
		if hopIndex < 0 || hopIndex >= len(swap.Hops) {
			return false, fmt.Errorf("swap %s has no hop %d", id.Hex(), hopIndex)
		}
		return t.resolveHop(ctx, swap, hopIndex, currentBlock), nil
	})
}

// ResolveDestination looks for the delivery of the last hop's message on the
// destination chain.
func (t *Tracker) ResolveDestination(ctx context.Context, id common.Hash, currentBlock uint64) (*types.Swap, error) {
	return t.mutate(ctx, id, func(swap *types.Swap) (bool, error) {
		return t.resolveDestination(ctx, swap, currentBlock), nil
	})
}

// Refetch clears the search watermarks of every incomplete hop and of the
// destination, and puts retryable failures back to pending. Completed swaps
// stay completed.
func (t *Tracker) Refetch(ctx context.Context, id common.Hash) (*types.Swap, error) {
	return t.mutate(ctx, id, func(swap *types.Swap) (bool, error) {
		if swap.Status == types.StatusSuccess {
			return false, nil
		}
		for i := range swap.Hops {
			hop := &swap.Hops[i]
			if hop.Status == types.StatusError && hop.Retryable {
				hop.Status = types.StatusPending
				hop.Error = ""
				hop.Retryable = false
			}
			if hop.Status != types.StatusSuccess {
				hop.LastCheckedBlock = nil
				hop.SearchStartBlock = nil
			}
		}
		if !swap.DstData.Complete() {
			swap.DstLastCheckedBlock = nil
		}
		return true, nil
	})
}

// Advance moves a swap forward using a new block of chainID: the first
// pending hop on that chain, or the destination once every hop succeeded.
func (t *Tracker) Advance(ctx context.Context, id common.Hash, chainID, block uint64) (*types.Swap, error) {
	return t.mutate(ctx, id, func(swap *types.Swap) (bool, error) {
		if i := swap.FirstPendingHop(); i >= 0 {
			if swap.Hops[i].SrcData == nil || swap.Hops[i].SrcData.ChainID != chainID {
				return false, nil
			}
			return t.resolveHop(ctx, swap, i, block), nil
		}
		if awaitsOn(swap) == chainID {
			return t.resolveDestination(ctx, swap, block), nil
		}
		return false, nil
	})
}

// mutate runs fn on the stored swap while holding its id, then aggregates,
// persists and notifies when fn reports a change.
func (t *Tracker) mutate(ctx context.Context, id common.Hash, fn func(*types.Swap) (bool, error)) (*types.Swap, error) {
	if !t.acquire(id) {
		return nil, ErrInProgress
	}
	defer t.release(id)

	swap, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := snapshotStatus(swap)

	changed, err := fn(swap)
	if err != nil {
		return nil, err
	}
	if !changed {
		return swap, nil
	}

	Aggregate(swap)
	swap.UpdatedAt = t.now().UTC()
	if err := t.repo.Upsert(ctx, swap); err != nil {
		return nil, fmt.Errorf("failed to save swap: %w", err)
	}
	t.announce(ctx, before, swap)
	return swap.Clone(), nil
}

func (t *Tracker) acquire(id common.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inFlight[id]; busy {
		return false
	}
	t.inFlight[id] = struct{}{}
	return true
}

func (t *Tracker) release(id common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, id)
}

func (t *Tracker) resolveHop(ctx context.Context, swap *types.Swap, i int, current uint64) bool {
	hop := &swap.Hops[i]
	if hop.Status != types.StatusPending {
		return false
	}
	if hop.LastCheckedBlock != nil && *hop.LastCheckedBlock >= current {
		return false
	}
	if hop.SrcData == nil {
		t.failHop(hop, "hop has no source chain", false)
		return true
	}
	c, ok := t.registry.GetChain(hop.SrcData.ChainID)
	if !ok {
		t.failHop(hop, fmt.Sprintf("chain %d not in registry", hop.SrcData.ChainID), false)
		return true
	}

	start := time.Now()
	result := t.lookupHop(ctx, swap, i, c, current)
	t.metrics.RecordResolution(c.Name, result, time.Since(start).Seconds())
	t.logger.Debug().
		Str("swap", swap.ID.Hex()).
		Int("hop", i).
		Str("chain", c.Name).
		Uint64("block", current).
		Str("result", result).
		Msg("hop resolution")
	return result != resultSkipped
}

const (
	resultFound   = "found"
	resultMiss    = "miss"
	resultError   = "error"
	resultTimeout = "timeout"
	resultSkipped = "skipped"
)

func (t *Tracker) lookupHop(ctx context.Context, swap *types.Swap, i int, c *types.Chain, current uint64) string {
	hop := &swap.Hops[i]

	client, err := t.clients.Client(c.ID)
	if err != nil {
		t.failHop(hop, err.Error(), true)
		return resultError
	}

	var (
		receipt *ethtypes.Receipt
		from    = current
	)
	if i == 0 {
		receipt, err = client.TransactionReceipt(ctx, hop.TxHash)
		if err != nil && !chain.IsNotFound(err) {
			t.failHop(hop, fmt.Sprintf("failed to fetch receipt: %v", err), true)
			return resultError
		}
	} else {
		prev := &swap.Hops[i-1]
		if prev.SentMsgID == (common.Hash{}) || prev.SrcData == nil {
			return resultSkipped
		}
		prevChain, ok := t.registry.GetChain(prev.SrcData.ChainID)
		if !ok {
			t.failHop(hop, fmt.Sprintf("chain %d not in registry", prev.SrcData.ChainID), false)
			return resultError
		}

		if hop.LastCheckedBlock == nil && hop.InitiatedBlock == nil && prev.Timestamp > 0 {
			est, err := chain.EstimateBlockAt(ctx, client, prev.Timestamp, c.AvgBlockTime)
			if err != nil {
				t.failHop(hop, fmt.Sprintf("failed to estimate start block: %v", err), true)
				return resultError
			}
			hop.InitiatedBlock = types.Uint64Ptr(est)
		}
		from = searchFrom(hop.LastCheckedBlock, hop.InitiatedBlock, current, c.Query.MaxBlockRange)

		receipt, err = t.findDelivery(ctx, c, client, prev.SentMsgID, prevChain.BlockchainID, from, current)
		if err != nil {
			t.failHop(hop, err.Error(), true)
			return resultError
		}
	}

	if hop.SearchStartBlock == nil {
		hop.SearchStartBlock = types.Uint64Ptr(from)
	}

	if receipt == nil {
		hop.LastCheckedBlock = types.Uint64Ptr(current)
		if t.timedOut(*hop.SearchStartBlock, current) {
			t.failHop(hop, fmt.Sprintf("timed out after %d blocks waiting for hop %d on %s", current-*hop.SearchStartBlock, i+1, c.Name), true)
			return resultTimeout
		}
		return resultMiss
	}

	header, err := client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		t.failHop(hop, fmt.Sprintf("failed to fetch block %v: %v", receipt.BlockNumber, err), true)
		return resultError
	}

	srcToken := ""
	if hop.SrcData != nil {
		srcToken = hop.SrcData.TokenID
	}
	data, err := t.parser.Parse(c, receipt, i, srcToken, swap.Recipient, header.Time)
	if err != nil {
		t.failHop(hop, fmt.Sprintf("failed to decode receipt %s: %v", receipt.TxHash.Hex(), err), true)
		return resultError
	}

	hop.TxHash = receipt.TxHash
	hop.BlockNumber = receipt.BlockNumber.Uint64()
	hop.Timestamp = header.Time
	hop.LastCheckedBlock = types.Uint64Ptr(current)
	if data.Src != nil {
		hop.SrcData = data.Src
	}
	if data.Dst != nil {
		hop.DstData = data.Dst
	}
	hop.SentMsgID = data.SentMsgID
	hop.ReceivedMsgID = data.ReceivedMsgID
	hop.Next = data.Next
	replaceEvents(swap, i, data.Events)

	if i > 0 {
		prev := &swap.Hops[i-1]
		if hop.ReceivedMsgID != prev.SentMsgID {
			t.failHop(hop, fmt.Sprintf("received message %s does not match %s sent by hop %d",
				hop.ReceivedMsgID.Hex(), prev.SentMsgID.Hex(), i-1), false)
			return resultError
		}
		settleBridge(swap, i-1, hop.SrcData)
	}

	if data.Failure != "" {
		t.failHop(hop, data.Failure, false)
		return resultFound
	}
	hop.Status = types.StatusSuccess
	hop.Error = ""
	hop.Retryable = false

	if hop.Next == types.NextHop {
		if data.NextChainID == 0 {
			t.failHop(hop, fmt.Sprintf("destination blockchain %s not in registry", data.NextBlockchain.Hex()), false)
			return resultError
		}
		appendHop(swap, i, data.NextChainID)
	}
	return resultFound
}

func (t *Tracker) resolveDestination(ctx context.Context, swap *types.Swap, current uint64) bool {
	if awaitsOn(swap) == 0 {
		return false
	}
	if swap.DstLastCheckedBlock != nil && *swap.DstLastCheckedBlock >= current {
		return false
	}
	last := swap.LastHop()
	c, ok := t.registry.GetChain(swap.DstChainID)
	if !ok {
		t.failHop(last, fmt.Sprintf("chain %d not in registry", swap.DstChainID), false)
		return true
	}

	start := time.Now()
	result := t.lookupDestination(ctx, swap, c, current)
	t.metrics.RecordResolution(c.Name, result, time.Since(start).Seconds())
	t.logger.Debug().
		Str("swap", swap.ID.Hex()).
		Str("chain", c.Name).
		Uint64("block", current).
		Str("result", result).
		Msg("destination resolution")
	return result != resultSkipped
}

func (t *Tracker) lookupDestination(ctx context.Context, swap *types.Swap, c *types.Chain, current uint64) string {
	last := swap.LastHop()
	lastChain, ok := t.registry.GetChain(last.SrcData.ChainID)
	if !ok {
		t.failHop(last, fmt.Sprintf("chain %d not in registry", last.SrcData.ChainID), false)
		return resultError
	}
	client, err := t.clients.Client(c.ID)
	if err != nil {
		t.failHop(last, err.Error(), true)
		return resultError
	}

	if swap.DstLastCheckedBlock == nil && swap.DstInitiatedBlock == nil && last.Timestamp > 0 {
		est, err := chain.EstimateBlockAt(ctx, client, last.Timestamp, c.AvgBlockTime)
		if err != nil {
			t.failHop(last, fmt.Sprintf("failed to estimate start block: %v", err), true)
			return resultError
		}
		swap.DstInitiatedBlock = types.Uint64Ptr(est)
	}
	from := searchFrom(swap.DstLastCheckedBlock, swap.DstInitiatedBlock, current, c.Query.MaxBlockRange)
	if swap.DstInitiatedBlock == nil {
		swap.DstInitiatedBlock = types.Uint64Ptr(from)
	}

	receipt, err := t.findDelivery(ctx, c, client, last.SentMsgID, lastChain.BlockchainID, from, current)
	if err != nil {
		t.failHop(last, err.Error(), true)
		return resultError
	}
	if receipt == nil {
		swap.DstLastCheckedBlock = types.Uint64Ptr(current)
		if t.timedOut(*swap.DstInitiatedBlock, current) {
			t.failHop(last, fmt.Sprintf("timed out after %d blocks waiting for delivery on %s", current-*swap.DstInitiatedBlock, c.Name), true)
			return resultTimeout
		}
		return resultMiss
	}

	header, err := client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		t.failHop(last, fmt.Sprintf("failed to fetch block %v: %v", receipt.BlockNumber, err), true)
		return resultError
	}
	data, err := t.parser.Parse(c, receipt, len(swap.Hops), swap.DstTokenID, swap.Recipient, header.Time)
	if err != nil {
		t.failHop(last, fmt.Sprintf("failed to decode receipt %s: %v", receipt.TxHash.Hex(), err), true)
		return resultError
	}

	swap.DstTxHash = receipt.TxHash
	swap.DstTimestamp = header.Time
	swap.DstReceivedMsgID = data.ReceivedMsgID

	if data.Failure != "" {
		swap.DstLastCheckedBlock = types.Uint64Ptr(current)
		t.failHop(last, data.Failure, false)
		return resultFound
	}

	dst := data.Dst
	if !dst.Complete() && last.DstData.Complete() {
		dst = cloneData(last.DstData)
	}
	if dst != nil {
		dst.ChainID = c.ID
		if dst.TokenID == "" {
			dst.TokenID = swap.DstTokenID
		}
	}
	// The watermark stays put so a refetch finds the delivery again.
	if !dst.Complete() {
		t.failHop(last, fmt.Sprintf("delivery %s on %s shows no payout to %s",
			receipt.TxHash.Hex(), c.Name, swap.Recipient.Hex()), true)
		return resultError
	}
	swap.DstLastCheckedBlock = types.Uint64Ptr(current)
	swap.DstData = dst
	settleBridge(swap, len(swap.Hops)-1, dst)
	return resultFound
}

// findDelivery searches c for the receipt of the transaction that delivered
// msgID from sourceBlockchain. A nil receipt means it has not landed yet.
func (t *Tracker) findDelivery(ctx context.Context, c *types.Chain, client chain.Client, msgID, sourceBlockchain common.Hash, from, to uint64) (*ethtypes.Receipt, error) {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.Messenger},
		Topics: [][]common.Hash{
			{chain.TopicReceiveCrossChain},
			{msgID},
			{sourceBlockchain},
		},
	}
	logs, err := t.searcher.Search(ctx, c, client, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s logs: %w", c.Name, err)
	}
	if len(logs) == 0 {
		return nil, nil
	}

	receipt, err := client.TransactionReceipt(ctx, logs[0].TxHash)
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch receipt %s: %w", logs[0].TxHash.Hex(), err)
	}
	return receipt, nil
}

func (t *Tracker) timedOut(start, current uint64) bool {
	return t.cfg.MaxPendingBlocks > 0 && current > start && current-start > t.cfg.MaxPendingBlocks
}

func (t *Tracker) failHop(hop *types.SwapHop, msg string, retryable bool) {
	hop.Status = types.StatusError
	hop.Error = msg
	hop.Retryable = retryable
}

// announce reports status transitions between before and the updated swap.
func (t *Tracker) announce(ctx context.Context, before statusSnapshot, swap *types.Swap) {
	for i := range swap.Hops {
		hop := &swap.Hops[i]
		if i < len(before.hops) && before.hops[i] == hop.Status {
			continue
		}
		if hop.Status == types.StatusPending && i >= len(before.hops) {
			continue
		}
		chainName := "unknown chain"
		if hop.SrcData != nil {
			chainName = fmt.Sprintf("chain %d", hop.SrcData.ChainID)
			if c, ok := t.registry.GetChain(hop.SrcData.ChainID); ok {
				chainName = c.Name
			}
		}
		header := fmt.Sprintf("Hop %d %s on %s", i+1, hop.Status, chainName)
		t.notifier.Notify(ctx, notify.New(hop.Status, header, hop.Error, hop.TxHash))
	}

	if before.swap == swap.Status {
		return
	}
	var header string
	switch swap.Status {
	case types.StatusSuccess:
		header = "Swap complete"
	case types.StatusError:
		header = "Swap failed"
	default:
		header = "Swap pending"
	}
	t.notifier.Notify(ctx, notify.New(swap.Status, header, swap.Error, swap.ID))
	if swap.Status.Terminal() {
		t.metrics.RecordFinished(string(swap.Status))
		t.logger.Info().
			Str("swap", swap.ID.Hex()).
			Str("status", string(swap.Status)).
			Str("error", swap.Error).
			Dur("duration", swap.Duration).
			Msg("swap finished")
	}
}

type statusSnapshot struct {
	swap types.Status
	hops []types.Status
}

func snapshotStatus(swap *types.Swap) statusSnapshot {
	s := statusSnapshot{swap: swap.Status, hops: make([]types.Status, len(swap.Hops))}
	for i := range swap.Hops {
		s.hops[i] = swap.Hops[i].Status
	}
	return s
}

// searchFrom picks the first block to search: the watermark, then the
// estimated initiation block, then one lookback window before current.
func searchFrom(lastChecked, initiated *uint64, current, window uint64) uint64 {
	var from uint64
	switch {
	case lastChecked != nil:
		from = *lastChecked
	case initiated != nil:
		from = *initiated
	case current > window:
		from = current - window
	}
	return min(from, current)
}

// awaitsOn returns the chain a swap waits on for its final delivery, or 0.
func awaitsOn(swap *types.Swap) uint64 {
	if !swap.AwaitingDestination() {
		return 0
	}
	if last := swap.LastHop(); last.Next != types.NextDestination {
		return 0
	}
	return swap.DstChainID
}

// appendHop makes sure the hop after i exists and starts on chainID.
func appendHop(swap *types.Swap, i int, chainID uint64) {
	if i+1 < len(swap.Hops) {
		next := &swap.Hops[i+1]
		if next.SrcData == nil {
			next.SrcData = &types.SwapData{}
		}
		next.SrcData.ChainID = chainID
		return
	}
	hop := types.SwapHop{
		Index:   i + 1,
		SrcData: &types.SwapData{ChainID: chainID},
		Status:  types.StatusPending,
	}
	if d := swap.Hops[i].DstData; d != nil {
		hop.SrcData.TokenID = d.TokenID
	}
	swap.Hops = append(swap.Hops, hop)
}

// replaceEvents swaps in the events of hop i, keeping the list ordered by hop.
func replaceEvents(swap *types.Swap, i int, events []types.SwapEvent) {
	out := make([]types.SwapEvent, 0, len(swap.Events)+len(events))
	inserted := false
	for _, ev := range swap.Events {
		if ev.HopIndex == i {
			continue
		}
		if ev.HopIndex > i && !inserted {
			out = append(out, events...)
			inserted = true
		}
		out = append(out, ev)
	}
	if !inserted {
		out = append(out, events...)
	}
	swap.Events = out
}

// settleBridge marks the bridge transfers of hop i delivered with received.
func settleBridge(swap *types.Swap, i int, received *types.SwapData) {
	for j := range swap.Events {
		ev := &swap.Events[j]
		if ev.HopIndex != i || ev.Type != types.EventBridge {
			continue
		}
		ev.Status = types.StatusSuccess
		if received != nil {
			ev.DstData = cloneData(received)
		}
	}
}

func cloneData(d *types.SwapData) *types.SwapData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Amount != nil {
		c.Amount = new(big.Int).Set(d.Amount)
	}
	return &c
}
