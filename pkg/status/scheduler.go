package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"cellroute/pkg/chain"
	"cellroute/pkg/types"
)

const (
	DefaultPollInterval = 5 * time.Second
	MinPollInterval     = time.Second

	maxSyncSteps = 16
)

// OnNewBlock advances every unfinished swap that waits on chainID, each on
// its own goroutine with at most cfg.Workers running. Per-swap failures are
// recorded on the swap and logged, never returned.
func (t *Tracker) OnNewBlock(ctx context.Context, chainID, block uint64) error {
	swaps, err := t.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list swaps: %w", err)
	}

	pending := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for _, swap := range swaps {
		if swap.Status.Terminal() {
			continue
		}
		pending++
		if waitingChain(swap) != chainID {
			continue
		}
		id := swap.ID
		g.Go(func() error {
			_, err := t.Advance(gctx, id, chainID, block)
			if err != nil && !errors.Is(err, ErrInProgress) {
				t.logger.Error().Err(err).Str("swap", id.Hex()).Uint64("chain", chainID).Msg("failed to advance swap")
			}
			return nil
		})
	}
	t.metrics.SetPending(pending)
	return g.Wait()
}

// Sync advances one swap against the current heads of the chains it waits
// on, hop after hop, until it stops moving.
func (t *Tracker) Sync(ctx context.Context, id common.Hash) (*types.Swap, error) {
	swap, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for step := 0; step < maxSyncSteps && !swap.Status.Terminal(); step++ {
		chainID := waitingChain(swap)
		if chainID == 0 {
			break
		}
		client, err := t.clients.Client(chainID)
		if err != nil {
			return nil, err
		}
		head, err := client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read head of chain %d: %w", chainID, err)
		}

		next, err := t.Advance(ctx, id, chainID, head)
		if err != nil {
			return nil, err
		}
		stalled := waitingChain(next) == chainID &&
			next.FirstPendingHop() == swap.FirstPendingHop() &&
			len(next.Hops) == len(swap.Hops)
		swap = next
		if stalled {
			break
		}
	}
	return swap, nil
}

// waitingChain returns the chain whose next block can move swap forward.
func waitingChain(swap *types.Swap) uint64 {
	if i := swap.FirstPendingHop(); i >= 0 {
		if swap.Hops[i].SrcData == nil {
			return 0
		}
		return swap.Hops[i].SrcData.ChainID
	}
	return awaitsOn(swap)
}

// Watcher polls chain heads and feeds new blocks to a tracker.
type Watcher struct {
	tracker  *Tracker
	clients  chain.Clients
	chains   []*types.Chain
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher over chains. Intervals below MinPollInterval
// are raised to it.
func NewWatcher(tracker *Tracker, clients chain.Clients, chains []*types.Chain, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Watcher{
		tracker:  tracker,
		clients:  clients,
		chains:   chains,
		interval: interval,
	}
}

// Start launches one polling loop per chain.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})

	for _, c := range w.chains {
		w.wg.Add(1)
		go w.watchChain(ctx, c)
	}
	return nil
}

// Stop halts every loop and waits for them to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) watchChain(ctx context.Context, c *types.Chain) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger := w.tracker.logger.With().Str("chain", c.Name).Logger()
	logger.Info().Dur("interval", w.interval).Msg("watching chain")

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			logger.Info().Msg("stopped watching chain")
			return
		case <-ticker.C:
			head, err := w.poll(ctx, c, last)
			if err != nil {
				logger.Warn().Err(err).Msg("poll failed")
				continue
			}
			last = head
		}
	}
}

// poll reads the head of c and, when it moved past last, runs the tracker
// on it.
func (w *Watcher) poll(ctx context.Context, c *types.Chain, last uint64) (uint64, error) {
	client, err := w.clients.Client(c.ID)
	if err != nil {
		return last, err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return last, fmt.Errorf("failed to get block number: %w", err)
	}
	if head <= last {
		return last, nil
	}
	w.tracker.metrics.SetChainHead(c.Name, head)
	if err := w.tracker.OnNewBlock(ctx, c.ID, head); err != nil {
		return last, err
	}
	return head, nil
}
