package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cellroute/pkg/metrics"
	"cellroute/pkg/types"
)

type blockRange struct {
	from, to uint64
}

// splitRange cuts [from, to] into consecutive chunks of at most size blocks.
func splitRange(from, to, size uint64) []blockRange {
	if from > to || size == 0 {
		return nil
	}
	var out []blockRange
	for start := from; ; start += size {
		end := start + size - 1
		if end >= to || end < start {
			out = append(out, blockRange{start, to})
			return out
		}
		out = append(out, blockRange{start, end})
	}
}

// SearchLogs looks for logs matching q in [from, to]. The range is split into
// cfg.MaxBlockRange chunks, queried cfg.BatchSize chunks per round with at
// most cfg.ParallelBatches requests in flight. Rounds run in block order and
// the logs of the first non-empty chunk are returned; an empty result means
// nothing matched.
func SearchLogs(ctx context.Context, client Client, q ethereum.FilterQuery, from, to uint64, cfg types.QueryConfig) ([]ethtypes.Log, error) {
	return searchLogs(ctx, client, q, from, to, cfg, nil)
}

func searchLogs(ctx context.Context, client Client, q ethereum.FilterQuery, from, to uint64, cfg types.QueryConfig, observe func(result string)) ([]ethtypes.Log, error) {
	if cfg.MaxBlockRange == 0 || cfg.BatchSize <= 0 || cfg.ParallelBatches <= 0 {
		return nil, fmt.Errorf("invalid query config %+v", cfg)
	}

	chunks := splitRange(from, to, cfg.MaxBlockRange)
	for i := 0; i < len(chunks); i += cfg.BatchSize {
		round := chunks[i:min(i+cfg.BatchSize, len(chunks))]
		results := make([][]ethtypes.Log, len(round))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.ParallelBatches)
		for j, r := range round {
			g.Go(func() error {
				fq := q
				fq.BlockHash = nil
				fq.FromBlock = new(big.Int).SetUint64(r.from)
				fq.ToBlock = new(big.Int).SetUint64(r.to)

				logs, err := client.FilterLogs(gctx, fq)
				if err != nil {
					if observe != nil {
						observe("error")
					}
					return fmt.Errorf("failed to fetch logs for blocks %d-%d: %w", r.from, r.to, err)
				}
				if observe != nil {
					if len(logs) > 0 {
						observe("hit")
					} else {
						observe("miss")
					}
				}
				results[j] = logs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, logs := range results {
			if len(logs) > 0 {
				return logs, nil
			}
		}
	}

	return nil, nil
}

// Searcher wraps SearchLogs with per-chain metrics and debug logging.
type Searcher struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSearcher(m *metrics.Metrics, logger zerolog.Logger) *Searcher {
	return &Searcher{
		metrics: m,
		logger:  logger.With().Str("component", "log-search").Logger(),
	}
}

// Search runs SearchLogs against chain using the chain's query limits.
func (s *Searcher) Search(ctx context.Context, chain *types.Chain, client Client, q ethereum.FilterQuery, from, to uint64) ([]ethtypes.Log, error) {
	start := time.Now()
	logs, err := searchLogs(ctx, client, q, from, to, chain.Query, func(result string) {
		s.metrics.RecordLogQuery(chain.Name, result)
	})
	s.metrics.RecordSearch(chain.Name, time.Since(start).Seconds())

	s.logger.Debug().
		Str("chain", chain.Name).
		Uint64("from", from).
		Uint64("to", to).
		Int("logs", len(logs)).
		Err(err).
		Msg("log search finished")

	return logs, err
}
