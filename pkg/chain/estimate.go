package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// headerTimes memoizes block timestamps during one estimate.
type headerTimes struct {
	client Client
	seen   map[uint64]uint64
}

func (h *headerTimes) at(ctx context.Context, number uint64) (uint64, error) {
	if t, ok := h.seen[number]; ok {
		return t, nil
	}
	header, err := h.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch header %d: %w", number, err)
	}
	h.seen[number] = header.Time
	return header.Time, nil
}

// EstimateBlockAt returns the latest block whose timestamp is at or before ts
// (unix seconds). It guesses from avgBlockTime, brackets the answer by
// doubling steps away from the guess, then bisects. If ts predates block 0,
// block 0 is returned.
func EstimateBlockAt(ctx context.Context, client Client, ts uint64, avgBlockTime time.Duration) (uint64, error) {
	latest, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}

	times := &headerTimes{client: client, seen: make(map[uint64]uint64)}
	latestTime, err := times.at(ctx, latest)
	if err != nil {
		return 0, err
	}
	if latestTime <= ts {
		return latest, nil
	}

	blockSeconds := uint64(avgBlockTime / time.Second)
	if blockSeconds == 0 {
		blockSeconds = 1
	}
	back := (latestTime - ts) / blockSeconds
	if back > latest {
		back = latest
	}

	// Invariant once bracketed: time(lo) <= ts < time(hi).
	hi := latest
	lo := latest - back
	step := max(back/8, 1)

	loTime, err := times.at(ctx, lo)
	if err != nil {
		return 0, err
	}

	if loTime > ts {
		// Guess is too late: walk back.
		for loTime > ts {
			hi = lo
			if lo == 0 {
				return 0, nil
			}
			if step > lo {
				lo = 0
			} else {
				lo -= step
			}
			step *= 2
			if loTime, err = times.at(ctx, lo); err != nil {
				return 0, err
			}
		}
	} else {
		// Guess is early enough: walk forward while still not past ts.
		for {
			next := lo + step
			if next >= hi {
				break
			}
			nextTime, err := times.at(ctx, next)
			if err != nil {
				return 0, err
			}
			if nextTime > ts {
				hi = next
				break
			}
			lo = next
			step *= 2
		}
	}

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		midTime, err := times.at(ctx, mid)
		if err != nil {
			return 0, err
		}
		if midTime <= ts {
			lo = mid
		} else {
			hi = mid
		}
	}

	return lo, nil
}
