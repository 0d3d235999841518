package status

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/types"
)

// Aggregate recomputes the swap-level fields from its hops: status, error,
// route type, destination data of a locally settled last hop, and duration.
//
// The status is Error when any hop failed, Success when every hop succeeded
// and the destination data is complete, and Pending otherwise.
func Aggregate(swap *types.Swap) {
	if last := swap.LastHop(); last != nil && last.Status == types.StatusSuccess && last.Next == types.NextNone {
		swap.DstData = cloneData(last.DstData)
		swap.DstTxHash = last.TxHash
		swap.DstTimestamp = last.Timestamp
	}

	swap.Status = deriveStatus(swap)
	swap.Error = ""
	for i := range swap.Hops {
		if swap.Hops[i].Status == types.StatusError {
			swap.Error = fmt.Sprintf("hop %d: %s", i+1, swap.Hops[i].Error)
			break
		}
	}

	for _, ev := range swap.Events {
		if ev.Type == types.EventSwap {
			swap.Type = types.RouteSwap
			break
		}
		if ev.Type == types.EventBridge {
			swap.Type = types.RouteBridge
		}
	}

	swap.Duration = 0
	if len(swap.Hops) > 0 {
		first := swap.Hops[0].Timestamp
		if first > 0 && swap.DstTimestamp >= first {
			swap.Duration = time.Duration(swap.DstTimestamp-first) * time.Second
		}
	}
}

func deriveStatus(swap *types.Swap) types.Status {
	if len(swap.Hops) == 0 {
		return types.StatusPending
	}
	allSuccess := true
	for i := range swap.Hops {
		switch swap.Hops[i].Status {
		case types.StatusError:
			return types.StatusError
		case types.StatusSuccess:
		default:
			allSuccess = false
		}
	}
	if allSuccess && swap.DstData.Complete() {
		return types.StatusSuccess
	}
	return types.StatusPending
}

// VerifyLinkage checks that every hop with data was delivered by the message
// its predecessor sent.
func VerifyLinkage(swap *types.Swap) error {
	for i := 1; i < len(swap.Hops); i++ {
		hop := &swap.Hops[i]
		if hop.TxHash == (common.Hash{}) {
			continue
		}
		if prev := swap.Hops[i-1].SentMsgID; hop.ReceivedMsgID != prev {
			return fmt.Errorf("hop %d received message %s, hop %d sent %s",
				i, hop.ReceivedMsgID.Hex(), i-1, prev.Hex())
		}
	}
	return nil
}
