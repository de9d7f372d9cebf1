package ledger

import (
	"context"
	"fmt"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"
)

// Resolver finds ledger indexes by close time with a binary search over
// snapshot probes.
type Resolver struct {
	fetcher  SnapshotFetcher
	minIndex int64
}

// NewResolver creates a Resolver that probes through fetcher. minIndex is
// the oldest ledger the backends serve; a search may end there unverified.
func NewResolver(fetcher SnapshotFetcher, minIndex int64) *Resolver {
	return &Resolver{fetcher: fetcher, minIndex: minIndex}
}

// probeBound is the tightest probe seen on one side of the target.
type probeBound struct {
	set  bool
	snap model.LedgerSnapshot
}

// ResolveIndexAtOrAfter returns the first index in [lowerBound, current]
// whose close time is not before target. If every ledger in the range closed
// before target, current is returned.
//
// A failed probe aborts the search. So does a probe whose close time is out
// of order with respect to earlier probes, or a snapshot for an index other
// than the one requested; both are reported as ErrNonMonotonic.
//
// If the search ends at lowerBound above the resolver's minimum index, the
// ledger before it is probed too and must have closed before target;
// otherwise lowerBound was too recent and the search fails.
func (r *Resolver) ResolveIndexAtOrAfter(ctx context.Context, target time.Time, current, lowerBound int64) (int64, error) {
	if lowerBound < 0 || lowerBound > current {
		return 0, &errs.ResolutionError{
			Target: target,
			Err:    fmt.Errorf("invalid range [%d, %d]", lowerBound, current),
		}
	}

	var below, above probeBound // below: close < target, above: close >= target
	low, high := lowerBound, current
	for low < high {
		mid := low + (high-low)/2
		metrics.LedgerProbes.Inc()
		snap, err := r.fetcher.Snapshot(ctx, mid)
		if err != nil {
			return 0, &errs.ResolutionError{Target: target, Err: fmt.Errorf("probe %d: %w", mid, err)}
		}
		if err := checkProbe(mid, snap, below, above); err != nil {
			return 0, &errs.ResolutionError{Target: target, Err: err}
		}

		if snap.CloseTime.Before(target) {
			below = probeBound{set: true, snap: snap}
			low = mid + 1
		} else {
			above = probeBound{set: true, snap: snap}
			high = mid
		}
	}

	if low == lowerBound && !below.set && lowerBound > r.minIndex {
		if err := r.checkLowerBound(ctx, target, lowerBound, above); err != nil {
			return 0, err
		}
	}
	return low, nil
}

func (r *Resolver) checkLowerBound(ctx context.Context, target time.Time, lowerBound int64, above probeBound) error {
	prev := lowerBound - 1
	metrics.LedgerProbes.Inc()
	snap, err := r.fetcher.Snapshot(ctx, prev)
	if err != nil {
		return &errs.ResolutionError{Target: target, Err: fmt.Errorf("probe %d: %w", prev, err)}
	}
	if err := checkProbe(prev, snap, probeBound{}, above); err != nil {
		return &errs.ResolutionError{Target: target, Err: err}
	}
	if !snap.CloseTime.Before(target) {
		return &errs.ResolutionError{Target: target, Err: fmt.Errorf(
			"lower bound %d too recent: ledger %d closed at %s", lowerBound, prev, snap.CloseTime.Format(time.RFC3339))}
	}
	return nil
}

func checkProbe(requested int64, snap model.LedgerSnapshot, below, above probeBound) error {
	if snap.Index != requested {
		return fmt.Errorf("probe %d returned ledger %d: %w", requested, snap.Index, errs.ErrNonMonotonic)
	}
	if below.set && snap.CloseTime.Before(below.snap.CloseTime) {
		return fmt.Errorf("ledger %d closed at %s, before ledger %d at %s: %w",
			snap.Index, snap.CloseTime.Format(time.RFC3339), below.snap.Index,
			below.snap.CloseTime.Format(time.RFC3339), errs.ErrNonMonotonic)
	}
	if above.set && snap.CloseTime.After(above.snap.CloseTime) {
		return fmt.Errorf("ledger %d closed at %s, after ledger %d at %s: %w",
			snap.Index, snap.CloseTime.Format(time.RFC3339), above.snap.Index,
			above.snap.CloseTime.Format(time.RFC3339), errs.ErrNonMonotonic)
	}
	return nil
}
