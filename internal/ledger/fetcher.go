// Package ledger resolves ledger indexes by close time and computes supply
// burned over calendar periods.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Latest requests the most recent validated ledger.
const Latest int64 = -1

// SnapshotFetcher returns the state of one ledger.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, index int64) (model.LedgerSnapshot, error)
	Name() string
}

// BreakerSettings configures the circuit breaker placed in front of each backend.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:      1,
	Interval:         time.Minute,
	Timeout:          30 * time.Second,
	FailureThreshold: 5,
}

type backend struct {
	fetcher SnapshotFetcher
	breaker *gobreaker.CircuitBreaker
}

// Failover tries each backend in order and returns the first snapshot
// obtained. A backend whose breaker is open is skipped.
type Failover struct {
	backends []backend
	logger   *zap.SugaredLogger
}

// NewFailover wraps fetchers, in priority order, behind one breaker each.
func NewFailover(settings BreakerSettings, logger *zap.SugaredLogger, fetchers ...SnapshotFetcher) *Failover {
	f := &Failover{logger: logger}
	for _, fetcher := range fetchers {
		name := fetcher.Name()
		st := gobreaker.Settings{
			Name:        name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				// a caller giving up says nothing about the backend
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				logger.Warnw("ledger backend breaker changed state", "backend", name, "from", from.String(), "to", to.String())
			},
		}
		metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
		f.backends = append(f.backends, backend{fetcher: fetcher, breaker: gobreaker.NewCircuitBreaker(st)})
	}
	return f
}

func (f *Failover) Name() string { return "failover" }

// Snapshot returns the ledger at index from the first backend that answers.
func (f *Failover) Snapshot(ctx context.Context, index int64) (model.LedgerSnapshot, error) {
	if len(f.backends) == 0 {
		return model.LedgerSnapshot{}, fmt.Errorf("ledger: %w", errs.ErrConfigurationMissing)
	}
	var failures []error
	for _, b := range f.backends {
		if err := ctx.Err(); err != nil {
			return model.LedgerSnapshot{}, errs.Upstream("ledger", err)
		}
		out, err := b.breaker.Execute(func() (any, error) {
			return b.fetcher.Snapshot(ctx, index)
		})
		if err == nil {
			return out.(model.LedgerSnapshot), nil
		}
		f.logger.Debugw("ledger backend failed", "backend", b.fetcher.Name(), "index", index, "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", b.fetcher.Name(), err))
	}
	return model.LedgerSnapshot{}, errs.Upstream("ledger", errors.Join(failures...))
}
