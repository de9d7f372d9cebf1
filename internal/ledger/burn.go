package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InitialSupplyDrops is the XRP created at genesis: 100 billion XRP.
const InitialSupplyDrops int64 = 100_000_000_000 * model.DropsPerXRP

// Period is a named lookback measured in days.
type Period struct {
	Name string `yaml:"name"`
	Days int    `yaml:"days"`
}

// DefaultPeriods are the burn windows reported when none are configured.
var DefaultPeriods = []Period{
	{Name: "daily", Days: 1},
	{Name: "weekly", Days: 7},
	{Name: "monthly", Days: 30},
	{Name: "yearly", Days: 365},
}

// BurnConfig tunes the burn calculation.
type BurnConfig struct {
	Periods       []Period
	InitialSupply int64
	// FloorInterval is the shortest plausible time between ledger closes.
	// Lower bounds are estimated with it so they land before the target.
	FloorInterval time.Duration
	// Margin widens the estimated range by this fraction.
	Margin float64
	// MinIndex is the oldest ledger the backends can serve.
	MinIndex    int64
	Concurrency int
}

func (c *BurnConfig) applyDefaults() {
	if len(c.Periods) == 0 {
		c.Periods = DefaultPeriods
	}
	if c.InitialSupply == 0 {
		c.InitialSupply = InitialSupplyDrops
	}
	if c.FloorInterval <= 0 {
		c.FloorInterval = 3 * time.Second
	}
	if c.Margin < 0 {
		c.Margin = 0
	}
	if c.MinIndex <= 0 {
		c.MinIndex = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = len(c.Periods)
	}
}

// BurnCalculator measures how much supply was destroyed over each period.
type BurnCalculator struct {
	cfg      BurnConfig
	fetcher  SnapshotFetcher
	resolver *Resolver
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewBurnCalculator creates a calculator reading snapshots through fetcher.
func NewBurnCalculator(cfg BurnConfig, fetcher SnapshotFetcher, logger *zap.SugaredLogger) *BurnCalculator {
	cfg.applyDefaults()
	return &BurnCalculator{
		cfg:      cfg,
		fetcher:  fetcher,
		resolver: NewResolver(fetcher, cfg.MinIndex),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used to place period targets.
func (c *BurnCalculator) WithClock(now func() time.Time) *BurnCalculator {
	c.now = now
	return c
}

// Compute builds a report against the latest ledger. Only a failure to read
// the latest ledger is returned as an error; a period that cannot be
// resolved is left nil in the report.
func (c *BurnCalculator) Compute(ctx context.Context) (model.BurnReport, error) {
	latest, err := c.fetcher.Snapshot(ctx, Latest)
	if err != nil {
		return model.BurnReport{}, fmt.Errorf("latest ledger: %w", err)
	}
	now := c.now()

	report := model.BurnReport{
		Timestamp:     now.UTC(),
		LedgerIndex:   latest.Index,
		CurrentSupply: latest.TotalSupply,
		TotalBurned:   c.cfg.InitialSupply - latest.TotalSupply,
		Periods:       make(map[string]*int64, len(c.cfg.Periods)),
		ResolvedIndex: make(map[string]int64, len(c.cfg.Periods)),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)
	for _, p := range c.cfg.Periods {
		g.Go(func() error {
			burned, index, err := c.period(ctx, p, latest, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.BurnPeriodFailures.WithLabelValues(p.Name).Inc()
				c.logger.Warnw("burn period unresolved", "period", p.Name, "days", p.Days, "error", err)
				report.Periods[p.Name] = nil
				return nil
			}
			report.Periods[p.Name] = &burned
			report.ResolvedIndex[p.Name] = index
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Infow("burn report computed", "ledger", latest.Index, "periods", len(c.cfg.Periods))
	return report, nil
}

func (c *BurnCalculator) period(ctx context.Context, p Period, latest model.LedgerSnapshot, now time.Time) (int64, int64, error) {
	target := now.Add(-time.Duration(p.Days) * 24 * time.Hour)
	lower := c.LowerBound(latest.Index, now.Sub(target))

	index, err := c.resolver.ResolveIndexAtOrAfter(ctx, target, latest.Index, lower)
	if err != nil {
		return 0, 0, err
	}
	past, err := c.fetcher.Snapshot(ctx, index)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger %d: %w", index, err)
	}
	burned := latest.TotalSupply - past.TotalSupply
	if burned < 0 {
		return 0, 0, fmt.Errorf("supply grew from %d to %d drops since ledger %d", past.TotalSupply, latest.TotalSupply, index)
	}
	return burned, index, nil
}

// LowerBound estimates an index at least span older than current, assuming
// ledgers close no faster than the floor interval, widened by the margin.
func (c *BurnCalculator) LowerBound(current int64, span time.Duration) int64 {
	floor := c.cfg.FloorInterval
	ledgers := int64((span + floor - 1) / floor)
	extra := decimal.NewFromInt(ledgers).Mul(decimal.NewFromFloat(c.cfg.Margin)).Ceil().IntPart()
	lower := current - ledgers - extra
	if lower < c.cfg.MinIndex {
		lower = c.cfg.MinIndex
	}
	if lower > current {
		lower = current
	}
	return lower
}
