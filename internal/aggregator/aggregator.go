// Package aggregator rolls per-instrument daily series into multi-horizon
// volume summaries, isolating failures to the instrument that caused them.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FlowSentinel/internal/calculator"
	"FlowSentinel/internal/collector"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"go.uber.org/zap"
)

var errNoPrice = errors.New("no price data")

// Result is the outcome of processing one instrument.
type Result struct {
	Symbol string
	Group  string
	Record *model.AggregateRecord
	Err    error
}

// Aggregator builds FetchResults from a SeriesFetcher.
type Aggregator struct {
	fetcher collector.SeriesFetcher
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New creates an Aggregator. The clock defaults to time.Now.
func New(fetcher collector.SeriesFetcher, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{fetcher: fetcher, logger: logger, now: time.Now}
}

// WithClock replaces the clock used as the horizon reference.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate fetches one year of bars for every configured symbol in a single
// batch and builds a record per instrument. Group and instrument order follow
// groups. Per-instrument failures are listed in the result's Errors.
//
// If the batch itself fails, the result has every group empty and one batch
// error entry, and the batch error is also returned.
func (a *Aggregator) Aggregate(ctx context.Context, groups []model.Group) (model.FetchResult, error) {
	asOf := a.now()
	result := model.FetchResult{
		Timestamp: asOf.UTC(),
		Groups:    make([]string, 0, len(groups)),
		Data:      make(map[string][]model.AggregateRecord, len(groups)),
	}
	var symbols []string
	for _, g := range groups {
		result.Groups = append(result.Groups, g.Name)
		result.Data[g.Name] = []model.AggregateRecord{}
		symbols = append(symbols, g.Symbols()...)
	}

	series, err := a.fetcher.FetchSeries(ctx, symbols, collector.PeriodYear)
	if err != nil {
		a.logger.Errorw("batch fetch failed", "source", a.fetcher.Name(), "symbols", len(symbols), "error", err)
		result.Errors = []string{fmt.Sprintf("batch: %v", err)}
		return result, fmt.Errorf("batch fetch: %w", err)
	}

	for _, g := range groups {
		for _, inst := range g.Instruments {
			r := a.process(g.Name, inst, series, asOf)
			if r.Err != nil {
				metrics.AggregationErrors.WithLabelValues(g.Name).Inc()
				a.logger.Warnw("instrument skipped", "group", g.Name, "symbol", inst.Symbol, "error", r.Err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", inst.Symbol, r.Err))
				continue
			}
			result.Data[g.Name] = append(result.Data[g.Name], *r.Record)
		}
	}

	a.logger.Infow("aggregation complete",
		"records", result.RecordCount(), "errors", len(result.Errors))
	return result, nil
}

// process turns one instrument's series into a Result, converting panics
// from malformed data into an error.
func (a *Aggregator) process(group string, inst model.Instrument, series map[string]collector.Series, asOf time.Time) (r Result) {
	r = Result{Symbol: inst.Symbol, Group: group}
	defer func() {
		if p := recover(); p != nil {
			r.Record, r.Err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	s, ok := series[inst.Symbol]
	switch {
	case !ok:
		r.Err = errNoPrice
		return r
	case s.Err != nil:
		r.Err = s.Err
		return r
	}
	r.Record, r.Err = BuildRecord(inst, s.Points, asOf)
	return r
}

// BuildRecord computes the aggregate record for one ascending series.
func BuildRecord(inst model.Instrument, points []model.PricePoint, asOf time.Time) (*model.AggregateRecord, error) {
	latest, ok := calculator.LatestPrice(points)
	if !ok {
		return nil, errNoPrice
	}
	return &model.AggregateRecord{
		Symbol:      inst.Symbol,
		Description: inst.Description,
		Price:       latest.Close.Decimal,
		Windows:     calculator.HorizonWindows(points, latest, asOf),
	}, nil
}
