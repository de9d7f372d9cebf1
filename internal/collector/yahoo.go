package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultYahooURL is the public chart API host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements SeriesFetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	client      *resty.Client
	SymbolMap   map[string]string // maps internal symbol to Yahoo ticker
	concurrency int
	logger      *zap.SugaredLogger
}

// NewYahooFetcher creates a fetcher with optional proxy support. At most
// concurrency symbols are requested at once.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration, concurrency int, logger *zap.SugaredLogger) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetHeader("Accept", "application/json")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &YahooFetcher{
		client:      client,
		SymbolMap:   map[string]string{},
		concurrency: concurrency,
		logger:      logger,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
// Null entries in the quote arrays decode as nil pointers.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries requests every symbol's daily bars for period. Per-symbol
// failures are reported in the Series; the batch only fails when it cannot
// be attempted or every symbol was unreachable.
func (f *YahooFetcher) FetchSeries(ctx context.Context, symbols []string, period Period) (map[string]Series, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("yahoo: unsupported period %q", period)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Upstream("yahoo", err)
	}

	results := make([]Series, len(symbols))
	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			points, err := f.fetchChart(ctx, sym, period)
			results[i] = Series{Points: points, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Series, len(symbols))
	unreachable := 0
	var firstErr error
	for i, sym := range symbols {
		out[sym] = results[i]
		if errors.Is(results[i].Err, errs.ErrUpstreamUnavailable) {
			unreachable++
			if firstErr == nil {
				firstErr = results[i].Err
			}
		}
	}
	if len(symbols) > 0 && unreachable == len(symbols) {
		return nil, fmt.Errorf("yahoo: all %d symbols unreachable: %w", unreachable, firstErr)
	}
	return out, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, period Period) (points []model.PricePoint, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("yahoo", start, err) }()

	var chart yahooChart
	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("symbol", f.yahooSymbol(symbol)).
		SetQueryParams(map[string]string{
			"interval": "1d",
			"range":    string(period),
		}).
		SetResult(&chart).
		SetError(&chart).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return nil, errs.Upstream("yahoo", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.IsError() {
		if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
			return nil, errs.Upstream("yahoo", fmt.Errorf("status %d", resp.StatusCode()))
		}
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode())
	}
	return parseChart(&chart)
}

func parseChart(chart *yahooChart) ([]model.PricePoint, error) {
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: %w", errs.ErrNoUsableData)
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: missing quote block: %w", errs.ErrNoUsableData)
	}
	quote := result.Indicators.Quote[0]
	if len(quote.Close) != len(result.Timestamp) || len(quote.Volume) != len(result.Timestamp) {
		return nil, fmt.Errorf("yahoo: malformed chart: %d timestamps, %d closes, %d volumes",
			len(result.Timestamp), len(quote.Close), len(quote.Volume))
	}

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c, v := quote.Close[i], quote.Volume[i]
		if c == nil && v == nil {
			continue // skip null bars (holidays etc.)
		}
		p := model.PricePoint{Date: tradingDay(ts, result.Meta.GMTOffset)}
		if c != nil && !math.IsNaN(*c) {
			p.Close = decimal.NewNullDecimal(decimal.NewFromFloat(*c))
		}
		if v != nil && *v > 0 {
			p.Volume = int64(math.Round(*v))
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// tradingDay maps a bar timestamp to its calendar day on the exchange.
func tradingDay(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
