package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// RESTFetcher implements SeriesFetcher against a self-hosted bars service
// that accepts many symbols per request.
type RESTFetcher struct {
	client *resty.Client
}

// NewRESTFetcher creates a fetcher with optional bearer auth and proxy.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &RESTFetcher{client: client}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars API. Close is null for
// bars without a trade.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Close     *float64 `json:"close"`
	Volume    float64  `json:"volume"`
}

type restBatch struct {
	Bars   map[string][]restBar `json:"bars"`
	Errors map[string]string    `json:"errors"`
}

func (f *RESTFetcher) FetchSeries(ctx context.Context, symbols []string, period Period) (out map[string]Series, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("rest", start, err) }()

	if !ValidPeriod(period) {
		return nil, fmt.Errorf("rest: unsupported period %q", period)
	}
	var batch restBatch
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(map[string][]string{
			"symbol": symbols,
			"range":  {string(period)},
		}).
		SetResult(&batch).
		Get("/api/v1/bars/daily")
	if err != nil {
		return nil, errs.Upstream("rest", err)
	}
	if resp.IsError() {
		return nil, errs.Upstream("rest", fmt.Errorf("status %d, body: %s", resp.StatusCode(), resp.String()))
	}

	out = make(map[string]Series, len(batch.Bars)+len(batch.Errors))
	for sym, bars := range batch.Bars {
		points := make([]model.PricePoint, len(bars))
		for i, b := range bars {
			points[i] = model.PricePoint{
				Date:   time.Unix(b.Timestamp, 0).UTC().Truncate(24 * time.Hour),
				Volume: int64(b.Volume),
			}
			if b.Close != nil {
				points[i].Close = decimal.NewNullDecimal(decimal.NewFromFloat(*b.Close))
			}
		}
		// Ensure chronological order
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		out[sym] = Series{Points: points}
	}
	for sym, msg := range batch.Errors {
		out[sym] = Series{Err: errors.New(msg)}
	}
	return out, nil
}
