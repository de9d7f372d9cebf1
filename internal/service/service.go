// Package service is the request-path facade: every read goes through one
// of its cache buckets.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"FlowSentinel/internal/aggregator"
	"FlowSentinel/internal/cache"
	"FlowSentinel/internal/calculator"
	"FlowSentinel/internal/collector"
	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/ledger"
	"FlowSentinel/internal/model"
	"FlowSentinel/internal/richlist"
	"FlowSentinel/internal/social"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bucket names accepted by Reset.
const (
	BucketSnapshot = "snapshot"
	BucketHistory  = "history"
	BucketBurn     = "burn"
	BucketRichList = "richlist"
	BucketSocial   = "social"
)

// TTLs holds the lifetime of each bucket.
type TTLs struct {
	Snapshot time.Duration
	History  time.Duration
	Burn     time.Duration
	RichList time.Duration
	Social   time.Duration
}

// History is a cached price series for one symbol.
type History struct {
	Symbol     string                 `json:"symbol"`
	Period     string                 `json:"period"`
	Points     []model.PricePoint     `json:"points"`
	Indicators *model.PriceIndicators `json:"indicators,omitempty"`
	Cached     bool                   `json:"cached"`
	CacheAge   *int64                 `json:"cache_age,omitempty"`
	Stale      bool                   `json:"stale,omitempty"`
}

// SocialPayload wraps an opaque social metrics response.
type SocialPayload struct {
	Kind   string          `json:"kind"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data"`
	Cached bool            `json:"cached"`
	Stale  bool            `json:"stale,omitempty"`
}

// Probe is the result of an uncached test fetch.
type Probe struct {
	Symbol      string           `json:"symbol"`
	Source      string           `json:"source"`
	Success     bool             `json:"success"`
	Points      int              `json:"points"`
	LatestClose *decimal.Decimal `json:"latest_close,omitempty"`
	LatestDate  *time.Time       `json:"latest_date,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type settings struct {
	burn           *ledger.BurnCalculator
	rich           richlist.Fetcher
	richLimit      int
	whaleThreshold decimal.Decimal
	social         social.Fetcher
	socialTopic    string
	probeSymbol    string
	computeTimeout time.Duration
}

// Option enables an optional feature.
type Option func(*settings)

// WithBurn enables the burn report.
func WithBurn(calc *ledger.BurnCalculator) Option {
	return func(s *settings) { s.burn = calc }
}

// WithRichList enables rich-list statistics over the top limit accounts.
func WithRichList(f richlist.Fetcher, limit int, whaleThreshold decimal.Decimal) Option {
	return func(s *settings) {
		s.rich, s.richLimit, s.whaleThreshold = f, limit, whaleThreshold
	}
}

// WithSocial enables social metrics with defaultTopic used when a request names none.
func WithSocial(f social.Fetcher, defaultTopic string) Option {
	return func(s *settings) { s.social, s.socialTopic = f, defaultTopic }
}

// WithProbeSymbol sets the symbol fetched by Probe.
func WithProbeSymbol(symbol string) Option {
	return func(s *settings) { s.probeSymbol = symbol }
}

// WithComputeTimeout bounds every cache refresh.
func WithComputeTimeout(d time.Duration) Option {
	return func(s *settings) { s.computeTimeout = d }
}

// Service owns one cache bucket per data class.
type Service struct {
	cfg     settings
	groups  []model.Group
	symbols map[string]model.Instrument
	series  collector.SeriesFetcher
	agg     *aggregator.Aggregator
	logger  *zap.SugaredLogger

	snapshots *cache.Bucket[model.FetchResult]
	histories *cache.Bucket[[]model.PricePoint]
	burns     *cache.Bucket[model.BurnReport]
	richLists *cache.Bucket[model.RichList]
	socials   *cache.Bucket[json.RawMessage]
}

// New creates the service and its buckets. Features not enabled by an
// option report errs.ErrConfigurationMissing.
func New(groups []model.Group, series collector.SeriesFetcher, ttls TTLs, logger *zap.SugaredLogger, opts ...Option) *Service {
	cfg := settings{computeTimeout: 2 * time.Minute, richLimit: 100}
	for _, opt := range opts {
		opt(&cfg)
	}
	copts := []cache.Option{cache.WithTimeout(cfg.computeTimeout)}

	symbols := make(map[string]model.Instrument)
	for _, g := range groups {
		for _, inst := range g.Instruments {
			symbols[inst.Symbol] = inst
		}
	}

	return &Service{
		cfg:       cfg,
		groups:    groups,
		symbols:   symbols,
		series:    series,
		agg:       aggregator.New(series, logger.Named("aggregator")),
		logger:    logger,
		snapshots: cache.New[model.FetchResult](BucketSnapshot, ttls.Snapshot, logger, copts...),
		histories: cache.New[[]model.PricePoint](BucketHistory, ttls.History, logger, copts...),
		burns:     cache.New[model.BurnReport](BucketBurn, ttls.Burn, logger, copts...),
		richLists: cache.New[model.RichList](BucketRichList, ttls.RichList, logger, copts...),
		socials:   cache.New[json.RawMessage](BucketSocial, ttls.Social, logger, copts...),
	}
}

// Groups returns the configured groups.
func (s *Service) Groups() []model.Group { return s.groups }

// Enabled reports which optional features are configured.
func (s *Service) Enabled() map[string]bool {
	return map[string]bool{
		BucketBurn:     s.cfg.burn != nil,
		BucketRichList: s.cfg.rich != nil,
		BucketSocial:   s.cfg.social != nil,
	}
}

func cacheAge[T any](r cache.Result[T]) *int64 {
	if !r.Cached {
		return nil
	}
	age := int64(r.Age.Seconds())
	return &age
}

func (s *Service) logStale(bucket string, err error) {
	if err != nil {
		s.logger.Warnw("serving stale value", "bucket", bucket, "error", err)
	}
}

const snapshotKey = "all"

func (s *Service) computeSnapshot(ctx context.Context) (model.FetchResult, error) {
	return s.agg.Aggregate(ctx, s.groups)
}

// Snapshot returns the multi-horizon aggregate of every configured group.
func (s *Service) Snapshot(ctx context.Context) (model.FetchResult, error) {
	return s.snapshot(ctx, s.snapshots.GetOrRefresh)
}

// RefreshSnapshot recomputes the snapshot regardless of its age.
func (s *Service) RefreshSnapshot(ctx context.Context) (model.FetchResult, error) {
	return s.snapshot(ctx, s.snapshots.Refresh)
}

type getter[T any] func(ctx context.Context, key string, compute cache.ComputeFunc[T]) (cache.Result[T], error)

func (s *Service) snapshot(ctx context.Context, get getter[model.FetchResult]) (model.FetchResult, error) {
	r, err := get(ctx, snapshotKey, s.computeSnapshot)
	if err != nil {
		return model.FetchResult{}, err
	}
	s.logStale(BucketSnapshot, r.RefreshErr)
	out := r.Value // copy; the stored value is not modified
	out.Cached = r.Cached
	out.CacheAge = cacheAge(r)
	out.Stale = r.Stale
	return out, nil
}

// History returns the daily series of a configured symbol over period.
func (s *Service) History(ctx context.Context, symbol, period string) (History, error) {
	p := collector.Period(period)
	if !collector.ValidPeriod(p) {
		return History{}, fmt.Errorf("%w: period %q", errs.ErrInvalidArgument, period)
	}
	if _, ok := s.symbols[symbol]; !ok {
		return History{}, fmt.Errorf("%w: unknown symbol %q", errs.ErrInvalidArgument, symbol)
	}

	r, err := s.histories.GetOrRefresh(ctx, symbol+"|"+period, func(ctx context.Context) ([]model.PricePoint, error) {
		return s.fetchOne(ctx, symbol, p)
	})
	if err != nil {
		return History{}, err
	}
	s.logStale(BucketHistory, r.RefreshErr)
	h := History{
		Symbol:   symbol,
		Period:   period,
		Points:   r.Value,
		Cached:   r.Cached,
		CacheAge: cacheAge(r),
		Stale:    r.Stale,
	}
	if ind, ok := calculator.Indicators(r.Value); ok {
		h.Indicators = &ind
	}
	return h, nil
}

func (s *Service) fetchOne(ctx context.Context, symbol string, period collector.Period) ([]model.PricePoint, error) {
	out, err := s.series.FetchSeries(ctx, []string{symbol}, period)
	if err != nil {
		return nil, err
	}
	series, ok := out[symbol]
	switch {
	case !ok:
		return nil, fmt.Errorf("%s: %w", symbol, errs.ErrNoUsableData)
	case series.Err != nil:
		return nil, fmt.Errorf("%s: %w", symbol, series.Err)
	case len(series.Points) == 0:
		return nil, fmt.Errorf("%s: %w", symbol, errs.ErrNoUsableData)
	}
	return series.Points, nil
}

// Probe fetches the probe symbol's last five days without the cache.
func (s *Service) Probe(ctx context.Context) Probe {
	symbol := s.cfg.probeSymbol
	if symbol == "" && len(s.groups) > 0 && len(s.groups[0].Instruments) > 0 {
		symbol = s.groups[0].Instruments[0].Symbol
	}
	p := Probe{Symbol: symbol, Source: s.series.Name()}
	points, err := s.fetchOne(ctx, symbol, collector.PeriodWeek)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.Success = true
	p.Points = len(points)
	if latest, ok := calculator.LatestPrice(points); ok {
		c, d := latest.Close.Decimal, latest.Date
		p.LatestClose, p.LatestDate = &c, &d
	}
	return p
}

const burnKey = "latest"

// Burn returns the supply burned over each configured period.
func (s *Service) Burn(ctx context.Context) (model.BurnReport, error) {
	return s.burn(ctx, s.burns.GetOrRefresh)
}

// RefreshBurn recomputes the burn report regardless of its age.
func (s *Service) RefreshBurn(ctx context.Context) (model.BurnReport, error) {
	return s.burn(ctx, s.burns.Refresh)
}

func (s *Service) burn(ctx context.Context, get getter[model.BurnReport]) (model.BurnReport, error) {
	if s.cfg.burn == nil {
		return model.BurnReport{}, fmt.Errorf("burn report: %w", errs.ErrConfigurationMissing)
	}
	r, err := get(ctx, burnKey, s.cfg.burn.Compute)
	if err != nil {
		return model.BurnReport{}, err
	}
	s.logStale(BucketBurn, r.RefreshErr)
	out := r.Value
	out.Cached, out.Stale = r.Cached, r.Stale
	return out, nil
}

const richListKey = "top"

// RichList returns distribution statistics over the largest accounts.
func (s *Service) RichList(ctx context.Context) (model.RichList, error) {
	return s.richList(ctx, s.richLists.GetOrRefresh)
}

// RefreshRichList recomputes the rich list regardless of its age.
func (s *Service) RefreshRichList(ctx context.Context) (model.RichList, error) {
	return s.richList(ctx, s.richLists.Refresh)
}

func (s *Service) richList(ctx context.Context, get getter[model.RichList]) (model.RichList, error) {
	if s.cfg.rich == nil {
		return model.RichList{}, fmt.Errorf("rich list: %w", errs.ErrConfigurationMissing)
	}
	r, err := get(ctx, richListKey, s.computeRichList)
	if err != nil {
		return model.RichList{}, err
	}
	s.logStale(BucketRichList, r.RefreshErr)
	out := r.Value
	out.Cached, out.Stale = r.Cached, r.Stale
	return out, nil
}

func (s *Service) computeRichList(ctx context.Context) (model.RichList, error) {
	accounts, err := s.cfg.rich.FetchBalances(ctx, s.cfg.richLimit)
	if err != nil {
		return model.RichList{}, err
	}
	balances := make([]decimal.Decimal, len(accounts))
	for i, a := range accounts {
		balances[i] = a.Balance
	}
	return model.RichList{
		Timestamp: time.Now().UTC(),
		Stats:     calculator.Distribution(balances, s.cfg.whaleThreshold),
		Top:       accounts,
	}, nil
}

// Social returns the payload of one social endpoint. An empty topic uses
// the configured default.
func (s *Service) Social(ctx context.Context, kind, topic string, params url.Values) (SocialPayload, error) {
	if s.cfg.social == nil {
		return SocialPayload{}, fmt.Errorf("social metrics: %w", errs.ErrConfigurationMissing)
	}
	if !knownKind(kind) {
		return SocialPayload{}, fmt.Errorf("%w: %w: %q", errs.ErrInvalidArgument, social.ErrUnknownKind, kind)
	}
	if topic == "" {
		topic = s.cfg.socialTopic
	}
	r, err := s.socials.GetOrRefresh(ctx, social.CacheKey(kind, topic, params), func(ctx context.Context) (json.RawMessage, error) {
		return s.cfg.social.Fetch(ctx, kind, topic, params)
	})
	if err != nil {
		return SocialPayload{}, err
	}
	s.logStale(BucketSocial, r.RefreshErr)
	return SocialPayload{Kind: kind, Topic: topic, Data: r.Value, Cached: r.Cached, Stale: r.Stale}, nil
}

func knownKind(kind string) bool {
	kinds := social.Kinds()
	i := sort.SearchStrings(kinds, kind)
	return i < len(kinds) && kinds[i] == kind
}

// BucketNames lists the buckets Reset accepts, besides "all".
func BucketNames() []string {
	return []string{BucketSnapshot, BucketHistory, BucketBurn, BucketRichList, BucketSocial}
}

type invalidator interface {
	InvalidateAll()
	Len() int
}

func (s *Service) buckets() map[string]invalidator {
	return map[string]invalidator{
		BucketSnapshot: s.snapshots,
		BucketHistory:  s.histories,
		BucketBurn:     s.burns,
		BucketRichList: s.richLists,
		BucketSocial:   s.socials,
	}
}

// Reset clears one bucket by name, or every bucket for "all", and returns
// the names cleared.
func (s *Service) Reset(name string) ([]string, error) {
	all := s.buckets()
	if name == "all" {
		for _, n := range BucketNames() {
			all[n].InvalidateAll()
		}
		return BucketNames(), nil
	}
	b, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bucket %q", errs.ErrInvalidArgument, name)
	}
	b.InvalidateAll()
	return []string{name}, nil
}

// Entries returns the number of entries held per bucket.
func (s *Service) Entries() map[string]int {
	out := make(map[string]int)
	for name, b := range s.buckets() {
		out[name] = b.Len()
	}
	return out
}

// Close drops every cached entry.
func (s *Service) Close() {
	for _, b := range s.buckets() {
		b.InvalidateAll()
	}
}
