package collector

import (
	"context"

	"FlowSentinel/internal/model"
)

// Period is a lookback range understood by the quote upstream.
type Period string

const (
	PeriodDay   Period = "1d"
	PeriodWeek  Period = "5d"
	PeriodMonth Period = "1mo"
	PeriodYear  Period = "1y"
)

// ValidPeriod reports whether p is one of the supported ranges.
func ValidPeriod(p Period) bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Series is one symbol's bars, or the reason they could not be fetched.
type Series struct {
	Points []model.PricePoint
	Err    error
}

// SeriesFetcher fetches daily bars for many symbols at once. Symbols with no
// data may be missing from the result. A returned error means the batch as a
// whole could not be attempted.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbols []string, period Period) (map[string]Series, error)
	Name() string
}
