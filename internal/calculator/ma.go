package calculator

import (
	"errors"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
)

var errShortSeries = errors.New("not enough data")

// SMA computes the simple moving average of the last period closes.
func SMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, errors.New("period must be positive")
	}
	if len(closes) < period {
		return decimal.Zero, errShortSeries
	}
	return decimal.Sum(decimal.Zero, closes[len(closes)-period:]...).
		Div(decimal.NewFromInt(int64(period))), nil
}

// Closes extracts the usable closes of points in order.
func Closes(points []model.PricePoint) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(points))
	for _, p := range points {
		if p.Usable() {
			out = append(out, p.Close.Decimal)
		}
	}
	return out
}
