package calculator

import (
	"errors"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Range returns the highest and lowest close.
func Range(closes []decimal.Decimal) (high, low decimal.Decimal, err error) {
	if len(closes) == 0 {
		return decimal.Zero, decimal.Zero, errors.New("no closes provided")
	}
	return decimal.Max(closes[0], closes[1:]...), decimal.Min(closes[0], closes[1:]...), nil
}

// RangePosition returns where current sits between low and high, clamped
// to [0, 1]. A flat range is 0.5.
func RangePosition(current, high, low decimal.Decimal) float64 {
	if !high.GreaterThan(low) {
		return 0.5
	}
	pos := current.Sub(low).Div(high.Sub(low)).InexactFloat64()
	switch {
	case pos < 0:
		return 0
	case pos > 1:
		return 1
	}
	return pos
}

// Indicators computes the moving averages, RSI and range of a series.
// It reports false when the series has no usable close.
func Indicators(points []model.PricePoint) (model.PriceIndicators, bool) {
	closes := Closes(points)
	high, low, err := Range(closes)
	if err != nil {
		return model.PriceIndicators{}, false
	}
	ind := model.PriceIndicators{
		High:          high,
		Low:           low,
		RangePosition: RangePosition(closes[len(closes)-1], high, low),
	}
	if v, err := SMA(closes, 20); err == nil {
		ind.SMA20 = &v
	}
	if v, err := SMA(closes, 50); err == nil {
		ind.SMA50 = &v
	}
	if v, err := RSI(closes, 14); err == nil {
		v = decimal.NewFromFloat(v).Round(2).InexactFloat64()
		ind.RSI14 = &v
	}
	return ind, true
}
