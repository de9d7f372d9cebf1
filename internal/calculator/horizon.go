package calculator

import (
	"time"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// WeeklyBars is the number of trading days in the weekly window.
const WeeklyBars = 5

// LatestPrice returns the most recent point with a present, positive close.
// Points must be in ascending date order.
func LatestPrice(points []model.PricePoint) (model.PricePoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Usable() {
			return points[i], true
		}
	}
	return model.PricePoint{}, false
}

// SumWindow sums shares and close*volume over the usable points. The second
// result is false when the window held no usable point.
func SumWindow(points []model.PricePoint) (model.HorizonWindow, bool) {
	var shares int64
	dollars := decimal.Zero
	used := 0
	for _, p := range points {
		if !p.Usable() {
			continue
		}
		used++
		shares += p.Volume
		dollars = dollars.Add(p.Close.Decimal.Mul(decimal.NewFromInt(p.Volume)))
	}
	if used == 0 {
		return model.HorizonWindow{}, false
	}
	return model.HorizonWindow{Shares: shares, Dollars: dollars.IntPart()}, true
}

// LastN returns the most recent n points.
func LastN(points []model.PricePoint, n int) []model.PricePoint {
	if n <= 0 {
		return nil
	}
	start := len(points) - n
	if start < 0 {
		start = 0
	}
	return points[start:]
}

// Since returns the points dated on or after cutoff's UTC calendar day.
// Bars are dated at UTC midnight, so the cutoff is too.
func Since(points []model.PricePoint, cutoff time.Time) []model.PricePoint {
	cutoff = cutoff.UTC()
	day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	for i, p := range points {
		if !p.Date.Before(day) {
			return points[i:]
		}
	}
	return nil
}

// HorizonWindows computes every horizon for an ascending series as of asOf.
// A horizon with no usable point is left out of the map. latest is the point
// the daily window is taken from.
func HorizonWindows(points []model.PricePoint, latest model.PricePoint, asOf time.Time) map[model.Horizon]model.HorizonWindow {
	out := make(map[model.Horizon]model.HorizonWindow, len(model.Horizons))
	if w, ok := SumWindow([]model.PricePoint{latest}); ok {
		out[model.Daily] = w
	}
	windows := map[model.Horizon][]model.PricePoint{
		model.Weekly:  LastN(points, WeeklyBars),
		model.Monthly: Since(points, asOf.AddDate(0, -1, 0)),
		model.Yearly:  Since(points, asOf.AddDate(-1, 0, 0)),
	}
	for h, pts := range windows {
		if w, ok := SumWindow(pts); ok {
			out[h] = w
		}
	}
	return out
}
