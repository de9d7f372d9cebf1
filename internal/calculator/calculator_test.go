package calculator

import (
	"testing"
	"time"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(day int, close string, volume int64) model.PricePoint {
	p := model.PricePoint{
		Date:   time.Date(2025, 11, day, 0, 0, 0, 0, time.UTC),
		Volume: volume,
	}
	if close != "" {
		p.Close = decimal.NewNullDecimal(decimal.RequireFromString(close))
	}
	return p
}

func decimals(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestLatestPrice_SkipsMissingAndNonPositive(t *testing.T) {
	points := []model.PricePoint{
		point(3, "12.5", 100),
		point(4, "0", 50),
		point(5, "", 70),
	}
	p, ok := LatestPrice(points)
	require.True(t, ok)
	assert.Equal(t, "12.5", p.Close.Decimal.String())

	_, ok = LatestPrice([]model.PricePoint{point(1, "", 10), point(2, "-1", 10)})
	assert.False(t, ok)
}

func TestHorizonWindows_FiveEqualCloses(t *testing.T) {
	points := []model.PricePoint{
		point(10, "1", 10),
		point(11, "1", 20),
		point(12, "1", 30),
		point(13, "1", 40),
		point(14, "1", 50),
	}
	latest, ok := LatestPrice(points)
	require.True(t, ok)

	w := HorizonWindows(points, latest, time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, model.HorizonWindow{Shares: 50, Dollars: 50}, w[model.Daily])
	assert.Equal(t, model.HorizonWindow{Shares: 150, Dollars: 150}, w[model.Weekly])
	assert.Equal(t, model.HorizonWindow{Shares: 150, Dollars: 150}, w[model.Monthly])
	assert.Equal(t, model.HorizonWindow{Shares: 150, Dollars: 150}, w[model.Yearly])
}

func TestHorizonWindows_WeeklyUsesLastFiveBars(t *testing.T) {
	var points []model.PricePoint
	for d := 1; d <= 8; d++ {
		points = append(points, point(d, "2.5", int64(d*100)))
	}
	latest, _ := LatestPrice(points)
	w := HorizonWindows(points, latest, time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC))

	// days 4..8: 400+500+600+700+800
	assert.Equal(t, int64(3000), w[model.Weekly].Shares)
	assert.Equal(t, int64(7500), w[model.Weekly].Dollars)
	assert.Equal(t, int64(3600), w[model.Monthly].Shares)
	assert.Equal(t, model.HorizonWindow{Shares: 800, Dollars: 2000}, w[model.Daily])
}

func TestHorizonWindows_OmitsEmptyWindow(t *testing.T) {
	points := []model.PricePoint{point(1, "3", 10)}
	latest, _ := LatestPrice(points)

	// as of three months later nothing falls in the monthly window
	w := HorizonWindows(points, latest, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	_, hasMonthly := w[model.Monthly]
	assert.False(t, hasMonthly)
	assert.Contains(t, w, model.Yearly)
	assert.Contains(t, w, model.Weekly)
}

func TestSince_CutoffZoneDoesNotMoveWindow(t *testing.T) {
	points := []model.PricePoint{point(14, "1", 1), point(15, "1", 1), point(16, "1", 1)}
	cutoff := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
	newYork := time.FixedZone("EST", -5*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)

	for _, at := range []time.Time{cutoff, cutoff.In(newYork), cutoff.In(tokyo)} {
		got := Since(points, at)
		require.Len(t, got, 2, at.Location().String())
		assert.Equal(t, 15, got[0].Date.Day())
	}

	// 20:00 in New York is already the 16th in UTC
	late := time.Date(2025, 11, 15, 20, 0, 0, 0, newYork)
	assert.Len(t, Since(points, late), 1)
}

func TestSumWindow_TruncatesDollars(t *testing.T) {
	w, ok := SumWindow([]model.PricePoint{point(1, "10.129", 3), point(2, "", 1000)})
	require.True(t, ok)
	assert.Equal(t, int64(3), w.Shares)
	assert.Equal(t, int64(30), w.Dollars)

	_, ok = SumWindow([]model.PricePoint{point(1, "", 5)})
	assert.False(t, ok)
}

func TestDistribution_Basic(t *testing.T) {
	stats := Distribution(decimals("40", "10", "30", "20"), decimal.NewFromInt(30))

	assert.Equal(t, 4, stats.AccountCount)
	assert.True(t, stats.TotalBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, stats.MeanBalance.Equal(decimal.NewFromInt(25)))
	// lower of the two middle elements
	assert.True(t, stats.MedianBalance.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 2, stats.WhaleCount)
	assert.Equal(t, 0.25, stats.GiniCoefficient)
}

func TestDistribution_OddMedian(t *testing.T) {
	stats := Distribution(decimals("5", "1", "3"), decimal.NewFromInt(100))
	assert.True(t, stats.MedianBalance.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 0, stats.WhaleCount)
}

func TestGini_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		balances []decimal.Decimal
		want     float64
	}{
		{"empty", nil, 0},
		{"all zero", decimals("0", "0", "0"), 0},
		{"equal", decimals("7", "7", "7", "7", "7"), 0},
		{"single holder of four", decimals("0", "0", "100", "0"), 0.75},
		{"single holder of ten", decimals("0", "0", "0", "0", "0", "0", "0", "0", "0", "1"), 0.9},
		{"one account", decimals("42"), 0},
		{"three way", decimals("0", "0", "1.5"), 0.6667},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Distribution(tt.balances, decimal.NewFromInt(1_000_000))
			assert.Equal(t, tt.want, stats.GiniCoefficient)
		})
	}
}

func TestDistribution_DoesNotReorderInput(t *testing.T) {
	in := decimals("3", "1", "2")
	_ = Distribution(in, decimal.Zero)
	assert.Equal(t, "3", in[0].String())
	assert.Equal(t, "1", in[1].String())
}

func TestSMA(t *testing.T) {
	v, err := SMA(decimals("1", "2", "3", "4"), 2)
	require.NoError(t, err)
	assert.Equal(t, "3.5", v.String())

	_, err = SMA(decimals("1"), 2)
	assert.Error(t, err)
	_, err = SMA(decimals("1"), 0)
	assert.Error(t, err)
}

func TestRSI(t *testing.T) {
	rising := decimals("1", "2", "3", "4", "5")
	v, err := RSI(rising, 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	// seeded at 0.5/0.5, then smoothed through +1 and -1
	v, err = RSI(decimals("10", "11", "10", "11", "10"), 2)
	require.NoError(t, err)
	assert.InDelta(t, 37.5, v, 1e-9)

	_, err = RSI(rising, 4)
	require.NoError(t, err)
	_, err = RSI(rising, 5)
	assert.Error(t, err)
}

func TestRangePosition(t *testing.T) {
	d := decimal.RequireFromString
	assert.Equal(t, 0.5, RangePosition(d("3"), d("2"), d("2")))
	assert.Equal(t, 0.25, RangePosition(d("3"), d("6"), d("2")))
	assert.Equal(t, 0.0, RangePosition(d("1"), d("6"), d("2")))
	assert.Equal(t, 1.0, RangePosition(d("9"), d("6"), d("2")))
}

func TestIndicators(t *testing.T) {
	var points []model.PricePoint
	for day := 1; day <= 25; day++ {
		points = append(points, point(day, decimal.NewFromInt(int64(day)).String(), 100))
	}
	points = append(points, point(26, "", 100))

	ind, ok := Indicators(points)
	require.True(t, ok)
	assert.Equal(t, "25", ind.High.String())
	assert.Equal(t, "1", ind.Low.String())
	assert.Equal(t, 1.0, ind.RangePosition)
	require.NotNil(t, ind.SMA20)
	assert.Equal(t, "15.5", ind.SMA20.String())
	assert.Nil(t, ind.SMA50)
	require.NotNil(t, ind.RSI14)
	assert.Equal(t, 100.0, *ind.RSI14)

	_, ok = Indicators([]model.PricePoint{point(1, "", 10)})
	assert.False(t, ok)
}
