package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// RSI computes the Wilder-smoothed relative strength index. It needs at
// least period+1 closes.
func RSI(closes []decimal.Decimal, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 0, errShortSeries
	}

	change := func(i int) float64 {
		return closes[i].Sub(closes[i-1]).InexactFloat64()
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		if c := change(i); c > 0 {
			avgGain += c
		} else {
			avgLoss -= c
		}
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n

	for i := period + 1; i < len(closes); i++ {
		gain, loss := 0.0, 0.0
		if c := change(i); c > 0 {
			gain = c
		} else {
			loss = -c
		}
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
	}

	if avgLoss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}
