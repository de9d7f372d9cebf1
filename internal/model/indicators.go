package model

import "github.com/shopspring/decimal"

// PriceIndicators summarizes a close series. Averages and RSI are nil when
// the series is too short for their period.
type PriceIndicators struct {
	SMA20         *decimal.Decimal `json:"sma20,omitempty"`
	SMA50         *decimal.Decimal `json:"sma50,omitempty"`
	RSI14         *float64         `json:"rsi14,omitempty"`
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	RangePosition float64          `json:"range_position"` // 0.0 ~ 1.0
}
