package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownLabel is used for accounts the upstream does not name.
const UnknownLabel = "Unknown"

// RichListAccount is one holder in the balance ranking.
type RichListAccount struct {
	Rank    int             `json:"rank"`
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
	Label   string          `json:"label"`
}

// RichListStats summarizes a balance distribution.
type RichListStats struct {
	TotalBalance    decimal.Decimal `json:"total_balance"`
	AccountCount    int             `json:"account_count"`
	WhaleCount      int             `json:"whale_count"`
	MeanBalance     decimal.Decimal `json:"mean_balance"`
	MedianBalance   decimal.Decimal `json:"median_balance"`
	GiniCoefficient float64         `json:"gini_coefficient"`
}

// RichList is the cached rich-list payload.
type RichList struct {
	Timestamp time.Time         `json:"timestamp"`
	Stats     RichListStats     `json:"stats"`
	Top       []RichListAccount `json:"top_accounts"`
	Cached    bool              `json:"cached"`
	Stale     bool              `json:"stale,omitempty"`
}
