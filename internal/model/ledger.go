package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP = 1_000_000

// LedgerSnapshot is the state of one closed ledger.
type LedgerSnapshot struct {
	Index       int64     `json:"ledger_index"`
	CloseTime   time.Time `json:"close_time"`
	TotalSupply int64     `json:"total_drops"`
}

// BurnReport is the supply destroyed over each configured period.
// Amounts are in drops; a nil period means it could not be resolved.
type BurnReport struct {
	Timestamp     time.Time
	LedgerIndex   int64
	CurrentSupply int64
	TotalBurned   int64
	Periods       map[string]*int64
	ResolvedIndex map[string]int64
	Cached        bool
	Stale         bool
}

// DropsToXRP converts drops to the display unit.
func DropsToXRP(drops int64) decimal.Decimal {
	return decimal.New(drops, 0).Div(decimal.New(DropsPerXRP, 0))
}

// MarshalJSON emits XRP amounts; conversion from drops happens only here.
func (b BurnReport) MarshalJSON() ([]byte, error) {
	periods := make(map[string]*string, len(b.Periods))
	for name, drops := range b.Periods {
		if drops == nil {
			periods[name] = nil
			continue
		}
		s := DropsToXRP(*drops).String()
		periods[name] = &s
	}
	return json.Marshal(struct {
		Timestamp     time.Time          `json:"timestamp"`
		LedgerIndex   int64              `json:"ledger_index"`
		CurrentSupply string             `json:"current_supply"`
		TotalBurned   string             `json:"total_burned"`
		Periods       map[string]*string `json:"burned"`
		ResolvedIndex map[string]int64   `json:"resolved_ledgers"`
		Cached        bool               `json:"cached"`
		Stale         bool               `json:"stale,omitempty"`
	}{
		Timestamp:     b.Timestamp,
		LedgerIndex:   b.LedgerIndex,
		CurrentSupply: DropsToXRP(b.CurrentSupply).String(),
		TotalBurned:   DropsToXRP(b.TotalBurned).String(),
		Periods:       periods,
		ResolvedIndex: b.ResolvedIndex,
		Cached:        b.Cached,
		Stale:         b.Stale,
	})
}
