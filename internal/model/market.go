package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable product shown in one group of the dashboard.
type Instrument struct {
	Symbol      string `yaml:"symbol" json:"symbol"`
	Description string `yaml:"description" json:"description"`
	Group       string `yaml:"-" json:"group"`
}

// Group is an ordered list of instruments under a display name.
type Group struct {
	Name        string       `yaml:"name"`
	Instruments []Instrument `yaml:"instruments"`
}

// Symbols returns the group's symbols in configured order.
func (g Group) Symbols() []string {
	out := make([]string, len(g.Instruments))
	for i, inst := range g.Instruments {
		out[i] = inst.Symbol
	}
	return out
}

// PricePoint is one daily bar. A null close from the upstream keeps Close.Valid false.
type PricePoint struct {
	Date   time.Time           `json:"date"`
	Close  decimal.NullDecimal `json:"close"`
	Volume int64               `json:"volume"`
}

// Usable reports whether the point has a present, strictly positive close.
func (p PricePoint) Usable() bool {
	return p.Close.Valid && p.Close.Decimal.IsPositive()
}

// Horizon tags a lookback window.
type Horizon string

const (
	Daily   Horizon = "daily"
	Weekly  Horizon = "weekly"
	Monthly Horizon = "monthly"
	Yearly  Horizon = "yearly"
)

// Horizons lists every horizon in display order.
var Horizons = []Horizon{Daily, Weekly, Monthly, Yearly}

// HorizonWindow holds share and dollar volume summed over one horizon.
type HorizonWindow struct {
	Shares  int64 `json:"shares"`
	Dollars int64 `json:"dollars"`
}

// AggregateRecord is the per-instrument output of one aggregation pass.
type AggregateRecord struct {
	Symbol      string
	Description string
	Price       decimal.Decimal
	Windows     map[Horizon]HorizonWindow
}

// Window returns the window for h and whether it is present.
func (r AggregateRecord) Window(h Horizon) (HorizonWindow, bool) {
	w, ok := r.Windows[h]
	return w, ok
}

// MarshalJSON flattens the windows into daily/weekly/monthly/yearly keys,
// leaving out horizons that had no data.
func (r AggregateRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"symbol":      r.Symbol,
		"description": r.Description,
		"price":       r.Price.Round(2).InexactFloat64(),
	}
	for _, h := range Horizons {
		if w, ok := r.Windows[h]; ok {
			out[string(h)] = w
		}
	}
	return json.Marshal(out)
}

// FetchResult is one aggregation snapshot across all groups.
type FetchResult struct {
	Timestamp time.Time                    `json:"timestamp"`
	Groups    []string                     `json:"groups"`
	Data      map[string][]AggregateRecord `json:"data"`
	Errors    []string                     `json:"errors"`
	Cached    bool                         `json:"cached"`
	CacheAge  *int64                       `json:"cache_age,omitempty"`
	Stale     bool                         `json:"stale,omitempty"`
}

// RecordCount returns the number of records across all groups.
func (f FetchResult) RecordCount() int {
	n := 0
	for _, recs := range f.Data {
		n += len(recs)
	}
	return n
}
