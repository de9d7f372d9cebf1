package recorder

import (
	"context"
	"time"

	"FlowSentinel/internal/model"
)

// Recorder persists refreshed values for later analysis.
type Recorder interface {
	RecordSnapshot(ctx context.Context, res *model.FetchResult) error
	RecordBurn(ctx context.Context, rep *model.BurnReport) error
	RecordRichList(ctx context.Context, list *model.RichList) error
	Close() error
}

// flowRow is one instrument of one snapshot. Nil windows had no data.
type flowRow struct {
	Timestamp      time.Time `ch:"timestamp"`
	Group          string    `ch:"group_name"`
	Symbol         string    `ch:"symbol"`
	Price          float64   `ch:"price"`
	DailyShares    *int64    `ch:"daily_shares"`
	DailyDollars   *int64    `ch:"daily_dollars"`
	WeeklyShares   *int64    `ch:"weekly_shares"`
	WeeklyDollars  *int64    `ch:"weekly_dollars"`
	MonthlyShares  *int64    `ch:"monthly_shares"`
	MonthlyDollars *int64    `ch:"monthly_dollars"`
	YearlyShares   *int64    `ch:"yearly_shares"`
	YearlyDollars  *int64    `ch:"yearly_dollars"`
}

func flowRows(res *model.FetchResult) []flowRow {
	var rows []flowRow
	for _, g := range res.Groups {
		for _, rec := range res.Data[g] {
			row := flowRow{
				Timestamp: res.Timestamp,
				Group:     g,
				Symbol:    rec.Symbol,
				Price:     rec.Price.InexactFloat64(),
			}
			targets := map[model.Horizon][2]**int64{
				model.Daily:   {&row.DailyShares, &row.DailyDollars},
				model.Weekly:  {&row.WeeklyShares, &row.WeeklyDollars},
				model.Monthly: {&row.MonthlyShares, &row.MonthlyDollars},
				model.Yearly:  {&row.YearlyShares, &row.YearlyDollars},
			}
			for h, dst := range targets {
				if w, ok := rec.Window(h); ok {
					shares, dollars := w.Shares, w.Dollars
					*dst[0], *dst[1] = &shares, &dollars
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// burnRow is one period of one burn report. Amounts are in drops.
type burnRow struct {
	Timestamp     time.Time `ch:"timestamp"`
	LedgerIndex   int64     `ch:"ledger_index"`
	CurrentSupply int64     `ch:"current_supply"`
	TotalBurned   int64     `ch:"total_burned"`
	Period        string    `ch:"period"`
	Burned        *int64    `ch:"burned"`
	ResolvedIndex *int64    `ch:"resolved_index"`
}

func burnRows(rep *model.BurnReport) []burnRow {
	rows := make([]burnRow, 0, len(rep.Periods))
	for name, burned := range rep.Periods {
		row := burnRow{
			Timestamp:     rep.Timestamp,
			LedgerIndex:   rep.LedgerIndex,
			CurrentSupply: rep.CurrentSupply,
			TotalBurned:   rep.TotalBurned,
			Period:        name,
			Burned:        burned,
		}
		if idx, ok := rep.ResolvedIndex[name]; ok {
			row.ResolvedIndex = &idx
		}
		rows = append(rows, row)
	}
	return rows
}

type richListRow struct {
	Timestamp    time.Time `ch:"timestamp"`
	AccountCount int64     `ch:"account_count"`
	WhaleCount   int64     `ch:"whale_count"`
	TotalBalance float64   `ch:"total_balance"`
	MeanBalance  float64   `ch:"mean_balance"`
	Median       float64   `ch:"median_balance"`
	Gini         float64   `ch:"gini"`
}

func richListRowFrom(list *model.RichList) richListRow {
	s := list.Stats
	return richListRow{
		Timestamp:    list.Timestamp,
		AccountCount: int64(s.AccountCount),
		WhaleCount:   int64(s.WhaleCount),
		TotalBalance: s.TotalBalance.InexactFloat64(),
		MeanBalance:  s.MeanBalance.InexactFloat64(),
		Median:       s.MedianBalance.InexactFloat64(),
		Gini:         s.GiniCoefficient,
	}
}
