package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"FlowSentinel/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const topAccounts = 5

func xrp(drops int64) string {
	return humanize.CommafWithDigits(model.DropsToXRP(drops).InexactFloat64(), 2)
}

func amount(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 2)
}

// FormatSnapshot renders one aggregation snapshot, one line per instrument.
func FormatSnapshot(res *model.FetchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>ETF volume</b> | %s UTC\n", res.Timestamp.UTC().Format("2006-01-02 15:04"))
	if res.Stale {
		b.WriteString("<i>refresh failed, showing last good data</i>\n")
	}

	for _, g := range res.Groups {
		fmt.Fprintf(&b, "\n<b>%s</b>\n", html.EscapeString(g))
		recs := res.Data[g]
		if len(recs) == 0 {
			b.WriteString("  no data\n")
			continue
		}
		for _, r := range recs {
			fmt.Fprintf(&b, "  %s $%s", html.EscapeString(r.Symbol), r.Price.StringFixed(2))
			for _, h := range model.Horizons {
				if w, ok := r.Window(h); ok {
					fmt.Fprintf(&b, " | %s %s", h[:1], humanize.Comma(w.Dollars))
				}
			}
			b.WriteString("\n")
		}
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d errors\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  - %s\n", html.EscapeString(e))
		}
	}
	return b.String()
}

// FormatBurn renders the burn report. Unresolved periods show n/a.
func FormatBurn(rep *model.BurnReport, periods []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 <b>XRP burned</b> | ledger #%s\n", humanize.Comma(rep.LedgerIndex))
	fmt.Fprintf(&b, "Supply: %s XRP\n", xrp(rep.CurrentSupply))
	fmt.Fprintf(&b, "Since genesis: %s XRP\n", xrp(rep.TotalBurned))
	for _, p := range periods {
		burned, ok := rep.Periods[p]
		if !ok {
			continue
		}
		if burned == nil {
			fmt.Fprintf(&b, "  %s: n/a\n", p)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s XRP\n", p, xrp(*burned))
	}
	return b.String()
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// FormatRichList renders distribution statistics and the largest accounts.
func FormatRichList(list *model.RichList) string {
	s := list.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "🐋 <b>Rich list</b> | top %d accounts\n", s.AccountCount)
	fmt.Fprintf(&b, "Held: %s XRP\n", amount(s.TotalBalance))
	fmt.Fprintf(&b, "Mean: %s | Median: %s\n", amount(s.MeanBalance), amount(s.MedianBalance))
	fmt.Fprintf(&b, "Whales: %d | Gini: %.4f\n", s.WhaleCount, s.GiniCoefficient)

	for i, a := range list.Top {
		if i == topAccounts {
			break
		}
		fmt.Fprintf(&b, "  %d. %s %s XRP", a.Rank, shortAddress(a.Address), amount(a.Balance))
		if a.Label != "" && a.Label != model.UnknownLabel {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(a.Label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Digest collects whatever sections are available for the daily message.
type Digest struct {
	AsOf     time.Time
	Snapshot *model.FetchResult
	Burn     *model.BurnReport
	Periods  []string
	RichList *model.RichList
	Failures []string
}

// FormatDigest joins the available sections and lists the ones that failed.
func FormatDigest(d Digest) string {
	sections := []string{fmt.Sprintf("📅 <b>FlowSentinel daily</b> | %s", d.AsOf.UTC().Format("2006-01-02"))}
	if d.Snapshot != nil {
		sections = append(sections, FormatSnapshot(d.Snapshot))
	}
	if d.Burn != nil {
		sections = append(sections, FormatBurn(d.Burn, d.Periods))
	}
	if d.RichList != nil {
		sections = append(sections, FormatRichList(d.RichList))
	}
	if len(d.Failures) > 0 {
		var b strings.Builder
		b.WriteString("❌ unavailable:\n")
		for _, f := range d.Failures {
			fmt.Fprintf(&b, "  - %s\n", html.EscapeString(f))
		}
		sections = append(sections, b.String())
	}
	for i := range sections {
		sections[i] = strings.TrimRight(sections[i], "\n")
	}
	return strings.Join(sections, "\n\n")
}
