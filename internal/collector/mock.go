package collector

import (
	"context"
	"sync"
	"time"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without an entry in Series or Errors get generated bars.
type MockFetcher struct {
	Price    float64
	Series   map[string][]model.PricePoint
	Errors   map[string]error
	BatchErr error

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many batches were requested.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) FetchSeries(_ context.Context, symbols []string, period Period) (map[string]Series, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.BatchErr != nil {
		return nil, m.BatchErr
	}
	out := make(map[string]Series, len(symbols))
	for _, sym := range symbols {
		if err, ok := m.Errors[sym]; ok {
			out[sym] = Series{Err: err}
			continue
		}
		if pts, ok := m.Series[sym]; ok {
			out[sym] = Series{Points: pts}
			continue
		}
		if m.Price > 0 {
			out[sym] = Series{Points: generateMockBars(m.Price, periodBars(period))}
		}
	}
	return out, nil
}

func periodBars(p Period) int {
	switch p {
	case PeriodDay:
		return 1
	case PeriodWeek:
		return 5
	case PeriodMonth:
		return 21
	default:
		return 252
	}
}

func generateMockBars(basePrice float64, count int) []model.PricePoint {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.PricePoint{
			Date:   today.AddDate(0, 0, -(count - i)),
			Close:  decimal.NewNullDecimal(decimal.NewFromFloat(p).Round(4)),
			Volume: 1000000,
		}
	}
	return bars
}
