package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var asOf = time.Date(2025, 11, 15, 22, 0, 0, 0, time.UTC)

func TestFormatSnapshot(t *testing.T) {
	res := &model.FetchResult{
		Timestamp: asOf,
		Groups:    []string{"Spot ETFs", "Canada ETFs"},
		Data: map[string][]model.AggregateRecord{
			"Spot ETFs": {{
				Symbol: "XRPC",
				Price:  decimal.RequireFromString("24.305"),
				Windows: map[model.Horizon]model.HorizonWindow{
					model.Daily:  {Shares: 100, Dollars: 2431},
					model.Yearly: {Shares: 90000, Dollars: 2_187_450},
				},
			}},
		},
		Errors: []string{"XRPQ.TO: no price data"},
	}
	out := FormatSnapshot(res)

	assert.Contains(t, out, "2025-11-15 22:00 UTC")
	assert.Contains(t, out, "XRPC $24.31 | d 2,431 | y 2,187,450\n")
	assert.NotContains(t, out, "| w ")
	assert.Contains(t, out, "<b>Canada ETFs</b>\n  no data")
	assert.Contains(t, out, "1 errors\n  - XRPQ.TO: no price data")
}

func TestFormatBurn(t *testing.T) {
	daily := int64(1_500_000_000)
	rep := &model.BurnReport{
		LedgerIndex:   91_234_567,
		CurrentSupply: 99_985_000_000_000_000,
		TotalBurned:   15_000_000_000_000,
		Periods:       map[string]*int64{"daily": &daily, "monthly": nil},
	}
	out := FormatBurn(rep, []string{"daily", "weekly", "monthly"})

	assert.Contains(t, out, "ledger #91,234,567")
	assert.Contains(t, out, "Since genesis: 15,000,000 XRP")
	assert.Contains(t, out, "daily: 1,500 XRP")
	assert.Contains(t, out, "monthly: n/a")
	assert.NotContains(t, out, "weekly")
}

func TestFormatRichList(t *testing.T) {
	list := &model.RichList{
		Stats: model.RichListStats{
			TotalBalance:    decimal.NewFromInt(100),
			AccountCount:    7,
			WhaleCount:      2,
			MeanBalance:     decimal.RequireFromString("14.2857"),
			MedianBalance:   decimal.NewFromInt(10),
			GiniCoefficient: 0.25,
		},
	}
	for i := 1; i <= 7; i++ {
		list.Top = append(list.Top, model.RichListAccount{
			Rank: i, Address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", Balance: decimal.NewFromInt(int64(10 * i)), Label: model.UnknownLabel,
		})
	}
	list.Top[0].Label = "Binance <cold>"
	out := FormatRichList(list)

	assert.Contains(t, out, "top 7 accounts")
	assert.Contains(t, out, "Mean: 14.28 | Median: 10")
	assert.Contains(t, out, "Gini: 0.2500")
	assert.Contains(t, out, "1. rHb9CJ…tyTh 10 XRP (Binance &lt;cold&gt;)\n")
	assert.Contains(t, out, "5. ")
	assert.NotContains(t, out, "6. ")
}

func TestFormatDigest(t *testing.T) {
	out := FormatDigest(Digest{
		AsOf:     asOf,
		Burn:     &model.BurnReport{Periods: map[string]*int64{}},
		Failures: []string{"snapshot: yahoo: timeout"},
	})
	parts := strings.Split(out, "\n\n")
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0], "2025-11-15")
	assert.Contains(t, parts[1], "XRP burned")
	assert.Contains(t, parts[2], "snapshot: yahoo: timeout")
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier(url, "TOKEN", "42", "", 5*time.Second, zap.NewNop().Sugar())
	n.retryBase = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		reply(w, http.StatusOK, `{"ok":true}`)
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), "<b>hi</b>"))
	body := <-bodies
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "HTML", body["parse_mode"])
	assert.Equal(t, "<b>hi</b>", body["text"])
}

func TestSendWithRetry(t *testing.T) {
	t.Run("recovers after server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				reply(w, http.StatusBadGateway, `{"ok":false,"description":"Bad Gateway"}`)
				return
			}
			reply(w, http.StatusOK, `{"ok":true}`)
		}))
		defer srv.Close()

		require.NoError(t, newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3))
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			reply(w, http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`)
		}))
		defer srv.Close()

		err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat not found")
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			reply(w, http.StatusTooManyRequests, `{"ok":false,"description":"Too Many Requests"}`)
		}))
		defer srv.Close()

		err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 2)
		require.Error(t, err)
		assert.EqualValues(t, 3, calls.Load())
	})
}

func TestDispatch(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		sent = append(sent, body["text"].(string))
		mu.Unlock()
		reply(w, http.StatusOK, `{"ok":true}`)
	}))
	defer srv.Close()

	var updates []telegramUpdate
	require.NoError(t, json.Unmarshal([]byte(`[
		{"update_id":7,"message":{"text":" /burn "}},
		{"update_id":8},
		{"update_id":9,"message":{"text":"/quiet"}}
	]`), &updates))

	handler := func(_ context.Context, cmd string) string {
		if cmd == "/burn" {
			return "burned"
		}
		return ""
	}
	next := newTestNotifier(srv.URL).dispatch(context.Background(), updates, 0, handler)
	assert.Equal(t, 10, next)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"burned"}, sent)
}

func TestStartPolling_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		if polls.Add(1) == 2 {
			cancel()
		}
		reply(w, http.StatusOK, `{"ok":true,"result":[]}`)
	}))
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		newTestNotifier(srv.URL).StartPolling(ctx, func(context.Context, string) string { return "" })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestLongPollWait(t *testing.T) {
	assert.Equal(t, 15*time.Second, longPollWait(20*time.Second))
	assert.Equal(t, 30*time.Second, longPollWait(time.Minute))
	assert.Equal(t, time.Second, longPollWait(2*time.Second))
}
