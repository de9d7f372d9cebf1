package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FlowSentinel/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const chartXRPC = `{"chart":{"result":[{
	"meta":{"gmtoffset":-18000},
	"timestamp":[1762713000,1762799400,1762885800,1762972200],
	"indicators":{"quote":[{
		"close":[25.1,null,null,26.4],
		"volume":[1200,null,800,1500]
	}]}
}],"error":null}}`

func yahooServer(t *testing.T, routes map[string]func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		sym := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		w.Header().Set("Content-Type", "application/json")
		if h, ok := routes[sym]; ok {
			h(w)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func body(status int, s string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(s))
	}
}

func TestYahooFetcher_ParsesChart(t *testing.T) {
	srv := yahooServer(t, map[string]func(http.ResponseWriter){
		"XRPC": body(http.StatusOK, chartXRPC),
		"GONE": body(http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`),
	})
	f := NewYahooFetcher(srv.URL, "", 5*time.Second, 2, zap.NewNop().Sugar())

	out, err := f.FetchSeries(context.Background(), []string{"XRPC", "GONE", "DOWN"}, PeriodYear)
	require.NoError(t, err)
	require.Len(t, out, 3)

	xrpc := out["XRPC"]
	require.NoError(t, xrpc.Err)
	// the bar with neither close nor volume is dropped
	require.Len(t, xrpc.Points, 3)
	assert.Equal(t, time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC), xrpc.Points[0].Date)
	assert.Equal(t, "25.1", xrpc.Points[0].Close.Decimal.String())
	assert.False(t, xrpc.Points[1].Close.Valid)
	assert.Equal(t, int64(800), xrpc.Points[1].Volume)
	assert.Equal(t, int64(1500), xrpc.Points[2].Volume)

	assert.ErrorContains(t, out["GONE"].Err, "delisted")
	assert.False(t, errors.Is(out["GONE"].Err, errs.ErrUpstreamUnavailable))
	assert.ErrorIs(t, out["DOWN"].Err, errs.ErrUpstreamUnavailable)
}

func TestYahooFetcher_AllUnreachable(t *testing.T) {
	srv := yahooServer(t, nil)
	f := NewYahooFetcher(srv.URL, "", 5*time.Second, 0, zap.NewNop().Sugar())

	_, err := f.FetchSeries(context.Background(), []string{"A", "B"}, PeriodMonth)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "all 2 symbols unreachable")
}

func TestYahooFetcher_RejectsPeriod(t *testing.T) {
	f := NewYahooFetcher("http://127.0.0.1:0", "", time.Second, 1, zap.NewNop().Sugar())
	_, err := f.FetchSeries(context.Background(), []string{"A"}, Period("max"))
	assert.ErrorContains(t, err, "unsupported period")
}

func TestParseChart_Malformed(t *testing.T) {
	_, err := parseChart(&yahooChart{})
	assert.ErrorIs(t, err, errs.ErrNoUsableData)
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bars/daily", r.URL.Path)
		assert.Equal(t, []string{"AAA", "BBB"}, r.URL.Query()["symbol"])
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		assert.Equal(t, "Bearer k3y", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bars":{"AAA":[
				{"timestamp":1762819200,"close":2.5,"volume":40},
				{"timestamp":1762732800,"close":null,"volume":10}
			]},
			"errors":{"BBB":"unknown symbol"}
		}`))
	}))
	defer srv.Close()

	out, err := NewRESTFetcher(srv.URL, "k3y", "", time.Second).FetchSeries(context.Background(), []string{"AAA", "BBB"}, PeriodWeek)
	require.NoError(t, err)

	aaa := out["AAA"].Points
	require.Len(t, aaa, 2)
	assert.True(t, aaa[0].Date.Before(aaa[1].Date))
	assert.False(t, aaa[0].Close.Valid)
	assert.Equal(t, "2.5", aaa[1].Close.Decimal.String())
	assert.EqualError(t, out["BBB"].Err, "unknown symbol")
}

func TestRESTFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRESTFetcher(srv.URL, "", "", time.Second).FetchSeries(context.Background(), []string{"AAA"}, PeriodWeek)
	assert.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
}

func TestMockFetcher(t *testing.T) {
	m := &MockFetcher{
		Price:  10,
		Errors: map[string]error{"BAD": errors.New("halted")},
	}
	out, err := m.FetchSeries(context.Background(), []string{"OK", "BAD"}, PeriodMonth)
	require.NoError(t, err)
	assert.Len(t, out["OK"].Points, 21)
	assert.EqualError(t, out["BAD"].Err, "halted")

	m.BatchErr = errors.New("offline")
	_, err = m.FetchSeries(context.Background(), []string{"OK"}, PeriodDay)
	assert.EqualError(t, err, "offline")
	assert.Equal(t, 2, m.Calls())
}
