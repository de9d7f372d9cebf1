package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"FlowSentinel/internal/collector"
	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/model"
	"FlowSentinel/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSocial struct{}

func (fakeSocial) Fetch(_ context.Context, kind, topic string, params url.Values) (json.RawMessage, error) {
	return json.RawMessage(`{"topic":"` + topic + `","interval":"` + params.Get("interval") + `"}`), nil
}

func newTestHandler(f collector.SeriesFetcher, token string) http.Handler {
	logger := zap.NewNop().Sugar()
	groups := []model.Group{{Name: "Spot ETFs", Instruments: []model.Instrument{
		{Symbol: "XRPC", Description: "Canary Capital XRP", Group: "Spot ETFs"},
	}}}
	ttl := time.Minute
	svc := service.New(groups, f, service.TTLs{Snapshot: ttl, History: ttl, Burn: ttl, RichList: ttl, Social: ttl}, logger,
		service.WithSocial(fakeSocial{}, "xrp"), service.WithProbeSymbol("XRPC"))
	return NewHandler(svc, token, logger)
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHomeAndHealth(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{Price: 1}, "")

	rec, body := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["endpoints"], "GET /api/etf-data")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["features"].(map[string]any)["burn"])

	rec, _ = do(t, h, http.MethodGet, "/nope", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestETFData(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{Price: 24}, "")

	rec, body := do(t, h, http.MethodGet, "/api/etf-data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["cached"])
	assert.Nil(t, body["errors"])
	recs := body["data"].(map[string]any)["Spot ETFs"].([]any)
	require.Len(t, recs, 1)
	assert.Equal(t, "XRPC", recs[0].(map[string]any)["symbol"])

	_, body = do(t, h, http.MethodGet, "/api/etf-data", nil)
	assert.Equal(t, true, body["cached"])
	assert.Contains(t, body, "cache_age")
}

func TestETFData_UpstreamDown(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{BatchErr: errs.Upstream("yahoo", errors.New("refused"))}, "")

	rec, body := do(t, h, http.MethodGet, "/api/etf-data", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "yahoo: refused")
	assert.NotEmpty(t, body["request_id"])
}

func TestETFHistory(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{Price: 5}, "")

	rec, body := do(t, h, http.MethodGet, "/api/etf-history?symbol=XRPC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1mo", body["period"])
	assert.Len(t, body["points"], 21)

	rec, _ = do(t, h, http.MethodGet, "/api/etf-history?symbol=XRPC&period=max", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/etf-history?symbol=AAPL", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProbe(t *testing.T) {
	rec, body := do(t, newTestHandler(&collector.MockFetcher{Price: 5}, ""), http.MethodGet, "/api/test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "XRPC", body["symbol"])

	f := &collector.MockFetcher{Errors: map[string]error{"XRPC": errors.New("delisted")}}
	rec, body = do(t, newTestHandler(f, ""), http.MethodGet, "/api/test", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestUnconfiguredFeatures(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{}, "")
	for _, path := range []string{"/api/burn", "/api/richlist"} {
		rec, _ := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
	rec, _ := do(t, h, http.MethodPost, "/api/admin/cache/reset", map[string]string{"X-Admin-Token": ""})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSocial(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{}, "")

	rec, body := do(t, h, http.MethodGet, "/api/social/timeseries?interval=1w", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xrp", body["topic"])
	assert.Equal(t, map[string]any{"topic": "xrp", "interval": "1w"}, body["data"])

	rec, _ = do(t, h, http.MethodGet, "/api/social/weather", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetCache(t *testing.T) {
	h := newTestHandler(&collector.MockFetcher{Price: 1}, "s3cret")

	rec, _ := do(t, h, http.MethodPost, "/api/admin/cache/reset", map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/admin/cache/reset", map[string]string{"X-Admin-Token": "s3cret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/api/admin/cache/reset?bucket=snapshot", map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"snapshot"}, body["cleared"])

	rec, body = do(t, h, http.MethodPost, "/api/admin/cache/reset", map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["cleared"], 5)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/cache/reset?bucket=ai", map[string]string{"X-Admin-Token": "s3cret"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverer(t *testing.T) {
	h := RequestLogger(zap.NewNop().Sugar(), Recoverer(zap.NewNop().Sugar(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec, body := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}
