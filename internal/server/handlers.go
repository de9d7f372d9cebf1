package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/model"
	"FlowSentinel/internal/service"

	"go.uber.org/zap"
)

// API is the part of the service the handlers read from.
type API interface {
	Snapshot(ctx context.Context) (model.FetchResult, error)
	History(ctx context.Context, symbol, period string) (service.History, error)
	Probe(ctx context.Context) service.Probe
	Burn(ctx context.Context) (model.BurnReport, error)
	RichList(ctx context.Context) (model.RichList, error)
	Social(ctx context.Context, kind, topic string, params url.Values) (service.SocialPayload, error)
	Reset(name string) ([]string, error)
	Enabled() map[string]bool
	Entries() map[string]int
}

type handlers struct {
	api        API
	adminToken string
	logger     *zap.SugaredLogger
}

var endpoints = map[string]string{
	"GET /api/etf-data":           "Volume snapshot of every configured ETF group",
	"GET /api/etf-history":        "Daily series for one symbol (?symbol=&period=5d|1mo|1y)",
	"GET /api/test":               "Uncached fetch of the probe symbol",
	"GET /api/burn":               "XRP burned per period",
	"GET /api/richlist":           "Rich list distribution statistics",
	"GET /api/social/{kind}":      "Social metrics (?topic=)",
	"GET /api/health":             "Health check",
	"GET /metrics":                "Prometheus metrics",
	"POST /api/admin/cache/reset": "Invalidate a cache bucket (?bucket=name|all)",
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", RequestID: RequestID(r.Context())})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "FlowSentinel API",
		"endpoints": endpoints,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
		"features":  h.api.Enabled(),
		"cache":     h.api.Entries(),
	})
}

func (h *handlers) etfData(w http.ResponseWriter, r *http.Request) {
	res, err := h.api.Snapshot(r.Context())
	if err != nil {
		h.logger.Errorw("snapshot failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) etfHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = "1mo"
	}
	hist, err := h.api.History(r.Context(), q.Get("symbol"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *handlers) probe(w http.ResponseWriter, r *http.Request) {
	p := h.api.Probe(r.Context())
	status := http.StatusOK
	if !p.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, p)
}

func (h *handlers) burn(w http.ResponseWriter, r *http.Request) {
	rep, err := h.api.Burn(r.Context())
	if err != nil {
		h.logger.Errorw("burn report failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) richList(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.RichList(r.Context())
	if err != nil {
		h.logger.Errorw("rich list failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) social(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	topic := params.Get("topic")
	params.Del("topic")

	p, err := h.api.Social(r.Context(), r.PathValue("kind"), topic, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) resetCache(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		writeError(w, r, fmt.Errorf("admin endpoints: %w", errs.ErrConfigurationMissing))
		return
	}
	token := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid admin token", RequestID: RequestID(r.Context())})
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "all"
	}
	cleared, err := h.api.Reset(bucket)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.Infow("cache reset", "request_id", RequestID(r.Context()), "buckets", cleared)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
