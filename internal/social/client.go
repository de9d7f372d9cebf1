// Package social proxies social sentiment metrics from LunarCrush.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the LunarCrush public v4 API.
const DefaultBaseURL = "https://lunarcrush.com/api4/public"

// ErrUnknownKind is returned for an endpoint kind with no route.
var ErrUnknownKind = errors.New("unknown social endpoint")

// endpoints maps an endpoint kind to its path template.
var endpoints = map[string]string{
	"topic":      "/topic/{topic}/v1",
	"timeseries": "/topic/{topic}/time-series/v1",
	"posts":      "/topic/{topic}/posts/v1",
	"news":       "/topic/{topic}/news/v1",
	"creators":   "/topic/{topic}/creators/v1",
	"coin":       "/coins/{topic}/v1",
}

// Kinds returns the supported endpoint kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(endpoints))
	for k := range endpoints {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fetcher returns an opaque payload for one endpoint kind and topic.
type Fetcher interface {
	Fetch(ctx context.Context, kind, topic string, params url.Values) (json.RawMessage, error)
}

// Client calls the LunarCrush API with a bearer key.
type Client struct {
	client *resty.Client
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey)
	return &Client{client: client}
}

// Fetch returns the raw response body of the endpoint.
func (c *Client) Fetch(ctx context.Context, kind, topic string, params url.Values) (payload json.RawMessage, err error) {
	path, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	start := time.Now()
	defer func() { metrics.ObserveUpstream("lunarcrush", start, err) }()

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("topic", strings.ToLower(topic)).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		return nil, errs.Upstream("lunarcrush", err)
	}
	if resp.IsError() {
		return nil, errs.Upstream("lunarcrush", fmt.Errorf("status %d", resp.StatusCode()))
	}
	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("lunarcrush: invalid json body: %w", errs.ErrNoUsableData)
	}
	return json.RawMessage(body), nil
}

// CacheKey identifies a request independent of parameter order.
func CacheKey(kind, topic string, params url.Values) string {
	return kind + "|" + strings.ToLower(topic) + "|" + params.Encode()
}
