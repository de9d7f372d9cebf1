package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClient reads ledgers over a persistent WebSocket connection. Requests
// are serialized on the connection; a transport failure drops the
// connection and the next request dials again.
type WSClient struct {
	url     string
	timeout time.Duration
	dialer  websocket.Dialer
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// NewWSClient creates a client for a wss:// endpoint. The connection is
// opened on first use.
func NewWSClient(url string, timeout time.Duration, logger *zap.SugaredLogger) *WSClient {
	return &WSClient{
		url:     url,
		timeout: timeout,
		dialer:  websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:  logger,
	}
}

func (c *WSClient) Name() string { return c.url }

type wsRequest struct {
	ID          uint64 `json:"id"`
	Command     string `json:"command"`
	LedgerIndex any    `json:"ledger_index"`
}

type wsResponse struct {
	ID           uint64          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// Snapshot fetches ledger index, or the latest validated ledger for a
// negative index.
func (c *WSClient) Snapshot(ctx context.Context, index int64) (snap model.LedgerSnapshot, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("xrpl_ws", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.roundTrip(ctx, index)
	if err != nil {
		// a rippled error reply leaves the connection usable
		if errors.Is(err, errs.ErrUpstreamUnavailable) {
			c.dropLocked()
		}
		return model.LedgerSnapshot{}, err
	}
	return decodeResult(raw, index)
}

func (c *WSClient) roundTrip(ctx context.Context, index int64) (json.RawMessage, error) {
	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return nil, errs.Upstream(c.url, fmt.Errorf("dial: %w", err))
		}
		c.conn = conn
		c.logger.Infow("ledger websocket connected", "url", c.url)
	}
	conn := c.conn

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	// unblock a pending read when the caller goes away
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	c.nextID++
	id := c.nextID
	req := wsRequest{ID: id, Command: "ledger", LedgerIndex: ledgerSelector(index)}
	if err := conn.WriteJSON(req); err != nil {
		return nil, errs.Upstream(c.url, fmt.Errorf("write: %w", err))
	}

	for {
		var resp wsResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return nil, errs.Upstream(c.url, fmt.Errorf("read: %w", err))
		}
		// skip stream messages and stale replies
		if resp.Type != "response" || resp.ID != id {
			continue
		}
		if resp.Status == "error" {
			return nil, fmt.Errorf("%s: rippled error %s: %s", c.url, resp.Error, resp.ErrorMessage)
		}
		return resp.Result, nil
	}
}

func (c *WSClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close closes the connection, if open.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}
