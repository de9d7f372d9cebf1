package xrpl

import (
	"fmt"
	"net/url"
	"time"

	"FlowSentinel/internal/ledger"

	"go.uber.org/zap"
)

// NewClient picks the transport from the endpoint scheme: ws and wss use
// the WebSocket API, http and https use JSON-RPC.
func NewClient(endpoint string, timeout time.Duration, logger *zap.SugaredLogger) (ledger.SnapshotFetcher, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("xrpl endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return NewWSClient(endpoint, timeout, logger), nil
	case "http", "https":
		return NewRPCClient(endpoint, timeout), nil
	default:
		return nil, fmt.Errorf("xrpl endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
}
