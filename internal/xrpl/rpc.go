package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/go-resty/resty/v2"
)

// RPCClient reads ledgers through the JSON-RPC HTTP interface.
type RPCClient struct {
	client *resty.Client
	url    string
}

// NewRPCClient creates a JSON-RPC client for url.
func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &RPCClient{client: client, url: url}
}

func (c *RPCClient) Name() string { return c.url }

type rpcRequest struct {
	Method string           `json:"method"`
	Params []map[string]any `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

// Snapshot fetches ledger index, or the latest validated ledger for a
// negative index.
func (c *RPCClient) Snapshot(ctx context.Context, index int64) (snap model.LedgerSnapshot, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("xrpl_rpc", start, err) }()

	var out rpcResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{
			Method: "ledger",
			Params: []map[string]any{{"ledger_index": ledgerSelector(index)}},
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return model.LedgerSnapshot{}, errs.Upstream(c.url, err)
	}
	if resp.IsError() {
		return model.LedgerSnapshot{}, errs.Upstream(c.url, fmt.Errorf("status %d", resp.StatusCode()))
	}
	if len(out.Result) == 0 {
		return model.LedgerSnapshot{}, fmt.Errorf("%s: empty result: %w", c.url, errs.ErrNoUsableData)
	}
	return decodeResult(out.Result, index)
}
