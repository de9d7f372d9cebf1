// Package richlist fetches the ranked balance list of the largest ledger accounts.
package richlist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Fetcher returns up to limit accounts ordered by descending balance.
type Fetcher interface {
	FetchBalances(ctx context.Context, limit int) ([]model.RichListAccount, error)
}

// Client reads the balance list from an explorer API.
type Client struct {
	client *resty.Client
	path   string
}

// NewClient creates a client for endpoint, a full URL such as
// https://explorer.example/api/v1/richlist.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Client{client: client, path: endpoint}
}

type accountJSON struct {
	Address string          `json:"address"`
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
	Label   string          `json:"label"`
	Name    string          `json:"name"`
}

type listJSON struct {
	Accounts []accountJSON `json:"accounts"`
}

// FetchBalances returns the accounts ranked from 1 in the order received.
func (c *Client) FetchBalances(ctx context.Context, limit int) (accounts []model.RichListAccount, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("richlist", start, err) }()

	var list listJSON
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&list).
		Get(c.path)
	if err != nil {
		return nil, errs.Upstream("richlist", err)
	}
	if resp.IsError() {
		return nil, errs.Upstream("richlist", fmt.Errorf("status %d", resp.StatusCode()))
	}
	if len(list.Accounts) == 0 {
		return nil, fmt.Errorf("richlist: empty account list: %w", errs.ErrNoUsableData)
	}

	accounts = make([]model.RichListAccount, 0, min(limit, len(list.Accounts)))
	for _, a := range list.Accounts {
		if limit > 0 && len(accounts) == limit {
			break
		}
		if a.Balance.IsNegative() {
			return nil, fmt.Errorf("richlist: negative balance for %s", a.address())
		}
		accounts = append(accounts, model.RichListAccount{
			Rank:    len(accounts) + 1,
			Address: a.address(),
			Balance: a.Balance,
			Label:   a.label(),
		})
	}
	return accounts, nil
}

func (a accountJSON) address() string {
	if a.Address != "" {
		return a.Address
	}
	return a.Account
}

func (a accountJSON) label() string {
	for _, l := range []string{a.Label, a.Name} {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return model.UnknownLabel
}
