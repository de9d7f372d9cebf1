// Package xrpl implements ledger snapshot clients for rippled servers over
// WebSocket and JSON-RPC.
package xrpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/model"
)

// RippleEpoch is the zero point of ledger close times.
var RippleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ledgerSelector is the ledger_index request field: a number or "validated".
func ledgerSelector(index int64) any {
	if index < 0 {
		return "validated"
	}
	return index
}

// flexInt decodes integers that rippled sends either as numbers or strings,
// depending on API version.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*f = flexInt(v)
	return nil
}

type ledgerHeader struct {
	LedgerIndex flexInt `json:"ledger_index"`
	CloseTime   int64   `json:"close_time"`
	TotalCoins  flexInt `json:"total_coins"`
}

// ledgerResult is the result object of the ledger method, shared by both
// transports.
type ledgerResult struct {
	Ledger       *ledgerHeader `json:"ledger"`
	Validated    bool          `json:"validated"`
	Status       string        `json:"status"`
	Error        string        `json:"error"`
	ErrorMessage string        `json:"error_message"`
}

// snapshot validates a ledger result and converts it.
func (r *ledgerResult) snapshot(requested int64) (model.LedgerSnapshot, error) {
	if r.Error != "" {
		msg := r.Error
		if r.ErrorMessage != "" {
			msg += ": " + r.ErrorMessage
		}
		return model.LedgerSnapshot{}, fmt.Errorf("rippled error %s", msg)
	}
	if r.Ledger == nil {
		return model.LedgerSnapshot{}, fmt.Errorf("ledger %d: missing header: %w", requested, errs.ErrNoUsableData)
	}
	if r.Ledger.TotalCoins <= 0 {
		return model.LedgerSnapshot{}, fmt.Errorf("ledger %d: no total_coins: %w", r.Ledger.LedgerIndex, errs.ErrNoUsableData)
	}
	return model.LedgerSnapshot{
		Index:       int64(r.Ledger.LedgerIndex),
		CloseTime:   RippleEpoch.Add(time.Duration(r.Ledger.CloseTime) * time.Second),
		TotalSupply: int64(r.Ledger.TotalCoins),
	}, nil
}

func decodeResult(raw json.RawMessage, requested int64) (model.LedgerSnapshot, error) {
	var res ledgerResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.LedgerSnapshot{}, fmt.Errorf("decode ledger %d: %w", requested, err)
	}
	return res.snapshot(requested)
}
