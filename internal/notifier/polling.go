package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandHandler answers a chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK          bool             `json:"ok"`
	Description string           `json:"description"`
	Result      []telegramUpdate `json:"result"`
}

const pollPause = 5 * time.Second

// getUpdates long-polls for updates after offset.
func (t *TelegramNotifier) getUpdates(ctx context.Context, offset int, wait time.Duration) ([]telegramUpdate, error) {
	var out updatesResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.Itoa(offset),
			"timeout": strconv.Itoa(int(wait.Seconds())),
		}).
		SetResult(&out).
		SetError(&out).
		Get(t.method("getUpdates"))
	if err != nil {
		return nil, fmt.Errorf("poll updates: %w", err)
	}
	if resp.IsError() || !out.OK {
		return nil, &apiError{Status: resp.StatusCode(), Description: out.Description}
	}
	return out.Result, nil
}

// StartPolling long-polls for chat commands and replies through handler.
// Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, offset, t.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.logger.Warnw("telegram polling failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollPause):
			}
			continue
		}
		offset = t.dispatch(ctx, updates, offset, handler)
	}
	t.logger.Info("telegram polling stopped")
}

// dispatch handles one batch of updates and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, updates []telegramUpdate, offset int, handler CommandHandler) int {
	for _, u := range updates {
		offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}
		text := strings.TrimSpace(u.Message.Text)
		if text == "" {
			continue
		}
		t.logger.Infow("command received", "command", text)
		if reply := handler(ctx, text); reply != "" {
			if err := t.Send(ctx, reply); err != nil {
				t.logger.Errorw("send reply failed", "command", text, "error", err)
			}
		}
	}
	return offset
}
