package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultAPIURL is the Telegram Bot API root.
const DefaultAPIURL = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *resty.Client
	logger   *zap.SugaredLogger

	retryBase time.Duration
	pollWait  time.Duration
}

// NewTelegramNotifier creates a notifier. An empty apiURL uses DefaultAPIURL;
// proxyURL is optional.
func NewTelegramNotifier(apiURL, botToken, chatID, proxyURL string, timeout time.Duration, logger *zap.SugaredLogger) *TelegramNotifier {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		client:    client,
		logger:    logger,
		retryBase: time.Second,
		pollWait:  longPollWait(timeout),
	}
}

// longPollWait keeps the long-poll window inside the client timeout.
func longPollWait(timeout time.Duration) time.Duration {
	wait := timeout - 5*time.Second
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// apiError is a non-OK Telegram response.
type apiError struct {
	Status      int
	Description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

// retryable reports whether resending can help.
func (e *apiError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func (t *TelegramNotifier) method(name string) string {
	return "/bot" + t.botToken + "/" + name
}

// Send sends an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	var out apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id":                  t.chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}).
		SetResult(&out).
		SetError(&out).
		Post(t.method("sendMessage"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !out.OK {
		return &apiError{Status: resp.StatusCode(), Description: out.Description}
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff, giving up after
// maxRetries resends or when ctx is done. Client errors other than rate
// limiting are not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.retryBase
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := t.Send(ctx, text)
		var apiErr *apiError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Warnw("telegram send failed, retrying",
			"attempt", attempt, "max", maxRetries+1, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("telegram send after %d attempts: %w", attempt, err)
	}
	return nil
}
