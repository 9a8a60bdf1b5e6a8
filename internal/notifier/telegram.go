package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier delivers messages to a chat via the Bot API. Delivery
// failures never abort a trading cycle; callers log and move on.
type TelegramNotifier struct {
	token  string
	chatID string
	api    string
	http   *resty.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		token:  botToken,
		chatID: chatID,
		api:    defaultTelegramAPI,
		http:   client,
	}
}

func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	return t.send(ctx, text)
}

type telegramResult struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	var result telegramResult
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.api, t.token))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}
