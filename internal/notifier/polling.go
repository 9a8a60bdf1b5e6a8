package notifier

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// CommandRouter maps chat commands like /status to handlers that return the
// reply text. Unknown commands get a short usage hint.
type CommandRouter struct {
	handlers map[string]func() string
}

func NewCommandRouter() *CommandRouter {
	return &CommandRouter{handlers: map[string]func() string{}}
}

// Register binds a command (including the leading slash) to a handler.
func (r *CommandRouter) Register(command string, handler func() string) {
	r.handlers[command] = handler
}

// Dispatch resolves one incoming message to a reply.
func (r *CommandRouter) Dispatch(text string) string {
	cmd := strings.Fields(strings.TrimSpace(text))
	if len(cmd) == 0 {
		return ""
	}
	if h, ok := r.handlers[cmd[0]]; ok {
		return h()
	}
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return "Commands: " + strings.Join(keys, " ")
}

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// StartPolling long-polls for chat commands and serves them through the
// router. Blocks until ctx is cancelled. Uses a dedicated client so the
// 30-second long poll does not inherit the notifier's retry policy.
func (t *TelegramNotifier) StartPolling(ctx context.Context, router *CommandRouter) {
	poll := resty.New().SetTimeout(35 * time.Second)
	offset := 0

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] Telegram polling stopped")
			return
		default:
		}

		var result struct {
			OK     bool             `json:"ok"`
			Result []telegramUpdate `json:"result"`
		}
		resp, err := poll.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"offset":  strconv.Itoa(offset),
				"timeout": "30",
			}).
			SetResult(&result).
			Get(fmt.Sprintf("%s/bot%s/getUpdates", t.api, t.token))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[WARN] polling request failed: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if resp.IsError() || !result.OK {
			log.Printf("[WARN] polling response: status %d", resp.StatusCode())
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			text := strings.TrimSpace(update.Message.Text)
			log.Printf("[INFO] received command: %s", text)
			if reply := router.Dispatch(text); reply != "" {
				if err := t.send(ctx, reply); err != nil {
					log.Printf("[ERROR] send reply: %v", err)
				}
			}
		}
	}
}
