package advisory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// chatClient talks to an OpenAI-compatible chat-completions endpoint. Both
// advisory tiers speak this protocol, so the transport layer is shared.
type chatClient struct {
	http    *resty.Client
	model   string
	name    string
	retry   RetryPolicy
	breaker *Breaker
}

func newChatClient(baseURL, apiKey, modelName, name string, timeout time.Duration) *chatClient {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &chatClient{
		http:    c,
		model:   modelName,
		name:    name,
		retry:   DefaultRetryPolicy(),
		breaker: NewBreaker(name),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one system+user exchange and returns the assistant text.
func (c *chatClient) complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var content string
	err := c.retry.Do(ctx, c.name+" completion", func() error {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.send(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("%w: circuit open for %s", ErrUnavailable, c.name)
			}
			return err
		}
		content = out.(string)
		return nil
	})
	return content, err
}

func (c *chatClient) send(ctx context.Context, req chatRequest) (string, error) {
	var cr chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&cr).
		SetError(&cr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	}

	code := resp.StatusCode()
	if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s returned status %d", ErrUnavailable, c.name, code)
	}
	if resp.IsError() {
		msg := ""
		if cr.Error != nil {
			msg = cr.Error.Message
		}
		return "", fmt.Errorf("%s returned status %d: %s", c.name, code, msg)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}
	return cr.Choices[0].Message.Content, nil
}
