package advisory

import (
	"context"
	"fmt"
	"time"
)

// LocalClient is the tier-1 advisor: a locally hosted model behind an
// OpenAI-compatible endpoint (LM Studio, Ollama, or similar).
type LocalClient struct {
	chat *chatClient
}

// LocalConfig configures the tier-1 endpoint.
type LocalConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewLocalClient(cfg LocalConfig) *LocalClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LocalClient{
		chat: newChatClient(cfg.BaseURL, "", cfg.Model, "tier1", timeout),
	}
}

func (c *LocalClient) Analyze(ctx context.Context, actx Context) (string, error) {
	raw, err := c.chat.complete(ctx, analysisSystem, buildAnalysisPrompt(actx))
	if err != nil {
		return "", fmt.Errorf("tier1 analyze: %w", err)
	}
	return raw, nil
}

func (c *LocalClient) CheckPosition(ctx context.Context, pctx PositionContext) (string, error) {
	raw, err := c.chat.complete(ctx, positionSystem, buildPositionPrompt(pctx))
	if err != nil {
		return "", fmt.Errorf("tier1 position check %s: %w", pctx.Position.Symbol, err)
	}
	return raw, nil
}

func (c *LocalClient) Name() string { return "tier1/" + c.chat.model }
