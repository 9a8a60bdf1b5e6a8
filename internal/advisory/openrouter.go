package advisory

import (
	"context"
	"fmt"
	"time"

	"TradeSentinel/internal/interpret"
	"TradeSentinel/internal/model"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClient is the tier-2 advisor: a stronger remote model reached
// through the OpenRouter API.
type OpenRouterClient struct {
	chat *chatClient
}

// OpenRouterConfig configures the tier-2 endpoint.
type OpenRouterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenRouterClient{
		chat: newChatClient(baseURL, cfg.APIKey, cfg.Model, "tier2", timeout),
	}
}

// Validate asks tier 2 to judge a sized proposal. A reachable tier that
// returns an unusable verdict counts as unavailable: the caller cannot act
// on it either way.
func (c *OpenRouterClient) Validate(ctx context.Context, req ValidationRequest) (model.Validation, error) {
	raw, err := c.chat.complete(ctx, validationSystem, buildValidationPrompt(req))
	if err != nil {
		return model.Validation{}, fmt.Errorf("tier2 validate %s: %w", req.Recommendation.Symbol, err)
	}

	v, ok := interpret.ParseValidation(raw)
	if !ok {
		return model.Validation{}, fmt.Errorf("%w: tier2 verdict for %s could not be parsed", ErrUnavailable, req.Recommendation.Symbol)
	}
	return v, nil
}

func (c *OpenRouterClient) AnalyzeDirect(ctx context.Context, actx Context) (string, error) {
	raw, err := c.chat.complete(ctx, analysisSystem, buildAnalysisPrompt(actx))
	if err != nil {
		return "", fmt.Errorf("tier2 analyze: %w", err)
	}
	return raw, nil
}

func (c *OpenRouterClient) Name() string { return "tier2/" + c.chat.model }
