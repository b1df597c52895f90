// Package anthropic wraps anthropic-sdk-go with the single-turn completion
// used to pull skills out of résumé text.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultModel is used when a prompt leaves Model empty.
const DefaultModel = "claude-haiku-4-5-20251001"

// Client completes single-turn prompts.
type Client interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// Prompt is one system instruction plus one user input.
type Prompt struct {
	Model  string
	System string
	// CacheTTL marks the system text for prompt caching: "5m" or "1h".
	// Empty disables caching.
	CacheTTL    string
	Input       string
	MaxTokens   int64
	Temperature *float64
}

// Completion is the model's reply with its text blocks joined.
type Completion struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage counts the tokens billed for one completion.
type TokenUsage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// perMillion is USD per million tokens as {input, output}.
var perMillion = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// Cost estimates the USD cost of u on model. Cache writes bill at 1.25x
// input and cache reads at 0.1x. Unknown models cost 0.
func (u TokenUsage) Cost(model string) float64 {
	p, ok := perMillion[model]
	if !ok {
		return 0
	}
	input := float64(u.InputTokens) + 1.25*float64(u.CacheWriteTokens) + 0.1*float64(u.CacheReadTokens)
	return (input*p[0] + float64(u.OutputTokens)*p[1]) / 1e6
}

// Log records u and its estimated cost under purpose.
func (u TokenUsage) Log(model, purpose string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("purpose", purpose),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", u.Cost(model)),
	)
}

type sdkClient struct {
	api sdk.Client
}

// NewClient creates a Client backed by the SDK. opts are appended after the
// API key, so tests can point it at a local server with option.WithBaseURL.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	return &sdkClient{api: sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)}
}

func (c *sdkClient) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.Model),
		MaxTokens: p.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.Input))},
	}
	if p.System != "" {
		sys := sdk.TextBlockParam{Text: p.System}
		if p.CacheTTL != "" {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL(p.CacheTTL)
			sys.CacheControl = cc
		}
		params.System = []sdk.TextBlockParam{sys}
	}
	if p.Temperature != nil {
		params.Temperature = sdk.Float(*p.Temperature)
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: complete with %s", p.Model)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Completion{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}, nil
}
