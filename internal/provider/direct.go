package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/sethvargo/go-retry"
)

// DirectConfig configures the direct backend.
type DirectConfig struct {
	// APIKey authenticates against the endpoint.
	APIKey string

	// Organization is the optional organization header.
	Organization string

	// Model is the default model, a bare name.
	Model string

	// MaxResponseTokens bounds the reply length. 0 leaves it to the
	// provider.
	MaxResponseTokens int

	// Temperature for sampling. Negative means provider default.
	Temperature float64

	// MaxAttempts bounds the retry loop, first try included.
	MaxAttempts int

	// Logger for retry and call events.
	Logger *slog.Logger
}

// DefaultDirectConfig returns the default direct settings.
func DefaultDirectConfig() DirectConfig {
	return DirectConfig{
		Model:       "gpt-4o-mini",
		Temperature: -1,
		MaxAttempts: 10,
	}
}

type sendFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

// DirectClient talks to the provider endpoint directly.
type DirectClient struct {
	cfg       DirectConfig
	send      sendFunc
	retryBase time.Duration
	logger    *slog.Logger
}

// NewDirect creates a direct client. Zero-value config fields fall back to
// DefaultDirectConfig.
func NewDirect(cfg DirectConfig) (*DirectClient, error) {
	def := DefaultDirectConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Reason: "direct backend needs an API key"}
	}
	if err := validateDirectModel(cfg.Model); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	client := openai.NewClient(opts...)

	return &DirectClient{
		cfg:       cfg,
		retryBase: time.Second,
		logger:    cfg.Logger,
		send: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return client.Chat.Completions.New(ctx, params)
		},
	}, nil
}

// Invoke implements Client. Rate-limit and timeout failures are retried with
// exponential backoff; everything else surfaces immediately.
func (c *DirectClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	if err := validateDirectModel(model); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toParams(req.Messages),
	}
	if c.cfg.MaxResponseTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxResponseTokens))
	}
	if c.cfg.Temperature >= 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}
	if req.Schema != nil {
		format, err := schemaFormat(req.Schema)
		if err != nil {
			return nil, err
		}
		params.ResponseFormat = format
	}

	backoff := retry.WithJitter(c.retryBase/2,
		retry.WithCappedDuration(time.Hour,
			retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1),
				retry.NewExponential(c.retryBase))))

	var completion *openai.ChatCompletion
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		completion, err = c.send(ctx, params)
		if err == nil {
			return nil
		}
		kind := classify(err)
		cerr := &CallError{Kind: kind, Backend: "direct", Err: err}
		if kind == KindRateLimited || kind == KindTimeout {
			c.logger.Warn("direct call failed, retrying", "kind", string(kind), "model", model)
			return retry.RetryableError(cerr)
		}
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return responseFrom(completion, req.Schema != nil), nil
}

// responseFrom extracts the usable payload of a completion.
func responseFrom(completion *openai.ChatCompletion, structured bool) *Response {
	if len(completion.Choices) == 0 {
		return &Response{}
	}
	msg := completion.Choices[0].Message
	if structured && msg.Refusal != "" {
		return &Response{Refused: true}
	}
	resp := &Response{Text: msg.Content}
	if structured {
		resp.Structured = json.RawMessage(msg.Content)
	}
	return resp
}
