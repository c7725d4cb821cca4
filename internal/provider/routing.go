package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// RoutingConfig configures the OpenRouter routing backend.
type RoutingConfig struct {
	// APIKey authenticates against OpenRouter.
	APIKey string

	// Model is the default model, vendor-namespaced ("vendor/model").
	Model string

	// MaxResponseTokens bounds the reply length. 0 leaves it to the
	// provider.
	MaxResponseTokens int

	// Temperature for sampling. Negative means provider default.
	Temperature float64

	// MaxAttempts bounds the retry loop, first try included.
	MaxAttempts int

	// Referer and Title identify the app in OpenRouter rankings. Optional.
	Referer string
	Title   string

	// Logger for retry and call events.
	Logger *slog.Logger
}

// DefaultRoutingConfig returns the default routing settings.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		Model:       "deepseek/deepseek-chat",
		Temperature: -1,
		MaxAttempts: 10,
	}
}

// RoutingClient talks to OpenRouter. Every attempt uses a fresh HTTP client
// whose idle connections are closed on exit, and the SDK's own retries are
// disabled so this layer owns the retry policy.
type RoutingClient struct {
	cfg       RoutingConfig
	send      sendFunc
	retryBase time.Duration
	logger    *slog.Logger
}

// NewRouting creates a routing client. Zero-value config fields fall back to
// DefaultRoutingConfig.
func NewRouting(cfg RoutingConfig) (*RoutingClient, error) {
	def := DefaultRoutingConfig()
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
		return nil, &ConfigError{Reason: "routing backend needs an API key"}
	}
	if err := validateRoutingModel(cfg.Model); err != nil {
		return nil, err
	}

	c := &RoutingClient{cfg: cfg, retryBase: time.Second, logger: cfg.Logger}
	c.send = c.sendOnce
	return c, nil
}

// sendOnce performs a single attempt against OpenRouter.
func (c *RoutingClient) sendOnce(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	defer httpClient.CloseIdleConnections()

	opts := []option.RequestOption{
		option.WithAPIKey(c.cfg.APIKey),
		option.WithBaseURL(openRouterBaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if c.cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", c.cfg.Referer))
	}
	if c.cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", c.cfg.Title))
	}
	client := openai.NewClient(opts...)
	return client.Chat.Completions.New(ctx, params)
}

// Invoke implements Client. On top of the direct backend's transient kinds,
// provider and connection errors are retried, and so are responses that look
// successful but carry no content.
func (c *RoutingClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	if err := validateRoutingModel(model); err != nil {
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
		// Routed providers vary in json_schema support; ask for a JSON
		// object and validate on our side.
		obj := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}
	}

	backoff := retry.WithJitter(c.retryBase/2,
		retry.WithCappedDuration(time.Minute,
			retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1),
				retry.NewExponential(c.retryBase))))

	var completion *openai.ChatCompletion
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		completion, err = c.send(ctx, params)
		if err != nil {
			cerr := &CallError{Kind: classify(err), Backend: "routing", Err: err}
			c.logger.Warn("routing call failed, retrying",
				"kind", string(cerr.Kind), "model", model)
			return retry.RetryableError(cerr)
		}
		if empty(completion) {
			c.logger.Warn("routing call returned empty content, retrying", "model", model)
			return retry.RetryableError(&EmptyResponseError{Model: model})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := responseFrom(completion, req.Schema != nil)
	resp.Provider = gjson.Get(completion.RawJSON(), "provider").String()
	return resp, nil
}

// empty reports a completion with no usable content.
func empty(completion *openai.ChatCompletion) bool {
	if len(completion.Choices) == 0 {
		return true
	}
	msg := completion.Choices[0].Message
	return strings.TrimSpace(msg.Content) == "" && msg.Refusal == ""
}
