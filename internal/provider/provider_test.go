package provider

import (
	"context"
	"testing"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/descent/internal/conversation"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func userMessages(texts ...string) []*conversation.Message {
	var out []*conversation.Message
	for _, t := range texts {
		out = append(out, conversation.NewMessage(conversation.RoleUser, t))
	}
	return out
}

func newTestDirect(t *testing.T, cfg DirectConfig, send sendFunc) *DirectClient {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	c, err := NewDirect(cfg)
	require.NoError(t, err)
	c.retryBase = time.Millisecond
	c.send = send
	return c
}

func newTestRouting(t *testing.T, cfg RoutingConfig, send sendFunc) *RoutingClient {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	c, err := NewRouting(cfg)
	require.NoError(t, err)
	c.retryBase = time.Millisecond
	c.send = send
	return c
}

func TestDirectRetriesRateLimitThenSucceeds(t *testing.T) {
	attempts := 0
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		if attempts <= 2 {
			return nil, &openai.Error{StatusCode: 429}
		}
		return completionWith("done"), nil
	})

	resp, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 3, attempts)
}

func TestDirectRetriesTimeout(t *testing.T) {
	attempts := 0
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		if attempts == 1 {
			return nil, timeoutErr{}
		}
		return completionWith("ok"), nil
	})

	_, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDirectExhaustionKeepsErrorClass(t *testing.T) {
	attempts := 0
	c := newTestDirect(t, DirectConfig{MaxAttempts: 3}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		return nil, &openai.Error{StatusCode: 429}
	})

	_, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindRateLimited, cerr.Kind)
}

func TestDirectDoesNotRetryProviderErrors(t *testing.T) {
	attempts := 0
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		return nil, &openai.Error{StatusCode: 400}
	})

	_, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindProvider, cerr.Kind)
}

func TestDirectModelConvention(t *testing.T) {
	_, err := NewDirect(DirectConfig{APIKey: "k", Model: "vendor/model"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)

	attempts := 0
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		return completionWith("x"), nil
	})
	_, err = c.Invoke(context.Background(), Request{Messages: userMessages("hi"), Model: "vendor/model"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, attempts, "convention errors must precede any call")
}

func TestDirectNeedsAPIKey(t *testing.T) {
	_, err := NewDirect(DirectConfig{})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

type planOut struct {
	Steps []string `json:"steps"`
}

func TestDirectStructuredResponse(t *testing.T) {
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		require.NotNil(t, params.ResponseFormat.OfJSONSchema)
		assert.Equal(t, "plan", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
		return completionWith(`{"steps":["a"]}`), nil
	})

	resp, err := c.Invoke(context.Background(), Request{
		Messages: userMessages("plan it"),
		Schema:   &Schema{Name: "plan", Type: &planOut{}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"steps":["a"]}`, string(resp.Structured))
}

func TestDirectRefusalIsNullResult(t *testing.T) {
	c := newTestDirect(t, DirectConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		return &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Refusal: "cannot comply"}},
			},
		}, nil
	})

	resp, err := c.Invoke(context.Background(), Request{
		Messages: userMessages("plan it"),
		Schema:   &Schema{Name: "plan", Type: &planOut{}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Refused)
	assert.Empty(t, resp.Structured)
}

func TestRoutingRetriesEmptyResponse(t *testing.T) {
	attempts := 0
	c := newTestRouting(t, RoutingConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		if attempts == 1 {
			return completionWith("   "), nil
		}
		return completionWith("routed"), nil
	})

	resp, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.NoError(t, err)
	assert.Equal(t, "routed", resp.Text)
	assert.Equal(t, 2, attempts)
}

func TestRoutingEmptyExhaustion(t *testing.T) {
	c := newTestRouting(t, RoutingConfig{MaxAttempts: 2}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		return &openai.ChatCompletion{}, nil
	})

	_, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	var ee *EmptyResponseError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, DefaultRoutingConfig().Model, ee.Model)
}

func TestRoutingRetriesProviderErrors(t *testing.T) {
	attempts := 0
	c := newTestRouting(t, RoutingConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		if attempts == 1 {
			return nil, &openai.Error{StatusCode: 500}
		}
		return completionWith("ok"), nil
	})

	_, err := c.Invoke(context.Background(), Request{Messages: userMessages("hi")})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRoutingModelConvention(t *testing.T) {
	_, err := NewRouting(RoutingConfig{APIKey: "k", Model: "bare-model"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)

	attempts := 0
	c := newTestRouting(t, RoutingConfig{}, func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		attempts++
		return completionWith("x"), nil
	})
	_, err = c.Invoke(context.Background(), Request{Messages: userMessages("hi"), Model: "bare-model"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, attempts)
}

func TestToParamsMultimodal(t *testing.T) {
	msg := conversation.NewMessage(conversation.RoleUser, "look at this")
	msg.Content = append(msg.Content, conversation.Part{})
	msgs := toParams([]*conversation.Message{
		conversation.NewMessage(conversation.RoleSystem, "sys"),
		msg,
		conversation.NewMessage(conversation.RoleAssistant, "seen"),
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindRateLimited, classify(&openai.Error{StatusCode: 429}))
	assert.Equal(t, KindTimeout, classify(&openai.Error{StatusCode: 504}))
	assert.Equal(t, KindProvider, classify(&openai.Error{StatusCode: 500}))
	assert.Equal(t, KindTimeout, classify(timeoutErr{}))
	assert.Equal(t, KindTimeout, classify(context.DeadlineExceeded))
}
