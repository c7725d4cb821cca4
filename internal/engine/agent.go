package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rand/descent/internal/conversation"
	"github.com/rand/descent/internal/provider"
	"github.com/rand/descent/internal/trim"
)

// DefaultMaxTotalTokens is the conversation ceiling applied before every call
// when no other limit is configured.
const DefaultMaxTotalTokens = 100_000

type callSettings struct {
	model  string
	images []string
	schema *provider.Schema
}

// CallOption adjusts a single provider call.
type CallOption func(*callSettings)

// WithModel overrides the client's configured model for this call.
func WithModel(model string) CallOption {
	return func(s *callSettings) { s.model = model }
}

// WithImages attaches image references to the outgoing user message.
func WithImages(refs ...string) CallOption {
	return func(s *callSettings) { s.images = append(s.images, refs...) }
}

// WithSchema requests a structured response for this call.
func WithSchema(schema *provider.Schema) CallOption {
	return func(s *callSettings) { s.schema = schema }
}

// Agent couples a conversation with a provider client: it appends the prompt,
// trims the history to the token ceiling, performs the call and appends the
// reply. The record store travels with the conversation so clones keep their
// task annotations.
type Agent struct {
	Context *conversation.Context
	Records *conversation.RecordStore

	client    provider.Client
	trimmer   *trim.Trimmer
	maxTokens int
	logger    *slog.Logger
}

// NewAgent binds a conversation to a client. Nil trimmer and logger fall back
// to defaults; a non-positive ceiling falls back to DefaultMaxTotalTokens.
func NewAgent(conv *conversation.Context, client provider.Client, trimmer *trim.Trimmer, maxTokens int, logger *slog.Logger) *Agent {
	if trimmer == nil {
		trimmer = trim.New()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTotalTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		Context:   conv,
		Records:   conversation.NewRecordStore(conv, logger),
		client:    client,
		trimmer:   trimmer,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Respond appends text as a user message, calls the provider on the trimmed
// history and appends the reply. Returns the reply.
func (a *Agent) Respond(ctx context.Context, text string, opts ...CallOption) (*provider.Response, error) {
	var settings callSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if err := a.Context.AddUserMessage(text, settings.images...); err != nil {
		return nil, err
	}
	resp, err := a.invoke(ctx, settings)
	if err != nil {
		return nil, err
	}
	if err := a.Context.AddAssistantMessage(resp.Text); err != nil {
		return nil, err
	}
	return resp, nil
}

// RespondDetached performs a one-off call: the question rides on top of the
// trimmed history but neither it nor the reply is kept.
func (a *Agent) RespondDetached(ctx context.Context, text string, opts ...CallOption) (*provider.Response, error) {
	var settings callSettings
	for _, opt := range opts {
		opt(&settings)
	}
	msg, err := a.Context.BuildMessage(conversation.RoleUser, text, settings.images...)
	if err != nil {
		return nil, err
	}
	msgs := append(a.trimmer.Trim(a.Context.Messages(), a.maxTokens), msg)
	return a.client.Invoke(ctx, provider.Request{
		Messages: msgs,
		Model:    settings.model,
		Schema:   settings.schema,
	})
}

// RespondWithPlan answers text in steps rounds: a scratch copy of the
// conversation first produces a roadmap of that many items, then works
// through them one by one, then writes the final answer. Only the original
// question and the final answer land in the real conversation.
func (a *Agent) RespondWithPlan(ctx context.Context, steps int, text string, opts ...CallOption) (*provider.Response, error) {
	if steps < 1 {
		return nil, fmt.Errorf("engine: plan depth must be at least 1, got %d", steps)
	}
	var settings callSettings
	for _, opt := range opts {
		opt(&settings)
	}

	scratch := a.Clone()
	if err := scratch.Context.SetMode(conversation.ModeSeedOnce); err != nil {
		return nil, err
	}
	roadmap := fmt.Sprintf(
		"Before answering, draw up a roadmap of exactly %d items that together lead to a complete answer to the following request. Number the items. Do not answer the request yet.\n\n%s",
		steps, text)
	if _, err := scratch.Respond(ctx, roadmap, opts...); err != nil {
		return nil, err
	}
	for i := 1; i <= steps; i++ {
		step := fmt.Sprintf("Work through item %d of the roadmap in full detail.", i)
		if _, err := scratch.Respond(ctx, step, WithModel(settings.model)); err != nil {
			return nil, err
		}
	}
	final, err := scratch.Respond(ctx,
		"Now give the complete final answer to the original request, folding in the work done on every roadmap item.",
		WithModel(settings.model))
	if err != nil {
		return nil, err
	}

	if err := a.Context.AddUserMessage(text, settings.images...); err != nil {
		return nil, err
	}
	if err := a.Context.AddAssistantMessage(final.Text); err != nil {
		return nil, err
	}
	return final, nil
}

// Clone deep-copies the agent: the conversation, its records and the call
// plumbing. The clone and the original evolve independently.
func (a *Agent) Clone() *Agent {
	conv := a.Context.Clone()
	return &Agent{
		Context:   conv,
		Records:   a.Records.Clone(conv),
		client:    a.client,
		trimmer:   a.trimmer,
		maxTokens: a.maxTokens,
		logger:    a.logger,
	}
}

func (a *Agent) invoke(ctx context.Context, settings callSettings) (*provider.Response, error) {
	msgs := a.trimmer.Trim(a.Context.Messages(), a.maxTokens)
	return a.client.Invoke(ctx, provider.Request{
		Messages: msgs,
		Model:    settings.model,
		Schema:   settings.schema,
	})
}
