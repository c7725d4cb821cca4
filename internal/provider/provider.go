// Package provider is the request/response boundary to the language model
// backends: a direct OpenAI-style endpoint and an OpenRouter routing
// endpoint, behind one Client interface with retry and error normalization.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"

	"github.com/rand/descent/internal/conversation"
)

// Schema asks for a structured response shaped like Type.
type Schema struct {
	// Name labels the schema for the provider.
	Name string
	// Type is an instance of the Go type the response must match.
	Type any
}

// Request is one call to a backend.
type Request struct {
	Messages []*conversation.Message

	// Model overrides the client's configured model when non-empty. It
	// must follow the backend's naming convention.
	Model string

	// Schema, when set, requests a structured response.
	Schema *Schema
}

// Response is the result of a call.
type Response struct {
	// Text is the plain response content.
	Text string

	// Structured holds the raw JSON for schema requests.
	Structured json.RawMessage

	// Refused is set when the provider signaled a refusal for a schema
	// request. Text and Structured are empty then.
	Refused bool

	// Provider names the upstream vendor for routed calls, when reported.
	Provider string
}

// Client executes calls against one backend.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// validateDirectModel rejects namespaced names on the direct backend.
func validateDirectModel(model string) error {
	if model == "" {
		return &ConfigError{Reason: "model name is empty"}
	}
	if strings.Contains(model, "/") {
		return &ConfigError{Reason: fmt.Sprintf(
			"model %q is vendor-namespaced; the direct backend takes bare names", model)}
	}
	return nil
}

// validateRoutingModel requires namespaced names on the routing backend.
func validateRoutingModel(model string) error {
	if model == "" {
		return &ConfigError{Reason: "model name is empty"}
	}
	if !strings.Contains(model, "/") {
		return &ConfigError{Reason: fmt.Sprintf(
			"model %q is not vendor-namespaced; the routing backend takes vendor/model names", model)}
	}
	return nil
}

// toParams converts a message list into SDK form.
func toParams(msgs []*conversation.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case conversation.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text()))
		default:
			images := m.Images()
			if len(images) == 0 {
				out = append(out, openai.UserMessage(m.Text()))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
			parts = append(parts, openai.TextContentPart(m.Text()))
			for _, img := range images {
				parts = append(parts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{
						URL:    img.URL,
						Detail: img.Detail,
					}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// schemaFormat derives the response-format parameter for a schema request.
func schemaFormat(s *Schema) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	derived := reflector.Reflect(s.Type)
	raw, err := json.Marshal(derived)
	if err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{},
			fmt.Errorf("marshal schema %q: %w", s.Name, err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{},
			fmt.Errorf("rebuild schema %q: %w", s.Name, err)
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   s.Name,
				Schema: schemaMap,
				Strict: openai.Bool(true),
			},
		},
	}, nil
}
