package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go/v2"
)

// ErrorKind classifies a failed provider call.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindProvider    ErrorKind = "provider"
)

// ConfigError reports a call that was rejected before reaching the network,
// such as a model name violating the backend's convention.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "provider config: " + e.Reason
}

// CallError wraps a provider failure with its classification and backend.
type CallError struct {
	Kind    ErrorKind
	Backend string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// EmptyResponseError marks a successful-looking routing response with no
// usable content. It is retryable.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("routing backend returned an empty response for model %q", e.Model)
}

// classify maps an SDK error to an ErrorKind.
func classify(err error) ErrorKind {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429:
			return KindRateLimited
		case 408, 504:
			return KindTimeout
		}
		return KindProvider
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindConnection
}
