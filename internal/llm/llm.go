// Package llm abstracts the language model behind a narrow completion
// interface with HTTP providers, a provider registry, and ordered fallback.
package llm

import (
	"context"
	"fmt"

	"github.com/JaimeStill/hemalyze/pkg/formatting"
)

// Request is a single prompt sent to the model. When JSON is set the
// provider asks the model for a JSON object response.
type Request struct {
	System string
	Prompt string
	JSON   bool
}

// Completer produces a text completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts an ordinary function to the Completer interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Validator is implemented by structured responses that check their own
// field constraints after decoding.
type Validator interface {
	Validate() error
}

// CompleteJSON requests a JSON response, decodes it into T, and runs
// T's Validate method when present. Any failure is a hard failure for the
// caller; nothing is salvaged from a response that does not validate.
func CompleteJSON[T any](ctx context.Context, c Completer, prompt string) (T, error) {
	var zero T

	content, err := c.Complete(ctx, Request{Prompt: prompt, JSON: true})
	if err != nil {
		return zero, err
	}

	parsed, err := formatting.Parse[T](content)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if v, ok := any(&parsed).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
	}

	return parsed, nil
}
