// Package client defines the backend inference client capability consumed
// by the scheduler, plus a ready-made HTTP adapter for OpenAI-compatible
// completion servers.
package client

import (
	"context"

	"github.com/BaSui01/batchflow/types"
)

// Client is a backend inference endpoint. The scheduler holds a fixed list
// of clients and treats them as interchangeable; workers select one by
// round-robin. Implementations must be safe for concurrent use.
type Client interface {
	// Generate produces completion text for a single prompt.
	Generate(ctx context.Context, prompt string, params types.InferenceParams) (string, error)

	// Name returns a stable identifier used in logs and error metadata.
	Name() string
}

// Func adapts a plain function into a Client.
type Func struct {
	ID string
	Fn func(ctx context.Context, prompt string, params types.InferenceParams) (string, error)
}

func (f Func) Generate(ctx context.Context, prompt string, params types.InferenceParams) (string, error) {
	return f.Fn(ctx, prompt, params)
}

func (f Func) Name() string {
	if f.ID == "" {
		return "func"
	}
	return f.ID
}
