// =============================================================================
// MockClient - backend inference client mock
// =============================================================================
// A scriptable backend client for tests: fixed responses, per-prompt error
// injection, artificial latency, and call recording.
//
// Usage:
//
//	cli := mocks.NewMockClient("backend-0")
//	cli.RespondWith(func(prompt string) string { return prompt + "-response" })
//	cli.FailPrompt("bad", errors.New("boom"))
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/batchflow/types"
)

// MockClient is a mock backend inference client.
type MockClient struct {
	mu sync.Mutex

	name    string
	respond func(prompt string) string
	latency time.Duration

	// error injection
	failAll     error
	failPrompts map[string]error

	// call recording
	calls []string
}

// NewMockClient creates a MockClient that echoes "<prompt>-response".
func NewMockClient(name string) *MockClient {
	return &MockClient{
		name:        name,
		respond:     func(prompt string) string { return prompt + "-response" },
		failPrompts: make(map[string]error),
	}
}

// RespondWith replaces the response function.
func (m *MockClient) RespondWith(fn func(prompt string) string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
	return m
}

// WithLatency makes every Generate call sleep for d first.
func (m *MockClient) WithLatency(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
	return m
}

// FailAll makes every Generate call return err.
func (m *MockClient) FailAll(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
	return m
}

// FailPrompt makes Generate fail deterministically for one prompt.
func (m *MockClient) FailPrompt(prompt string, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPrompts[prompt] = err
	return m
}

// Calls returns the prompts seen so far, in arrival order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Name implements client.Client.
func (m *MockClient) Name() string { return m.name }

// Generate implements client.Client.
func (m *MockClient) Generate(ctx context.Context, prompt string, _ types.InferenceParams) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	latency := m.latency
	err := m.failAll
	if err == nil {
		err = m.failPrompts[prompt]
	}
	respond := m.respond
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return respond(prompt), nil
}
