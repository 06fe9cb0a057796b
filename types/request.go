package types

import (
	"time"
)

// Priority represents the urgency tier of an inference request.
// Higher values schedule sooner.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// InferenceParams holds generation configuration for a single request.
// It is a plain value; the scheduler never interprets it beyond passing
// it to the backend client.
type InferenceParams struct {
	Temperature       float32  `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens         int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	TopP              float32  `json:"top_p,omitempty" yaml:"top_p"`
	TopK              int      `json:"top_k,omitempty" yaml:"top_k"`
	RepetitionPenalty float32  `json:"repetition_penalty,omitempty" yaml:"repetition_penalty"`
	Stop              []string `json:"stop,omitempty" yaml:"stop"`
}

// DefaultInferenceParams returns sensible generation defaults.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Temperature: 0.7,
		MaxTokens:   256,
		TopP:        0.9,
	}
}

// Result is the terminal outcome of a request: generated text or an error.
// Exactly one Result is ever delivered per request.
type Result struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
	Err  error  `json:"-"`
}

// Request is one unit of work submitted to the scheduler.
//
// A request lives in exactly one place at a time: the pending queue or an
// active batch. Once removed from the queue it is never re-queued. The
// Reply channel is buffered with capacity 1 and written exactly once, by
// whichever component removes the request from circulation (scheduler
// worker, expiration sweeper, or shutdown path).
type Request struct {
	ID        string          `json:"id"`
	Prompt    string          `json:"prompt"`
	Params    InferenceParams `json:"params"`
	Priority  Priority        `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
	Deadline  time.Time       `json:"deadline"`

	Reply chan Result `json:"-"`
}

// Expired reports whether the request deadline has passed at now.
func (r *Request) Expired(now time.Time) bool {
	return !r.Deadline.After(now)
}

// Urgent reports whether the request deadline is within window of now.
func (r *Request) Urgent(now time.Time, window time.Duration) bool {
	return r.Deadline.Sub(now) < window
}
