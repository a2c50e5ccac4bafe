// Package providers implements LLMClient: a single request/response
// surface over OpenAI-compatible chat completion endpoints, non-stream
// and streaming, with no provider-name-based routing — the caller
// resolves a concrete {apiBase, apiKey, model} at construction per the
// spec's explicit model→provider mapping requirement.
package providers

import "context"

// Option keys accepted in ChatRequest.Options.
const (
	OptMaxTokens    = "maxTokens"
	OptTemperature  = "temperature"
	OptTopP         = "topP"
)

// Provider is the interface LLMClient implementations satisfy.
type Provider interface {
	// Chat sends messages to the LLM and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and streams response chunks via onChunk,
	// returning the final accumulated response once the stream ends.
	// onChunk may be invoked from whatever goroutine drives the HTTP
	// read loop; callers must not assume single-threaded delivery.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)

	// DefaultModel returns the model used when ChatRequest.Model is empty.
	DefaultModel() string

	// Name identifies this provider instance (for logging/tracing).
	Name() string
}

// ChatRequest is the input to Chat/ChatStream.
type ChatRequest struct {
	Messages []Message
	Tools    []ToolDefinition
	Model    string
	Options  map[string]interface{}
}

// ChatResponse is the (possibly tagged) result of an LLM call: either a
// text result or a tool-calls result, discriminated by whether
// ToolCalls is non-empty — matching the spec's "polymorphic LLM
// response" design note, decoded into one concrete Go shape instead of
// a dynamic map.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // "stop", "tool_calls", "length"
	Usage        *Usage
}

// StreamChunk is one piece of a streaming response delivered to onChunk.
type StreamChunk struct {
	Content string
	Done    bool
}

// ImageContent is a base64-encoded image attached to a user message.
type ImageContent struct {
	MimeType string
	Data     string
}

// Message is one entry in the LLM-facing conversation. The invariant
// the rest of the system relies on: every tool-role message's
// ToolCallID equals the ID of an assistant ToolCall earlier in the same
// sequence.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	Images     []ImageContent `json:",omitempty"`
	ToolCalls  []ToolCall     `json:",omitempty"`
	ToolCallID string         `json:",omitempty"`
}

// ToolCall is an LLM-requested tool invocation. ID is opaque but must
// be echoed back on the matching tool-result Message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolDefinition describes one tool exposed to the LLM, matching the
// OpenAI "function" tool schema shape.
type ToolDefinition struct {
	Type     string
	Function ToolFunctionSchema
}

// ToolFunctionSchema is the OpenAI-style function schema body.
type ToolFunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Usage reports token consumption for one Chat/ChatStream call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
