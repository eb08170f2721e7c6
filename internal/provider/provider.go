// Package provider defines the capability contracts for LLM and embedding
// backends, plus concrete OpenAI and Google AI implementations.
//
// The contracts are deliberately narrow: prompt-in, message-out for chat;
// text-in, vector-out for embeddings. Everything vendor-specific (wire
// formats, tool-call encodings, usage accounting) stays inside an
// implementation. Backends are selected through an explicit factory map
// (see factory.go), not a reflection-based registry.
package provider

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in a conversation. It is JSON-serializable so the
// checkpoint store can persist it verbatim.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are set on tool-result messages to preserve
	// call-id linkage with the assistant message that requested the call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage builds a tool-result message linked to the originating call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// Schema is a minimal JSON-schema object description for tool inputs.
// It marshals to standard JSON schema for OpenAI and is mapped to the
// Gemini schema type inside the googleai implementation.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// ToolSpec declares a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Usage holds per-call token accounting and the derived cost in USD.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Reply is the result of one chat call.
type Reply struct {
	Message Message
	Usage   Usage
	Model   string
}

// StreamFunc receives response fragments as they are produced. Returning
// an error aborts the stream.
type StreamFunc func(ctx context.Context, fragment string) error

// LLM is the chat capability contract.
type LLM interface {
	// Model returns the configured model identifier, used for telemetry
	// labels and cost derivation.
	Model() string

	// Chat sends the message sequence and returns the model's reply,
	// which may carry tool calls instead of (or in addition to) text.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error)

	// ChatStream behaves like Chat but delivers text fragments through fn
	// as they arrive. The final accumulated reply is still returned.
	ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, fn StreamFunc) (*Reply, error)
}

// Embedder is the embedding capability contract.
type Embedder interface {
	// Embed converts each text into a vector of Dimension() floats.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector width this embedder produces.
	Dimension() int
}
