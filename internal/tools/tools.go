// Package tools provides the callable capabilities the conversation agent
// may invoke: knowledge-base search over the RAG facade and deterministic
// plant-care calculators.
package tools

import (
	"context"
	"encoding/json"

	"github.com/verdantlabs/verdant/internal/provider"
)

// Tool is one named capability with a typed input schema. Invoke is the
// primary, context-aware path; InvokeSync exists only for compatibility
// callers and always delegates here.
type Tool interface {
	Name() string
	Description() string
	Schema() *provider.Schema
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// InvokeSync is the compatibility invocation path for callers without a
// context. It delegates to Invoke, never duplicating tool logic.
func InvokeSync(t Tool, args json.RawMessage) (string, error) {
	return t.Invoke(context.Background(), args)
}

// ToolError defines a structured error format for model consumption.
// It allows tools to return specific error types and messages that the
// model can understand and correct.
type ToolError struct {
	ErrorType string `json:"error_type"` // e.g. "UnknownTool", "InvalidArguments"
	Message   string `json:"message"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return "<nil ToolError>"
	}
	switch {
	case e.ErrorType == "" && e.Message == "":
		return "<empty ToolError>"
	case e.ErrorType == "":
		return e.Message
	case e.Message == "":
		return e.ErrorType
	}
	return e.ErrorType + ": " + e.Message
}
