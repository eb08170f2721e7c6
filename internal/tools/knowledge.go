package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/rag"
)

// Searcher is the slice of the RAG facade the knowledge tool needs.
type Searcher interface {
	Search(ctx context.Context, query string) (*rag.Response, error)
}

// KnowledgeBaseTool searches the plant knowledge base. Its output is
// never empty: when retrieval finds no sources the answer is annotated
// "Not found in the knowledge base", because an empty tool message is
// invalid downstream.
type KnowledgeBaseTool struct {
	searcher Searcher
	logger   log.Logger
}

// NewKnowledgeBaseTool creates the knowledge-base search tool.
func NewKnowledgeBaseTool(searcher Searcher, logger log.Logger) *KnowledgeBaseTool {
	return &KnowledgeBaseTool{searcher: searcher, logger: logger.With("tool", "search_knowledge_base")}
}

// Name implements Tool.
func (t *KnowledgeBaseTool) Name() string { return "search_knowledge_base" }

// Description implements Tool.
func (t *KnowledgeBaseTool) Description() string {
	return "Use this tool to search information about plant care, fertilization schedules, " +
		"common diseases and pests, soil and watering requirements, as well as seasonal " +
		"tips from gardening guides, agricultural manuals, and expert sources."
}

// Schema implements Tool.
func (t *KnowledgeBaseTool) Schema() *provider.Schema {
	return &provider.Schema{
		Type: "object",
		Properties: map[string]*provider.Schema{
			"query": {
				Type:        "string",
				Description: "Detailed search query to the plants knowledge database",
			},
		},
		Required: []string{"query"},
	}
}

// Invoke implements Tool.
func (t *KnowledgeBaseTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", &ToolError{ErrorType: "InvalidArguments", Message: err.Error()}
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", &ToolError{ErrorType: "InvalidArguments", Message: "query must not be empty"}
	}

	t.logger.Debug("knowledge base invoked", "query", input.Query)
	resp, err := t.searcher.Search(ctx, input.Query)
	if err != nil {
		return "", err
	}

	if len(resp.Sources) == 0 {
		return fmt.Sprintf("Answer: %s\nSources: Not found in the knowledge base", resp.Answer), nil
	}
	return fmt.Sprintf("Answer: %s\nSources: %s", resp.Answer, strings.Join(resp.Sources, ", ")), nil
}
