package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAILLM implements LLM on the OpenAI chat completions API.
type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAILLM creates an OpenAI-backed chat client.
func NewOpenAILLM(opts Options) *OpenAILLM {
	return &OpenAILLM{
		client:      openai.NewClient(opts.APIKey),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Model returns the configured model identifier.
func (o *OpenAILLM) Model() string { return o.model }

// Chat implements LLM.
func (o *OpenAILLM) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	req := o.buildRequest(messages, tools)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: empty choices")
	}

	reply := &Reply{
		Message: fromOpenAIMessage(resp.Choices[0].Message),
		Model:   o.model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	reply.Usage.Cost = EstimateCost(o.model, reply.Usage.InputTokens, reply.Usage.OutputTokens)
	return reply, nil
}

// ChatStream implements LLM. Tool-call deltas are accumulated by index and
// only text deltas are forwarded to fn.
func (o *OpenAILLM) ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, fn StreamFunc) (*Reply, error) {
	req := o.buildRequest(messages, tools)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat stream: %w", err)
	}
	defer stream.Close()

	var (
		content string
		calls   []openai.ToolCall
		usage   Usage
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openai chat stream recv: %w", err)
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			if fn != nil {
				if err := fn(ctx, delta.Content); err != nil {
					return nil, fmt.Errorf("stream callback: %w", err)
				}
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, openai.ToolCall{})
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Function.Name = tc.Function.Name
			}
			calls[idx].Function.Arguments += tc.Function.Arguments
		}
	}

	msg := Message{Role: RoleAssistant, Content: content}
	for _, tc := range calls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	usage.Cost = EstimateCost(o.model, usage.InputTokens, usage.OutputTokens)
	return &Reply{Message: msg, Usage: usage, Model: o.model}, nil
}

func (o *OpenAILLM) buildRequest(messages []Message, tools []ToolSpec) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	out := Message{
		Role:    Role(m.Role),
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder. The Dimensions
// request parameter truncates model output so both backends produce
// vectors of the same width.
func NewOpenAIEmbedder(opts Options) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(opts.APIKey),
		model:  opts.EmbedderModel,
		dim:    opts.Dimension,
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }
