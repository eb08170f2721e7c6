package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

func newGoogleAIClient(apiKey string) (*genai.Client, error) {
	// Client construction does not hit the network, so a background
	// context here is fine.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating googleai client: %w", err)
	}
	return client, nil
}

// GoogleAILLM implements LLM on the Gemini API.
type GoogleAILLM struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGoogleAILLM creates a Gemini-backed chat client.
func NewGoogleAILLM(client *genai.Client, opts Options) *GoogleAILLM {
	return &GoogleAILLM{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Model returns the configured model identifier.
func (g *GoogleAILLM) Model() string { return g.model }

// Chat implements LLM.
func (g *GoogleAILLM) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	contents, config, err := g.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("googleai generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("googleai generate content: empty candidates")
	}

	msg, err := fromGeminiContent(resp.Candidates[0].Content)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Message: msg, Model: g.model}
	if resp.UsageMetadata != nil {
		reply.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		reply.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	reply.Usage.Cost = EstimateCost(g.model, reply.Usage.InputTokens, reply.Usage.OutputTokens)
	return reply, nil
}

// ChatStream implements LLM.
func (g *GoogleAILLM) ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, fn StreamFunc) (*Reply, error) {
	contents, config, err := g.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	var (
		content string
		calls   []ToolCall
		usage   Usage
	)

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("googleai generate stream: %w", err)
		}
		if resp.UsageMetadata != nil {
			usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
				if fn != nil {
					if err := fn(ctx, part.Text); err != nil {
						return nil, fmt.Errorf("stream callback: %w", err)
					}
				}
			}
			if part.FunctionCall != nil {
				call, err := fromGeminiCall(part.FunctionCall)
				if err != nil {
					return nil, err
				}
				calls = append(calls, call)
			}
		}
	}

	usage.Cost = EstimateCost(g.model, usage.InputTokens, usage.OutputTokens)
	return &Reply{
		Message: Message{Role: RoleAssistant, Content: content, ToolCalls: calls},
		Usage:   usage,
		Model:   g.model,
	}, nil
}

func (g *GoogleAILLM) buildRequest(messages []Message, tools []ToolSpec) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}

	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		})
	}
	if len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			// Gemini takes system text out of band.
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			content, err := toGeminiAssistant(m)
			if err != nil {
				return nil, nil, err
			}
			contents = append(contents, content)
		case RoleTool:
			var result map[string]any
			if err := json.Unmarshal([]byte(m.Content), &result); err != nil {
				// Tool output is plain text unless the tool emitted JSON.
				result = map[string]any{"output": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.Name,
					Response: result,
				}}},
			})
		default:
			return nil, nil, fmt.Errorf("googleai: unsupported role %q", m.Role)
		}
	}
	return contents, config, nil
}

func toGeminiAssistant(m Message) (*genai.Content, error) {
	content := &genai.Content{Role: genai.RoleModel}
	if m.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		if len(tc.Arguments) > 0 {
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				return nil, fmt.Errorf("googleai: decoding tool call arguments for %s: %w", tc.Name, err)
			}
		}
		content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: args,
		}})
	}
	return content, nil
}

func fromGeminiContent(c *genai.Content) (Message, error) {
	msg := Message{Role: RoleAssistant}
	for _, part := range c.Parts {
		if part.Text != "" {
			msg.Content += part.Text
		}
		if part.FunctionCall != nil {
			call, err := fromGeminiCall(part.FunctionCall)
			if err != nil {
				return Message{}, err
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	return msg, nil
}

func fromGeminiCall(fc *genai.FunctionCall) (ToolCall, error) {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("googleai: encoding tool call arguments for %s: %w", fc.Name, err)
	}
	id := fc.ID
	if id == "" {
		// Gemini omits call ids; the name keeps result linkage intact
		// because tool calls within one reply have distinct names.
		id = fc.Name
	}
	return ToolCall{ID: id, Name: fc.Name, Arguments: args}, nil
}

var geminiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

func toGeminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        geminiTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGeminiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	return out
}

// GoogleAIEmbedder implements Embedder on the Gemini embedding API.
type GoogleAIEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGoogleAIEmbedder creates a Gemini-backed embedder. OutputDimensionality
// truncates model output so both backends produce vectors of the same width.
func NewGoogleAIEmbedder(client *genai.Client, opts Options) *GoogleAIEmbedder {
	return &GoogleAIEmbedder{
		client: client,
		model:  opts.EmbedderModel,
		dim:    opts.Dimension,
	}
}

// Embed implements Embedder.
func (e *GoogleAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(e.dim)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("googleai embed content: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("googleai embed content: empty embedding at index %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

// Dimension implements Embedder.
func (e *GoogleAIEmbedder) Dimension() int { return e.dim }
