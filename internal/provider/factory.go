package provider

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider indicates the requested backend is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Options carries the backend-agnostic settings a constructor needs.
type Options struct {
	APIKey        string
	Model         string
	EmbedderModel string
	Temperature   float32
	MaxTokens     int
	Dimension     int
}

// constructor builds the chat and embedding clients for one backend.
type constructor func(Options) (LLM, Embedder, error)

// constructors is the explicit backend registry. Adding a provider means
// adding a row here, nothing else.
var constructors = map[string]constructor{
	"openai":   newOpenAIPair,
	"googleai": newGoogleAIPair,
}

// New builds the LLM and Embedder for the named backend.
func New(name string, opts Options) (LLM, Embedder, error) {
	build, ok := constructors[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if opts.APIKey == "" {
		return nil, nil, fmt.Errorf("provider %q: API key is required", name)
	}
	return build(opts)
}

func newOpenAIPair(opts Options) (LLM, Embedder, error) {
	llm := NewOpenAILLM(opts)
	emb := NewOpenAIEmbedder(opts)
	return llm, emb, nil
}

func newGoogleAIPair(opts Options) (LLM, Embedder, error) {
	client, err := newGoogleAIClient(opts.APIKey)
	if err != nil {
		return nil, nil, err
	}
	llm := NewGoogleAILLM(client, opts)
	emb := NewGoogleAIEmbedder(client, opts)
	return llm, emb, nil
}
