package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
)

// fakeStore is an in-memory Store for fusion and manager tests.
type fakeStore struct {
	mu        sync.Mutex
	name      string
	nodes     []Node
	retrieve  []Node
	failWith  error
	deleted   []string
	persisted int
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Insert(_ context.Context, nodes []Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nodes = append(f.nodes, nodes...)
	return nil
}

func (f *fakeStore) DeleteByDocument(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeStore) Retrieve(_ context.Context, _ string, topK int) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if len(f.retrieve) > topK {
		return f.retrieve[:topK], nil
	}
	return f.retrieve, nil
}

func (f *fakeStore) Persist(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.persisted++
	return nil
}

// fakeLLM counts calls and replies with a fixed answer.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Chat(_ context.Context, _ []provider.Message, _ []provider.ToolSpec) (*provider.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &provider.Reply{Message: provider.AssistantMessage(f.reply)}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []provider.Message, tools []provider.ToolSpec, fn provider.StreamFunc) (*provider.Reply, error) {
	reply, err := f.Chat(ctx, messages, tools)
	if err == nil && fn != nil {
		if cbErr := fn(ctx, reply.Message.Content); cbErr != nil {
			return nil, cbErr
		}
	}
	return reply, err
}

func newTestEngine(llm provider.LLM, stores ...Store) *Engine {
	return NewEngine(stores, llm, NewLexicalReranker(), 5, 4, log.NewNop())
}

func TestQueryEmptyUnionShortCircuits(t *testing.T) {
	llm := &fakeLLM{reply: "should never be used"}
	engine := newTestEngine(llm,
		&fakeStore{name: "semantic"},
		&fakeStore{name: "keyword"},
		&fakeStore{name: "graph"},
	)

	resp, err := engine.Query(context.Background(), "How often should I water tomatoes?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Answer != CannedNoInfo {
		t.Errorf("answer = %q, want canned answer", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %v, want empty", resp.Sources)
	}
	if llm.calls != 0 {
		t.Errorf("LLM called %d times on empty retrieval", llm.calls)
	}
}

func TestQueryDedupFirstSeenWins(t *testing.T) {
	// The same node id appears in semantic and keyword stores with
	// different text; the semantic copy must survive.
	semantic := &fakeStore{name: "semantic", retrieve: []Node{
		{ID: "n1", FileName: "a.txt", Text: "semantic copy about tomato fertilizer"},
	}}
	keyword := &fakeStore{name: "keyword", retrieve: []Node{
		{ID: "n1", FileName: "a.txt", Text: "keyword copy"},
		{ID: "n2", FileName: "b.txt", Text: "tomato fertilizer ratio details"},
	}}

	engine := newTestEngine(&fakeLLM{reply: "answer"}, semantic, keyword)
	fused := engine.retrieveAll(context.Background(), "tomato fertilizer")

	if len(fused) != 2 {
		t.Fatalf("fused = %d nodes, want 2", len(fused))
	}
	if fused[0].Text != "semantic copy about tomato fertilizer" {
		t.Errorf("first-seen copy lost: %q", fused[0].Text)
	}
}

func TestQueryFailingStoreContained(t *testing.T) {
	semantic := &fakeStore{name: "semantic", failWith: errors.New("connection refused")}
	keyword := &fakeStore{name: "keyword", retrieve: []Node{
		{ID: "n1", FileName: "tomatoes_fert_plan.txt", Text: "Use a 5-10-10 fertilizer for tomatoes."},
	}}

	llm := &fakeLLM{reply: "Use a 5-10-10 fertilizer."}
	engine := newTestEngine(llm, semantic, keyword)

	resp, err := engine.Query(context.Background(), "What fertilizer ratio for tomatoes?")
	if err != nil {
		t.Fatalf("Query failed despite healthy keyword store: %v", err)
	}
	if resp.Answer != "Use a 5-10-10 fertilizer." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "tomatoes_fert_plan.txt" {
		t.Errorf("sources = %v", resp.Sources)
	}
}

func TestQuerySourcesDistinct(t *testing.T) {
	store := &fakeStore{name: "semantic", retrieve: []Node{
		{ID: "n1", FileName: "plan.txt", Text: "tomato feeding schedule part one"},
		{ID: "n2", FileName: "plan.txt", Text: "tomato feeding schedule part two"},
		{ID: "n3", FileName: "soil.txt", Text: "tomato soil preparation notes"},
	}}

	engine := newTestEngine(&fakeLLM{reply: "answer"}, store)
	resp, err := engine.Query(context.Background(), "tomato feeding")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %v, want 2 distinct names", resp.Sources)
	}
}

func TestQuerySourcesOnlyFromContributingNodes(t *testing.T) {
	// The second node has neither text nor window, so its file must not
	// be cited even though it survived reranking.
	store := &fakeStore{name: "semantic", retrieve: []Node{
		{ID: "n1", FileName: "plan.txt", Text: "tomato feeding schedule details"},
		{ID: "n2", FileName: "empty.txt"},
	}}

	engine := newTestEngine(&fakeLLM{reply: "answer"}, store)
	resp, err := engine.Query(context.Background(), "tomato feeding")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "plan.txt" {
		t.Errorf("sources = %v, want [plan.txt]", resp.Sources)
	}
}

func TestQueryAllContextsEmptyShortCircuits(t *testing.T) {
	llm := &fakeLLM{reply: "should never be used"}
	store := &fakeStore{name: "semantic", retrieve: []Node{
		{ID: "n1", FileName: "a.txt"},
	}}

	engine := newTestEngine(llm, store)
	resp, err := engine.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Answer != CannedNoInfo || len(resp.Sources) != 0 {
		t.Errorf("response = %+v, want canned answer without sources", resp)
	}
	if llm.calls != 0 {
		t.Errorf("LLM called %d times with no usable context", llm.calls)
	}
}

func TestSynthesizeRefinesOnOverflow(t *testing.T) {
	llm := &fakeLLM{reply: "refined answer"}
	engine := newTestEngine(llm, &fakeStore{name: "semantic"})

	nodes := []Node{
		{ID: "n1", Text: strings.Repeat("a", maxContextChars)},
		{ID: "n2", Text: "short tail context"},
	}
	answer, err := engine.synthesize(context.Background(), "q", nodes)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if answer != "refined answer" {
		t.Errorf("answer = %q", answer)
	}
	if llm.calls != 2 {
		t.Errorf("expected compact + refine calls, got %d", llm.calls)
	}
}

func TestBatchByBudget(t *testing.T) {
	nodes := []Node{
		{Text: "aaaa"},
		{Text: "bbbb"},
		{Text: "cccc"},
	}
	batches := batchByBudget(nodes, 10)
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2: %v", len(batches), batches)
	}
	if batches[0] != "aaaa\n\nbbbb" || batches[1] != "cccc" {
		t.Errorf("unexpected batches: %q", batches)
	}

	// Structural-only nodes contribute their window.
	graph := []Node{{Window: "tomato -> needs -> potassium"}}
	batches = batchByBudget(graph, 100)
	if len(batches) != 1 || batches[0] != "tomato -> needs -> potassium" {
		t.Errorf("window-only batching broken: %q", batches)
	}
}
