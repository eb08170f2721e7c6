package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
)

// CannedNoInfo is returned when the fused retrieval set is empty. The LLM
// is never called in that case.
const CannedNoInfo = "Could not retrieve any information."

// maxContextChars bounds how much node text one synthesis call carries.
// Overflow is folded in through refine calls.
const maxContextChars = 12000

const synthesisPrompt = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer:`

const refinePrompt = `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer with some more context below.
---------------------
%s
---------------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.
Refined Answer:`

// Engine fuses retrieval results from all index stores and synthesizes an
// answer. Store order is significant: first-seen deduplication keeps the
// earlier store's copy of a node, so stores are passed in
// semantic, keyword, relationship priority.
type Engine struct {
	stores   []Store
	llm      provider.LLM
	reranker Reranker
	topK     int
	topN     int
	logger   log.Logger
}

// NewEngine creates a fusion Engine.
func NewEngine(stores []Store, llm provider.LLM, reranker Reranker, topK, topN int, logger log.Logger) *Engine {
	return &Engine{
		stores:   stores,
		llm:      llm,
		reranker: reranker,
		topK:     topK,
		topN:     topN,
		logger:   logger.With("component", "fusion"),
	}
}

// Query retrieves from every store concurrently, fuses and reranks the
// union, and synthesizes an answer with source attribution. A store that
// fails contributes zero results; only synthesis failures propagate.
func (e *Engine) Query(ctx context.Context, query string) (*Response, error) {
	fused := e.retrieveAll(ctx, query)
	if len(fused) == 0 {
		e.logger.Debug("no relevant nodes found", "query", query)
		return &Response{Answer: CannedNoInfo, Sources: []string{}}, nil
	}

	ranked := e.reranker.Rerank(query, fused, e.topN)
	e.logger.Debug("reranked fused nodes", "fused", len(fused), "kept", len(ranked))

	// Sources are attributed only to nodes that feed the synthesis; a
	// node without context contributes nothing and must not be cited.
	used := make([]Node, 0, len(ranked))
	for _, n := range ranked {
		if n.Context() != "" {
			used = append(used, n)
		}
	}
	if len(used) == 0 {
		return &Response{Answer: CannedNoInfo, Sources: []string{}}, nil
	}

	answer, err := e.synthesize(ctx, query, used)
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	return &Response{Answer: answer, Sources: sourceNames(used)}, nil
}

// retrieveAll fans out to every store in parallel and joins the results,
// deduplicating by node id with first-seen-wins in store order.
func (e *Engine) retrieveAll(ctx context.Context, query string) []Node {
	perStore := make([][]Node, len(e.stores))

	var wg sync.WaitGroup
	for i, store := range e.stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodes, err := store.Retrieve(ctx, query, e.topK)
			if err != nil {
				// Contained: a failing store contributes nothing.
				e.logger.Warn("store retrieval failed", "store", store.Name(), "error", err)
				return
			}
			perStore[i] = nodes
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var fused []Node
	for _, nodes := range perStore {
		for _, n := range nodes {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			fused = append(fused, n)
		}
	}
	return fused
}

// synthesize folds as many node contexts as fit into one compact call,
// then refines the answer with the overflow until all nodes are consumed.
func (e *Engine) synthesize(ctx context.Context, query string, nodes []Node) (string, error) {
	batches := batchByBudget(nodes, maxContextChars)

	var answer string
	for i, batch := range batches {
		var prompt string
		if i == 0 {
			prompt = fmt.Sprintf(synthesisPrompt, batch, query)
		} else {
			prompt = fmt.Sprintf(refinePrompt, query, answer, batch)
		}

		reply, err := e.llm.Chat(ctx, []provider.Message{provider.UserMessage(prompt)}, nil)
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(reply.Message.Content)
	}
	return answer, nil
}

// batchByBudget joins node contexts into newline-separated batches of at
// most budget characters. A single oversized context still forms its own
// batch rather than being dropped.
func batchByBudget(nodes []Node, budget int) []string {
	var batches []string
	var b strings.Builder
	for _, n := range nodes {
		text := n.Context()
		if text == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+len(text) > budget {
			batches = append(batches, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	if b.Len() > 0 {
		batches = append(batches, b.String())
	}
	return batches
}

func sourceNames(nodes []Node) []string {
	seen := make(map[string]struct{})
	sources := []string{}
	for _, n := range nodes {
		if n.FileName == "" {
			continue
		}
		if _, ok := seen[n.FileName]; ok {
			continue
		}
		seen[n.FileName] = struct{}{}
		sources = append(sources, n.FileName)
	}
	sort.Strings(sources)
	return sources
}
