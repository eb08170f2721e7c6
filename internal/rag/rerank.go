package rag

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Reranker orders a fused candidate set by relevance to the query and
// keeps the top N.
type Reranker interface {
	Rerank(query string, nodes []Node, topN int) []Node
}

// LexicalReranker scores candidates by weighted term overlap with the
// query: rarer terms within the candidate set count more, and scores are
// normalized by candidate length so long windows do not win by volume.
// It is deterministic and keeps the incoming (index-priority) order on
// ties, which preserves the semantic-first bias of fusion.
type LexicalReranker struct{}

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank implements Reranker.
func (r *LexicalReranker) Rerank(query string, nodes []Node, topN int) []Node {
	if len(nodes) == 0 {
		return nil
	}
	if topN < 1 || topN > len(nodes) {
		topN = len(nodes)
	}

	queryTerms := termSet(query)

	// Document frequency of each query term across the candidate set.
	candidateTerms := make([]map[string]struct{}, len(nodes))
	df := make(map[string]int, len(queryTerms))
	for i, n := range nodes {
		candidateTerms[i] = termSet(n.Context())
		for term := range queryTerms {
			if _, ok := candidateTerms[i][term]; ok {
				df[term]++
			}
		}
	}

	type scored struct {
		node  Node
		score float64
		pos   int
	}
	ranked := make([]scored, len(nodes))
	total := float64(len(nodes))
	for i, n := range nodes {
		var score float64
		for term := range queryTerms {
			if _, ok := candidateTerms[i][term]; !ok {
				continue
			}
			// idf-style weight: terms every candidate contains carry
			// almost no signal.
			score += math.Log(1 + total/float64(df[term]))
		}
		if size := len(candidateTerms[i]); size > 0 {
			score /= math.Sqrt(float64(size))
		}
		ranked[i] = scored{node: n, score: score, pos: i}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].pos < ranked[b].pos
	})

	out := make([]Node, topN)
	for i := range out {
		out[i] = ranked[i].node
	}
	return out
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) > 2 { // skip stopword-length tokens
			terms[field] = struct{}{}
		}
	}
	return terms
}
