package rag

import "testing"

func TestLexicalRerankRelevanceFirst(t *testing.T) {
	nodes := []Node{
		{ID: "n1", Text: "Roses prefer morning sun and afternoon shade."},
		{ID: "n2", Text: "Tomatoes need a balanced fertilizer during fruiting."},
		{ID: "n3", Text: "Compost improves drainage in clay soil."},
	}

	ranked := NewLexicalReranker().Rerank("fertilizer for tomatoes", nodes, 2)
	if len(ranked) != 2 {
		t.Fatalf("kept %d nodes, want 2", len(ranked))
	}
	if ranked[0].ID != "n2" {
		t.Errorf("most relevant node = %s, want n2", ranked[0].ID)
	}
}

func TestLexicalRerankTopNClamped(t *testing.T) {
	nodes := []Node{{ID: "n1", Text: "tomato"}, {ID: "n2", Text: "tomato"}}

	if got := NewLexicalReranker().Rerank("tomato", nodes, 10); len(got) != 2 {
		t.Errorf("topN above union size should keep all, got %d", len(got))
	}
	if got := NewLexicalReranker().Rerank("tomato", nil, 4); got != nil {
		t.Errorf("empty input should return nil, got %v", got)
	}
}

func TestLexicalRerankTiesKeepIndexPriority(t *testing.T) {
	// Identical content scores equally; the earlier (higher-priority
	// index) node must stay first.
	nodes := []Node{
		{ID: "semantic", Text: "watering schedule for basil"},
		{ID: "keyword", Text: "watering schedule for basil"},
	}

	ranked := NewLexicalReranker().Rerank("basil watering", nodes, 2)
	if ranked[0].ID != "semantic" {
		t.Errorf("tie broke index priority: %s first", ranked[0].ID)
	}
}

func TestLexicalRerankUsesWindow(t *testing.T) {
	nodes := []Node{
		{ID: "n1", Text: "", Window: "tomato fertilizer ratio for fruiting"},
		{ID: "n2", Text: "succulents rarely need feeding"},
	}

	ranked := NewLexicalReranker().Rerank("tomato fertilizer", nodes, 1)
	if ranked[0].ID != "n1" {
		t.Errorf("window text ignored, got %s", ranked[0].ID)
	}
}
