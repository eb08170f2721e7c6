package rag

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestChunkerProcess(t *testing.T) {
	path := writeTestFile(t, "tomatoes.txt",
		"Tomatoes need regular watering. Water deeply twice a week. "+
			"Mulch retains soil moisture. Avoid wetting the leaves. "+
			"Feed every two weeks during fruiting.")

	nodes, err := NewChunker(1).Process(path, "tomatoes_abc12345")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(nodes))
	}

	for i, n := range nodes {
		if n.ID == "" {
			t.Errorf("node %d has empty id", i)
		}
		if n.DocID != "tomatoes_abc12345" {
			t.Errorf("node %d doc id = %q", i, n.DocID)
		}
		if n.FileName != "tomatoes.txt" {
			t.Errorf("node %d file name = %q", i, n.FileName)
		}
		if n.Metadata["doc_id"] != n.DocID || n.Metadata["file_name"] != n.FileName {
			t.Errorf("node %d metadata not stamped: %v", i, n.Metadata)
		}
	}

	// Window of the middle node spans one sentence either side.
	mid := nodes[2]
	if mid.Text != "Mulch retains soil moisture." {
		t.Errorf("mid text = %q", mid.Text)
	}
	wantWindow := "Water deeply twice a week. Mulch retains soil moisture. Avoid wetting the leaves."
	if mid.Window != wantWindow {
		t.Errorf("mid window = %q, want %q", mid.Window, wantWindow)
	}

	// Edge nodes clamp the window at document bounds.
	if !strings.HasPrefix(nodes[0].Window, nodes[0].Text) {
		t.Errorf("first window should start with own text: %q", nodes[0].Window)
	}
}

func TestChunkerMissingFile(t *testing.T) {
	_, err := NewChunker(3).Process(filepath.Join(t.TempDir(), "absent.txt"), "doc")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChunkerEmptyFile(t *testing.T) {
	path := writeTestFile(t, "empty.txt", "   \n\t ")
	_, err := NewChunker(3).Process(path, "doc")
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestChunkerNoTerminalPunctuation(t *testing.T) {
	path := writeTestFile(t, "note.txt", "basil likes warmth and sun")
	nodes, err := NewChunker(3).Process(path, "doc")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Text != "basil likes warmth and sun" {
		t.Errorf("expected single whole-text node, got %+v", nodes)
	}
}

func TestGenerateDocumentID(t *testing.T) {
	id := GenerateDocumentID("tomatoes_fert_plan.txt")
	if !strings.HasPrefix(id, "tomatoes_fert_plan_") {
		t.Errorf("id %q should start with file stem", id)
	}
	suffix := strings.TrimPrefix(id, "tomatoes_fert_plan_")
	if len(suffix) != 8 {
		t.Errorf("suffix %q should be 8 chars", suffix)
	}
	if id == GenerateDocumentID("tomatoes_fert_plan.txt") {
		t.Error("ids for repeated uploads must differ")
	}
}
