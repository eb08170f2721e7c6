package index

import (
	"context"
	"testing"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/rag"
)

func testNodes() []rag.Node {
	return []rag.Node{
		{
			ID: "n1", DocID: "tomatoes_abc12345", FileName: "tomatoes.txt",
			Text:   "Tomatoes need a balanced fertilizer during fruiting.",
			Window: "Plant in full sun. Tomatoes need a balanced fertilizer during fruiting. Water deeply.",
		},
		{
			ID: "n2", DocID: "tomatoes_abc12345", FileName: "tomatoes.txt",
			Text: "Water tomato plants deeply twice a week.",
		},
		{
			ID: "n3", DocID: "roses_def67890", FileName: "roses.txt",
			Text: "Roses prefer morning sun and afternoon shade.",
		},
	}
}

func TestKeywordStoreInsertRetrieve(t *testing.T) {
	store, err := NewKeywordStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewKeywordStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Insert(ctx, testNodes()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	nodes, err := store.Retrieve(ctx, "fertilizer for tomatoes", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(nodes) == 0 {
		t.Fatal("no nodes retrieved")
	}
	if nodes[0].ID != "n1" {
		t.Errorf("best hit = %s, want n1", nodes[0].ID)
	}
	// Retrieved nodes carry full provenance from the sidecar.
	if nodes[0].FileName != "tomatoes.txt" || nodes[0].Window == "" {
		t.Errorf("provenance lost: %+v", nodes[0])
	}
}

func TestKeywordStoreDeleteByDocument(t *testing.T) {
	store, err := NewKeywordStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewKeywordStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Insert(ctx, testNodes()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.DeleteByDocument(ctx, "tomatoes_abc12345"); err != nil {
		t.Fatalf("DeleteByDocument failed: %v", err)
	}

	nodes, err := store.Retrieve(ctx, "tomato fertilizer watering", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, n := range nodes {
		if n.DocID == "tomatoes_abc12345" {
			t.Errorf("deleted document still retrievable: %+v", n)
		}
	}

	// The other document survives.
	nodes, err = store.Retrieve(ctx, "roses morning sun", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(nodes) == 0 || nodes[0].ID != "n3" {
		t.Errorf("unrelated document lost: %v", nodes)
	}
}

func TestKeywordStoreReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewKeywordStore(dir, log.NewNop())
	if err != nil {
		t.Fatalf("NewKeywordStore failed: %v", err)
	}
	if err := store.Insert(ctx, testNodes()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reloaded, err := NewKeywordStore(dir, log.NewNop())
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer reloaded.Close()

	nodes, err := reloaded.Retrieve(ctx, "balanced fertilizer", 5)
	if err != nil {
		t.Fatalf("Retrieve after reload failed: %v", err)
	}
	if len(nodes) == 0 || nodes[0].Text == "" {
		t.Errorf("state lost across reload: %v", nodes)
	}
}

func TestKeywordStoreListDocuments(t *testing.T) {
	store, err := NewKeywordStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewKeywordStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	nodes := testNodes()
	for i := range nodes {
		nodes[i].Metadata = map[string]string{"file_size": "120"}
	}
	if err := store.Insert(ctx, nodes); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	// Sorted by doc id, sizes parsed from node metadata.
	if docs[0].DocID != "roses_def67890" || docs[1].DocID != "tomatoes_abc12345" {
		t.Errorf("documents out of order: %+v", docs)
	}
	if docs[1].FileName != "tomatoes.txt" || docs[1].FileSize != 120 {
		t.Errorf("provenance lost: %+v", docs[1])
	}
}

func TestKeywordStoreEmptyDirStartsEmpty(t *testing.T) {
	store, err := NewKeywordStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("first-run construction failed: %v", err)
	}
	defer store.Close()

	nodes, err := store.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve on empty store failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("empty store returned nodes: %v", nodes)
	}
}
