// Package rag implements the multi-index retrieval and synthesis engine:
// sentence-window chunking, document lifecycle across three index stores,
// concurrent retrieval fusion with reranking, and LLM answer synthesis
// with source attribution.
package rag

import "context"

// Node is a retrievable chunk of a source document. Nodes are immutable
// after creation and are removed only when their owning document is
// deleted.
type Node struct {
	// ID uniquely identifies the node across all stores. Deduplication
	// during fusion keys on this, never on content equality.
	ID string

	// DocID is the owning document. Deletion cascades by this key.
	DocID string

	// FileName is the source file, kept for provenance and attribution.
	FileName string

	// Text is the literal sentence the node was built from. Retrieval
	// matches against Text; synthesis prefers Window.
	Text string

	// Window is Text plus its neighboring sentences for context.
	Window string

	// Metadata carries additional provenance attributes.
	Metadata map[string]string
}

// Context returns the text synthesis should use: the window when present,
// otherwise the literal text. Relationship-store results may carry only
// structural signal in Window with an empty Text.
func (n Node) Context() string {
	if n.Window != "" {
		return n.Window
	}
	return n.Text
}

// DocumentInfo describes one tracked document.
type DocumentInfo struct {
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Response is the result of one search: the synthesized answer and the
// distinct source file names it drew on.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Store is the capability contract every index variant implements:
// semantic (vector similarity), keyword (lexical overlap), relationship
// (entity-graph proximity). Implementations live in internal/index.
type Store interface {
	// Name identifies the store in logs and delete statuses.
	Name() string

	// Insert adds nodes to the index.
	Insert(ctx context.Context, nodes []Node) error

	// DeleteByDocument removes every node owned by docID.
	DeleteByDocument(ctx context.Context, docID string) error

	// Retrieve returns up to topK nodes ranked by the store's own
	// relevance measure.
	Retrieve(ctx context.Context, query string, topK int) ([]Node, error)

	// Persist flushes in-memory state to durable storage. Stores whose
	// backing engine persists inherently implement this as a no-op.
	Persist(ctx context.Context) error
}

// DocumentLister enumerates tracked documents. The semantic store is the
// authoritative lister because its backing database retains full
// provenance rows.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
}
