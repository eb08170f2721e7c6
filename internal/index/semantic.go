// Package index implements the three store variants behind the rag.Store
// contract: semantic (postgres + pgvector), keyword (bleve BM25), and
// relationship (LLM-extracted entity graph).
package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/rag"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SemanticStore ranks nodes by vector distance between the query embedding
// and stored node embeddings. Persistence is inherent in the backing
// database, so Persist is a no-op.
//
// SemanticStore is safe for concurrent use.
type SemanticStore struct {
	db       querier
	embedder provider.Embedder
	logger   log.Logger
}

// NewSemanticStore creates a SemanticStore.
func NewSemanticStore(db querier, embedder provider.Embedder, logger log.Logger) (*SemanticStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &SemanticStore{
		db:       db,
		embedder: embedder,
		logger:   logger.With("store", "semantic"),
	}, nil
}

// Name implements rag.Store.
func (s *SemanticStore) Name() string { return "semantic" }

// Insert implements rag.Store. Node texts are embedded in one batch call.
func (s *SemanticStore) Insert(ctx context.Context, nodes []rag.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding nodes: %w", err)
	}
	if len(vecs) != len(nodes) {
		return fmt.Errorf("embedding nodes: got %d vectors for %d nodes", len(vecs), len(nodes))
	}

	for i, n := range nodes {
		var size int64
		if raw, ok := n.Metadata["file_size"]; ok {
			size, _ = strconv.ParseInt(raw, 10, 64)
		}
		_, err := s.db.Exec(ctx,
			`INSERT INTO rag_nodes (id, doc_id, file_name, file_size, content, window, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			n.ID, n.DocID, n.FileName, size, n.Text, n.Window, n.Metadata,
			pgvector.NewVector(vecs[i]))
		if err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	s.logger.Debug("nodes inserted", "count", len(nodes))
	return nil
}

// DeleteByDocument implements rag.Store.
func (s *SemanticStore) DeleteByDocument(ctx context.Context, docID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rag_nodes WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("deleting nodes for %s: %w", docID, err)
	}
	s.logger.Debug("document deleted", "doc_id", docID, "rows", tag.RowsAffected())
	return nil
}

// Retrieve implements rag.Store using cosine distance.
func (s *SemanticStore) Retrieve(ctx context.Context, query string, topK int) ([]rag.Node, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding query: empty response")
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, doc_id, file_name, content, window, metadata
		 FROM rag_nodes
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vecs[0]), topK)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []rag.Node
	for rows.Next() {
		var n rag.Node
		if err := rows.Scan(&n.ID, &n.DocID, &n.FileName, &n.Text, &n.Window, &n.Metadata); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

// Persist implements rag.Store. The backing database persists inherently.
func (s *SemanticStore) Persist(context.Context) error { return nil }

// ListDocuments implements rag.DocumentLister. The semantic store is the
// authoritative document catalog.
func (s *SemanticStore) ListDocuments(ctx context.Context) ([]rag.DocumentInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT doc_id, file_name, file_size FROM rag_nodes ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []rag.DocumentInfo
	for rows.Next() {
		var d rag.DocumentInfo
		if err := rows.Scan(&d.DocID, &d.FileName, &d.FileSize); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
