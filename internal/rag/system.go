package rag

import (
	"context"

	"github.com/verdantlabs/verdant/internal/log"
)

// System is the single entry point over the document lifecycle manager
// and the fusion engine. It hides index plurality from callers; the tool
// layer and CLI depend on nothing below this facade.
type System struct {
	manager *Manager
	engine  *Engine
	logger  log.Logger
}

// NewSystem creates the RAG facade.
func NewSystem(manager *Manager, engine *Engine, logger log.Logger) *System {
	return &System{
		manager: manager,
		engine:  engine,
		logger:  logger.With("component", "rag"),
	}
}

// AddDocument indexes the file at path under fileName and returns its
// document id.
func (s *System) AddDocument(ctx context.Context, path, fileName string) (string, error) {
	return s.manager.Add(ctx, path, fileName)
}

// DeleteDocument removes a document from every index. It returns false
// when any store failed; partial failures are logged per store.
func (s *System) DeleteDocument(ctx context.Context, docID string) bool {
	status := s.manager.Delete(ctx, docID)
	if !status.OK() {
		for _, st := range status {
			if st.Err != nil {
				s.logger.Error("delete incomplete", "doc_id", docID, "store", st.Store, "error", st.Err)
			}
		}
		return false
	}
	return true
}

// ListDocuments enumerates tracked documents.
func (s *System) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return s.manager.List(ctx)
}

// Search answers a query from the indexed corpus with source attribution.
func (s *System) Search(ctx context.Context, query string) (*Response, error) {
	return s.engine.Query(ctx, query)
}
