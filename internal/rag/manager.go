package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/verdantlabs/verdant/internal/log"
)

// StoreStatus records the outcome of one store's part of a delete.
type StoreStatus struct {
	Store string
	Err   error
}

// DeleteStatus is the per-store outcome of a document delete. Cross-store
// consistency is not transactional, so partial failure is reported rather
// than hidden.
type DeleteStatus []StoreStatus

// OK reports whether every store completed its delete.
func (ds DeleteStatus) OK() bool {
	for _, s := range ds {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Manager owns corpus-level add and delete, coordinating chunker output
// into every index store.
type Manager struct {
	chunker *Chunker
	stores  []Store
	lister  DocumentLister
	logger  log.Logger
}

// NewManager creates a Manager. The lister is the authoritative document
// catalog, normally the semantic store.
func NewManager(chunker *Chunker, stores []Store, lister DocumentLister, logger log.Logger) *Manager {
	return &Manager{
		chunker: chunker,
		stores:  stores,
		lister:  lister,
		logger:  logger.With("component", "doc_manager"),
	}
}

// GenerateDocumentID derives a document id from the file name stem plus a
// random suffix, so repeated uploads of the same name stay distinguishable.
func GenerateDocumentID(fileName string) string {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return fmt.Sprintf("%s_%s", stem, uuid.NewString()[:8])
}

// Add chunks the file at path and inserts the nodes into every store,
// then persists the stores. Re-uploading a file identical in name and
// size to a tracked document returns the existing document id without
// touching the indices.
//
// A failing store insert surfaces immediately; stores that already
// accepted the nodes are left as-is. This inconsistency window is
// accepted: Delete by the returned (or logged) id is the recovery path.
func (m *Manager) Add(ctx context.Context, path, fileName string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	// A failing lister must not bypass the duplicate check, or a retried
	// upload would create a second document.
	existing, err := m.findExisting(ctx, fileName, info.Size())
	if err != nil {
		return "", fmt.Errorf("checking tracked documents: %w", err)
	}
	if existing != "" {
		m.logger.Info("document already tracked", "file_name", fileName, "doc_id", existing)
		return existing, nil
	}

	docID := GenerateDocumentID(fileName)
	m.logger.Info("adding document", "file_name", fileName, "doc_id", docID)

	nodes, err := m.chunker.Process(path, docID)
	if err != nil {
		return "", err
	}
	for i := range nodes {
		nodes[i].Metadata["file_size"] = fmt.Sprintf("%d", info.Size())
	}

	for _, store := range m.stores {
		if err := store.Insert(ctx, nodes); err != nil {
			return "", fmt.Errorf("inserting into %s store: %w", store.Name(), err)
		}
	}
	for _, store := range m.stores {
		if err := store.Persist(ctx); err != nil {
			return "", fmt.Errorf("persisting %s store: %w", store.Name(), err)
		}
	}

	m.logger.Info("document added", "doc_id", docID, "nodes", len(nodes))
	return docID, nil
}

// findExisting returns the doc id of a tracked document matching the
// (name, size) pair, or "" when none matches.
func (m *Manager) findExisting(ctx context.Context, fileName string, size int64) (string, error) {
	docs, err := m.lister.ListDocuments(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range docs {
		if d.FileName == fileName && d.FileSize == size {
			return d.DocID, nil
		}
	}
	return "", nil
}

// Delete removes the document's nodes from every store and reports the
// per-store outcome. Stores after a failing one are still attempted, and
// surviving stores are persisted.
func (m *Manager) Delete(ctx context.Context, docID string) DeleteStatus {
	status := make(DeleteStatus, 0, len(m.stores))
	for _, store := range m.stores {
		err := store.DeleteByDocument(ctx, docID)
		if err != nil {
			m.logger.Error("store delete failed", "store", store.Name(), "doc_id", docID, "error", err)
		} else if err = store.Persist(ctx); err != nil {
			m.logger.Error("store persist after delete failed", "store", store.Name(), "doc_id", docID, "error", err)
		}
		status = append(status, StoreStatus{Store: store.Name(), Err: err})
	}
	return status
}

// List enumerates tracked documents.
func (m *Manager) List(ctx context.Context) ([]DocumentInfo, error) {
	return m.lister.ListDocuments(ctx)
}
