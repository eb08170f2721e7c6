package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/rag"
)

// keywordDoc is the shape bleve indexes for each node.
type keywordDoc struct {
	Text   string `json:"text"`
	Window string `json:"window"`
}

// KeywordStore ranks nodes by BM25 lexical overlap. The bleve index holds
// the searchable text; full nodes live in a JSON sidecar written by
// Persist so provenance survives restarts.
//
// KeywordStore is safe for concurrent use.
type KeywordStore struct {
	mu     sync.RWMutex
	idx    bleve.Index
	nodes  map[string]rag.Node // node id -> node
	dir    string
	logger log.Logger
}

// NewKeywordStore opens the store under dir, loading prior state when it
// exists. On first run or corruption it degrades to an empty store and
// persists that immediately, so index unavailability never blocks startup.
func NewKeywordStore(dir string, logger log.Logger) (*KeywordStore, error) {
	logger = logger.With("store", "keyword")
	s := &KeywordStore{
		nodes:  make(map[string]rag.Node),
		dir:    dir,
		logger: logger,
	}

	indexPath := filepath.Join(dir, "keyword.bleve")
	idx, err := bleve.Open(indexPath)
	if err == nil {
		s.idx = idx
		if loadErr := s.loadSidecar(); loadErr != nil {
			logger.Warn("sidecar load failed, rebuilding empty store", "error", loadErr)
			s.nodes = make(map[string]rag.Node)
		}
		return s, nil
	}

	logger.Info("creating keyword index", "path", indexPath, "reason", err)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist dir: %w", err)
	}
	// A leftover corrupt index blocks bleve.New; clear it first.
	if rmErr := os.RemoveAll(indexPath); rmErr != nil {
		return nil, fmt.Errorf("clearing stale keyword index: %w", rmErr)
	}
	idx, err = bleve.New(indexPath, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating keyword index: %w", err)
	}
	s.idx = idx
	if err := s.Persist(context.Background()); err != nil {
		return nil, fmt.Errorf("persisting empty keyword store: %w", err)
	}
	return s, nil
}

func (s *KeywordStore) sidecarPath() string {
	return filepath.Join(s.dir, "keyword_nodes.json")
}

func (s *KeywordStore) loadSidecar() error {
	raw, err := os.ReadFile(s.sidecarPath())
	if err != nil {
		return err
	}
	nodes := make(map[string]rag.Node)
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return fmt.Errorf("decoding sidecar: %w", err)
	}
	s.nodes = nodes
	return nil
}

// Name implements rag.Store.
func (s *KeywordStore) Name() string { return "keyword" }

// Insert implements rag.Store.
func (s *KeywordStore) Insert(_ context.Context, nodes []rag.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if err := s.idx.Index(n.ID, keywordDoc{Text: n.Text, Window: n.Window}); err != nil {
			return fmt.Errorf("indexing node %s: %w", n.ID, err)
		}
		s.nodes[n.ID] = n
	}
	s.logger.Debug("nodes indexed", "count", len(nodes))
	return nil
}

// DeleteByDocument implements rag.Store.
func (s *KeywordStore) DeleteByDocument(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, n := range s.nodes {
		if n.DocID != docID {
			continue
		}
		if err := s.idx.Delete(id); err != nil {
			return fmt.Errorf("deleting node %s: %w", id, err)
		}
		delete(s.nodes, id)
		removed++
	}
	s.logger.Debug("document deleted", "doc_id", docID, "nodes", removed)
	return nil
}

// Retrieve implements rag.Store.
func (s *KeywordStore) Retrieve(_ context.Context, query string, topK int) ([]rag.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topK, 0, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching keyword index: %w", err)
	}

	var nodes []rag.Node
	for _, hit := range res.Hits {
		if n, ok := s.nodes[hit.ID]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// ListDocuments implements rag.DocumentLister from the sidecar, for
// deployments running without the semantic index.
func (s *KeywordStore) ListDocuments(context.Context) ([]rag.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]rag.DocumentInfo)
	for _, n := range s.nodes {
		if _, ok := seen[n.DocID]; ok {
			continue
		}
		size, _ := strconv.ParseInt(n.Metadata["file_size"], 10, 64)
		seen[n.DocID] = rag.DocumentInfo{DocID: n.DocID, FileName: n.FileName, FileSize: size}
	}

	docs := make([]rag.DocumentInfo, 0, len(seen))
	for _, d := range seen {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs, nil
}

// Persist implements rag.Store. The bleve index writes through on its
// own; only the sidecar needs an explicit flush.
func (s *KeywordStore) Persist(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := json.Marshal(s.nodes)
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(), raw, 0o644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

// Close releases the bleve index.
func (s *KeywordStore) Close() error {
	return s.idx.Close()
}
