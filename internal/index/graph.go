package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/rag"
)

// maxTripletsPerNode bounds extraction output per chunk.
const maxTripletsPerNode = 5

const extractPrompt = `Extract up to %d knowledge triplets from the text below.
Each triplet captures a factual relationship as (subject, relation, object).
Output one triplet per line in exactly this format:
subject | relation | object

Output nothing else. Text:
%s`

// Triplet is one extracted (subject, relation, object) fact, tagged with
// the node it came from for provenance and deletion.
type Triplet struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
	NodeID   string `json:"node_id"`
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
}

func (t Triplet) String() string {
	return fmt.Sprintf("%s %s %s.", t.Subject, t.Relation, t.Object)
}

// GraphStore ranks nodes by entity proximity: it extracts triplets from
// inserted nodes with the LLM, matches query terms against triplet
// entities, and contributes structural signal only — result nodes carry
// the matched triplets in Window and no literal Text.
//
// State is a JSON snapshot under the persist dir. GraphStore is safe for
// concurrent use.
type GraphStore struct {
	mu       sync.RWMutex
	llm      provider.LLM
	triplets []Triplet
	dir      string
	logger   log.Logger
}

// NewGraphStore opens the store under dir, loading the prior snapshot
// when present and degrading to an empty persisted store otherwise.
func NewGraphStore(dir string, llm provider.LLM, logger log.Logger) (*GraphStore, error) {
	logger = logger.With("store", "graph")
	s := &GraphStore{llm: llm, dir: dir, logger: logger}

	raw, err := os.ReadFile(s.snapshotPath())
	if err == nil {
		jsonErr := json.Unmarshal(raw, &s.triplets)
		if jsonErr == nil {
			return s, nil
		}
		logger.Warn("snapshot corrupt, rebuilding empty store", "error", jsonErr)
		s.triplets = nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist dir: %w", err)
	}
	if err := s.Persist(context.Background()); err != nil {
		return nil, fmt.Errorf("persisting empty graph store: %w", err)
	}
	return s, nil
}

func (s *GraphStore) snapshotPath() string {
	return filepath.Join(s.dir, "graph_triplets.json")
}

// Name implements rag.Store.
func (s *GraphStore) Name() string { return "graph" }

// Insert implements rag.Store. Extraction is one LLM call per node;
// nodes that yield no parseable triplets contribute nothing.
func (s *GraphStore) Insert(ctx context.Context, nodes []rag.Node) error {
	var extracted []Triplet
	for _, n := range nodes {
		prompt := fmt.Sprintf(extractPrompt, maxTripletsPerNode, n.Text)
		reply, err := s.llm.Chat(ctx, []provider.Message{provider.UserMessage(prompt)}, nil)
		if err != nil {
			return fmt.Errorf("extracting triplets for node %s: %w", n.ID, err)
		}
		for _, t := range parseTriplets(reply.Message.Content) {
			t.NodeID = n.ID
			t.DocID = n.DocID
			t.FileName = n.FileName
			extracted = append(extracted, t)
		}
	}

	s.mu.Lock()
	s.triplets = append(s.triplets, extracted...)
	s.mu.Unlock()

	s.logger.Debug("triplets extracted", "nodes", len(nodes), "triplets", len(extracted))
	return nil
}

func parseTriplets(text string) []Triplet {
	var out []Triplet
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			continue
		}
		t := Triplet{
			Subject:  strings.TrimSpace(parts[0]),
			Relation: strings.TrimSpace(parts[1]),
			Object:   strings.TrimSpace(parts[2]),
		}
		if t.Subject == "" || t.Relation == "" || t.Object == "" {
			continue
		}
		out = append(out, t)
		if len(out) == maxTripletsPerNode {
			break
		}
	}
	return out
}

// DeleteByDocument implements rag.Store.
func (s *GraphStore) DeleteByDocument(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.triplets[:0]
	var removed int
	for _, t := range s.triplets {
		if t.DocID == docID {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.triplets = kept
	s.logger.Debug("document deleted", "doc_id", docID, "triplets", removed)
	return nil
}

// Retrieve implements rag.Store. Matched triplets are grouped by source
// node so fusion deduplicates against the other stores by node id.
func (s *GraphStore) Retrieve(_ context.Context, query string, topK int) ([]rag.Node, error) {
	queryTerms := graphTerms(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type match struct {
		node  rag.Node
		score int
		facts []string
	}
	byNode := make(map[string]*match)
	var order []string

	for _, t := range s.triplets {
		score := entityOverlap(queryTerms, t)
		if score == 0 {
			continue
		}
		m, ok := byNode[t.NodeID]
		if !ok {
			m = &match{node: rag.Node{
				ID:       t.NodeID,
				DocID:    t.DocID,
				FileName: t.FileName,
			}}
			byNode[t.NodeID] = m
			order = append(order, t.NodeID)
		}
		m.score += score
		m.facts = append(m.facts, t.String())
	}

	matches := make([]*match, 0, len(byNode))
	for _, id := range order {
		matches = append(matches, byNode[id])
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	nodes := make([]rag.Node, 0, len(matches))
	for _, m := range matches {
		n := m.node
		n.Window = strings.Join(m.facts, " ")
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func entityOverlap(queryTerms map[string]struct{}, t Triplet) int {
	var score int
	for term := range graphTerms(t.Subject) {
		if _, ok := queryTerms[term]; ok {
			score++
		}
	}
	for term := range graphTerms(t.Object) {
		if _, ok := queryTerms[term]; ok {
			score++
		}
	}
	return score
}

func graphTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) > 2 {
			terms[field] = struct{}{}
		}
	}
	return terms
}

// Persist implements rag.Store.
func (s *GraphStore) Persist(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := json.Marshal(s.triplets)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath(), raw, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
