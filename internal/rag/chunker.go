package rag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// sentencePattern matches one sentence up to and including its terminal
// punctuation. Text without terminal punctuation falls back to a single
// sentence.
var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Chunker splits documents into sentence nodes, each carrying a window of
// neighboring sentences so retrieval can match a short passage while
// synthesis reads the surrounding context.
type Chunker struct {
	windowSize int // sentences kept either side of the node's own sentence
}

// NewChunker creates a Chunker. windowSize values below 1 fall back to 3.
func NewChunker(windowSize int) *Chunker {
	if windowSize < 1 {
		windowSize = 3
	}
	return &Chunker{windowSize: windowSize}
}

// Process reads the file at path and splits it into nodes stamped with
// docID and the source file name. It returns ErrNotFound when the path
// does not exist and ErrParse when the file yields no text.
func (c *Chunker) Process(path, docID string) ([]Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	sentences := splitSentences(string(raw))
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrParse, path)
	}

	fileName := filepath.Base(path)
	nodes := make([]Node, 0, len(sentences))
	for i, sentence := range sentences {
		lo := max(0, i-c.windowSize)
		hi := min(len(sentences), i+c.windowSize+1)

		nodes = append(nodes, Node{
			ID:       uuid.NewString(),
			DocID:    docID,
			FileName: fileName,
			Text:     sentence,
			Window:   strings.Join(sentences[lo:hi], " "),
			Metadata: map[string]string{
				"doc_id":    docID,
				"file_name": fileName,
			},
		})
	}
	return nodes, nil
}

func splitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
