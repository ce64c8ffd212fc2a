// Package document loads quarterly reports and call transcripts from disk and
// splits them into overlapping text chunks.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"forecast_agent/pkg/core/logger"
)

// Chunk is one piece of a loaded document.
type Chunk struct {
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"` // 1-based for PDFs, 0 otherwise
	Index  int    `json:"index"`          // position within Source
	Text   string `json:"text"`
}

// Loader reads text, HTML and PDF files.
type Loader struct {
	splitter *Splitter
	maxBytes int64
}

// NewLoader returns a loader that splits with the given chunk size and overlap.
// Files larger than maxBytes are skipped; zero means no limit.
func NewLoader(chunkSize, overlap int, maxBytes int64) *Loader {
	return &Loader{
		splitter: NewSplitter(chunkSize, overlap),
		maxBytes: maxBytes,
	}
}

// LoadPath loads a single file, or, for a directory, the files of the first
// extension in exts that yields any chunks.
func (l *Loader) LoadPath(path string, exts ...string) ([]Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}

	for _, ext := range exts {
		chunks, err := l.LoadDirectory(path, ext)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			return chunks, nil
		}
		logger.Log.Debugf("no %s documents in %s", ext, path)
	}
	return nil, nil
}

// LoadDirectory loads every file with extension ext directly inside dir, in
// name order. Files that fail to load are logged and skipped.
func (l *Loader) LoadDirectory(dir, ext string) ([]Chunk, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(matches)

	var all []Chunk
	for _, path := range matches {
		chunks, err := l.LoadFile(path)
		if err != nil {
			logger.Log.WithField("file", path).Warnf("skipping document: %v", err)
			continue
		}
		all = append(all, chunks...)
	}
	logger.Log.Infof("loaded %d total chunks from %s", len(all), dir)
	return all, nil
}

// LoadFile dispatches on the file extension.
func (l *Loader) LoadFile(path string) ([]Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), l.maxBytes)
	}

	var chunks []Chunk
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := readPDF(path)
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			chunks = append(chunks, l.split(path, page.Number, page.Text, len(chunks))...)
		}
	case ".html", ".htm":
		text, err := readHTML(path)
		if err != nil {
			return nil, err
		}
		chunks = l.split(path, 0, text, 0)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		chunks = l.split(path, 0, string(data), 0)
	}

	logger.Log.Debugf("loaded %s (%d chunks)", path, len(chunks))
	return chunks, nil
}

func (l *Loader) split(source string, page int, text string, offset int) []Chunk {
	pieces := l.splitter.Split(text)
	out := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		out = append(out, Chunk{Source: source, Page: page, Index: offset + i, Text: p})
	}
	return out
}

// Texts returns the chunk bodies in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
