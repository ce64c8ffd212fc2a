package document

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most ChunkSize runes, preferring the
// coarsest separator that fits, and carries up to Overlap runes of context
// from one chunk into the next.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewSplitter returns a recursive splitter with the default separators.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in order. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range strings.Split(text, separator) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge joins small pieces back into chunks, keeping an overlapping tail.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs, current []string
	total := 0

	for _, p := range pieces {
		l := runeLen(p)
		joinCost := 0
		if len(current) > 0 {
			joinCost = sepLen
		}
		if total+l+joinCost > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.Overlap || (total+l+joinCost > s.ChunkSize && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
				if len(current) == 0 {
					joinCost = 0
				}
			}
		}
		current = append(current, p)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
