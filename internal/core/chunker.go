package core

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize = 500 // Target maximum chunk length in runes
	defaultOverlap   = 0
)

// Chunk is a bounded passage of a document's text, ordered by Position.
type Chunk struct {
	Position int
	Text     string
}

// Chunker splits extracted text into bounded, optionally overlapping
// passages. Splitting is greedy on word boundaries: a chunk never exceeds the
// configured size unless a single word is itself larger than the bound, in
// which case that word becomes its own chunk.
type Chunker struct {
	maxSize int
	overlap int
}

func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split returns the chunks of text in document order. Empty input yields no
// chunks, and no returned chunk is empty.
func (c *Chunker) Split(text string) []Chunk {
	var chunks []Chunk
	var cur []string
	curLen := 0
	fresh := 0 // words in cur that did not come from overlap carry

	emit := func() {
		chunks = append(chunks, Chunk{Position: len(chunks), Text: strings.Join(cur, " ")})
	}

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)

		if wordLen >= c.maxSize {
			// Unsplittable unit larger than the bound: keep it whole.
			if fresh > 0 {
				emit()
			}
			cur, curLen, fresh = nil, 0, 0
			chunks = append(chunks, Chunk{Position: len(chunks), Text: word})
			continue
		}

		need := wordLen
		if curLen > 0 {
			need++ // joining space
		}
		if curLen+need > c.maxSize {
			if fresh > 0 {
				emit()
			}
			cur = c.carryTail(cur)
			curLen = joinedLen(cur)
			fresh = 0
			if curLen > 0 && curLen+1+wordLen > c.maxSize {
				cur, curLen = nil, 0
			}
		}

		if curLen > 0 {
			curLen++
		}
		cur = append(cur, word)
		curLen += wordLen
		fresh++
	}

	if fresh > 0 {
		emit()
	}
	return chunks
}

// carryTail returns the trailing words of a chunk whose joined length fits
// within the configured overlap.
func (c *Chunker) carryTail(words []string) []string {
	if c.overlap <= 0 || len(words) == 0 {
		return nil
	}
	total := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		wordLen := utf8.RuneCountInString(words[i])
		if total > 0 {
			wordLen++
		}
		if total+wordLen > c.overlap {
			break
		}
		total += wordLen
		start = i
	}
	if start == len(words) {
		return nil
	}
	return append([]string(nil), words[start:]...)
}

func joinedLen(words []string) int {
	total := 0
	for i, w := range words {
		if i > 0 {
			total++
		}
		total += utf8.RuneCountInString(w)
	}
	return total
}
