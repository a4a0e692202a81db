package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplit(t *testing.T) {
	t.Run("empty text yields no chunks", func(t *testing.T) {
		c := NewChunker(500, 0)
		assert.Empty(t, c.Split(""))
		assert.Empty(t, c.Split("   \n\t  "))
	})

	t.Run("short text is a single chunk", func(t *testing.T) {
		c := NewChunker(500, 0)
		chunks := c.Split("The capital of France is Paris.")
		require.Len(t, chunks, 1)
		assert.Equal(t, "The capital of France is Paris.", chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Position)
	})

	t.Run("no chunk exceeds the size bound", func(t *testing.T) {
		c := NewChunker(50, 0)
		text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 30)
		chunks := c.Split(text)
		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), 50)
			assert.NotEmpty(t, chunk.Text)
		}
	})

	t.Run("order and positions follow the document", func(t *testing.T) {
		c := NewChunker(20, 0)
		chunks := c.Split("alpha beta gamma delta epsilon zeta eta theta")
		require.True(t, len(chunks) > 1)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Position)
		}
		joined := ""
		for _, chunk := range chunks {
			joined += chunk.Text + " "
		}
		assert.Equal(t, "alpha beta gamma delta epsilon zeta eta theta", strings.TrimSpace(joined))
	})

	t.Run("oversized word becomes its own chunk", func(t *testing.T) {
		c := NewChunker(10, 0)
		long := strings.Repeat("x", 25)
		chunks := c.Split("tiny " + long + " word")
		require.Len(t, chunks, 3)
		assert.Equal(t, "tiny", chunks[0].Text)
		assert.Equal(t, long, chunks[1].Text)
		assert.Equal(t, "word", chunks[2].Text)
	})

	t.Run("overlap repeats trailing words", func(t *testing.T) {
		c := NewChunker(22, 10)
		chunks := c.Split("one two three four five six seven")
		require.True(t, len(chunks) > 1)
		for i := 1; i < len(chunks); i++ {
			prevLast := lastWord(chunks[i-1].Text)
			assert.Contains(t, chunks[i].Text, prevLast, "chunk %d should carry overlap from its predecessor", i)
		}
	})

	t.Run("defaults applied for invalid settings", func(t *testing.T) {
		c := NewChunker(0, -5)
		assert.Equal(t, defaultChunkSize, c.maxSize)
		assert.Equal(t, 0, c.overlap)
	})
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	return fields[len(fields)-1]
}
