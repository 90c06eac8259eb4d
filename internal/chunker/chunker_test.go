package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func sampleText(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		sb.WriteString("Line ")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(" of the book. ")
	}
	return sb.String()[:n]
}

func TestNewCharacterChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap above size", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCharacterChunker(tt.size, tt.overlap)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestChunk_BoundaryAndReconstruction(t *testing.T) {
	c, err := NewCharacterChunker(1000, 200)
	require.NoError(t, err)

	for _, n := range []int{1, 999, 1000, 1001, 1800, 1801, 4321} {
		text := sampleText(n)
		doc := domain.Document{ID: "doc", Path: "books/sample.txt", Content: text}

		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		require.NotEmpty(t, chunks, "n=%d", n)

		var rebuilt strings.Builder
		for i, ch := range chunks {
			assert.LessOrEqual(t, len([]rune(ch.Text)), 1000)
			assert.Equal(t, i, ch.Index)
			assert.Equal(t, "books/sample.txt", ch.Source)
			assert.Equal(t, "books/sample.txt", ch.Metadata["source"])
			if i == 0 {
				rebuilt.WriteString(ch.Text)
				continue
			}
			prev := []rune(chunks[i-1].Text)
			cur := []rune(ch.Text)
			require.Greater(t, len(cur), 200, "n=%d chunk=%d adds nothing new", n, i)
			assert.Equal(t, string(prev[len(prev)-200:]), string(cur[:200]), "n=%d chunk=%d", n, i)
			rebuilt.WriteString(string(cur[200:]))
		}
		assert.Equal(t, text, rebuilt.String(), "n=%d", n)
	}
}

func TestChunk_ShortAndEmptyDocuments(t *testing.T) {
	c, err := NewCharacterChunker(1000, 200)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{ID: "d", Content: "Chapter 1: The cat sat. Chapter 2: The dog ran."})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "d:0", chunks[0].ChunkID)

	chunks, err = c.Chunk(domain.Document{ID: "d"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := NewCharacterChunker(50, 10)
	require.NoError(t, err)
	doc := domain.Document{ID: "d", Content: sampleText(500)}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunk_CountsRunesNotBytes(t *testing.T) {
	c, err := NewCharacterChunker(4, 1)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{ID: "d", Content: "ÄÖÜßéèà"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "ÄÖÜß", chunks[0].Text)
	assert.Equal(t, "ßéèà", chunks[1].Text)
}

func TestSplit_StopsEarly(t *testing.T) {
	c, err := NewCharacterChunker(10, 2)
	require.NoError(t, err)

	var seen int
	for range c.Split(domain.Document{ID: "d", Content: sampleText(200)}) {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}
