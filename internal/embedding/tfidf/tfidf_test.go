package tfidf

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestEmbed_RequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().EmbedQuery(context.Background(), "cat")
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	assert.Error(t, NewEmbedder().Prepare(nil))
	assert.Error(t, NewEmbedder().Prepare([]string{"the and of"}))
}

func TestEmbed_NormalizedAndRanksOverlap(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{"The cat sat on the mat.", "The dog ran in the park."}
	require.NoError(t, e.Prepare(corpus))

	docs, err := e.EmbedDocuments(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, v := range docs {
		assert.Len(t, v, e.Dimension())
		assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-5)
	}

	q, err := e.EmbedQuery(context.Background(), "What did the cat do?")
	require.NoError(t, err)
	assert.Greater(t, dot(q, docs[0]), dot(q, docs[1]))
}

func TestEmbed_UnknownWordsGiveZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))

	v, err := e.EmbedQuery(context.Background(), "gamma")
	require.NoError(t, err)
	assert.Equal(t, 0.0, dot(v, v))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.tfidf.yaml")
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"Rex is a dog.", "Tom is a cat."}))
	require.NoError(t, e.Save(path))

	restored := NewEmbedder()
	require.NoError(t, restored.Load(path))
	assert.Equal(t, e.Dimension(), restored.Dimension())

	want, err := e.EmbedQuery(context.Background(), "dog Rex")
	require.NoError(t, err)
	got, err := restored.EmbedQuery(context.Background(), "dog Rex")
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestSave_Unprepared(t *testing.T) {
	assert.ErrorIs(t, NewEmbedder().Save(filepath.Join(t.TempDir(), "v.yaml")), ErrNotPrepared)
}
