package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, "chroma_db_with_metadata", cfg.Paths.StoreName)
	assert.Equal(t, filepath.Join("db", "chroma_db_with_metadata"), cfg.StorePath())
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)
	assert.Equal(t, SearchSimilarity, cfg.Retrieval.SearchType)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
paths:
  source_dir: books
embedder:
  type: tfidf
llm:
  type: extractive
vector_store:
  type: memory
retrieval:
  search_type: similarity_score_threshold
  k: 5
  score_threshold: 0.4
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "books", cfg.Paths.SourceDir)
	assert.Equal(t, "db", cfg.Paths.DBDir)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Nil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, 5, cfg.Retrieval.K)
	require.NotNil(t, cfg.Retrieval.ScoreThreshold)
	assert.InDelta(t, 0.4, *cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 1000, cfg.Chunker.Size)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"overlap equals size", func(c *AppConfig) { c.Chunker.Overlap = c.Chunker.Size }},
		{"negative overlap", func(c *AppConfig) { c.Chunker.Overlap = -1 }},
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "word2vec" }},
		{"unknown llm", func(c *AppConfig) { c.LLM.Type = "davinci" }},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "faiss" }},
		{"qdrant without host", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }},
		{"threshold search without threshold", func(c *AppConfig) { c.Retrieval.SearchType = SearchSimilarityScoreThreshold }},
		{"mmr search", func(c *AppConfig) { c.Retrieval.SearchType = "mmr" }},
		{"zero k", func(c *AppConfig) { c.Retrieval.K = 0 }},
		{"unknown ui", func(c *AppConfig) { c.Chat.UI = "web" }},
		{"empty store name", func(c *AppConfig) { c.Paths.StoreName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Paths.StoreName = "library"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
