package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragchat/internal/config"
)

func writeOfflineConfig(t *testing.T, store string) string {
	t.Helper()
	dir := t.TempDir()
	books := filepath.Join(dir, "books")
	require.NoError(t, os.MkdirAll(books, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(books, "pets.txt"), []byte("The cat sat on the mat. The dog ran in the park."), 0o644))

	yml := fmt.Sprintf(`paths:
  source_dir: %q
  db_dir: %q
embedder:
  type: tfidf
llm:
  type: extractive
vector_store:
  type: %s
log:
  level: error
`, books, filepath.Join(dir, "db"), store)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cfgPath, rebuild, uiMode = "", false, ""
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(input), &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChat_Console(t *testing.T) {
	path := writeOfflineConfig(t, "chromem")

	out, err := execute(t, "What did the cat do?\nEXIT\n", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Creating vector store chroma_db_with_metadata")
	assert.Contains(t, out, "Start chatting with the AI! Type 'exit' to end the conversation.")
	assert.Contains(t, out, "AI: The cat sat on the mat.")

	out, err = execute(t, "exit\n", "chat", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Vector store chroma_db_with_metadata already exists. No need to initialize.")
}

func TestIndexAndSearch(t *testing.T) {
	path := writeOfflineConfig(t, "chromem")

	out, err := execute(t, "", "index", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Finished creating vector store chroma_db_with_metadata")

	out, err = execute(t, "", "search", "--config", path, "dog", "park")
	require.NoError(t, err)
	assert.Contains(t, out, "Relevant Documents for chroma_db_with_metadata")
	assert.Contains(t, out, "Document 1:\nThe cat sat on the mat. The dog ran in the park.")
}

func TestRebuildFlag(t *testing.T) {
	path := writeOfflineConfig(t, "chromem")
	_, err := execute(t, "", "index", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "", "index", "--rebuild", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Creating vector store chroma_db_with_metadata")
}

func TestUIFlagIsShared(t *testing.T) {
	path := writeOfflineConfig(t, "chromem")

	for _, args := range [][]string{
		{"--ui", "console", "--config", path},
		{"chat", "--ui", "console", "--config", path},
		{"--ui", "console", "chat", "--config", path},
	} {
		out, err := execute(t, "What did the cat do?\nexit\n", args...)
		require.NoError(t, err, args)
		assert.Contains(t, out, "AI: The cat sat on the mat.", args)
	}

	_, err := execute(t, "exit\n", "chat", "--ui", "gui", "--config", path)
	assert.ErrorContains(t, err, "unknown chat ui: gui")

	root := newRootCmd(strings.NewReader(""), &bytes.Buffer{})
	assert.NotNil(t, root.PersistentFlags().Lookup("ui"))
}

func TestChat_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  type: pinecone\n"), 0o644))

	_, err := execute(t, "exit\n", "--config", path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAssemble_UnknownTypes(t *testing.T) {
	base := func() *config.AppConfig {
		cfg := config.Default()
		cfg.Paths.DBDir = t.TempDir()
		cfg.Embedder.Type = "tfidf"
		cfg.LLM.Type = "extractive"
		cfg.VectorStore.Type = "memory"
		return cfg
	}

	svc, closer, err := assemble(base(), nil, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, svc)
	closer()

	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
	}{
		{"embedder", func(c *config.AppConfig) { c.Embedder.Type = "word2vec" }},
		{"llm", func(c *config.AppConfig) { c.LLM.Type = "llama" }},
		{"vector store", func(c *config.AppConfig) { c.VectorStore.Type = "pinecone" }},
		{"chunker", func(c *config.AppConfig) { c.Chunker.Overlap = c.Chunker.Size }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			_, _, err := assemble(cfg, nil, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestAssemble_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("RAGCHAT_MISSING_KEY", "")
	cfg := config.Default()
	cfg.Paths.DBDir = t.TempDir()
	cfg.Embedder.OpenAI.APIKeyEnv = "RAGCHAT_MISSING_KEY"

	_, _, err := assemble(cfg, nil, zap.NewNop())
	assert.ErrorContains(t, err, "RAGCHAT_MISSING_KEY")
}
