package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SearchSimilarity               = "similarity"
	SearchSimilarityScoreThreshold = "similarity_score_threshold"
)

// PathsConfig locates the source corpus and the vector store persistence.
type PathsConfig struct {
	SourceDir string `yaml:"source_dir"`
	DBDir     string `yaml:"db_dir"`
	StoreName string `yaml:"store_name"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// OpenAIConfig holds settings shared by the OpenAI-compatible embedder and chat model.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	BatchSize   int     `yaml:"batch_size,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// LLMConfig selects and configures the answer generator.
type LLMConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string        `yaml:"type"`
	Compress bool          `yaml:"compress"`
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// RetrievalConfig controls how many passages are fetched per question.
type RetrievalConfig struct {
	SearchType     string   `yaml:"search_type"`
	K              int      `yaml:"k"`
	ScoreThreshold *float64 `yaml:"score_threshold,omitempty"`
}

// ChatConfig configures the interactive front end.
type ChatConfig struct {
	UI              string `yaml:"ui"`
	TurnTimeoutSecs int    `yaml:"turn_timeout_secs"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Paths       PathsConfig       `yaml:"paths"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Chat        ChatConfig        `yaml:"chat"`
	Log         LogConfig         `yaml:"log"`
}

// StorePath is the persistence location of the configured store.
func (c *AppConfig) StorePath() string {
	return filepath.Join(c.Paths.DBDir, c.Paths.StoreName)
}

// TurnTimeout is the upper bound for one question/answer round.
func (c *AppConfig) TurnTimeout() time.Duration {
	return time.Duration(c.Chat.TurnTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first unusable setting.
func (c *AppConfig) Validate() error {
	if c.Paths.SourceDir == "" || c.Paths.DBDir == "" || c.Paths.StoreName == "" {
		return fmt.Errorf("%w: paths.source_dir, paths.db_dir and paths.store_name are required", ErrInvalidConfig)
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("%w: chunker.size must be positive, got %d", ErrInvalidConfig, c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("%w: chunker.overlap must be in [0, %d), got %d", ErrInvalidConfig, c.Chunker.Size, c.Chunker.Overlap)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("%w: unknown embedder %q", ErrInvalidConfig, c.Embedder.Type)
	}
	switch c.LLM.Type {
	case "openai", "extractive":
	default:
		return fmt.Errorf("%w: unknown llm %q", ErrInvalidConfig, c.LLM.Type)
	}
	switch c.VectorStore.Type {
	case "chromem", "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("%w: vector_store.qdrant.host is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown vector store %q", ErrInvalidConfig, c.VectorStore.Type)
	}
	switch c.Retrieval.SearchType {
	case SearchSimilarity:
	case SearchSimilarityScoreThreshold:
		if c.Retrieval.ScoreThreshold == nil {
			return fmt.Errorf("%w: retrieval.score_threshold is required for %s", ErrInvalidConfig, SearchSimilarityScoreThreshold)
		}
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidConfig, c.Retrieval.SearchType)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive, got %d", ErrInvalidConfig, c.Retrieval.K)
	}
	switch c.Chat.UI {
	case "console", "tui":
	default:
		return fmt.Errorf("%w: unknown chat ui %q", ErrInvalidConfig, c.Chat.UI)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the stock configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Paths: PathsConfig{
			SourceDir: filepath.Join("assets", "books"),
			DBDir:     "db",
			StoreName: "chroma_db_with_metadata",
		},
		Chunker:     ChunkerConfig{Size: 1000, Overlap: 200},
		Embedder:    EmbedderConfig{Type: "openai", OpenAI: &OpenAIConfig{}},
		LLM:         LLMConfig{Type: "openai", OpenAI: &OpenAIConfig{}},
		VectorStore: VectorStoreConfig{Type: "chromem"},
		Retrieval:   RetrievalConfig{SearchType: SearchSimilarity, K: 3},
		Chat:        ChatConfig{UI: "console", TurnTimeoutSecs: 120},
		Log:         LogConfig{Level: "warn", Format: "console"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Paths.SourceDir == "" {
		cfg.Paths.SourceDir = filepath.Join("assets", "books")
	}
	if cfg.Paths.DBDir == "" {
		cfg.Paths.DBDir = "db"
	}
	if cfg.Paths.StoreName == "" {
		cfg.Paths.StoreName = "chroma_db_with_metadata"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 200
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "openai"
	}
	if cfg.LLM.Type == "openai" {
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.LLM.OpenAI, "gpt-4o")
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
	}
	if cfg.Retrieval.SearchType == "" {
		cfg.Retrieval.SearchType = SearchSimilarity
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Chat.UI == "" {
		cfg.Chat.UI = "console"
	}
	if cfg.Chat.TurnTimeoutSecs == 0 {
		cfg.Chat.TurnTimeoutSecs = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
}
