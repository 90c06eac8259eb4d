package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"ragchat/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	llm, err := lcopenai.New(
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithToken(key),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: t}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	opts := []embeddings.Option{}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Client{embedder: embedder, model: cfg.Model}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// EmbedDocuments returns one vector per text, in input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("openai embeddings returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery returns an embedding vector for the given text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	return v, nil
}

var _ domain.Embedder = (*Client)(nil)
