package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"ragchat/internal/domain"
)

// Generator answers chat transcripts with an OpenAI-compatible chat model.
type Generator struct {
	llm         llms.Model
	model       string
	temperature float64
}

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// Temperature is sent only when positive; zero keeps the provider default.
	Temperature float64
}

// NewGenerator creates a chat generator using the provided configuration.
func NewGenerator(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
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
	return &Generator{llm: llm, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "openai:" + g.model }

// Generate sends the transcript as one chat completion and returns the first choice.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role, err := chatRole(m.Role)
		if err != nil {
			return "", err
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	var opts []llms.CallOption
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}
	resp, err := g.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func chatRole(r domain.Role) (schema.ChatMessageType, error) {
	switch r {
	case domain.RoleSystem:
		return schema.ChatMessageTypeSystem, nil
	case domain.RoleUser:
		return schema.ChatMessageTypeHuman, nil
	case domain.RoleAssistant:
		return schema.ChatMessageTypeAI, nil
	default:
		return "", fmt.Errorf("unknown message role %q", r)
	}
}

var _ domain.Generator = (*Generator)(nil)
