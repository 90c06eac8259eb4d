package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	embopenai "ragchat/internal/embedding/openai"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/llm/extractive"
	llmopenai "ragchat/internal/llm/openai"
	"ragchat/internal/loader"
	"ragchat/internal/service"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/chromem"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

// assemble builds the service from cfg. The returned func releases
// backend connections.
func assemble(cfg *config.AppConfig, out io.Writer, logger *zap.Logger) (*service.RAGService, func(), error) {
	noop := func() {}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf":
		emb = tfidf.NewEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, noop, fmt.Errorf("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, noop, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var gen domain.Generator
	switch cfg.LLM.Type {
	case "extractive":
		gen = extractive.NewGenerator(logger)
	case "openai":
		if cfg.LLM.OpenAI == nil {
			return nil, noop, fmt.Errorf("openai llm config missing")
		}
		g, err := llmopenai.NewGenerator(llmopenai.Config{
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			APIKeyEnv:   cfg.LLM.OpenAI.APIKeyEnv,
			Model:       cfg.LLM.OpenAI.Model,
			Timeout:     time.Duration(cfg.LLM.OpenAI.TimeoutSecs) * time.Second,
			Temperature: cfg.LLM.OpenAI.Temperature,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("openai llm init failed: %w", err)
		}
		gen = g
	default:
		return nil, noop, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}

	ch, err := chunker.NewCharacterChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, noop, err
	}

	closer := noop
	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "chromem":
		s, err := chromem.NewStorage(chromem.Config{DBDir: cfg.Paths.DBDir, Compress: cfg.VectorStore.Compress}, logger)
		if err != nil {
			return nil, noop, err
		}
		st = s
	case "memory":
		st = memory.NewStorage()
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, noop, fmt.Errorf("qdrant config missing")
		}
		s, err := qdrant.NewStorage(qdrant.Config{
			Host:   q.Host,
			Port:   q.Port,
			APIKey: os.Getenv(q.APIKeyEnv),
			UseTLS: q.UseTLS,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		st = s
		closer = func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing qdrant connection", zap.Error(err))
			}
		}
	default:
		return nil, noop, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	svc, err := service.NewRAGService(cfg, service.Deps{
		Loader:    loader.NewTextLoader(logger),
		Chunker:   ch,
		Embedder:  emb,
		Storage:   st,
		Generator: gen,
		Out:       out,
		Logger:    logger,
	})
	if err != nil {
		closer()
		return nil, noop, err
	}
	return svc, closer, nil
}
