package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/prompts"
	"ragchat/internal/vectorstore"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// DocumentLoader reads the source corpus.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// VocabularyStore is implemented by embedders whose state must outlive the
// process that built the store.
type VocabularyStore interface {
	Save(path string) error
	Load(path string) error
}

// Deps are the collaborators of a RAGService.
type Deps struct {
	Loader    DocumentLoader
	Chunker   domain.Chunker
	Embedder  domain.Embedder
	Storage   vectorstore.Storage
	Generator domain.Generator
	// Out receives user-facing progress lines. Nil discards them.
	Out    io.Writer
	Logger *zap.Logger
}

// RAGService ingests the corpus once and answers questions against it.
type RAGService struct {
	cfg       *config.AppConfig
	loader    DocumentLoader
	chunker   domain.Chunker
	embedder  domain.Embedder
	index     *vectorstore.Index
	retriever *Retriever
	generator domain.Generator
	logger    *zap.Logger
}

func NewRAGService(cfg *config.AppConfig, deps Deps) (*RAGService, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Loader == nil || deps.Chunker == nil || deps.Embedder == nil || deps.Storage == nil || deps.Generator == nil {
		return nil, errors.New("loader, chunker, embedder, storage and generator are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := vectorstore.QueryOptions{
		SearchType:     cfg.Retrieval.SearchType,
		K:              cfg.Retrieval.K,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	}
	// Chat turns retrieve silently; only ingest progress and explicit
	// searches reach Out.
	quiet := vectorstore.NewIndex(deps.Storage, deps.Embedder, io.Discard, logger)
	return &RAGService{
		cfg:       cfg,
		loader:    deps.Loader,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		index:     vectorstore.NewIndex(deps.Storage, deps.Embedder, deps.Out, logger),
		retriever: NewRetriever(deps.Generator, quiet, cfg.Paths.StoreName, opts, logger),
		generator: deps.Generator,
		logger:    logger,
	}, nil
}

// StoreID is the name of the vector store this service reads and builds.
func (s *RAGService) StoreID() string { return s.cfg.Paths.StoreName }

// VocabularyPath is where a corpus-dependent embedder keeps its state.
func (s *RAGService) VocabularyPath() string {
	return filepath.Join(s.cfg.Paths.DBDir, s.cfg.Paths.StoreName+".tfidf.yaml")
}

// Ingest builds the vector store from the source directory unless it already
// exists. With rebuild set the store is dropped and built again. It reports
// whether a build happened.
func (s *RAGService) Ingest(ctx context.Context, rebuild bool) (bool, error) {
	storeID := s.StoreID()
	exists, err := s.index.Exists(ctx, storeID)
	if err != nil {
		return false, fmt.Errorf("checking vector store %s: %w", storeID, err)
	}
	if exists && !rebuild {
		if err := s.restoreVocabulary(); err != nil {
			return false, err
		}
		return s.index.Build(ctx, storeID, nil)
	}

	chunks, err := s.loadChunks(ctx)
	if err != nil {
		return false, err
	}
	built := true
	if rebuild {
		err = s.index.Rebuild(ctx, storeID, chunks)
	} else {
		built, err = s.index.Build(ctx, storeID, chunks)
	}
	if err != nil {
		return false, err
	}
	if built {
		if v, ok := s.embedder.(VocabularyStore); ok {
			if err := v.Save(s.VocabularyPath()); err != nil {
				return true, fmt.Errorf("saving vocabulary: %w", err)
			}
		}
	}
	return built, nil
}

// Ask answers input in the light of history. Retrieval problems leave the
// model with an empty context; generation errors are returned.
func (s *RAGService) Ask(ctx context.Context, input string, history []domain.ChatTurn) (domain.Answer, error) {
	if strings.TrimSpace(input) == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	standalone, retrieval, err := s.retriever.Retrieve(ctx, input, history)
	if err != nil {
		return domain.Answer{}, err
	}
	if !retrieval.OK() {
		s.logger.Warn("answering without context", zap.Error(retrieval.Err))
	}

	system, err := prompts.QA(joinPassages(retrieval.Results))
	if err != nil {
		return domain.Answer{}, err
	}
	text, err := s.generator.Generate(ctx, transcript(system, history, input))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generating answer: %w", err)
	}
	s.logger.Debug("question answered",
		zap.String("standalone", standalone),
		zap.Int("passages", len(retrieval.Results)),
	)
	return domain.Answer{Text: text, StandaloneQuery: standalone, Context: retrieval.Results}, nil
}

// Search runs a single similarity query and prints the retrieved passages.
func (s *RAGService) Search(ctx context.Context, query string) vectorstore.Retrieval {
	if exists, _ := s.index.Exists(ctx, s.StoreID()); exists {
		if err := s.restoreVocabulary(); err != nil {
			return vectorstore.Retrieval{Err: err}
		}
	}
	return s.index.Query(ctx, s.StoreID(), query, s.retriever.opts)
}

func (s *RAGService) loadChunks(ctx context.Context) ([]domain.Chunk, error) {
	docs, err := s.loader.Load(ctx, s.cfg.Paths.SourceDir)
	if err != nil {
		return nil, err
	}
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("chunking %s: %w", d.Path, err)
		}
		chunks = append(chunks, cs...)
	}
	s.logger.Info("corpus chunked", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// restoreVocabulary reloads embedder state saved by the build that created
// the store. Embedders without such state are left alone.
func (s *RAGService) restoreVocabulary() error {
	v, ok := s.embedder.(VocabularyStore)
	if !ok {
		return nil
	}
	if err := v.Load(s.VocabularyPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("vector store %s has no saved vocabulary at %s; rebuild it with --rebuild", s.StoreID(), s.VocabularyPath())
		}
		return fmt.Errorf("loading vocabulary: %w", err)
	}
	return nil
}

func joinPassages(results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}
