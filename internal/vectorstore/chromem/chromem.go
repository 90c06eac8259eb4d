// Package chromem persists vector stores on disk with chromem-go.
//
// Each store ID maps to its own directory under the configured DB directory.
// The directory's existence is what marks a store as built.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	cg "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

var errPrecomputed = errors.New("chromem store only accepts precomputed embeddings")

// Config holds configuration for the chromem-go backed store.
type Config struct {
	// DBDir is the parent directory of every store directory.
	DBDir string
	// Compress enables gzip compression for stored data.
	Compress bool
}

// Storage implements vectorstore.Storage on top of chromem-go persistent DBs.
type Storage struct {
	config Config
	logger *zap.Logger

	mu  sync.Mutex
	dbs map[string]*cg.DB
}

func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	if cfg.DBDir == "" {
		return nil, errors.New("chromem: db dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.DBDir, err)
	}
	return &Storage{config: cfg, logger: logger, dbs: make(map[string]*cg.DB)}, nil
}

// Path is the persistence directory of storeID.
func (s *Storage) Path(storeID string) string {
	return filepath.Join(s.config.DBDir, storeID)
}

func (s *Storage) Exists(ctx context.Context, storeID string) (bool, error) {
	info, err := os.Stat(s.Path(storeID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *Storage) Create(ctx context.Context, storeID string, chunks []domain.Chunk, vectors [][]float32) (err error) {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	path := s.Path(storeID)
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("store directory %s already exists", path)
	}
	defer func() {
		// A half-written directory would pass Exists on the next run.
		if err != nil {
			s.forget(storeID)
			_ = os.RemoveAll(path)
		}
	}()

	db, err := s.open(storeID)
	if err != nil {
		return err
	}
	collection, err := db.CreateCollection(storeID, map[string]string{"chunks": strconv.Itoa(len(chunks))}, embeddingFunc)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", storeID, err)
	}

	docs := make([]cg.Document, 0, len(chunks))
	for i, ch := range chunks {
		// chromem normalizes a zero vector to NaN, which would then rank
		// ahead of real matches.
		if isZero(vectors[i]) {
			continue
		}
		docs = append(docs, cg.Document{
			ID:        ch.ChunkID,
			Content:   ch.Text,
			Metadata:  chunkMetadata(ch),
			Embedding: vectors[i],
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("adding documents: %w", err)
		}
	}

	s.logger.Info("created chromem store",
		zap.String("store", storeID),
		zap.String("path", path),
		zap.Int("documents", len(docs)),
		zap.Int("skipped_zero_vectors", len(chunks)-len(docs)),
		zap.Bool("compress", s.config.Compress),
	)
	return nil
}

func (s *Storage) Search(ctx context.Context, storeID string, vector []float32, topK int) ([]domain.SearchResult, error) {
	exists, err := s.Exists(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, vectorstore.ErrStoreNotFound
	}
	db, err := s.open(storeID)
	if err != nil {
		return nil, err
	}
	collection := db.GetCollection(storeID, embeddingFunc)
	if collection == nil {
		return nil, fmt.Errorf("%w: collection %s missing from %s", vectorstore.ErrStoreNotFound, storeID, s.Path(storeID))
	}

	// chromem requires nResults <= document count
	count := collection.Count()
	if count == 0 {
		return []domain.SearchResult{}, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > count {
		topK = count
	}

	res, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", storeID, err)
	}
	results := make([]domain.SearchResult, 0, len(res))
	for _, r := range res {
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: chunkFromResult(r), Score: score})
	}
	return results, nil
}

func (s *Storage) Delete(ctx context.Context, storeID string) error {
	s.forget(storeID)
	if err := os.RemoveAll(s.Path(storeID)); err != nil {
		return fmt.Errorf("removing %s: %w", s.Path(storeID), err)
	}
	return nil
}

// open returns the cached DB for storeID, loading it from disk on first use.
func (s *Storage) open(storeID string) (*cg.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[storeID]; ok {
		return db, nil
	}
	db, err := cg.NewPersistentDB(s.Path(storeID), s.config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB %s: %w", s.Path(storeID), err)
	}
	s.dbs[storeID] = db
	return db, nil
}

func (s *Storage) forget(storeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dbs, storeID)
}

// embeddingFunc is handed to chromem so it never falls back to its default
// OpenAI embedder; every document and query arrives with its vector.
func embeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, errPrecomputed
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func chunkMetadata(ch domain.Chunk) map[string]string {
	md := make(map[string]string, len(ch.Metadata)+4)
	for k, v := range ch.Metadata {
		md[k] = v
	}
	md["source"] = ch.Source
	md["document_id"] = ch.DocumentID
	md["chunk_id"] = ch.ChunkID
	md["index"] = strconv.Itoa(ch.Index)
	return md
}

func chunkFromResult(r cg.Result) domain.Chunk {
	ch := domain.Chunk{
		ChunkID:    r.ID,
		Text:       r.Content,
		Source:     r.Metadata["source"],
		DocumentID: r.Metadata["document_id"],
		Metadata:   make(map[string]string, len(r.Metadata)),
	}
	if idx, err := strconv.Atoi(r.Metadata["index"]); err == nil {
		ch.Index = idx
	}
	for k, v := range r.Metadata {
		switch k {
		case "document_id", "chunk_id", "index":
		default:
			ch.Metadata[k] = v
		}
	}
	return ch
}

var _ vectorstore.Storage = (*Storage)(nil)
