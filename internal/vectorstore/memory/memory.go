package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is a process-local vector store using brute-force cosine similarity.
// Stores live until Delete or process exit.
type Storage struct {
	mu     sync.RWMutex
	stores map[string]*store
}

type store struct {
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{stores: make(map[string]*store)} }

func (s *Storage) Exists(ctx context.Context, storeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stores[storeID]
	return ok, nil
}

func (s *Storage) Create(ctx context.Context, storeID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return errors.New("invalid dimension")
	}
	dimension := len(vectors[0])
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return errors.New("vector dimension mismatch")
		}
		normalized[i] = normalize(v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[storeID]; ok {
		return fmt.Errorf("store %s already exists", storeID)
	}
	s.stores[storeID] = &store{
		dimension: dimension,
		vectors:   normalized,
		chunks:    append([]domain.Chunk(nil), chunks...),
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, storeID string, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[storeID]
	if !ok {
		return nil, vectorstore.ErrStoreNotFound
	}
	if len(vector) != st.dimension {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vector), st.dimension)
	}
	if topK <= 0 {
		topK = 5
	}
	q := normalize(vector)
	scores := make([]float64, len(st.vectors))
	for i := range st.vectors {
		scores[i] = dot(st.vectors[i], q)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: st.chunks[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Delete(ctx context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, storeID)
	return nil
}

func normalize(v []float32) []float32 {
	norm := 0.0
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// argsortDesc orders indexes by decreasing score; ties keep insertion order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}

var _ vectorstore.Storage = (*Storage)(nil)
