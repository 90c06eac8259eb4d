package vectorstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/config"
	"ragchat/internal/domain"
)

// QueryOptions mirrors the retrieval section of the configuration.
type QueryOptions struct {
	SearchType string
	K          int
	// ScoreThreshold is the minimum similarity kept by the
	// similarity_score_threshold search type.
	ScoreThreshold *float64
}

// Retrieval is the outcome of a query. Results is empty whenever Err is set;
// callers decide whether an empty context is acceptable.
type Retrieval struct {
	Results []domain.SearchResult
	Err     error
}

// OK reports whether the query ran without failing.
func (r Retrieval) OK() bool { return r.Err == nil }

// Empty reports whether no passage was retrieved.
func (r Retrieval) Empty() bool { return len(r.Results) == 0 }

// Index builds stores at most once and answers fail-soft similarity queries
// over them.
type Index struct {
	storage  Storage
	embedder domain.Embedder
	logger   *zap.Logger
	out      io.Writer
}

// NewIndex wires a storage backend to an embedder. Progress lines and
// retrieved-document dumps are written to out.
func NewIndex(storage Storage, embedder domain.Embedder, out io.Writer, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Index{storage: storage, embedder: embedder, logger: logger, out: out}
}

// Exists reports whether storeID has been built.
func (ix *Index) Exists(ctx context.Context, storeID string) (bool, error) {
	return ix.storage.Exists(ctx, storeID)
}

// Build embeds and persists chunks under storeID unless that store already
// exists. Existence is the only check; it reports whether work was done.
func (ix *Index) Build(ctx context.Context, storeID string, chunks []domain.Chunk) (bool, error) {
	exists, err := ix.storage.Exists(ctx, storeID)
	if err != nil {
		return false, fmt.Errorf("checking vector store %s: %w", storeID, err)
	}
	if exists {
		fmt.Fprintf(ix.out, "Vector store %s already exists. No need to initialize.\n", storeID)
		return false, nil
	}
	if len(chunks) == 0 {
		return false, fmt.Errorf("building vector store %s: no chunks", storeID)
	}

	fmt.Fprintf(ix.out, "\nCreating vector store %s\n", storeID)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	if p, ok := ix.embedder.(domain.Preparer); ok {
		if err := p.Prepare(texts); err != nil {
			return false, fmt.Errorf("%w: preparing embedder: %v", ErrEmbeddingFailed, err)
		}
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return false, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}
	if err := ix.storage.Create(ctx, storeID, chunks, vectors); err != nil {
		return false, fmt.Errorf("creating vector store %s: %w", storeID, err)
	}
	fmt.Fprintf(ix.out, "Finished creating vector store %s\n", storeID)
	ix.logger.Info("vector store built", zap.String("store", storeID), zap.Int("chunks", len(chunks)))
	return true, nil
}

// Rebuild drops storeID and builds it again from chunks.
func (ix *Index) Rebuild(ctx context.Context, storeID string, chunks []domain.Chunk) error {
	if err := ix.storage.Delete(ctx, storeID); err != nil {
		return fmt.Errorf("deleting vector store %s: %w", storeID, err)
	}
	ix.logger.Info("vector store dropped for rebuild", zap.String("store", storeID))
	_, err := ix.Build(ctx, storeID, chunks)
	return err
}

// Query returns the passages most similar to query. It never fails: a
// missing store or any retrieval error yields an empty Retrieval whose Err
// says why.
func (ix *Index) Query(ctx context.Context, storeID, query string, opts QueryOptions) Retrieval {
	exists, err := ix.storage.Exists(ctx, storeID)
	if err != nil {
		return ix.fail(storeID, fmt.Errorf("checking vector store: %w", err))
	}
	if !exists {
		fmt.Fprintf(ix.out, "Vector store %s does not exist.\n", storeID)
		return Retrieval{Err: fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)}
	}
	fmt.Fprintf(ix.out, "\nQuerying the Vector Store %s\n", storeID)

	results, err := ix.search(ctx, storeID, query, opts)
	if err != nil {
		return ix.fail(storeID, err)
	}

	fmt.Fprintf(ix.out, "\nRelevant Documents for %s\n", storeID)
	for i, r := range results {
		fmt.Fprintf(ix.out, "Document %d:\n%s\n\n", i+1, r.Chunk.Text)
		source := r.Chunk.Source
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(ix.out, "Source: %s\n\n", source)
	}
	return Retrieval{Results: results}
}

func (ix *Index) search(ctx context.Context, storeID, query string, opts QueryOptions) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if opts.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, opts.K)
	}
	var threshold *float64
	switch opts.SearchType {
	case config.SearchSimilarity, "":
	case config.SearchSimilarityScoreThreshold:
		if opts.ScoreThreshold == nil {
			return nil, fmt.Errorf("%w: %s requires a score threshold", ErrInvalidQuery, opts.SearchType)
		}
		threshold = opts.ScoreThreshold
	default:
		return nil, fmt.Errorf("%w: unknown search type %q", ErrInvalidQuery, opts.SearchType)
	}

	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if isZero(vector) {
		// Nothing in the corpus shares a term with the query.
		ix.logger.Debug("query embedding is empty", zap.String("store", storeID))
		return []domain.SearchResult{}, nil
	}
	results, err := ix.storage.Search(ctx, storeID, vector, opts.K)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}
	if threshold != nil {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= *threshold {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	ix.logger.Debug("vector store queried",
		zap.String("store", storeID),
		zap.String("search_type", opts.SearchType),
		zap.Int("k", opts.K),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (ix *Index) fail(storeID string, err error) Retrieval {
	ix.logger.Warn("vector store query failed", zap.String("store", storeID), zap.Error(err))
	fmt.Fprintf(ix.out, "Error querying vector store: %v\n", err)
	return Retrieval{Err: err}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
