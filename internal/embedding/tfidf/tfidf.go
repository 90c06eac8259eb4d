package tfidf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
)

// ErrNotPrepared is returned when embedding before Prepare or Load.
var ErrNotPrepared = errors.New("tfidf embedder not prepared")

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values.
type Embedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// snapshot is the on-disk form of a prepared vocabulary.
type snapshot struct {
	Terms []string  `yaml:"terms"`
	IDF   []float64 `yaml:"idf"`
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.install(terms, idf)
	return nil
}

func (e *Embedder) install(terms []string, idf []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
	}
	e.idf = idf
	e.dimension = len(terms)
	e.prepared = true
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Save writes the prepared vocabulary to path so a later process can embed
// queries against a store built by this one.
func (e *Embedder) Save(path string) error {
	e.mu.RLock()
	if !e.prepared {
		e.mu.RUnlock()
		return ErrNotPrepared
	}
	snap := snapshot{Terms: make([]string, len(e.idf)), IDF: e.idf}
	for term, i := range e.vocabulary {
		snap.Terms[i] = term
	}
	e.mu.RUnlock()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores a vocabulary written by Save.
func (e *Embedder) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}
	if len(snap.Terms) == 0 || len(snap.Terms) != len(snap.IDF) {
		return fmt.Errorf("vocabulary %s is malformed", path)
	}
	e.install(snap.Terms, snap.IDF)
	return nil
}

// EmbedDocuments embeds each text with the prepared vocabulary.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedQuery computes the TF-IDF embedding for the given text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text)
}

func (e *Embedder) embed(text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	vec := make([]float32, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = float32(tfv * e.idf[idx])
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "how", "did", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var (
	_ domain.Embedder = (*Embedder)(nil)
	_ domain.Preparer = (*Embedder)(nil)
)
