// Package loader reads the plain-text corpus from the source directory.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/domain"
)

var (
	// ErrSourceDir is returned when the source directory is missing or not a directory.
	ErrSourceDir = errors.New("source directory not found")
	// ErrNoDocuments is returned when the source directory holds no .txt files.
	ErrNoDocuments = errors.New("no text files found")
)

// TextLoader loads every .txt file of a directory as a Document.
type TextLoader struct {
	logger *zap.Logger
}

// NewTextLoader creates a new text document loader.
func NewTextLoader(logger *zap.Logger) *TextLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextLoader{logger: logger}
}

// Load returns one Document per .txt file in dir, ordered by path.
// Empty files are skipped; an unreadable file aborts the load.
func (l *TextLoader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceDir, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceDir, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s. Please check the path", ErrNoDocuments, dir)
	}
	sort.Strings(paths)

	documents := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			l.logger.Warn("skipping empty document", zap.String("path", p))
			continue
		}
		documents = append(documents, domain.Document{ID: hashString(p), Path: p, Content: string(data)})
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w in %s: every file is empty", ErrNoDocuments, dir)
	}
	l.logger.Debug("loaded documents", zap.String("dir", dir), zap.Int("count", len(documents)))
	return documents, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
