package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/prompts"
	"ragchat/internal/vectorstore"
)

// Retriever rewrites follow-up questions into standalone ones before
// querying the vector store.
type Retriever struct {
	generator domain.Generator
	index     *vectorstore.Index
	storeID   string
	opts      vectorstore.QueryOptions
	logger    *zap.Logger
}

func NewRetriever(generator domain.Generator, index *vectorstore.Index, storeID string, opts vectorstore.QueryOptions, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{generator: generator, index: index, storeID: storeID, opts: opts, logger: logger}
}

// Retrieve returns the standalone form of query and the passages found for it.
// With no history the query is used verbatim and the model is not called.
// Retrieval failures are carried in the returned Retrieval, not as an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, history []domain.ChatTurn) (string, vectorstore.Retrieval, error) {
	standalone := query
	if len(history) > 0 {
		rewritten, err := r.generator.Generate(ctx, transcript(prompts.Contextualize, history, query))
		if err != nil {
			return "", vectorstore.Retrieval{}, fmt.Errorf("contextualizing question: %w", err)
		}
		if s := strings.TrimSpace(rewritten); s != "" {
			standalone = s
		}
		r.logger.Debug("question rewritten", zap.String("input", query), zap.String("standalone", standalone))
	}
	return standalone, r.index.Query(ctx, r.storeID, standalone, r.opts), nil
}

// transcript lays out a system prompt, the prior turns and the new question.
func transcript(system string, history []domain.ChatTurn, input string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: system})
	for _, turn := range history {
		msgs = append(msgs, domain.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(msgs, domain.Message{Role: domain.RoleUser, Content: input})
}
