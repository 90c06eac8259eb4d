// Package extractive is an offline stand-in for a chat model. It rewrites
// follow-ups by prefixing the previous user turn and answers by quoting the
// retrieved sentences that best overlap the question.
package extractive

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/prompts"
	"ragchat/internal/summarizer"
)

// DontKnow is returned when no context sentence matches the question.
const DontKnow = "I don't know."

type Generator struct {
	ranker       *summarizer.FrequencySummarizer
	maxSentences int
	logger       *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{ranker: summarizer.NewFrequencySummarizer(), maxSentences: 3, logger: logger}
}

func (g *Generator) Name() string { return "extractive" }

func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) < 2 || messages[0].Role != domain.RoleSystem {
		return "", errors.New("expected a system prompt followed by a question")
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser {
		return "", errors.New("transcript must end with a user message")
	}
	question := strings.TrimSpace(last.Content)
	previous := lastUserTurn(messages[1 : len(messages)-1])
	system := messages[0].Content

	if prompts.IsContextualize(system) {
		if previous == "" {
			return question, nil
		}
		return previous + " " + question, nil
	}

	passages, ok := prompts.ContextFromQA(system)
	if !ok {
		return "", errors.New("unrecognised system prompt")
	}
	sentences := g.ranker.Rank(passages, strings.TrimSpace(previous+" "+question), g.maxSentences)
	g.logger.Debug("extractive answer", zap.Int("sentences", len(sentences)))
	if len(sentences) == 0 {
		return DontKnow, nil
	}
	return strings.Join(sentences, " "), nil
}

func lastUserTurn(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

var _ domain.Generator = (*Generator)(nil)
