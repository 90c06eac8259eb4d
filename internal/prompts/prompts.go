// Package prompts holds the two system prompts of the conversational chain.
package prompts

import (
	"fmt"
	"strings"

	lcprompts "github.com/tmc/langchaingo/prompts"
)

// Contextualize asks the model to turn a follow-up into a standalone question.
const Contextualize = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, just " +
	"reformulate it if needed and otherwise return it as is."

// QAInstructions is the fixed head of the answering prompt.
const QAInstructions = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the " +
	"question. If you don't know the answer, just say that you " +
	"don't know. Use three sentences maximum and keep the answer " +
	"concise."

var qaTemplate = lcprompts.NewPromptTemplate(QAInstructions+"\n\n{{.context}}", []string{"context"})

// QA renders the answering system prompt around the retrieved context.
func QA(context string) (string, error) {
	out, err := qaTemplate.Format(map[string]any{"context": context})
	if err != nil {
		return "", fmt.Errorf("formatting qa prompt: %w", err)
	}
	return out, nil
}

// IsContextualize reports whether a system prompt is the rewrite instruction.
func IsContextualize(system string) bool {
	return strings.TrimSpace(system) == Contextualize
}

// ContextFromQA extracts the retrieved context from a rendered QA prompt.
func ContextFromQA(system string) (string, bool) {
	rest, ok := strings.CutPrefix(system, QAInstructions)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
