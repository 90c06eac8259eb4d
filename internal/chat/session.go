// Package chat runs the interactive question/answer loop.
package chat

import (
	"sync"

	"ragchat/internal/domain"
)

// Session is the append-only history of one conversation.
type Session struct {
	mu    sync.Mutex
	turns []domain.ChatTurn
}

func NewSession() *Session { return &Session{} }

// History returns a copy of the turns so far, oldest first.
func (s *Session) History() []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append records a completed round: the user's question then the answer.
func (s *Session) Append(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns,
		domain.ChatTurn{Role: domain.RoleUser, Content: question},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: answer},
	)
}

// Len is the number of turns recorded.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
