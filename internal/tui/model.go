package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/chat"
	"ragchat/internal/domain"
)

// answerMsg carries the outcome of one asynchronous turn.
type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	asker    chat.Asker
	session  *chat.Session
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	status   string
	busy     bool
	ready    bool
	// last successful round, used for the source panel
	lastQuestion string
	lastContext  []domain.SearchResult
}

// New creates a chat model over asker. The session collects the history.
func New(ctx context.Context, asker chat.Asker, session *chat.Session, timeout time.Duration) Model {
	if session == nil {
		session = chat.NewSession()
	}
	ti := textinput.New()
	ti.Prompt = chat.Prompt
	ti.Placeholder = "Ask a question, or type exit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		asker:    asker,
		session:  session,
		timeout:  timeout,
		input:    ti,
		viewport: vp,
		status:   chat.Greeting,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error processing query: %v", msg.err)
			return m, nil
		}
		m.session.Append(msg.question, msg.answer.Text)
		m.lastQuestion = msg.question
		m.lastContext = msg.answer.Context
		m.status = fmt.Sprintf("%d passages retrieved", len(msg.answer.Context))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			q := m.input.Value()
			if chat.IsExit(q) {
				return m, tea.Quit
			}
			if m.busy || strings.TrimSpace(q) == "" {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.input.Reset()
			return m, m.ask(q, m.session.History())
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs one turn off the UI goroutine.
func (m Model) ask(question string, history []domain.ChatTurn) tea.Cmd {
	parent, asker, timeout := m.ctx, m.asker, m.timeout
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, timeout)
			defer cancel()
		}
		answer, err := asker.Ask(ctx, question, history)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// View renders the transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	history := m.session.History()
	if len(history) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for _, turn := range history {
		switch turn.Role {
		case domain.RoleUser:
			b.WriteString(youStyle.Render(chat.Prompt) + turn.Content + "\n")
		case domain.RoleAssistant:
			b.WriteString(aiStyle.Render("AI: ") + turn.Content + "\n\n")
		}
	}
	if len(m.lastContext) > 0 {
		top := m.lastContext[0]
		source := top.Chunk.Source
		if source == "" {
			source = "Unknown"
		}
		b.WriteString(sourceStyle.Render(fmt.Sprintf("Source: %s  score=%.3f", source, top.Score)) + "\n")
		b.WriteString(highlightBestSentence(top.Chunk.Text, m.lastQuestion))
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	aiStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	best := bestSentence(sentences, query)
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == best {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

// bestSentence is the index of the sentence sharing most words with query,
// or -1 when query has no words.
func bestSentence(sentences []string, query string) int {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return -1
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
