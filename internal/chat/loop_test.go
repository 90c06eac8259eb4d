package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

// scriptedAsker answers from a table and records the history it was given.
type scriptedAsker struct {
	answers   map[string]string
	failures  map[string]error
	histories [][]domain.ChatTurn
	deadlines []bool
}

func (a *scriptedAsker) Ask(ctx context.Context, input string, history []domain.ChatTurn) (domain.Answer, error) {
	a.histories = append(a.histories, history)
	_, ok := ctx.Deadline()
	a.deadlines = append(a.deadlines, ok)
	if err, ok := a.failures[input]; ok {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: a.answers[input]}, nil
}

func run(t *testing.T, asker Asker, input string) (*Loop, string) {
	t.Helper()
	var out bytes.Buffer
	l := NewLoop(asker, nil, strings.NewReader(input), &out, time.Minute, nil)
	require.NoError(t, l.Run(context.Background()))
	return l, out.String()
}

func TestIsExit(t *testing.T) {
	for _, in := range []string{"exit", "EXIT", "Exit", "  exit  ", "exit\r"} {
		assert.True(t, IsExit(in), in)
	}
	for _, in := range []string{"", "exit now", "quit", "exits"} {
		assert.False(t, IsExit(in), in)
	}
}

func TestRun_ExitTerminatesWithoutFurtherPrompts(t *testing.T) {
	for _, word := range []string{"exit", "EXIT"} {
		t.Run(word, func(t *testing.T) {
			asker := &scriptedAsker{}
			l, out := run(t, asker, word+"\nWho is Rex?\n")

			assert.Equal(t, Greeting+"\n"+Prompt, out)
			assert.Empty(t, asker.histories)
			assert.Equal(t, Terminated, l.State())
			assert.Zero(t, l.Session().Len())
		})
	}
}

func TestRun_AnswersAndKeepsHistory(t *testing.T) {
	asker := &scriptedAsker{answers: map[string]string{
		"Who is Rex?":        "Rex is a dog.",
		"What does he like?": "He likes bones.",
	}}
	l, out := run(t, asker, "Who is Rex?\nWhat does he like?\nexit\n")

	assert.Contains(t, out, "AI: Rex is a dog.\n")
	assert.Contains(t, out, "AI: He likes bones.\n")
	assert.Equal(t, 3, strings.Count(out, Prompt))

	require.Len(t, asker.histories, 2)
	assert.Empty(t, asker.histories[0])
	assert.Equal(t, []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "Who is Rex?"},
		{Role: domain.RoleAssistant, Content: "Rex is a dog."},
	}, asker.histories[1])
	assert.Equal(t, []bool{true, true}, asker.deadlines)
	assert.Equal(t, 4, l.Session().Len())
}

func TestRun_FailedTurnContinues(t *testing.T) {
	asker := &scriptedAsker{
		answers:  map[string]string{"second": "fine"},
		failures: map[string]error{"first": errors.New("rate limited")},
	}
	l, out := run(t, asker, "first\nsecond\nexit\n")

	assert.Contains(t, out, "Error processing query: rate limited\n")
	assert.Contains(t, out, "AI: fine\n")
	require.Len(t, asker.histories, 2)
	assert.Empty(t, asker.histories[1], "a failed turn adds nothing to history")
	assert.Equal(t, 2, l.Session().Len())
}

func TestRun_BlankInputReprompts(t *testing.T) {
	asker := &scriptedAsker{}
	_, out := run(t, asker, "\n   \nexit\n")
	assert.Empty(t, asker.histories)
	assert.Equal(t, 3, strings.Count(out, Prompt))
}

func TestRun_EOFTerminates(t *testing.T) {
	asker := &scriptedAsker{answers: map[string]string{"last question": "ok"}}
	l, out := run(t, asker, "last question")
	assert.Contains(t, out, "AI: ok")
	assert.Equal(t, Terminated, l.State())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asker := &scriptedAsker{}
	var out bytes.Buffer
	l := NewLoop(asker, nil, strings.NewReader("hello\n"), &out, 0, nil)
	require.NoError(t, l.Run(ctx))
	assert.Empty(t, asker.histories)
	assert.Equal(t, Greeting+"\n", out.String())
}

func TestSession_HistoryIsACopy(t *testing.T) {
	s := NewSession()
	s.Append("q", "a")
	h := s.History()
	h[0].Content = "changed"
	assert.Equal(t, "q", s.History()[0].Content)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_input", AwaitingInput.String())
	assert.Equal(t, "processing", Processing.String())
	assert.Equal(t, "terminated", Terminated.String())
}

func TestRun_OversizedLineIsReportedAndSkipped(t *testing.T) {
	asker := &scriptedAsker{answers: map[string]string{"Who is Rex?": "Rex is a dog."}}
	input := strings.Repeat("x", maxLineBytes+1) + "\nWho is Rex?\nexit\n"
	l, out := run(t, asker, input)

	assert.Contains(t, out, "Error processing query: "+ErrLineTooLong.Error()+"\n")
	assert.Contains(t, out, "AI: Rex is a dog.\n")
	require.Len(t, asker.histories, 1)
	assert.Equal(t, 1, l.Session().Len())
	assert.Equal(t, Terminated, l.State())
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("short\r\nmuch too long\nok\nlast"), 16)

	line, err := readLine(r, 8)
	require.NoError(t, err)
	assert.Equal(t, "short", line)

	_, err = readLine(r, 8)
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err = readLine(r, 8)
	require.NoError(t, err)
	assert.Equal(t, "ok", line)

	line, err = readLine(r, 8)
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = readLine(r, 8)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_OversizedFinalLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader(strings.Repeat("y", 40)), 16)

	_, err := readLine(r, 8)
	assert.ErrorIs(t, err, ErrLineTooLong)

	_, err = readLine(r, 8)
	assert.ErrorIs(t, err, io.EOF)
}
