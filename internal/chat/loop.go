package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ragchat/internal/domain"
)

const (
	Greeting = "Start chatting with the AI! Type 'exit' to end the conversation."
	Prompt   = "You: "

	maxLineBytes = 1024 * 1024
)

// ErrLineTooLong is reported for an input line over the loop's size limit.
// The line is skipped and the conversation continues.
var ErrLineTooLong = errors.New("input line too long")

// Asker answers one question given the prior conversation.
type Asker interface {
	Ask(ctx context.Context, input string, history []domain.ChatTurn) (domain.Answer, error)
}

// State is where the loop is in its read/answer cycle.
type State int32

const (
	AwaitingInput State = iota
	Processing
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Processing:
		return "processing"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// IsExit reports whether input asks to end the conversation.
func IsExit(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "exit")
}

// Loop reads questions line by line and prints answers until the user exits.
type Loop struct {
	asker   Asker
	session *Session
	in      io.Reader
	out     io.Writer
	timeout time.Duration
	logger  *zap.Logger
	state   atomic.Int32
	maxLine int
}

func NewLoop(asker Asker, session *Session, in io.Reader, out io.Writer, timeout time.Duration, logger *zap.Logger) *Loop {
	if session == nil {
		session = NewSession()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{asker: asker, session: session, in: in, out: out, timeout: timeout, logger: logger, maxLine: maxLineBytes}
}

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) Session() *Session { return l.session }

// Run blocks until the user types exit, input ends or ctx is cancelled.
// A failed turn is reported and the loop carries on.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(Terminated)
	l.setState(AwaitingInput)
	fmt.Fprintln(l.out, Greeting)

	reader := bufio.NewReader(l.in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(l.out, Prompt)
		input, err := readLine(reader, l.maxLine)
		if errors.Is(err, ErrLineTooLong) {
			l.logger.Warn("input line skipped", zap.Int("limit", l.maxLine))
			fmt.Fprintf(l.out, "Error processing query: %v\n", err)
			continue
		}
		if errors.Is(err, io.EOF) {
			l.logger.Debug("input closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if IsExit(input) {
			return nil
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		l.turn(ctx, input)
	}
}

func (l *Loop) turn(ctx context.Context, input string) {
	l.setState(Processing)
	defer l.setState(AwaitingInput)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	answer, err := l.asker.Ask(ctx, input, l.session.History())
	if err != nil {
		l.logger.Warn("turn failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		fmt.Fprintf(l.out, "Error processing query: %v\n", err)
		return
	}
	fmt.Fprintf(l.out, "AI: %s\n", answer.Text)
	l.session.Append(input, answer.Text)
	l.logger.Debug("turn answered",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("history", l.session.Len()),
	)
}

// readLine returns the next line without its terminator. A line longer than
// limit bytes is drained and reported as ErrLineTooLong.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := r.ReadSlice('\n')
		if !tooLong {
			line = append(line, frag...)
			if len(bytes.TrimRight(line, "\r\n")) > limit {
				tooLong, line = true, nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 && !tooLong {
				return "", io.EOF
			}
		case err != nil:
			return "", err
		}
		if tooLong {
			return "", ErrLineTooLong
		}
		return string(bytes.TrimRight(line, "\r\n")), nil
	}
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }
