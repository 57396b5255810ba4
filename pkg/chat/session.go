// Package chat runs the question/answer loop over an indexed collection.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/llm"
)

type State int

const (
	AwaitingInput State = iota
	Retrieving
	Generating
	Exit
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Retrieving:
		return "retrieving"
	case Generating:
		return "generating"
	case Exit:
		return "exit"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type SessionConfig struct {
	Collection  string
	TopK        int
	Timeout     time.Duration // per generation call
	// RetrievalTimeout bounds embedding the question and querying the
	// store. Defaults to Timeout.
	RetrievalTimeout time.Duration
	ShowSources bool
	// OnStateChange, if set, observes every transition.
	OnStateChange func(State)
}

// Answer is the result of one turn.
type Answer struct {
	Text    string
	Sources []models.Chunk
}

// Session holds the conversation history of one user. It is not safe for
// concurrent use; turns are answered one at a time.
type Session struct {
	config    SessionConfig
	embedder  types.Embedder
	store     types.VectorStore
	generator types.Generator
	logger    *zap.Logger

	state   State
	history []models.Turn
}

func NewSession(config SessionConfig, embedder types.Embedder, store types.VectorStore, generator types.Generator, logger *zap.Logger) (*Session, error) {
	if config.Collection == "" {
		return nil, types.Wrap(types.ErrConfiguration, "chat session", fmt.Errorf("collection is required"))
	}
	if config.TopK <= 0 {
		return nil, types.Wrap(types.ErrConfiguration, "chat session", fmt.Errorf("top_k must be positive"))
	}
	if embedder == nil || store == nil || generator == nil {
		return nil, types.Wrap(types.ErrConfiguration, "chat session", fmt.Errorf("embedder, store and generator are required"))
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.RetrievalTimeout == 0 {
		config.RetrievalTimeout = config.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		config:    config,
		embedder:  embedder,
		store:     store,
		generator: generator,
		logger:    logger,
		state:     AwaitingInput,
	}, nil
}

// IsExit reports whether input asks to end the session.
func IsExit(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "exit")
}

func (s *Session) State() State {
	return s.state
}

// History returns a copy of the answered turns, oldest first.
func (s *Session) History() []models.Turn {
	return append([]models.Turn(nil), s.history...)
}

func (s *Session) setState(state State) {
	s.state = state
	if s.config.OnStateChange != nil {
		s.config.OnStateChange(state)
	}
}

// Ask answers one question. A failed turn leaves the history untouched and
// the session ready for the next question.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	if s.state == Exit {
		return nil, fmt.Errorf("session has ended")
	}
	defer s.setState(AwaitingInput)

	s.setState(Retrieving)
	chunks, err := s.retrieve(ctx, s.standalone(ctx, question))
	if err != nil {
		s.logger.Warn("retrieval failed", zap.Error(err))
		return nil, err
	}

	s.setState(Generating)
	genCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, question, chunks, s.History())
	if err != nil {
		s.logger.Warn("generation failed", zap.Error(err))
		return nil, err
	}

	s.history = append(s.history, models.Turn{Question: question, Answer: text})
	s.logger.Debug("answered question",
		zap.Int("chunks", len(chunks)),
		zap.Int("turns", len(s.history)))

	return &Answer{Text: text, Sources: chunks}, nil
}

// standalone rewrites a follow-up into a self-contained question when the
// generator can. On failure the raw question is retrieved for.
func (s *Session) standalone(ctx context.Context, question string) string {
	condenser, ok := s.generator.(types.Condenser)
	if !ok || len(s.history) == 0 {
		return question
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	rewritten, err := condenser.Condense(ctx, question, s.History())
	if err != nil {
		s.logger.Warn("failed to condense question", zap.Error(err))
		return question
	}
	s.logger.Debug("condensed question", zap.String("question", question), zap.String("standalone", rewritten))
	return rewritten
}

func (s *Session) retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RetrievalTimeout)
	defer cancel()

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, s.config.Collection, vector, s.config.TopK)
}

// Close moves the session to its terminal state.
func (s *Session) Close() {
	s.setState(Exit)
}

// Run reads questions from in until "exit" or end of input, writing answers
// to out.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	userPrompt := color.New(color.FgGreen)
	assistantPrompt := color.New(color.FgCyan)
	errorColor := color.New(color.FgRed)
	sourceColor := color.New(color.FgYellow)

	color.New(color.FgCyan).Fprintln(out, "\nChat with your knowledge base (type 'exit' to quit)")

	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return err
		}

		userPrompt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			s.Close()
			return scanner.Err()
		}

		query := scanner.Text()
		if IsExit(query) {
			s.Close()
			return nil
		}
		if strings.TrimSpace(query) == "" {
			continue
		}

		answer, err := s.Ask(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				s.Close()
				return ctx.Err()
			}
			errorColor.Fprintf(out, "Error: %v\n", err)
			continue
		}

		assistantPrompt.Fprintf(out, "Assistant: %s\n", answer.Text)
		if s.config.ShowSources {
			if sources := llm.FormatSources(answer.Sources); sources != "" {
				sourceColor.Fprintf(out, "\n%s\n", sources)
			}
		}
	}
}
