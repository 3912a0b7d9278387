package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"walletbridge/internal/domain"
)

// Prompter implements domain.Prompter with a terminal dialog per prompt.
// Prompts are shown one at a time; concurrent callers queue.
type Prompter struct {
	mu     sync.Mutex
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithIO overrides the terminal streams (defaults: stdin and stdout).
func WithIO(in io.Reader, out io.Writer) Option {
	return func(p *Prompter) {
		p.in = in
		p.out = out
	}
}

// NewPrompter creates a terminal Prompter.
func NewPrompter(logger *slog.Logger, opts ...Option) *Prompter {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prompter{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Confirm shows prompt and blocks until the user answers or ctx ends.
func (p *Prompter) Confirm(ctx context.Context, prompt domain.Prompt) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	if p.out != nil {
		opts = append(opts, tea.WithOutput(p.out))
	}

	log := p.logger.With("request_id", prompt.RequestID)
	if id := domain.SessionIDFromContext(ctx); id != "" {
		log = log.With("session_id", id)
	}
	log.Debug("showing prompt", "kind", prompt.Kind)
	final, err := tea.NewProgram(NewModel(prompt), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("confirm prompt: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return false, errors.New("confirm prompt: unexpected model type")
	}
	confirmed, decided := m.Answer()
	if !decided {
		// Program ended without a choice.
		return false, fmt.Errorf("confirm prompt: %w", domain.ErrPromptUnavailable)
	}
	log.Debug("prompt answered", "confirmed", confirmed)
	return confirmed, nil
}
