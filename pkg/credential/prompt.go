package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// TerminalPrompter reads secrets from a terminal with masked input.
// When In is not a terminal it fails with ErrNoInteractiveInput instead of
// blocking on a pipe or closed stdin.
type TerminalPrompter struct {
	In     *os.File
	Out    io.Writer
	Labels map[string]string // Optional prompt titles keyed by credential name.

	isTerminal func(fd int) bool
}

// NewTerminalPrompter creates a prompter on stdin, drawing on stderr so that
// stdout stays reserved for results.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		In:         os.Stdin,
		Out:        os.Stderr,
		isTerminal: term.IsTerminal,
	}
}

// Interactive reports whether the prompter has a terminal to read from.
func (p *TerminalPrompter) Interactive() bool {
	if p.In == nil {
		return false
	}
	isTerminal := p.isTerminal
	if isTerminal == nil {
		isTerminal = term.IsTerminal
	}
	return isTerminal(int(p.In.Fd())) //nolint:gosec // file descriptors fit in int
}

func (p *TerminalPrompter) label(name string) string {
	if l, ok := p.Labels[name]; ok && l != "" {
		return l
	}
	return fmt.Sprintf("Enter %s", name)
}

// Prompt shows a masked input field for name.
func (p *TerminalPrompter) Prompt(ctx context.Context, name string) (string, error) {
	if !p.Interactive() {
		return "", ErrNoInteractiveInput
	}

	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	var value string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(p.label(name)).
			EchoMode(huh.EchoModePassword).
			Value(&value),
	)).WithInput(p.In).WithOutput(out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", fmt.Errorf("prompt aborted: %w", err)
		}
		return "", fmt.Errorf("prompt: %w", err)
	}

	return value, nil
}
