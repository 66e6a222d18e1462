// Package interactive provides terminal prompts for the updater.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter shows updater dialogs on a terminal.
type Prompter struct {
	in        io.Reader
	out       io.Writer
	scanner   *bufio.Scanner
	assumeYes bool
	ctx       context.Context

	readOnce sync.Once
	lines    chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
		ctx:     context.Background(),
	}
}

// WithContext makes AskConfirm stop waiting for input once ctx is done.
// An abandoned answer is returned by the next AskConfirm.
func (p *Prompter) WithContext(ctx context.Context) *Prompter {
	p.ctx = ctx
	return p
}

// AssumeYes makes every confirmation succeed without reading input.
func (p *Prompter) AssumeYes(yes bool) *Prompter {
	p.assumeYes = yes
	return p
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShowInfo prints an informational message.
func (p *Prompter) ShowInfo(text, title string) error {
	return p.show("", text, title)
}

// ShowWarning prints a warning.
func (p *Prompter) ShowWarning(text, title string) error {
	return p.show("warning: ", text, title)
}

// ShowError prints an error message.
func (p *Prompter) ShowError(text, title string) error {
	return p.show("error: ", text, title)
}

func (p *Prompter) show(prefix, text, title string) error {
	_, err := fmt.Fprintf(p.out, "%s[%s] %s\n", prefix, title, text)
	return err
}

// AskConfirm shows text and asks the user to pick okLabel or cancelLabel.
// Invalid input and end of input count as cancel.
func (p *Prompter) AskConfirm(text, title, okLabel, cancelLabel string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "[%s]\n%s\n", title, text); err != nil {
		return false, err
	}

	if p.assumeYes {
		_, err := fmt.Fprintf(p.out, "%s (assumed)\n", okLabel)
		return err == nil, err
	}

	if _, err := fmt.Fprintf(p.out, "%s or %s? [y/n] ", okLabel, cancelLabel); err != nil {
		return false, err
	}

	var res readResult
	var ok bool
	select {
	case res, ok = <-p.readLines():
	case <-p.ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return false, nil
	}
	if !ok {
		_, _ = fmt.Fprintln(p.out)
		return false, nil
	}
	if res.err != nil {
		return false, fmt.Errorf("failed to read answer: %w", res.err)
	}

	input := strings.ToLower(strings.TrimSpace(res.line))
	switch input {
	case "y", "yes", strings.ToLower(okLabel):
		return true, nil
	case "n", "no", strings.ToLower(cancelLabel):
		return false, nil
	default:
		// Default to no for invalid input
		_, _ = fmt.Fprintln(p.out, "Invalid response, cancelling.")
		return false, nil
	}
}

// readLines starts the input reader on first use. Lines are delivered one at
// a time so a read abandoned on cancellation is not lost. The channel is
// closed at end of input.
func (p *Prompter) readLines() <-chan readResult {
	p.readOnce.Do(func() {
		p.lines = make(chan readResult)
		go func() {
			defer close(p.lines)
			for p.scanner.Scan() {
				p.lines <- readResult{line: p.scanner.Text()}
			}
			if err := p.scanner.Err(); err != nil {
				p.lines <- readResult{err: err}
			}
		}()
	})
	return p.lines
}
