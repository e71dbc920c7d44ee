// Package prompt implements line-based terminal prompts for interactive
// login.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminal asks questions on a line-oriented reader and writer, typically
// stdin and stderr.
type Terminal struct {
	in        *bufio.Reader
	out       io.Writer
	onRefresh func()
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithRefresh sets a callback run when the client reports that login state
// changed.
func WithRefresh(fn func()) Option {
	return func(t *Terminal) {
		t.onRefresh = fn
	}
}

// New creates a terminal prompter.
func New(in io.Reader, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Select prints a numbered list and reads a choice. A blank line or end of
// input cancels with -1. Invalid answers are asked again.
func (t *Terminal) Select(title string, options []string) (int, error) {
	for {
		fmt.Fprintf(t.out, "%s\n", title)
		for i, opt := range options {
			fmt.Fprintf(t.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprint(t.out, "> ")

		line, eof, err := t.readLine()
		if err != nil {
			return -1, err
		}
		if line == "" {
			return -1, nil
		}

		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		if eof {
			return -1, nil
		}
		fmt.Fprintf(t.out, "Enter a number between 1 and %d, or leave blank to cancel.\n", len(options))
	}
}

// Input reads one line of free text. End of input yields "".
func (t *Terminal) Input(title string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", title)
	line, _, err := t.readLine()
	return line, err
}

// YesNo asks a confirmation question. Only "y" or "yes" confirm.
func (t *Terminal) YesNo(message string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N] ", message)
	line, _, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Error prints message.
func (t *Terminal) Error(message string) {
	fmt.Fprintf(t.out, "error: %s\n", message)
}

// Refresh runs the refresh callback, if any.
func (t *Terminal) Refresh() {
	if t.onRefresh != nil {
		t.onRefresh()
	}
}

// readLine returns the next trimmed line. eof is set when the input ended,
// in which case line holds whatever preceded the end.
func (t *Terminal) readLine() (line string, eof bool, err error) {
	s, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return strings.TrimSpace(s), true, nil
		}
		return "", false, fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(s), false, nil
}
