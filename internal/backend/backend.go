package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when no backend could be selected from the
// current settings. No generation is attempted in that case.
var ErrNotConfigured = errors.New("backend not configured")

// Backend turns a prompt into generated source text.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Error reports a failed backend call: a launch failure, a non-zero
// process exit, a non-success HTTP status or an unusable response.
type Error struct {
	Backend    string
	StatusCode int
	ExitCode   int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Backend)
	b.WriteString(" failed")
	switch {
	case e.ExitCode != 0:
		fmt.Fprintf(&b, ": process exited with code %d", e.ExitCode)
	case e.StatusCode != 0:
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
