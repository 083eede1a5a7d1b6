package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport           = errors.New("transport failure")
	ErrAuth                = errors.New("authentication required")
	ErrRemoteRejected      = errors.New("request rejected by judge")
	ErrFilesystem          = errors.New("filesystem error")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNotFound            = errors.New("problem not found")
	ErrSetupRequired       = errors.New("setup required")
)

// Error carries the kind of failure plus enough context to tell the user why.
type Error struct {
	Kind   error
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Retryable reports whether err is worth another attempt against the judge.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Describe maps an error to the one-line message shown in the status bar.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	detail := err.Error()
	if errors.As(err, &e) && e.Detail != "" {
		detail = e.Detail
	}
	switch {
	case errors.Is(err, ErrSetupRequired):
		return "Session tokens missing: open setup (s) to add them"
	case errors.Is(err, ErrAuth):
		return "Authentication failed: check your session tokens in setup"
	case errors.Is(err, ErrTransport):
		return "Network problem talking to the judge: " + detail
	case errors.Is(err, ErrRemoteRejected):
		return "Judge rejected the request: " + detail
	case errors.Is(err, ErrFilesystem):
		return "Could not write scaffold: " + detail
	case errors.Is(err, ErrUnsupportedLanguage):
		return "Unsupported language: " + detail
	case errors.Is(err, ErrNotFound):
		return "Problem not found: " + detail
	}
	return detail
}
