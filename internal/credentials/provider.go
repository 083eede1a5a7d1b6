package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/caarlos0/env/v11"
)

var ErrPartialSession = errors.New("session tokens must be provided together")

// Session holds the judge's authentication cookies. The zero value is the
// anonymous session.
type Session struct {
	ID   string
	CSRF string
}

// NewSession rejects half-configured credentials instead of using them.
func NewSession(id, csrf string) (Session, error) {
	id = strings.TrimSpace(id)
	csrf = strings.TrimSpace(csrf)
	if (id == "") != (csrf == "") {
		return Session{}, ErrPartialSession
	}
	return Session{ID: id, CSRF: csrf}, nil
}

func (s Session) Present() bool {
	return s.ID != "" && s.CSRF != ""
}

// Provider resolves the current session tokens from wherever they live.
type Provider interface {
	Resolve(ctx context.Context) (Session, error)
}

type Static struct {
	Session Session
}

func (s Static) Resolve(context.Context) (Session, error) {
	return s.Session, nil
}

type envTokens struct {
	Session string `env:"LEETCODE_SESSION"`
	CSRF    string `env:"LEETCODE_CSRF"`
}

// Env reads tokens from LEETCODE_SESSION and LEETCODE_CSRF.
type Env struct {
	Environment map[string]string
}

func (e Env) Resolve(context.Context) (Session, error) {
	var tokens envTokens
	opts := env.Options{}
	if e.Environment != nil {
		opts.Environment = e.Environment
	}
	if err := env.ParseWithOptions(&tokens, opts); err != nil {
		return Session{}, err
	}
	return NewSession(tokens.Session, tokens.CSRF)
}

// Chain returns the first present session; errors from earlier providers are
// only reported when nothing resolves.
type Chain []Provider

func (c Chain) Resolve(ctx context.Context) (Session, error) {
	var errs []error
	for _, p := range c {
		if p == nil {
			continue
		}
		s, err := p.Resolve(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s.Present() {
			return s, nil
		}
	}
	return Session{}, errors.Join(errs...)
}

// FromCookies picks the judge cookies out of a name/value list.
func FromCookies(cookies map[string]string) (Session, bool) {
	s := Session{ID: cookies[SessionCookie], CSRF: cookies[CSRFCookie]}
	return s, s.Present()
}

const (
	SessionCookie = "LEETCODE_SESSION"
	CSRFCookie    = "csrftoken"
)
