package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser opens a visible browser on the judge's login page and waits until
// the session cookies show up.
type Browser struct {
	LoginURL string
	Poll     time.Duration
	Timeout  time.Duration
}

func (b Browser) Resolve(ctx context.Context) (Session, error) {
	poll := b.Poll
	if poll <= 0 {
		poll = time.Second
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := launcher.New().Headless(false).Leakless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return Session{}, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Session{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	if _, err := browser.Page(proto.TargetCreateTarget{URL: b.LoginURL}); err != nil {
		return Session{}, fmt.Errorf("open login page: %w", err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		cookies, err := browser.GetCookies()
		if err == nil {
			values := make(map[string]string, len(cookies))
			for _, c := range cookies {
				values[c.Name] = c.Value
			}
			if s, ok := FromCookies(values); ok {
				return s, nil
			}
		}
		select {
		case <-ctx.Done():
			return Session{}, fmt.Errorf("waiting for login cookies: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
