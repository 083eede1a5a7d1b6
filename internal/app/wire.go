package app

import (
	"lcterm/internal/cache"
	"lcterm/internal/config"
	"lcterm/internal/credentials"
	"lcterm/internal/judge"
	"lcterm/internal/submit"
	"lcterm/internal/telemetry"
)

// Connector builds the session-dependent backend for a configuration. The
// snapshot store is shared across rebuilds; the in-memory cache is not,
// since cached statuses belong to the old session.
func Connector(store cache.Store, logger *telemetry.Logger) func(config.Config) (Backend, error) {
	return func(cfg config.Config) (Backend, error) {
		session, err := cfg.Session()
		if err != nil {
			logger.Warn("app.partial_session", map[string]any{"error": err.Error()})
			session = credentials.Session{}
		}
		client := judge.NewClient(judge.Options{
			BaseURL: cfg.BaseURL,
			Session: session,
			Logger:  logger,
		})
		problems := cache.New(client, cache.Options{Store: store, Logger: logger})
		poller := &submit.Poller{
			Judge:        client,
			MaxAttempts:  cfg.Poll.MaxAttempts,
			InitialDelay: cfg.PollInitialDelay(),
			MaxDelay:     cfg.PollMaxDelay(),
			Logger:       logger,
		}
		logger.Info("app.connected", map[string]any{"base_url": cfg.BaseURL, "session": client.HasSession()})
		backend := Backend{Problems: problems, Poller: poller, ProblemURL: client.ProblemURL}
		if client.HasSession() {
			backend.Account = client
		}
		return backend, nil
	}
}

// LoginURL is the page the browser login flow opens.
func LoginURL(base string) string {
	if base == "" {
		base = judge.DefaultBaseURL
	}
	return base + "/accounts/login/"
}
