package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"lcterm/internal/config"
	"lcterm/internal/credentials"
	"lcterm/internal/judge"
	"lcterm/internal/scaffold"
	"lcterm/internal/state"
	"lcterm/internal/telemetry"
)

type Options struct {
	Config config.Config
	// ConfigPath is where settings are written back after setup.
	ConfigPath string
	Configured bool
	// SetupReason sends the run to setup, e.g. for half-set tokens.
	SetupReason string
	Notice      string
	Logger      *telemetry.Logger
}

// App owns the long-lived collaborators: the state database, the logger and
// the machine built on top of them.
type App struct {
	cfg     config.Config
	logger  *telemetry.Logger
	store   *state.SQLiteStore
	machine *Machine
	cancel  context.CancelFunc
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	sessionID := uuid.NewString()
	logger = logger.With(map[string]any{"session": sessionID})

	store, err := state.NewSQLite(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("prepare state: %w", err)
	}
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		logger.Warn("app.settings_load_failed", map[string]any{"error": err.Error()})
	}

	svc := Services{
		Connect:    Connector(store, logger),
		Scaffolder: scaffold.Generator{Logger: logger, BaseURL: cfg.BaseURL},
		History:    store,
		Login:      credentials.Browser{LoginURL: LoginURL(cfg.BaseURL)},
		Clipboard:  clipboard.WriteAll,
		Logger:     logger,
	}
	if opts.ConfigPath != "" {
		path := opts.ConfigPath
		svc.SaveConfig = func(c config.Config) error { return config.Save(path, c) }
	}

	runCtx, cancel := context.WithCancel(ctx)
	m, err := NewMachine(runCtx, svc, MachineOptions{
		Config:     cfg,
		Configured:  opts.Configured,
		SetupReason: opts.SetupReason,
		Filter:      FilterFromSettings(settings),
		Notice:      opts.Notice,
	})
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}
	logger.Info("app.start", map[string]any{"configured": opts.Configured, "language": cfg.Language, "state": m.State().String()})
	return &App{cfg: cfg, logger: logger, store: store, machine: m, cancel: cancel}, nil
}

func (a *App) Machine() *Machine { return a.machine }

// LastScaffoldDir is the directory of the most recent scaffold of any
// session, for the exit message when nothing was scaffolded this time.
func (a *App) LastScaffoldDir(ctx context.Context) string {
	rec, err := a.store.LastScaffold(ctx)
	if err != nil || rec == nil {
		return ""
	}
	dir := string(filepath.Separator) + scaffold.DirName(judge.Problem{ID: rec.ProblemID, Slug: rec.Slug, Title: rec.Title})
	if i := strings.LastIndex(rec.Path, dir); i >= 0 {
		return rec.Path[:i+len(dir)]
	}
	return filepath.Dir(rec.Path)
}

func (a *App) Close() {
	a.cancel()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("app.state_close_failed", map[string]any{"error": err.Error()})
	}
	a.logger.Info("app.stop", map[string]any{"last_dir": a.machine.LastDir()})
}
