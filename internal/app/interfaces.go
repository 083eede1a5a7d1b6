package app

import (
	"context"
	"time"

	"lcterm/internal/config"
	"lcterm/internal/credentials"
	"lcterm/internal/judge"
	"lcterm/internal/scaffold"
	"lcterm/internal/state"
	"lcterm/internal/submit"
	"lcterm/internal/telemetry"
)

type Problems interface {
	GetList(ctx context.Context, filter judge.ListFilter) (judge.ProblemPage, error)
	GetDetail(ctx context.Context, id string) (judge.Problem, error)
	Snapshot(ctx context.Context, filter judge.ListFilter) (judge.ProblemPage, time.Time, bool)
	InvalidateStatus(id string)
	InvalidateList(filter judge.ListFilter)
}

// Account reads the signed-in user's progress.
type Account interface {
	FetchUserStats(ctx context.Context) (judge.UserStats, error)
}

type Scaffolder interface {
	Scaffold(p judge.Problem, lang scaffold.Language, root string) (string, error)
	ReadSolution(path string, lang scaffold.Language) (string, error)
}

type History interface {
	RecordScaffold(ctx context.Context, rec state.ScaffoldRecord) (state.ScaffoldRecord, error)
	ScaffoldsFor(ctx context.Context, problemID string) ([]state.ScaffoldRecord, error)
	SaveSettings(ctx context.Context, values map[string]string) error
}

// Backend is everything that depends on the session tokens. It is rebuilt
// whenever the configuration changes.
type Backend struct {
	Problems   Problems
	Poller     *submit.Poller
	ProblemURL func(slug string) string
	// Account is nil without a session.
	Account    Account
}

type Services struct {
	Connect    func(cfg config.Config) (Backend, error)
	Scaffolder Scaffolder
	History    History
	Login      credentials.Provider
	Clipboard  func(text string) error
	SaveConfig func(cfg config.Config) error
	Logger     *telemetry.Logger
}
