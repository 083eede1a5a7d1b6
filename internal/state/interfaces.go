package state

import (
	"context"
	"time"

	"lcterm/internal/judge"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	LoadSnapshot(ctx context.Context, key string) (judge.ProblemPage, time.Time, bool, error)
	SaveSnapshot(ctx context.Context, key string, page judge.ProblemPage) error
	RecordScaffold(ctx context.Context, rec ScaffoldRecord) (ScaffoldRecord, error)
	LastScaffold(ctx context.Context) (*ScaffoldRecord, error)
	ScaffoldsFor(ctx context.Context, problemID string) ([]ScaffoldRecord, error)
	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)
	Close() error
}

// ScaffoldRecord remembers where a problem was scaffolded so later runs can
// jump back to it.
type ScaffoldRecord struct {
	ID        string
	ProblemID string
	Slug      string
	Title     string
	Language  string
	Path      string
	CreatedTS time.Time
	OpenedTS  time.Time
}
