package app

import (
	"time"

	"lcterm/internal/judge"
)

// Intent is one user request. Only the fields for its Kind are read.
type Intent struct {
	Kind   IntentKind
	Delta  int
	Filter judge.ListFilter
	Form   SetupForm
}

type SetupForm struct {
	WorkspaceRoot string
	Language      string
	Editor        string
	SessionToken  string
	CSRFToken     string
}

// ViewModel is everything the renderer needs. It is a copy; mutating it has
// no effect on the machine.
type ViewModel struct {
	State     StateTag
	Status    string
	StatusErr bool
	StatusSeq uint64
	Setup     SetupView
	Browse    BrowseView
	Detail    DetailView
	Solve     SolveView
}

type SetupView struct {
	Form      SetupForm
	Reason    string
	FirstRun  bool
	LoggingIn bool
	Languages []string
}

type BrowseView struct {
	Filter   judge.ListFilter
	Problems []judge.ProblemSummary
	Cursor   int
	Total    int
	Page     int
	Pages    int
	Loading  bool
	Stale    bool
	StaleAt  time.Time
	// Stats is nil until the signed-in user's progress has loaded.
	Stats    *judge.UserStats
}

type DetailView struct {
	ID        string
	Problem   judge.Problem
	Loaded    bool
	Loading   bool
	URL       string
	// Scaffolds lists earlier scaffolds of this problem as "language: path".
	Scaffolds []string
}

type SolveView struct {
	Problem     judge.Problem
	Path        string
	Language    string
	Preview     string
	Scaffolding bool
	InFlight    bool
	// Running is set while the in-flight job is a run of the examples.
	Running     bool
	Attempt     int
	MaxAttempts int
	Submission  *judge.Submission
}
