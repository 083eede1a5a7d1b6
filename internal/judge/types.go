package judge

import (
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func ParseDifficulty(raw string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return ""
	}
}

type Status string

const (
	StatusUntouched Status = "Untouched"
	StatusAttempted Status = "Attempted"
	StatusSolved    Status = "Solved"
)

// parseStatus maps the judge's "ac"/"notac"/null marker.
func parseStatus(raw *string) Status {
	if raw == nil {
		return StatusUntouched
	}
	switch strings.ToLower(*raw) {
	case "ac":
		return StatusSolved
	case "notac":
		return StatusAttempted
	default:
		return StatusUntouched
	}
}

// ProblemSummary is the list-view projection of a Problem.
type ProblemSummary struct {
	ID         string
	Slug       string
	Title      string
	Difficulty Difficulty
	Status     Status
	Tags       []string
	PaidOnly   bool
	AcRate     float64
}

type Example struct {
	Input       string
	Output      string
	Explanation string
}

type CodeSnippet struct {
	Lang     string
	LangSlug string
	Code     string
}

type Problem struct {
	ID         string
	QuestionID string
	Slug       string
	Title      string
	Difficulty Difficulty
	Status     Status
	Tags       []string
	PaidOnly   bool
	AcRate     float64
	// Description is the plain-text rendering of the problem statement.
	Description     string
	Examples        []Example
	Snippets        []CodeSnippet
	Hints           []string
	ExampleTestcase string
}

func (p Problem) Summary() ProblemSummary {
	return ProblemSummary{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      p.Title,
		Difficulty: p.Difficulty,
		Status:     p.Status,
		Tags:       append([]string(nil), p.Tags...),
		PaidOnly:   p.PaidOnly,
		AcRate:     p.AcRate,
	}
}

func (p Problem) Snippet(langSlug string) (CodeSnippet, bool) {
	for _, s := range p.Snippets {
		if s.LangSlug == langSlug {
			return s, true
		}
	}
	return CodeSnippet{}, false
}

// ListFilter selects one page of the problem set. It is also the cache key
// for list fetches, so it must stay comparable and hashable.
type ListFilter struct {
	Difficulty Difficulty
	Status     Status
	Tags       []string `hash:"set"`
	Search     string
	Skip       int
	Limit      int
}

const DefaultPageSize = 50

func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

type Verdict string

const (
	VerdictPending             Verdict = "Pending"
	VerdictAccepted            Verdict = "Accepted"
	VerdictWrongAnswer         Verdict = "Wrong Answer"
	VerdictTimeLimitExceeded   Verdict = "Time Limit Exceeded"
	VerdictMemoryLimitExceeded Verdict = "Memory Limit Exceeded"
	VerdictRuntimeError        Verdict = "Runtime Error"
	VerdictCompileError        Verdict = "Compile Error"
	// VerdictUnknown is a terminal state the client does not recognise.
	VerdictUnknown Verdict = "Unknown"
	// VerdictTimeout means local polling gave up; the remote job may still finish.
	VerdictTimeout Verdict = "Timeout"
)

func (v Verdict) Terminal() bool {
	return v != VerdictPending && v != ""
}

func parseVerdict(state, msg string) Verdict {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "PENDING", "STARTED", "":
		return VerdictPending
	}
	switch strings.ToLower(strings.TrimSpace(msg)) {
	case "accepted":
		return VerdictAccepted
	case "wrong answer":
		return VerdictWrongAnswer
	case "time limit exceeded":
		return VerdictTimeLimitExceeded
	case "memory limit exceeded":
		return VerdictMemoryLimitExceeded
	case "runtime error":
		return VerdictRuntimeError
	case "compile error":
		return VerdictCompileError
	default:
		return VerdictUnknown
	}
}

// SubmissionHandle identifies a graded job on the judge. Run handles point
// at a run against the example cases rather than a full submission.
type SubmissionHandle struct {
	ID        string
	ProblemID string
	Run       bool
}

type Submission struct {
	ProblemID string
	Handle    SubmissionHandle
	Source    string
	Language  string
	Verdict   Verdict
	// Runtime and Memory are only set once the verdict is terminal.
	Runtime        time.Duration
	MemoryBytes    uint64
	TotalCorrect   int
	TotalTestcases int
	CompileError   string
	RuntimeError   string
	LastTestcase   string
	ExpectedOutput string
	CodeOutput     string
	Attempts       int
	// Run results carry one answer per example case.
	Run      bool
	Input    string
	Outputs  []string
	Expected []string
}

// DifficultyCount is how many problems of one difficulty exist and how many
// of them the user has solved.
type DifficultyCount struct {
	Difficulty Difficulty
	Solved     int
	Total      int
}

// UserStats is the signed-in user's progress, one count per difficulty in
// Easy, Medium, Hard order.
type UserStats struct {
	Username string
	Counts   []DifficultyCount
}

func (s UserStats) Solved() (solved, total int) {
	for _, c := range s.Counts {
		solved += c.Solved
		total += c.Total
	}
	return solved, total
}
