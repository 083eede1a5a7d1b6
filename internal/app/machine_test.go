package app

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"lcterm/internal/common"
	"lcterm/internal/config"
	"lcterm/internal/devtools"
	"lcterm/internal/judge"
	"lcterm/internal/scaffold"
	"lcterm/internal/state"
	"lcterm/internal/submit"
)

type fakeProblems struct {
	mu          sync.Mutex
	pages       map[judge.Difficulty]judge.ProblemPage
	details     map[string]judge.Problem
	gate        chan struct{}
	listCalls   int
	detailCalls int
	invalidated []string
}

func (f *fakeProblems) GetList(_ context.Context, filter judge.ListFilter) (judge.ProblemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.pages[filter.Difficulty], nil
}

func (f *fakeProblems) GetDetail(ctx context.Context, id string) (judge.Problem, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return judge.Problem{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	p, ok := f.details[id]
	if !ok {
		return judge.Problem{}, common.Errorf(common.ErrNotFound, "detail", "%s", id)
	}
	return p, nil
}

func (f *fakeProblems) Snapshot(context.Context, judge.ListFilter) (judge.ProblemPage, time.Time, bool) {
	return judge.ProblemPage{}, time.Time{}, false
}

func (f *fakeProblems) InvalidateStatus(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
}

func (f *fakeProblems) InvalidateList(judge.ListFilter) {}

type fakeJudge struct {
	mu        sync.Mutex
	verdicts  []judge.Verdict
	submitErr error
	gate      chan struct{}
	submits   int
	runs      int
	polls     int
}

func (f *fakeJudge) Submit(_ context.Context, p judge.Problem, _, _ string) (judge.SubmissionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return judge.SubmissionHandle{}, f.submitErr
	}
	return judge.SubmissionHandle{ID: "s1", ProblemID: p.ID}, nil
}

func (f *fakeJudge) RunCode(_ context.Context, p judge.Problem, _, _ string) (judge.SubmissionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.submitErr != nil {
		return judge.SubmissionHandle{}, f.submitErr
	}
	return judge.SubmissionHandle{ID: "r1", ProblemID: p.ID, Run: true}, nil
}

func (f *fakeJudge) PollSubmission(ctx context.Context, h judge.SubmissionHandle) (judge.Submission, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return judge.Submission{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	v := f.verdicts[min(f.polls-1, len(f.verdicts)-1)]
	sub := judge.Submission{ProblemID: h.ProblemID, Handle: h, Verdict: v, Runtime: 3 * time.Millisecond, MemoryBytes: 1 << 20}
	if h.Run {
		sub.Outputs, sub.Expected = []string{"2"}, []string{"2"}
	}
	return sub, nil
}

type fakeHistory struct {
	mu       sync.Mutex
	records  []state.ScaffoldRecord
	settings map[string]string
}

func (f *fakeHistory) RecordScaffold(_ context.Context, rec state.ScaffoldRecord) (state.ScaffoldRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeHistory) ScaffoldsFor(_ context.Context, problemID string) ([]state.ScaffoldRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []state.ScaffoldRecord
	for _, rec := range f.records {
		if rec.ProblemID == problemID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeHistory) SaveSettings(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = values
	return nil
}

type fakeAccount struct {
	calls  atomic.Int32
	solved atomic.Int32
}

func (f *fakeAccount) FetchUserStats(context.Context) (judge.UserStats, error) {
	f.calls.Add(1)
	return judge.UserStats{Username: "alice", Counts: []judge.DifficultyCount{
		{Difficulty: judge.DifficultyEasy, Solved: int(f.solved.Load()), Total: 2},
		{Difficulty: judge.DifficultyMedium, Total: 0},
		{Difficulty: judge.DifficultyHard, Total: 1},
	}}, nil
}

type harness struct {
	m        *Machine
	problems *fakeProblems
	judge    *fakeJudge
	history  *fakeHistory
	account  *fakeAccount
	connects int
	saved    []config.Config
	copied   string
}

func removeElement() judge.Problem {
	return judge.Problem{
		ID:          "27",
		QuestionID:  "27",
		Slug:        "remove-element",
		Title:       "Remove Element",
		Difficulty:  judge.DifficultyEasy,
		Status:      judge.StatusUntouched,
		Description: "Remove all occurrences of val in place.",
		Snippets: []judge.CodeSnippet{{
			LangSlug: "python3",
			Code:     "class Solution:\n    def removeElement(self, nums: List[int], val: int) -> int:\n",
		}},
	}
}

func newHarness(t *testing.T, configured bool, opts ...func(*MachineOptions)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Language = "python3"
	cfg.Editor = "true"

	p := removeElement()
	h := &harness{
		problems: &fakeProblems{
			pages: map[judge.Difficulty]judge.ProblemPage{
				"": {Total: 2, Problems: []judge.ProblemSummary{
					{ID: "1", Slug: "two-sum", Title: "Two Sum", Difficulty: judge.DifficultyEasy},
					p.Summary(),
				}},
				judge.DifficultyHard: {Total: 1, Problems: []judge.ProblemSummary{
					{ID: "42", Slug: "trapping-rain-water", Title: "Trapping Rain Water", Difficulty: judge.DifficultyHard},
				}},
			},
			details: map[string]judge.Problem{p.ID: p},
		},
		judge:   &fakeJudge{verdicts: []judge.Verdict{judge.VerdictPending, judge.VerdictAccepted}},
		history: &fakeHistory{},
		account: &fakeAccount{},
	}
	svc := Services{
		Connect: func(config.Config) (Backend, error) {
			h.connects++
			return Backend{
				Problems: h.problems,
				Poller:   &submit.Poller{Judge: h.judge, MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
				Account:  h.account,
				ProblemURL: func(slug string) string {
					return "https://judge.test/problems/" + slug + "/"
				},
			}, nil
		},
		Scaffolder: scaffold.Generator{},
		History:    h.history,
		Clipboard: func(s string) error {
			h.copied = s
			return nil
		},
		SaveConfig: func(c config.Config) error {
			h.saved = append(h.saved, c)
			return nil
		},
	}
	mo := MachineOptions{Config: cfg, Configured: configured}
	for _, o := range opts {
		o(&mo)
	}
	m, err := NewMachine(context.Background(), svc, mo)
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	h.m = m
	return h
}

// drain runs cmd and everything it leads to, feeding results back into the
// machine on the test goroutine.
func drain(t *testing.T, m *Machine, cmd tea.Cmd) {
	t.Helper()
	msgs := make(chan tea.Msg)
	pending := 0
	launch := func(c tea.Cmd) {
		if c == nil {
			return
		}
		pending++
		go func() { msgs <- c() }()
	}
	launch(cmd)
	timeout := time.After(5 * time.Second)
	for pending > 0 {
		select {
		case msg := <-msgs:
			pending--
			switch msg := msg.(type) {
			case nil, tea.QuitMsg:
			case tea.BatchMsg:
				for _, c := range msg {
					launch(c)
				}
			default:
				launch(m.Update(msg))
			}
		case <-timeout:
			t.Fatalf("timed out draining commands")
		}
	}
}

// openRemoveElement walks browse -> detail for problem 27.
func openRemoveElement(t *testing.T, h *harness) {
	t.Helper()
	drain(t, h.m, h.m.Init())
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentMoveCursor, Delta: 1}))
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSelect}))
	if h.m.State() != StateDetail || !h.m.View().Detail.Loaded {
		t.Fatalf("expected loaded detail, got %s %+v", h.m.State(), h.m.View().Detail)
	}
}

func TestBrowseThenSelectLoadsDetail(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)

	vm := h.m.View()
	if len(vm.Browse.Problems) != 2 || vm.Browse.Loading {
		t.Fatalf("expected loaded browse page, got %+v", vm.Browse)
	}
	if vm.Detail.Problem.Title != "Remove Element" {
		t.Fatalf("expected remove element, got %+v", vm.Detail.Problem)
	}
	if vm.Detail.URL != "https://judge.test/problems/remove-element/" {
		t.Fatalf("unexpected url %q", vm.Detail.URL)
	}

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentBack}))
	if h.m.State() != StateBrowse || h.problems.listCalls != 1 {
		t.Fatalf("expected browse without refetch, got %s after %d list calls", h.m.State(), h.problems.listCalls)
	}
	// Selecting again reuses the loaded detail.
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSelect}))
	if h.problems.detailCalls != 1 {
		t.Fatalf("expected one detail fetch, got %d", h.problems.detailCalls)
	}
}

func TestFirstRunStartsInSetup(t *testing.T) {
	h := newHarness(t, false)
	if h.m.State() != StateSetup || !h.m.View().Setup.FirstRun {
		t.Fatalf("expected first-run setup, got %s", h.m.State())
	}
	if h.m.Init() != nil {
		t.Fatalf("expected no list load before setup")
	}
}

func TestScaffoldCreatesSolutionFile(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))
	vm := h.m.View()
	if vm.State != StateSolve || vm.Solve.Scaffolding {
		t.Fatalf("expected solve with scaffold done, got %s %+v", vm.State, vm.Solve)
	}
	want := filepath.Join(h.m.Config().WorkspaceRoot, "27-remove-element", "solution.py")
	if vm.Solve.Path != want {
		t.Fatalf("expected %s, got %s", want, vm.Solve.Path)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected scaffold on disk: %v", err)
	}
	if !strings.Contains(vm.Solve.Preview, "removeElement") {
		t.Fatalf("expected preview of the stub, got %q", vm.Solve.Preview)
	}
	if h.m.LastDir() != filepath.Dir(want) {
		t.Fatalf("expected last dir %s, got %s", filepath.Dir(want), h.m.LastDir())
	}
	if len(h.history.records) != 1 || h.history.records[0].ProblemID != "27" {
		t.Fatalf("expected scaffold recorded, got %+v", h.history.records)
	}
}

func TestDetailListsEarlierScaffolds(t *testing.T) {
	h := newHarness(t, true)
	h.history.records = []state.ScaffoldRecord{
		{ProblemID: "27", Language: "golang", Path: "/old/27-remove-element/solution.go"},
		{ProblemID: "1", Language: "golang", Path: "/old/1-two-sum/solution.go"},
	}
	openRemoveElement(t, h)

	got := h.m.View().Detail.Scaffolds
	if len(got) != 1 || got[0] != "golang: /old/27-remove-element/solution.go" {
		t.Fatalf("expected the earlier go scaffold, got %v", got)
	}

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))
	path := h.m.View().Solve.Path
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentReturn}))
	got = h.m.View().Detail.Scaffolds
	if len(got) != 2 || got[1] != "python3: "+path {
		t.Fatalf("expected the new scaffold listed too, got %v", got)
	}
}

func TestStatsLoadWithBrowseAndRefreshAfterAccepted(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	stats := h.m.View().Browse.Stats
	if stats == nil || stats.Username != "alice" || h.account.calls.Load() != 1 {
		t.Fatalf("expected stats loaded once with the list, got %+v after %d calls", stats, h.account.calls.Load())
	}

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentBack}))
	if got := h.account.calls.Load(); got != 1 {
		t.Fatalf("expected no refetch without a new solve, got %d calls", got)
	}

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSelect}))
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))
	h.account.solved.Store(1)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSubmit}))
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentReturn}))
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentBack}))
	if got := h.account.calls.Load(); got != 2 {
		t.Fatalf("expected a refetch after an accepted submission, got %d calls", got)
	}
	if solved, total := h.m.View().Browse.Stats.Solved(); solved != 1 || total != 3 {
		t.Fatalf("expected 1/3 solved, got %d/%d", solved, total)
	}
}

func TestScaffoldFailureReturnsToDetail(t *testing.T) {
	h := newHarness(t, true)
	root := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.m.cfg.WorkspaceRoot = root
	openRemoveElement(t, h)

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))
	vm := h.m.View()
	if vm.State != StateDetail || !vm.StatusErr {
		t.Fatalf("expected detail with an error status, got %s %q", vm.State, vm.Status)
	}
	if h.m.LastDir() != "" {
		t.Fatalf("expected no last dir, got %q", h.m.LastDir())
	}
}

func TestSubmitAcceptedMarksSolved(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSubmit}))
	vm := h.m.View()
	if vm.Solve.InFlight {
		t.Fatalf("expected submission finished")
	}
	if vm.Solve.Submission == nil || vm.Solve.Submission.Verdict != judge.VerdictAccepted {
		t.Fatalf("expected accepted, got %+v", vm.Solve.Submission)
	}
	if !strings.HasPrefix(vm.Status, "Accepted") || vm.StatusErr {
		t.Fatalf("unexpected status %q", vm.Status)
	}
	if vm.Solve.Submission.Language != "python3" {
		t.Fatalf("expected remote language slug, got %q", vm.Solve.Submission.Language)
	}
	if len(h.problems.invalidated) != 1 || h.problems.invalidated[0] != "27" {
		t.Fatalf("expected status invalidated, got %v", h.problems.invalidated)
	}
	for _, r := range vm.Browse.Problems {
		if r.ID == "27" && r.Status != judge.StatusSolved {
			t.Fatalf("expected row marked solved, got %s", r.Status)
		}
	}
	if vm.Detail.Problem.Status != judge.StatusSolved {
		t.Fatalf("expected detail marked solved, got %s", vm.Detail.Problem.Status)
	}
}

func TestRunShowsAnswersWithoutMarkingSolved(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentRun}))
	vm := h.m.View()
	if vm.Solve.InFlight || vm.Solve.Running {
		t.Fatalf("expected run finished")
	}
	res := vm.Solve.Submission
	if res == nil || !res.Run || res.Verdict != judge.VerdictAccepted {
		t.Fatalf("expected run result, got %+v", res)
	}
	if vm.Status != "Examples passed (1/1)" || vm.StatusErr {
		t.Fatalf("unexpected status %q", vm.Status)
	}
	if h.judge.runs != 1 || h.judge.submits != 0 {
		t.Fatalf("expected one run and no submission, got runs=%d submits=%d", h.judge.runs, h.judge.submits)
	}
	if len(h.problems.invalidated) != 0 || vm.Detail.Problem.Status != judge.StatusUntouched {
		t.Fatalf("expected a run to leave the solved status alone")
	}
}

func TestRunAndSubmitShareOneSlot(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	gate := make(chan struct{})
	h.judge.gate = gate
	first := h.m.Dispatch(Intent{Kind: IntentRun})
	if first == nil || !h.m.View().Solve.Running {
		t.Fatalf("expected run in flight")
	}
	if h.m.Dispatch(Intent{Kind: IntentSubmit}) != nil {
		t.Fatalf("expected submit during a run to be refused")
	}
	close(gate)
	drain(t, h.m, first)
	if h.judge.submits != 0 || h.judge.runs != 1 {
		t.Fatalf("expected only the run, got runs=%d submits=%d", h.judge.runs, h.judge.submits)
	}
}

func TestPartialTokensStartInSetupWithReason(t *testing.T) {
	h := newHarness(t, true, func(o *MachineOptions) {
		o.Config.SessionToken = "sid"
		o.SetupReason = "Only one of the session and CSRF tokens is set"
	})
	vm := h.m.View()
	if vm.State != StateSetup || vm.Setup.FirstRun {
		t.Fatalf("expected setup for a loaded config, got %s first=%v", vm.State, vm.Setup.FirstRun)
	}
	if vm.Setup.Reason == "" || vm.Setup.Form.SessionToken != "sid" {
		t.Fatalf("expected reason and kept token, got %+v", vm.Setup)
	}
	if h.m.Init() != nil {
		t.Fatalf("expected no list load before setup")
	}
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	gate := make(chan struct{})
	h.judge.gate = gate
	first := h.m.Dispatch(Intent{Kind: IntentSubmit})
	if first == nil || !h.m.View().Solve.InFlight {
		t.Fatalf("expected submission in flight")
	}
	if second := h.m.Dispatch(Intent{Kind: IntentSubmit}); second != nil {
		t.Fatalf("expected second submit to be refused")
	}
	if !strings.Contains(h.m.View().Status, "already") {
		t.Fatalf("expected in-flight notice, got %q", h.m.View().Status)
	}
	close(gate)
	drain(t, h.m, first)
	if h.judge.submits != 1 {
		t.Fatalf("expected one submission, got %d", h.judge.submits)
	}
}

func TestLeavingSolveStopsWaiting(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	gate := make(chan struct{})
	h.judge.gate = gate
	cmd := h.m.Dispatch(Intent{Kind: IntentSubmit})
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentReturn}))
	if h.m.State() != StateDetail || h.m.View().Solve.InFlight {
		t.Fatalf("expected detail with nothing in flight, got %s", h.m.State())
	}
	drain(t, h.m, cmd)
	if h.m.View().Solve.Submission != nil {
		t.Fatalf("expected cancelled wait to leave no verdict")
	}
	close(gate)
}

func TestAuthFailureFallsBackToSetup(t *testing.T) {
	h := newHarness(t, true)
	h.judge.submitErr = &common.Error{Kind: common.ErrAuth, Op: "submitSolution", Detail: "no session tokens configured", Err: common.ErrSetupRequired}
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentScaffold}))

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentSubmit}))
	vm := h.m.View()
	if vm.State != StateSetup {
		t.Fatalf("expected setup after auth failure, got %s", vm.State)
	}
	if vm.Setup.Reason == "" || vm.Setup.FirstRun {
		t.Fatalf("expected a reason on a non-first-run setup, got %+v", vm.Setup)
	}
	if vm.Setup.Form.WorkspaceRoot != h.m.Config().WorkspaceRoot {
		t.Fatalf("expected form prefilled from config, got %+v", vm.Setup.Form)
	}
}

func TestDetailLoadCancelledOnBack(t *testing.T) {
	h := newHarness(t, true)
	drain(t, h.m, h.m.Init())
	h.problems.gate = make(chan struct{})
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentMoveCursor, Delta: 1}))

	cmd := h.m.Dispatch(Intent{Kind: IntentSelect})
	if !h.m.View().Detail.Loading {
		t.Fatalf("expected detail loading")
	}
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentBack}))
	drain(t, h.m, cmd)
	vm := h.m.View()
	if vm.State != StateBrowse || vm.StatusErr {
		t.Fatalf("expected quiet return to browse, got %s %q", vm.State, vm.Status)
	}
	if vm.Detail.Loaded {
		t.Fatalf("expected cancelled detail to stay unloaded")
	}
}

func TestStaleListResultIsDiscarded(t *testing.T) {
	h := newHarness(t, true)
	h.m.Init()
	stale := h.m.browse.load.token

	cmd := h.m.Dispatch(Intent{Kind: IntentSetFilter, Filter: judge.ListFilter{Difficulty: judge.DifficultyHard}})
	h.m.Update(listLoadedMsg{token: stale, page: h.problems.pages[""]})
	if rows := h.m.View().Browse.Problems; len(rows) != 0 {
		t.Fatalf("expected stale page ignored, got %+v", rows)
	}
	drain(t, h.m, cmd)
	rows := h.m.View().Browse.Problems
	if len(rows) != 1 || rows[0].ID != "42" {
		t.Fatalf("expected hard page, got %+v", rows)
	}
	if h.history.settings["browse.difficulty"] != "Hard" {
		t.Fatalf("expected filter persisted, got %v", h.history.settings)
	}
}

func TestPagingStaysInBounds(t *testing.T) {
	h := newHarness(t, true)
	drain(t, h.m, h.m.Init())
	if cmd := h.m.Dispatch(Intent{Kind: IntentNextPage}); cmd != nil {
		t.Fatalf("expected no fetch past the last page")
	}
	if cmd := h.m.Dispatch(Intent{Kind: IntentPrevPage}); cmd != nil {
		t.Fatalf("expected no fetch before the first page")
	}
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentMoveCursor, Delta: 10}))
	if c := h.m.View().Browse.Cursor; c != 1 {
		t.Fatalf("expected cursor clamped to 1, got %d", c)
	}
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentMoveCursor, Delta: -10}))
	if c := h.m.View().Browse.Cursor; c != 0 {
		t.Fatalf("expected cursor clamped to 0, got %d", c)
	}
}

func TestConfigureRejectsPartialTokens(t *testing.T) {
	h := newHarness(t, false)
	form := h.m.View().Setup.Form
	form.SessionToken = "only-session"
	if cmd := h.m.Dispatch(Intent{Kind: IntentConfigure, Form: form}); cmd != nil {
		t.Fatalf("expected no work for partial tokens")
	}
	if h.m.State() != StateSetup || !h.m.View().StatusErr {
		t.Fatalf("expected setup with an error, got %s", h.m.State())
	}
}

func TestConfigureSavesAndBrowses(t *testing.T) {
	h := newHarness(t, false)
	form := h.m.View().Setup.Form
	form.Language = "golang"
	form.SessionToken = "s"
	form.CSRFToken = "c"

	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentConfigure, Form: form}))
	if h.m.State() != StateBrowse {
		t.Fatalf("expected browse, got %s", h.m.State())
	}
	if h.connects != 2 {
		t.Fatalf("expected backend rebuilt, got %d connects", h.connects)
	}
	if len(h.saved) != 1 || h.saved[0].Language != "go" {
		t.Fatalf("expected normalised config saved, got %+v", h.saved)
	}
	if len(h.m.View().Browse.Problems) != 2 {
		t.Fatalf("expected list loaded after setup")
	}
}

func TestCopyLinkUsesClipboard(t *testing.T) {
	h := newHarness(t, true)
	openRemoveElement(t, h)
	drain(t, h.m, h.m.Dispatch(Intent{Kind: IntentCopyLink}))
	if h.copied != "https://judge.test/problems/remove-element/" {
		t.Fatalf("unexpected clipboard %q", h.copied)
	}
	if !strings.HasPrefix(h.m.View().Status, "Copied") {
		t.Fatalf("unexpected status %q", h.m.View().Status)
	}
}

func TestQuitCancelsAndExits(t *testing.T) {
	h := newHarness(t, true)
	drain(t, h.m, h.m.Init())
	cmd := h.m.Dispatch(Intent{Kind: IntentQuit})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if h.m.State() != StateExited {
		t.Fatalf("expected exited, got %s", h.m.State())
	}
	if h.m.Dispatch(Intent{Kind: IntentSelect}) != nil || h.m.State() != StateExited {
		t.Fatalf("expected exited to absorb intents")
	}
}

func TestEndToEndAgainstDemoJudge(t *testing.T) {
	cat, err := devtools.BuiltinCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	demo := devtools.New(devtools.Options{Catalog: cat, PendingPolls: 1})
	srv := httptest.NewServer(demo.Handler())
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Language = "python3"
	cfg.BaseURL = srv.URL
	cfg.SessionToken, cfg.CSRFToken = "demo", "demo"
	cfg.Poll = config.PollConfig{MaxAttempts: 5, InitialDelayMS: 1, MaxDelayMS: 1}

	store, err := state.NewSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}

	m, err := NewMachine(context.Background(), Services{
		Connect:    Connector(store, nil),
		Scaffolder: scaffold.Generator{BaseURL: srv.URL},
		History:    store,
	}, MachineOptions{Config: cfg, Configured: true})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}

	drain(t, m, m.Init())
	if rows := m.View().Browse.Problems; len(rows) == 0 || rows[0].ID != "1" {
		t.Fatalf("expected catalog listing, got %+v", rows)
	}
	drain(t, m, m.Dispatch(Intent{Kind: IntentSelect}))
	drain(t, m, m.Dispatch(Intent{Kind: IntentScaffold}))
	path := m.View().Solve.Path
	if path == "" {
		t.Fatalf("expected scaffold, status %q", m.View().Status)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scaffold: %v", err)
	}
	solved := strings.Replace(string(raw), "        pass", "        seen = {}\n        for i, n in enumerate(nums):\n            if target - n in seen:\n                return [seen[target - n], i]\n            seen[n] = i", 1)
	if err := os.WriteFile(path, []byte(solved), 0o644); err != nil {
		t.Fatalf("write solution: %v", err)
	}

	drain(t, m, m.Dispatch(Intent{Kind: IntentRun}))
	run := m.View().Solve.Submission
	if run == nil || !run.Run || run.Verdict != judge.VerdictAccepted || len(run.Outputs) != 2 {
		t.Fatalf("expected passing run of the examples, got %+v (status %q)", run, m.View().Status)
	}

	drain(t, m, m.Dispatch(Intent{Kind: IntentSubmit}))
	sub := m.View().Solve.Submission
	if sub == nil || sub.Verdict != judge.VerdictAccepted {
		t.Fatalf("expected accepted, got %+v (status %q)", sub, m.View().Status)
	}

	last, err := store.LastScaffold(context.Background())
	if err != nil || last == nil || last.Path != path {
		t.Fatalf("expected scaffold history for %s, got %+v %v", path, last, err)
	}

	drain(t, m, m.Dispatch(Intent{Kind: IntentReturn}))
	drain(t, m, m.Dispatch(Intent{Kind: IntentBack}))
	stats := m.View().Browse.Stats
	if stats == nil || stats.Username != devtools.DemoUser {
		t.Fatalf("expected demo user stats, got %+v", stats)
	}
	if solved, total := stats.Solved(); solved != 1 || total != len(cat.Problems) {
		t.Fatalf("expected 1/%d solved, got %d/%d", len(cat.Problems), solved, total)
	}
}
