package ui

import (
	"context"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"lcterm/internal/app"
	"lcterm/internal/config"
	"lcterm/internal/devtools"
	"lcterm/internal/judge"
	"lcterm/internal/scaffold"
)

func newTestRoot(t *testing.T, configured bool) *Root {
	t.Helper()
	cat, err := devtools.BuiltinCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	srv := httptest.NewServer(devtools.New(devtools.Options{Catalog: cat}).Handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Language = "python3"
	cfg.BaseURL = srv.URL
	cfg.SessionToken, cfg.CSRFToken = "demo", "demo"
	cfg.Poll = config.PollConfig{MaxAttempts: 5, InitialDelayMS: 1, MaxDelayMS: 1}

	m, err := app.NewMachine(context.Background(), app.Services{
		Connect:    app.Connector(nil, nil),
		Scaffolder: scaffold.Generator{BaseURL: srv.URL},
	}, app.MachineOptions{Config: cfg, Configured: configured})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	r := New(Options{Machine: m, MotionLevel: "off"})
	r.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return r
}

// pump runs cmd and feeds its messages back into r until done reports true.
// Timer-driven UI messages are dropped so the loop settles.
func pump(t *testing.T, r *Root, cmd tea.Cmd, done func() bool) {
	t.Helper()
	msgs := make(chan tea.Msg, 64)
	launch := func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() { msgs <- c() }()
	}
	launch(cmd)
	deadline := time.After(5 * time.Second)
	for !done() {
		select {
		case msg := <-msgs:
			switch msg := msg.(type) {
			case nil, tea.QuitMsg, spinner.TickMsg, clockMsg, animateMsg:
			case tea.BatchMsg:
				for _, c := range msg {
					launch(c)
				}
			default:
				_, c := r.Update(msg)
				launch(c)
			}
		case <-deadline:
			t.Fatalf("timed out in %s, status %q", r.vm.State, r.vm.Status)
		}
	}
}

func press(r *Root, k string) tea.Cmd {
	var msg tea.KeyPressMsg
	switch k {
	case "enter":
		msg = tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		msg = tea.KeyPressMsg{Code: tea.KeyEsc}
	case "down":
		msg = tea.KeyPressMsg{Code: tea.KeyDown}
	default:
		if c, ok := strings.CutPrefix(k, "ctrl+"); ok {
			msg = tea.KeyPressMsg{Code: []rune(c)[0], Mod: tea.ModCtrl}
		} else {
			msg = tea.KeyPressMsg{Code: []rune(k)[0], Text: k}
		}
	}
	_, cmd := r.Update(msg)
	return cmd
}

func screen(r *Root) string {
	return ansi.Strip(r.render())
}

func listReady(r *Root) func() bool {
	return func() bool { return len(r.vm.Browse.Problems) > 0 && !r.vm.Browse.Loading }
}

func TestBrowseListsProblems(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))

	out := screen(r)
	if !strings.Contains(out, "Two Sum") || !strings.Contains(out, "Problems 1/1") {
		t.Fatalf("expected problem list, got:\n%s", out)
	}
}

func TestBrowseShowsSolvedCounts(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), func() bool { return listReady(r)() && r.vm.Browse.Stats != nil })
	if out := screen(r); !strings.Contains(out, devtools.DemoUser) || !strings.Contains(out, "solved 0/") {
		t.Fatalf("expected the progress line, got:\n%s", out)
	}
}

func TestEnterOpensDetailAndEscReturns(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))
	press(r, "down")
	press(r, "down")

	pump(t, r, press(r, "enter"), func() bool { return r.vm.Detail.Loaded })
	if r.vm.Detail.Problem.ID != "27" {
		t.Fatalf("expected problem 27, got %q", r.vm.Detail.Problem.ID)
	}
	if out := screen(r); !strings.Contains(out, "27. Remove Element") {
		t.Fatalf("expected detail header, got:\n%s", out)
	}
	if md := problemMarkdown(r.vm.Detail.Problem, r.vm.Detail.URL, nil); !strings.Contains(md, "## Example 1") {
		t.Fatalf("expected examples in description, got:\n%s", md)
	}

	press(r, "esc")
	if r.vm.State != app.StateBrowse {
		t.Fatalf("expected browse after esc, got %s", r.vm.State)
	}
}

func TestDifficultyKeyFiltersList(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))

	pump(t, r, press(r, "d"), func() bool {
		return r.vm.Browse.Filter.Difficulty == judge.DifficultyEasy && listReady(r)()
	})
	for _, p := range r.vm.Browse.Problems {
		if p.Difficulty != judge.DifficultyEasy {
			t.Fatalf("expected only easy problems, got %+v", p)
		}
	}
	if !strings.Contains(screen(r), "difficulty:Easy") {
		t.Fatalf("expected filter line to show difficulty")
	}
}

func TestSearchBoxAppliesTags(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))

	press(r, "/")
	if !r.searching {
		t.Fatalf("expected search box to open")
	}
	for _, c := range "#stack" {
		press(r, string(c))
	}
	pump(t, r, press(r, "enter"), func() bool {
		return slices.Equal(r.vm.Browse.Filter.Tags, []string{"stack"}) && listReady(r)()
	})
	if r.searching {
		t.Fatalf("expected search box to close")
	}
	if r.vm.Browse.Total != 2 {
		t.Fatalf("expected 2 stack problems, got %d", r.vm.Browse.Total)
	}
}

func TestScaffoldThenSubmitShowsVerdict(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))
	pump(t, r, press(r, "enter"), func() bool { return r.vm.Detail.Loaded })

	pump(t, r, press(r, "s"), func() bool { return r.vm.Solve.Path != "" })
	if r.vm.State != app.StateSolve {
		t.Fatalf("expected solve, got %s", r.vm.State)
	}
	if !strings.Contains(screen(r), "solution.py") {
		t.Fatalf("expected solution path on screen")
	}

	pump(t, r, press(r, "ctrl+s"), func() bool { return r.vm.Solve.Submission != nil })
	sub := r.vm.Solve.Submission
	if !strings.Contains(screen(r), string(sub.Verdict)) {
		t.Fatalf("expected verdict %q on screen, got:\n%s", sub.Verdict, screen(r))
	}

	press(r, "esc")
	if r.vm.State != app.StateDetail {
		t.Fatalf("expected detail after esc, got %s", r.vm.State)
	}
}

func TestRunKeyShowsExampleCases(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))
	pump(t, r, press(r, "enter"), func() bool { return r.vm.Detail.Loaded })
	pump(t, r, press(r, "s"), func() bool { return r.vm.Solve.Path != "" })

	pump(t, r, press(r, "r"), func() bool { return r.vm.Solve.Submission != nil })
	sub := r.vm.Solve.Submission
	if !sub.Run {
		t.Fatalf("expected a run result, got %+v", sub)
	}
	out := screen(r)
	if !strings.Contains(out, "Run: ") || !strings.Contains(out, "Case 1") {
		t.Fatalf("expected run cases on screen, got:\n%s", out)
	}
	if r.vm.State != app.StateSolve {
		t.Fatalf("expected to stay in solve, got %s", r.vm.State)
	}
}

func TestSetupFormSavesAndBrowses(t *testing.T) {
	r := newTestRoot(t, false)
	r.Init()
	if r.vm.State != app.StateSetup {
		t.Fatalf("expected setup on first run, got %s", r.vm.State)
	}
	if got := r.form.value(); got.Language != "python3" {
		t.Fatalf("expected form filled from config, got %+v", got)
	}
	if !strings.Contains(screen(r), "Workspace") {
		t.Fatalf("expected setup form on screen")
	}

	pump(t, r, press(r, "ctrl+s"), listReady(r))
	if r.vm.State != app.StateBrowse {
		t.Fatalf("expected browse after saving, got %s", r.vm.State)
	}
}

func TestSetupLanguageCycles(t *testing.T) {
	r := newTestRoot(t, false)
	r.Init()
	before := r.form.value().Language
	press(r, "ctrl+l")
	after := r.form.value().Language
	if after == before || !slices.Contains(r.vm.Setup.Languages, after) {
		t.Fatalf("expected next supported language after %q, got %q", before, after)
	}
}

func TestCopyLinkWithoutClipboardShowsURL(t *testing.T) {
	r := newTestRoot(t, true)
	pump(t, r, r.Init(), listReady(r))
	pump(t, r, press(r, "enter"), func() bool { return r.vm.Detail.Loaded })

	press(r, "y")
	if !strings.Contains(r.vm.Status, "/problems/two-sum/") {
		t.Fatalf("expected problem url in status, got %q", r.vm.Status)
	}
	if !strings.Contains(screen(r), "/problems/two-sum/") {
		t.Fatalf("expected toast with url")
	}
}

func TestCtrlCQuitsFromSetup(t *testing.T) {
	r := newTestRoot(t, false)
	r.Init()
	if cmd := press(r, "ctrl+c"); cmd == nil {
		t.Fatalf("expected quit command")
	}
	if r.machine.State() != app.StateExited {
		t.Fatalf("expected exited, got %s", r.machine.State())
	}
	if screen(r) != "" {
		t.Fatalf("expected empty screen after exit")
	}
}

func TestTooSmallTerminal(t *testing.T) {
	r := newTestRoot(t, true)
	r.Update(tea.WindowSizeMsg{Width: 50, Height: 12})
	if !strings.Contains(screen(r), "Terminal too small") {
		t.Fatalf("expected too-small notice, got:\n%s", screen(r))
	}
}

func TestFitWidthHandlesStyledText(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("hello world")
	if got := fitWidth(styled, 5); ansi.StringWidth(got) != 5 {
		t.Fatalf("expected width 5, got %d (%q)", ansi.StringWidth(got), got)
	}
	if got := fitWidth("ab", 4); got != "ab  " {
		t.Fatalf("expected padded text, got %q", got)
	}
}

func TestParseQuery(t *testing.T) {
	text, tags := parseQuery("two  sum #Array #dp #")
	if text != "two sum" {
		t.Fatalf("expected free text, got %q", text)
	}
	if !slices.Equal(tags, []string{"array", "dp"}) {
		t.Fatalf("expected tags, got %v", tags)
	}
	if got := formatQuery(judge.ListFilter{Search: "two sum", Tags: tags}); got != "two sum #array #dp" {
		t.Fatalf("expected round trip, got %q", got)
	}
}

func TestHighlight(t *testing.T) {
	src := "def f(x):\n    return x + 1"
	if got := highlight(src, "python3", ""); got != src {
		t.Fatalf("expected plain source without a style")
	}
	got := highlight(src, "python3", "monokai")
	if !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected escape codes in highlighted output")
	}
	if ansi.Strip(got) != src {
		t.Fatalf("expected text unchanged, got %q", ansi.Strip(got))
	}
}
