package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/dustin/go-humanize"

	"lcterm/internal/common"
	"lcterm/internal/config"
	"lcterm/internal/credentials"
	"lcterm/internal/editor"
	"lcterm/internal/judge"
	"lcterm/internal/scaffold"
	"lcterm/internal/state"
	"lcterm/internal/submit"
)

const (
	loginTimeout  = 5 * time.Minute
	previewLines  = 60
	progressQueue = 16
)

// op tracks one background task. A result is applied only while its token
// is still the op's current token.
type op struct {
	token  uint64
	cancel context.CancelFunc
}

type setupState struct {
	form     SetupForm
	reason   string
	firstRun bool
	login    op
	busy     bool
}

type browseState struct {
	filter  judge.ListFilter
	page    judge.ProblemPage
	rows    []judge.ProblemSummary
	cursor  int
	loading bool
	stale   bool
	staleAt time.Time
	load    op
}

type statsState struct {
	value *judge.UserStats
	dirty bool
	load  op
}

type detailState struct {
	id        string
	problem   judge.Problem
	loaded    bool
	loading   bool
	scaffolds []string
	load      op
}

type solveState struct {
	problem     judge.Problem
	lang        scaffold.Language
	path        string
	preview     string
	scaffolding bool
	scaffold    op
	inFlight    bool
	running     bool
	submit      op
	submitCtx   context.Context
	progress    chan submit.Progress
	attempt     int
	maxAttempts int
	sub         *judge.Submission
	edit        op
}

// Machine is the application state. It runs on the UI goroutine: intents
// and task results go in, tea.Cmds come out, and every blocking call runs
// inside one of those Cmds.
type Machine struct {
	svc     Services
	cfg     config.Config
	backend Backend
	root    context.Context
	stop    context.CancelFunc

	tag       StateTag
	seq       uint64
	status    string
	statusErr bool
	statusSeq uint64
	lastDir   string

	setup  setupState
	browse browseState
	stats  statsState
	detail detailState
	solve  solveState
}

type MachineOptions struct {
	Config config.Config
	// Configured is false on first run; the machine then starts in setup.
	Configured bool
	// SetupReason is shown on the setup screen when a loaded config still
	// needs fixing.
	SetupReason string
	Filter      judge.ListFilter
	Notice      string
}

func NewMachine(ctx context.Context, svc Services, opts MachineOptions) (*Machine, error) {
	if svc.Connect == nil {
		return nil, errors.New("app: Services.Connect is required")
	}
	backend, err := svc.Connect(opts.Config)
	if err != nil {
		return nil, err
	}
	root, stop := context.WithCancel(ctx)
	m := &Machine{
		svc:     svc,
		cfg:     opts.Config,
		backend: backend,
		root:    root,
		stop:    stop,
		tag:     StateBrowse,
	}
	m.browse.filter = opts.Filter.Normalize()
	m.browse.filter.Skip = 0
	switch {
	case opts.SetupReason != "":
		m.tag = StateSetup
		m.setup.form = formFrom(opts.Config)
		m.setup.reason = opts.SetupReason
	case !opts.Configured:
		m.tag = StateSetup
		m.setup.firstRun = true
		m.setup.form = formFrom(opts.Config)
	}
	if opts.Notice != "" {
		m.setStatus(opts.Notice, true)
	}
	return m, nil
}

func (m *Machine) Init() tea.Cmd {
	if m.tag == StateBrowse {
		return tea.Batch(m.loadList(), m.loadStats())
	}
	return nil
}

func (m *Machine) State() StateTag { return m.tag }

// LastDir is the directory of the most recent scaffold, or "".
func (m *Machine) LastDir() string { return m.lastDir }

func (m *Machine) Config() config.Config { return m.cfg }

// Dispatch applies one intent.
func (m *Machine) Dispatch(in Intent) tea.Cmd {
	next, handled := Transition(m.tag, in.Kind)
	if !handled {
		return nil
	}
	m.svc.Logger.Debug("app.intent", map[string]any{"state": m.tag.String(), "intent": in.Kind.String(), "next": next.String()})

	switch in.Kind {
	case IntentQuit:
		m.leave(StateExited)
		m.tag = StateExited
		m.stop()
		return tea.Quit
	case IntentConfigure:
		return m.configure(in.Form)
	case IntentBrowserLogin:
		return m.browserLogin()
	case IntentSettings:
		m.leave(StateSetup)
		m.tag = StateSetup
		m.setup = setupState{form: formFrom(m.cfg)}
		return nil
	case IntentSelect:
		return m.selectProblem()
	case IntentBack:
		m.leave(StateBrowse)
		m.tag = StateBrowse
		var stats tea.Cmd
		if m.stats.dirty {
			stats = m.loadStats()
		}
		if (len(m.browse.page.Problems) == 0 || m.browse.stale) && !m.browse.loading {
			return tea.Batch(m.loadList(), stats)
		}
		return stats
	case IntentSetFilter:
		return m.setFilter(in.Filter)
	case IntentMoveCursor:
		m.moveCursor(in.Delta)
		return nil
	case IntentNextPage:
		return m.turnPage(1)
	case IntentPrevPage:
		return m.turnPage(-1)
	case IntentRefresh:
		if m.tag == StateDetail {
			m.backend.Problems.InvalidateStatus(m.detail.id)
			return m.loadDetail(m.detail.id)
		}
		m.backend.Problems.InvalidateList(m.browse.filter)
		return tea.Batch(m.loadList(), m.loadStats())
	case IntentScaffold:
		return m.scaffold()
	case IntentReturn:
		m.leave(StateDetail)
		m.tag = StateDetail
		return nil
	case IntentSubmit:
		return m.startJob(false)
	case IntentRun:
		return m.startJob(true)
	case IntentOpenEditor:
		return m.openEditor()
	case IntentCopyLink:
		return m.copyLink()
	}
	return nil
}

// Update folds a finished task back into the state. Messages that are not
// the machine's return nil.
func (m *Machine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case listLoadedMsg:
		return m.onList(msg)
	case snapshotMsg:
		m.onSnapshot(msg)
	case detailLoadedMsg:
		m.onDetail(msg)
	case statsLoadedMsg:
		m.onStats(msg)
	case scaffoldDoneMsg:
		m.onScaffold(msg)
	case submitProgressMsg:
		return m.onProgress(msg)
	case submitDoneMsg:
		m.onSubmitted(msg)
	case loginDoneMsg:
		m.onLogin(msg)
	case editorClosedMsg:
		return m.onEditorClosed(msg)
	case previewMsg:
		if msg.token == m.solve.edit.token && m.tag == StateSolve {
			m.end(&m.solve.edit)
			m.solve.preview = msg.preview
		}
	case statusMsg:
		m.setStatus(msg.text, msg.err)
	}
	return nil
}

func (m *Machine) View() ViewModel {
	vm := ViewModel{
		State:     m.tag,
		Status:    m.status,
		StatusErr: m.statusErr,
		StatusSeq: m.statusSeq,
	}
	vm.Setup = SetupView{
		Form:      m.setup.form,
		Reason:    m.setup.reason,
		FirstRun:  m.setup.firstRun,
		LoggingIn: m.setup.busy,
	}
	for _, l := range scaffold.Languages() {
		vm.Setup.Languages = append(vm.Setup.Languages, string(l))
	}

	f := m.browse.filter
	vm.Browse = BrowseView{
		Filter:   f,
		Problems: append([]judge.ProblemSummary(nil), m.browse.rows...),
		Cursor:   m.browse.cursor,
		Total:    m.browse.page.Total,
		Page:     f.Skip/f.Limit + 1,
		Pages:    max(1, (m.browse.page.Total+f.Limit-1)/f.Limit),
		Loading:  m.browse.loading,
		Stale:    m.browse.stale,
		StaleAt:  m.browse.staleAt,
	}
	if m.stats.value != nil {
		s := *m.stats.value
		s.Counts = slices.Clone(s.Counts)
		vm.Browse.Stats = &s
	}

	vm.Detail = DetailView{
		ID:        m.detail.id,
		Problem:   m.detail.problem,
		Loaded:    m.detail.loaded,
		Loading:   m.detail.loading,
		Scaffolds: slices.Clone(m.detail.scaffolds),
	}
	if m.detail.problem.Slug != "" && m.backend.ProblemURL != nil {
		vm.Detail.URL = m.backend.ProblemURL(m.detail.problem.Slug)
	}

	vm.Solve = SolveView{
		Problem:     m.solve.problem,
		Path:        m.solve.path,
		Language:    string(m.solve.lang),
		Preview:     m.solve.preview,
		Scaffolding: m.solve.scaffolding,
		InFlight:    m.solve.inFlight,
		Running:     m.solve.inFlight && m.solve.running,
		Attempt:     m.solve.attempt,
		MaxAttempts: m.solve.maxAttempts,
	}
	if m.solve.sub != nil {
		s := *m.solve.sub
		vm.Solve.Submission = &s
	}
	return vm
}

// leave cancels work the next state has no use for. Cancellation only stops
// local waiting; a shared cache fetch or a queued submission keeps going.
func (m *Machine) leave(next StateTag) {
	switch m.tag {
	case StateBrowse:
		if next != StateBrowse {
			m.end(&m.browse.load)
			m.browse.loading = false
		}
	case StateDetail:
		if next == StateBrowse || next == StateExited || next == StateSetup {
			m.end(&m.detail.load)
			m.detail.loading = false
		}
	case StateSolve:
		m.end(&m.solve.scaffold)
		m.end(&m.solve.submit)
		m.end(&m.solve.edit)
		m.solve.scaffolding = false
		if m.solve.inFlight {
			m.svc.Logger.Info("app.submit_wait_cancelled", map[string]any{"problem": m.solve.problem.ID})
		}
		m.solve.inFlight = false
	case StateSetup:
		m.end(&m.setup.login)
		m.setup.busy = false
	}
	if next == StateExited {
		m.end(&m.browse.load)
		m.end(&m.detail.load)
	}
}

func (m *Machine) begin(o *op) (context.Context, uint64) {
	m.end(o)
	m.seq++
	ctx, cancel := context.WithCancel(m.root)
	o.token = m.seq
	o.cancel = cancel
	return ctx, o.token
}

func (m *Machine) end(o *op) {
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = nil
	o.token = 0
}

func (m *Machine) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
	m.statusSeq++
}

func (m *Machine) fail(err error) {
	m.setStatus(common.Describe(err), true)
	m.svc.Logger.Warn("app.error", map[string]any{"state": m.tag.String(), "error": err.Error()})
}

// setup

func formFrom(cfg config.Config) SetupForm {
	return SetupForm{
		WorkspaceRoot: cfg.WorkspaceRoot,
		Language:      cfg.Language,
		Editor:        cfg.Editor,
		SessionToken:  cfg.SessionToken,
		CSRFToken:     cfg.CSRFToken,
	}
}

func (m *Machine) configure(form SetupForm) tea.Cmd {
	cfg := m.cfg
	cfg.WorkspaceRoot = form.WorkspaceRoot
	cfg.Language = form.Language
	cfg.Editor = form.Editor
	cfg.SessionToken = form.SessionToken
	cfg.CSRFToken = form.CSRFToken
	if _, err := credentials.NewSession(cfg.SessionToken, cfg.CSRFToken); err != nil {
		m.setStatus("Enter both the session and CSRF tokens, or neither", true)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		m.setStatus("Invalid settings: "+err.Error(), true)
		return nil
	}
	backend, err := m.svc.Connect(cfg)
	if err != nil {
		m.fail(err)
		return nil
	}
	m.leave(StateBrowse)
	m.cfg = cfg
	m.backend = backend
	m.tag = StateBrowse
	m.setup = setupState{}
	m.browse.page = judge.ProblemPage{}
	m.browse.rows = nil
	m.browse.cursor = 0
	m.detail = detailState{}
	m.solve = solveState{}
	m.end(&m.stats.load)
	m.stats = statsState{}
	m.setStatus("Settings saved", false)
	m.svc.Logger.Info("app.configured", map[string]any{"language": cfg.Language, "session": cfg.SessionToken != ""})

	var save tea.Cmd
	if m.svc.SaveConfig != nil {
		save = func() tea.Msg {
			if err := m.svc.SaveConfig(cfg); err != nil {
				return statusMsg{text: "Could not save settings: " + err.Error(), err: true}
			}
			return nil
		}
	}
	return tea.Batch(save, m.loadList(), m.loadStats())
}

func (m *Machine) browserLogin() tea.Cmd {
	if m.svc.Login == nil {
		m.setStatus("Browser login is not available", true)
		return nil
	}
	ctx, token := m.begin(&m.setup.login)
	m.setup.busy = true
	m.setStatus("Log in with the browser window; waiting for the session cookie", false)
	login := m.svc.Login
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, loginTimeout)
		defer cancel()
		s, err := login.Resolve(ctx)
		return loginDoneMsg{token: token, session: s, err: err}
	}
}

func (m *Machine) onLogin(msg loginDoneMsg) {
	if msg.token != m.setup.login.token || m.tag != StateSetup {
		return
	}
	m.end(&m.setup.login)
	m.setup.busy = false
	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			m.setStatus("Browser login failed: "+msg.err.Error(), true)
		}
		return
	}
	m.setup.form.SessionToken = msg.session.ID
	m.setup.form.CSRFToken = msg.session.CSRF
	m.setStatus("Session captured; press enter to save", false)
}

// browse

func (m *Machine) loadList() tea.Cmd {
	ctx, token := m.begin(&m.browse.load)
	m.browse.loading = true
	m.browse.stale = false
	filter := m.browse.filter
	problems := m.backend.Problems
	snapshot := func() tea.Msg {
		page, at, ok := problems.Snapshot(ctx, filter)
		return snapshotMsg{token: token, page: page, at: at, ok: ok}
	}
	live := func() tea.Msg {
		page, err := problems.GetList(ctx, filter)
		return listLoadedMsg{token: token, page: page, err: err}
	}
	return tea.Batch(snapshot, live)
}

func (m *Machine) onSnapshot(msg snapshotMsg) {
	if msg.token != m.browse.load.token || !m.browse.loading || !msg.ok {
		return
	}
	m.setPage(msg.page)
	m.browse.stale = true
	m.browse.staleAt = msg.at
}

func (m *Machine) onList(msg listLoadedMsg) tea.Cmd {
	if msg.token != m.browse.load.token {
		return nil
	}
	m.end(&m.browse.load)
	m.browse.loading = false
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		m.fail(msg.err)
		return nil
	}
	m.browse.stale = false
	m.setPage(msg.page)
	if len(m.browse.rows) == 0 {
		m.setStatus("No problems match this filter", false)
	}
	return nil
}

func (m *Machine) setPage(page judge.ProblemPage) {
	m.browse.page = page
	m.browse.rows = rankBySearch(page.Problems, m.browse.filter.Search)
	m.browse.cursor = clamp(m.browse.cursor, 0, len(m.browse.rows)-1)
}

func (m *Machine) setFilter(f judge.ListFilter) tea.Cmd {
	next := judge.ListFilter{
		Difficulty: f.Difficulty,
		Status:     f.Status,
		Tags:       append([]string(nil), f.Tags...),
		Search:     f.Search,
		Limit:      m.browse.filter.Limit,
	}.Normalize()
	m.browse.filter = next
	m.browse.cursor = 0
	var save tea.Cmd
	if m.svc.History != nil {
		h := m.svc.History
		values := FilterSettings(next)
		ctx := m.root
		save = func() tea.Msg {
			if err := h.SaveSettings(ctx, values); err != nil {
				m.svc.Logger.Warn("app.settings_save_failed", map[string]any{"error": err.Error()})
			}
			return nil
		}
	}
	return tea.Batch(save, m.loadList())
}

func (m *Machine) moveCursor(delta int) {
	m.browse.cursor = clamp(m.browse.cursor+delta, 0, len(m.browse.rows)-1)
}

func (m *Machine) turnPage(dir int) tea.Cmd {
	f := m.browse.filter
	switch {
	case dir > 0 && f.Skip+f.Limit >= m.browse.page.Total:
		m.setStatus("Already on the last page", false)
		return nil
	case dir < 0 && f.Skip == 0:
		m.setStatus("Already on the first page", false)
		return nil
	}
	f.Skip = max(0, f.Skip+dir*f.Limit)
	m.browse.filter = f
	m.browse.cursor = 0
	return m.loadList()
}

// loadStats refreshes the progress line. It is not tied to a screen, so
// leaving Browse does not cancel it.
func (m *Machine) loadStats() tea.Cmd {
	acct := m.backend.Account
	if acct == nil {
		return nil
	}
	ctx, token := m.begin(&m.stats.load)
	return func() tea.Msg {
		s, err := acct.FetchUserStats(ctx)
		return statsLoadedMsg{token: token, stats: s, err: err}
	}
}

func (m *Machine) onStats(msg statsLoadedMsg) {
	if msg.token != m.stats.load.token {
		return
	}
	m.end(&m.stats.load)
	m.stats.dirty = false
	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			m.svc.Logger.Warn("app.stats_failed", map[string]any{"error": msg.err.Error()})
		}
		return
	}
	s := msg.stats
	m.stats.value = &s
}

// detail

func (m *Machine) selectProblem() tea.Cmd {
	if len(m.browse.rows) == 0 {
		m.setStatus("Nothing to open yet", false)
		return nil
	}
	row := m.browse.rows[clamp(m.browse.cursor, 0, len(m.browse.rows)-1)]
	m.leave(StateDetail)
	m.tag = StateDetail
	if m.detail.id != row.ID {
		m.detail = detailState{id: row.ID}
	}
	if m.detail.loaded {
		return nil
	}
	return m.loadDetail(row.ID)
}

func (m *Machine) loadDetail(id string) tea.Cmd {
	ctx, token := m.begin(&m.detail.load)
	m.detail.loading = true
	problems := m.backend.Problems
	hist := m.svc.History
	logger := m.svc.Logger
	return func() tea.Msg {
		p, err := problems.GetDetail(ctx, id)
		if err != nil || hist == nil {
			return detailLoadedMsg{token: token, id: id, problem: p, err: err}
		}
		recs, herr := hist.ScaffoldsFor(ctx, p.ID)
		if herr != nil && !errors.Is(herr, context.Canceled) {
			logger.Warn("app.scaffold_history_failed", map[string]any{"error": herr.Error()})
		}
		scaffolds := make([]string, 0, len(recs))
		for _, rec := range recs {
			scaffolds = append(scaffolds, scaffoldLine(rec.Language, rec.Path))
		}
		return detailLoadedMsg{token: token, id: id, problem: p, scaffolds: scaffolds}
	}
}

func (m *Machine) onDetail(msg detailLoadedMsg) {
	if msg.token != m.detail.load.token || msg.id != m.detail.id {
		return
	}
	m.end(&m.detail.load)
	m.detail.loading = false
	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			m.fail(msg.err)
		}
		return
	}
	m.detail.problem = msg.problem
	m.detail.scaffolds = msg.scaffolds
	m.detail.loaded = true
	m.syncRowStatus(msg.problem.ID, msg.problem.Status)
}

func (m *Machine) copyLink() tea.Cmd {
	p := m.detail.problem
	if m.tag == StateSolve {
		p = m.solve.problem
	}
	if p.Slug == "" || m.backend.ProblemURL == nil {
		return nil
	}
	url := m.backend.ProblemURL(p.Slug)
	clip := m.svc.Clipboard
	if clip == nil {
		m.setStatus(url, false)
		return nil
	}
	return func() tea.Msg {
		if err := clip(url); err != nil {
			return statusMsg{text: "Clipboard unavailable: " + url, err: true}
		}
		return statusMsg{text: "Copied " + url}
	}
}

// solve

func (m *Machine) scaffold() tea.Cmd {
	if !m.detail.loaded {
		m.setStatus("Problem is still loading", false)
		return nil
	}
	if m.svc.Scaffolder == nil {
		m.setStatus("Scaffolding is not available", true)
		return nil
	}
	m.leave(StateSolve)
	m.tag = StateSolve
	p := m.detail.problem
	lang := m.cfg.ScaffoldLanguage()
	root := m.cfg.WorkspaceRoot
	m.solve = solveState{problem: p, lang: lang, scaffolding: true}
	ctx, token := m.begin(&m.solve.scaffold)
	gen := m.svc.Scaffolder
	hist := m.svc.History
	logger := m.svc.Logger
	return func() tea.Msg {
		path, err := gen.Scaffold(p, lang, root)
		if err != nil {
			return scaffoldDoneMsg{token: token, err: err}
		}
		dir := filepath.Join(root, scaffold.DirName(p))
		if hist != nil {
			_, herr := hist.RecordScaffold(ctx, state.ScaffoldRecord{
				ProblemID: p.ID,
				Slug:      p.Slug,
				Title:     p.Title,
				Language:  string(lang),
				Path:      path,
			})
			if herr != nil && !errors.Is(herr, context.Canceled) {
				logger.Warn("app.scaffold_history_failed", map[string]any{"error": herr.Error()})
			}
		}
		return scaffoldDoneMsg{token: token, path: path, dir: dir, preview: readPreview(path)}
	}
}

func (m *Machine) onScaffold(msg scaffoldDoneMsg) {
	if msg.token != m.solve.scaffold.token {
		return
	}
	m.end(&m.solve.scaffold)
	m.solve.scaffolding = false
	if msg.err != nil {
		m.leave(StateDetail)
		m.tag = StateDetail
		m.fail(msg.err)
		return
	}
	m.solve.path = msg.path
	m.solve.preview = msg.preview
	if line := scaffoldLine(string(m.solve.lang), msg.path); !slices.Contains(m.detail.scaffolds, line) {
		m.detail.scaffolds = append(m.detail.scaffolds, line)
	}
	m.lastDir = msg.dir
	m.setStatus("Scaffolded "+msg.path, false)
}

// startJob submits the solution, or runs it against the examples when run
// is set. Both share one in-flight slot.
func (m *Machine) startJob(run bool) tea.Cmd {
	switch {
	case m.solve.scaffolding || m.solve.path == "":
		m.setStatus("Nothing to submit yet", false)
		return nil
	case m.solve.inFlight:
		m.setStatus("A submission is already being graded", false)
		return nil
	case m.backend.Poller == nil:
		m.setStatus("Submitting is not available", true)
		return nil
	}
	ctx, token := m.begin(&m.solve.submit)
	ch := make(chan submit.Progress, progressQueue)
	poller := *m.backend.Poller
	poller.OnProgress = func(p submit.Progress) {
		select {
		case ch <- p:
		default:
		}
	}
	m.solve.inFlight = true
	m.solve.running = run
	m.solve.submitCtx = ctx
	m.solve.progress = ch
	m.solve.sub = nil
	m.solve.attempt = 0
	m.solve.maxAttempts = max(poller.MaxAttempts, 0)
	if run {
		m.setStatus("Running the examples...", false)
	} else {
		m.setStatus("Submitting...", false)
	}

	p, path, lang := m.solve.problem, m.solve.path, m.solve.lang
	gen := m.svc.Scaffolder
	await := poller.SubmitAndAwait
	if run {
		await = poller.RunAndAwait
	}
	job := func() tea.Msg {
		src, err := gen.ReadSolution(path, lang)
		if err != nil {
			return submitDoneMsg{token: token, err: err}
		}
		sub, err := await(ctx, p, src, lang.RemoteSlug())
		return submitDoneMsg{token: token, sub: sub, err: err}
	}
	return tea.Batch(job, waitProgress(ctx, token, ch))
}

func waitProgress(ctx context.Context, token uint64, ch <-chan submit.Progress) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-ch:
			return submitProgressMsg{token: token, progress: p}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Machine) onProgress(msg submitProgressMsg) tea.Cmd {
	if msg.token != m.solve.submit.token || !m.solve.inFlight {
		return nil
	}
	m.solve.attempt = msg.progress.Attempt
	m.solve.maxAttempts = msg.progress.MaxAttempts
	verb := "Grading"
	if m.solve.running {
		verb = "Running"
	}
	m.setStatus(fmt.Sprintf("%s... %s (poll %d/%d)", verb, msg.progress.Verdict, msg.progress.Attempt, msg.progress.MaxAttempts), false)
	return waitProgress(m.solve.submitCtx, msg.token, m.solve.progress)
}

func (m *Machine) onSubmitted(msg submitDoneMsg) {
	if msg.token != m.solve.submit.token {
		return
	}
	m.end(&m.solve.submit)
	m.solve.inFlight = false
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return
		}
		if errors.Is(msg.err, common.ErrAuth) {
			reason := common.Describe(msg.err)
			m.leave(StateSetup)
			m.tag = StateSetup
			m.setup = setupState{form: formFrom(m.cfg), reason: reason}
			m.fail(msg.err)
			return
		}
		m.fail(msg.err)
		return
	}
	sub := msg.sub
	m.solve.sub = &sub
	m.solve.attempt = sub.Attempts
	if sub.Run {
		m.setStatus(runLine(sub), sub.Verdict != judge.VerdictAccepted)
		m.svc.Logger.Info("app.run_result", map[string]any{"problem": sub.ProblemID, "verdict": string(sub.Verdict)})
		return
	}
	m.setStatus(verdictLine(sub), sub.Verdict != judge.VerdictAccepted)
	m.svc.Logger.Info("app.verdict", map[string]any{"problem": sub.ProblemID, "verdict": string(sub.Verdict)})
	if sub.Verdict == judge.VerdictAccepted {
		m.backend.Problems.InvalidateStatus(m.solve.problem.ID)
		m.solve.problem.Status = judge.StatusSolved
		if m.detail.id == m.solve.problem.ID {
			m.detail.problem.Status = judge.StatusSolved
		}
		m.syncRowStatus(m.solve.problem.ID, judge.StatusSolved)
		m.stats.dirty = true
	} else if m.solve.problem.Status == judge.StatusUntouched && sub.Verdict != judge.VerdictTimeout {
		m.solve.problem.Status = judge.StatusAttempted
		m.syncRowStatus(m.solve.problem.ID, judge.StatusAttempted)
	}
}

func (m *Machine) openEditor() tea.Cmd {
	if m.solve.path == "" {
		m.setStatus("Nothing to edit yet", false)
		return nil
	}
	_, token := m.begin(&m.solve.edit)
	run := &editorRun{command: m.cfg.Editor, file: m.solve.path}
	return tea.Exec(run, func(err error) tea.Msg {
		return editorClosedMsg{token: token, err: err}
	})
}

func (m *Machine) onEditorClosed(msg editorClosedMsg) tea.Cmd {
	if msg.token != m.solve.edit.token {
		return nil
	}
	if msg.err != nil {
		m.end(&m.solve.edit)
		m.setStatus("Editor failed: "+msg.err.Error(), true)
		return nil
	}
	path := m.solve.path
	token := msg.token
	return func() tea.Msg { return previewMsg{token: token, preview: readPreview(path)} }
}

func (m *Machine) syncRowStatus(id string, st judge.Status) {
	for i := range m.browse.rows {
		if m.browse.rows[i].ID == id {
			m.browse.rows[i].Status = st
		}
	}
	for i := range m.browse.page.Problems {
		if m.browse.page.Problems[i].ID == id {
			m.browse.page.Problems[i].Status = st
		}
	}
}

func verdictLine(s judge.Submission) string {
	switch s.Verdict {
	case judge.VerdictAccepted:
		line := "Accepted"
		if s.Runtime > 0 {
			line += " in " + s.Runtime.String()
		}
		if s.MemoryBytes > 0 {
			line += ", " + humanize.IBytes(s.MemoryBytes)
		}
		return line
	case judge.VerdictTimeout:
		return "No verdict yet; the judge may still be grading. Try again shortly."
	}
	if s.TotalTestcases > 0 {
		return fmt.Sprintf("%s (%d/%d tests passed)", s.Verdict, s.TotalCorrect, s.TotalTestcases)
	}
	return string(s.Verdict)
}

// runLine summarises a run against the examples. Runs never change the
// problem's solved status.
func runLine(s judge.Submission) string {
	switch s.Verdict {
	case judge.VerdictAccepted:
		if n := len(s.Expected); n > 0 {
			return fmt.Sprintf("Examples passed (%d/%d)", n, n)
		}
		return "Examples passed"
	case judge.VerdictTimeout:
		return "No run result yet; the judge may still be running it."
	}
	return string(s.Verdict) + " on the examples"
}

// FilterSettings is how the browse filter is persisted between runs.
func FilterSettings(f judge.ListFilter) map[string]string {
	return map[string]string{
		"browse.difficulty": string(f.Difficulty),
		"browse.status":     string(f.Status),
		"browse.search":     f.Search,
		"browse.tags":       strings.Join(f.Tags, ","),
	}
}

func FilterFromSettings(values map[string]string) judge.ListFilter {
	f := judge.ListFilter{
		Difficulty: judge.ParseDifficulty(values["browse.difficulty"]),
		Search:     values["browse.search"],
	}
	switch s := judge.Status(values["browse.status"]); s {
	case judge.StatusSolved, judge.StatusAttempted, judge.StatusUntouched:
		f.Status = s
	}
	for _, t := range strings.Split(values["browse.tags"], ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Tags = append(f.Tags, t)
		}
	}
	return f.Normalize()
}

func readPreview(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// editorRun resolves the editor when bubbletea runs it, after the terminal
// has been released.
type editorRun struct {
	command string
	file    string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func (e *editorRun) SetStdin(r io.Reader)  { e.stdin = r }
func (e *editorRun) SetStdout(w io.Writer) { e.stdout = w }
func (e *editorRun) SetStderr(w io.Writer) { e.stderr = w }

func (e *editorRun) Run() error {
	cmd, err := editor.Command(e.command, e.file)
	if err != nil {
		return err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = e.stdin, e.stdout, e.stderr
	return cmd.Run()
}

type listLoadedMsg struct {
	token uint64
	page  judge.ProblemPage
	err   error
}

type snapshotMsg struct {
	token uint64
	page  judge.ProblemPage
	at    time.Time
	ok    bool
}

type statsLoadedMsg struct {
	token uint64
	stats judge.UserStats
	err   error
}

type detailLoadedMsg struct {
	token     uint64
	id        string
	problem   judge.Problem
	scaffolds []string
	err       error
}

func scaffoldLine(lang, path string) string { return lang + ": " + path }

type scaffoldDoneMsg struct {
	token   uint64
	path    string
	dir     string
	preview string
	err     error
}

type submitProgressMsg struct {
	token    uint64
	progress submit.Progress
}

type submitDoneMsg struct {
	token uint64
	sub   judge.Submission
	err   error
}

type loginDoneMsg struct {
	token   uint64
	session credentials.Session
	err     error
}

type editorClosedMsg struct {
	token uint64
	err   error
}

type previewMsg struct {
	token   uint64
	preview string
}

type statusMsg struct {
	text string
	err  bool
}
