package ui

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"

	"lcterm/internal/app"
	"lcterm/internal/judge"
	"lcterm/internal/telemetry"
)

const (
	toastLife    = 4 * time.Second
	toastErrLife = 8 * time.Second
)

type clockMsg time.Time
type animateMsg time.Time

type Root struct {
	machine *app.Machine
	theme   Theme
	ascii   bool
	debug   bool
	motion  string
	logger  *telemetry.Logger

	mu      sync.Mutex
	program *tea.Program

	layout LayoutMode
	cols   int
	rows   int

	vm   app.ViewModel
	keys keyMap
	help help.Model

	form      setupForm
	search    textinput.Model
	searching bool

	detail     viewport.Model
	detailKey  string
	markdown   *glamour.TermRenderer
	wrapWidth  int
	previewKey string
	previewOut string

	submitBar progress.Model
	spin      spinner.Model

	toastSeq    uint64
	toastText   string
	toastErr    bool
	toastUntil  time.Time
	toastTarget float64
	toastPos    float64
	toastVel    float64
	spring      harmonica.Spring

	lastInputEvent string
}

type Options struct {
	Machine     *app.Machine
	Theme       string
	MotionLevel string
	ASCIIOnly   bool
	Debug       bool
	Logger      *telemetry.Logger
}

func New(opts Options) *Root {
	theme := ThemeForVariant(opts.Theme)
	motion := normalizeMotionLevel(opts.MotionLevel)

	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	if opts.Theme == "light" {
		h.Styles = help.DefaultLightStyles()
	}
	spring := harmonica.NewSpring(harmonica.FPS(60), 10.0, 0.8)
	switch motion {
	case "reduced":
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.92)
	case "off":
		spring = harmonica.NewSpring(harmonica.FPS(60), 1000.0, 1.0)
	}
	bar := progress.New(
		progress.WithWidth(20),
		progress.WithColors(lipgloss.Color(theme.ProgressFrom), lipgloss.Color(theme.ProgressTo)),
		progress.WithScaled(true),
	)
	if motion == "off" {
		bar.SetSpringOptions(1000.0, 1.0)
	}
	spin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)
	if opts.ASCIIOnly {
		spin.Spinner = spinner.Line
	}
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "title words, #tag"
	search.CharLimit = 200

	r := &Root{
		machine:   opts.Machine,
		theme:     theme,
		ascii:     opts.ASCIIOnly,
		debug:     opts.Debug,
		motion:    motion,
		logger:    opts.Logger,
		layout:    LayoutCompact,
		cols:      100,
		rows:      30,
		keys:      newKeyMap(),
		help:      h,
		form:      newSetupForm(),
		search:    search,
		detail:    viewport.New(viewport.WithWidth(96), viewport.WithHeight(20)),
		submitBar: bar,
		spin:      spin,
		spring:    spring,
	}
	r.vm = r.machine.View()
	r.toastSeq = r.vm.StatusSeq
	if r.vm.Status != "" {
		r.showToast()
	}
	return r
}

func (r *Root) Init() tea.Cmd {
	cmds := []tea.Cmd{r.machine.Init(), clockTickCmd(), spinnerTickCmd(r.spin)}
	cmds = append(cmds, r.sync())
	if r.toastTarget > 0 {
		cmds = append(cmds, animateTickCmd())
	}
	return tea.Batch(cmds...)
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		r.resize()
		return r, nil
	case clockMsg:
		if r.toastTarget > 0 && !r.toastUntil.IsZero() && time.Time(msg).After(r.toastUntil) {
			r.toastTarget = 0
			return r, tea.Batch(clockTickCmd(), r.animateIfNeeded())
		}
		return r, clockTickCmd()
	case animateMsg:
		r.toastPos, r.toastVel = r.spring.Update(r.toastPos, r.toastVel, r.toastTarget)
		if r.shouldAnimate() {
			return r, animateTickCmd()
		}
		r.toastPos, r.toastVel = r.toastTarget, 0
		return r, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return r, cmd
	case tea.KeyPressMsg:
		return r, r.handleKey(msg)
	}

	cmds := []tea.Cmd{r.machine.Update(msg)}
	switch {
	case r.vm.State == app.StateSetup:
		cmds = append(cmds, r.form.update(msg))
	case r.searching:
		var c tea.Cmd
		r.search, c = r.search.Update(msg)
		cmds = append(cmds, c)
	}
	cmds = append(cmds, r.sync())
	return r, tea.Batch(cmds...)
}

// dispatch sends an intent and refreshes the cached view-model.
func (r *Root) dispatch(in app.Intent) tea.Cmd {
	cmd := r.machine.Dispatch(in)
	return tea.Batch(cmd, r.sync())
}

// sync re-reads the machine and reacts to what changed since the last read.
func (r *Root) sync() tea.Cmd {
	prev := r.vm
	r.vm = r.machine.View()
	var cmds []tea.Cmd

	if r.vm.StatusSeq != r.toastSeq {
		r.toastSeq = r.vm.StatusSeq
		r.showToast()
		cmds = append(cmds, r.animateIfNeeded())
	}
	if r.vm.State == app.StateSetup {
		if prev.State != app.StateSetup {
			r.form.reset()
		}
		cmds = append(cmds, r.form.sync(r.vm.Setup.Form))
	}
	if r.vm.State != app.StateBrowse && r.searching {
		r.searching = false
		r.search.Blur()
	}
	if r.vm.State == app.StateDetail {
		r.renderDetailContent()
	}
	return tea.Batch(cmds...)
}

func (r *Root) showToast() {
	r.toastText = r.vm.Status
	r.toastErr = r.vm.StatusErr
	life := toastLife
	if r.toastErr {
		life = toastErrLife
	}
	r.toastUntil = time.Now().Add(life)
	r.toastTarget = 1
	if r.motion == "off" {
		r.toastPos, r.toastVel = 1, 0
	}
}

func (r *Root) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))

	if key.Matches(msg, r.keys.ForceQ) {
		return r.dispatch(app.Intent{Kind: app.IntentQuit})
	}

	switch r.vm.State {
	case app.StateSetup:
		return r.handleSetupKey(msg)
	case app.StateBrowse:
		if r.searching {
			return r.handleSearchKey(msg)
		}
		return r.handleBrowseKey(msg)
	case app.StateDetail:
		return r.handleDetailKey(msg)
	case app.StateSolve:
		return r.handleSolveKey(msg)
	}
	return nil
}

func (r *Root) handleSetupKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, r.keys.Login):
		return r.dispatch(app.Intent{Kind: app.IntentBrowserLogin})
	case key.Matches(msg, r.keys.Cycle):
		r.form.cycleLanguage(r.vm.Setup.Languages)
		return nil
	case key.Matches(msg, r.keys.PrevField):
		return r.form.setFocus(r.form.focus - 1)
	case key.Matches(msg, r.keys.Save):
		if msg.String() == "enter" && r.form.focus < fieldCount-1 {
			return r.form.setFocus(r.form.focus + 1)
		}
		return r.dispatch(app.Intent{Kind: app.IntentConfigure, Form: r.form.value()})
	case key.Matches(msg, r.keys.NextField):
		return r.form.setFocus(r.form.focus + 1)
	}
	return r.form.update(msg)
}

func (r *Root) handleBrowseKey(msg tea.KeyPressMsg) tea.Cmd {
	f := r.vm.Browse.Filter
	switch {
	case key.Matches(msg, r.keys.Quit):
		return r.dispatch(app.Intent{Kind: app.IntentQuit})
	case key.Matches(msg, r.keys.Up):
		return r.dispatch(app.Intent{Kind: app.IntentMoveCursor, Delta: -1})
	case key.Matches(msg, r.keys.Down):
		return r.dispatch(app.Intent{Kind: app.IntentMoveCursor, Delta: 1})
	case msg.String() == "pgup":
		return r.dispatch(app.Intent{Kind: app.IntentMoveCursor, Delta: -r.listHeight()})
	case msg.String() == "pgdown":
		return r.dispatch(app.Intent{Kind: app.IntentMoveCursor, Delta: r.listHeight()})
	case key.Matches(msg, r.keys.NextPage):
		return r.dispatch(app.Intent{Kind: app.IntentNextPage})
	case key.Matches(msg, r.keys.PrevPage):
		return r.dispatch(app.Intent{Kind: app.IntentPrevPage})
	case key.Matches(msg, r.keys.Open):
		return r.dispatch(app.Intent{Kind: app.IntentSelect})
	case key.Matches(msg, r.keys.Refresh):
		return r.dispatch(app.Intent{Kind: app.IntentRefresh})
	case key.Matches(msg, r.keys.Settings):
		return r.dispatch(app.Intent{Kind: app.IntentSettings})
	case key.Matches(msg, r.keys.Level):
		f.Difficulty = nextDifficulty(f.Difficulty)
		return r.dispatch(app.Intent{Kind: app.IntentSetFilter, Filter: f})
	case key.Matches(msg, r.keys.Progress):
		f.Status = nextStatus(f.Status)
		return r.dispatch(app.Intent{Kind: app.IntentSetFilter, Filter: f})
	case key.Matches(msg, r.keys.Clear):
		return r.dispatch(app.Intent{Kind: app.IntentSetFilter, Filter: judge.ListFilter{}})
	case key.Matches(msg, r.keys.Search):
		r.searching = true
		r.search.SetValue(formatQuery(f))
		r.search.CursorEnd()
		return r.search.Focus()
	}
	return nil
}

func (r *Root) handleSearchKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		r.searching = false
		r.search.Blur()
		return nil
	case "enter":
		r.searching = false
		r.search.Blur()
		f := r.vm.Browse.Filter
		f.Search, f.Tags = parseQuery(r.search.Value())
		return r.dispatch(app.Intent{Kind: app.IntentSetFilter, Filter: f})
	}
	var cmd tea.Cmd
	r.search, cmd = r.search.Update(msg)
	return cmd
}

func (r *Root) handleDetailKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, r.keys.Quit):
		return r.dispatch(app.Intent{Kind: app.IntentQuit})
	case key.Matches(msg, r.keys.Back):
		return r.dispatch(app.Intent{Kind: app.IntentBack})
	case key.Matches(msg, r.keys.Scaffold):
		return r.dispatch(app.Intent{Kind: app.IntentScaffold})
	case key.Matches(msg, r.keys.Copy):
		return r.dispatch(app.Intent{Kind: app.IntentCopyLink})
	case key.Matches(msg, r.keys.Refresh):
		return r.dispatch(app.Intent{Kind: app.IntentRefresh})
	}
	var cmd tea.Cmd
	r.detail, cmd = r.detail.Update(msg)
	return cmd
}

func (r *Root) handleSolveKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, r.keys.Quit):
		return r.dispatch(app.Intent{Kind: app.IntentQuit})
	case key.Matches(msg, r.keys.Return):
		return r.dispatch(app.Intent{Kind: app.IntentReturn})
	case key.Matches(msg, r.keys.Submit):
		return r.dispatch(app.Intent{Kind: app.IntentSubmit})
	case key.Matches(msg, r.keys.Run):
		return r.dispatch(app.Intent{Kind: app.IntentRun})
	case key.Matches(msg, r.keys.Edit):
		return r.dispatch(app.Intent{Kind: app.IntentOpenEditor})
	case key.Matches(msg, r.keys.Copy):
		return r.dispatch(app.Intent{Kind: app.IntentCopyLink})
	}
	return nil
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, max(1, width-1))))
		}
	}()

	v := tea.NewView(r.render())
	v.AltScreen = true
	return v
}

func (r *Root) render() string {
	if r.vm.State == app.StateExited {
		return ""
	}
	if r.layout == LayoutTooSmall {
		return r.renderTooSmall()
	}
	header := r.renderHeader()
	footer := r.renderFooter()
	bodyH := max(3, r.rows-lipgloss.Height(header)-lipgloss.Height(footer))
	var body string
	switch r.vm.State {
	case app.StateSetup:
		body = r.renderSetup(bodyH)
	case app.StateBrowse:
		body = r.renderBrowse(bodyH)
	case app.StateDetail:
		body = r.renderDetail(bodyH)
	case app.StateSolve:
		body = r.renderSolve(bodyH)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Run owns the terminal until the machine exits or ctx is cancelled.
func (r *Root) Run(ctx context.Context) error {
	p := tea.NewProgram(r, tea.WithContext(ctx))
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()

	_, err := p.Run()
	r.mu.Lock()
	r.program = nil
	r.mu.Unlock()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) resize() {
	r.submitBar.SetWidth(min(40, max(10, r.cols/3)))
	r.detail.SetWidth(max(10, r.cols-4))
	r.detail.SetHeight(max(3, r.rows-6))
	if w := min(100, max(20, r.cols-6)); w != r.wrapWidth {
		r.wrapWidth = w
		r.markdown = nil
		r.detailKey = ""
	}
	if r.vm.State == app.StateDetail {
		r.renderDetailContent()
	}
}

func (r *Root) listHeight() int {
	return max(1, r.rows-8)
}

func (r *Root) animateIfNeeded() tea.Cmd {
	if r.shouldAnimate() {
		return animateTickCmd()
	}
	return nil
}

func (r *Root) shouldAnimate() bool {
	if r.motion == "off" {
		return false
	}
	return abs(r.toastPos-r.toastTarget) > 0.001 || abs(r.toastVel) > 0.001
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

func nextDifficulty(d judge.Difficulty) judge.Difficulty {
	switch d {
	case "":
		return judge.DifficultyEasy
	case judge.DifficultyEasy:
		return judge.DifficultyMedium
	case judge.DifficultyMedium:
		return judge.DifficultyHard
	default:
		return ""
	}
}

func nextStatus(s judge.Status) judge.Status {
	switch s {
	case "":
		return judge.StatusUntouched
	case judge.StatusUntouched:
		return judge.StatusAttempted
	case judge.StatusAttempted:
		return judge.StatusSolved
	default:
		return ""
	}
}

// parseQuery splits the search box into free text and #tags.
func parseQuery(q string) (string, []string) {
	var words, tags []string
	for _, w := range strings.Fields(q) {
		if tag, ok := strings.CutPrefix(w, "#"); ok {
			if tag != "" {
				tags = append(tags, strings.ToLower(tag))
			}
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " "), tags
}

func formatQuery(f judge.ListFilter) string {
	parts := make([]string, 0, len(f.Tags)+1)
	if f.Search != "" {
		parts = append(parts, f.Search)
	}
	for _, t := range f.Tags {
		parts = append(parts, "#"+t)
	}
	return strings.Join(parts, " ")
}

func normalizeMotionLevel(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "reduced", "full":
		return strings.TrimSpace(v)
	default:
		return "full"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered", map[string]any{
		"where":       where,
		"panic":       fmt.Sprintf("%v", recovered),
		"messageType": msgType,
		"state":       r.vm.State.String(),
		"layout":      r.layout.String(),
		"cols":        r.cols,
		"rows":        r.rows,
		"last_input":  r.lastInputEvent,
		"stack":       string(debug.Stack()),
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ tea.Model = (*Root)(nil)
