package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"lcterm/internal/app"
	"lcterm/internal/judge"
)

func (r *Root) renderHeader() string {
	width := max(1, r.cols)
	cfg := r.machine.Config()
	who := "anonymous"
	if cfg.SessionToken != "" {
		who = "signed in"
	}
	title := "lcterm"
	switch r.vm.State {
	case app.StateSetup:
		title += " - Setup"
	case app.StateBrowse:
		title += " - Problems"
	case app.StateDetail, app.StateSolve:
		if p := r.currentProblem(); p.ID != "" {
			title += fmt.Sprintf(" - %s. %s", p.ID, p.Title)
		}
	}
	right := strings.Join([]string{cfg.Language, who}, " | ")
	if r.debug {
		right = fmt.Sprintf("%s | %dx%d %v", right, r.cols, r.rows, r.layout)
	}
	gap := width - 2 - lipgloss.Width(title) - lipgloss.Width(right)
	txt := title + strings.Repeat(" ", max(1, gap)) + right
	return r.theme.Header.Width(width).Render(trimForWidth(txt, max(1, width-2)))
}

// renderFooter is the toast line above the key help.
func (r *Root) renderFooter() string {
	width := max(1, r.cols)
	toast := ""
	if r.toastText != "" && r.toastPos > 0.01 {
		style := r.theme.Info
		if r.toastErr {
			style = r.theme.Fail
		}
		full := trimForWidth(r.toastText, max(1, width-2))
		shown := int(float64(lipgloss.Width(full))*min(1, r.toastPos) + 0.5)
		toast = style.Render(ansi.Truncate(full, shown, ""))
	}

	var keys string
	switch r.vm.State {
	case app.StateSetup:
		keys = r.help.View(r.keys.setup())
	case app.StateBrowse:
		keys = r.help.View(r.keys.browse())
	case app.StateDetail:
		keys = r.help.View(r.keys.detail())
	case app.StateSolve:
		keys = r.help.View(r.keys.solve())
	}
	if r.busy() {
		keys = r.theme.Accent.Render(strings.TrimSpace(r.spin.View())) + " " + keys
	}
	status := r.theme.Status.Width(width).Render(fitWidth(keys, max(1, width-2)))
	return fitWidth(toast, width) + "\n" + status
}

func (r *Root) busy() bool {
	vm := r.vm
	switch vm.State {
	case app.StateSetup:
		return vm.Setup.LoggingIn
	case app.StateBrowse:
		return vm.Browse.Loading
	case app.StateDetail:
		return vm.Detail.Loading
	case app.StateSolve:
		return vm.Solve.InFlight || vm.Solve.Scaffolding
	}
	return false
}

func (r *Root) renderTooSmall() string {
	width := max(1, r.cols)
	lines := []string{
		r.theme.Fail.Render("Terminal too small"),
		fmt.Sprintf("Need at least 60x16, have %dx%d.", r.cols, r.rows),
		"Resize the window or press ctrl+c to quit.",
	}
	for i, l := range lines {
		lines[i] = fitWidth(l, width)
	}
	return strings.Join(lines, "\n")
}

func (r *Root) renderSetup(height int) string {
	width := min(100, max(40, r.cols))
	s := r.vm.Setup
	var lines []string
	switch {
	case s.Reason != "":
		lines = append(lines, r.theme.Fail.Render(s.Reason), "")
	case s.FirstRun:
		lines = append(lines, "Welcome. Choose where solutions go and how to sign in.", "")
	}
	lines = append(lines, r.form.lines(r.theme, width-4)...)
	lines = append(lines, "",
		r.theme.Muted.Render("Languages: "+strings.Join(s.Languages, ", ")),
		r.theme.Muted.Render("Leave both tokens empty to browse anonymously; submitting needs them."),
	)
	if s.LoggingIn {
		lines = append(lines, "", r.theme.Pending.Render(strings.TrimSpace(r.spin.View())+" Waiting for browser login..."))
	}
	return r.drawPanel("Settings", lines, width, height)
}

func (r *Root) renderBrowse(height int) string {
	b := r.vm.Browse
	w := max(20, r.cols)
	sideW := 0
	if r.layout == LayoutWide {
		sideW = min(48, w/3)
	}
	listW := w - sideW

	top := []string{r.filterLine(b)}
	if r.searching {
		r.search.SetWidth(max(10, listW-6))
		top[0] = r.search.View()
	}
	if b.Stale {
		age := humanize.Time(b.StaleAt)
		note := "Offline copy from " + age
		if b.Loading {
			note = "Showing copy from " + age + ", refreshing..."
		}
		top = append(top, r.theme.Pending.Render(note))
	}
	if b.Stats != nil {
		top = append(top, r.statsLine(*b.Stats, listW-2))
	}

	innerH := max(1, height-2-len(top))
	lines := append([]string(nil), top...)
	switch {
	case len(b.Problems) == 0 && b.Loading:
		lines = append(lines, r.theme.Muted.Render(strings.TrimSpace(r.spin.View())+" Loading problems..."))
	case len(b.Problems) == 0:
		lines = append(lines, r.theme.Muted.Render("No problems match this filter. Press x to clear it."))
	default:
		offset := 0
		if b.Cursor >= innerH {
			offset = b.Cursor - innerH + 1
		}
		end := min(len(b.Problems), offset+innerH)
		for i := offset; i < end; i++ {
			lines = append(lines, r.problemRow(b.Problems[i], i == b.Cursor, listW-2))
		}
	}

	title := fmt.Sprintf("Problems %d/%d (%s total)", b.Page, b.Pages, humanize.Comma(int64(b.Total)))
	list := r.drawPanel(title, lines, listW, height)
	if sideW == 0 {
		return list
	}
	var side []string
	if len(b.Problems) > 0 {
		side = r.summaryLines(b.Problems[clampIndex(b.Cursor, len(b.Problems))], sideW-2)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, r.drawPanel("Summary", side, sideW, height))
}

func (r *Root) statsLine(s judge.UserStats, width int) string {
	solved, total := s.Solved()
	parts := []string{
		r.theme.Accent.Render(s.Username),
		fmt.Sprintf("solved %s/%s", humanize.Comma(int64(solved)), humanize.Comma(int64(total))),
	}
	for _, c := range s.Counts {
		parts = append(parts, r.difficultyStyle(c.Difficulty).Render(string(c.Difficulty))+fmt.Sprintf(" %d/%d", c.Solved, c.Total))
	}
	return ansi.Truncate(strings.Join(parts, "  "), width, "…")
}

func (r *Root) filterLine(b app.BrowseView) string {
	f := b.Filter
	parts := []string{}
	if f.Difficulty != "" {
		parts = append(parts, "difficulty:"+string(f.Difficulty))
	}
	if f.Status != "" {
		parts = append(parts, "status:"+string(f.Status))
	}
	if q := formatQuery(f); q != "" {
		parts = append(parts, "search:"+q)
	}
	if len(parts) == 0 {
		return r.theme.Muted.Render("All problems")
	}
	return r.theme.Accent.Render(strings.Join(parts, "  "))
}

func (r *Root) problemRow(p judge.ProblemSummary, selected bool, width int) string {
	mark := " "
	switch p.Status {
	case judge.StatusSolved:
		mark = r.glyph("✓", "*")
	case judge.StatusAttempted:
		mark = "~"
	}
	diff := padRight(string(p.Difficulty), 6)
	rate := fmt.Sprintf("%5.1f%%", p.AcRate)
	titleW := max(4, width-2-6-1-6-1-7)
	title := p.Title
	if p.PaidOnly {
		title += " " + r.glyph("🔒", "[paid]")
	}
	row := fmt.Sprintf("%s %5s %s %s %s", mark, p.ID, padRight(ansi.Truncate(title, titleW, "…"), titleW), diff, rate)
	if selected {
		return r.theme.Selected.Render(fitWidth(row, width))
	}
	styled := fmt.Sprintf("%s %5s %s %s %s",
		r.statusStyle(p.Status).Render(mark),
		p.ID,
		padRight(ansi.Truncate(title, titleW, "…"), titleW),
		r.difficultyStyle(p.Difficulty).Render(diff),
		r.theme.Muted.Render(rate),
	)
	return styled
}

func (r *Root) summaryLines(p judge.ProblemSummary, width int) []string {
	lines := []string{
		r.theme.Accent.Render(ansi.Truncate(p.ID+". "+p.Title, width, "…")),
		"",
		"Difficulty  " + r.difficultyStyle(p.Difficulty).Render(string(p.Difficulty)),
		"Status      " + r.statusStyle(p.Status).Render(string(p.Status)),
		fmt.Sprintf("Acceptance  %.1f%%", p.AcRate),
	}
	if p.PaidOnly {
		lines = append(lines, r.theme.Pending.Render("Premium only"))
	}
	if len(p.Tags) > 0 {
		lines = append(lines, "", "Tags")
		for _, t := range p.Tags {
			lines = append(lines, "  "+ansi.Truncate(t, width-2, "…"))
		}
	}
	return lines
}

func (r *Root) renderDetail(height int) string {
	d := r.vm.Detail
	w := max(20, r.cols)
	if !d.Loaded {
		lines := []string{r.theme.Muted.Render(strings.TrimSpace(r.spin.View()) + " Loading problem " + d.ID + "...")}
		if !d.Loading {
			lines = []string{r.theme.Fail.Render("Could not load this problem."), "Press r to retry or esc to go back."}
		}
		return r.drawPanel("Problem", lines, w, height)
	}
	r.detail.SetWidth(w - 2)
	r.detail.SetHeight(max(1, height-2))
	title := fmt.Sprintf("Problem %d%%", int(r.detail.ScrollPercent()*100))
	return r.drawPanel(title, strings.Split(r.detail.View(), "\n"), w, height)
}

// renderDetailContent re-renders the description when the problem, its
// status or the wrap width changed.
func (r *Root) renderDetailContent() {
	d := r.vm.Detail
	if !d.Loaded {
		return
	}
	k := fmt.Sprintf("%s|%s|%d|%d", d.Problem.ID, d.Problem.Status, len(d.Scaffolds), r.wrapWidth)
	if k == r.detailKey {
		return
	}
	r.detailKey = k
	md := problemMarkdown(d.Problem, d.URL, d.Scaffolds)
	out := md
	if r.markdown == nil {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.theme.Glamour),
			glamour.WithWordWrap(max(20, r.wrapWidth)),
		)
		if err == nil {
			r.markdown = renderer
		}
	}
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(md); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	r.detail.SetContent(out)
	r.detail.GotoTop()
}

func problemMarkdown(p judge.Problem, url string, scaffolds []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s. %s\n\n", p.ID, p.Title)
	meta := []string{"**" + string(p.Difficulty) + "**", string(p.Status), fmt.Sprintf("acceptance %.1f%%", p.AcRate)}
	fmt.Fprintf(&b, "%s\n\n", strings.Join(meta, " · "))
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(p.Tags, ", "))
	}
	if len(scaffolds) > 0 {
		b.WriteString("Already scaffolded in:\n\n")
		for _, s := range scaffolds {
			fmt.Fprintf(&b, "- `%s`\n", s)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(p.Description) == "" {
		if p.PaidOnly {
			b.WriteString("_This problem is for premium subscribers; the description is not available._\n\n")
		} else {
			b.WriteString("_No description._\n\n")
		}
	} else {
		b.WriteString(p.Description)
		b.WriteString("\n\n")
	}
	for i, ex := range p.Examples {
		fmt.Fprintf(&b, "## Example %d\n\n```text\nInput: %s\nOutput: %s\n", i+1, ex.Input, ex.Output)
		if ex.Explanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", ex.Explanation)
		}
		b.WriteString("```\n\n")
	}
	if len(p.Hints) > 0 {
		b.WriteString("## Hints\n\n")
		for i, h := range p.Hints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
		b.WriteString("\n")
	}
	if url != "" {
		fmt.Fprintf(&b, "%s\n", url)
	}
	return b.String()
}

func (r *Root) renderSolve(height int) string {
	s := r.vm.Solve
	w := max(20, r.cols)
	if s.Scaffolding {
		lines := []string{r.theme.Pending.Render(strings.TrimSpace(r.spin.View()) + " Creating solution files...")}
		return r.drawPanel("Solution", lines, w, height)
	}

	result := r.submissionLines(s, w-2)
	if r.layout == LayoutWide {
		rightW := min(60, w/2)
		code := r.drawPanel(s.Language+" "+s.Path, r.previewLines(s, height-2), w-rightW, height)
		return lipgloss.JoinHorizontal(lipgloss.Top, code, r.drawPanel("Submission", result, rightW, height))
	}
	resultH := min(max(5, len(result)+2), height/2)
	code := r.drawPanel(s.Language+" "+s.Path, r.previewLines(s, height-resultH-2), w, height-resultH)
	return lipgloss.JoinVertical(lipgloss.Left, code, r.drawPanel("Submission", result, w, resultH))
}

func (r *Root) previewLines(s app.SolveView, height int) []string {
	k := s.Path + "\x00" + s.Preview
	if k != r.previewKey {
		r.previewKey = k
		r.previewOut = highlight(s.Preview, s.Language, r.theme.Chroma)
	}
	lines := strings.Split(r.previewOut, "\n")
	if len(lines) > height && height > 0 {
		lines = append(lines[:height-1], r.theme.Muted.Render("... press e to open in your editor"))
	}
	return lines
}

func (r *Root) submissionLines(s app.SolveView, width int) []string {
	if s.InFlight {
		label := " Judging"
		if s.Running {
			label = " Running examples"
		}
		line := r.theme.Pending.Render(strings.TrimSpace(r.spin.View()) + label)
		if s.MaxAttempts > 0 {
			line += fmt.Sprintf(" (poll %d/%d)", s.Attempt, s.MaxAttempts)
			r.submitBar.SetWidth(min(40, max(10, width-2)))
			return []string{line, r.submitBar.ViewAs(float64(s.Attempt) / float64(s.MaxAttempts))}
		}
		return []string{line}
	}
	sub := s.Submission
	if sub == nil {
		return []string{r.theme.Muted.Render("Not submitted yet. Edit the file, press r to run the examples or enter to submit.")}
	}

	style := r.theme.Fail
	switch sub.Verdict {
	case judge.VerdictAccepted:
		style = r.theme.Pass
	case judge.VerdictTimeout, judge.VerdictPending:
		style = r.theme.Pending
	}
	if sub.Run {
		return r.runLines(sub, style, width)
	}
	lines := []string{style.Render(string(sub.Verdict))}
	if sub.Verdict == judge.VerdictTimeout {
		lines = append(lines, "No verdict yet; the judge may still be grading.")
	}
	if sub.TotalTestcases > 0 {
		lines = append(lines, fmt.Sprintf("Tests     %d/%d passed", sub.TotalCorrect, sub.TotalTestcases))
	}
	if sub.Runtime > 0 {
		lines = append(lines, "Runtime   "+sub.Runtime.Round(time.Millisecond).String())
	}
	if sub.MemoryBytes > 0 {
		lines = append(lines, "Memory    "+humanize.IBytes(sub.MemoryBytes))
	}
	if sub.Attempts > 0 {
		lines = append(lines, r.theme.Muted.Render(fmt.Sprintf("Graded after %d polls", sub.Attempts)))
	}
	detail := func(label, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		lines = append(lines, "", r.theme.Accent.Render(label))
		for _, l := range strings.Split(strings.TrimRight(v, "\n"), "\n") {
			lines = append(lines, ansi.Truncate(l, width, "…"))
		}
	}
	detail("Compile error", sub.CompileError)
	detail("Runtime error", sub.RuntimeError)
	detail("Last testcase", sub.LastTestcase)
	detail("Expected", sub.ExpectedOutput)
	detail("Output", sub.CodeOutput)
	return lines
}

// runLines shows a run of the example cases: one block per case with the
// program's answer next to the expected one.
func (r *Root) runLines(sub *judge.Submission, style lipgloss.Style, width int) []string {
	lines := []string{style.Render("Run: " + string(sub.Verdict))}
	if sub.Verdict == judge.VerdictTimeout {
		lines = append(lines, "No run result yet; the judge may still be running it.")
	}
	if sub.CompileError != "" {
		lines = append(lines, "", r.theme.Accent.Render("Compile error"))
		for _, l := range strings.Split(strings.TrimRight(sub.CompileError, "\n"), "\n") {
			lines = append(lines, ansi.Truncate(l, width, "…"))
		}
	}
	if sub.RuntimeError != "" {
		lines = append(lines, "", r.theme.Accent.Render("Runtime error"), ansi.Truncate(sub.RuntimeError, width, "…"))
	}
	cases := max(len(sub.Outputs), len(sub.Expected))
	var inputs []string
	if sub.Input != "" {
		inputs = strings.Split(strings.TrimRight(sub.Input, "\n"), "\n")
	}
	// Each case spans one line per argument.
	per := 0
	if cases > 0 && len(inputs)%cases == 0 {
		per = len(inputs) / cases
	}
	for i := range cases {
		got, want := "", ""
		if i < len(sub.Outputs) {
			got = sub.Outputs[i]
		}
		if i < len(sub.Expected) {
			want = sub.Expected[i]
		}
		mark := r.theme.Pass.Render("ok")
		if got != want {
			mark = r.theme.Fail.Render("differs")
		}
		lines = append(lines, "", r.theme.Accent.Render(fmt.Sprintf("Case %d", i+1))+" "+mark)
		if per > 0 {
			in := strings.Join(inputs[i*per:(i+1)*per], ", ")
			lines = append(lines, ansi.Truncate("Input     "+in, width, "…"))
		}
		lines = append(lines,
			ansi.Truncate("Output    "+got, width, "…"),
			ansi.Truncate("Expected  "+want, width, "…"))
	}
	return lines
}

func (r *Root) currentProblem() judge.Problem {
	if r.vm.State == app.StateSolve && r.vm.Solve.Problem.ID != "" {
		return r.vm.Solve.Problem
	}
	return r.vm.Detail.Problem
}

func (r *Root) difficultyStyle(d judge.Difficulty) lipgloss.Style {
	switch d {
	case judge.DifficultyEasy:
		return r.theme.Easy
	case judge.DifficultyMedium:
		return r.theme.Medium
	case judge.DifficultyHard:
		return r.theme.Hard
	}
	return r.theme.Muted
}

func (r *Root) statusStyle(s judge.Status) lipgloss.Style {
	switch s {
	case judge.StatusSolved:
		return r.theme.Pass
	case judge.StatusAttempted:
		return r.theme.Pending
	}
	return r.theme.Muted
}

func (r *Root) glyph(fancy, plain string) string {
	if r.ascii {
		return plain
	}
	return fancy
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2

	h := "─"
	v := "│"
	tl := "┌"
	tr := "┐"
	bl := "└"
	br := "┘"
	if r.ascii {
		h = "-"
		v = "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := r.theme.PanelBorder.Render(tl + strings.Repeat(h, innerW) + tr)
	if title != "" && innerW > 4 {
		t := ansi.Truncate(" "+title+" ", innerW-2, "…")
		fill := innerW - 1 - lipgloss.Width(t)
		top = r.theme.PanelBorder.Render(tl+h) + r.theme.PanelTitle.Render(t) + r.theme.PanelBorder.Render(strings.Repeat(h, max(0, fill))+tr)
	}

	out := make([]string, 0, height)
	out = append(out, top)
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, r.theme.PanelBorder.Render(v)+r.theme.PanelBody.Render(fitWidth(line, innerW))+r.theme.PanelBorder.Render(v))
	}
	out = append(out, r.theme.PanelBorder.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

// fitWidth truncates or pads a possibly styled line to exactly width cells.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func padRight(s string, width int) string {
	if pad := width - ansi.StringWidth(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func clampIndex(i, n int) int {
	return min(max(i, 0), n-1)
}
