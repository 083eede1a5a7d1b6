package ui

import (
	"slices"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"lcterm/internal/app"
)

const (
	fieldWorkspace = iota
	fieldLanguage
	fieldEditor
	fieldSession
	fieldCSRF
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldWorkspace: "Workspace",
	fieldLanguage:  "Language",
	fieldEditor:    "Editor",
	fieldSession:   "Session token",
	fieldCSRF:      "CSRF token",
}

// setupForm holds the text the user is typing; the machine only sees it on
// save. loaded is the last form the machine handed us, so tokens captured by
// browser login can be merged without clobbering edits.
type setupForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	loaded app.SetupForm
	ready  bool
}

func newSetupForm() setupForm {
	var f setupForm
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 4096
		f.inputs[i] = in
	}
	f.inputs[fieldWorkspace].Placeholder = "~/lcterm"
	f.inputs[fieldLanguage].Placeholder = "rust"
	f.inputs[fieldEditor].Placeholder = "$EDITOR"
	f.inputs[fieldSession].Placeholder = "optional, LEETCODE_SESSION cookie"
	f.inputs[fieldCSRF].Placeholder = "optional, csrftoken cookie"
	for _, i := range []int{fieldSession, fieldCSRF} {
		f.inputs[i].EchoMode = textinput.EchoPassword
		f.inputs[i].EchoCharacter = '•'
	}
	return f
}

// sync pulls fields the machine changed since the last sync.
func (f *setupForm) sync(src app.SetupForm) tea.Cmd {
	if f.ready && src == f.loaded {
		return nil
	}
	prev := f.loaded
	set := func(i int, old, now string) {
		if !f.ready || old != now {
			f.inputs[i].SetValue(now)
		}
	}
	set(fieldWorkspace, prev.WorkspaceRoot, src.WorkspaceRoot)
	set(fieldLanguage, prev.Language, src.Language)
	set(fieldEditor, prev.Editor, src.Editor)
	set(fieldSession, prev.SessionToken, src.SessionToken)
	set(fieldCSRF, prev.CSRFToken, src.CSRFToken)
	first := !f.ready
	f.loaded = src
	f.ready = true
	if first {
		return f.setFocus(fieldWorkspace)
	}
	return nil
}

func (f *setupForm) reset() {
	f.ready = false
	f.loaded = app.SetupForm{}
}

func (f *setupForm) value() app.SetupForm {
	v := func(i int) string { return strings.TrimSpace(f.inputs[i].Value()) }
	return app.SetupForm{
		WorkspaceRoot: v(fieldWorkspace),
		Language:      v(fieldLanguage),
		Editor:        v(fieldEditor),
		SessionToken:  v(fieldSession),
		CSRFToken:     v(fieldCSRF),
	}
}

func (f *setupForm) setFocus(i int) tea.Cmd {
	f.focus = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.focus {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// cycleLanguage steps the language field through the supported list.
func (f *setupForm) cycleLanguage(langs []string) {
	if len(langs) == 0 {
		return
	}
	cur := strings.TrimSpace(f.inputs[fieldLanguage].Value())
	next := 0
	if i := slices.Index(langs, cur); i >= 0 {
		next = (i + 1) % len(langs)
	}
	f.inputs[fieldLanguage].SetValue(langs[next])
}

func (f *setupForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *setupForm) lines(t Theme, width int) []string {
	out := make([]string, 0, fieldCount)
	for i, in := range f.inputs {
		label := padRight(fieldLabels[i], 14)
		in.SetWidth(max(8, width-18))
		line := label + " " + in.View()
		if i == f.focus {
			line = t.Accent.Render("> ") + line
		} else {
			line = "  " + t.Muted.Render(line)
		}
		out = append(out, line)
	}
	return out
}
