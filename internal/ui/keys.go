package ui

import "charm.land/bubbles/v2/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Open     key.Binding
	Refresh  key.Binding
	Search   key.Binding
	Level    key.Binding
	Progress key.Binding
	Clear    key.Binding
	Settings key.Binding
	Quit     key.Binding
	ForceQ   key.Binding

	Back     key.Binding
	Scaffold key.Binding
	Copy     key.Binding
	Scroll   key.Binding

	Return key.Binding
	Submit key.Binding
	Run    key.Binding
	Edit   key.Binding

	NextField key.Binding
	PrevField key.Binding
	Cycle     key.Binding
	Save      key.Binding
	Login     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextPage: key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "prev page")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Level:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "difficulty")),
		Progress: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status")),
		Clear:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filter")),
		Settings: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
		Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQ:   key.NewBinding(key.WithKeys("ctrl+c")),

		Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Scaffold: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scaffold")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy link")),
		Scroll:   key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"), key.WithHelp("↑↓", "scroll")),

		Return: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "problem")),
		Submit: key.NewBinding(key.WithKeys("ctrl+s", "enter"), key.WithHelp("enter", "submit")),
		Run:    key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "run examples")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),

		NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
		Cycle:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "language")),
		Save:      key.NewBinding(key.WithKeys("enter", "ctrl+s"), key.WithHelp("enter", "save")),
		Login:     key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "browser login")),
	}
}

// screenKeys adapts a fixed binding list to help.KeyMap.
type screenKeys []key.Binding

func (k screenKeys) ShortHelp() []key.Binding { return k }

func (k screenKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k} }

func (k keyMap) browse() screenKeys {
	return screenKeys{k.Open, k.NextPage, k.PrevPage, k.Search, k.Level, k.Progress, k.Refresh, k.Settings, k.Quit}
}

func (k keyMap) detail() screenKeys {
	return screenKeys{k.Scaffold, k.Copy, k.Scroll, k.Refresh, k.Back, k.Quit}
}

func (k keyMap) solve() screenKeys {
	return screenKeys{k.Submit, k.Run, k.Edit, k.Copy, k.Return, k.Quit}
}

func (k keyMap) setup() screenKeys {
	return screenKeys{k.NextField, k.Cycle, k.Save, k.Login}
}
