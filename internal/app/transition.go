package app

// StateTag names the screen the user is on. Exactly one is active.
type StateTag int

const (
	StateSetup StateTag = iota
	StateBrowse
	StateDetail
	StateSolve
	StateExited
)

func (s StateTag) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateBrowse:
		return "browse"
	case StateDetail:
		return "detail"
	case StateSolve:
		return "solve"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

type IntentKind int

const (
	IntentConfigure IntentKind = iota
	IntentBrowserLogin
	IntentSelect
	IntentBack
	IntentScaffold
	IntentReturn
	IntentSubmit
	IntentRun
	IntentOpenEditor
	IntentCopyLink
	IntentSetFilter
	IntentMoveCursor
	IntentNextPage
	IntentPrevPage
	IntentRefresh
	IntentSettings
	IntentQuit
)

var intentNames = map[IntentKind]string{
	IntentConfigure:    "configure",
	IntentBrowserLogin: "browser_login",
	IntentSelect:       "select",
	IntentBack:         "back",
	IntentScaffold:     "scaffold",
	IntentReturn:       "return",
	IntentSubmit:       "submit",
	IntentRun:          "run",
	IntentOpenEditor:   "open_editor",
	IntentCopyLink:     "copy_link",
	IntentSetFilter:    "set_filter",
	IntentMoveCursor:   "move_cursor",
	IntentNextPage:     "next_page",
	IntentPrevPage:     "prev_page",
	IntentRefresh:      "refresh",
	IntentSettings:     "settings",
	IntentQuit:         "quit",
}

func (k IntentKind) String() string {
	if s, ok := intentNames[k]; ok {
		return s
	}
	return "unknown"
}

func States() []StateTag {
	return []StateTag{StateSetup, StateBrowse, StateDetail, StateSolve, StateExited}
}

func Intents() []IntentKind {
	out := make([]IntentKind, 0, len(intentNames))
	for k := IntentConfigure; k <= IntentQuit; k++ {
		out = append(out, k)
	}
	return out
}

// transitions lists every intent a state acts on. Anything missing is a
// no-op that keeps the current state.
var transitions = map[StateTag]map[IntentKind]StateTag{
	StateSetup: {
		IntentConfigure:    StateBrowse,
		IntentBrowserLogin: StateSetup,
	},
	StateBrowse: {
		IntentSelect:     StateDetail,
		IntentSetFilter:  StateBrowse,
		IntentMoveCursor: StateBrowse,
		IntentNextPage:   StateBrowse,
		IntentPrevPage:   StateBrowse,
		IntentRefresh:    StateBrowse,
		IntentSettings:   StateSetup,
	},
	StateDetail: {
		IntentBack:     StateBrowse,
		IntentScaffold: StateSolve,
		IntentCopyLink: StateDetail,
		IntentRefresh:  StateDetail,
	},
	StateSolve: {
		IntentReturn:     StateDetail,
		IntentSubmit:     StateSolve,
		IntentRun:        StateSolve,
		IntentOpenEditor: StateSolve,
		IntentCopyLink:   StateSolve,
	},
}

// Transition is the full state table. handled is false for intents the
// state ignores; next is then the state itself.
func Transition(from StateTag, intent IntentKind) (next StateTag, handled bool) {
	if from == StateExited {
		return StateExited, false
	}
	if intent == IntentQuit {
		return StateExited, true
	}
	if to, ok := transitions[from][intent]; ok {
		return to, true
	}
	return from, false
}
