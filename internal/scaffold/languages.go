package scaffold

import (
	"slices"
	"strings"

	"lcterm/internal/common"
)

type Language string

const (
	Go      Language = "go"
	Python3 Language = "python3"
	Rust    Language = "rust"
	Cpp     Language = "cpp"
)

// strategy is everything needed to lay out one language. The table below is
// closed; adding a language means adding a row.
type strategy struct {
	remote   string
	source   string
	testFile string
	comment  string
	fallback string
	body     string
	tests    string
	meta     map[string]string
}

var strategies = map[Language]strategy{
	Go: {
		remote:   "golang",
		source:   "solution.go",
		testFile: "solution_test.go",
		comment:  "//",
		fallback: "func solve() {\n}\n",
		body:     goBody,
		tests:    goTests,
		meta:     map[string]string{"go.mod": goMod},
	},
	Python3: {
		remote:   "python3",
		source:   "solution.py",
		comment:  "#",
		fallback: "class Solution:\n    pass\n",
		body:     pythonBody,
	},
	Rust: {
		remote:   "rust",
		source:   "src/main.rs",
		comment:  "//",
		fallback: "impl Solution {\n}\n",
		body:     rustBody,
		meta:     map[string]string{"Cargo.toml": cargoToml},
	},
	Cpp: {
		remote:   "cpp",
		source:   "solution.cpp",
		comment:  "//",
		fallback: "class Solution {\npublic:\n};\n",
		body:     cppBody,
	},
}

func ParseLanguage(raw string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(raw)))
	switch l {
	case "golang":
		l = Go
	case "python", "py":
		l = Python3
	case "c++":
		l = Cpp
	}
	if _, ok := strategies[l]; !ok {
		return "", common.Errorf(common.ErrUnsupportedLanguage, "scaffold", "%q", raw)
	}
	return l, nil
}

func Languages() []Language {
	out := make([]Language, 0, len(strategies))
	for l := range strategies {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// RemoteSlug is the judge's name for the language.
func (l Language) RemoteSlug() string { return strategies[l].remote }

