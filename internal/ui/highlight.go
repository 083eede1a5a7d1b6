package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var lexerNames = map[string]string{
	"go":      "go",
	"python3": "python",
	"rust":    "rust",
	"cpp":     "c++",
}

// highlight colours source for a scaffold language. Any failure returns the
// source unchanged.
func highlight(src, lang, style string) string {
	if style == "" || strings.TrimSpace(src) == "" {
		return src
	}
	lexer := lexers.Get(lexerNames[lang])
	if lexer == nil {
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		return src
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, styles.Get(style), it); err != nil {
		return src
	}
	return strings.TrimRight(b.String(), "\n")
}
