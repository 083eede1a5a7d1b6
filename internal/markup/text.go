// Package markup turns the judge's problem HTML into plain text.
package markup

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	policy     = bluemonday.UGCPolicy()
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f\v\x{00a0}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// ToText renders problem HTML as plain text. Preformatted blocks keep their
// line structure so worked examples survive verbatim.
func ToText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	clean := policy.Sanitize(raw)
	nodes, err := html.ParseFragment(strings.NewReader(clean), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return strings.TrimSpace(spaceRun.ReplaceAllString(clean, " "))
	}
	r := &renderer{}
	for _, n := range nodes {
		r.walk(n)
	}
	return r.finish()
}

type renderer struct {
	buf   bytes.Buffer
	pre   int
	lists []int
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			r.walk(c)
		}
		return
	}

	switch n.DataAtom {
	case atom.Br:
		r.newlines(1)
		return
	case atom.Img:
		return
	case atom.Pre:
		r.newlines(2)
		r.pre++
		r.children(n)
		r.pre--
		r.newlines(2)
		return
	case atom.P, atom.Div, atom.Blockquote, atom.H1, atom.H2, atom.H3, atom.H4, atom.Table:
		r.newlines(2)
		r.children(n)
		r.newlines(2)
		return
	case atom.Tr:
		r.newlines(1)
		r.children(n)
		r.newlines(1)
		return
	case atom.Ul:
		r.lists = append(r.lists, -1)
		r.newlines(1)
		r.children(n)
		r.lists = r.lists[:len(r.lists)-1]
		r.newlines(2)
		return
	case atom.Ol:
		r.lists = append(r.lists, 0)
		r.newlines(1)
		r.children(n)
		r.lists = r.lists[:len(r.lists)-1]
		r.newlines(2)
		return
	case atom.Li:
		r.newlines(1)
		r.write(strings.Repeat("  ", max(0, len(r.lists)-1)))
		r.write(r.bullet())
		r.children(n)
		r.newlines(1)
		return
	case atom.Sup:
		r.write("^")
	case atom.Td, atom.Th:
		r.children(n)
		r.write(" ")
		return
	}
	r.children(n)
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

func (r *renderer) bullet() string {
	if len(r.lists) == 0 {
		return "- "
	}
	top := len(r.lists) - 1
	if r.lists[top] < 0 {
		return "- "
	}
	r.lists[top]++
	return strconv.Itoa(r.lists[top]) + ". "
}

func (r *renderer) text(s string) {
	if r.pre > 0 {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		r.write(strings.ReplaceAll(s, "\u00a0", " "))
		return
	}
	s = spaceRun.ReplaceAllString(s, " ")
	if r.atLineStart() {
		s = strings.TrimLeft(s, " ")
	} else if strings.HasPrefix(s, " ") && r.endsWithSpace() {
		s = s[1:]
	}
	r.write(s)
}

func (r *renderer) write(s string) {
	r.buf.WriteString(s)
}

func (r *renderer) atLineStart() bool {
	b := r.buf.Bytes()
	return len(b) == 0 || b[len(b)-1] == '\n'
}

func (r *renderer) endsWithSpace() bool {
	b := r.buf.Bytes()
	return len(b) > 0 && b[len(b)-1] == ' '
}

// newlines makes the output end with at least n line breaks.
func (r *renderer) newlines(n int) {
	b := bytes.TrimRight(r.buf.Bytes(), " ")
	r.buf.Truncate(len(b))
	if len(b) == 0 {
		return
	}
	have := len(b) - len(bytes.TrimRight(b, "\n"))
	for i := have; i < n; i++ {
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) finish() string {
	lines := strings.Split(r.buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.Trim(out, "\n")
}
