// Package scaffold lays out a ready-to-edit solution directory per problem.
package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/charmbracelet/x/ansi"
	"github.com/gosimple/slug"

	"lcterm/internal/common"
	"lcterm/internal/judge"
	"lcterm/internal/telemetry"
)

const (
	wrapWidth   = 96
	startMarker = "---- lcterm: solution ----"
	endMarker   = "---- lcterm: end solution ----"
)

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"note": note,
}

// Spec is where and how a problem gets scaffolded. It depends only on its
// inputs, so asking twice gives the same answer.
type Spec struct {
	Language Language
	Dir      string
	Path     string
	Template string
}

func SpecFor(root string, p judge.Problem, lang Language) (Spec, error) {
	st, ok := strategies[lang]
	if !ok {
		return Spec{}, common.Errorf(common.ErrUnsupportedLanguage, "scaffold", "%q", lang)
	}
	dir := filepath.Join(root, DirName(p))
	return Spec{
		Language: lang,
		Dir:      dir,
		Path:     filepath.Join(dir, filepath.FromSlash(st.source)),
		Template: string(lang),
	}, nil
}

// DirName is "<id>-<slug>", e.g. "27-remove-element".
func DirName(p judge.Problem) string {
	s := p.Slug
	if s == "" {
		s = p.Title
	}
	return p.ID + "-" + slug.Make(s)
}

// PathFor returns the source file a scaffold for p would use.
func PathFor(root string, p judge.Problem, lang Language) (string, error) {
	spec, err := SpecFor(root, p, lang)
	if err != nil {
		return "", err
	}
	return spec.Path, nil
}

type Generator struct {
	Logger *telemetry.Logger
	// BaseURL is used for the canonical problem link in the header.
	BaseURL string
}

// Scaffold writes the solution file for p and returns its path. An existing
// file is never touched; its path is returned as-is.
func (g Generator) Scaffold(p judge.Problem, lang Language, root string) (string, error) {
	spec, err := SpecFor(root, p, lang)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(spec.Path); err == nil {
		g.Logger.Info("scaffold.exists", map[string]any{"path": spec.Path})
		return spec.Path, nil
	}

	st := strategies[lang]
	data := g.data(p, lang, st)
	body, err := render(string(lang), st.body, data)
	if err != nil {
		return "", err
	}
	extra := map[string][]byte{}
	for name, tmpl := range st.meta {
		if extra[name], err = render(name, tmpl, data); err != nil {
			return "", err
		}
	}
	if st.testFile != "" {
		if extra[st.testFile], err = render(st.testFile, st.tests, data); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return "", common.Wrap(common.ErrFilesystem, "scaffold", err)
	}

	// The source file goes last: once it exists the scaffold is complete.
	var written []string
	undo := func() {
		for _, f := range written {
			os.Remove(f)
		}
	}
	for name, out := range extra {
		path := filepath.Join(spec.Dir, name)
		created, err := createFile(path, out)
		if err != nil {
			undo()
			return "", common.Wrap(common.ErrFilesystem, "scaffold", err)
		}
		if created {
			written = append(written, path)
		}
	}
	created, err := createFile(spec.Path, body)
	if err != nil {
		undo()
		return "", common.Wrap(common.ErrFilesystem, "scaffold", err)
	}
	if !created {
		return spec.Path, nil
	}
	g.Logger.Info("scaffold.created", map[string]any{"path": spec.Path, "lang": string(lang), "examples": len(p.Examples)})
	return spec.Path, nil
}

func (Generator) ReadSolution(path string, lang Language) (string, error) {
	return ReadSolution(path, lang)
}

// ReadSolution returns the part of a scaffolded file that gets submitted.
// Files without markers are submitted whole.
func ReadSolution(path string, lang Language) (string, error) {
	st, ok := strategies[lang]
	if !ok {
		return "", common.Errorf(common.ErrUnsupportedLanguage, "read solution", "%q", lang)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", common.Wrap(common.ErrFilesystem, "read solution", err)
	}
	start, end := marker(st.comment, startMarker), marker(st.comment, endMarker)
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	from, to := -1, -1
	for i, l := range lines {
		switch strings.TrimSpace(l) {
		case start:
			if from < 0 {
				from = i
			}
		case end:
			to = i
		}
	}
	if from < 0 || to <= from {
		return strings.TrimSpace(string(raw)) + "\n", nil
	}
	return strings.Trim(strings.Join(lines[from+1:to], "\n"), "\n") + "\n", nil
}

type templateData struct {
	Header   string
	Start    string
	End      string
	Stub     string
	Package  string
	Examples []judge.Example
}

func (g Generator) data(p judge.Problem, lang Language, st strategy) templateData {
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = judge.DefaultBaseURL
	}
	c := st.comment
	var h strings.Builder
	fmt.Fprintf(&h, "%s %s. %s\n", c, p.ID, p.Title)
	fmt.Fprintf(&h, "%s Difficulty: %s\n", c, p.Difficulty)
	fmt.Fprintf(&h, "%s %s/problems/%s/\n", c, base, p.Slug)
	if desc := strings.TrimSpace(p.Description); desc != "" {
		fmt.Fprintf(&h, "%s\n", c)
		for _, line := range strings.Split(ansi.Wordwrap(desc, wrapWidth, ""), "\n") {
			h.WriteString(strings.TrimRight(c+" "+line, " "))
			h.WriteByte('\n')
		}
	}
	return templateData{
		Header:   strings.TrimRight(h.String(), "\n"),
		Start:    marker(c, startMarker),
		End:      marker(c, endMarker),
		Stub:     stubFor(p, lang, st),
		Package:  "p" + DirName(p),
		Examples: p.Examples,
	}
}

func stubFor(p judge.Problem, lang Language, st strategy) string {
	code := st.fallback
	if sn, ok := p.Snippet(st.remote); ok && strings.TrimSpace(sn.Code) != "" {
		code = sn.Code
	}
	code = strings.TrimRight(strings.ReplaceAll(code, "\r\n", "\n"), " \t\n")
	if lang == Python3 {
		code = closePythonBlock(code)
	}
	return code
}

// closePythonBlock gives a trailing "def ...:" a body so the file parses.
func closePythonBlock(code string) string {
	lines := strings.Split(code, "\n")
	last := lines[len(lines)-1]
	if !strings.HasSuffix(strings.TrimSpace(last), ":") {
		return code
	}
	indent := last[:len(last)-len(strings.TrimLeft(last, " \t"))]
	return code + "\n" + indent + "    pass"
}

func marker(comment, text string) string { return comment + " " + text }

// note comments every line of text, putting label on the first one.
func note(prefix, label, text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		if i == 0 {
			l = label + l
		}
		lines[i] = strings.TrimRight(prefix+l, " ")
	}
	return strings.Join(lines, "\n")
}

func render(name, text string, data templateData) ([]byte, error) {
	t, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.Bytes(), nil
}

var createFile = writeNew

// writeNew creates path exclusively. It reports false when the file already
// existed, leaving it untouched.
func writeNew(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
