package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lcterm/internal/common"
	"lcterm/internal/judge"
)

func removeElement() judge.Problem {
	return judge.Problem{
		ID:         "27",
		QuestionID: "27",
		Slug:       "remove-element",
		Title:      "Remove Element",
		Difficulty: judge.DifficultyEasy,
		Description: "Given an integer array nums and an integer val, remove all occurrences of val in nums in-place.\n\n" +
			"Example 1:\n\nInput: nums = [3,2,2,3], val = 3\nOutput: 2, nums = [2,2,_,_]",
		Examples: []judge.Example{{Input: "nums = [3,2,2,3], val = 3", Output: "2, nums = [2,2,_,_]"}},
		Snippets: []judge.CodeSnippet{
			{Lang: "Python3", LangSlug: "python3", Code: "class Solution:\n    def removeElement(self, nums: List[int], val: int) -> int:\n        "},
			{Lang: "Rust", LangSlug: "rust", Code: "impl Solution {\n    pub fn remove_element(nums: &mut Vec<i32>, val: i32) -> i32 {\n        \n    }\n}"},
		},
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return out
}

func TestScaffoldPythonCreatesOneFile(t *testing.T) {
	root := t.TempDir()
	path, err := Generator{}.Scaffold(removeElement(), Python3, root)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	files := listFiles(t, root)
	if len(files) != 1 || files[0] != "27-remove-element/solution.py" {
		t.Fatalf("expected exactly one new file, got %v", files)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	src := string(b)
	header := strings.SplitN(src, "\n", 2)[0]
	if !strings.Contains(header, "27") || !strings.Contains(header, "Remove Element") {
		t.Fatalf("unexpected header line %q", header)
	}
	if !strings.Contains(src, "https://leetcode.com/problems/remove-element/") {
		t.Fatalf("expected canonical url in:\n%s", src)
	}
	if n := strings.Count(src, "def test_example_"); n != 1 {
		t.Fatalf("expected one generated test, got %d:\n%s", n, src)
	}
	if !strings.Contains(src, "# Input: nums = [3,2,2,3], val = 3") {
		t.Fatalf("expected test derived from the example:\n%s", src)
	}
	if !strings.Contains(src, "def removeElement(self, nums: List[int], val: int) -> int:\n        pass") {
		t.Fatalf("expected stub from snippet with a body:\n%s", src)
	}
}

func TestScaffoldIsIdempotent(t *testing.T) {
	root := t.TempDir()
	g := Generator{}
	first, err := g.Scaffold(removeElement(), Python3, root)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if err := os.WriteFile(first, []byte("my work"), 0o644); err != nil {
		t.Fatalf("edit: %v", err)
	}
	second, err := g.Scaffold(removeElement(), Python3, root)
	if err != nil {
		t.Fatalf("second scaffold: %v", err)
	}
	if first != second {
		t.Fatalf("expected same path, got %s and %s", first, second)
	}
	b, _ := os.ReadFile(second)
	if string(b) != "my work" {
		t.Fatalf("expected user edits preserved, got %q", string(b))
	}
}

func TestScaffoldRustWritesCargoProject(t *testing.T) {
	root := t.TempDir()
	path, err := Generator{}.Scaffold(removeElement(), Rust, root)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if want := filepath.Join(root, "27-remove-element", "src", "main.rs"); path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	cargo, err := os.ReadFile(filepath.Join(root, "27-remove-element", "Cargo.toml"))
	if err != nil {
		t.Fatalf("read Cargo.toml: %v", err)
	}
	if !strings.Contains(string(cargo), `name = "p27-remove-element"`) {
		t.Fatalf("unexpected Cargo.toml:\n%s", cargo)
	}
	src, _ := os.ReadFile(path)
	if strings.Count(string(src), "fn example_") != 1 || !strings.Contains(string(src), "pub fn remove_element") {
		t.Fatalf("unexpected main.rs:\n%s", src)
	}
}

func TestScaffoldGoWritesModuleAndTests(t *testing.T) {
	root := t.TempDir()
	p := removeElement()
	p.Examples = append(p.Examples, judge.Example{Input: "nums = [0,1,2,2,3,0,4,2], val = 2", Output: "5"})
	if _, err := (Generator{}).Scaffold(p, Go, root); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	files := listFiles(t, root)
	want := map[string]bool{"27-remove-element/go.mod": true, "27-remove-element/solution.go": true, "27-remove-element/solution_test.go": true}
	if len(files) != len(want) {
		t.Fatalf("unexpected files %v", files)
	}
	for _, f := range files {
		if !want[f] {
			t.Fatalf("unexpected file %s", f)
		}
	}
	tests, _ := os.ReadFile(filepath.Join(root, "27-remove-element", "solution_test.go"))
	if !strings.Contains(string(tests), "func TestExample2(t *testing.T)") {
		t.Fatalf("expected one test per example:\n%s", tests)
	}
	src, _ := os.ReadFile(filepath.Join(root, "27-remove-element", "solution.go"))
	if !strings.Contains(string(src), "func solve()") {
		t.Fatalf("expected fallback stub without a golang snippet:\n%s", src)
	}
}

func TestScaffoldUnsupportedLanguage(t *testing.T) {
	root := t.TempDir()
	_, err := Generator{}.Scaffold(removeElement(), Language("cobol"), root)
	if !errors.Is(err, common.ErrUnsupportedLanguage) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
	if files := listFiles(t, root); len(files) != 0 {
		t.Fatalf("expected nothing written, got %v", files)
	}
	if _, err := ParseLanguage("java"); !errors.Is(err, common.ErrUnsupportedLanguage) {
		t.Fatalf("expected parse to reject java, got %v", err)
	}
}

func TestScaffoldUnwritableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err := Generator{}.Scaffold(removeElement(), Python3, root)
	if !errors.Is(err, common.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestScaffoldFailureLeavesNoPartialFiles(t *testing.T) {
	root := t.TempDir()
	createFile = func(path string, data []byte) (bool, error) {
		if filepath.Base(path) == "go.mod" {
			return false, os.ErrPermission
		}
		return writeNew(path, data)
	}
	t.Cleanup(func() { createFile = writeNew })

	_, err := Generator{}.Scaffold(removeElement(), Go, root)
	if !errors.Is(err, common.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
	if files := listFiles(t, root); len(files) != 0 {
		t.Fatalf("expected no files after a failed scaffold, got %v", files)
	}

	createFile = writeNew
	if _, err := (Generator{}).Scaffold(removeElement(), Go, root); err != nil {
		t.Fatalf("retry scaffold: %v", err)
	}
	if files := listFiles(t, root); len(files) != 3 {
		t.Fatalf("expected a complete scaffold on retry, got %v", files)
	}
}

func TestPathForIsPure(t *testing.T) {
	a, err := PathFor("/work", removeElement(), Cpp)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	b, _ := PathFor("/work", removeElement(), Cpp)
	if a != b || a != filepath.Join("/work", "27-remove-element", "solution.cpp") {
		t.Fatalf("unexpected paths %s %s", a, b)
	}
}

func TestReadSolutionStripsScaffolding(t *testing.T) {
	root := t.TempDir()
	path, err := Generator{}.Scaffold(removeElement(), Python3, root)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	got, err := ReadSolution(path, Python3)
	if err != nil {
		t.Fatalf("read solution: %v", err)
	}
	if !strings.HasPrefix(got, "class Solution:") || strings.Contains(got, "unittest") || strings.Contains(got, "Difficulty") {
		t.Fatalf("unexpected solution text:\n%s", got)
	}

	plain := filepath.Join(root, "plain.py")
	if err := os.WriteFile(plain, []byte("class Solution: pass\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = ReadSolution(plain, Python3)
	if err != nil || got != "class Solution: pass\n" {
		t.Fatalf("expected whole file, got %q %v", got, err)
	}
	if _, err := ReadSolution(filepath.Join(root, "missing.py"), Python3); !errors.Is(err, common.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}
