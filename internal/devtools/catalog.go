// Package devtools serves an offline stand-in for the remote judge, used by
// --demo and by tests that need a realistic server.
package devtools

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	CatalogKind            = "catalog"
	SupportedSchemaVersion = 1
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,79}$`)

//go:embed catalog.yaml
var builtinCatalog []byte

type Catalog struct {
	Kind          string    `yaml:"kind"`
	SchemaVersion int       `yaml:"schema_version"`
	Problems      []Problem `yaml:"problems"`
}

type Problem struct {
	ID               string            `yaml:"id"`
	QuestionID       string            `yaml:"question_id"`
	Slug             string            `yaml:"slug"`
	Title            string            `yaml:"title"`
	Difficulty       string            `yaml:"difficulty"`
	AcRate           float64           `yaml:"ac_rate"`
	PaidOnly         bool              `yaml:"paid_only"`
	Tags             []string          `yaml:"tags"`
	ContentHTML      string            `yaml:"content_html"`
	Hints            []string          `yaml:"hints"`
	ExampleTestcases string            `yaml:"example_testcases"`
	// ExampleOutputs are the expected answers, one per example case.
	ExampleOutputs   []string          `yaml:"example_outputs"`
	Snippets         map[string]string `yaml:"snippets"`
}

func (c Catalog) Validate() error {
	if c.Kind != CatalogKind {
		return fmt.Errorf("kind must be %q", CatalogKind)
	}
	if c.SchemaVersion != SupportedSchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", c.SchemaVersion)
	}
	if len(c.Problems) == 0 {
		return fmt.Errorf("problems must not be empty")
	}
	ids := map[string]bool{}
	slugs := map[string]bool{}
	for i, p := range c.Problems {
		if _, err := strconv.Atoi(p.ID); err != nil {
			return fmt.Errorf("problems[%d]: id %q is not numeric", i, p.ID)
		}
		if !slugPattern.MatchString(p.Slug) {
			return fmt.Errorf("problems[%d]: invalid slug %q", i, p.Slug)
		}
		if p.Title == "" {
			return fmt.Errorf("problems[%d]: title is required", i)
		}
		switch p.Difficulty {
		case "Easy", "Medium", "Hard":
		default:
			return fmt.Errorf("problems[%d]: invalid difficulty %q", i, p.Difficulty)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate problem id %q", p.ID)
		}
		if slugs[p.Slug] {
			return fmt.Errorf("duplicate problem slug %q", p.Slug)
		}
		ids[p.ID], slugs[p.Slug] = true, true
	}
	return nil
}

// BuiltinCatalog is the catalog compiled into the binary.
func BuiltinCatalog() (Catalog, error) {
	return ParseCatalog(builtinCatalog)
}

func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	c, err := ParseCatalog(b)
	if err != nil {
		return Catalog{}, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, err
	}
	for i := range c.Problems {
		if c.Problems[i].QuestionID == "" {
			c.Problems[i].QuestionID = c.Problems[i].ID
		}
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	sort.SliceStable(c.Problems, func(i, j int) bool {
		a, _ := strconv.Atoi(c.Problems[i].ID)
		b, _ := strconv.Atoi(c.Problems[j].ID)
		return a < b
	})
	return c, nil
}
