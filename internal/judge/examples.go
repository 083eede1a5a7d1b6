package judge

import (
	"regexp"
	"strings"
)

var exampleHeading = regexp.MustCompile(`(?i)^example\s*\d*\s*:?$`)

// ExtractExamples pulls the worked Input/Output pairs out of a rendered
// description. An example ends at the next heading, the next Input line or
// the constraints section.
func ExtractExamples(text string) []Example {
	var (
		out     []Example
		cur     *Example
		explain bool
	)
	flush := func() {
		if cur != nil && cur.Input != "" {
			cur.Explanation = strings.TrimSpace(cur.Explanation)
			out = append(out, *cur)
		}
		cur = nil
		explain = false
	}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case hasLabel(line, "input"):
			flush()
			cur = &Example{Input: labelValue(line)}
		case cur != nil && hasLabel(line, "output"):
			cur.Output = labelValue(line)
			explain = false
		case cur != nil && hasLabel(line, "explanation"):
			cur.Explanation = labelValue(line)
			explain = true
		case exampleHeading.MatchString(line), strings.HasPrefix(strings.ToLower(line), "constraints"):
			flush()
		case line == "":
			explain = false
		case explain && cur != nil:
			cur.Explanation += "\n" + line
		}
	}
	flush()
	return out
}

func hasLabel(line, label string) bool {
	if len(line) < len(label)+1 {
		return false
	}
	return strings.EqualFold(line[:len(label)], label) && line[len(label)] == ':'
}

func labelValue(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.TrimSpace(v)
}
