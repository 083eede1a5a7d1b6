package app

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"lcterm/internal/judge"
)

// rankBySearch orders a page so titles closest to the search text come
// first. Titles containing the text beat everything else.
func rankBySearch(rows []judge.ProblemSummary, search string) []judge.ProblemSummary {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" || len(rows) < 2 {
		return rows
	}
	type scored struct {
		row      judge.ProblemSummary
		contains bool
		dist     int
	}
	items := make([]scored, len(rows))
	for i, r := range rows {
		title := strings.ToLower(r.Title)
		items[i] = scored{
			row:      r,
			contains: strings.Contains(title, q) || r.ID == q,
			dist:     levenshtein.ComputeDistance(q, title),
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].contains != items[j].contains {
			return items[i].contains
		}
		return items[i].dist < items[j].dist
	})
	out := make([]judge.ProblemSummary, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out
}
