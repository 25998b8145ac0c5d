package retrieval

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	fileNameWeight = 10
	fullPathWeight = 5
)

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)

// ScoredPath is a candidate file with its relevance score
type ScoredPath struct {
	Path  string
	Score int
}

// Keywords extracts the lower-cased search terms of a question: its
// whitespace tokens unioned with identifier-like substrings, in order of
// first appearance. Terms shorter than minLen runes are dropped.
func Keywords(question string, minLen int) []string {
	lower := strings.ToLower(question)
	candidates := strings.Fields(lower)
	candidates = append(candidates, identifierPattern.FindAllString(lower, -1)...)

	seen := make(map[string]bool, len(candidates))
	keywords := make([]string, 0, len(candidates))
	for _, kw := range candidates {
		if seen[kw] || utf8.RuneCountInString(kw) < minLen {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	return keywords
}

// Rank scores every path against the keywords and returns the topK paths
// with a positive score, best first. A keyword found in the file name earns
// fileNameWeight and, independently, fullPathWeight when found anywhere in
// the path. Equal scores keep the input order.
func Rank(paths []string, keywords []string, topK int) []ScoredPath {
	scored := make([]ScoredPath, 0)
	for _, p := range paths {
		lowerPath := strings.ToLower(p)
		name := path.Base(lowerPath)

		score := 0
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				score += fileNameWeight
			}
			if strings.Contains(lowerPath, kw) {
				score += fullPathWeight
			}
		}
		if score > 0 {
			scored = append(scored, ScoredPath{Path: p, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK >= 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// truncate cuts s to at most limit runes
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
