// Package matcher reconciles recognized speech with technique names and aliases.
package matcher

import (
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultThreshold is the largest edit distance still accepted as a match
const DefaultThreshold = 5

// Distance returns the Levenshtein edit distance between a and b, with unit cost
// for insertion, deletion and substitution. Comparison is rune based and case sensitive.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Candidate is a name that speech can be matched against
type Candidate struct {
	Name    string
	Aliases []string
}

// Match describes the accepted candidate
type Match struct {
	Index     int
	Candidate Candidate
	// Text is the name or alias that produced the smallest distance
	Text     string
	Distance int
}

// Matcher finds the closest candidate within a distance threshold
type Matcher struct {
	Threshold int
}

// New creates a Matcher. A negative threshold falls back to DefaultThreshold.
func New(threshold int) Matcher {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// FindClosestMatch compares the case-folded input with every candidate name and,
// if includeAliases is set, every alias. The minimum distance wins when it is within
// the threshold; on ties the first candidate seen is kept.
func (m Matcher) FindClosestMatch(input string, candidates []Candidate, includeAliases bool) (Match, bool) {
	needle := normalize(input)
	best := Match{Index: -1}
	for i, c := range candidates {
		texts := []string{c.Name}
		if includeAliases {
			texts = append(texts, c.Aliases...)
		}
		for _, text := range texts {
			d := Distance(needle, normalize(text))
			if best.Index < 0 || d < best.Distance {
				best = Match{Index: i, Candidate: c, Text: text, Distance: d}
			}
		}
	}
	if best.Index < 0 || best.Distance > m.Threshold {
		return Match{}, false
	}
	return best, true
}

// FindClosestName is FindClosestMatch over plain names without aliases
func (m Matcher) FindClosestName(input string, names []string) (string, bool) {
	candidates := make([]Candidate, 0, len(names))
	for _, n := range names {
		candidates = append(candidates, Candidate{Name: n})
	}
	match, ok := m.FindClosestMatch(input, candidates, false)
	if !ok {
		return "", false
	}
	return match.Candidate.Name, true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
