// Package fieldmap resolves a logical field to a physical column of a header row.
package fieldmap

import (
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// NotFound is returned when no header cell satisfies any strategy.
const NotFound = -1

// Strategy reports whether a header cell satisfies a candidate name.
type Strategy struct {
	Name  string
	Match func(header, candidate string) bool
}

// Strategies are tried in order, loosest last.
var Strategies = []Strategy{
	{Name: "exact", Match: func(h, c string) bool { return h == c }},
	{Name: "fuzzy", Match: func(h, c string) bool { return sheet.StripSpace(h) == sheet.StripSpace(c) }},
	{Name: "contains", Match: func(h, c string) bool { return strings.Contains(h, c) }},
}

// Find returns the column index for the first candidate that matches a header
// cell, or NotFound. A strategy is exhausted over every candidate before the
// next, looser strategy is tried.
func Find(header []string, candidates []string) int {
	idx, _ := FindWith(header, candidates, Strategies)
	return idx
}

// FindWith is Find with an explicit strategy chain. The name of the strategy
// that produced the match is returned alongside the index.
func FindWith(header []string, candidates []string, strategies []Strategy) (int, string) {
	for _, s := range strategies {
		for _, c := range candidates {
			if c == "" {
				continue
			}
			for i, h := range header {
				if h == "" {
					continue
				}
				if s.Match(h, c) {
					return i, s.Name
				}
			}
		}
	}
	return NotFound, ""
}
