package pbc

import "bytes"

// A Matcher dispatches a record to the dictionary pattern it matches. It is
// immutable after construction and safe for concurrent Match calls.
type Matcher struct {
	patterns []*Pattern
}

// NewMatcher builds a matcher over a pattern dictionary. Pattern ids are the
// slice indices.
func NewMatcher(patterns []*Pattern) *Matcher {
	return &Matcher{patterns: patterns}
}

// Match returns the id of the pattern matching record. A pattern matches
// when its literal runs occur in order in the record, the first run at
// offset 0 unless the pattern opens with a wildcard. When several patterns
// match, the one with the greatest literal weight wins; ties go to the
// smallest id. Patterns whose weight is not positive never win.
func (m *Matcher) Match(record []byte) (id int, ok bool) {
	best, bestWeight := -1, 0
	for i, p := range m.patterns {
		if p.weight > bestWeight && p.Matches(record) {
			best, bestWeight = i, p.weight
		}
	}
	return best, best >= 0
}

// Matches reports whether the pattern's literal runs occur in order in
// record, the first at offset 0 unless the pattern opens with a wildcard.
func (p *Pattern) Matches(record []byte) bool {
	cursor := 0
	for i := 0; i < p.runs; i++ {
		run := p.run(i)
		if len(run) == 0 {
			continue
		}
		if i == 0 {
			// Anchored: the skeleton does not open with a wildcard.
			if !bytes.HasPrefix(record, run) {
				return false
			}
			cursor = len(run)
			continue
		}
		j := bytes.Index(record[cursor:], run)
		if j < 0 {
			return false
		}
		cursor += j + len(run)
	}
	return true
}
