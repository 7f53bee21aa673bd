package fastterms

import "sort"

// CompactTermSet is a set of unique terms merged across shards. Iteration
// order is undefined; sorted order is produced on demand. The map-backed
// representation trades some per-entry overhead for simplicity; the
// contract (union, size, sorted export) is what the aggregator depends on.
// A nil set reads as empty.
type CompactTermSet struct {
	terms map[string]struct{}
}

func NewCompactTermSet() *CompactTermSet {
	return &CompactTermSet{terms: make(map[string]struct{})}
}

// NewCompactTermSetOf builds a set from the given terms.
func NewCompactTermSetOf(terms ...string) *CompactTermSet {
	s := &CompactTermSet{terms: make(map[string]struct{}, len(terms))}
	for _, t := range terms {
		s.terms[t] = struct{}{}
	}
	return s
}

func (s *CompactTermSet) Add(term string) {
	s.terms[term] = struct{}{}
}

// AddAll unions other into s in place. Repeated unions with the same
// content are idempotent.
func (s *CompactTermSet) AddAll(other *CompactTermSet) {
	if other == nil {
		return
	}
	for t := range other.terms {
		s.terms[t] = struct{}{}
	}
}

func (s *CompactTermSet) Size() int {
	if s == nil {
		return 0
	}
	return len(s.terms)
}

func (s *CompactTermSet) Contains(term string) bool {
	if s == nil {
		return false
	}
	_, ok := s.terms[term]
	return ok
}

// Each calls fn for every term, in no particular order, until fn returns
// false.
func (s *CompactTermSet) Each(fn func(term string) bool) {
	if s == nil {
		return
	}
	for t := range s.terms {
		if !fn(t) {
			return
		}
	}
}

// SortedSlice returns the terms in ascending lexicographic order.
func (s *CompactTermSet) SortedSlice() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.terms))
	for t := range s.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the same terms.
func (s *CompactTermSet) Equal(other *CompactTermSet) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.terms) != len(other.terms) {
		return false
	}
	for t := range s.terms {
		if _, ok := other.terms[t]; !ok {
			return false
		}
	}
	return true
}

// utf16Len returns the number of UTF-16 code units needed to represent s:
// one per code point, two for supplementary-plane runes.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
