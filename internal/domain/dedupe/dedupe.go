// Package dedupe removes repeated items from candidate lists by identifier.
package dedupe

// Set records identifiers already seen. The zero value is not usable; call
// NewSet. A Set is not safe for concurrent use.
type Set struct {
	seen map[string]struct{}
}

// NewSet returns an empty Set sized for hint entries.
func NewSet(hint int) *Set {
	if hint < 0 {
		hint = 0
	}
	return &Set{seen: make(map[string]struct{}, hint)}
}

// SeenAndRecord reports whether id was already recorded and records it if not.
func (s *Set) SeenAndRecord(id string) bool {
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}

// Has reports whether id was recorded.
func (s *Set) Has(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Size returns the number of recorded identifiers.
func (s *Set) Size() int { return len(s.seen) }

// Unique returns items with repeated keys removed, keeping the first
// occurrence of each key and the original order. Empty keys are dropped.
func Unique[T any](items []T, key func(T) string) []T {
	set := NewSet(len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" || set.SeenAndRecord(k) {
			continue
		}
		out = append(out, it)
	}
	return out
}
