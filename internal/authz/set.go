package authz

import "sort"

// Set is an unordered collection of permission keys.
type Set map[string]struct{}

// NewSet builds a Set from keys, dropping duplicates.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the members sorted, for stable persistence and display.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold exactly the same keys.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Diff returns the keys present in new but not old (granted) and present in
// old but not new (revoked), both sorted.
func Diff(old, new Set) (granted, revoked []string) {
	for k := range new {
		if !old.Has(k) {
			granted = append(granted, k)
		}
	}
	for k := range old {
		if !new.Has(k) {
			revoked = append(revoked, k)
		}
	}
	sort.Strings(granted)
	sort.Strings(revoked)
	return granted, revoked
}

// SymmetricDifferenceSize counts keys present in exactly one of the sets.
func SymmetricDifferenceSize(a, b Set) int {
	count := 0
	for k := range a {
		if !b.Has(k) {
			count++
		}
	}
	for k := range b {
		if !a.Has(k) {
			count++
		}
	}
	return count
}
