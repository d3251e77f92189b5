// Package scopes converts between the wire scope string (space delimited,
// RFC 6749 §3.3) and the set of authorization roles the engine works with.
// The codec itself never fails: callers decide whether an empty set is an
// invalid_scope condition.
package scopes

import (
	"sort"
	"strings"
)

// Parse splits a wire scope string into a set of scope names. Whitespace of
// any kind separates entries; duplicates are dropped, first occurrence wins.
// An empty or blank input yields an empty set.
func Parse(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(fields))
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	return result
}

// Format joins a scope set into the wire representation in stable (sorted)
// order, so equal sets always serialise identically.
func Format(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// Identical reports set equality ignoring order and duplicates. It decides
// whether a token response must echo the scope parameter (RFC 6749 §5.1:
// required only when granted differs from requested).
func Identical(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether every scope in inner is present in outer. Used
// for refresh-token narrowing and for resource-side authorization, both of
// which require all-scopes-must-match semantics.
func Contains(outer, inner []string) bool {
	os := toSet(outer)
	for _, s := range inner {
		if _, ok := os[s]; !ok {
			return false
		}
	}
	return true
}

func toSet(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}
