// Package setutil builds ordered, de-duplicated unions of names.
package setutil

import (
	"fmt"
)

// Canonicalize validates values against an allowed list and returns them de-duplicated
// in allowed declaration order.
func Canonicalize(values []string, allowed []string) ([]string, error) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		allowedSet[v] = struct{}{}
	}

	selected := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := allowedSet[v]; !ok {
			return nil, fmt.Errorf("invalid value: %s", v)
		}
		selected[v] = struct{}{}
	}

	ordered := make([]string, 0, len(selected))
	for _, option := range allowed {
		if _, ok := selected[option]; ok {
			ordered = append(ordered, option)
		}
	}
	return ordered, nil
}

// Union concatenates the lists, keeping the first occurrence of every value.
func Union(lists ...[]string) []string {
	return UnionBy(func(s string) string { return s }, lists...)
}

// UnionBy concatenates the lists, keeping the first item for every key.
func UnionBy[T any](key func(T) string, lists ...[]T) []T {
	var out []T
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, item := range list {
			k := key(item)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// MergeLists unions two maps of ordered lists key by key. Values of base come first.
func MergeLists(base, extra map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = Union(v)
	}
	for k, v := range extra {
		out[k] = Union(out[k], v)
	}
	return out
}
