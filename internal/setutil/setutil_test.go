package setutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	allowed := []string{"persist", "merge", "remove", "all"}

	values, err := Canonicalize([]string{"remove", "persist", "remove"}, allowed)
	require.NoError(t, err)
	assert.Equal(t, []string{"persist", "remove"}, values)
}

func TestCanonicalize_EmptySet(t *testing.T) {
	values, err := Canonicalize(nil, []string{"persist"})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCanonicalize_InvalidValue(t *testing.T) {
	_, err := Canonicalize([]string{"persist", "explode"}, []string{"persist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value: explode")
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Union([]string{"a", "b"}, []string{"b", "c", "a"}))
	assert.Nil(t, Union())
}

func TestUnionBy(t *testing.T) {
	type index struct{ name, cols string }
	got := UnionBy(func(i index) string { return i.name },
		[]index{{"idx_title", "title"}},
		[]index{{"idx_title", "other"}, {"idx_isbn", "isbn"}},
	)
	assert.Equal(t, []index{{"idx_title", "title"}, {"idx_isbn", "isbn"}}, got)
}

func TestMergeLists(t *testing.T) {
	merged := MergeLists(
		map[string][]string{"beforeCreate": {"stamp", "audit"}},
		map[string][]string{"beforeCreate": {"audit", "slug"}, "afterLoad": {"decrypt"}},
	)
	assert.Equal(t, []string{"stamp", "audit", "slug"}, merged["beforeCreate"])
	assert.Equal(t, []string{"decrypt"}, merged["afterLoad"])
}
