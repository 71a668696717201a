package platform

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes_Builtins(t *testing.T) {
	types := NewTypes()

	typ, ok := types.Lookup("json")
	require.True(t, ok)
	_, isComparer := typ.(Comparer)
	assert.True(t, isComparer)

	_, ok = types.Lookup("missing")
	assert.False(t, ok)

	var nilTypes *Types
	_, ok = nilTypes.Lookup("json")
	assert.False(t, ok)
}

func TestJSONType(t *testing.T) {
	j := JSONType{}

	stored, err := j.ToStorage(map[string]any{"b": 1, "a": []any{"x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"b":1}`, stored)

	loaded, err := j.FromStorage([]byte(`{"a":["x"],"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{"x"}, "b": float64(1)}, loaded)

	assert.True(t, j.Compare(`{"b":1, "a":["x"]}`, map[string]any{"a": []any{"x"}, "b": 1}))
	assert.False(t, j.Compare(`{"b":2}`, `{"b":1}`))

	_, err = j.FromStorage("{broken")
	assert.Error(t, err)
}

func TestUUIDBinaryType(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	typ := UUIDBinaryType{}

	stored, err := typ.ToStorage("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, u[:], stored)

	loaded, err := typ.FromStorage(stored)
	require.NoError(t, err)
	assert.Equal(t, u.String(), loaded)

	assert.True(t, typ.Compare(u.String(), stored))
	assert.False(t, typ.Compare(u.String(), uuid.Nil.String()))

	_, err = typ.ToStorage("nope")
	assert.Error(t, err)
}
