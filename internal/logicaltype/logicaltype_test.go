package logicaltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"integer", Number},
		{"INT", Number},
		{"decimal(10,2)", Number},
		{"bigint", BigInt},
		{"string", String},
		{"varchar(255)", String},
		{"enum", String},
		{"boolean", Boolean},
		{"Bool", Boolean},
		{"date", Date},
		{"datetime", DateTime},
		{"timestamptz", DateTime},
		{"time", Time},
		{"blob", Bytes},
		{"string[]", Array},
		{"json", JSON},
		{"uuid", UUID},
		{"point", Generic},
		{"", Generic},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.input))
		})
	}
}

func TestCategoryHelpers(t *testing.T) {
	assert.True(t, Date.IsTemporal())
	assert.True(t, DateTime.IsTemporal())
	assert.False(t, Time.IsTemporal())

	assert.True(t, Number.IsScalarIdentity())
	assert.True(t, BigInt.IsScalarIdentity())
	assert.False(t, Boolean.IsScalarIdentity())
	assert.False(t, JSON.IsScalarIdentity())

	assert.Equal(t, "datetime", DateTime.String())
	assert.Equal(t, "generic", Category(99).String())
}
