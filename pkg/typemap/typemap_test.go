package typemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPortableKnownTypes(t *testing.T) {
	m := NewMapper()

	cases := map[string]Portable{
		"INTEGER":     {Types: []string{TypeInteger}},
		"bigint":      {Types: []string{TypeInteger}},
		"DOUBLE":      {Types: []string{TypeNumber}},
		"DECIMAL":     {Types: []string{TypeNumber}},
		"BOOLEAN":     {Types: []string{TypeBoolean}},
		"VARCHAR":     {Types: []string{TypeString}},
		"TEXT":        {Types: []string{TypeString}},
		"DATE":        {Types: []string{TypeString}, Format: FormatDate},
		"TIME":        {Types: []string{TypeString}, Format: FormatTime},
		"TIMESTAMP":   {Types: []string{TypeString}, Format: FormatDateTime},
		"TIMESTAMPTZ": {Types: []string{TypeString}, Format: FormatDateTime},
		"UUID":        {Types: []string{TypeString}},
		"BLOB":        {Types: []string{TypeString}},
	}

	for native, want := range cases {
		assert.Equal(t, want, m.ToPortable(native, false), native)
	}
}

func TestToPortableStripsTypeArguments(t *testing.T) {
	m := NewMapper()

	assert.Equal(t, []string{TypeString}, m.ToPortable("VARCHAR(50)", false).Types)
	assert.Equal(t, []string{TypeNumber}, m.ToPortable("DECIMAL(18,3)", false).Types)
	assert.Equal(t, []string{TypeString}, m.ToPortable("  varchar (50) ", false).Types)
}

func TestToPortableAffinityFallback(t *testing.T) {
	m := NewMapper()

	assert.Equal(t, []string{TypeInteger}, m.ToPortable("UNSIGNED BIG INT", false).Types)
	assert.Equal(t, []string{TypeString}, m.ToPortable("NATIVE CHARACTER(70)", false).Types)
	assert.Equal(t, []string{TypeNumber}, m.ToPortable("FLOAT8", false).Types)

	// The INT rule is checked first, so FLOATING POINT gets integer
	// affinity. That matches the engine's declared-type rules exactly.
	assert.Equal(t, []string{TypeInteger}, m.ToPortable("FLOATING POINT", false).Types)
}

func TestToPortableNeverFails(t *testing.T) {
	m := NewMapper()

	// Unrecognized and degenerate types fall back to string, never error.
	for _, native := range []string{"FROBNICATE", "", "   ", "STRUCT(a INT)", "ENUM('x','y')"} {
		p := m.ToPortable(native, false)
		require.NotEmpty(t, p.Types, native)
	}
	assert.Equal(t, []string{TypeString}, m.ToPortable("FROBNICATE", false).Types)
}

func TestToPortableNullable(t *testing.T) {
	m := NewMapper()

	p := m.ToPortable("INTEGER", true)
	assert.Equal(t, []string{TypeInteger, TypeNull}, p.Types)
	assert.True(t, p.Nullable())
	assert.False(t, m.ToPortable("INTEGER", false).Nullable())
}

func TestToNativeTotal(t *testing.T) {
	m := NewMapper()

	cases := map[string]Portable{
		"INTEGER":   {Types: []string{TypeInteger}},
		"DOUBLE":    {Types: []string{TypeNumber}},
		"BOOLEAN":   {Types: []string{TypeBoolean}},
		"VARCHAR":   {Types: []string{TypeString}},
		"TIMESTAMP": {Types: []string{TypeString}, Format: FormatDateTime},
		"DATE":      {Types: []string{TypeString}, Format: FormatDate},
		"TIME":      {Types: []string{TypeString}, Format: FormatTime},
	}
	for want, p := range cases {
		assert.Equal(t, want, m.ToNative(p))
	}

	// Degenerate descriptors still map.
	assert.Equal(t, "VARCHAR", m.ToNative(Portable{}))
	assert.Equal(t, "VARCHAR", m.ToNative(Portable{Types: []string{TypeNull}}))
	assert.Equal(t, "INTEGER", m.ToNative(Portable{Types: []string{TypeNull, TypeInteger}}))
}

func TestRoundTripIsLossyButTotal(t *testing.T) {
	m := NewMapper()

	// VARCHAR(50) normalizes through the portable descriptor and comes
	// back without its length.
	assert.Equal(t, "VARCHAR", m.ToNative(m.ToPortable("VARCHAR(50)", false)))
	assert.Equal(t, "INTEGER", m.ToNative(m.ToPortable("bigint", false)))
}
