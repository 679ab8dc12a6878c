// Package typemap translates between native SQL column types and a portable
// JSON-Schema-like type system.
//
// Both directions are total: an unrecognized native type maps to the generic
// string descriptor and an unrecognized descriptor maps to VARCHAR. The
// round trip is deliberately lossy; VARCHAR(50) normalizes to the generic
// string descriptor and comes back as VARCHAR without its length.
package typemap

import (
	"strings"
)

// JSON-Schema primitive type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// JSON-Schema string formats.
const (
	FormatDateTime = "date-time"
	FormatDate     = "date"
	FormatTime     = "time"
)

// Portable is an engine-agnostic column type descriptor.
type Portable struct {
	// Types holds the admissible JSON-Schema types; nullable columns
	// carry "null" as the last element.
	Types []string `json:"type"`
	// Format refines string types (date-time, date, time).
	Format string `json:"format,omitempty"`
}

// Nullable reports whether the descriptor admits null.
func (p Portable) Nullable() bool {
	for _, t := range p.Types {
		if t == TypeNull {
			return true
		}
	}
	return false
}

// primary returns the first non-null type, defaulting to string.
func (p Portable) primary() string {
	for _, t := range p.Types {
		if t != TypeNull {
			return t
		}
	}
	return TypeString
}

// Mapper maps native SQL types to portable descriptors and back.
type Mapper struct{}

// NewMapper creates a type mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// exact matches after normalization, checked before affinity rules.
var nativeTypes = map[string]Portable{
	"INT":              {Types: []string{TypeInteger}},
	"INTEGER":          {Types: []string{TypeInteger}},
	"TINYINT":          {Types: []string{TypeInteger}},
	"SMALLINT":         {Types: []string{TypeInteger}},
	"MEDIUMINT":        {Types: []string{TypeInteger}},
	"BIGINT":           {Types: []string{TypeInteger}},
	"HUGEINT":          {Types: []string{TypeInteger}},
	"SERIAL":           {Types: []string{TypeInteger}},
	"BIGSERIAL":        {Types: []string{TypeInteger}},
	"REAL":             {Types: []string{TypeNumber}},
	"FLOAT":            {Types: []string{TypeNumber}},
	"DOUBLE":           {Types: []string{TypeNumber}},
	"DOUBLE PRECISION": {Types: []string{TypeNumber}},
	"NUMERIC":          {Types: []string{TypeNumber}},
	"DECIMAL":          {Types: []string{TypeNumber}},
	"BOOLEAN":          {Types: []string{TypeBoolean}},
	"BOOL":             {Types: []string{TypeBoolean}},
	"LOGICAL":          {Types: []string{TypeBoolean}},
	"DATE":             {Types: []string{TypeString}, Format: FormatDate},
	"TIME":             {Types: []string{TypeString}, Format: FormatTime},
	"DATETIME":         {Types: []string{TypeString}, Format: FormatDateTime},
	"TIMESTAMP":        {Types: []string{TypeString}, Format: FormatDateTime},
	"TIMESTAMPTZ":      {Types: []string{TypeString}, Format: FormatDateTime},
	"UUID":             {Types: []string{TypeString}},
	"JSON":             {Types: []string{TypeString}},
	"BLOB":             {Types: []string{TypeString}},
	"BYTEA":            {Types: []string{TypeString}},
	"VARCHAR":          {Types: []string{TypeString}},
	"CHAR":             {Types: []string{TypeString}},
	"TEXT":             {Types: []string{TypeString}},
	"CLOB":             {Types: []string{TypeString}},
}

// ToPortable returns the portable descriptor for a native column type.
// It never fails: unrecognized types fall back to the generic string
// descriptor after the engine's affinity rules have been tried.
func (m *Mapper) ToPortable(native string, nullable bool) Portable {
	p, ok := nativeTypes[normalize(native)]
	if !ok {
		p = affinity(normalize(native))
	}

	types := make([]string, len(p.Types), len(p.Types)+1)
	copy(types, p.Types)
	if nullable {
		types = append(types, TypeNull)
	}
	return Portable{Types: types, Format: p.Format}
}

// ToNative returns a native type spec for a portable descriptor. The
// mapping is total; descriptors with no recognizable type yield VARCHAR.
func (m *Mapper) ToNative(p Portable) string {
	switch p.primary() {
	case TypeInteger:
		return "INTEGER"
	case TypeNumber:
		return "DOUBLE"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeString:
		switch p.Format {
		case FormatDateTime:
			return "TIMESTAMP"
		case FormatDate:
			return "DATE"
		case FormatTime:
			return "TIME"
		}
		return "VARCHAR"
	default:
		return "VARCHAR"
	}
}

// normalize uppercases the declared type and strips any parenthesized
// arguments, so VARCHAR(50) and DECIMAL(18,3) match their base names.
func normalize(native string) string {
	s := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// affinity applies SQLite-style type affinity to declared types that have
// no exact match: INT anywhere means integer, CHAR/CLOB/TEXT mean string,
// REAL/FLOA/DOUB mean number, everything else (including the empty
// declared type) is string.
func affinity(normalized string) Portable {
	switch {
	case strings.Contains(normalized, "INT"):
		return Portable{Types: []string{TypeInteger}}
	case strings.Contains(normalized, "CHAR"),
		strings.Contains(normalized, "CLOB"),
		strings.Contains(normalized, "TEXT"):
		return Portable{Types: []string{TypeString}}
	case strings.Contains(normalized, "REAL"),
		strings.Contains(normalized, "FLOA"),
		strings.Contains(normalized, "DOUB"),
		strings.Contains(normalized, "DEC"),
		strings.Contains(normalized, "NUM"):
		return Portable{Types: []string{TypeNumber}}
	default:
		return Portable{Types: []string{TypeString}}
	}
}
