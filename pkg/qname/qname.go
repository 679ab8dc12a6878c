// Package qname parses and formats fully-qualified table identifiers.
//
// A qualified name has up to three separator-delimited parts:
// database, schema and table. Absent parts are represented explicitly and
// never conflated with empty strings.
//
// How a schema component is anchored to a database differs between engines.
// A client/server engine addresses schemas directly; an embedded file-backed
// engine has exactly one implicit database, and schema names coming out of
// its catalog have to be qualified with the externally configured database
// name before they are usable as catalog keys. That choice is captured by
// the Convention interface rather than hard-coded into the resolver.
package qname

import (
	"strings"

	"github.com/tapcore/tapcore/pkg/taperrors"
)

// Part is an optional name component. The zero value is absent.
type Part struct {
	Value string
	Valid bool
}

// NewPart returns a present Part with the given value.
func NewPart(v string) Part {
	return Part{Value: v, Valid: true}
}

// Name is a parsed qualified table name.
type Name struct {
	Database Part
	Schema   Part
	Table    string
}

// Convention decides how schema names are qualified for catalog keys and
// how catalog keys map back to the schema names the engine understands.
type Convention interface {
	// QualifySchema maps a discovered schema name to its catalog form.
	QualifySchema(schema string) string
	// NativeSchema maps a catalog schema back to the name usable in SQL.
	NativeSchema(qualified string) string
}

// EmbeddedConvention is the convention for single-file embedded engines.
// The engine cannot report a database name of its own, so every schema is
// prefixed with the configured database ("{database}{sep}{schema}"). The
// prefix is applied even when schema and database share a name; callers
// must not assume the catalog schema is the literal engine schema.
type EmbeddedConvention struct {
	Database  string
	Separator string
}

// QualifySchema prefixes the schema with the configured database name.
func (c EmbeddedConvention) QualifySchema(schema string) string {
	return c.Database + c.Separator + schema
}

// NativeSchema strips the database prefix added by QualifySchema. Names
// without the prefix pass through unchanged.
func (c EmbeddedConvention) NativeSchema(qualified string) string {
	return strings.TrimPrefix(qualified, c.Database+c.Separator)
}

// ServerConvention is the identity convention for engines that address
// schemas directly.
type ServerConvention struct{}

func (ServerConvention) QualifySchema(schema string) string   { return schema }
func (ServerConvention) NativeSchema(qualified string) string { return qualified }

// Resolver parses and formats qualified names under a naming convention.
type Resolver struct {
	sep  string
	conv Convention
}

// NewResolver creates a resolver using the given separator and convention.
func NewResolver(sep string, conv Convention) *Resolver {
	return &Resolver{sep: sep, conv: conv}
}

// Parse splits full into its parts. One part is a bare table, two parts are
// (schema, table), three parts are (database, schema, table); anything
// longer is an invalid-name error.
//
// When the name carries no explicit database part, the schema is rewritten
// through the convention (for embedded engines this yields
// "{database}.{schema}"). An explicit database part anchors the schema
// already, so three-part names are kept literal; this is what makes
// Parse(Format(n)) an identity for fully-qualified names.
func (r *Resolver) Parse(full string) (Name, error) {
	parts := strings.Split(full, r.sep)
	switch len(parts) {
	case 1:
		return Name{Table: parts[0]}, nil
	case 2:
		return Name{
			Schema: NewPart(r.conv.QualifySchema(parts[0])),
			Table:  parts[1],
		}, nil
	case 3:
		return Name{
			Database: NewPart(parts[0]),
			Schema:   NewPart(parts[1]),
			Table:    parts[2],
		}, nil
	default:
		return Name{}, taperrors.Newf(taperrors.ErrorTypeInvalidName,
			"qualified name %q has %d parts, at most 3 allowed", full, len(parts))
	}
}

// Format joins the present parts of n with the separator. It is used for
// logging and catalog keys.
func (r *Resolver) Format(n Name) string {
	parts := make([]string, 0, 3)
	if n.Database.Valid {
		parts = append(parts, n.Database.Value)
	}
	if n.Schema.Valid {
		parts = append(parts, n.Schema.Value)
	}
	parts = append(parts, n.Table)
	return strings.Join(parts, r.sep)
}

// Qualify maps a discovered schema name to its catalog form.
func (r *Resolver) Qualify(schema string) string {
	return r.conv.QualifySchema(schema)
}

// Native maps a catalog schema back to the name the engine understands.
func (r *Resolver) Native(qualified string) string {
	return r.conv.NativeSchema(qualified)
}

// Separator returns the configured separator character.
func (r *Resolver) Separator() string {
	return r.sep
}
