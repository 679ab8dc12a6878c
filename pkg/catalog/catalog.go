// Package catalog defines the discovered-catalog model: the set of tables
// and views available for extraction, their columns and key properties, and
// the JSON document the catalog persists to between runs.
package catalog

import (
	"io"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tapcore/tapcore/pkg/taperrors"
	"github.com/tapcore/tapcore/pkg/typemap"
)

// Column describes one column of a catalog entry.
type Column struct {
	Name string `json:"name"`
	// NativeType is the column type as declared in the source engine.
	NativeType string `json:"native_type"`
	Nullable   bool   `json:"nullable"`
	// Type is the portable descriptor derived from NativeType.
	Type typemap.Portable `json:"type"`
}

// Entry describes one table or view. (Database, Schema, Table) uniquely
// identifies an entry; Schema is the convention-qualified form, not the
// literal schema name the engine reports.
type Entry struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	IsView   bool   `json:"is_view"`
	// Columns are in the engine's ordinal order.
	Columns []Column `json:"columns"`
	// KeyProperties are the primary-key column names in key order.
	// Empty for views and keyless tables.
	KeyProperties []string `json:"key_properties"`
}

// StreamID returns the catalog key for the entry ("{schema}{sep}{table}").
func (e *Entry) StreamID(sep string) string {
	return e.Schema + sep + e.Table
}

// ColumnNames returns the entry's column names in ordinal order.
func (e *Entry) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, if present.
func (e *Entry) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Document is the persisted catalog: an ordered sequence of entries.
type Document struct {
	Streams []Entry `json:"streams"`
}

// NewDocument creates a document from discovered entries, sorted into the
// stable schema-then-table order and checked for key uniqueness.
func NewDocument(entries []Entry) (*Document, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Schema != sorted[j].Schema {
			return sorted[i].Schema < sorted[j].Schema
		}
		return sorted[i].Table < sorted[j].Table
	})

	d := &Document{Streams: sorted}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the entry whose (schema, table) key matches streamID using
// the given separator.
func (d *Document) Get(streamID, sep string) (*Entry, bool) {
	for i := range d.Streams {
		if d.Streams[i].StreamID(sep) == streamID {
			return &d.Streams[i], true
		}
	}
	return nil, false
}

// Write serializes the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to encode catalog document")
	}
	return nil
}

// Load reads a previously persisted catalog document verbatim. The loaded
// entries are validated but not re-sorted; a persisted catalog is trusted
// as-is when discovery is skipped.
func Load(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeData, "failed to decode catalog document")
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Document) validate() error {
	type key struct{ db, schema, table string }
	seen := make(map[key]struct{}, len(d.Streams))
	for _, e := range d.Streams {
		if e.Table == "" {
			return taperrors.New(taperrors.ErrorTypeData, "catalog entry with empty table name")
		}
		k := key{e.Database, e.Schema, e.Table}
		if _, dup := seen[k]; dup {
			return taperrors.Newf(taperrors.ErrorTypeData,
				"duplicate catalog entry %s.%s.%s", e.Database, e.Schema, e.Table)
		}
		seen[k] = struct{}{}
	}
	return nil
}
