package catalog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapcore/tapcore/pkg/typemap"
)

func testEntry(schema, table string) Entry {
	return Entry{
		Database: "mydb",
		Schema:   schema,
		Table:    table,
		Columns: []Column{
			{Name: "id", NativeType: "INTEGER", Type: typemap.Portable{Types: []string{"integer"}}},
			{Name: "name", NativeType: "VARCHAR", Nullable: true, Type: typemap.Portable{Types: []string{"string", "null"}}},
		},
		KeyProperties: []string{"id"},
	}
}

func TestNewDocumentSortsEntries(t *testing.T) {
	doc, err := NewDocument([]Entry{
		testEntry("mydb.main", "zebra"),
		testEntry("mydb.aux", "alpha"),
		testEntry("mydb.main", "alpha"),
	})
	require.NoError(t, err)

	var keys []string
	for _, e := range doc.Streams {
		keys = append(keys, e.StreamID("."))
	}
	assert.Equal(t, []string{"mydb.aux.alpha", "mydb.main.alpha", "mydb.main.zebra"}, keys)
}

func TestNewDocumentRejectsDuplicates(t *testing.T) {
	_, err := NewDocument([]Entry{
		testEntry("mydb.main", "t"),
		testEntry("mydb.main", "t"),
	})
	assert.Error(t, err)
}

func TestDocumentGet(t *testing.T) {
	doc, err := NewDocument([]Entry{testEntry("mydb.main", "users")})
	require.NoError(t, err)

	e, ok := doc.Get("mydb.main.users", ".")
	require.True(t, ok)
	assert.Equal(t, "users", e.Table)

	_, ok = doc.Get("mydb.main.missing", ".")
	assert.False(t, ok)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc, err := NewDocument([]Entry{
		testEntry("mydb.main", "users"),
		testEntry("mydb.main", "orders"),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Streams, loaded.Streams)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	_, err := Load(bytes.NewBufferString(`{"streams": [{"database": "d", "schema": "s", "table": ""}]}`))
	assert.Error(t, err)

	_, err = Load(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}

func TestEntryAccessors(t *testing.T) {
	e := testEntry("mydb.main", "users")

	assert.Equal(t, []string{"id", "name"}, e.ColumnNames())

	col, ok := e.Column("name")
	require.True(t, ok)
	assert.True(t, col.Nullable)

	_, ok = e.Column("missing")
	assert.False(t, ok)
}
