package extract

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapcore/tapcore/pkg/catalog"
	"github.com/tapcore/tapcore/pkg/config"
	"github.com/tapcore/tapcore/pkg/engine"
	"github.com/tapcore/tapcore/pkg/qname"
	"github.com/tapcore/tapcore/pkg/taperrors"
	"github.com/tapcore/tapcore/pkg/testutil"
	"github.com/tapcore/tapcore/pkg/typemap"
)

func newFixture(t *testing.T, stmts ...string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	return config.New(path, "mydb")
}

func usersEntry() *catalog.Entry {
	m := typemap.NewMapper()
	return &catalog.Entry{
		Database: "mydb",
		Schema:   "mydb.main",
		Table:    "users",
		Columns: []catalog.Column{
			{Name: "id", NativeType: "INTEGER", Type: m.ToPortable("INTEGER", false)},
			{Name: "name", NativeType: "VARCHAR", Nullable: true, Type: m.ToPortable("VARCHAR", true)},
		},
		KeyProperties: []string{"id"},
	}
}

func newExtractor(t *testing.T, cfg *config.Config) (*SQLExtractor, func()) {
	t.Helper()

	logger := testutil.TestLogger(t)
	mgr := engine.NewManager(cfg, logger)
	resolver := qname.NewResolver(cfg.Separator, qname.EmbeddedConvention{
		Database:  cfg.Database,
		Separator: cfg.Separator,
	})
	return NewSQLExtractor(mgr, resolver, logger), func() { _ = mgr.Close() }
}

func drain(t *testing.T, s *Stream) []*Record {
	t.Helper()
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	var records []*Record
	for {
		rec, err := s.Next(ctx)
		if err == ErrEndOfStream {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestExtractFullScan(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`,
		`INSERT INTO users VALUES (1, 'a'), (2, 'b'), (3, NULL)`,
	)
	ext, done := newExtractor(t, cfg)
	defer done()

	s, err := ext.Extract(ctx, usersEntry(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mydb.main.users", s.ID())
	assert.Equal(t, []string{"id", "name"}, s.Columns())

	records := drain(t, s)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0].Get("id"))
	assert.Equal(t, "a", records[0].Get("name"))
	assert.Nil(t, records[2].Get("name"))
}

func TestExtractDeterminism(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`,
		`INSERT INTO users VALUES (1, 'a'), (2, 'b'), (3, 'c')`,
	)
	ext, done := newExtractor(t, cfg)
	defer done()

	// Two unpartitioned runs over unchanged data return identical
	// sequences.
	first, err := ext.Extract(ctx, usersEntry(), nil, nil)
	require.NoError(t, err)
	second, err := ext.Extract(ctx, usersEntry(), nil, nil)
	require.NoError(t, err)

	a, b := drain(t, first), drain(t, second)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Values, b[i].Values)
	}
}

func TestExtractPartition(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`,
		`INSERT INTO users VALUES (1, 'a'), (2, 'b'), (3, 'c'), (4, 'd')`,
	)
	ext, done := newExtractor(t, cfg)
	defer done()

	// After is an exclusive lower bound, Until an inclusive upper bound.
	s, err := ext.Extract(ctx, usersEntry(), nil, &Partition{Column: "id", After: 1, Until: 3})
	require.NoError(t, err)

	records := drain(t, s)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].Get("id"))
	assert.Equal(t, int64(3), records[1].Get("id"))
}

func TestExtractProjection(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`,
		`INSERT INTO users VALUES (1, 'a')`,
	)
	ext, done := newExtractor(t, cfg)
	defer done()

	s, err := ext.Extract(ctx, usersEntry(), []string{"name"}, nil)
	require.NoError(t, err)

	records := drain(t, s)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"name"}, records[0].Columns)
	assert.NotContains(t, records[0].Values, "id")
}

func TestExtractUnknownColumns(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`)
	ext, done := newExtractor(t, cfg)
	defer done()

	_, err := ext.Extract(ctx, usersEntry(), []string{"nope"}, nil)
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeExtraction))

	_, err = ext.Extract(ctx, usersEntry(), nil, &Partition{Column: "nope", After: 1})
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeExtraction))
}

func TestStreamSinglePass(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := newFixture(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`,
		`INSERT INTO users VALUES (1, 'a')`,
	)
	ext, done := newExtractor(t, cfg)
	defer done()

	s, err := ext.Extract(ctx, usersEntry(), nil, nil)
	require.NoError(t, err)
	drain(t, s)

	// Exhausted stream stays exhausted; Close stays idempotent.
	_, err = s.Next(ctx)
	assert.Equal(t, ErrEndOfStream, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRecordMarshalPreservesColumnOrder(t *testing.T) {
	rec := &Record{
		Stream:  "mydb.main.users",
		Columns: []string{"id", "name"},
		Values:  map[string]interface{}{"name": "a", "id": int64(1)},
	}

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"a"}`, string(out))
}

var _ Extractor = (*SQLExtractor)(nil)
