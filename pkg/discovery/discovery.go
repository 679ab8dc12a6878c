// Package discovery inspects the source database's catalog and produces
// normalized catalog entries.
package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tapcore/tapcore/pkg/catalog"
	"github.com/tapcore/tapcore/pkg/config"
	"github.com/tapcore/tapcore/pkg/engine"
	"github.com/tapcore/tapcore/pkg/qname"
	"github.com/tapcore/tapcore/pkg/taperrors"
	"github.com/tapcore/tapcore/pkg/typemap"
)

// Discoverer produces the catalog of a source database.
type Discoverer interface {
	Discover(ctx context.Context) (*catalog.Document, error)
}

// SQLiteDiscoverer reflects schemas, tables, views, columns and primary
// keys through the sqlite catalog pragmas.
type SQLiteDiscoverer struct {
	cfg      *config.Config
	mgr      *engine.Manager
	resolver *qname.Resolver
	types    *typemap.Mapper
	logger   *zap.Logger
}

// NewSQLiteDiscoverer creates a discoverer over the given engine.
func NewSQLiteDiscoverer(cfg *config.Config, mgr *engine.Manager, resolver *qname.Resolver, types *typemap.Mapper, logger *zap.Logger) *SQLiteDiscoverer {
	return &SQLiteDiscoverer{
		cfg:      cfg,
		mgr:      mgr,
		resolver: resolver,
		types:    types,
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// Discover builds the full catalog. Any introspection failure aborts the
// whole build; partial catalogs are never emitted. A table whose name would
// not survive qualified-name parsing is reported and skipped without
// aborting the catalog.
func (d *SQLiteDiscoverer) Discover(ctx context.Context) (*catalog.Document, error) {
	conn, err := d.mgr.OpenConn(ctx)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to open connection for discovery")
	}
	defer conn.Close()

	schemas, err := d.listSchemas(ctx, conn)
	if err != nil {
		return nil, err
	}

	var entries []catalog.Entry
	for _, schema := range schemas {
		schemaEntries, err := d.discoverSchema(ctx, conn, schema)
		if err != nil {
			return nil, err
		}
		entries = append(entries, schemaEntries...)
	}

	doc, err := catalog.NewDocument(entries)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "discovered catalog is inconsistent")
	}

	d.logger.Info("catalog discovered",
		zap.Int("schemas", len(schemas)),
		zap.Int("streams", len(doc.Streams)))

	return doc, nil
}

// listSchemas enumerates the schemas attached to the connection. The driver
// reports each attachment under its bare name, but a raw name that arrives
// in the qualified "database.schema" form is stripped back to the schema
// component: the connection is scoped to a single database file, so the
// database half of such a name is the file itself, not an addressing level.
func (d *SQLiteDiscoverer) listSchemas(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name FROM pragma_database_list ORDER BY name`)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to enumerate schemas")
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to scan schema name")
		}
		schemas = append(schemas, d.resolver.Native(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery, "failed to iterate schema list")
	}
	return schemas, nil
}

// discoverSchema reflects every table and view in one schema. A schema with
// zero tables yields zero entries.
func (d *SQLiteDiscoverer) discoverSchema(ctx context.Context, conn *sql.Conn, schema string) ([]catalog.Entry, error) {
	query := fmt.Sprintf(
		`SELECT name, type FROM %s.sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%' ORDER BY name`,
		quoteIdent(schema))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
			"failed to list tables").WithDetail("schema", schema)
	}
	defer rows.Close()

	type relation struct {
		name   string
		isView bool
	}
	var relations []relation
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
				"failed to scan table row").WithDetail("schema", schema)
		}
		relations = append(relations, relation{name: name, isView: typ == "view"})
	}
	if err := rows.Err(); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
			"failed to iterate tables").WithDetail("schema", schema)
	}

	qualified := d.resolver.Qualify(schema)

	entries := make([]catalog.Entry, 0, len(relations))
	for _, rel := range relations {
		// A table name containing the separator cannot form a valid
		// qualified name; report it and move on.
		if _, err := d.resolver.Parse(qualified + d.resolver.Separator() + rel.name); err != nil {
			d.logger.Warn("skipping table with unparseable name",
				zap.String("schema", schema),
				zap.String("table", rel.name),
				zap.Error(err))
			continue
		}

		columns, keys, err := d.reflectColumns(ctx, conn, schema, rel.name)
		if err != nil {
			return nil, err
		}

		entries = append(entries, catalog.Entry{
			Database:      d.cfg.Database,
			Schema:        qualified,
			Table:         rel.name,
			IsView:        rel.isView,
			Columns:       columns,
			KeyProperties: keys,
		})
	}
	return entries, nil
}

// reflectColumns reads column names, declared types, nullability and the
// primary key for one relation.
func (d *SQLiteDiscoverer) reflectColumns(ctx context.Context, conn *sql.Conn, schema, table string) ([]catalog.Column, []string, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		table, schema)
	if err != nil {
		return nil, nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
			"failed to reflect columns").WithDetail("schema", schema).WithDetail("table", table)
	}
	defer rows.Close()

	var columns []catalog.Column
	type pkColumn struct {
		name  string
		order int
	}
	var pk []pkColumn

	for rows.Next() {
		var (
			name, declared  string
			notNull, pkRank int
		)
		if err := rows.Scan(&name, &declared, &notNull, &pkRank); err != nil {
			return nil, nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
				"failed to scan column row").WithDetail("schema", schema).WithDetail("table", table)
		}

		nullable := notNull == 0 && pkRank == 0
		columns = append(columns, catalog.Column{
			Name:       name,
			NativeType: declared,
			Nullable:   nullable,
			Type:       d.types.ToPortable(declared, nullable),
		})
		if pkRank > 0 {
			pk = append(pk, pkColumn{name: name, order: pkRank})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, taperrors.Wrap(err, taperrors.ErrorTypeDiscovery,
			"failed to iterate columns").WithDetail("schema", schema).WithDetail("table", table)
	}

	keys := make([]string, len(pk))
	for _, c := range pk {
		keys[c.order-1] = c.name
	}
	return columns, keys, nil
}

// quoteIdent double-quotes an identifier for interpolation into SQL.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
