// Package engine owns the database engine handle and lends out connections.
//
// The engine (an *sql.DB over the pure-Go sqlite driver) is created once per
// process and is safe for concurrent connection creation. Individual
// connections are dedicated sessions: one per extraction worker, never
// shared, fetched row-by-row rather than materialized.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tapcore/tapcore/pkg/config"
	"github.com/tapcore/tapcore/pkg/taperrors"
)

const driverName = "sqlite"

// Manager resolves the connection string from configuration and caches the
// engine for the life of the process.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	once sync.Once

	mu     sync.Mutex
	db     *sql.DB
	closed bool
	err    error
}

// NewManager creates a connection manager for the configured database file.
// No resources are acquired until the first call to Engine or OpenConn.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "engine")),
	}
}

// DSN returns the connection string for the configured file. The source is
// opened read-only; a tap never writes to the database it extracts from.
func (m *Manager) DSN() string {
	return fmt.Sprintf("file:%s?mode=ro", m.cfg.Path)
}

// Engine returns the cached engine, creating it on first use. The database
// file must already exist and be a regular file; the driver would otherwise
// defer the failure to the first query, long after configuration mistakes
// should have surfaced.
func (m *Manager) Engine(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, taperrors.Newf(taperrors.ErrorTypeConnection,
			"connection manager for %s is closed", m.cfg.Path)
	}

	m.once.Do(func() {
		m.db, m.err = m.open(ctx)
	})
	return m.db, m.err
}

func (m *Manager) open(ctx context.Context) (*sql.DB, error) {
	info, err := os.Stat(m.cfg.Path)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection,
			"database file not reachable").WithDetail("path", m.cfg.Path)
	}
	if info.IsDir() {
		return nil, taperrors.Newf(taperrors.ErrorTypeConnection,
			"database path %s is a directory", m.cfg.Path)
	}

	db, err := sql.Open(driverName, m.DSN())
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection,
			"failed to open database").WithDetail("path", m.cfg.Path)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection,
			"failed to validate database").WithDetail("path", m.cfg.Path)
	}

	m.logger.Info("engine opened",
		zap.String("path", m.cfg.Path),
		zap.String("database", m.cfg.Database),
		zap.Int64("size_bytes", info.Size()))

	return db, nil
}

// OpenConn returns a dedicated connection session. The caller owns it
// exclusively and must close it on every exit path.
func (m *Manager) OpenConn(ctx context.Context) (*sql.Conn, error) {
	db, err := m.Engine(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConnection,
			"failed to acquire connection").WithDetail("path", m.cfg.Path)
	}
	return conn, nil
}

// Close releases the engine. Safe to call before first use and more than
// once; a closed manager refuses further Engine and OpenConn calls.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to close engine")
	}
	m.logger.Info("engine closed", zap.String("path", m.cfg.Path))
	return nil
}
