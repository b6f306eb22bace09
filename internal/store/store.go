// Package store implements the almanac persistence engine over a
// transactional SQL database. It keeps a revisioned item store, an
// append-only per-collection change journal backing sync-token queries, and
// derived collections recomputed inside the transaction of the mutation
// that triggered them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// Store implements types.Store over a SQL database. All public operations
// run inside exactly one transaction; repository helpers in this package
// only ever participate in a transaction supplied by the caller.
type Store struct {
	mu     sync.RWMutex
	closed bool
	db     *sql.DB

	driver        string
	createParents bool
	logQueries    bool
	logger        *slog.Logger
}

// Open connects to the database described by config, applies the schema,
// and returns a ready Store. A nil logger disables logging.
func Open(config types.Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dsn := config.DSN
	if config.Driver == types.DriverSQLite {
		dsn = sqlitePragmaDSN(dsn)
	}
	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", config.Driver, err)
	}

	s := &Store{
		db:            db,
		driver:        config.Driver,
		createParents: config.CreateParents,
		logQueries:    config.LogQueries,
		logger:        logger,
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply indexes: %w", err)
		}
	}

	logger.Info("store opened", "driver", config.Driver)
	return s, nil
}

// sqlitePragmaDSN appends the pragmas every pooled connection needs.
// Pragmas issued with Exec land on a single connection, so they ride in
// the DSN instead.
func sqlitePragmaDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		s.db = nil
	}
	s.logger.Info("store closed")
	return nil
}

// withTx runs fn inside a single transaction, committing on success and
// rolling back on any error or panic. This is the only place in the engine
// that opens or commits a transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", types.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrStorageUnavailable, err)
	}
	return nil
}

// taxonomy lists the sentinel errors that pass through classification
// unchanged.
var taxonomy = []error{
	types.ErrNotFound,
	types.ErrConflict,
	types.ErrPreconditionFailed,
	types.ErrInvalidPath,
	types.ErrInvalidItem,
	types.ErrInvalidKind,
	types.ErrDerivedCollection,
	types.ErrStorageUnavailable,
	types.ErrStoreClosed,
}

// classify maps raw driver and infrastructure errors into the storage error
// taxonomy. Errors already carrying a taxonomy sentinel are returned as-is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
}

// q rewrites ? placeholders for the active driver.
func (s *Store) q(query string) string {
	if s.driver == types.DriverPostgres {
		return rebind(query)
	}
	return query
}

// logQuery emits a debug line for an executed statement when query logging
// is enabled.
func (s *Store) logQuery(query string) {
	if s.logQueries {
		s.logger.Debug("exec", "query", query)
	}
}

// newUUID generates a UUID v7 string for row ids.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 only fails when the random source does; fall back to v4.
		return uuid.New().String()
	}
	return id.String()
}
