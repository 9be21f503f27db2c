package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
)

// DB is a store.Store over an open *sql.DB. Drivers embed it and add
// ApplyMigrations.
type DB struct {
	db *sql.DB
	d  Dialect
}

// New wraps db. The caller keeps ownership of db until Close.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{db: db, d: d}
}

// SQL exposes the underlying handle for migrations.
func (s *DB) SQL() *sql.DB { return s.db }

// Dialect returns the dialect the store was built with.
func (s *DB) Dialect() Dialect { return s.d }

func (s *DB) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Users() store.Users {
	return &usersRepo{q: &queries{db: s.db, d: s.d}, d: s.d}
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *DB) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, d: s.d}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *DB) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyMigrations is overridden by drivers.
func (s *DB) ApplyMigrations() error {
	return errors.New("sqlstore: migrations not configured for " + s.d.Name)
}

type txStore struct {
	tx *sql.Tx
	d  Dialect
}

var (
	_ store.Store = (*DB)(nil)
	_ store.Tx    = (*txStore)(nil)
)

func (t *txStore) Users() store.Users {
	return &usersRepo{q: &queries{db: t.tx, d: t.d}, d: t.d}
}

// Tx is not supported on a transaction.
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

// WithTx is not supported on a transaction.
func (t *txStore) WithTx(context.Context, func(tx store.Tx) error) error { return sql.ErrTxDone }

// ApplyMigrations is a no-op inside a transaction.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Commit() error              { return t.tx.Commit() }
func (t *txStore) Rollback() error            { return t.tx.Rollback() }
func (t *txStore) Close() error               { return nil }
func (t *txStore) Ping(context.Context) error { return nil }
