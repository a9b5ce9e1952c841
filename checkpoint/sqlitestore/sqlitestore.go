// Package sqlitestore provides a sqlite-backed checkpoint store. It keeps a
// single key/value table; saving an existing key overwrites the row.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orchestral/conductor/checkpoint"
	"github.com/orchestral/conductor/internal/metrickeys"
	"github.com/orchestral/conductor/metrics"
)

//go:embed schema.sql
var schema string

type Store struct {
	db      *sql.DB
	options checkpoint.Options
}

// NewInMemoryStore creates a store backed by an in-memory sqlite database.
// Useful for tests and single-process runs that want checkpoint semantics
// without touching disk.
func NewInMemoryStore(opts ...checkpoint.Option) (*Store, error) {
	return newSqliteStore("file::memory:?mode=memory&cache=shared", opts...)
}

// NewStore creates a store backed by the sqlite database at path, creating
// the schema if needed.
func NewStore(path string, opts ...checkpoint.Option) (*Store, error) {
	return newSqliteStore(fmt.Sprintf("file:%v", path), opts...)
}

func newSqliteStore(dsn string, opts ...checkpoint.Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{
		db:      db,
		options: checkpoint.ApplyOptions(opts...),
	}, nil
}

var _ checkpoint.Store = (*Store)(nil)

func (s *Store) Save(ctx context.Context, key string, state any) error {
	payload, err := s.options.Converter.To(state)
	if err != nil {
		return &checkpoint.IOError{Op: "save", Key: key, Err: err}
	}

	_, err = s.db.ExecContext(
		ctx,
		"INSERT INTO `checkpoints` (`key`, `payload`, `written_at`) VALUES (?, ?, ?) "+
			"ON CONFLICT(`key`) DO UPDATE SET `payload` = excluded.`payload`, `written_at` = excluded.`written_at`",
		key, payload, time.Now().UTC(),
	)
	if err != nil {
		return &checkpoint.IOError{Op: "save", Key: key, Err: err}
	}

	s.options.Metrics.Counter(metrickeys.CheckpointSaved, metrics.Tags{metrickeys.Store: "sqlite"}, 1)

	return nil
}

func (s *Store) Load(ctx context.Context, key string, vptr any) error {
	var payload []byte

	row := s.db.QueryRowContext(ctx, "SELECT `payload` FROM `checkpoints` WHERE `key` = ?", key)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return checkpoint.ErrNotFound
		}
		return &checkpoint.IOError{Op: "load", Key: key, Err: err}
	}

	if err := s.options.Converter.From(payload, vptr); err != nil {
		return &checkpoint.IOError{Op: "load", Key: key, Err: err}
	}

	s.options.Metrics.Counter(metrickeys.CheckpointLoaded, metrics.Tags{metrickeys.Store: "sqlite"}, 1)

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM `checkpoints` WHERE `key` = ?", key); err != nil {
		return &checkpoint.IOError{Op: "delete", Key: key, Err: err}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
