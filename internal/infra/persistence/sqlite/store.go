// Package sqlite persists data containers to a single SQLite table while
// serving reads from the embedded in-memory store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.StorageProvider = (*Store)(nil)

const defaultPath = "unitofwork.db"

// Store mirrors every successful save into SQLite row by row. The table is
// read once on open to hydrate the in-memory working set.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating when needed) the SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS data_containers (
		object_key TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		foreign_keys BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create data_containers table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT class, id, timestamp, foreign_keys FROM data_containers`)
	if err != nil {
		return fmt.Errorf("select data_containers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	for rows.Next() {
		var (
			c       domain.DataContainer
			payload []byte
		)
		if err := rows.Scan(&c.ID.Class, &c.ID.Value, &c.Timestamp, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := decodeForeignKeys(payload, &c); err != nil {
			return fmt.Errorf("decode %s: %w", c.ID, err)
		}
		snapshot.Containers = append(snapshot.Containers, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate data_containers: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

// Save validates the batch in memory, writes the resulting rows in one SQLite
// transaction, and only then publishes the new state.
func (s *Store) Save(ctx context.Context, batch domain.SaveBatch) error {
	return s.SaveWith(ctx, batch, s.persist)
}

func (s *Store) persist(ctx context.Context, changes memory.Changeset) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes.Upserts {
		payload, err := json.Marshal(c.ForeignKeys)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO data_containers(object_key,class,id,timestamp,foreign_keys) VALUES(?,?,?,?,?) ON CONFLICT(object_key) DO UPDATE SET timestamp=excluded.timestamp, foreign_keys=excluded.foreign_keys`,
			c.ID.String(), c.ID.Class, c.ID.Value, c.Timestamp, payload); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", c.ID, err)
			return retErr
		}
	}
	for _, id := range changes.Deletes {
		if _, err = tx.ExecContext(ctx, `DELETE FROM data_containers WHERE object_key=?`, id.String()); err != nil {
			retErr = fmt.Errorf("delete %s: %w", id, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		retErr = err
		return retErr
	}
	return nil
}

func decodeForeignKeys(payload []byte, c *domain.DataContainer) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, &c.ForeignKeys)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
