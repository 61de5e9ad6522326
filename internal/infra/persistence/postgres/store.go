// Package postgres provides a Postgres-backed data-container store that mirrors
// the in-memory semantics and writes each committed changeset row by row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.StorageProvider = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with config defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/unitofwork?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists containers to Postgres while reusing the in-memory
// implementation for validation and reads.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the container table exists and hydrates the in-memory store from it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureContainerTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// Save validates the batch in memory, writes it in one Postgres transaction,
// and publishes the new in-memory state after the commit succeeds.
func (s *Store) Save(ctx context.Context, batch domain.SaveBatch) error {
	return s.SaveWith(ctx, batch, s.persist)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureContainerTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS data_containers (
		object_key TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		id TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		foreign_keys JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure data_containers table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT class, id, timestamp, foreign_keys FROM data_containers`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select data_containers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var (
			c       domain.DataContainer
			payload []byte
		)
		if err := rows.Scan(&c.ID.Class, &c.ID.Value, &c.Timestamp, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan data_containers: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &c.ForeignKeys); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", c.ID, err)
			}
		}
		snapshot.Containers = append(snapshot.Containers, c)
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate data_containers: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context, changes memory.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes.Upserts {
		payload, err := json.Marshal(c.ForeignKeys)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO data_containers(object_key,class,id,timestamp,foreign_keys) VALUES($1,$2,$3,$4,$5) ON CONFLICT(object_key) DO UPDATE SET timestamp=EXCLUDED.timestamp, foreign_keys=EXCLUDED.foreign_keys`,
			c.ID.String(), c.ID.Class, c.ID.Value, c.Timestamp, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", c.ID, err)
		}
	}
	for _, id := range changes.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM data_containers WHERE object_key=$1`, id.String()); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
