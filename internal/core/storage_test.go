package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitofwork/internal/config"
	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/internal/infra/persistence/postgres"
	"unitofwork/internal/infra/persistence/postgres/testutil"
	"unitofwork/internal/infra/persistence/sqlite"
)

func TestOpenStorageDrivers(t *testing.T) {
	ctx := context.Background()

	t.Run("default memory", func(t *testing.T) {
		storage, err := OpenStorage(ctx, config.StorageConfig{})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, storage)
		assert.NoError(t, CloseStorage(storage))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "uow.db")
		storage, err := OpenStorage(ctx, config.StorageConfig{Driver: "sqlite", SQLitePath: path})
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Store{}, storage)

		tx := newTx(storage)
		customer := mustNew(t, tx, "Customer")
		order := mustNew(t, tx, "Order")
		require.NoError(t, tx.SetRelatedObject(ctx, order, orderCustomer, customer))
		_, err = tx.Commit(ctx)
		require.NoError(t, err)
		require.NoError(t, CloseStorage(storage))

		reopened, err := OpenStorage(ctx, config.StorageConfig{Driver: "sqlite", SQLitePath: path})
		require.NoError(t, err)
		t.Cleanup(func() { _ = CloseStorage(reopened) })
		next := newTx(reopened)
		loaded := mustGet(t, next, order.ID())
		related, err := next.GetRelatedObject(ctx, loaded, orderCustomer)
		require.NoError(t, err)
		require.NotNil(t, related)
		assert.Equal(t, customer.ID(), related.ID())
	})

	t.Run("postgres", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		t.Cleanup(restore)

		storage, err := OpenStorage(ctx, config.StorageConfig{Driver: "postgres", PostgresDSN: "postgres://stub"})
		require.NoError(t, err)
		assert.IsType(t, &postgres.Store{}, storage)

		tx := newTx(storage)
		mustNew(t, tx, "Customer")
		_, err = tx.Commit(ctx)
		require.NoError(t, err)
		assert.Len(t, conn.Tables["data_containers"], 1)
		assert.NoError(t, CloseStorage(storage))
	})

	t.Run("postgres failure", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailPing = true
		restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		t.Cleanup(restore)

		storage, err := OpenStorage(ctx, config.StorageConfig{Driver: "postgres"})
		require.Error(t, err)
		assert.Nil(t, storage)
	})

	t.Run("unknown", func(t *testing.T) {
		storage, err := OpenStorage(ctx, config.StorageConfig{Driver: "cassandra"})
		require.Error(t, err)
		assert.Nil(t, storage)
		assert.Contains(t, err.Error(), "cassandra")
	})
}
