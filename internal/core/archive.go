package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"unitofwork/internal/blob"
	"unitofwork/pkg/domain"
)

const (
	defaultArchivePrefix = "snapshots/"
	archiveSuffix        = ".json"
)

// SnapshotArchive stores transaction snapshots as JSON documents in a blob store.
type SnapshotArchive struct {
	store  blob.Store
	prefix string
}

// NewSnapshotArchive returns an archive writing under prefix. An empty prefix
// defaults to "snapshots/".
func NewSnapshotArchive(store blob.Store, prefix string) *SnapshotArchive {
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &SnapshotArchive{store: store, prefix: prefix}
}

func (a *SnapshotArchive) key(id string) string { return a.prefix + id + archiveSuffix }

// Save archives the current snapshot of tx, replacing an earlier one.
func (a *SnapshotArchive) Save(ctx context.Context, tx *ClientTransaction) (blob.Info, error) {
	snap := tx.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot %s: %w", snap.TransactionID, err)
	}
	key := a.key(snap.TransactionID)
	if _, err := a.store.Delete(ctx, key); err != nil {
		return blob.Info{}, fmt.Errorf("replace snapshot %s: %w", snap.TransactionID, err)
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"transaction": snap.TransactionID,
			"objects":     strconv.Itoa(len(snap.Objects)),
			"end-points":  strconv.Itoa(len(snap.EndPoints)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot %s: %w", snap.TransactionID, err)
	}
	return info, nil
}

// Load reads the snapshot archived for transaction id.
func (a *SnapshotArchive) Load(ctx context.Context, id string) (Snapshot, error) {
	_, body, err := a.store.Get(ctx, a.key(id))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrObjectNotFound, id)
		}
		return Snapshot{}, err
	}
	defer body.Close()
	var snap Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Restore loads the snapshot for id and rebuilds its transaction.
func (a *SnapshotArchive) Restore(ctx context.Context, id string, storage domain.StorageProvider, schema domain.SchemaProvider, opts ...Option) (*ClientTransaction, error) {
	snap, err := a.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return RestoreClientTransaction(snap, storage, schema, opts...)
}

// List returns the archived transaction identifiers in order.
func (a *SnapshotArchive) List(ctx context.Context) ([]string, error) {
	infos, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, a.prefix)
		if !strings.HasSuffix(name, archiveSuffix) || strings.Contains(name, "/") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, archiveSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for id and reports whether it existed.
func (a *SnapshotArchive) Delete(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, a.key(id))
}
