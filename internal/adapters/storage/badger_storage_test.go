package storage

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

func newTestStorage(t *testing.T) *BadgerStorage {
	t.Helper()
	storage, err := NewBadgerStorage(domain.StorageConfig{InMemory: true}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestBadgerStorage_PutGetDelete(t *testing.T) {
	storage := newTestStorage(t)

	_, exists, err := storage.Get("missing")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, storage.Put("k", []byte("v")))
	value, exists, err := storage.Get("k")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, storage.Delete("k"))
	_, exists, err = storage.Get("k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBadgerStorage_BatchAndPrefix(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.BatchWrite([]ports.WriteOp{
		{Type: ports.OpPut, Key: "a:1", Value: []byte("1")},
		{Type: ports.OpPut, Key: "a:2", Value: []byte("2")},
		{Type: ports.OpPut, Key: "b:1", Value: []byte("3")},
	}))

	items, err := storage.ListByPrefix("a:")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a:1", items[0].Key)
	assert.Equal(t, "a:2", items[1].Key)

	count, err := storage.CountPrefix("b:")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err := storage.DeleteByPrefix("a:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err = storage.CountPrefix("a:")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBadgerStorage_InvalidBatchOp(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.BatchWrite([]ports.WriteOp{{Type: ports.OpType(99), Key: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBadgerStorage_Closed(t *testing.T) {
	storage, err := NewBadgerStorage(domain.StorageConfig{InMemory: true}, nil)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	assert.Error(t, storage.Close())
	assert.Error(t, storage.Put("k", []byte("v")))
	_, _, err = storage.Get("k")
	assert.Equal(t, domain.CategoryStorage, domain.GetErrorCategory(err))
}

func TestBadgerStorage_RequiresDataDir(t *testing.T) {
	_, err := NewBadgerStorage(domain.StorageConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CategoryConfiguration, domain.GetErrorCategory(err))
}

func TestBadgerStorage_OnDisk(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewBadgerStorage(domain.StorageConfig{DataDir: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, storage.Put("persisted", []byte("yes")))
	require.NoError(t, storage.Close())

	reopened, err := NewBadgerStorage(domain.StorageConfig{DataDir: dir}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	value, exists, err := reopened.Get("persisted")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("yes"), value)
}
