package wal_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufftree/internal/wal"
	"bufftree/rid"
)

func TestFileHookRecordsDirtyWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	h, err := wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	h.OnDirtyWrite(rid.PageID(1))
	h.OnDirtyWrite(rid.PageID(2))
	h.OnDirtyWrite(rid.PageID(3))

	tail, err := h.Tail(2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, rid.PageID(3), tail[0], "Tail returns most-recent-first")
	assert.Equal(t, rid.PageID(2), tail[1])
}

func TestFileHookTailMoreThanWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	h, err := wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	h.OnDirtyWrite(rid.PageID(9))

	tail, err := h.Tail(10)
	require.NoError(t, err)
	assert.Equal(t, []rid.PageID{9}, tail)
}

func TestFileHookReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	h1, err := wal.Open(path)
	require.NoError(t, err)
	h1.OnDirtyWrite(rid.PageID(1))
	require.NoError(t, h1.Close())

	h2, err := wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { h2.Close() })
	h2.OnDirtyWrite(rid.PageID(2))

	tail, err := h2.Tail(10)
	require.NoError(t, err)
	assert.Equal(t, []rid.PageID{2, 1}, tail)
}

func TestNopHookIsHarmless(t *testing.T) {
	var h wal.NopHook
	h.OnDirtyWrite(rid.PageID(1)) // must not panic
}
