package bufftree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufftree"
	"bufftree/keys"
	"bufftree/rid"
)

func TestOpenInsertGetClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)

	ok, err := tr.Insert(1, rid.RID{PageID: 5})
	require.NoError(t, err)
	assert.True(t, ok)

	v, found, err := tr.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rid.PageID(5), v.PageID)

	require.NoError(t, tr.Close())
}

func TestReopenPersistsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		_, err := tr.Insert(i, rid.RID{PageID: rid.PageID(i)})
		require.NoError(t, err)
	}
	require.NoError(t, tr.Close())

	reopened, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	defer reopened.Close()
	for i := int64(0); i < 100; i++ {
		v, found, err := reopened.Get(i)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, rid.PageID(i), v.PageID)
	}
}

func TestCloseFailsWithOpenIterator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iter.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	_, err = tr.Insert(1, rid.RID{PageID: 1})
	require.NoError(t, err)

	it, err := tr.Iterator()
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Close(), bufftree.ErrUnderUse)

	it.Close()
	require.NoError(t, tr.Close())
}

func TestInsertFromFileAndRemoveFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulk.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	defer tr.Close()

	fixture := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(fixture, []byte("1 2 3\n4 5\n"), 0666))

	identity := func(v int64) int64 { return v }
	require.NoError(t, tr.InsertFromFile(fixture, identity))
	for _, k := range []int64{1, 2, 3, 4, 5} {
		_, found, err := tr.Get(k)
		require.NoError(t, err)
		assert.True(t, found)
	}

	require.NoError(t, tr.RemoveFromFile(fixture, identity))
	for _, k := range []int64{1, 2, 3, 4, 5} {
		_, found, err := tr.Get(k)
		require.NoError(t, err)
		assert.False(t, found)
	}
}

func TestBackupCopiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orig.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	_, err = tr.Insert(1, rid.RID{PageID: 1})
	require.NoError(t, err)
	defer tr.Close()

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, tr.Backup(backupPath))

	info, err := os.Stat(backupPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestIteratorPastEndPanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panic.db")
	tr, err := bufftree.Open(path, "primary", keys.Int64Traits, bufftree.DefaultOptions())
	require.NoError(t, err)
	defer tr.Close()
	_, err = tr.Insert(1, rid.RID{PageID: 1})
	require.NoError(t, err)

	it, err := tr.Iterator()
	require.NoError(t, err)
	it.Next()
	require.True(t, it.End())

	assert.PanicsWithError(t, bufftree.ErrOutOfRange.Error(), func() {
		it.Key()
	})
	it.Close()
}
