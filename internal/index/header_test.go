package index_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufftree/internal/buffer"
	"bufftree/internal/config"
	"bufftree/internal/disk"
	"bufftree/internal/index"
	"bufftree/internal/telemetry"
	"bufftree/rid"
)

func newDirectory(t *testing.T) *index.Directory {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "header.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	pool := buffer.New(config.PoolSize, dm, telemetry.Discard{})
	_, header, err := pool.NewPage()
	require.NoError(t, err)
	return index.OpenDirectory(header)
}

func TestDirectoryInsertAndLookup(t *testing.T) {
	d := newDirectory(t)
	assert.True(t, d.InsertRecord("primary", rid.PageID(1)))

	root, found := d.GetRootPageID("primary")
	require.True(t, found)
	assert.Equal(t, rid.PageID(1), root)

	_, found = d.GetRootPageID("missing")
	assert.False(t, found)
}

func TestDirectoryInsertDuplicateNameFails(t *testing.T) {
	d := newDirectory(t)
	require.True(t, d.InsertRecord("primary", rid.PageID(1)))
	assert.False(t, d.InsertRecord("primary", rid.PageID(2)))
}

func TestDirectoryUpdateRecord(t *testing.T) {
	d := newDirectory(t)
	require.True(t, d.InsertRecord("primary", rid.PageID(1)))
	assert.True(t, d.UpdateRecord("primary", rid.PageID(9)))

	root, found := d.GetRootPageID("primary")
	require.True(t, found)
	assert.Equal(t, rid.PageID(9), root)

	assert.False(t, d.UpdateRecord("nonexistent", rid.PageID(1)))
}

// TestDirectoryDeleteLeavesTombstoneNotHole checks that deleting an
// entry does not break the probe chain for the entries still present:
// a lookup for a name whose probe passes the deleted slot must still
// find its entry.
func TestDirectoryDeleteLeavesTombstoneNotHole(t *testing.T) {
	d := newDirectory(t)
	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, n := range names {
		require.True(t, d.InsertRecord(n, rid.PageID(i)))
	}

	require.True(t, d.DeleteRecord("bravo"))
	_, found := d.GetRootPageID("bravo")
	assert.False(t, found)

	for i, n := range names {
		if n == "bravo" {
			continue
		}
		root, found := d.GetRootPageID(n)
		require.True(t, found, "name %q should still be reachable after an unrelated delete", n)
		assert.Equal(t, rid.PageID(i), root)
	}
}

func TestDirectoryDeleteThenReinsertReusesTombstone(t *testing.T) {
	d := newDirectory(t)
	require.True(t, d.InsertRecord("primary", rid.PageID(1)))
	require.True(t, d.DeleteRecord("primary"))
	require.True(t, d.InsertRecord("primary", rid.PageID(2)))

	root, found := d.GetRootPageID("primary")
	require.True(t, found)
	assert.Equal(t, rid.PageID(2), root)
}

func TestDirectoryDumpDirectoryIsNameOrdered(t *testing.T) {
	d := newDirectory(t)
	for i, n := range []string{"zeta", "alpha", "mu"} {
		require.True(t, d.InsertRecord(n, rid.PageID(i)))
	}

	entries := d.DumpDirectory()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

// TestDirectoryOversizedNameIsTruncatedNotCorrupted checks that a name
// longer than the fixed 60-byte name field is truncated consistently
// on both write and lookup, rather than overreading the stored length
// into neighboring bytes and making the entry unrecoverable.
func TestDirectoryOversizedNameIsTruncatedNotCorrupted(t *testing.T) {
	d := newDirectory(t)
	long := "this-index-name-is-deliberately-longer-than-the-sixty-byte-fixed-width-name-field-in-the-header-directory"
	require.Greater(t, len(long), 60)

	require.True(t, d.InsertRecord(long, rid.PageID(7)))

	root, found := d.GetRootPageID(long)
	require.True(t, found, "an oversized name must still be reachable through the same truncation probe uses")
	assert.Equal(t, rid.PageID(7), root)

	entries := d.DumpDirectory()
	require.Len(t, entries, 1)
	assert.LessOrEqual(t, len(entries[0].Name), 60)
}

// TestOpenDirectoryRebuildsMirrorFromDisk checks that reopening an
// existing header frame reconstructs the in-memory mirror by scanning
// the slot array, not by relying on any separate persisted index.
func TestOpenDirectoryRebuildsMirrorFromDisk(t *testing.T) {
	dm, err := disk.Open(filepath.Join(t.TempDir(), "header.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	pool := buffer.New(config.PoolSize, dm, telemetry.Discard{})
	_, header, err := pool.NewPage()
	require.NoError(t, err)

	d1 := index.OpenDirectory(header)
	require.True(t, d1.InsertRecord("primary", rid.PageID(42)))

	d2 := index.OpenDirectory(header)
	root, found := d2.GetRootPageID("primary")
	require.True(t, found)
	assert.Equal(t, rid.PageID(42), root)

	entries := d2.DumpDirectory()
	require.Len(t, entries, 1)
	assert.Equal(t, index.DirEntry{Name: "primary", Root: rid.PageID(42)}, entries[0])
}
