package disk_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufftree/internal/config"
	"bufftree/internal/disk"
	"bufftree/rid"
)

func TestAllocatePageIsMonotonic(t *testing.T) {
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	assert.EqualValues(t, 0, dm.NumPages())
	first := dm.AllocatePage()
	second := dm.AllocatePage()
	assert.Equal(t, rid.PageID(0), first)
	assert.Equal(t, rid.PageID(1), second)
	assert.EqualValues(t, 2, dm.NumPages())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	id := dm.AllocatePage()
	buf := directio.AlignedBlock(int(config.PageSize))
	copy(buf, []byte("round trip payload"))
	require.NoError(t, dm.WritePage(id, buf))

	readBack := directio.AlignedBlock(int(config.PageSize))
	require.NoError(t, dm.ReadPage(id, readBack))
	assert.True(t, bytes.Equal(buf, readBack))
}

func TestReadUnwrittenPageIsZero(t *testing.T) {
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	id := dm.AllocatePage()
	buf := make([]byte, config.PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, dm.ReadPage(id, buf))
	assert.True(t, bytes.Equal(buf, make([]byte, config.PageSize)))
}

func TestReopenPreservesNumPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dm1, err := disk.Open(path)
	require.NoError(t, err)
	dm1.AllocatePage()
	dm1.AllocatePage()
	buf := directio.AlignedBlock(int(config.PageSize))
	require.NoError(t, dm1.WritePage(1, buf))
	require.NoError(t, dm1.Close())

	dm2, err := disk.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { dm2.Close() })
	assert.EqualValues(t, 2, dm2.NumPages())
}

func TestOpenRejectsMisalignedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, os.WriteFile(path, make([]byte, int(config.PageSize)+1), 0666))

	_, err := disk.Open(path)
	assert.Error(t, err)
}
