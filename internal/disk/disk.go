// Package disk implements the block device the buffer pool is layered
// on top of. It is deliberately narrow: fixed-size page read/write and
// monotonic page id allocation. The page table, pin tracking, and frame
// cache all live one layer up, in the buffer pool.
package disk

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ncw/directio"

	"bufftree/internal/config"
	"bufftree/rid"
)

// Manager is the block device abstraction the buffer pool relies on.
// Write-ahead logging is a separate concern layered above it; see
// internal/wal.
type Manager interface {
	ReadPage(id rid.PageID, buf []byte) error
	WritePage(id rid.PageID, buf []byte) error
	AllocatePage() rid.PageID
	DeallocatePage(id rid.PageID) error
	NumPages() int64
	Close() error
}

// FileManager is a Manager backed by a single page-aligned file, opened
// with O_DIRECT via directio.
type FileManager struct {
	file     *os.File
	mu       sync.Mutex
	numPages atomic.Int64
}

// Open (re-)opens filePath as a page-aligned database file, creating it
// if necessary. Returns an error if the file's length isn't a multiple
// of config.PageSize.
func Open(filePath string) (*FileManager, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, err
		}
	}
	f, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size()%config.PageSize != 0 {
		f.Close()
		return nil, errors.New("disk: file size is not a multiple of the page size")
	}
	fm := &FileManager{file: f}
	fm.numPages.Store(info.Size() / config.PageSize)
	return fm, nil
}

// ReadPage reads exactly config.PageSize bytes for id into buf. The file
// is opened with O_DIRECT, so buf must be block-aligned memory (as from
// directio.AlignedBlock, which backs every pool frame).
func (m *FileManager) ReadPage(id rid.PageID, buf []byte) error {
	off := int64(id) * config.PageSize
	_, err := m.file.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		// A page allocated but never written reads as zeros.
		clear(buf)
		return nil
	}
	return err
}

// WritePage writes buf (exactly config.PageSize bytes, block-aligned as
// for ReadPage) to id's slot.
func (m *FileManager) WritePage(id rid.PageID, buf []byte) error {
	off := int64(id) * config.PageSize
	_, err := m.file.WriteAt(buf, off)
	return err
}

// AllocatePage returns the next never-before-used page id. Ids are
// monotonically increasing and never reused, even after deallocation.
func (m *FileManager) AllocatePage() rid.PageID {
	return rid.PageID(m.numPages.Add(1) - 1)
}

// NumPages returns how many pages have ever been allocated in this
// file, including deallocated ones.
func (m *FileManager) NumPages() int64 {
	return m.numPages.Load()
}

// DeallocatePage is a hook for reclaiming disk space; a page-aligned
// flat file never shrinks, so this is a no-op that always succeeds.
func (m *FileManager) DeallocatePage(rid.PageID) error {
	return nil
}

// Close closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
