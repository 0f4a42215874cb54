// Package bufftree is a fixed-size buffer pool fronting a page-backed
// file, with a concurrent B+tree index layered on top of it. See
// internal/buffer for the pool and internal/index for the tree.
package bufftree

import (
	"bufio"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/otiai10/copy"

	"bufftree/internal/buffer"
	"bufftree/internal/config"
	"bufftree/internal/disk"
	"bufftree/internal/index"
	"bufftree/internal/wal"
	"bufftree/keys"
	"bufftree/rid"
)

// Tree is a named B+tree index backed by a single page-aligned file. It
// is safe for concurrent use by many goroutines; Insert, Remove, Get,
// and iteration all use latch crabbing internally rather than a
// tree-wide lock.
type Tree[K any] struct {
	path        string
	pool        *buffer.Pool
	disk        *disk.FileManager
	headerFrame *buffer.Frame
	inner       *index.Tree[K]
	walHook     *wal.FileHook
	log         Logger
	openIters   atomic.Int64
}

// Open attaches a tree named name to the file at path, creating it if
// it doesn't exist. Multiple trees can share one file under different
// names; each gets its own directory entry on the shared header page.
// Every Open builds its own disk manager and buffer pool over the file,
// and two Trees open on the same file at the same time do not
// coordinate page allocation or caching with each other.
func Open[K any](path string, name string, traits keys.Traits[K], opts Options) (*Tree[K], error) {
	if opts.Logger == nil {
		opts.Logger = DiscardLogger{}
	}
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = config.PoolSize
	}

	dm, err := disk.Open(path)
	if err != nil {
		return nil, err
	}
	pool := buffer.New(poolSize, dm, opts.Logger)

	var hook *wal.FileHook
	if opts.WALPath != "" {
		hook, err = wal.Open(opts.WALPath)
		if err != nil {
			dm.Close()
			return nil, err
		}
		pool.SetWALHook(hook)
	}

	var headerFrame *buffer.Frame
	if dm.NumPages() == 0 {
		_, headerFrame, err = pool.NewPage()
	} else {
		headerFrame, err = pool.FetchPage(rid.HeaderPageID)
	}
	if err != nil {
		if hook != nil {
			hook.Close()
		}
		dm.Close()
		return nil, err
	}

	inner := index.Open[K](pool, headerFrame, name, traits, opts.Logger)
	return &Tree[K]{
		path:        path,
		pool:        pool,
		disk:        dm,
		headerFrame: headerFrame,
		inner:       inner,
		walHook:     hook,
		log:         opts.Logger,
	}, nil
}

// Insert adds (key, value), returning false without modifying the tree
// if key is already present.
func (t *Tree[K]) Insert(key K, value rid.RID) (bool, error) {
	return t.inner.Insert(key, value)
}

// Remove deletes key, returning ErrNotFound if it isn't present.
func (t *Tree[K]) Remove(key K) error {
	return t.inner.Remove(key)
}

// Get returns the value stored under key, if any.
func (t *Tree[K]) Get(key K) (rid.RID, bool, error) {
	return t.inner.Get(key)
}

// IsEmpty reports whether the tree currently holds no entries.
func (t *Tree[K]) IsEmpty() bool {
	return t.inner.IsEmpty()
}

// Iterator returns an iterator positioned at the tree's smallest key.
// The caller must call Close on the returned iterator once done with
// it, or Close on the tree will fail with ErrUnderUse.
func (t *Tree[K]) Iterator() (*Iterator[K], error) {
	it, err := t.inner.Begin()
	if err != nil {
		return nil, err
	}
	t.openIters.Add(1)
	return &Iterator[K]{inner: it, tree: t}, nil
}

// IteratorAt returns an iterator positioned at the first entry with key
// greater than or equal to key.
func (t *Tree[K]) IteratorAt(key K) (*Iterator[K], error) {
	it, err := t.inner.BeginAt(key)
	if err != nil {
		return nil, err
	}
	t.openIters.Add(1)
	return &Iterator[K]{inner: it, tree: t}, nil
}

// InsertFromFile reads whitespace-separated int64 tokens from path and
// inserts one entry per token, converting it to a key via keyFromInt
// and to a value via RID{PageID: token}. Intended for bulk-loading test
// fixtures, not production ingestion.
func (t *Tree[K]) InsertFromFile(path string, keyFromInt func(int64) K) error {
	return scanInts(path, func(v int64) error {
		_, err := t.Insert(keyFromInt(v), rid.RID{PageID: rid.PageID(v)})
		return err
	})
}

// RemoveFromFile reads whitespace-separated int64 tokens from path and
// removes one entry per token. A token with no matching key is skipped
// rather than treated as an error, matching the batch-cleanup intent of
// a fixture file that may name keys already removed.
func (t *Tree[K]) RemoveFromFile(path string, keyFromInt func(int64) K) error {
	return scanInts(path, func(v int64) error {
		if err := t.Remove(keyFromInt(v)); err != nil && err != index.ErrNotFound {
			return err
		}
		return nil
	})
}

func scanInts(path string, apply func(int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseInt(scanner.Text(), 10, 64)
		if err != nil {
			continue
		}
		if err := apply(v); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Backup flushes every dirty page to disk, then copies the whole
// database file to the file path dir (the copy is written at that path,
// not into a directory named by it), so a caller can snapshot
// known-good state before a risky bulk load.
func (t *Tree[K]) Backup(dir string) error {
	t.pool.FlushAllPages()
	return copy.Copy(t.path, dir)
}

// DumpDirectory returns every (name, root page id) pair registered on
// this tree's shared header page.
func (t *Tree[K]) DumpDirectory() []index.DirEntry {
	return t.inner.DumpDirectory()
}

// Close flushes every dirty page, closes the backing file and WAL hook
// (if any), and releases the pool. Returns ErrUnderUse if any iterator
// returned by Iterator/IteratorAt hasn't been closed yet.
func (t *Tree[K]) Close() error {
	if t.openIters.Load() > 0 {
		return ErrUnderUse
	}
	t.pool.UnpinPage(t.headerFrame.PageID(), false)
	if err := t.pool.Close(); err != nil {
		return err
	}
	if t.walHook != nil {
		return t.walHook.Close()
	}
	return nil
}
