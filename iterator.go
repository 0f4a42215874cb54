package bufftree

import (
	"bufftree/internal/index"
	"bufftree/rid"
)

// Iterator walks a Tree's entries in ascending key order. It holds a
// leaf page's reader latch and pin for as long as it's positioned on
// that leaf, so a caller must call Close once done with it rather than
// abandoning it mid-scan. Draining it to End() releases the latch and
// pin but still leaves it counted as open: Tree.Close returns
// ErrUnderUse until Close has been called.
type Iterator[K any] struct {
	inner  *index.Iterator[K]
	tree   *Tree[K]
	closed bool
}

// End reports whether the iterator has advanced past the last entry.
func (it *Iterator[K]) End() bool {
	return it.inner.End()
}

// Key returns the current entry's key. Panics with ErrOutOfRange once
// End() is true.
func (it *Iterator[K]) Key() K {
	return it.inner.Key()
}

// Value returns the current entry's RID. Panics with ErrOutOfRange once
// End() is true.
func (it *Iterator[K]) Value() rid.RID {
	return it.inner.Value()
}

// Next advances to the next entry. A no-op once End() is true.
func (it *Iterator[K]) Next() {
	it.inner.Next()
}

// Close releases the iterator's held latch and pin, if any. Safe to
// call more than once.
func (it *Iterator[K]) Close() {
	if it.closed {
		return
	}
	it.inner.Close()
	it.tree.openIters.Add(-1)
	it.closed = true
}
