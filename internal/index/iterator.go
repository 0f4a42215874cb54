package index

import (
	"bufftree/internal/buffer"
	"bufftree/keys"
	"bufftree/rid"
)

// Iterator walks a tree's leaves left to right under lock coupling: it
// never holds more than the current leaf's reader latch and pin, so a
// long-lived scan never blocks concurrent writers descending elsewhere
// in the tree. Advancing past the last entry of a leaf fetches and
// latches the next leaf before releasing the current one, then drops
// the one it just left.
type Iterator[K any] struct {
	pool   *buffer.Pool
	traits keys.Traits[K]

	frame *buffer.Frame
	leaf  *LeafNode[K]
	slot  int32
	done  bool
}

// Begin returns an iterator positioned at the tree's leftmost entry.
func (t *Tree[K]) Begin() (*Iterator[K], error) {
	if t.IsEmpty() {
		return &Iterator[K]{pool: t.pool, traits: t.traits, done: true}, nil
	}
	txn := NewTransaction()
	leaf, err := t.findLeaf(zeroValue[K](), true, ModeRead, txn)
	if err != nil {
		return nil, err
	}
	it := &Iterator[K]{pool: t.pool, traits: t.traits, frame: leaf.Frame(), leaf: leaf}
	// findLeaf under ModeRead already released every ancestor above the
	// leaf as it descended; the leaf itself is still RLocked and pinned,
	// on purpose — the iterator takes over that hold until it advances
	// past this leaf or Close is called. txn is discarded from here, so
	// dropping its bookkeeping doesn't touch the leaf's latch or pin.
	it.skipIfEmpty()
	return it, nil
}

// BeginAt returns an iterator positioned at the first entry with a key
// greater than or equal to key.
func (t *Tree[K]) BeginAt(key K) (*Iterator[K], error) {
	if t.IsEmpty() {
		return &Iterator[K]{pool: t.pool, traits: t.traits, done: true}, nil
	}
	txn := NewTransaction()
	leaf, err := t.findLeaf(key, false, ModeRead, txn)
	if err != nil {
		return nil, err
	}
	it := &Iterator[K]{pool: t.pool, traits: t.traits, frame: leaf.Frame(), leaf: leaf}
	it.slot = leaf.KeyIndex(key)
	it.skipIfEmpty()
	return it, nil
}

func zeroValue[K any]() K {
	var z K
	return z
}

// skipIfEmpty advances across empty leaves (possible transiently after
// a redistribution shrinks the leaf this iterator started on to zero
// entries between the caller building the iterator and its first read).
func (it *Iterator[K]) skipIfEmpty() {
	for !it.done && it.slot >= it.leaf.Size() {
		it.crossToNextLeaf()
	}
}

// crossToNextLeaf latches the next leaf in the chain before releasing
// the current one, then unpins the leaf it just left.
func (it *Iterator[K]) crossToNextLeaf() {
	nextID := it.leaf.NextPageID()
	if nextID == rid.InvalidPageID {
		it.finish()
		return
	}
	nextFrame, err := it.pool.FetchPage(nextID)
	if err != nil {
		it.finish()
		return
	}
	nextFrame.RLock()
	prevFrame := it.frame
	it.frame = nextFrame
	it.leaf = AsLeafNode[K](nextFrame, it.traits)
	it.slot = 0
	prevFrame.RUnlock()
	it.pool.UnpinPage(prevFrame.PageID(), false)
}

func (it *Iterator[K]) finish() {
	if it.frame != nil {
		it.frame.RUnlock()
		it.pool.UnpinPage(it.frame.PageID(), false)
		it.frame = nil
		it.leaf = nil
	}
	it.done = true
}

// End reports whether the iterator has been advanced past the last
// entry of the tree.
func (it *Iterator[K]) End() bool {
	return it.done
}

// Key returns the current entry's key. Panics with ErrOutOfRange once
// End() is true; dereferencing past the last entry is a caller bug, not
// a recoverable condition.
func (it *Iterator[K]) Key() K {
	if it.done {
		panic(ErrOutOfRange)
	}
	return it.leaf.KeyAt(it.slot)
}

// Value returns the current entry's RID. Panics with ErrOutOfRange once
// End() is true.
func (it *Iterator[K]) Value() rid.RID {
	if it.done {
		panic(ErrOutOfRange)
	}
	return it.leaf.ValueAt(it.slot)
}

// Next advances the iterator by one entry, crossing into the next leaf
// if the current one is exhausted. Calling Next once End() is already
// true is a no-op.
func (it *Iterator[K]) Next() {
	if it.done {
		return
	}
	it.slot++
	if it.slot >= it.leaf.Size() {
		it.crossToNextLeaf()
	}
}

// Close releases the iterator's current leaf latch and pin, if any. A
// caller that abandons a scan before reaching End() must call Close to
// avoid leaking the pin.
func (it *Iterator[K]) Close() {
	if !it.done {
		it.finish()
	}
}
