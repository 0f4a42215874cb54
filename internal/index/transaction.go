package index

import (
	"github.com/google/uuid"

	"bufftree/internal/buffer"
	"bufftree/rid"
)

// Transaction is per-call state threaded through a single tree
// operation: the ordered chain of pages currently latched and pinned
// by the calling goroutine's descent, and the set of pages that
// operation deleted and must return to the buffer pool once every
// latch on them is released. It holds no latches itself and does no
// locking; find_leaf and the insert/delete paths are the only code
// that reads or writes it.
type Transaction struct {
	id         uuid.UUID
	pageSet    []*buffer.Frame
	deletedSet map[rid.PageID]struct{}
	rootLocked bool
}

// NewTransaction returns an empty per-operation context, tagged with a
// fresh id so log lines from a multi-page structural change (a split or
// coalesce cascading up several levels) can be correlated.
func NewTransaction() *Transaction {
	return &Transaction{id: uuid.New(), deletedSet: make(map[rid.PageID]struct{})}
}

// ID returns this operation's correlation id.
func (t *Transaction) ID() uuid.UUID { return t.id }

// AddIntoPageSet appends a latched-and-pinned frame to the ancestor
// chain this operation is holding.
func (t *Transaction) AddIntoPageSet(f *buffer.Frame) {
	t.pageSet = append(t.pageSet, f)
}

// GetPageSet returns the current latched-ancestor chain, root first.
func (t *Transaction) GetPageSet() []*buffer.Frame {
	return t.pageSet
}

// ClearPageSet empties the latched-ancestor chain, used once a descent
// releases everything it's holding.
func (t *Transaction) ClearPageSet() {
	t.pageSet = t.pageSet[:0]
}

// Contains reports whether f is already latched as part of this
// operation's ancestor chain, so callers that fetch it again for a
// different purpose (e.g. coalesce walking up to a parent already held
// from the initial descent) know not to latch it a second time.
func (t *Transaction) Contains(f *buffer.Frame) bool {
	for _, held := range t.pageSet {
		if held == f {
			return true
		}
	}
	return false
}

// AddIntoDeletedPageSet records that id was deleted during this
// operation and must be returned to the buffer pool.
func (t *Transaction) AddIntoDeletedPageSet(id rid.PageID) {
	t.deletedSet[id] = struct{}{}
}

// GetDeletedPageSet returns every page id deleted during this operation.
func (t *Transaction) GetDeletedPageSet() []rid.PageID {
	ids := make([]rid.PageID, 0, len(t.deletedSet))
	for id := range t.deletedSet {
		ids = append(ids, id)
	}
	return ids
}

// SetRootLocked/RootLocked track whether this operation currently holds
// the tree-wide root-id mutex, standing in for a real thread-local flag
// since a Transaction is already scoped to one goroutine's call.
func (t *Transaction) SetRootLocked(v bool) { t.rootLocked = v }
func (t *Transaction) RootLocked() bool     { return t.rootLocked }
