package index

import (
	"errors"
	"sync"
	"sync/atomic"

	"bufftree/internal/buffer"
	"bufftree/internal/telemetry"
	"bufftree/keys"
	"bufftree/rid"
)

// ErrNotFound is returned by Remove when the key isn't present.
var ErrNotFound = errors.New("index: key not found")

// ErrOutOfRange is the panic value for dereferencing an iterator past
// its last entry: a precondition violation, not a recoverable failure.
var ErrOutOfRange = errors.New("index: iterator has no current entry")

// ErrDirectoryFull is returned when the shared header page has no free
// or tombstoned slot left to register a new tree's root.
var ErrDirectoryFull = errors.New("index: header directory full")

// Tree is a concurrent B+tree over one named entry in a shared header
// page's directory. Every exported operation is safe to call from many
// goroutines at once; concurrency is managed with latch crabbing during
// descent (findLeaf) rather than a single tree-wide lock.
type Tree[K any] struct {
	pool   *buffer.Pool
	traits keys.Traits[K]
	log    telemetry.Logger

	name        string
	headerFrame *buffer.Frame
	dir         *Directory

	rootID atomic.Int32 // rid.PageID; InvalidPageID means the tree is empty
	rootMu sync.Mutex   // guards every rootID mutation, including first-root creation

	leafMaxSize     int32
	internalMaxSize int32
}

// Open attaches a named tree to header. If name has no existing
// directory entry, the tree starts empty; its first Insert creates a
// root and registers the directory entry.
func Open[K any](pool *buffer.Pool, header *buffer.Frame, name string, traits keys.Traits[K], log telemetry.Logger) *Tree[K] {
	if log == nil {
		log = telemetry.Discard{}
	}
	t := &Tree[K]{
		pool:        pool,
		traits:      traits,
		log:         log,
		name:        name,
		headerFrame: header,
		dir:         OpenDirectory(header),
	}
	t.leafMaxSize = int32((buffer.PayloadSize-leafHeaderSize)/leafEntrySize(traits)) - 1
	t.internalMaxSize = int32((buffer.PayloadSize-internalHeaderSize)/internalEntrySize(traits)) - 1
	if root, ok := t.dir.GetRootPageID(name); ok {
		t.rootID.Store(int32(root))
	} else {
		t.rootID.Store(int32(rid.InvalidPageID))
	}
	return t
}

// IsEmpty reports whether the tree currently has no root.
func (t *Tree[K]) IsEmpty() bool {
	return rid.PageID(t.rootID.Load()) == rid.InvalidPageID
}

// DumpDirectory returns every (name, root) pair registered on this
// tree's shared header page, in name order.
func (t *Tree[K]) DumpDirectory() []DirEntry {
	return t.dir.DumpDirectory()
}

func (t *Tree[K]) latch(f *buffer.Frame, mode LockMode) {
	if mode == ModeRead {
		f.RLock()
	} else {
		f.WLock()
	}
}

func (t *Tree[K]) unlatch(f *buffer.Frame, mode LockMode) {
	if mode == ModeRead {
		f.RUnlock()
	} else {
		f.WUnlock()
	}
}

// isSafe implements the safe predicate: for INSERT, a node can absorb
// one more entry without splitting; for DELETE, it can lose one without
// dropping below its minimum plus the extra margin described on
// ModeDelete. Reads are always considered safe.
func isSafe(payload []byte, mode LockMode) bool {
	size := headerSize(payload)
	maxSize := headerMaxSize(payload)
	switch mode {
	case ModeInsert:
		return size < maxSize
	case ModeDelete:
		return size > MinSize(maxSize)+1
	default:
		return true
	}
}

// unlockUnpinPages releases every latch (in mode) and pin currently
// held in txn's page set, deletes every page in its deletion set, and
// drops the tree-wide root mutex if this call is the one holding it.
func (t *Tree[K]) unlockUnpinPages(txn *Transaction, mode LockMode, dirty bool) {
	for _, f := range txn.GetPageSet() {
		t.unlatch(f, mode)
		t.pool.UnpinPage(f.PageID(), dirty)
	}
	txn.ClearPageSet()
	for _, id := range txn.GetDeletedPageSet() {
		if _, err := t.pool.DeletePage(id); err != nil {
			t.log.Error("index: failed to delete page", "page", id, "err", err)
		}
	}
	if txn.RootLocked() {
		t.rootMu.Unlock()
		txn.SetRootLocked(false)
	}
}

// findLeaf descends from the root to the leaf that would contain key
// (or, if leftmost, the tree's leftmost leaf), crabbing latches per the
// safe predicate for mode. On return, txn's page set holds every
// ancestor that could not be proven safe, plus the leaf itself, all
// still latched and pinned; the caller is responsible for releasing
// them via unlockUnpinPages once it has finished mutating or reading.
func (t *Tree[K]) findLeaf(key K, leftmost bool, mode LockMode, txn *Transaction) (*LeafNode[K], error) {
	if mode != ModeRead {
		t.rootMu.Lock()
		txn.SetRootLocked(true)
	}

	rootID := rid.PageID(t.rootID.Load())
	if rootID == rid.InvalidPageID {
		if mode == ModeInsert {
			return t.createRootLeaf(txn)
		}
		if txn.RootLocked() {
			t.rootMu.Unlock()
			txn.SetRootLocked(false)
		}
		return nil, ErrNotFound
	}

	cur, err := t.pool.FetchPage(rootID)
	if err != nil {
		if txn.RootLocked() {
			t.rootMu.Unlock()
			txn.SetRootLocked(false)
		}
		return nil, err
	}
	t.latch(cur, mode)
	txn.AddIntoPageSet(cur)

	for headerKind(cur.Payload()) != kindLeaf {
		internal := AsInternalNode[K](cur, t.traits, t.pool)
		var childID rid.PageID
		if leftmost {
			childID = internal.ValueAt(0)
		} else {
			childID = internal.Lookup(key)
		}
		child, err := t.pool.FetchPage(childID)
		if err != nil {
			t.unlockUnpinPages(txn, mode, false)
			return nil, err
		}
		t.latch(child, mode)

		if mode == ModeRead || isSafe(child.Payload(), mode) {
			for _, f := range txn.GetPageSet() {
				t.unlatch(f, mode)
				t.pool.UnpinPage(f.PageID(), false)
			}
			txn.ClearPageSet()
			if txn.RootLocked() {
				t.rootMu.Unlock()
				txn.SetRootLocked(false)
			}
		}
		txn.AddIntoPageSet(child)
		cur = child
	}
	return AsLeafNode[K](cur, t.traits), nil
}

// createRootLeaf allocates a brand-new, empty leaf and registers it as
// the tree's root, called from findLeaf while rootMu is already held.
// Deciding "the tree is empty" and creating its first root has to
// happen under the same lock as every other rootID mutation
// (split-driven new roots, adjustRoot draining the tree back to
// empty) — otherwise a concurrent Remove could drain the tree between
// an Insert's empty check and its root creation, and the insert would
// see a vanished root instead of legally creating a new one.
func (t *Tree[K]) createRootLeaf(txn *Transaction) (*LeafNode[K], error) {
	leafID, leafFrame, err := t.pool.NewPage()
	if err != nil {
		t.rootMu.Unlock()
		txn.SetRootLocked(false)
		return nil, err
	}
	leaf := InitLeafNode[K](leafFrame, t.traits, t.leafMaxSize)
	leafFrame.WLock()
	txn.AddIntoPageSet(leafFrame)
	if !t.updateRootPageID(leafID, true) {
		t.unlockUnpinPages(txn, ModeInsert, true)
		return nil, ErrDirectoryFull
	}
	return leaf, nil
}

// reparentTo updates child's parent pointer to newParent. If child is
// already write-latched as part of txn's current chain (a very common
// case: root-split and adjust-root both reparent pages already on the
// descent path), it reuses that latch instead of taking it again,
// which would deadlock the calling goroutine against itself.
func (t *Tree[K]) reparentTo(txn *Transaction, child rid.PageID, newParent rid.PageID) {
	frame, err := t.pool.FetchPage(child)
	if err != nil {
		return
	}
	alreadyLatched := txn.Contains(frame)
	if !alreadyLatched {
		frame.WLock()
	}
	switch headerKind(frame.Payload()) {
	case kindLeaf:
		AsLeafNode[K](frame, t.traits).SetParentPageID(newParent)
	default:
		AsInternalNode[K](frame, t.traits, t.pool).SetParentPageID(newParent)
	}
	if !alreadyLatched {
		frame.WUnlock()
	}
	t.pool.UnpinPage(child, true)
}

// updateRootPageID records id as t.name's root in the header directory
// and, only once that succeeds, in memory. It reports whether the
// directory write succeeded: a full directory (every slot occupied or
// tombstoned by other trees) must not leave the in-memory rootID
// pointing at a page the directory does not know about, so the
// in-memory value is left untouched on failure rather than updated
// ahead of the durable record.
func (t *Tree[K]) updateRootPageID(id rid.PageID, insertRecord bool) bool {
	var ok bool
	if insertRecord {
		ok = t.dir.InsertRecord(t.name, id)
	} else {
		ok = t.dir.UpdateRecord(t.name, id)
	}
	if !ok {
		t.log.Error("index: header directory rejected root update", "tree", t.name, "root", id, "insert", insertRecord)
		return false
	}
	t.rootID.Store(int32(id))
	return true
}

// Insert adds (key, value). Returns false, nil if key already exists.
// The empty-tree case is not special-cased here: findLeaf creates the
// first root itself, under rootMu, so "check empty" and "create root"
// happen atomically with respect to every other root mutation instead
// of racing a concurrent Remove across two separate locks.
func (t *Tree[K]) Insert(key K, value rid.RID) (bool, error) {
	txn := NewTransaction()
	leaf, err := t.findLeaf(key, false, ModeInsert, txn)
	if err != nil {
		return false, err
	}
	if _, ok := leaf.Lookup(key); ok {
		t.unlockUnpinPages(txn, ModeInsert, false)
		return false, nil
	}
	newSize, _ := leaf.Insert(key, value)
	if newSize <= leaf.MaxSize() {
		t.unlockUnpinPages(txn, ModeInsert, true)
		return true, nil
	}

	siblingID, siblingFrame, err := t.pool.NewPage()
	if err != nil {
		t.unlockUnpinPages(txn, ModeInsert, true)
		return false, err
	}
	sibling := InitLeafNode[K](siblingFrame, t.traits, leaf.MaxSize())
	leaf.MoveHalfTo(sibling)
	sibling.SetParentPageID(leaf.ParentPageID())
	sepKey := sibling.KeyAt(0)
	t.log.Info("index: leaf split", "txn", txn.ID(), "leaf", leaf.PageID(), "sibling", siblingID)

	err = t.insertIntoParent(txn, leaf.Frame(), sepKey, siblingID)
	t.pool.UnpinPage(siblingID, true)
	t.unlockUnpinPages(txn, ModeInsert, true)
	return true, err
}

// insertIntoParent registers newChildID (reached via sepKey) as
// oldChild's new right sibling in oldChild's parent, splitting that
// parent (and recursing upward) if it has no room, or creating a new
// root if oldChild had none.
func (t *Tree[K]) insertIntoParent(txn *Transaction, oldChild *buffer.Frame, sepKey K, newChildID rid.PageID) error {
	ps := txn.GetPageSet()
	idx := -1
	for i, f := range ps {
		if f == oldChild {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return t.createNewRoot(txn, oldChild.PageID(), sepKey, newChildID)
	}
	parentFrame := ps[idx-1]
	parent := AsInternalNode[K](parentFrame, t.traits, t.pool)

	parent.InsertNodeAfter(oldChild.PageID(), sepKey, newChildID)
	t.reparentTo(txn, newChildID, parent.PageID())
	if parent.Size() <= parent.MaxSize() {
		return nil
	}

	newInternalID, newInternalFrame, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	newInternal := InitInternalNode[K](newInternalFrame, t.traits, parent.MaxSize(), t.pool)
	promoted := parent.MoveHalfTo(txn, newInternal)
	newInternal.SetParentPageID(parent.ParentPageID())
	t.pool.UnpinPage(newInternalID, true)
	t.log.Info("index: internal node split", "txn", txn.ID(), "node", parentFrame.PageID(), "sibling", newInternalID)

	return t.insertIntoParent(txn, parentFrame, promoted, newInternalID)
}

func (t *Tree[K]) createNewRoot(txn *Transaction, oldRootID rid.PageID, sepKey K, newChildID rid.PageID) error {
	newRootID, newRootFrame, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	newRoot := InitInternalNode[K](newRootFrame, t.traits, t.internalMaxSize, t.pool)
	newRoot.PopulateNewRoot(oldRootID, sepKey, newChildID)
	t.pool.UnpinPage(newRootID, true)
	t.reparentTo(txn, oldRootID, newRootID)
	t.reparentTo(txn, newChildID, newRootID)
	t.updateRootPageID(newRootID, false)
	t.log.Info("index: new root", "txn", txn.ID(), "root", newRootID, "left", oldRootID, "right", newChildID)
	return nil
}

// Get returns the value stored under key, if any.
func (t *Tree[K]) Get(key K) (rid.RID, bool, error) {
	if t.IsEmpty() {
		return rid.RID{}, false, nil
	}
	txn := NewTransaction()
	leaf, err := t.findLeaf(key, false, ModeRead, txn)
	if err != nil {
		return rid.RID{}, false, err
	}
	v, ok := leaf.Lookup(key)
	t.unlockUnpinPages(txn, ModeRead, false)
	return v, ok, nil
}

// Remove deletes key, coalescing or redistributing underflowing nodes
// as needed. Returns ErrNotFound if key isn't present.
func (t *Tree[K]) Remove(key K) error {
	if t.IsEmpty() {
		return ErrNotFound
	}
	txn := NewTransaction()
	leaf, err := t.findLeaf(key, false, ModeDelete, txn)
	if err != nil {
		return err
	}
	oldSize := leaf.Size()
	newSize := leaf.RemoveAndDeleteRecord(key)
	if newSize == oldSize {
		t.unlockUnpinPages(txn, ModeDelete, false)
		return ErrNotFound
	}
	if t.coalesceOrRedistribute(txn, leaf.Frame()) {
		txn.AddIntoDeletedPageSet(leaf.PageID())
	}
	t.unlockUnpinPages(txn, ModeDelete, true)
	return nil
}

// coalesceOrRedistribute restores node's minimum-occupancy invariant
// after a deletion shrank it, if needed. Returns whether node itself
// should be deleted (it was merged away into a sibling).
func (t *Tree[K]) coalesceOrRedistribute(txn *Transaction, nodeFrame *buffer.Frame) bool {
	if nodeFrame.PageID() == rid.PageID(t.rootID.Load()) {
		return t.adjustRoot(txn, nodeFrame)
	}

	kindByte := headerKind(nodeFrame.Payload())
	size := headerSize(nodeFrame.Payload())
	minSize := MinSize(headerMaxSize(nodeFrame.Payload()))
	var meetsMin bool
	if kindByte == kindLeaf {
		meetsMin = size >= minSize
	} else {
		meetsMin = size > minSize
	}
	if meetsMin {
		return false
	}

	parentFrame, err := t.pool.FetchPage(headerParentID(nodeFrame.Payload()))
	if err != nil {
		t.log.Error("index: failed to fetch parent during coalesce", "err", err)
		return false
	}
	// If the parent is already latched from the initial descent (it
	// wasn't proven safe for DELETE), reuse that latch rather than
	// taking it again, which would deadlock against ourselves.
	parentAlreadyLatched := txn.Contains(parentFrame)
	if !parentAlreadyLatched {
		t.latch(parentFrame, ModeDelete)
	}
	parent := AsInternalNode[K](parentFrame, t.traits, t.pool)
	idx := parent.ValueIndex(nodeFrame.PageID())
	var siblingIdx int32
	if idx > 0 {
		siblingIdx = idx - 1
	} else {
		siblingIdx = idx + 1
	}
	siblingID := parent.ValueAt(siblingIdx)
	siblingFrame, err := t.pool.FetchPage(siblingID)
	if err != nil {
		t.pool.UnpinPage(parentFrame.PageID(), false)
		return false
	}
	t.latch(siblingFrame, ModeDelete)
	txn.AddIntoPageSet(siblingFrame)

	maxSize := headerMaxSize(nodeFrame.Payload())
	combined := headerSize(siblingFrame.Payload()) + size

	var nodeShouldBeDeleted, coalesced bool
	if combined > maxSize {
		t.redistribute(txn, nodeFrame, siblingFrame, parent, idx, siblingIdx, kindByte)
		t.log.Info("index: redistribute", "txn", txn.ID(), "node", nodeFrame.PageID(), "sibling", siblingFrame.PageID())
	} else {
		coalesced = true
		if idx == 0 {
			t.coalesce(txn, nodeFrame, siblingFrame, parent, siblingIdx, kindByte)
			txn.AddIntoDeletedPageSet(siblingFrame.PageID())
			t.log.Info("index: coalesce", "txn", txn.ID(), "recipient", nodeFrame.PageID(), "absorbed", siblingFrame.PageID())
		} else {
			t.coalesce(txn, siblingFrame, nodeFrame, parent, idx, kindByte)
			txn.AddIntoDeletedPageSet(nodeFrame.PageID())
			nodeShouldBeDeleted = true
			t.log.Info("index: coalesce", "txn", txn.ID(), "recipient", siblingFrame.PageID(), "absorbed", nodeFrame.PageID())
		}
	}

	if coalesced {
		if t.coalesceOrRedistribute(txn, parentFrame) {
			txn.AddIntoDeletedPageSet(parentFrame.PageID())
		}
	}
	if !parentAlreadyLatched {
		t.unlatch(parentFrame, ModeDelete)
	}
	t.pool.UnpinPage(parentFrame.PageID(), true)
	return nodeShouldBeDeleted
}

func (t *Tree[K]) coalesce(txn *Transaction, recipientFrame, sourceFrame *buffer.Frame, parent *InternalNode[K], removalIndex int32, kindByte kind) {
	if kindByte == kindLeaf {
		AsLeafNode[K](sourceFrame, t.traits).MoveAllTo(AsLeafNode[K](recipientFrame, t.traits))
	} else {
		sepKey := parent.KeyAt(removalIndex)
		AsInternalNode[K](sourceFrame, t.traits, t.pool).MoveAllTo(txn, AsInternalNode[K](recipientFrame, t.traits, t.pool), sepKey)
	}
	parent.Remove(removalIndex)
}

func (t *Tree[K]) redistribute(txn *Transaction, nodeFrame, siblingFrame *buffer.Frame, parent *InternalNode[K], idx, siblingIdx int32, kindByte kind) {
	if idx == 0 {
		if kindByte == kindLeaf {
			node := AsLeafNode[K](nodeFrame, t.traits)
			sib := AsLeafNode[K](siblingFrame, t.traits)
			sib.MoveFirstToEndOf(node)
			parent.SetKeyAt(siblingIdx, sib.KeyAt(0))
		} else {
			node := AsInternalNode[K](nodeFrame, t.traits, t.pool)
			sib := AsInternalNode[K](siblingFrame, t.traits, t.pool)
			newSep := sib.MoveFirstToEndOf(txn, node, parent.KeyAt(siblingIdx))
			parent.SetKeyAt(siblingIdx, newSep)
		}
		return
	}
	if kindByte == kindLeaf {
		node := AsLeafNode[K](nodeFrame, t.traits)
		sib := AsLeafNode[K](siblingFrame, t.traits)
		sib.MoveLastToFrontOf(node)
		parent.SetKeyAt(idx, node.KeyAt(0))
	} else {
		node := AsInternalNode[K](nodeFrame, t.traits, t.pool)
		sib := AsInternalNode[K](siblingFrame, t.traits, t.pool)
		newSep := sib.MoveLastToFrontOf(txn, node, parent.KeyAt(idx))
		parent.SetKeyAt(idx, newSep)
	}
}

func (t *Tree[K]) adjustRoot(txn *Transaction, nodeFrame *buffer.Frame) bool {
	kindByte := headerKind(nodeFrame.Payload())
	size := headerSize(nodeFrame.Payload())
	if kindByte == kindLeaf && size == 0 {
		t.rootID.Store(int32(rid.InvalidPageID))
		t.dir.DeleteRecord(t.name)
		t.log.Info("index: tree emptied", "txn", txn.ID())
		return true
	}
	if kindByte == kindInternal && size == 1 {
		onlyChild := AsInternalNode[K](nodeFrame, t.traits, t.pool).ValueAt(0)
		t.reparentTo(txn, onlyChild, rid.InvalidPageID)
		t.updateRootPageID(onlyChild, false)
		t.log.Info("index: root height decreased", "txn", txn.ID(), "new root", onlyChild)
		return true
	}
	return false
}
