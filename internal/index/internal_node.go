package index

import (
	"encoding/binary"

	"bufftree/internal/buffer"
	"bufftree/keys"
	"bufftree/rid"
)

// InternalNode is a typed view over a page's payload holding
// (key, child page id) pairs. Slot 0's key is a sentinel that is never
// compared; its child pointer covers every key strictly less than
// slot 1's key.
//
// Reparenting a moved child (updating its own parent_page_id) requires
// fetching that child's page, so InternalNode holds a pool reference —
// unlike LeafNode, which never touches another page.
type InternalNode[K any] struct {
	frame   *buffer.Frame
	payload []byte
	traits  keys.Traits[K]
	pool    *buffer.Pool
}

func internalEntrySize[K any](traits keys.Traits[K]) int {
	return traits.Size + 4 // key + child page id (int32)
}

// AsInternalNode wraps an existing, already-initialized internal page.
func AsInternalNode[K any](frame *buffer.Frame, traits keys.Traits[K], pool *buffer.Pool) *InternalNode[K] {
	return &InternalNode[K]{frame: frame, payload: frame.Payload(), traits: traits, pool: pool}
}

// InitInternalNode formats frame's payload as a brand-new internal node
// with a single (unpopulated) child slot, per BusTub's convention that
// PopulateNewRoot's precondition is a freshly-created node of size 1.
func InitInternalNode[K any](frame *buffer.Frame, traits keys.Traits[K], maxSize int32, pool *buffer.Pool) *InternalNode[K] {
	payload := frame.Payload()
	clear(payload)
	setHeaderKind(payload, kindInternal)
	setHeaderSize(payload, 1)
	setHeaderMaxSize(payload, maxSize)
	setHeaderParentID(payload, rid.InvalidPageID)
	setHeaderPageID(payload, frame.PageID())
	markDirty(frame)
	return &InternalNode[K]{frame: frame, payload: payload, traits: traits, pool: pool}
}

func (n *InternalNode[K]) Frame() *buffer.Frame     { return n.frame }
func (n *InternalNode[K]) Size() int32              { return headerSize(n.payload) }
func (n *InternalNode[K]) MaxSize() int32           { return headerMaxSize(n.payload) }
func (n *InternalNode[K]) PageID() rid.PageID       { return headerPageID(n.payload) }
func (n *InternalNode[K]) ParentPageID() rid.PageID { return headerParentID(n.payload) }
func (n *InternalNode[K]) SetParentPageID(id rid.PageID) {
	setHeaderParentID(n.payload, id)
	markDirty(n.frame)
}
func (n *InternalNode[K]) MinSize() int32 { return MinSize(n.MaxSize()) }

func (n *InternalNode[K]) setSize(s int32) {
	setHeaderSize(n.payload, s)
	markDirty(n.frame)
}

func (n *InternalNode[K]) entryOffset(i int32) int {
	return internalHeaderSize + int(i)*internalEntrySize(n.traits)
}

// KeyAt returns the key at slot i. Slot 0's key is a sentinel and its
// contents are meaningless.
func (n *InternalNode[K]) KeyAt(i int32) K {
	off := n.entryOffset(i)
	return n.traits.Decode(n.payload[off : off+n.traits.Size])
}

func (n *InternalNode[K]) SetKeyAt(i int32, k K) {
	off := n.entryOffset(i)
	n.traits.Encode(n.payload[off:off+n.traits.Size], k)
	markDirty(n.frame)
}

// ValueAt returns the child page id at slot i.
func (n *InternalNode[K]) ValueAt(i int32) rid.PageID {
	off := n.entryOffset(i) + n.traits.Size
	return rid.PageID(int32(binary.BigEndian.Uint32(n.payload[off : off+4])))
}

func (n *InternalNode[K]) SetValueAt(i int32, v rid.PageID) {
	off := n.entryOffset(i) + n.traits.Size
	binary.BigEndian.PutUint32(n.payload[off:off+4], uint32(int32(v)))
	markDirty(n.frame)
}

// ValueIndex returns the slot holding child pointer v, or Size() if v
// is not one of this node's children.
func (n *InternalNode[K]) ValueIndex(v rid.PageID) int32 {
	size := n.Size()
	for i := int32(0); i < size; i++ {
		if n.ValueAt(i) == v {
			return i
		}
	}
	return size
}

// Lookup returns the child pointer covering key k: the value at the
// rightmost slot i with KeyAt(i) <= k, falling back to slot 0 if
// k < KeyAt(1).
func (n *InternalNode[K]) Lookup(k K) rid.PageID {
	size := n.Size()
	if size <= 1 {
		return n.ValueAt(0)
	}
	lo, hi := int32(1), size-1
	best := int32(0)
	for lo <= hi {
		mid := (lo + hi) / 2
		if n.traits.Compare(n.KeyAt(mid), k) <= 0 {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return n.ValueAt(best)
}

// PopulateNewRoot turns a freshly-initialized size-1 node into a proper
// two-child root: old is left of the separator, new is right of it.
func (n *InternalNode[K]) PopulateNewRoot(old rid.PageID, k K, new rid.PageID) {
	n.SetValueAt(0, old)
	n.SetKeyAt(1, k)
	n.SetValueAt(1, new)
	n.setSize(2)
}

// InsertNodeAfter inserts (k, newVal) immediately after the slot whose
// child pointer is oldVal, shifting later slots right. The physical
// page has room for one slot beyond MaxSize so the node can briefly
// hold MaxSize+1 children before the caller decides to split.
func (n *InternalNode[K]) InsertNodeAfter(oldVal rid.PageID, k K, newVal rid.PageID) {
	idx := n.ValueIndex(oldVal)
	size := n.Size()
	for i := size; i > idx+1; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	n.SetKeyAt(idx+1, k)
	n.SetValueAt(idx+1, newVal)
	n.setSize(size + 1)
}

// Remove deletes slot i, shifting later slots left.
func (n *InternalNode[K]) Remove(i int32) {
	size := n.Size()
	for j := i; j < size-1; j++ {
		n.SetKeyAt(j, n.KeyAt(j+1))
		n.SetValueAt(j, n.ValueAt(j+1))
	}
	n.setSize(size - 1)
}

// reparent updates child's parent pointer to newParent. If child is
// already write-latched as part of txn's current chain (e.g. the leaf
// or internal node on the descent path being moved during its own
// split), it reuses that latch instead of taking it again, which would
// deadlock the calling goroutine against itself — the same rule
// reparentTo applies for single-page reparenting.
func (n *InternalNode[K]) reparent(txn *Transaction, child rid.PageID, newParent rid.PageID) {
	frame, err := n.pool.FetchPage(child)
	if err != nil {
		return
	}
	alreadyLatched := txn.Contains(frame)
	if !alreadyLatched {
		frame.WLock()
	}
	switch headerKind(frame.Payload()) {
	case kindLeaf:
		AsLeafNode(frame, n.traits).SetParentPageID(newParent)
	default:
		AsInternalNode(frame, n.traits, n.pool).SetParentPageID(newParent)
	}
	if !alreadyLatched {
		frame.WUnlock()
	}
	n.pool.UnpinPage(child, true)
}

// MoveHalfTo moves this node's top ⌈size/2⌉ children to recipient
// (which must be empty), reparenting each moved child. The key that
// used to separate the last-kept child from the first-moved child is
// returned so the caller can propagate it to the parent as the new
// separator; recipient's own slot-0 key is left as an unused sentinel.
func (n *InternalNode[K]) MoveHalfTo(txn *Transaction, recipient *InternalNode[K]) (promoted K) {
	size := n.Size()
	mid := size / 2
	promoted = n.KeyAt(mid)
	for i := mid; i < size; i++ {
		recipient.SetValueAt(i-mid, n.ValueAt(i))
		if i > mid {
			recipient.SetKeyAt(i-mid, n.KeyAt(i))
		}
		n.reparent(txn, n.ValueAt(i), recipient.PageID())
	}
	recipient.setSize(size - mid)
	n.setSize(mid)
	return promoted
}

// MoveAllTo merges all of this node's children into recipient (its
// left neighbor), using sepKey — the parent's separator between
// recipient and n — as the key for n's former slot-0 child, which had
// no real key of its own.
func (n *InternalNode[K]) MoveAllTo(txn *Transaction, recipient *InternalNode[K], sepKey K) {
	base := recipient.Size()
	size := n.Size()
	recipient.SetValueAt(base, n.ValueAt(0))
	recipient.SetKeyAt(base, sepKey)
	recipient.reparent(txn, n.ValueAt(0), recipient.PageID())
	for i := int32(1); i < size; i++ {
		recipient.SetValueAt(base+i, n.ValueAt(i))
		recipient.SetKeyAt(base+i, n.KeyAt(i))
		recipient.reparent(txn, n.ValueAt(i), recipient.PageID())
	}
	recipient.setSize(base + size)
	n.setSize(0)
}

// MoveFirstToEndOf redistributes n's first child onto the end of
// recipient (n is the right sibling of an underflowing left node).
// parentSepKey is the key currently separating recipient and n in
// their parent; it becomes the key attached to the moved child.
// Returns the new separator the parent must adopt.
func (n *InternalNode[K]) MoveFirstToEndOf(txn *Transaction, recipient *InternalNode[K], parentSepKey K) (newSepKey K) {
	firstVal := n.ValueAt(0)
	size := n.Size()
	newSepKey = n.KeyAt(1)
	for i := int32(0); i < size-1; i++ {
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	for i := int32(1); i < size-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
	}
	n.setSize(size - 1)

	idx := recipient.Size()
	recipient.SetValueAt(idx, firstVal)
	recipient.SetKeyAt(idx, parentSepKey)
	recipient.setSize(idx + 1)
	recipient.reparent(txn, firstVal, recipient.PageID())
	return newSepKey
}

// MoveLastToFrontOf redistributes n's last child onto the front of
// recipient (n is the left sibling of an underflowing right node).
// parentSepKey is the key currently separating n and recipient in
// their parent. Returns the new separator the parent must adopt.
func (n *InternalNode[K]) MoveLastToFrontOf(txn *Transaction, recipient *InternalNode[K], parentSepKey K) (newSepKey K) {
	size := n.Size()
	lastVal := n.ValueAt(size - 1)
	newSepKey = n.KeyAt(size - 1)
	n.setSize(size - 1)

	rsize := recipient.Size()
	for i := rsize; i >= 1; i-- {
		recipient.SetValueAt(i, recipient.ValueAt(i-1))
	}
	for i := rsize; i >= 2; i-- {
		recipient.SetKeyAt(i, recipient.KeyAt(i-1))
	}
	recipient.SetValueAt(0, lastVal)
	recipient.SetKeyAt(1, parentSepKey)
	recipient.setSize(rsize + 1)
	recipient.reparent(txn, lastVal, recipient.PageID())
	return newSepKey
}
