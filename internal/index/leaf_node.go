package index

import (
	"encoding/binary"
	"sort"

	"bufftree/internal/buffer"
	"bufftree/keys"
	"bufftree/rid"
)

// LeafNode is a typed view over a page's payload holding sorted
// (key, RID) pairs plus a right-sibling pointer. It does not own the
// frame's pin or latch; the caller (the B+tree) holds both for as long
// as it holds a *LeafNode.
type LeafNode[K any] struct {
	frame   *buffer.Frame
	payload []byte
	traits  keys.Traits[K]
}

func leafEntrySize[K any](traits keys.Traits[K]) int {
	return traits.Size + ridSize
}

const ridSize = 8 // rid.PageID (4 bytes) + slot (4 bytes)

func encodeRID(dst []byte, r rid.RID) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(int32(r.PageID)))
	binary.BigEndian.PutUint32(dst[4:8], r.Slot)
}

func decodeRID(src []byte) rid.RID {
	return rid.RID{
		PageID: rid.PageID(int32(binary.BigEndian.Uint32(src[0:4]))),
		Slot:   binary.BigEndian.Uint32(src[4:8]),
	}
}

// AsLeafNode wraps an existing, already-initialized leaf page.
func AsLeafNode[K any](frame *buffer.Frame, traits keys.Traits[K]) *LeafNode[K] {
	return &LeafNode[K]{frame: frame, payload: frame.Payload(), traits: traits}
}

// InitLeafNode formats frame's payload as a brand-new, empty leaf node.
func InitLeafNode[K any](frame *buffer.Frame, traits keys.Traits[K], maxSize int32) *LeafNode[K] {
	payload := frame.Payload()
	clear(payload)
	setHeaderKind(payload, kindLeaf)
	setHeaderSize(payload, 0)
	setHeaderMaxSize(payload, maxSize)
	setHeaderParentID(payload, rid.InvalidPageID)
	setHeaderPageID(payload, frame.PageID())
	invalidPageID := rid.InvalidPageID
	binary.BigEndian.PutUint32(payload[nextPageIDOffset:], uint32(int32(invalidPageID)))
	markDirty(frame)
	return &LeafNode[K]{frame: frame, payload: payload, traits: traits}
}

func (n *LeafNode[K]) Frame() *buffer.Frame { return n.frame }
func (n *LeafNode[K]) Size() int32          { return headerSize(n.payload) }
func (n *LeafNode[K]) MaxSize() int32       { return headerMaxSize(n.payload) }
func (n *LeafNode[K]) PageID() rid.PageID   { return headerPageID(n.payload) }
func (n *LeafNode[K]) ParentPageID() rid.PageID {
	return headerParentID(n.payload)
}
func (n *LeafNode[K]) SetParentPageID(id rid.PageID) {
	setHeaderParentID(n.payload, id)
	markDirty(n.frame)
}
func (n *LeafNode[K]) NextPageID() rid.PageID {
	return rid.PageID(int32(binary.BigEndian.Uint32(n.payload[nextPageIDOffset:])))
}
func (n *LeafNode[K]) SetNextPageID(id rid.PageID) {
	binary.BigEndian.PutUint32(n.payload[nextPageIDOffset:], uint32(int32(id)))
	markDirty(n.frame)
}
func (n *LeafNode[K]) setSize(s int32) {
	setHeaderSize(n.payload, s)
	markDirty(n.frame)
}

// MinSize is the minimum occupancy a non-root leaf must maintain.
func (n *LeafNode[K]) MinSize() int32 { return MinSize(n.MaxSize()) }

func (n *LeafNode[K]) entryOffset(i int32) int {
	return leafHeaderSize + int(i)*leafEntrySize(n.traits)
}

// KeyAt returns the key stored at slot i.
func (n *LeafNode[K]) KeyAt(i int32) K {
	off := n.entryOffset(i)
	return n.traits.Decode(n.payload[off : off+n.traits.Size])
}

// ValueAt returns the RID stored at slot i.
func (n *LeafNode[K]) ValueAt(i int32) rid.RID {
	off := n.entryOffset(i) + n.traits.Size
	return decodeRID(n.payload[off : off+ridSize])
}

func (n *LeafNode[K]) setEntry(i int32, k K, v rid.RID) {
	off := n.entryOffset(i)
	n.traits.Encode(n.payload[off:off+n.traits.Size], k)
	encodeRID(n.payload[off+n.traits.Size:off+n.traits.Size+ridSize], v)
	markDirty(n.frame)
}

// KeyIndex returns the first slot with key >= k, or Size() if none.
func (n *LeafNode[K]) KeyIndex(k K) int32 {
	size := int(n.Size())
	idx := sort.Search(size, func(i int) bool {
		return n.traits.Compare(n.KeyAt(int32(i)), k) >= 0
	})
	return int32(idx)
}

// Lookup returns the value stored under k, if present.
func (n *LeafNode[K]) Lookup(k K) (rid.RID, bool) {
	idx := n.KeyIndex(k)
	if idx >= n.Size() || n.traits.Compare(n.KeyAt(idx), k) != 0 {
		return rid.RID{}, false
	}
	return n.ValueAt(idx), true
}

// Insert inserts (k, v) in sorted order. Returns the new size and false
// if k is already present; the tree enforces unique keys.
func (n *LeafNode[K]) Insert(k K, v rid.RID) (int32, bool) {
	idx := n.KeyIndex(k)
	size := n.Size()
	if idx < size && n.traits.Compare(n.KeyAt(idx), k) == 0 {
		return size, false
	}
	for i := size; i > idx; i-- {
		n.setEntry(i, n.KeyAt(i-1), n.ValueAt(i-1))
	}
	n.setEntry(idx, k, v)
	n.setSize(size + 1)
	return size + 1, true
}

// RemoveAndDeleteRecord removes k if present, shifting later entries
// left. Returns the resulting size, unchanged if k wasn't found.
func (n *LeafNode[K]) RemoveAndDeleteRecord(k K) int32 {
	idx := n.KeyIndex(k)
	size := n.Size()
	if idx >= size || n.traits.Compare(n.KeyAt(idx), k) != 0 {
		return size
	}
	for i := idx; i < size-1; i++ {
		n.setEntry(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.setSize(size - 1)
	return size - 1
}

// MoveHalfTo moves this leaf's top ⌈size/2⌉ entries to recipient,
// which must be empty, and re-chains the leaf list.
func (n *LeafNode[K]) MoveHalfTo(recipient *LeafNode[K]) {
	size := n.Size()
	mid := size / 2
	for i := mid; i < size; i++ {
		recipient.setEntry(i-mid, n.KeyAt(i), n.ValueAt(i))
	}
	recipient.setSize(size - mid)
	n.setSize(mid)
	recipient.SetNextPageID(n.NextPageID())
	n.SetNextPageID(recipient.PageID())
}

// MoveAllTo appends all of this leaf's entries onto recipient (which
// must be able to hold them) and takes over this leaf's next pointer,
// preserving the leaf chain across the merge.
func (n *LeafNode[K]) MoveAllTo(recipient *LeafNode[K]) {
	base := recipient.Size()
	size := n.Size()
	for i := int32(0); i < size; i++ {
		recipient.setEntry(base+i, n.KeyAt(i), n.ValueAt(i))
	}
	recipient.setSize(base + size)
	recipient.SetNextPageID(n.NextPageID())
	n.setSize(0)
}

// MoveFirstToEndOf shifts this leaf's first entry onto the end of
// recipient (redistribution when recipient is the left sibling).
func (n *LeafNode[K]) MoveFirstToEndOf(recipient *LeafNode[K]) {
	k, v := n.KeyAt(0), n.ValueAt(0)
	size := n.Size()
	for i := int32(0); i < size-1; i++ {
		n.setEntry(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.setSize(size - 1)
	recipient.setEntry(recipient.Size(), k, v)
	recipient.setSize(recipient.Size() + 1)
}

// MoveLastToFrontOf shifts this leaf's last entry onto the front of
// recipient (redistribution when recipient is the right sibling).
func (n *LeafNode[K]) MoveLastToFrontOf(recipient *LeafNode[K]) {
	size := n.Size()
	k, v := n.KeyAt(size-1), n.ValueAt(size-1)
	n.setSize(size - 1)
	rsize := recipient.Size()
	for i := rsize; i > 0; i-- {
		recipient.setEntry(i, recipient.KeyAt(i-1), recipient.ValueAt(i-1))
	}
	recipient.setEntry(0, k, v)
	recipient.setSize(rsize + 1)
}
