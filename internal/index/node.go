// Package index implements the B+tree layered on top of the buffer
// pool: the two node page layouts (this file, leaf_node.go,
// internal_node.go), the transaction context (transaction.go), the
// tree itself with latch crabbing (btree.go), and its forward iterator
// (iterator.go).
//
// A node is a typed view over a page's raw bytes; the tree descends and
// releases ancestor latches as it goes, rather than recursing through
// per-node insert/delete methods. Node layouts are generic over key
// type via keys.Traits[K].
package index

import (
	"encoding/binary"

	"bufftree/internal/buffer"
	"bufftree/rid"
)

// kind identifies a node page's layout.
type kind byte

const (
	kindInternal kind = 0
	kindLeaf     kind = 1
)

// Common header layout, present at the start of every node's payload:
//
//	offset 0:  kind          (1 byte)
//	offset 1:  size          (4 bytes, int32)
//	offset 5:  maxSize       (4 bytes, int32)
//	offset 9:  parentPageID  (4 bytes, int32)
//	offset 13: pageID        (4 bytes, int32)
const (
	typeOffset       = 0
	sizeOffset       = 1
	maxSizeOffset    = 5
	parentIDOffset   = 9
	pageIDOffset     = 13
	commonHeaderSize = 17
)

// Leaf nodes append one more fixed field after the common header.
const (
	nextPageIDOffset = commonHeaderSize
	leafHeaderSize   = commonHeaderSize + 4
)

// Internal nodes need no additional header fields.
const internalHeaderSize = commonHeaderSize

func headerKind(payload []byte) kind        { return kind(payload[typeOffset]) }
func setHeaderKind(payload []byte, k kind)  { payload[typeOffset] = byte(k) }
func headerSize(payload []byte) int32       { return int32(binary.BigEndian.Uint32(payload[sizeOffset:])) }
func setHeaderSize(payload []byte, n int32) { binary.BigEndian.PutUint32(payload[sizeOffset:], uint32(n)) }
func headerMaxSize(payload []byte) int32 {
	return int32(binary.BigEndian.Uint32(payload[maxSizeOffset:]))
}
func setHeaderMaxSize(payload []byte, n int32) {
	binary.BigEndian.PutUint32(payload[maxSizeOffset:], uint32(n))
}
func headerParentID(payload []byte) rid.PageID {
	return rid.PageID(int32(binary.BigEndian.Uint32(payload[parentIDOffset:])))
}
func setHeaderParentID(payload []byte, id rid.PageID) {
	binary.BigEndian.PutUint32(payload[parentIDOffset:], uint32(int32(id)))
}
func headerPageID(payload []byte) rid.PageID {
	return rid.PageID(int32(binary.BigEndian.Uint32(payload[pageIDOffset:])))
}
func setHeaderPageID(payload []byte, id rid.PageID) {
	binary.BigEndian.PutUint32(payload[pageIDOffset:], uint32(int32(id)))
}

// MinSize returns the minimum occupancy a non-root node of this maxSize
// must maintain: ⌈maxSize/2⌉ for both leaves and internal nodes.
func MinSize(maxSize int32) int32 {
	return (maxSize + 1) / 2
}

// LockMode selects which latch mode find_leaf acquires as it descends.
type LockMode int

const (
	// ModeRead takes reader latches and releases ancestors eagerly.
	ModeRead LockMode = iota
	// ModeInsert takes writer latches, safe iff size < maxSize.
	ModeInsert
	// ModeDelete takes writer latches, safe iff size > minSize+1. This
	// is stricter than the textbook size > minSize predicate: it leaves
	// enough headroom that a coalesce one level up can never cascade
	// back into a node this descent already released.
	ModeDelete
)

func markDirty(f *buffer.Frame) {
	f.SetDirty(true)
}
