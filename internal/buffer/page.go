// Package buffer implements the fixed-size buffer pool that maps page
// ids to frames in memory: a frame array (this file), a replacer
// (internal/replacer), and the pool itself (pool.go).
package buffer

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"

	"bufftree/internal/config"
	"bufftree/rid"
)

// checksumSize is the width of the trailer bufftree reserves at the end
// of every physical page to hold an xxhash checksum of the page's
// logical payload, catching a torn or corrupted page on read.
const checksumSize = 8

// PayloadSize is how many of the PageSize bytes a node layout may use;
// the remainder is the checksum trailer.
const PayloadSize = int(config.PageSize) - checksumSize

// Frame is one slot in the pool's fixed-size page array: the in-memory
// image of a page, plus its pin count, dirty flag, and reader/writer
// latch. A frame's page id is InvalidPageID while sitting on the free
// list; the buffer pool is solely responsible for that transition,
// never the B+tree.
type Frame struct {
	id       atomic.Int32 // rid.PageID, resident page (InvalidPageID if free)
	pinCount atomic.Int64
	dirty    atomic.Bool
	rwlatch  sync.RWMutex
	data     []byte // exactly config.PageSize bytes, directio-aligned
}

func newFrame(data []byte) *Frame {
	f := &Frame{data: data}
	f.id.Store(int32(rid.InvalidPageID))
	return f
}

// PageID returns the page currently resident in this frame.
func (f *Frame) PageID() rid.PageID {
	return rid.PageID(f.id.Load())
}

// IsDirty reports whether the frame's data differs from what's on disk.
func (f *Frame) IsDirty() bool {
	return f.dirty.Load()
}

// SetDirty marks or clears the dirty flag directly; used by the pool
// when it flushes or resets a frame.
func (f *Frame) SetDirty(dirty bool) {
	f.dirty.Store(dirty)
}

// PinCount returns the current pin count. A frame is eviction-eligible
// iff this is zero.
func (f *Frame) PinCount() int64 {
	return f.pinCount.Load()
}

// Payload returns the sub-slice of the frame's data a node layout may
// use; the trailing checksumSize bytes are reserved for the pool.
func (f *Frame) Payload() []byte {
	return f.data[:PayloadSize]
}

// Update copies data into the frame's payload at offset and marks the
// frame dirty.
func (f *Frame) Update(data []byte, offset, size int) {
	f.dirty.Store(true)
	copy(f.Payload()[offset:offset+size], data)
}

// checksum computes the trailer value for the frame's current payload.
func (f *Frame) checksum() uint64 {
	return xxhash.Sum64(f.Payload())
}

// storeChecksum writes the trailer for the current payload.
func (f *Frame) storeChecksum() {
	binary.BigEndian.PutUint64(f.data[PayloadSize:], f.checksum())
}

// verifyChecksum reports whether the stored trailer matches the payload.
// A page whose trailer is all zero is treated as never-written (a fresh
// page from AllocatePage that hasn't been flushed yet) and always
// verifies, since an unwritten page reads back as all zeros.
func (f *Frame) verifyChecksum() bool {
	stored := binary.BigEndian.Uint64(f.data[PayloadSize:])
	if stored == 0 && allZero(f.Payload()) {
		return true
	}
	return stored == f.checksum()
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// WLock/WUnlock/RLock/RUnlock give the B+tree the per-page reader/writer
// latch it needs for crabbing. The pool never takes this latch itself.
func (f *Frame) WLock()   { f.rwlatch.Lock() }
func (f *Frame) WUnlock() { f.rwlatch.Unlock() }
func (f *Frame) RLock()   { f.rwlatch.RLock() }
func (f *Frame) RUnlock() { f.rwlatch.RUnlock() }

// get/put manage the pin count; the pool is the only caller.
func (f *Frame) get() {
	f.pinCount.Add(1)
}

func (f *Frame) put() int64 {
	return f.pinCount.Add(-1)
}
