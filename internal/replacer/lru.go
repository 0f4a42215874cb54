// Package replacer implements the eviction-candidate tracker the buffer
// pool consults when it needs a victim frame. It is deliberately split
// out from the pool itself: the pool owns pinning and the page table,
// the replacer only knows which frames are currently eligible for
// eviction and in what order to give them up.
package replacer

import (
	"sync"

	"bufftree/internal/list"
)

// FrameID indexes into the buffer pool's frame array.
type FrameID int

// LRU tracks eviction-eligible frames in least-recently-unpinned order.
// All four operations are O(1) and serialized by lru's own mutex,
// independent of the buffer pool's mutex.
type LRU struct {
	mu      sync.Mutex
	order   *list.List[FrameID]
	byFrame map[FrameID]*list.Link[FrameID]
}

// New constructs an empty replacer.
func New() *LRU {
	return &LRU{
		order:   list.NewList[FrameID](),
		byFrame: make(map[FrameID]*list.Link[FrameID]),
	}
}

// Victim removes and returns the least-recently-unpinned frame. Returns
// (0, false) if no frame is eligible.
func (r *LRU) Victim() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link := r.order.PeekHead()
	if link == nil {
		return 0, false
	}
	fid := link.GetValue()
	link.PopSelf()
	delete(r.byFrame, fid)
	return fid, true
}

// Pin removes a frame from eviction candidacy. No-op if the frame isn't
// currently tracked (either never unpinned, or already pinned).
func (r *LRU) Pin(fid FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byFrame[fid]
	if !ok {
		return
	}
	link.PopSelf()
	delete(r.byFrame, fid)
}

// Unpin makes a frame eligible for eviction, placing it at the
// most-recently-used end. If the frame is already tracked, this is a
// no-op: first-unpin-wins, the frame's position does not move.
func (r *LRU) Unpin(fid FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byFrame[fid]; ok {
		return
	}
	// Head = least-recently-unpinned (next victim), tail = most recent.
	r.byFrame[fid] = r.order.PushTail(fid)
}

// Size returns the number of eviction-eligible frames.
func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byFrame)
}
