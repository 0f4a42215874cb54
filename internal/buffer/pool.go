package buffer

import (
	"errors"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"

	"bufftree/internal/config"
	"bufftree/internal/disk"
	"bufftree/internal/list"
	"bufftree/internal/replacer"
	"bufftree/internal/telemetry"
	"bufftree/internal/wal"
	"bufftree/rid"
)

// ErrPoolExhausted is returned by FetchPage/NewPage when every frame is
// pinned and there is no free or evictable frame to hand out.
var ErrPoolExhausted = errors.New("buffer: pool exhausted, every frame is pinned")

// ErrCorrupt is returned when a page's on-disk checksum doesn't match
// its contents.
var ErrCorrupt = errors.New("buffer: page failed checksum verification")

// Pool owns the frame array, the page table, the free list, and hands
// out pinned frames to callers. Every exported method holds poolMu for
// its entire duration, including the disk I/O on a cache miss or flush.
// Narrowing the critical section to exclude I/O would require dropping
// the latch mid-operation and re-validating the page table on reacquire;
// the crabbing protocol above this pool doesn't need that, so the
// simpler whole-operation lock is kept.
type Pool struct {
	disk     disk.Manager
	log      telemetry.Logger
	walHook  wal.Hook
	poolMu   sync.Mutex
	frames   []*Frame
	table    map[rid.PageID]int // page id -> frame index
	free     *list.List[int]    // indices not holding any page
	freeLink map[int]*list.Link[int]
	replacer *replacer.LRU
	dirtySet *bitset.BitSet // dirty frame indices, for FlushAllPages
}

// New constructs a Pool of size frames, all initially free, backed by
// the given disk manager.
func New(size int, dm disk.Manager, log telemetry.Logger) *Pool {
	if log == nil {
		log = telemetry.Discard{}
	}
	backing := directio.AlignedBlock(int(config.PageSize) * size)
	p := &Pool{
		disk:     dm,
		log:      log,
		walHook:  wal.NopHook{},
		frames:   make([]*Frame, size),
		table:    make(map[rid.PageID]int, size),
		free:     list.NewList[int](),
		freeLink: make(map[int]*list.Link[int], size),
		replacer: replacer.New(),
		dirtySet: bitset.New(uint(size)),
	}
	for i := 0; i < size; i++ {
		p.frames[i] = newFrame(backing[i*int(config.PageSize) : (i+1)*int(config.PageSize)])
		p.freeLink[i] = p.free.PushTail(i)
	}
	return p
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int {
	return len(p.frames)
}

// SetWALHook installs the write-ahead hook every subsequent dirty write
// notifies. Passing nil restores the no-op default.
func (p *Pool) SetWALHook(h wal.Hook) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	if h == nil {
		h = wal.NopHook{}
	}
	p.walHook = h
}

// acquireFrame returns a free-or-evictable frame index, or false if the
// pool is exhausted. poolMu must be held by the caller.
func (p *Pool) acquireFrame() (int, bool) {
	if link := p.free.PeekHead(); link != nil {
		idx := link.GetValue()
		link.PopSelf()
		delete(p.freeLink, idx)
		return idx, true
	}
	idx, ok := p.replacer.Victim()
	if !ok {
		return 0, false
	}
	fi := int(idx)
	victim := p.frames[fi]
	if victim.IsDirty() {
		p.flushFrame(fi)
	}
	delete(p.table, victim.PageID())
	return fi, true
}

// flushFrame writes frame fi through to disk if dirty and clears the
// dirty flag. poolMu must be held.
func (p *Pool) flushFrame(fi int) {
	f := p.frames[fi]
	if !f.IsDirty() {
		return
	}
	f.storeChecksum()
	if err := p.disk.WritePage(f.PageID(), f.data); err != nil {
		p.log.Error("buffer: flush failed", "page", f.PageID(), "err", err)
		return
	}
	f.SetDirty(false)
	p.dirtySet.Clear(uint(fi))
}

// FetchPage returns the frame holding page id, pinning it, reading it
// from disk on a miss. Returns ErrPoolExhausted if no frame is
// available and ErrCorrupt if the page fails checksum verification.
func (p *Pool) FetchPage(id rid.PageID) (*Frame, error) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	if fi, ok := p.table[id]; ok {
		f := p.frames[fi]
		f.get()
		p.replacer.Pin(replacer.FrameID(fi))
		return f, nil
	}

	fi, ok := p.acquireFrame()
	if !ok {
		p.log.Warn("buffer: pool exhausted", "requested", id)
		return nil, ErrPoolExhausted
	}
	f := p.frames[fi]
	f.id.Store(int32(id))
	clear(f.data)
	if err := p.disk.ReadPage(id, f.data); err != nil {
		p.freeFrame(fi)
		return nil, err
	}
	if !f.verifyChecksum() {
		p.log.Error("buffer: checksum mismatch", "page", id)
		p.freeFrame(fi)
		return nil, ErrCorrupt
	}
	f.SetDirty(false)
	f.pinCount.Store(1)
	p.table[id] = fi
	return f, nil
}

// NewPage allocates a brand-new page on disk and returns it pinned and
// dirty.
func (p *Pool) NewPage() (rid.PageID, *Frame, error) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	fi, ok := p.acquireFrame()
	if !ok {
		p.log.Warn("buffer: pool exhausted on new page")
		return rid.InvalidPageID, nil, ErrPoolExhausted
	}
	id := p.disk.AllocatePage()
	f := p.frames[fi]
	f.id.Store(int32(id))
	clear(f.data)
	f.pinCount.Store(1)
	f.SetDirty(true)
	p.dirtySet.Set(uint(fi))
	p.table[id] = fi
	p.walHook.OnDirtyWrite(id)
	return id, f, nil
}

// UnpinPage releases one pin on id. dirtyHint is OR'd into the frame's
// dirty flag. Returns false if id isn't resident or is already unpinned.
func (p *Pool) UnpinPage(id rid.PageID, dirtyHint bool) bool {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	fi, ok := p.table[id]
	if !ok {
		return false
	}
	f := p.frames[fi]
	if f.PinCount() == 0 {
		return false
	}
	if dirtyHint {
		f.SetDirty(true)
		p.dirtySet.Set(uint(fi))
		p.walHook.OnDirtyWrite(id)
	}
	if f.put() == 0 {
		p.replacer.Unpin(replacer.FrameID(fi))
	}
	return true
}

// FlushPage writes id through to disk if resident, regardless of pin
// state, and clears its dirty flag. Returns false if id isn't resident.
func (p *Pool) FlushPage(id rid.PageID) bool {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	fi, ok := p.table[id]
	if !ok {
		return false
	}
	p.flushFrame(fi)
	return true
}

// FlushAllPages writes every dirty frame through to disk, fanning the
// writes out across a bounded worker group rather than flushing one
// frame at a time: the frames are independent, and I/O is the
// bottleneck.
func (p *Pool) FlushAllPages() {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	dirty := make([]int, 0, p.dirtySet.Count())
	for i, ok := p.dirtySet.NextSet(0); ok; i, ok = p.dirtySet.NextSet(i + 1) {
		dirty = append(dirty, int(i))
	}
	flushDirtyFrames(p, dirty)
}

// DeletePage removes id from the pool, returning it to the free list.
// Idempotent: returns true if id was never resident. Returns false if
// id is still pinned.
func (p *Pool) DeletePage(id rid.PageID) (bool, error) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	fi, ok := p.table[id]
	if !ok {
		return true, nil
	}
	f := p.frames[fi]
	if f.PinCount() > 0 {
		return false, nil
	}
	p.replacer.Pin(replacer.FrameID(fi)) // remove from eviction candidacy if present
	if f.IsDirty() {
		p.flushFrame(fi)
	}
	delete(p.table, id)
	if err := p.disk.DeallocatePage(id); err != nil {
		return false, err
	}
	p.freeFrame(fi)
	return true, nil
}

// freeFrame resets a frame's metadata and returns it to the free list.
// poolMu must be held.
func (p *Pool) freeFrame(fi int) {
	f := p.frames[fi]
	f.id.Store(int32(rid.InvalidPageID))
	f.SetDirty(false)
	f.pinCount.Store(0)
	p.dirtySet.Clear(uint(fi))
	p.freeLink[fi] = p.free.PushHead(fi)
}

// Close flushes every dirty frame and closes the backing disk manager.
func (p *Pool) Close() error {
	p.FlushAllPages()
	return p.disk.Close()
}
