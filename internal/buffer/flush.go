package buffer

import "golang.org/x/sync/errgroup"

// maxConcurrentFlushes bounds how many frames FlushAllPages writes to
// disk at once; unbounded fan-out would just contend for the same file.
const maxConcurrentFlushes = 8

// flushDirtyFrames writes the given frame indices through to disk
// concurrently. poolMu is held by the caller for the whole call, so
// each goroutine below touches a disjoint frame with no risk of another
// Pool method racing it.
func flushDirtyFrames(p *Pool, indices []int) {
	if len(indices) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(maxConcurrentFlushes)
	for _, fi := range indices {
		fi := fi
		g.Go(func() error {
			f := p.frames[fi]
			if !f.IsDirty() {
				return nil
			}
			f.storeChecksum()
			if err := p.disk.WritePage(f.PageID(), f.data); err != nil {
				p.log.Error("buffer: flush failed", "page", f.PageID(), "err", err)
				return nil
			}
			f.SetDirty(false)
			return nil
		})
	}
	_ = g.Wait()
	for _, fi := range indices {
		p.dirtySet.Clear(uint(fi))
	}
}
