// Package wal defines the write-ahead hook the buffer pool calls on
// every dirty write, plus one concrete, file-backed implementation of
// it. Full write-ahead logging and crash recovery are out of scope:
// what lives here is the hook point and a minimal, testable log a
// caller can inspect, not a redo/undo recovery subsystem.
package wal

import "bufftree/rid"

// Hook is notified whenever the buffer pool marks a page dirty. A Pool
// with no hook configured behaves exactly as if none of this package
// existed.
type Hook interface {
	OnDirtyWrite(pageID rid.PageID)
}

// NopHook discards every notification; it's the pool's default.
type NopHook struct{}

func (NopHook) OnDirtyWrite(rid.PageID) {}
