package wal

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/icza/backscanner"

	"bufftree/rid"
)

// FileHook appends one line per dirty write to a flat log file, syncing
// after every write so the log on disk never lags behind what the
// caller has observed. It keeps no in-memory history of its own; Tail
// re-reads the file from the end.
type FileHook struct {
	mu   sync.Mutex
	file *os.File
}

// Open (re-)opens path as an append-only dirty-write log, creating it
// if necessary.
func Open(path string) (*FileHook, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &FileHook{file: f}, nil
}

// OnDirtyWrite appends pageID to the log and flushes it to disk.
func (h *FileHook) OnDirtyWrite(pageID rid.PageID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.file, "dirty %d\n", int32(pageID))
	h.file.Sync()
}

// Tail returns the last n page ids recorded in the log, most recent
// first, scanning backward from the end of the file so a large log
// never needs to be read in full just to inspect its tail.
func (h *FileHook) Tail(n int) ([]rid.PageID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.file.Stat()
	if err != nil {
		return nil, err
	}
	scanner := backscanner.New(h.file, int(info.Size()))
	ids := make([]rid.PageID, 0, n)
	for len(ids) < n {
		line, _, err := scanner.LineBytes()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		fields := strings.Fields(string(line))
		if len(fields) != 2 || fields[0] != "dirty" {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, rid.PageID(int32(v)))
	}
	return ids, nil
}

// Close closes the backing log file.
func (h *FileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}
