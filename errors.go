package bufftree

import (
	"errors"

	"bufftree/internal/buffer"
	"bufftree/internal/index"
)

// Sentinel errors a caller can compare against with errors.Is.
// ErrOutOfRange is the one used as a panic value instead of a return
// value. Node invariants (size bounds, parent links, pin balance) are
// not checked at run time, so a violation of one neither panics nor
// returns an error.
var (
	// ErrNotFound is returned by Remove when key isn't present. Get
	// reports a missing key through its bool result instead.
	ErrNotFound = index.ErrNotFound
	// ErrDuplicateKey is not returned by any operation: Insert reports
	// an already-present key as (false, nil).
	ErrDuplicateKey = errors.New("bufftree: key already exists")
	// ErrPoolExhausted is returned when every buffer frame is pinned and
	// none can be evicted to satisfy a page fetch.
	ErrPoolExhausted = buffer.ErrPoolExhausted
	// ErrCorrupt is returned when a page fails checksum verification on
	// read.
	ErrCorrupt = buffer.ErrCorrupt
	// ErrUnderUse is returned by Close when an iterator obtained from
	// the tree has not been closed yet.
	ErrUnderUse = errors.New("bufftree: close called while an iterator is still open")
	// ErrOutOfRange is the panic value for dereferencing an Iterator
	// past its last entry.
	ErrOutOfRange = index.ErrOutOfRange
)
