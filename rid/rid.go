// Package rid defines the page and record identifiers shared across the
// buffer pool and the B+tree.
package rid

// PageID identifies a page, either on disk or as a frame's resident
// page. InvalidPageID marks the absence of a page (an empty tree's
// root, a leaf's missing right sibling); HeaderPageID is the one page
// every index shares to persist its root page id.
type PageID int32

const (
	// InvalidPageID is never a valid on-disk page number.
	InvalidPageID PageID = -1
	// HeaderPageID is the dedicated page holding the index-name to
	// root-page-id directory.
	HeaderPageID PageID = 0
)

// RID (record id) identifies a tuple's location: the page holding it,
// and its slot within that page. The B+tree stores RIDs as leaf values;
// the record/tuple layer that interprets them is out of scope here.
type RID struct {
	PageID PageID
	Slot   uint32
}

// Invalid reports whether r's page id is InvalidPageID. The zero-value
// RID (page 0, slot 0) is not Invalid.
func (r RID) Invalid() bool {
	return r.PageID == InvalidPageID
}
