package index

import (
	"encoding/binary"

	"github.com/google/btree"
	"github.com/spaolacci/murmur3"

	"bufftree/internal/buffer"
	"bufftree/rid"
)

const (
	maxDirectoryNameLen = 60
	dirSlotSize         = 1 + 1 + maxDirectoryNameLen + 4 // occupied, nameLen, name, rootPageID
)

// DirEntry is one (index name, root page id) mapping.
type DirEntry struct {
	Name string
	Root rid.PageID
}

func lessDirEntry(a, b DirEntry) bool { return a.Name < b.Name }

// Directory is the header page: an open-addressed hash table mapping
// index name to root page id, backed by page rid.HeaderPageID. A
// google/btree mirror is kept in memory so DumpDirectory can walk the
// table in name order without a header-page scan.
type Directory struct {
	frame   *buffer.Frame
	payload []byte
	mirror  *btree.BTreeG[DirEntry]
}

func dirSlotCount(payloadLen int) int {
	return payloadLen / dirSlotSize
}

// OpenDirectory wraps the header page frame and rebuilds the in-memory
// mirror by scanning every slot. An all-zero page needs no formatting:
// every slot already reads as statusEmpty.
func OpenDirectory(frame *buffer.Frame) *Directory {
	d := &Directory{
		frame:   frame,
		payload: frame.Payload(),
		mirror:  btree.NewG(32, lessDirEntry),
	}
	slots := dirSlotCount(len(d.payload))
	for i := 0; i < slots; i++ {
		if name, root, ok := d.readSlot(i); ok {
			d.mirror.ReplaceOrInsert(DirEntry{Name: name, Root: root})
		}
	}
	return d
}

func (d *Directory) slotOffset(i int) int { return i * dirSlotSize }

// Slot status bytes. Deletion writes statusTombstone rather than
// statusEmpty so a probe chain through a deleted slot keeps scanning
// instead of stopping short of a live entry further along the chain.
const (
	statusEmpty     = 0
	statusOccupied  = 1
	statusTombstone = 2
)

func (d *Directory) readSlot(i int) (name string, root rid.PageID, occupied bool) {
	off := d.slotOffset(i)
	if d.payload[off] != statusOccupied {
		return "", 0, false
	}
	nameLen := int(d.payload[off+1])
	nameBytes := d.payload[off+2 : off+2+nameLen]
	rootOff := off + 2 + maxDirectoryNameLen
	rootID := int32(binary.BigEndian.Uint32(d.payload[rootOff : rootOff+4]))
	return string(nameBytes), rid.PageID(rootID), true
}

func (d *Directory) writeSlot(i int, name string, root rid.PageID) {
	if len(name) > maxDirectoryNameLen {
		name = name[:maxDirectoryNameLen]
	}
	off := d.slotOffset(i)
	d.payload[off] = statusOccupied
	d.payload[off+1] = byte(len(name))
	nameBuf := d.payload[off+2 : off+2+maxDirectoryNameLen]
	clear(nameBuf)
	copy(nameBuf, name)
	rootOff := off + 2 + maxDirectoryNameLen
	binary.BigEndian.PutUint32(d.payload[rootOff:rootOff+4], uint32(int32(root)))
	markDirty(d.frame)
}

func (d *Directory) probe(name string) (slot int, found bool) {
	slots := dirSlotCount(len(d.payload))
	if slots == 0 {
		return 0, false
	}
	if len(name) > maxDirectoryNameLen {
		name = name[:maxDirectoryNameLen]
	}
	start := int(murmur3.Sum32([]byte(name))) % slots
	if start < 0 {
		start += slots
	}
	firstFree := -1
	for probed := 0; probed < slots; probed++ {
		i := (start + probed) % slots
		switch d.payload[d.slotOffset(i)] {
		case statusEmpty:
			if firstFree < 0 {
				firstFree = i
			}
			return firstFree, false
		case statusTombstone:
			if firstFree < 0 {
				firstFree = i
			}
		default:
			existingName, _, _ := d.readSlot(i)
			if existingName == name {
				return i, true
			}
		}
	}
	return firstFree, false
}

// GetRootPageID returns the root page id registered for name.
func (d *Directory) GetRootPageID(name string) (rid.PageID, bool) {
	slot, found := d.probe(name)
	if !found {
		return rid.InvalidPageID, false
	}
	_, root, _ := d.readSlot(slot)
	return root, true
}

// InsertRecord adds a brand-new (name, root) mapping. Returns false if
// name already exists or the directory is full.
func (d *Directory) InsertRecord(name string, root rid.PageID) bool {
	if len(name) > maxDirectoryNameLen {
		name = name[:maxDirectoryNameLen]
	}
	slot, found := d.probe(name)
	if found || slot < 0 {
		return false
	}
	d.writeSlot(slot, name, root)
	d.mirror.ReplaceOrInsert(DirEntry{Name: name, Root: root})
	return true
}

// UpdateRecord overwrites the root page id for an existing name.
// Returns false if name is not registered.
func (d *Directory) UpdateRecord(name string, root rid.PageID) bool {
	if len(name) > maxDirectoryNameLen {
		name = name[:maxDirectoryNameLen]
	}
	slot, found := d.probe(name)
	if !found {
		return false
	}
	d.writeSlot(slot, name, root)
	d.mirror.ReplaceOrInsert(DirEntry{Name: name, Root: root})
	return true
}

// DeleteRecord removes name's mapping, if present.
func (d *Directory) DeleteRecord(name string) bool {
	if len(name) > maxDirectoryNameLen {
		name = name[:maxDirectoryNameLen]
	}
	slot, found := d.probe(name)
	if !found {
		return false
	}
	d.payload[d.slotOffset(slot)] = statusTombstone
	markDirty(d.frame)
	d.mirror.Delete(DirEntry{Name: name})
	return true
}

// DumpDirectory returns every registered (name, root) pair in name
// order.
func (d *Directory) DumpDirectory() []DirEntry {
	entries := make([]DirEntry, 0, d.mirror.Len())
	d.mirror.Ascend(func(e DirEntry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}
