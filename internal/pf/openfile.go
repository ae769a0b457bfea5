package pf

import "github.com/spf13/afero"

// DefaultFileTableCapacity is used when the caller never overrides it.
const DefaultFileTableCapacity = 32

// openFile is one entry of the open-file table (component F): the on-disk
// path, OS handle, in-memory header, and whether that header needs to be
// flushed.
type openFile struct {
	path        string
	handle      afero.File
	header      FileHeader
	headerDirty bool
	inUse       bool

	// freeSet mirrors the on-disk free-page chain as a set, rebuilt by
	// walking that chain once at Open. It lets fix_next and the
	// invalid-page checks test free-list membership in O(1) instead of
	// re-walking (possibly stale, if resident pages have unflushed free
	// links) disk chains on every call.
	freeSet map[int32]struct{}
}

type openFileTable struct {
	entries []*openFile
}

func newOpenFileTable(capacity int) *openFileTable {
	t := &openFileTable{entries: make([]*openFile, capacity)}
	for i := range t.entries {
		t.entries[i] = &openFile{}
	}
	return t
}

func (t *openFileTable) findByPath(path string) int {
	for i, e := range t.entries {
		if e.inUse && e.path == path {
			return i
		}
	}
	return -1
}

func (t *openFileTable) findFree() int {
	for i, e := range t.entries {
		if !e.inUse {
			return i
		}
	}
	return -1
}

func (t *openFileTable) at(fd int) (*openFile, bool) {
	if fd < 0 || fd >= len(t.entries) || !t.entries[fd].inUse {
		return nil, false
	}
	return t.entries[fd], true
}
