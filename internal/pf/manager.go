// Package pf implements the paged file manager: a bounded buffer pool with
// pluggable LRU/MRU replacement sitting in front of a per-file free-page
// list, behind the fix/unfix/alloc/dispose contract described in the
// design spec this module was built against.
package pf

import (
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/pfdb/pfcore/pkg/bx"
)

var logDebugPrefix = "pf: "

// Manager is the process-wide PF core: frame table, hash index, replacer,
// open-file table, and stats, gated by a single mutex. The mutex exists to
// make "single owner at a time" safe to share across goroutines that take
// turns, not to support concurrent fixes (see SPEC_FULL §5).
type Manager struct {
	mu sync.Mutex

	disk *Disk

	capacity     int
	fileTableCap int
	strategy     Strategy
	initialized  bool

	frames *frameTable
	hash   *hashIndex
	repl   *replacer
	files  *openFileTable

	stats Stats
}

// NewManager constructs a Manager bound to the given disk adapter. Call
// SetBufferSize/SetStrategy before the first operation if you need
// non-default configuration; Init (explicit or lazy) locks those in.
func NewManager(disk *Disk) *Manager {
	return &Manager{
		disk:         disk,
		capacity:     DefaultCapacity,
		fileTableCap: DefaultFileTableCapacity,
		strategy:     StrategyLRU,
	}
}

func (m *Manager) entry(fd int) (*openFile, *Error) {
	e, ok := m.files.at(fd)
	if !ok {
		return nil, setLast(ErrBadFD)
	}
	return e, nil
}

// --- File management (component F, public ops §6) ---

// CreateFile creates a new, empty PF file on disk.
func (m *Manager) CreateFile(path string) *Error {
	return m.disk.Create(path)
}

// DestroyFile removes a PF file from disk. Fails if the file is open.
func (m *Manager) DestroyFile(path string) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized && m.files.findByPath(path) != -1 {
		return setLast(ErrFileOpen)
	}
	return m.disk.Destroy(path)
}

// OpenFile opens an existing PF file, loading its header and free-list into
// memory, and returns a public file descriptor (open-file table index).
func (m *Manager) OpenFile(path string) (int, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureInit()

	if m.files.findByPath(path) != -1 {
		return 0, setLast(ErrFileOpen)
	}
	fd := m.files.findFree()
	if fd == -1 {
		return 0, setLast(ErrFileTableFull)
	}

	handle, err := m.disk.Open(path)
	if err != nil {
		return 0, err
	}
	hdr, err := m.disk.ReadHeader(handle)
	if err != nil {
		_ = handle.Close()
		return 0, err
	}
	freeSet, err := m.loadFreeSet(handle, hdr)
	if err != nil {
		_ = handle.Close()
		return 0, err
	}

	e := m.files.entries[fd]
	e.path = path
	e.handle = handle
	e.header = hdr
	e.headerDirty = false
	e.inUse = true
	e.freeSet = freeSet
	return fd, nil
}

// CloseFile flushes all dirty frames and the header (if dirty) for fd,
// releases the OS handle, and marks the slot empty. Fails page_fixed if any
// page of this file is still pinned. Every dirty frame is attempted even if
// an earlier one fails to write, and the failures are reported together.
func (m *Manager) CloseFile(fd int) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(fd)
	if err != nil {
		return err
	}

	for _, f := range m.frames.frames {
		if f.FD == fd && f.Pin > 0 {
			return setLast(ErrPageFixed)
		}
	}

	slog.Debug(logDebugPrefix+"CloseFile started", "fd", fd, "path", e.path)

	var flushErrs error
	for _, f := range m.frames.frames {
		if f.FD != fd {
			continue
		}
		if f.Dirty {
			slog.Debug(logDebugPrefix+"flushing dirty frame on close", "fd", fd, "page", f.PageNum)
			if werr := m.disk.WritePage(e.handle, f.PageNum, f.Data); werr != nil {
				flushErrs = multierr.Append(flushErrs, werr)
			} else {
				m.stats.PhysicalWrites++
			}
			f.Dirty = false
		}
		_ = m.hash.remove(pageKey{fd, f.PageNum})
		m.repl.remove(f)
		f.reset()
	}

	if e.headerDirty {
		slog.Debug(logDebugPrefix+"flushing dirty header on close", "fd", fd)
		if werr := m.disk.WriteHeader(e.handle, e.header); werr != nil {
			flushErrs = multierr.Append(flushErrs, werr)
		} else {
			e.headerDirty = false
		}
	}
	if cerr := m.disk.Close(e.handle); cerr != nil {
		flushErrs = multierr.Append(flushErrs, cerr)
	}
	*e = openFile{}

	if flushErrs != nil {
		slog.Error(logDebugPrefix+"CloseFile finished with flush errors", "fd", fd, "err", flushErrs)
		return setLast(newErr(ErrCodeOSError, "pf: close: "+flushErrs.Error()))
	}
	slog.Debug(logDebugPrefix+"CloseFile completed", "fd", fd)
	return nil
}

// loadFreeSet walks the on-disk free-page chain once (at Open time, before
// any frame of this file is resident) and materializes it as a set.
func (m *Manager) loadFreeSet(handle interface {
	ReadAt(p []byte, off int64) (int, error)
}, hdr FileHeader) (map[int32]struct{}, *Error) {
	set := make(map[int32]struct{})
	scratch := make([]byte, PageSize)
	cur := hdr.FirstFree
	seen := 0
	for cur != FreeSentinel {
		if cur < 0 || cur >= hdr.NumPages || seen > int(hdr.NumPages) {
			return nil, setLast(newErr(ErrCodeOSError, "pf: corrupt free-page chain"))
		}
		off := pageOffset(cur)
		if _, err := handle.ReadAt(scratch, off); err != nil {
			return nil, wrapOS(err)
		}
		set[cur] = struct{}{}
		cur = bx.I32At(scratch, 0)
		seen++
	}
	return set, nil
}

// --- Core fix flow (component G) ---

// acquireMiss obtains a frame to host a miss: an empty frame if one
// exists, else a victim selected by the replacer, flushing it first if
// dirty. The returned frame is reset to empty state; the caller installs
// the new page's identity and content into it.
func (m *Manager) acquireMiss() (*Frame, *Error) {
	if idx := m.frames.findEmpty(); idx != -1 {
		slog.Debug(logDebugPrefix+"acquireMiss: using empty frame", "frameIdx", idx)
		return m.frames.at(idx), nil
	}
	slog.Debug(logDebugPrefix + "acquireMiss: buffer full, selecting victim")
	victim := m.repl.selectVictim()
	if victim == nil {
		slog.Debug(logDebugPrefix + "acquireMiss: no unpinned frame available")
		return nil, setLast(ErrNoBuffer)
	}
	slog.Debug(logDebugPrefix+"acquireMiss: selected victim", "victimFD", victim.FD, "victimPage", victim.PageNum, "dirty", victim.Dirty)
	if victim.Dirty {
		slog.Debug(logDebugPrefix+"acquireMiss: flushing dirty victim before evict", "victimFD", victim.FD, "victimPage", victim.PageNum)
		ve, _ := m.files.at(victim.FD)
		if err := m.disk.WritePage(ve.handle, victim.PageNum, victim.Data); err != nil {
			m.repl.insertOnUnfix(victim) // put it back, now at the MRU end; frame still resident and dirty
			return nil, err
		}
		m.stats.PhysicalWrites++
		victim.Dirty = false
	}
	_ = m.hash.remove(pageKey{victim.FD, victim.PageNum})
	victim.reset()
	return victim, nil
}

// fix implements the shared lookup/hit/miss flow of §4.G for a page that
// is expected to already exist on disk (read on miss). Bounds/free-list
// validation is the caller's job; fix itself trusts (fd, pageNum).
func (m *Manager) fix(fd int, pageNum int32) (*Frame, *Error) {
	key := pageKey{fd, pageNum}
	if idx, ok := m.hash.lookup(key); ok {
		f := m.frames.at(idx)
		if f.Pin == 0 {
			m.repl.removeOnFix(f)
		}
		f.Pin++
		m.stats.LogicalReads++
		slog.Debug(logDebugPrefix+"fix hit", "fd", fd, "page", pageNum, "pin", f.Pin)
		return f, nil
	}

	slog.Debug(logDebugPrefix+"fix miss", "fd", fd, "page", pageNum)
	m.stats.LogicalReads++
	f, err := m.acquireMiss()
	if err != nil {
		return nil, err
	}
	e, _ := m.files.at(fd)
	if rerr := m.disk.ReadPage(e.handle, pageNum, f.Data); rerr != nil {
		f.reset()
		return nil, rerr
	}
	m.stats.PhysicalReads++
	f.FD = fd
	f.PageNum = pageNum
	f.Pin = 1
	f.Dirty = false
	if herr := m.hash.insert(key, f.idx); herr != nil {
		return nil, herr
	}
	return f, nil
}

// fixFresh installs a brand-new page (never existed on disk) with
// zero-filled content and no disk read, used only by Alloc when it bumps
// num_pages.
func (m *Manager) fixFresh(fd int, pageNum int32) (*Frame, *Error) {
	m.stats.LogicalReads++
	f, err := m.acquireMiss()
	if err != nil {
		return nil, err
	}
	f.FD = fd
	f.PageNum = pageNum
	f.Pin = 1
	f.Dirty = true
	if herr := m.hash.insert(pageKey{fd, pageNum}, f.idx); herr != nil {
		return nil, herr
	}
	return f, nil
}

// FixThis fixes a specific page by number.
func (m *Manager) FixThis(fd int, pageNum int32) ([]byte, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(fd)
	if err != nil {
		return nil, err
	}
	if pageNum < 0 || pageNum >= e.header.NumPages {
		return nil, setLast(ErrInvalidPage)
	}
	if _, free := e.freeSet[pageNum]; free {
		return nil, setLast(ErrInvalidPage)
	}
	f, ferr := m.fix(fd, pageNum)
	if ferr != nil {
		return nil, ferr
	}
	return f.Data, nil
}

// FixNext fixes the smallest allocated, non-free page with number strictly
// greater than pageNum. Pass -1 for FixFirst's "before the first page"
// starting state. On eof, the caller's state is left untouched.
func (m *Manager) FixNext(fd int, pageNum int32) (int32, []byte, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(fd)
	if err != nil {
		return 0, nil, err
	}
	next := pageNum + 1
	for next < e.header.NumPages {
		if _, free := e.freeSet[next]; !free {
			break
		}
		next++
	}
	if next >= e.header.NumPages {
		return 0, nil, setLast(ErrEOF)
	}
	f, ferr := m.fix(fd, next)
	if ferr != nil {
		return 0, nil, ferr
	}
	return next, f.Data, nil
}

// FixFirst fixes the lowest-numbered allocated, non-free page.
func (m *Manager) FixFirst(fd int) (int32, []byte, *Error) {
	return m.FixNext(fd, -1)
}

// Alloc grabs a page for a new record/caller: recycles the head of the
// free list if non-empty (zeroing its stale free-link content before
// returning it), else extends the file by one page.
func (m *Manager) Alloc(fd int) (int32, []byte, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(fd)
	if err != nil {
		return 0, nil, err
	}

	if e.header.FirstFree != FreeSentinel {
		pageNum := e.header.FirstFree
		slog.Debug(logDebugPrefix+"alloc: recycling free-list head", "fd", fd, "page", pageNum)
		f, ferr := m.fix(fd, pageNum)
		if ferr != nil {
			return 0, nil, ferr
		}
		next := bx.I32At(f.Data, 0)
		e.header.FirstFree = next
		delete(e.freeSet, pageNum)
		e.headerDirty = true
		for i := range f.Data {
			f.Data[i] = 0
		}
		f.Dirty = true
		return pageNum, f.Data, nil
	}

	pageNum := e.header.NumPages
	slog.Debug(logDebugPrefix+"alloc: extending file", "fd", fd, "page", pageNum)
	e.header.NumPages++
	e.headerDirty = true
	f, ferr := m.fixFresh(fd, pageNum)
	if ferr != nil {
		e.header.NumPages--
		return 0, nil, ferr
	}
	return pageNum, f.Data, nil
}

// Dispose threads pageNum onto the head of the free list. The page must be
// externally unfixed; Dispose briefly fixes it itself to write the link.
func (m *Manager) Dispose(fd int, pageNum int32) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(fd)
	if err != nil {
		return err
	}
	if pageNum < 0 || pageNum >= e.header.NumPages {
		return setLast(ErrInvalidPage)
	}
	if _, free := e.freeSet[pageNum]; free {
		return setLast(ErrPageFree)
	}
	if idx, ok := m.hash.lookup(pageKey{fd, pageNum}); ok && m.frames.at(idx).Pin > 0 {
		return setLast(ErrPageFixed)
	}

	slog.Debug(logDebugPrefix+"dispose: freeing page", "fd", fd, "page", pageNum)
	f, ferr := m.fix(fd, pageNum)
	if ferr != nil {
		return ferr
	}
	bx.PutI32At(f.Data, 0, e.header.FirstFree)
	e.header.FirstFree = pageNum
	e.freeSet[pageNum] = struct{}{}
	e.headerDirty = true
	f.Dirty = true

	return m.unfixLocked(fd, pageNum, true)
}

// Unfix decrements pin_count and ORs in the dirty hint; at pin_count 0 the
// frame rejoins the victim list at the MRU end.
func (m *Manager) Unfix(fd int, pageNum int32, dirty bool) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.entry(fd); err != nil {
		return err
	}
	return m.unfixLocked(fd, pageNum, dirty)
}

func (m *Manager) unfixLocked(fd int, pageNum int32, dirty bool) *Error {
	idx, ok := m.hash.lookup(pageKey{fd, pageNum})
	if !ok {
		return setLast(ErrPageNotInBuf)
	}
	f := m.frames.at(idx)
	if f.Pin == 0 {
		return setLast(ErrPageUnfixed)
	}
	f.Pin--
	if dirty {
		f.Dirty = true
	}
	if f.Pin == 0 {
		m.repl.insertOnUnfix(f)
	}
	return nil
}

// MarkDirty sets a fixed page's dirty flag without changing its pin count.
// Per §4.G/§9 it does not touch the victim list directly — the frame isn't
// on it while pinned — but since insert_on_unfix always re-inserts at the
// MRU end, the next Unfix naturally gives it maximal recency.
func (m *Manager) MarkDirty(fd int, pageNum int32) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.entry(fd); err != nil {
		return err
	}
	idx, ok := m.hash.lookup(pageKey{fd, pageNum})
	if !ok {
		return setLast(ErrPageNotInBuf)
	}
	f := m.frames.at(idx)
	if f.Pin == 0 {
		return setLast(ErrPageUnfixed)
	}
	f.Dirty = true
	return nil
}
