// Package rhf implements the record/heap file layer: fixed-free-form
// records stored in slotted pages on top of a paged file manager. It
// provides insert/get/delete by record id plus an unordered sequential
// scan, with no record compaction on delete (a tombstone slot is threaded
// onto a per-page free-slot chain instead).
package rhf

import (
	"github.com/pfdb/pfcore/internal/pf"
)

// RID identifies a record by the page and slot that hold it.
type RID struct {
	PageNum int32
	SlotNum int32
}

// Manager is a heap file layer bound to a single paged-file Manager. A
// program typically owns one Manager per (file content) data model, the
// same way the paged file layer owns one Manager per process.
type Manager struct {
	pf *pf.Manager
}

// NewManager wraps a paged-file manager as a heap file layer.
func NewManager(pfm *pf.Manager) *Manager {
	return &Manager{pf: pfm}
}

// CreateFile creates a new, empty heap file. Heap files are paged files
// with no special header content of their own; page 0 onward are all
// ordinary slotted pages, formatted lazily as they're allocated.
func (m *Manager) CreateFile(path string) *Error {
	if err := m.pf.CreateFile(path); err != nil {
		return fromPF(err)
	}
	return nil
}

// DestroyFile removes a heap file from disk.
func (m *Manager) DestroyFile(path string) *Error {
	if err := m.pf.DestroyFile(path); err != nil {
		return fromPF(err)
	}
	return nil
}

// OpenFile opens an existing heap file, returning a descriptor to pass to
// every other Manager method.
func (m *Manager) OpenFile(path string) (int, *Error) {
	fd, err := m.pf.OpenFile(path)
	if err != nil {
		return 0, fromPF(err)
	}
	return fd, nil
}

// CloseFile closes a heap file previously opened with OpenFile.
func (m *Manager) CloseFile(fd int) *Error {
	if err := m.pf.CloseFile(fd); err != nil {
		return fromPF(err)
	}
	return nil
}

// getPageWithSpace scans the file for a page with enough free space to
// host a record of the given length, allocating and formatting a new page
// if none qualifies. The returned page is left fixed; the caller must
// unfix it.
func (m *Manager) getPageWithSpace(fd int, length int) (int32, []byte, *Error) {
	pageNum, page, err := m.pf.FixFirst(fd)
	for err == nil {
		h := readHeader(page)
		if fits(h, length) {
			return pageNum, page, nil
		}
		if uerr := m.pf.Unfix(fd, pageNum, false); uerr != nil {
			return 0, nil, fromPF(uerr)
		}
		pageNum, page, err = m.pf.FixNext(fd, pageNum)
	}
	if err.Code != pf.ErrCodeEOF {
		return 0, nil, fromPF(err)
	}

	newPageNum, newPage, aerr := m.pf.Alloc(fd)
	if aerr != nil {
		return 0, nil, fromPF(aerr)
	}
	initPage(newPage)
	return newPageNum, newPage, nil
}

// InsertRecord stores record on a page with sufficient space (allocating
// one if necessary) and returns its RID.
func (m *Manager) InsertRecord(fd int, record []byte) (RID, *Error) {
	pageNum, page, err := m.getPageWithSpace(fd, len(record))
	if err != nil {
		return RID{}, err
	}

	h := readHeader(page)
	var slotNum int32
	if h.nextFreeSlot != noFreeSlot {
		slotNum = h.nextFreeSlot
		s := readSlot(page, slotNum)
		h.nextFreeSlot = s.recordOffset
	} else {
		slotNum = h.numSlots
		h.numSlots++
	}

	h.freeSpacePtr -= int32(len(record))
	s := slot{recordOffset: h.freeSpacePtr, recordLength: int32(len(record))}
	copy(page[s.recordOffset:s.recordOffset+s.recordLength], record)
	s.write(page, slotNum)
	h.write(page)

	if uerr := m.pf.Unfix(fd, pageNum, true); uerr != nil {
		return RID{}, fromPF(uerr)
	}
	return RID{PageNum: pageNum, SlotNum: slotNum}, nil
}

// GetRecord copies the record identified by rid into a freshly-allocated
// slice and returns it.
func (m *Manager) GetRecord(fd int, rid RID) ([]byte, *Error) {
	page, err := m.pf.FixThis(fd, rid.PageNum)
	if err != nil {
		return nil, fromPF(err)
	}

	h := readHeader(page)
	if rid.SlotNum < 0 || rid.SlotNum >= h.numSlots {
		_ = m.pf.Unfix(fd, rid.PageNum, false)
		return nil, ErrInvalidRID
	}
	s := readSlot(page, rid.SlotNum)
	if s.isFree() {
		_ = m.pf.Unfix(fd, rid.PageNum, false)
		return nil, ErrNoRecord
	}

	out := make([]byte, s.recordLength)
	copy(out, page[s.recordOffset:s.recordOffset+s.recordLength])

	if uerr := m.pf.Unfix(fd, rid.PageNum, false); uerr != nil {
		return nil, fromPF(uerr)
	}
	return out, nil
}

// DeleteRecord removes the record identified by rid, threading its slot
// onto the page's free-slot chain. Record bytes are not reclaimed or
// compacted; only the slot is recycled by a later insert.
func (m *Manager) DeleteRecord(fd int, rid RID) *Error {
	page, err := m.pf.FixThis(fd, rid.PageNum)
	if err != nil {
		return fromPF(err)
	}

	h := readHeader(page)
	if rid.SlotNum < 0 || rid.SlotNum >= h.numSlots {
		_ = m.pf.Unfix(fd, rid.PageNum, false)
		return ErrInvalidRID
	}
	s := readSlot(page, rid.SlotNum)
	if s.isFree() {
		_ = m.pf.Unfix(fd, rid.PageNum, false)
		return ErrNoRecord
	}

	s.recordOffset = h.nextFreeSlot
	s.recordLength = slotFreeLength
	s.write(page, rid.SlotNum)
	h.nextFreeSlot = rid.SlotNum
	h.write(page)

	if uerr := m.pf.Unfix(fd, rid.PageNum, true); uerr != nil {
		return fromPF(uerr)
	}
	return nil
}
