package rhf

import "github.com/pfdb/pfcore/internal/pf"

// Scan walks every non-deleted record of a heap file in page/slot order.
// It holds at most one page fixed at a time, released either as the scan
// advances past it or by End.
type Scan struct {
	m           *Manager
	fd          int
	currentPage int32
	currentSlot int32
	page        []byte
	pageIsFixed bool
}

// StartScan begins a sequential scan of fd. The returned Scan must be
// advanced with Next and eventually released with End.
func (m *Manager) StartScan(fd int) *Scan {
	return &Scan{m: m, fd: fd, currentPage: -1, currentSlot: -1}
}

// Next returns the next non-deleted record and its RID, or ErrEOF once the
// scan is exhausted.
func (s *Scan) Next() ([]byte, RID, *Error) {
	for {
		if !s.pageIsFixed {
			pageNum, page, err := s.m.pf.FixNext(s.fd, s.currentPage)
			if err != nil {
				if err.Code == pf.ErrCodeEOF {
					return nil, RID{}, ErrEOF
				}
				return nil, RID{}, fromPF(err)
			}
			s.currentPage = pageNum
			s.page = page
			s.pageIsFixed = true
			s.currentSlot = 0
		}

		h := readHeader(s.page)
		if s.currentSlot >= h.numSlots {
			if err := s.m.pf.Unfix(s.fd, s.currentPage, false); err != nil {
				return nil, RID{}, fromPF(err)
			}
			s.pageIsFixed = false
			continue
		}

		slotNum := s.currentSlot
		sl := readSlot(s.page, slotNum)
		s.currentSlot++

		if !sl.isFree() {
			out := make([]byte, sl.recordLength)
			copy(out, s.page[sl.recordOffset:sl.recordOffset+sl.recordLength])
			return out, RID{PageNum: s.currentPage, SlotNum: slotNum}, nil
		}
		// Deleted slot: keep scanning this page.
	}
}

// End releases any page still fixed by the scan. Safe to call more than
// once.
func (s *Scan) End() *Error {
	if s.pageIsFixed {
		if err := s.m.pf.Unfix(s.fd, s.currentPage, false); err != nil {
			return fromPF(err)
		}
		s.pageIsFixed = false
	}
	s.fd = -1
	s.page = nil
	return nil
}
