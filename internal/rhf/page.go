package rhf

import (
	"github.com/pfdb/pfcore/internal/pf"
	"github.com/pfdb/pfcore/pkg/bx"
)

// Layout of a slotted page:
//
//	+--------------------+--------------------+-----------+------------------+
//	| pageHeader (12B)   | slot array (grows>) | ... free ... | <records (<grow) |
//	+--------------------+--------------------+-----------+------------------+
//
// The slot array grows forward from pageHeaderSize; record bytes grow
// backward from the end of the page. freeSpacePtr always points at the
// start of the lowest-addressed record currently stored.
const (
	pageHeaderSize = 12 // numSlots, freeSpacePtr, nextFreeSlot: 3 x int32
	slotSize       = 8  // recordOffset, recordLength: 2 x int32

	slotFreeLength = -1
	noFreeSlot     = -1
)

type pageHeader struct {
	numSlots     int32
	freeSpacePtr int32
	nextFreeSlot int32
}

func readHeader(page []byte) pageHeader {
	return pageHeader{
		numSlots:     bx.I32At(page, 0),
		freeSpacePtr: bx.I32At(page, 4),
		nextFreeSlot: bx.I32At(page, 8),
	}
}

func (h pageHeader) write(page []byte) {
	bx.PutI32At(page, 0, h.numSlots)
	bx.PutI32At(page, 4, h.freeSpacePtr)
	bx.PutI32At(page, 8, h.nextFreeSlot)
}

type slot struct {
	recordOffset int32
	recordLength int32
}

func slotOffset(slotNum int32) int {
	return pageHeaderSize + int(slotNum)*slotSize
}

func readSlot(page []byte, slotNum int32) slot {
	off := slotOffset(slotNum)
	return slot{
		recordOffset: bx.I32At(page, off),
		recordLength: bx.I32At(page, off+4),
	}
}

func (s slot) write(page []byte, slotNum int32) {
	off := slotOffset(slotNum)
	bx.PutI32At(page, off, s.recordOffset)
	bx.PutI32At(page, off+4, s.recordLength)
}

func (s slot) isFree() bool { return s.recordLength == slotFreeLength }

// initPage formats a freshly-allocated PF page as an empty slotted page.
func initPage(page []byte) {
	h := pageHeader{numSlots: 0, freeSpacePtr: int32(pf.PageSize), nextFreeSlot: noFreeSlot}
	h.write(page)
}

// freeSpace returns the number of unused bytes between the end of the slot
// array and the start of the record heap.
func freeSpace(h pageHeader) int32 {
	return h.freeSpacePtr - int32(pageHeaderSize) - h.numSlots*int32(slotSize)
}

// fits reports whether a record of the given length can be inserted
// without allocating a new page, accounting for a brand-new slot entry
// when the free-slot chain is empty.
func fits(h pageHeader, length int) bool {
	needed := int32(length)
	if h.nextFreeSlot == noFreeSlot {
		needed += int32(slotSize)
	}
	return freeSpace(h) >= needed
}
