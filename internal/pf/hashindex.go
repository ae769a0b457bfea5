package pf

// pageKey identifies a resident page by (open-file descriptor, page
// number). It is the key of the hash index (component D).
type pageKey struct {
	fd      int
	pageNum int32
}

// hashIndex gives average O(1) lookup of (fd, pageNum) -> frame index. A
// Go map already amortizes to O(1) without pathological collisions for any
// working set up to the frame table's capacity, so there is no need for a
// hand-rolled table here.
type hashIndex struct {
	m map[pageKey]int
}

func newHashIndex(capacityHint int) *hashIndex {
	return &hashIndex{m: make(map[pageKey]int, capacityHint)}
}

func (h *hashIndex) lookup(k pageKey) (int, bool) {
	idx, ok := h.m[k]
	return idx, ok
}

func (h *hashIndex) insert(k pageKey, idx int) *Error {
	if _, exists := h.m[k]; exists {
		return setLast(ErrHashPageExists)
	}
	h.m[k] = idx
	return nil
}

func (h *hashIndex) remove(k pageKey) *Error {
	if _, exists := h.m[k]; !exists {
		return setLast(ErrHashNotFound)
	}
	delete(h.m, k)
	return nil
}
