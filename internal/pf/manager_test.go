package pf

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	disk := NewDisk(afero.NewMemMapFs())
	return NewManager(disk)
}

func createAndOpen(t *testing.T, m *Manager, path string) int {
	t.Helper()
	require.Nil(t, m.CreateFile(path))
	fd, err := m.OpenFile(path)
	require.Nil(t, err)
	return fd
}

func TestCreateOpenCloseFile(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")
	require.Nil(t, m.CloseFile(fd))
}

func TestDestroyFailsWhileOpen(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")
	err := m.DestroyFile("a.db")
	require.NotNil(t, err)
	require.Equal(t, ErrCodeFileOpen, err.Code)
	require.Nil(t, m.CloseFile(fd))
	require.Nil(t, m.DestroyFile("a.db"))
}

func TestAllocWriteReadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")

	pageNum, buf, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Equal(t, int32(0), pageNum)
	copy(buf, []byte("hello, page 0"))
	require.Nil(t, m.Unfix(fd, pageNum, true))

	got, err := m.FixThis(fd, pageNum)
	require.Nil(t, err)
	require.Equal(t, byte('h'), got[0])
	require.Nil(t, m.Unfix(fd, pageNum, false))

	require.Nil(t, m.CloseFile(fd))

	fd2, err := m.OpenFile("a.db")
	require.Nil(t, err)
	got2, err := m.FixThis(fd2, 0)
	require.Nil(t, err)
	require.Equal(t, byte('h'), got2[0])
	require.Nil(t, m.Unfix(fd2, 0, false))
	require.Nil(t, m.CloseFile(fd2))
}

func TestDisposeAndReallocRecyclesPage(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")

	p0, buf0, err := m.Alloc(fd)
	require.Nil(t, err)
	copy(buf0, []byte("page0"))
	require.Nil(t, m.Unfix(fd, p0, true))

	p1, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p1, false))

	require.Nil(t, m.Dispose(fd, p0))

	_, err = m.FixThis(fd, p0)
	require.NotNil(t, err)
	require.Equal(t, ErrCodeInvalidPage, err.Code)

	p2, buf2, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Equal(t, p0, p2)
	for _, b := range buf2 {
		require.Equal(t, byte(0), b)
	}
	require.Nil(t, m.Unfix(fd, p2, false))
	require.Nil(t, m.CloseFile(fd))
}

func TestFixFixedPagePreventsClose(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")
	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)

	err2 := m.CloseFile(fd)
	require.NotNil(t, err2)
	require.Equal(t, ErrCodePageFixed, err2.Code)

	require.Nil(t, m.Unfix(fd, p0, false))
	require.Nil(t, m.CloseFile(fd))
}

func TestUnfixUnfixedPageErrors(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")
	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p0, false))

	err2 := m.Unfix(fd, p0, false)
	require.NotNil(t, err2)
	require.Equal(t, ErrCodePageUnfixed, err2.Code)
	require.Nil(t, m.CloseFile(fd))
}

func TestFixNextScansInOrderSkippingFree(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")

	var pages []int32
	for i := 0; i < 5; i++ {
		p, _, err := m.Alloc(fd)
		require.Nil(t, err)
		pages = append(pages, p)
		require.Nil(t, m.Unfix(fd, p, false))
	}
	require.Nil(t, m.Dispose(fd, pages[2]))

	var seen []int32
	pn, _, err := m.FixFirst(fd)
	for err == nil {
		seen = append(seen, pn)
		require.Nil(t, m.Unfix(fd, pn, false))
		pn, _, err = m.FixNext(fd, pn)
	}
	require.Equal(t, ErrCodeEOF, err.Code)
	require.Equal(t, []int32{0, 1, 3, 4}, seen)
	require.Nil(t, m.CloseFile(fd))
}

func TestLRUReplacementEvictsTail(t *testing.T) {
	m := newTestManager(t)
	m.SetBufferSize(2)
	m.SetStrategy(StrategyLRU)
	fd := createAndOpen(t, m, "a.db")

	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p0, false))
	p1, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p1, false))

	// Touch p0 again so p1 becomes the LRU (tail) candidate.
	_, err = m.FixThis(fd, p0)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p0, false))

	p2, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p2, false))

	// p1 should have been evicted; p0 and p2 remain resident without a
	// physical re-read, p1 requires one.
	stats := m.GetStats()
	before := stats.PhysicalReads

	_, err = m.FixThis(fd, p1)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p1, false))

	after := m.GetStats().PhysicalReads
	require.Greater(t, after, before)
	require.Nil(t, m.CloseFile(fd))
}

func TestMRUReplacementEvictsHead(t *testing.T) {
	m := newTestManager(t)
	m.SetBufferSize(2)
	m.SetStrategy(StrategyMRU)
	fd := createAndOpen(t, m, "a.db")

	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p0, false))
	p1, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p1, false))

	// p1 is MRU (most recently unfixed); allocating p2 should evict it.
	p2, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p2, false))

	before := m.GetStats().PhysicalReads
	_, err = m.FixThis(fd, p1)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p1, false))
	after := m.GetStats().PhysicalReads
	require.Greater(t, after, before)
	require.Nil(t, m.CloseFile(fd))
}

func TestNoBufferWhenAllFramesPinned(t *testing.T) {
	m := newTestManager(t)
	m.SetBufferSize(2)
	fd := createAndOpen(t, m, "a.db")

	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)
	p1, _, err := m.Alloc(fd)
	require.Nil(t, err)

	_, _, err3 := m.Alloc(fd)
	require.NotNil(t, err3)
	require.Equal(t, ErrCodeNoBuffer, err3.Code)

	require.Nil(t, m.Unfix(fd, p0, false))
	require.Nil(t, m.Unfix(fd, p1, false))
	require.Nil(t, m.CloseFile(fd))
}

func TestSetBufferSizeNoopAfterInit(t *testing.T) {
	m := newTestManager(t)
	m.Init()
	m.SetBufferSize(99)
	require.NotEqual(t, 99, m.capacity)
}

func TestSetStrategyAllowedAfterInit(t *testing.T) {
	m := newTestManager(t)
	m.Init()
	m.SetStrategy(StrategyMRU)
	require.Equal(t, StrategyMRU, m.strategy)
}

func TestStatsResetAndSnapshot(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "a.db")
	p0, _, err := m.Alloc(fd)
	require.Nil(t, err)
	require.Nil(t, m.Unfix(fd, p0, false))
	require.Greater(t, m.GetStats().LogicalReads, int64(0))
	m.ResetStats()
	require.Equal(t, Stats{}, m.GetStats())
	require.Nil(t, m.CloseFile(fd))
}
