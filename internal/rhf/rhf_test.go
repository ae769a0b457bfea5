package rhf

import (
	"fmt"
	"testing"

	"github.com/pfdb/pfcore/internal/pf"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	disk := pf.NewDisk(afero.NewMemMapFs())
	return NewManager(pf.NewManager(disk))
}

func createAndOpen(t *testing.T, m *Manager, path string) int {
	t.Helper()
	require.Nil(t, m.CreateFile(path))
	fd, err := m.OpenFile(path)
	require.Nil(t, err)
	return fd
}

func TestInsertGetRoundTrip(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "h.db")

	rid, err := m.InsertRecord(fd, []byte("hello world"))
	require.Nil(t, err)
	require.Equal(t, int32(0), rid.PageNum)
	require.Equal(t, int32(0), rid.SlotNum)

	got, err := m.GetRecord(fd, rid)
	require.Nil(t, err)
	require.Equal(t, "hello world", string(got))
	require.Nil(t, m.CloseFile(fd))
}

func TestGetInvalidAndDeletedRID(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "h.db")

	rid, err := m.InsertRecord(fd, []byte("x"))
	require.Nil(t, err)

	_, err2 := m.GetRecord(fd, RID{PageNum: rid.PageNum, SlotNum: 7})
	require.NotNil(t, err2)
	require.Equal(t, ErrCodeInvalidRID, err2.Code)

	require.Nil(t, m.DeleteRecord(fd, rid))
	_, err3 := m.GetRecord(fd, rid)
	require.NotNil(t, err3)
	require.Equal(t, ErrCodeNoRecord, err3.Code)

	err4 := m.DeleteRecord(fd, rid)
	require.NotNil(t, err4)
	require.Equal(t, ErrCodeNoRecord, err4.Code)

	require.Nil(t, m.CloseFile(fd))
}

func TestDeletedSlotIsRecycledByNextInsert(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "h.db")

	r1, err := m.InsertRecord(fd, []byte("one"))
	require.Nil(t, err)
	r2, err := m.InsertRecord(fd, []byte("two"))
	require.Nil(t, err)

	require.Nil(t, m.DeleteRecord(fd, r1))

	r3, err := m.InsertRecord(fd, []byte("three"))
	require.Nil(t, err)
	require.Equal(t, r1.SlotNum, r3.SlotNum)

	got2, err := m.GetRecord(fd, r2)
	require.Nil(t, err)
	require.Equal(t, "two", string(got2))
	require.Nil(t, m.CloseFile(fd))
}

func TestScanSkipsDeletedAndCoversAllPages(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "h.db")

	const n = 1000
	rids := make([]RID, n)
	for i := 0; i < n; i++ {
		rid, err := m.InsertRecord(fd, []byte(fmt.Sprintf("record-%04d", i)))
		require.Nil(t, err)
		rids[i] = rid
	}

	for i := 0; i < n; i += 2 {
		require.Nil(t, m.DeleteRecord(fd, rids[i]))
	}

	scan := m.StartScan(fd)
	count := 0
	for {
		rec, _, err := scan.Next()
		if err != nil {
			require.Equal(t, ErrCodeEOF, err.Code)
			break
		}
		count++
		require.Contains(t, string(rec), "record-")
	}
	require.Nil(t, scan.End())
	require.Equal(t, n/2, count)
	require.Nil(t, m.CloseFile(fd))
}

func TestInsertAllocatesNewPageWhenFull(t *testing.T) {
	m := newTestManager(t)
	fd := createAndOpen(t, m, "h.db")

	big := make([]byte, 3000)
	r1, err := m.InsertRecord(fd, big)
	require.Nil(t, err)
	r2, err := m.InsertRecord(fd, big)
	require.Nil(t, err)

	require.NotEqual(t, r1.PageNum, r2.PageNum)
	require.Nil(t, m.CloseFile(fd))
}
