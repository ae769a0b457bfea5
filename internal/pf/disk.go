package pf

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/spf13/afero"
)

// PageSize is the fixed unit of I/O between the buffer pool and disk.
const PageSize = 4096

// HeaderSize is the number of bytes reserved at the start of every PF file
// for the persistent file header, padded well past the two int32 fields it
// actually holds so future header growth never collides with page 0.
const HeaderSize = 64

// FileHeader is the per-file persistent header: the page count and the
// head of the free-page list. FreeSentinel marks an empty free list.
type FileHeader struct {
	NumPages  int32
	FirstFree int32
}

const FreeSentinel int32 = -1

func encodeHeader(h FileHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.NumPages))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.FirstFree))
	return buf
}

func decodeHeader(buf []byte) FileHeader {
	return FileHeader{
		NumPages:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		FirstFree: int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

// Disk is the I/O adapter between PF and the host filesystem. It is backed
// by an afero.Fs so callers can substitute afero.NewMemMapFs() in tests
// without touching real disk.
type Disk struct {
	fs afero.Fs
}

// NewDisk wraps an afero.Fs as a PF disk adapter. Pass afero.NewOsFs() for
// production use and afero.NewMemMapFs() in tests.
func NewDisk(fs afero.Fs) *Disk {
	return &Disk{fs: fs}
}

// wrapOS maps a raw filesystem error onto the PF error taxonomy.
func wrapOS(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return setLast(newErr(ErrCodeOSError, "pf: "+err.Error()))
	}
	return setLast(newErr(ErrCodeOSError, "pf: "+err.Error()))
}

// Create makes a new, empty PF file at path with a zeroed header
// (num_pages=0, first_free=sentinel). It fails if the file already exists.
func (d *Disk) Create(path string) *Error {
	if exists, _ := afero.Exists(d.fs, path); exists {
		return setLast(newErr(ErrCodeOSError, "pf: file already exists: "+path))
	}
	f, err := d.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return wrapOS(err)
	}
	defer func() { _ = f.Close() }()

	hdr := FileHeader{NumPages: 0, FirstFree: FreeSentinel}
	if _, err := f.WriteAt(encodeHeader(hdr), 0); err != nil {
		return wrapOS(err)
	}
	return nil
}

// Destroy removes a PF file from disk.
func (d *Disk) Destroy(path string) *Error {
	if err := d.fs.Remove(path); err != nil {
		return wrapOS(err)
	}
	return nil
}

// Open opens an existing PF file for read/write.
func (d *Disk) Open(path string) (afero.File, *Error) {
	f, err := d.fs.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapOS(err)
	}
	return f, nil
}

// Close closes a file handle previously returned by Open.
func (d *Disk) Close(f afero.File) *Error {
	if err := f.Close(); err != nil {
		return wrapOS(err)
	}
	return nil
}

// ReadHeader reads the file header from offset 0.
func (d *Disk) ReadHeader(f afero.File) (FileHeader, *Error) {
	buf := make([]byte, HeaderSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return FileHeader{}, wrapOS(err)
	}
	if n < 8 {
		return FileHeader{}, setLast(ErrHeaderRead)
	}
	return decodeHeader(buf), nil
}

// WriteHeader persists the file header at offset 0.
func (d *Disk) WriteHeader(f afero.File, h FileHeader) *Error {
	buf := encodeHeader(h)
	n, err := f.WriteAt(buf, 0)
	if err != nil {
		return wrapOS(err)
	}
	if n != len(buf) {
		return setLast(ErrHeaderWrite)
	}
	return nil
}

// pageOffset maps a page number to its byte offset within the file.
func pageOffset(pageNum int32) int64 {
	return int64(HeaderSize) + int64(pageNum)*int64(PageSize)
}

// ReadPage reads exactly PageSize bytes for pageNum into buf.
func (d *Disk) ReadPage(f afero.File, pageNum int32, buf []byte) *Error {
	if len(buf) != PageSize {
		return setLast(newErr(ErrCodeOSError, "pf: page buffer must be PageSize bytes"))
	}
	n, err := f.ReadAt(buf, pageOffset(pageNum))
	if err != nil && err != io.EOF {
		return wrapOS(err)
	}
	if n != PageSize {
		return setLast(ErrShortRead)
	}
	return nil
}

// WritePage writes exactly PageSize bytes from buf at pageNum's offset.
func (d *Disk) WritePage(f afero.File, pageNum int32, buf []byte) *Error {
	if len(buf) != PageSize {
		return setLast(newErr(ErrCodeOSError, "pf: page buffer must be PageSize bytes"))
	}
	n, err := f.WriteAt(buf, pageOffset(pageNum))
	if err != nil {
		return wrapOS(err)
	}
	if n != PageSize {
		return setLast(ErrShortWrite)
	}
	return nil
}
