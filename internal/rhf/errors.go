package rhf

import (
	"fmt"

	"github.com/pfdb/pfcore/internal/pf"
)

// Code is one of the stable, negative RHF error codes, continuing the
// numbering where the underlying paged-file codes leave off.
type Code int

const (
	OK Code = 0

	ErrCodeEOF        Code = -20
	ErrCodePageFull   Code = -21
	ErrCodeInvalidRID Code = -22
	ErrCodeNoRecord   Code = -23
	ErrCodeNoMemory   Code = -24
)

// Error is the error type returned by every RHF operation.
type Error struct {
	Code Code
	Msg  string

	// Wrapped holds the underlying paged-file error when this Error was
	// produced by propagating a *pf.Error verbatim (Unwrap lets
	// errors.As reach it).
	Wrapped error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Wrapped }

func newErr(c Code, msg string) *Error { return &Error{Code: c, Msg: msg} }

// fromPF lifts a *pf.Error into the RHF error type, preserving it as the
// wrapped cause so errors.As(&pf.Error{}) still works for callers that care
// about the lower layer.
func fromPF(e *pf.Error) *Error {
	if e == nil {
		return nil
	}
	return &Error{Code: Code(e.Code), Msg: e.Msg, Wrapped: e}
}

var (
	ErrEOF        = newErr(ErrCodeEOF, "rhf: end of file or scan")
	ErrPageFull   = newErr(ErrCodePageFull, "rhf: no space on page")
	ErrInvalidRID = newErr(ErrCodeInvalidRID, "rhf: invalid record id")
	ErrNoRecord   = newErr(ErrCodeNoRecord, "rhf: record does not exist")
	ErrNoMemory   = newErr(ErrCodeNoMemory, "rhf: out of memory")
)

// PrintError renders err with a caller-supplied prefix, falling back to the
// underlying paged-file printer when err wraps a *pf.Error, mirroring the
// original two-layer RHF_PrintError/PF_PrintError split.
func PrintError(prefix string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: no error", prefix)
	}
	if re, ok := err.(*Error); ok && re.Wrapped != nil {
		return pf.PrintError(prefix)
	}
	return fmt.Sprintf("%s: %s", prefix, err.Error())
}
