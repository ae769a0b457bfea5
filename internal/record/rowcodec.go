package record

import (
	"bytes"
	"errors"
	"math"

	"github.com/pfdb/pfcore/pkg/bx"
)

var (
	ErrSchemaMismatch  = errors.New("rowcodec: schema/values mismatch")
	ErrBadBuffer       = errors.New("rowcodec: buffer underflow/overflow")
	ErrVarTooLong      = errors.New("rowcodec: variable length exceeds u16")
	ErrUnsupportedType = errors.New("rowcodec: unsupported type")
)

// Codec packs and unpacks rows of one Schema into the flat byte layout a
// heap file record stores:
//
//	[nullmap: ceil(N/8) bytes, bit=1 => NULL] [field0] [field1] ...
//
// Fixed-width fields are stored inline; TEXT/BYTES are length-prefixed with
// a little-endian u16. A Codec is bound to a single Schema so a caller that
// works a whole table through RHF builds one Codec and reuses it per row,
// rather than passing the Schema to every call.
type Codec struct {
	schema Schema
}

// NewCodec returns a Codec for s.
func NewCodec(s Schema) *Codec {
	return &Codec{schema: s}
}

// Schema returns the Schema this Codec was built for.
func (c *Codec) Schema() Schema {
	return c.schema
}

// Encode packs values positionally against the bound Schema.
func (c *Codec) Encode(values []any) ([]byte, error) {
	cols := c.schema.Cols
	if len(values) != len(cols) {
		return nil, ErrSchemaMismatch
	}

	nullmap := make([]byte, (len(cols)+7)/8)
	var body bytes.Buffer

	for i, col := range cols {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, ErrSchemaMismatch
			}
			nullmap[i/8] |= 1 << (uint(i) & 7)
			continue
		}
		if err := appendField(&body, col, v); err != nil {
			return nil, err
		}
	}

	return append(nullmap, body.Bytes()...), nil
}

func appendField(body *bytes.Buffer, col Column, v any) error {
	switch col.Type {
	case ColInt32:
		x, ok := asInt32(v)
		if !ok {
			return ErrSchemaMismatch
		}
		var b [4]byte
		bx.PutU32(b[:], uint32(x))
		body.Write(b[:])

	case ColInt64:
		x, ok := asInt64(v)
		if !ok {
			return ErrSchemaMismatch
		}
		var b [8]byte
		bx.PutU64(b[:], uint64(x))
		body.Write(b[:])

	case ColBool:
		x, ok := v.(bool)
		if !ok {
			return ErrSchemaMismatch
		}
		if x {
			body.WriteByte(1)
		} else {
			body.WriteByte(0)
		}

	case ColFloat64:
		x, ok := asFloat64(v)
		if !ok {
			return ErrSchemaMismatch
		}
		var b [8]byte
		bx.PutU64(b[:], math.Float64bits(x))
		body.Write(b[:])

	case ColText:
		str, ok := v.(string)
		if !ok {
			return ErrSchemaMismatch
		}
		return appendVarLen(body, []byte(str))

	case ColBytes:
		bs, ok := v.([]byte)
		if !ok {
			return ErrSchemaMismatch
		}
		return appendVarLen(body, bs)

	default:
		return ErrUnsupportedType
	}
	return nil
}

func appendVarLen(body *bytes.Buffer, bs []byte) error {
	if len(bs) > math.MaxUint16 {
		return ErrVarTooLong
	}
	var l [2]byte
	bx.PutU16(l[:], uint16(len(bs)))
	body.Write(l[:])
	body.Write(bs)
	return nil
}

// Decode unpacks a buffer previously produced by Encode back into a
// positional slice of Go values.
func (c *Codec) Decode(buf []byte) ([]any, error) {
	cols := c.schema.Cols
	nbBytes := (len(cols) + 7) / 8
	if len(buf) < nbBytes {
		return nil, ErrBadBuffer
	}
	nullmap := buf[:nbBytes]
	r := &fieldReader{buf: buf, pos: nbBytes}

	out := make([]any, len(cols))
	for i, col := range cols {
		if (nullmap[i/8]>>(uint(i)&7))&1 == 1 {
			out[i] = nil
			continue
		}
		v, err := r.read(col)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fieldReader struct {
	buf []byte
	pos int
}

func (r *fieldReader) read(col Column) (any, error) {
	switch col.Type {
	case ColInt32:
		if r.pos+4 > len(r.buf) {
			return nil, ErrBadBuffer
		}
		v := int32(bx.U32(r.buf[r.pos : r.pos+4]))
		r.pos += 4
		return v, nil

	case ColInt64:
		if r.pos+8 > len(r.buf) {
			return nil, ErrBadBuffer
		}
		v := int64(bx.U64(r.buf[r.pos : r.pos+8]))
		r.pos += 8
		return v, nil

	case ColBool:
		if r.pos+1 > len(r.buf) {
			return nil, ErrBadBuffer
		}
		v := r.buf[r.pos] != 0
		r.pos++
		return v, nil

	case ColFloat64:
		if r.pos+8 > len(r.buf) {
			return nil, ErrBadBuffer
		}
		v := math.Float64frombits(bx.U64(r.buf[r.pos : r.pos+8]))
		r.pos += 8
		return v, nil

	case ColText:
		bs, err := r.readVarLen()
		if err != nil {
			return nil, err
		}
		return string(bs), nil

	case ColBytes:
		bs, err := r.readVarLen()
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(bs))
		copy(cp, bs)
		return cp, nil

	default:
		return nil, ErrUnsupportedType
	}
}

func (r *fieldReader) readVarLen() ([]byte, error) {
	if r.pos+2 > len(r.buf) {
		return nil, ErrBadBuffer
	}
	l := int(bx.U16(r.buf[r.pos : r.pos+2]))
	r.pos += 2
	if r.pos+l > len(r.buf) {
		return nil, ErrBadBuffer
	}
	bs := r.buf[r.pos : r.pos+l]
	r.pos += l
	return bs, nil
}

func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
