package record

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeTestSchema() Schema {
	return Schema{
		Cols: []Column{
			{Name: "id32", Type: ColInt32, Nullable: false},
			{Name: "id64", Type: ColInt64, Nullable: false},
			{Name: "active", Type: ColBool, Nullable: false},
			{Name: "score", Type: ColFloat64, Nullable: false},
			{Name: "name", Type: ColText, Nullable: true},
			{Name: "blob", Type: ColBytes, Nullable: true},
		},
	}
}

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	codec := NewCodec(makeTestSchema())

	values := []any{
		int32(42),
		int64(123456789),
		true,
		3.14159,
		"hello",
		[]byte{0x01, 0x02, 0x03},
	}

	buf, err := codec.Encode(values)
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	row, err := codec.Decode(buf)
	require.NoError(t, err)

	require.Len(t, row, len(values))
	require.Equal(t, int32(42), row[0].(int32))
	require.Equal(t, int64(123456789), row[1].(int64))
	require.True(t, row[2].(bool))
	require.InDelta(t, 3.14159, row[3].(float64), 1e-9)
	require.Equal(t, "hello", row[4].(string))
	require.Equal(t, []byte{0x01, 0x02, 0x03}, row[5].([]byte))
}

func TestEncodeDecodeRowNullable(t *testing.T) {
	codec := NewCodec(makeTestSchema())

	values := []any{int32(1), int64(2), false, 1.5, nil, nil}

	buf, err := codec.Encode(values)
	require.NoError(t, err)

	row, err := codec.Decode(buf)
	require.NoError(t, err)

	require.Nil(t, row[4])
	require.Nil(t, row[5])
}

func TestEncodeRowSchemaMismatch(t *testing.T) {
	codec := NewCodec(makeTestSchema())

	t.Run("wrong number of values", func(t *testing.T) {
		_, err := codec.Encode([]any{1, 2, 3})
		require.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("non-nullable column is nil", func(t *testing.T) {
		values := []any{nil, int64(1), true, 1.0, "ok", []byte("abcd")}
		_, err := codec.Encode(values)
		require.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("wrong type for column", func(t *testing.T) {
		values := []any{"not-int32", int64(1), true, 1.0, "ok", []byte("abcd")}
		_, err := codec.Encode(values)
		require.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

func TestEncodeRowVarTooLong(t *testing.T) {
	codec := NewCodec(Schema{Cols: []Column{{Name: "name", Type: ColText, Nullable: false}}})
	longStr := strings.Repeat("a", math.MaxUint16+1)

	_, err := codec.Encode([]any{longStr})
	require.ErrorIs(t, err, ErrVarTooLong)
}

func TestDecodeRowBadBuffer(t *testing.T) {
	codec := NewCodec(makeTestSchema())

	values := []any{int32(42), int64(99), true, 2.71828, "test", []byte{0xAA, 0xBB}}

	buf, err := codec.Encode(values)
	require.NoError(t, err)

	t.Run("truncated buffer", func(t *testing.T) {
		truncated := buf[:len(buf)-3]
		_, err := codec.Decode(truncated)
		require.ErrorIs(t, err, ErrBadBuffer)
	})

	t.Run("too short for nullmap", func(t *testing.T) {
		_, err := codec.Decode([]byte{})
		require.ErrorIs(t, err, ErrBadBuffer)
	})
}

func TestNewCodecSchemaAccessor(t *testing.T) {
	schema := makeTestSchema()
	codec := NewCodec(schema)
	require.Equal(t, schema.NumCols(), codec.Schema().NumCols())
}
