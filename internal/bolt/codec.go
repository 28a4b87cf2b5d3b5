package bolt

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Bucket key layout: cell keys are 'c' + 8-byte row + 4-byte column, and
// counterKey holds the next row index. Cell values use the typed encodings
// below; an absent cell key means the slot is unset or null.
var counterKey = []byte("n")

func cellKey(row types.RowIndex, column int) []byte {
	key := make([]byte, 13)
	key[0] = 'c'
	binary.BigEndian.PutUint64(key[1:9], uint64(row))
	binary.BigEndian.PutUint32(key[9:13], uint32(column))
	return key
}

func encodeRowIndex(i types.RowIndex) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i))
	return buf
}

func decodeRowIndex(b []byte) types.RowIndex {
	return types.RowIndex(binary.BigEndian.Uint64(b))
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(b []byte) bool {
	return len(b) == 1 && b[0] == 1
}

// encodeInt XORs with (1 << 63) so signed values sort lexicographically:
// negative numbers become 0..., positive numbers become 1...
func encodeInt(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

func decodeInt(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// encodeDouble stores IEEE 754 bits adjusted for lexicographic sorting:
// positive values get the sign bit flipped, negative values get all bits
// flipped.
func encodeDouble(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func decodeDouble(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// encodeTime uses RFC3339Nano, which is lexicographically sortable and
// human-readable.
func encodeTime(v time.Time) []byte {
	return v.UTC().AppendFormat(make([]byte, 0, 35), time.RFC3339Nano)
}

func decodeTime(b []byte) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, string(b))
}

// encodeList concatenates 8-byte row indexes in order.
func encodeList(targets []types.RowIndex) []byte {
	buf := make([]byte, 0, 8*len(targets))
	for _, t := range targets {
		buf = append(buf, encodeRowIndex(t)...)
	}
	return buf
}

func decodeList(b []byte) ([]types.RowIndex, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("malformed list value of %d bytes", len(b))
	}
	targets := make([]types.RowIndex, 0, len(b)/8)
	for i := 0; i < len(b); i += 8 {
		targets = append(targets, decodeRowIndex(b[i:i+8]))
	}
	return targets, nil
}

// encodeCell encodes a scalar for the property's type tag.
func encodeCell(t types.PropertyType, value any) ([]byte, error) {
	switch t {
	case types.TypeBool:
		return encodeBool(value.(bool)), nil
	case types.TypeInt:
		return encodeInt(value.(int64)), nil
	case types.TypeFloat:
		return encodeDouble(float64(value.(float32))), nil
	case types.TypeDouble:
		return encodeDouble(value.(float64)), nil
	case types.TypeString, types.TypeAny:
		return []byte(value.(string)), nil
	case types.TypeData:
		return value.([]byte), nil
	case types.TypeDate:
		return encodeTime(value.(time.Time)), nil
	case types.TypeObject:
		return encodeRowIndex(value.(types.RowIndex)), nil
	case types.TypeList:
		return encodeList(value.([]types.RowIndex)), nil
	}
	return nil, fmt.Errorf("cannot encode property type %s", t)
}

// decodeCell decodes a stored cell for the property's type tag.
func decodeCell(t types.PropertyType, raw []byte) (any, error) {
	switch t {
	case types.TypeBool:
		return decodeBool(raw), nil
	case types.TypeInt:
		return decodeInt(raw), nil
	case types.TypeFloat:
		return float32(decodeDouble(raw)), nil
	case types.TypeDouble:
		return decodeDouble(raw), nil
	case types.TypeString, types.TypeAny:
		return string(raw), nil
	case types.TypeData:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case types.TypeDate:
		return decodeTime(raw)
	case types.TypeObject:
		return decodeRowIndex(raw), nil
	case types.TypeList:
		return decodeList(raw)
	}
	return nil, fmt.Errorf("cannot decode property type %s", t)
}
