package wire

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Variable-length integers: 7-bit groups, least significant first, high bit set
// on every byte but the last. Signed values are zigzag mapped so small
// negatives stay short.

// MaxVarintLen is the longest encoding of a 64-bit value.
const MaxVarintLen = 10

// ErrVarintOverflow is returned when an encoding exceeds 64 bits.
var ErrVarintOverflow = errors.New("varint: overflow")

// AppendUvarint appends the encoding of v to b.
func AppendUvarint(b []byte, v uint64) []byte {
	return protowire.AppendVarint(b, v)
}

// AppendVarint appends the zigzag encoding of v to b.
func AppendVarint(b []byte, v int64) []byte {
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// UvarintSize returns the encoded length of v.
func UvarintSize(v uint64) int {
	return protowire.SizeVarint(v)
}

// VarintSize returns the encoded length of the zigzag form of v.
func VarintSize(v int64) int {
	return protowire.SizeVarint(protowire.EncodeZigZag(v))
}

// ZigZag maps signed to unsigned so that 0,-1,1,-2 become 0,1,2,3.
func ZigZag(v int64) uint64 {
	return protowire.EncodeZigZag(v)
}

// UnZigZag reverses ZigZag.
func UnZigZag(v uint64) int64 {
	return protowire.DecodeZigZag(v)
}

// ConsumeUvarint decodes a value from the front of b and returns it with the
// number of bytes used.
func ConsumeUvarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		if protowire.ParseError(n) == io.ErrUnexpectedEOF {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return 0, 0, ErrVarintOverflow
	}
	return v, n, nil
}

// ReadUvarint reads an unsigned value. A stream ending before the first byte
// returns io.EOF, one ending mid-value returns io.ErrUnexpectedEOF.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if i == MaxVarintLen-1 && b > 1 {
			return 0, ErrVarintOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, ErrVarintOverflow
		}
	}
}

// ReadVarint reads a zigzag-encoded signed value.
func ReadVarint(r io.ByteReader) (int64, error) {
	u, err := ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(u), nil
}
