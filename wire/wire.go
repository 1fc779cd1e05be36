package wire

import (
	"github.com/google/uuid"
)

// MaxBlockSize bounds decoded strings and byte blocks (256 MB).
const MaxBlockSize = 1 << 28

// Char is one UTF-16 code unit.
type Char uint16

// Tag is a structural marker written by the graph protocol between primitives.
type Tag uint8

const (
	TagNull    Tag = iota // absent reference
	TagRef                // back-reference to an instance id
	TagNew                // first sighting of an instance
	TagValue              // inline value in a polymorphic slot
	TagType               // type declaration
	TagTypeRef            // back-reference to a type id
	tagCount
)

var tagNames = [...]string{
	TagNull:    "nil",
	TagRef:     "ref",
	TagNew:     "new",
	TagValue:   "val",
	TagType:    "type",
	TagTypeRef: "tref",
}

func (t Tag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return "unknown"
}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t < tagCount
}

func parseTag(s string) (Tag, bool) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), true
		}
	}
	return 0, false
}

// Writer is the primitive encoding contract shared by every backend.
//
// Implementations are not safe for concurrent use. Close flushes pending output
// and releases the underlying sink.
type Writer interface {
	WriteBool(v bool) error
	WriteInt8(v int8) error
	WriteInt16(v int16) error
	WriteInt32(v int32) error
	WriteInt64(v int64) error
	WriteUint8(v uint8) error
	WriteUint16(v uint16) error
	WriteUint32(v uint32) error
	WriteUint64(v uint64) error
	WriteFloat32(v float32) error
	WriteFloat64(v float64) error
	WriteDecimal(v Decimal) error
	WriteChar(v Char) error

	// WriteString writes a present string. WriteNullableString writes nil as absent.
	WriteString(v string) error
	WriteNullableString(v *string) error

	// WriteBytes writes nil as absent and an empty non-nil slice as empty.
	WriteBytes(v []byte) error
	WriteUUID(v uuid.UUID) error

	WriteUvarint(v uint64) error
	WriteVarint(v int64) error
	WriteNullableUvarint(v *uint64) error
	WriteNullableVarint(v *int64) error

	WriteTag(t Tag) error

	Flush() error
	Close() error
}

// Reader mirrors Writer. Every read fails with a *errors.Error carrying the
// offset of the failing byte or token.
type Reader interface {
	ReadBool() (bool, error)
	ReadInt8() (int8, error)
	ReadInt16() (int16, error)
	ReadInt32() (int32, error)
	ReadInt64() (int64, error)
	ReadUint8() (uint8, error)
	ReadUint16() (uint16, error)
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
	ReadFloat32() (float32, error)
	ReadFloat64() (float64, error)
	ReadDecimal() (Decimal, error)
	ReadChar() (Char, error)

	// ReadString returns "" for an absent string.
	ReadString() (string, error)
	ReadNullableString() (*string, error)

	ReadBytes() ([]byte, error)
	ReadUUID() (uuid.UUID, error)

	ReadUvarint() (uint64, error)
	ReadVarint() (int64, error)
	ReadNullableUvarint() (*uint64, error)
	ReadNullableVarint() (*int64, error)

	ReadTag() (Tag, error)

	// Offset is the byte (binary, text) or token (token) position of the next read.
	Offset() int64
	Close() error
}
