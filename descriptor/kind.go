package descriptor

import "strconv"

// Kind is the wire shape of a type. Its numeric value is written in type
// declarations and must stay stable.
type Kind uint8

const (
	KindUnknown Kind = iota // open or placeholder type, metadata only
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindInt  // variable-length signed
	KindUint // variable-length unsigned
	KindFloat32
	KindFloat64
	KindDecimal
	KindChar
	KindString
	KindBytes
	KindUUID
	KindCustom // encoding.BinaryMarshaler body
	KindStruct
	KindPointer
	KindList
	KindArray
	KindMap
	KindInterface
	kindCount
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindBool:      "bool",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUint8:     "uint8",
	KindUint16:    "uint16",
	KindUint32:    "uint32",
	KindUint64:    "uint64",
	KindInt:       "int",
	KindUint:      "uint",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindDecimal:   "decimal",
	KindChar:      "char",
	KindString:    "string",
	KindBytes:     "bytes",
	KindUUID:      "uuid",
	KindCustom:    "custom",
	KindStruct:    "struct",
	KindPointer:   "pointer",
	KindList:      "list",
	KindArray:     "array",
	KindMap:       "map",
	KindInterface: "interface",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k < kindCount }

// IsPrimitive reports whether values of k are written as a single inline scalar.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindCustom
}

// IsReference reports whether values of k are reference-tracked instances.
func (k Kind) IsReference() bool {
	return k == KindList || k == KindMap
}

// HasElem reports whether k declares element types as type arguments.
func (k Kind) HasElem() bool {
	return k == KindPointer || k == KindList || k == KindArray || k == KindMap
}
