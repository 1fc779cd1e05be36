package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/errors"
)

// TokenKind identifies the primitive a Token carries.
type TokenKind uint8

const (
	TokenBool TokenKind = iota + 1
	TokenInt8
	TokenInt16
	TokenInt32
	TokenInt64
	TokenUint8
	TokenUint16
	TokenUint32
	TokenUint64
	TokenFloat32
	TokenFloat64
	TokenDecimal
	TokenChar
	TokenString
	TokenBytes
	TokenUUID
	TokenUvarint
	TokenVarint
	TokenTag
)

var tokenKindNames = map[TokenKind]string{
	TokenBool:    "bool",
	TokenInt8:    "int8",
	TokenInt16:   "int16",
	TokenInt32:   "int32",
	TokenInt64:   "int64",
	TokenUint8:   "uint8",
	TokenUint16:  "uint16",
	TokenUint32:  "uint32",
	TokenUint64:  "uint64",
	TokenFloat32: "float32",
	TokenFloat64: "float64",
	TokenDecimal: "decimal",
	TokenChar:    "char",
	TokenString:  "string",
	TokenBytes:   "bytes",
	TokenUUID:    "uuid",
	TokenUvarint: "uvarint",
	TokenVarint:  "varint",
	TokenTag:     "tag",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// Token is one primitive held in memory. Value is nil for an absent string,
// byte block or nullable integer; otherwise it holds the Go value of Kind
// (uint64 for TokenUvarint, int64 for TokenVarint).
type Token struct {
	Kind  TokenKind
	Value any
}

func (t Token) String() string {
	if t.Value == nil {
		return t.Kind.String() + ":null"
	}
	return fmt.Sprintf("%s:%v", t.Kind, t.Value)
}

// TokenWriter records primitives as an in-memory token sequence. Byte blocks
// are copied so later mutation of the source does not leak into the stream.
type TokenWriter struct {
	tokens []Token
	closed bool
}

func NewTokenWriter() *TokenWriter {
	return &TokenWriter{}
}

// Tokens returns the recorded sequence.
func (w *TokenWriter) Tokens() []Token { return w.tokens }

func (w *TokenWriter) add(k TokenKind, v any) error {
	if w.closed {
		return errors.New(errors.PhaseEncode, errors.KindIO).
			Offset(int64(len(w.tokens))).
			Detail("write after close").
			Build()
	}
	w.tokens = append(w.tokens, Token{Kind: k, Value: v})
	return nil
}

func (w *TokenWriter) WriteBool(v bool) error       { return w.add(TokenBool, v) }
func (w *TokenWriter) WriteInt8(v int8) error       { return w.add(TokenInt8, v) }
func (w *TokenWriter) WriteInt16(v int16) error     { return w.add(TokenInt16, v) }
func (w *TokenWriter) WriteInt32(v int32) error     { return w.add(TokenInt32, v) }
func (w *TokenWriter) WriteInt64(v int64) error     { return w.add(TokenInt64, v) }
func (w *TokenWriter) WriteUint8(v uint8) error     { return w.add(TokenUint8, v) }
func (w *TokenWriter) WriteUint16(v uint16) error   { return w.add(TokenUint16, v) }
func (w *TokenWriter) WriteUint32(v uint32) error   { return w.add(TokenUint32, v) }
func (w *TokenWriter) WriteUint64(v uint64) error   { return w.add(TokenUint64, v) }
func (w *TokenWriter) WriteFloat32(v float32) error { return w.add(TokenFloat32, v) }
func (w *TokenWriter) WriteFloat64(v float64) error { return w.add(TokenFloat64, v) }
func (w *TokenWriter) WriteDecimal(v Decimal) error { return w.add(TokenDecimal, v) }
func (w *TokenWriter) WriteChar(v Char) error       { return w.add(TokenChar, v) }
func (w *TokenWriter) WriteString(v string) error   { return w.add(TokenString, v) }
func (w *TokenWriter) WriteUUID(v uuid.UUID) error  { return w.add(TokenUUID, v) }
func (w *TokenWriter) WriteUvarint(v uint64) error  { return w.add(TokenUvarint, v) }
func (w *TokenWriter) WriteVarint(v int64) error    { return w.add(TokenVarint, v) }
func (w *TokenWriter) WriteTag(t Tag) error         { return w.add(TokenTag, t) }

func (w *TokenWriter) WriteNullableString(v *string) error {
	if v == nil {
		return w.add(TokenString, nil)
	}
	return w.add(TokenString, *v)
}

func (w *TokenWriter) WriteBytes(v []byte) error {
	if v == nil {
		return w.add(TokenBytes, nil)
	}
	return w.add(TokenBytes, append(make([]byte, 0, len(v)), v...))
}

func (w *TokenWriter) WriteNullableUvarint(v *uint64) error {
	if v == nil {
		return w.add(TokenUvarint, nil)
	}
	return w.add(TokenUvarint, *v)
}

func (w *TokenWriter) WriteNullableVarint(v *int64) error {
	if v == nil {
		return w.add(TokenVarint, nil)
	}
	return w.add(TokenVarint, *v)
}

func (w *TokenWriter) Flush() error { return nil }

func (w *TokenWriter) Close() error {
	w.closed = true
	return nil
}

// TokenReader replays a token sequence. Offsets count tokens.
type TokenReader struct {
	tokens []Token
	pos    int
}

func NewTokenReader(tokens []Token) *TokenReader {
	return &TokenReader{tokens: tokens}
}

func (r *TokenReader) Offset() int64 { return int64(r.pos) }

// Remaining returns the number of unread tokens.
func (r *TokenReader) Remaining() int { return len(r.tokens) - r.pos }

func (r *TokenReader) take(k TokenKind, nullable bool) (any, error) {
	if r.pos >= len(r.tokens) {
		return nil, errors.Truncated(errors.PhaseDecode, int64(r.pos), k.String())
	}
	t := r.tokens[r.pos]
	if t.Kind != k {
		return nil, errors.KindMismatch(int64(r.pos), t.Kind.String(), k.String())
	}
	if t.Value == nil && !nullable {
		return nil, errors.KindMismatch(int64(r.pos), "null", k.String())
	}
	r.pos++
	return t.Value, nil
}

// value takes a token of kind k and asserts its payload to T.
func value[T any](r *TokenReader, k TokenKind) (T, error) {
	var zero T
	v, err := r.take(k, false)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		r.pos--
		return zero, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(int64(r.pos)).
			Detail("%s token holds %T", k, v).
			Build()
	}
	return out, nil
}

func nullable[T any](r *TokenReader, k TokenKind) (*T, error) {
	v, err := r.take(k, true)
	if err != nil || v == nil {
		return nil, err
	}
	out, ok := v.(T)
	if !ok {
		r.pos--
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(int64(r.pos)).
			Detail("%s token holds %T", k, v).
			Build()
	}
	return &out, nil
}

func (r *TokenReader) ReadBool() (bool, error)       { return value[bool](r, TokenBool) }
func (r *TokenReader) ReadInt8() (int8, error)       { return value[int8](r, TokenInt8) }
func (r *TokenReader) ReadInt16() (int16, error)     { return value[int16](r, TokenInt16) }
func (r *TokenReader) ReadInt32() (int32, error)     { return value[int32](r, TokenInt32) }
func (r *TokenReader) ReadInt64() (int64, error)     { return value[int64](r, TokenInt64) }
func (r *TokenReader) ReadUint8() (uint8, error)     { return value[uint8](r, TokenUint8) }
func (r *TokenReader) ReadUint16() (uint16, error)   { return value[uint16](r, TokenUint16) }
func (r *TokenReader) ReadUint32() (uint32, error)   { return value[uint32](r, TokenUint32) }
func (r *TokenReader) ReadUint64() (uint64, error)   { return value[uint64](r, TokenUint64) }
func (r *TokenReader) ReadFloat32() (float32, error) { return value[float32](r, TokenFloat32) }
func (r *TokenReader) ReadFloat64() (float64, error) { return value[float64](r, TokenFloat64) }
func (r *TokenReader) ReadDecimal() (Decimal, error) { return value[Decimal](r, TokenDecimal) }
func (r *TokenReader) ReadChar() (Char, error)       { return value[Char](r, TokenChar) }
func (r *TokenReader) ReadUUID() (uuid.UUID, error)  { return value[uuid.UUID](r, TokenUUID) }
func (r *TokenReader) ReadUvarint() (uint64, error)  { return value[uint64](r, TokenUvarint) }
func (r *TokenReader) ReadVarint() (int64, error)    { return value[int64](r, TokenVarint) }
func (r *TokenReader) ReadTag() (Tag, error)         { return value[Tag](r, TokenTag) }

func (r *TokenReader) ReadNullableString() (*string, error) {
	return nullable[string](r, TokenString)
}

func (r *TokenReader) ReadString() (string, error) {
	s, err := r.ReadNullableString()
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func (r *TokenReader) ReadBytes() ([]byte, error) {
	b, err := nullable[[]byte](r, TokenBytes)
	if err != nil || b == nil {
		return nil, err
	}
	return *b, nil
}

func (r *TokenReader) ReadNullableUvarint() (*uint64, error) {
	return nullable[uint64](r, TokenUvarint)
}

func (r *TokenReader) ReadNullableVarint() (*int64, error) {
	return nullable[int64](r, TokenVarint)
}

func (r *TokenReader) Close() error { return nil }
