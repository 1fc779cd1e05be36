// Package wire provides the primitive codec layer: symmetric Writer and Reader
// contracts with three interchangeable backends.
//
// # Backends
//
//	Binary: little-endian fixed widths, 7-bit varints with zigzag for signed
//	        values, strings and byte blocks prefixed by length+1 (0 = absent).
//	Text:   whitespace or comma separated tokens. Strings are double quoted
//	        with \\ and \" as the only escapes, byte blocks are x-prefixed
//	        base64, absent values are the literal null.
//	Token:  an in-memory []Token sequence, used for deep cloning and tests.
//
// The graph protocol only ever talks to Writer and Reader, so any backend can
// carry any graph:
//
//	w := wire.NewBinaryWriter(&buf)
//	w.WriteUvarint(42)
//	w.WriteString("hello")
//	w.Close()
//
//	r := wire.NewBinaryReader(&buf)
//	n, _ := r.ReadUvarint()
//	s, _ := r.ReadString()
//
// # Errors
//
// Readers fail with *errors.Error values that carry the offset of the failing
// byte (binary, text) or token (token). Premature end of input is
// KindTruncated; text tokens that do not parse are KindMalformedToken, an
// unclosed quote is KindUnterminatedString; a token of the wrong kind is
// KindKindMismatch.
package wire
