package wire

import (
	"bufio"
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/errors"
)

const (
	literalTrue  = "true"
	literalFalse = "false"
	literalNull  = "null"
	bytesPrefix  = 'x'
)

// TextWriter emits space-separated, human-readable tokens.
//
// Strings are double-quoted with \\ and \" as the only escapes, byte blocks are
// x-prefixed standard base64, and absent values are the literal null.
type TextWriter struct {
	w     *bufio.Writer
	dst   io.Writer
	buf   []byte
	n     int64
	first bool
}

// NewTextWriter returns a writer owning w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w), dst: w, first: true}
}

func (w *TextWriter) token(b []byte) error {
	if !w.first {
		if err := w.w.WriteByte(' '); err != nil {
			return errors.IO(errors.PhaseEncode, w.n, err)
		}
		w.n++
	}
	w.first = false
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	return nil
}

func (w *TextWriter) word(s string) error {
	w.buf = append(w.buf[:0], s...)
	return w.token(w.buf)
}

func (w *TextWriter) int(v int64) error {
	return w.token(strconv.AppendInt(w.buf[:0], v, 10))
}

func (w *TextWriter) uint(v uint64) error {
	return w.token(strconv.AppendUint(w.buf[:0], v, 10))
}

func (w *TextWriter) WriteBool(v bool) error {
	if v {
		return w.word(literalTrue)
	}
	return w.word(literalFalse)
}

func (w *TextWriter) WriteInt8(v int8) error     { return w.int(int64(v)) }
func (w *TextWriter) WriteInt16(v int16) error   { return w.int(int64(v)) }
func (w *TextWriter) WriteInt32(v int32) error   { return w.int(int64(v)) }
func (w *TextWriter) WriteInt64(v int64) error   { return w.int(v) }
func (w *TextWriter) WriteUint8(v uint8) error   { return w.uint(uint64(v)) }
func (w *TextWriter) WriteUint16(v uint16) error { return w.uint(uint64(v)) }
func (w *TextWriter) WriteUint32(v uint32) error { return w.uint(uint64(v)) }
func (w *TextWriter) WriteUint64(v uint64) error { return w.uint(v) }
func (w *TextWriter) WriteChar(v Char) error     { return w.uint(uint64(v)) }
func (w *TextWriter) WriteUvarint(v uint64) error {
	return w.uint(v)
}
func (w *TextWriter) WriteVarint(v int64) error { return w.int(v) }

func (w *TextWriter) WriteFloat32(v float32) error {
	return w.token(appendFloat(w.buf[:0], float64(v), 32))
}

func (w *TextWriter) WriteFloat64(v float64) error {
	return w.token(appendFloat(w.buf[:0], v, 64))
}

func appendFloat(b []byte, v float64, bits int) []byte {
	switch {
	case math.IsNaN(v):
		return append(b, "NaN"...)
	case math.IsInf(v, 1):
		return append(b, "+Inf"...)
	case math.IsInf(v, -1):
		return append(b, "-Inf"...)
	}
	return strconv.AppendFloat(b, v, 'g', -1, bits)
}

func (w *TextWriter) WriteDecimal(v Decimal) error { return w.word(v.String()) }

func (w *TextWriter) WriteString(v string) error {
	b := append(w.buf[:0], '"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '"' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	b = append(b, '"')
	w.buf = b
	return w.token(b)
}

func (w *TextWriter) WriteNullableString(v *string) error {
	if v == nil {
		return w.word(literalNull)
	}
	return w.WriteString(*v)
}

func (w *TextWriter) WriteBytes(v []byte) error {
	if v == nil {
		return w.word(literalNull)
	}
	b := append(w.buf[:0], bytesPrefix)
	b = base64.StdEncoding.AppendEncode(b, v)
	w.buf = b
	return w.token(b)
}

func (w *TextWriter) WriteUUID(v uuid.UUID) error { return w.word(v.String()) }

func (w *TextWriter) WriteNullableUvarint(v *uint64) error {
	if v == nil {
		return w.word(literalNull)
	}
	return w.uint(*v)
}

func (w *TextWriter) WriteNullableVarint(v *int64) error {
	if v == nil {
		return w.word(literalNull)
	}
	return w.int(*v)
}

func (w *TextWriter) WriteTag(t Tag) error { return w.word(t.String()) }

func (w *TextWriter) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	return nil
}

func (w *TextWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if c, ok := w.dst.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.IO(errors.PhaseEncode, w.n, err)
		}
	}
	return nil
}

// textToken is one lexed token. Quoted tokens hold the unescaped content.
type textToken struct {
	text   string
	off    int64
	quoted bool
}

// TextReader lexes the TextWriter format.
type TextReader struct {
	r     *bufio.Reader
	src   io.Reader
	sb    strings.Builder
	off   int64
	limit int
}

// NewTextReader returns a reader owning r.
func NewTextReader(r io.Reader) *TextReader {
	return &TextReader{r: bufio.NewReader(r), src: r}
}

func (r *TextReader) Offset() int64 { return r.off }

// SetBlockLimit bounds decoded strings and byte blocks to n bytes. A limit
// below one restores MaxBlockSize.
func (r *TextReader) SetBlockLimit(n int) { r.limit = n }

func (r *TextReader) blockLimit() int {
	if r.limit > 0 {
		return r.limit
	}
	return MaxBlockSize
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',':
		return true
	}
	return false
}

func (r *TextReader) readByte() (byte, error) {
	c, err := r.r.ReadByte()
	if err == nil {
		r.off++
	}
	return c, err
}

// next returns the next token; what names the expected primitive for errors.
func (r *TextReader) next(what string) (textToken, error) {
	var c byte
	var err error
	for {
		c, err = r.readByte()
		if err != nil {
			if err == io.EOF {
				return textToken{}, errors.Truncated(errors.PhaseDecode, r.off, what)
			}
			return textToken{}, errors.IO(errors.PhaseDecode, r.off, err)
		}
		if !isDelimiter(c) {
			break
		}
	}

	start := r.off - 1
	r.sb.Reset()

	if c == '"' {
		for {
			c, err = r.readByte()
			if err != nil {
				if err == io.EOF {
					return textToken{}, errors.New(errors.PhaseDecode, errors.KindUnterminatedString).
						Offset(start).
						Detail("quoted %s starting at offset %d is never closed", what, start).
						Build()
				}
				return textToken{}, errors.IO(errors.PhaseDecode, r.off, err)
			}
			if c == '"' {
				break
			}
			if c == '\\' {
				esc, err := r.readByte()
				if err != nil {
					return textToken{}, errors.New(errors.PhaseDecode, errors.KindUnterminatedString).
						Offset(start).
						Detail("escape at end of input").
						Build()
				}
				if esc != '\\' && esc != '"' {
					return textToken{}, errors.MalformedToken(r.off-2, `\`+string(esc), "escape")
				}
				c = esc
			}
			r.sb.WriteByte(c)
			if r.sb.Len() > r.blockLimit() {
				return textToken{}, errors.Overflow(errors.PhaseDecode, start, r.sb.Len(), what+" length")
			}
		}
		if err := r.expectDelimiter(start, what); err != nil {
			return textToken{}, err
		}
		return textToken{text: r.sb.String(), off: start, quoted: true}, nil
	}

	r.sb.WriteByte(c)
	maxBare := base64.StdEncoding.EncodedLen(r.blockLimit()) + 1
	for {
		c, err = r.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return textToken{}, errors.IO(errors.PhaseDecode, r.off, err)
		}
		if isDelimiter(c) {
			r.off++
			break
		}
		if c == '"' {
			return textToken{}, errors.MalformedToken(start, r.sb.String()+`"`, what)
		}
		r.off++
		r.sb.WriteByte(c)
		if r.sb.Len() > maxBare {
			return textToken{}, errors.Overflow(errors.PhaseDecode, start, r.sb.Len(), what+" token length")
		}
	}
	return textToken{text: r.sb.String(), off: start}, nil
}

func (r *TextReader) expectDelimiter(start int64, what string) error {
	c, err := r.r.ReadByte()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.IO(errors.PhaseDecode, r.off, err)
	}
	r.off++
	if !isDelimiter(c) {
		return errors.MalformedToken(start, string(c), what+" delimiter")
	}
	return nil
}

func (r *TextReader) bare(what string) (textToken, error) {
	tok, err := r.next(what)
	if err != nil {
		return tok, err
	}
	if tok.quoted {
		return tok, errors.MalformedToken(tok.off, tok.text, what)
	}
	return tok, nil
}

func (r *TextReader) parseInt(what string, bits int) (int64, error) {
	tok, err := r.bare(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(tok.text, 10, bits)
	if err != nil {
		return 0, numError(err, tok, what)
	}
	return v, nil
}

func (r *TextReader) parseUint(what string, bits int) (uint64, error) {
	tok, err := r.bare(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok.text, 10, bits)
	if err != nil {
		return 0, numError(err, tok, what)
	}
	return v, nil
}

func numError(err error, tok textToken, what string) error {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return errors.Overflow(errors.PhaseDecode, tok.off, tok.text, what)
	}
	return errors.MalformedToken(tok.off, tok.text, what)
}

func (r *TextReader) ReadBool() (bool, error) {
	tok, err := r.bare("bool")
	if err != nil {
		return false, err
	}
	switch tok.text {
	case literalTrue:
		return true, nil
	case literalFalse:
		return false, nil
	}
	return false, errors.MalformedToken(tok.off, tok.text, "bool")
}

func (r *TextReader) ReadInt8() (int8, error) {
	v, err := r.parseInt("int8", 8)
	return int8(v), err
}

func (r *TextReader) ReadInt16() (int16, error) {
	v, err := r.parseInt("int16", 16)
	return int16(v), err
}

func (r *TextReader) ReadInt32() (int32, error) {
	v, err := r.parseInt("int32", 32)
	return int32(v), err
}

func (r *TextReader) ReadInt64() (int64, error) {
	return r.parseInt("int64", 64)
}

func (r *TextReader) ReadUint8() (uint8, error) {
	v, err := r.parseUint("uint8", 8)
	return uint8(v), err
}

func (r *TextReader) ReadUint16() (uint16, error) {
	v, err := r.parseUint("uint16", 16)
	return uint16(v), err
}

func (r *TextReader) ReadUint32() (uint32, error) {
	v, err := r.parseUint("uint32", 32)
	return uint32(v), err
}

func (r *TextReader) ReadUint64() (uint64, error) {
	return r.parseUint("uint64", 64)
}

func (r *TextReader) ReadChar() (Char, error) {
	v, err := r.parseUint("char", 16)
	return Char(v), err
}

func (r *TextReader) ReadUvarint() (uint64, error) {
	return r.parseUint("uvarint", 64)
}

func (r *TextReader) ReadVarint() (int64, error) {
	return r.parseInt("varint", 64)
}

func (r *TextReader) parseFloat(what string, bits int) (float64, error) {
	tok, err := r.bare(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok.text, bits)
	if err != nil {
		return 0, numError(err, tok, what)
	}
	return v, nil
}

func (r *TextReader) ReadFloat32() (float32, error) {
	v, err := r.parseFloat("float32", 32)
	return float32(v), err
}

func (r *TextReader) ReadFloat64() (float64, error) {
	return r.parseFloat("float64", 64)
}

func (r *TextReader) ReadDecimal() (Decimal, error) {
	tok, err := r.bare("decimal")
	if err != nil {
		return Decimal{}, err
	}
	d, err := ParseDecimal(tok.text)
	if err == ErrDecimalOverflow || err == ErrDecimalScale {
		return Decimal{}, errors.Overflow(errors.PhaseDecode, tok.off, tok.text, "decimal")
	}
	if err != nil {
		return Decimal{}, errors.MalformedToken(tok.off, tok.text, "decimal")
	}
	return d, nil
}

func (r *TextReader) ReadNullableString() (*string, error) {
	tok, err := r.next("string")
	if err != nil {
		return nil, err
	}
	if tok.quoted {
		s := tok.text
		return &s, nil
	}
	if tok.text == literalNull {
		return nil, nil
	}
	return nil, errors.MalformedToken(tok.off, tok.text, "string")
}

func (r *TextReader) ReadString() (string, error) {
	s, err := r.ReadNullableString()
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func (r *TextReader) ReadBytes() ([]byte, error) {
	tok, err := r.bare("bytes")
	if err != nil {
		return nil, err
	}
	if tok.text == literalNull {
		return nil, nil
	}
	if len(tok.text) == 0 || tok.text[0] != bytesPrefix {
		return nil, errors.MalformedToken(tok.off, tok.text, "bytes")
	}
	out, err := base64.StdEncoding.DecodeString(tok.text[1:])
	if err != nil {
		return nil, errors.MalformedToken(tok.off, tok.text, "bytes")
	}
	if len(out) > r.blockLimit() {
		return nil, errors.Overflow(errors.PhaseDecode, tok.off, len(out), "bytes length")
	}
	return out, nil
}

func (r *TextReader) ReadUUID() (uuid.UUID, error) {
	tok, err := r.bare("uuid")
	if err != nil {
		return uuid.UUID{}, err
	}
	id, err := uuid.Parse(tok.text)
	if err != nil {
		return uuid.UUID{}, errors.MalformedToken(tok.off, tok.text, "uuid")
	}
	return id, nil
}

func (r *TextReader) ReadNullableUvarint() (*uint64, error) {
	tok, err := r.bare("nullable uvarint")
	if err != nil {
		return nil, err
	}
	if tok.text == literalNull {
		return nil, nil
	}
	v, err := strconv.ParseUint(tok.text, 10, 64)
	if err != nil {
		return nil, numError(err, tok, "uvarint")
	}
	return &v, nil
}

func (r *TextReader) ReadNullableVarint() (*int64, error) {
	tok, err := r.bare("nullable varint")
	if err != nil {
		return nil, err
	}
	if tok.text == literalNull {
		return nil, nil
	}
	v, err := strconv.ParseInt(tok.text, 10, 64)
	if err != nil {
		return nil, numError(err, tok, "varint")
	}
	return &v, nil
}

func (r *TextReader) ReadTag() (Tag, error) {
	tok, err := r.bare("tag")
	if err != nil {
		return 0, err
	}
	t, ok := parseTag(tok.text)
	if !ok {
		return 0, errors.MalformedToken(tok.off, tok.text, "tag")
	}
	return t, nil
}

func (r *TextReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.IO(errors.PhaseDecode, r.off, err)
		}
	}
	return nil
}
