package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/errors"
)

// BinaryWriter packs primitives little-endian into a buffered sink.
type BinaryWriter struct {
	w       *bufio.Writer
	dst     io.Writer
	scratch [MaxVarintLen + 1]byte
	n       int64
}

// NewBinaryWriter returns a writer owning w. Close flushes and closes w when
// it implements io.Closer.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: bufio.NewWriter(w), dst: w}
}

func (w *BinaryWriter) put(b []byte) error {
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	return nil
}

func (w *BinaryWriter) putByte(b byte) error {
	if err := w.w.WriteByte(b); err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	w.n++
	return nil
}

// Written returns the number of bytes accepted so far.
func (w *BinaryWriter) Written() int64 { return w.n }

func (w *BinaryWriter) WriteBool(v bool) error {
	if v {
		return w.putByte(1)
	}
	return w.putByte(0)
}

func (w *BinaryWriter) WriteInt8(v int8) error   { return w.putByte(byte(v)) }
func (w *BinaryWriter) WriteUint8(v uint8) error { return w.putByte(v) }
func (w *BinaryWriter) WriteInt16(v int16) error { return w.WriteUint16(uint16(v)) }
func (w *BinaryWriter) WriteInt32(v int32) error { return w.WriteUint32(uint32(v)) }
func (w *BinaryWriter) WriteInt64(v int64) error { return w.WriteUint64(uint64(v)) }

func (w *BinaryWriter) WriteUint16(v uint16) error {
	binary.LittleEndian.PutUint16(w.scratch[:2], v)
	return w.put(w.scratch[:2])
}

func (w *BinaryWriter) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	return w.put(w.scratch[:4])
}

func (w *BinaryWriter) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	return w.put(w.scratch[:8])
}

func (w *BinaryWriter) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

func (w *BinaryWriter) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

func (w *BinaryWriter) WriteDecimal(v Decimal) error {
	for _, word := range v.words() {
		if err := w.WriteUint32(word); err != nil {
			return err
		}
	}
	return nil
}

func (w *BinaryWriter) WriteChar(v Char) error { return w.WriteUint16(uint16(v)) }

func (w *BinaryWriter) WriteString(v string) error {
	if err := w.WriteUvarint(uint64(len(v)) + 1); err != nil {
		return err
	}
	n, err := w.w.WriteString(v)
	w.n += int64(n)
	if err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	return nil
}

func (w *BinaryWriter) WriteNullableString(v *string) error {
	if v == nil {
		return w.WriteUvarint(0)
	}
	return w.WriteString(*v)
}

func (w *BinaryWriter) WriteBytes(v []byte) error {
	if v == nil {
		return w.WriteUvarint(0)
	}
	if err := w.WriteUvarint(uint64(len(v)) + 1); err != nil {
		return err
	}
	return w.put(v)
}

func (w *BinaryWriter) WriteUUID(v uuid.UUID) error { return w.put(v[:]) }

func (w *BinaryWriter) WriteUvarint(v uint64) error {
	return w.put(AppendUvarint(w.scratch[:0], v))
}

func (w *BinaryWriter) WriteVarint(v int64) error {
	return w.put(AppendVarint(w.scratch[:0], v))
}

func (w *BinaryWriter) WriteNullableUvarint(v *uint64) error {
	if v == nil {
		return w.putByte(0)
	}
	b := append(w.scratch[:0], 1)
	return w.put(AppendUvarint(b, *v))
}

func (w *BinaryWriter) WriteNullableVarint(v *int64) error {
	if v == nil {
		return w.putByte(0)
	}
	b := append(w.scratch[:0], 1)
	return w.put(AppendVarint(b, *v))
}

func (w *BinaryWriter) WriteTag(t Tag) error { return w.putByte(byte(t)) }

func (w *BinaryWriter) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errors.IO(errors.PhaseEncode, w.n, err)
	}
	return nil
}

func (w *BinaryWriter) Close() error {
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

// BinaryReader decodes the BinaryWriter format and tracks the byte offset.
type BinaryReader struct {
	r       *bufio.Reader
	src     io.Reader
	scratch [16]byte
	off     int64
	limit   uint64
}

// NewBinaryReader returns a reader owning r.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: bufio.NewReader(r), src: r}
}

func (r *BinaryReader) Offset() int64 { return r.off }

// SetBlockLimit bounds decoded strings and byte blocks to n bytes. A limit
// below one restores MaxBlockSize.
func (r *BinaryReader) SetBlockLimit(n int) {
	r.limit = 0
	if n > 0 {
		r.limit = uint64(n)
	}
}

func (r *BinaryReader) blockLimit() uint64 {
	if r.limit > 0 {
		return r.limit
	}
	return MaxBlockSize
}

// ReadByte implements io.ByteReader for the varint decoder.
func (r *BinaryReader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.off++
	return b, nil
}

func (r *BinaryReader) fail(err error, start int64, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Truncated(errors.PhaseDecode, r.off, what)
	}
	if err == ErrVarintOverflow {
		return errors.Overflow(errors.PhaseDecode, start, what, "64 bits")
	}
	return errors.IO(errors.PhaseDecode, r.off, err)
}

func (r *BinaryReader) fixed(n int, what string) ([]byte, error) {
	buf := r.scratch[:n]
	got, err := io.ReadFull(r.r, buf)
	r.off += int64(got)
	if err != nil {
		return nil, r.fail(err, r.off, what)
	}
	return buf, nil
}

func (r *BinaryReader) byteOf(what string) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, r.fail(err, r.off, what)
	}
	return b, nil
}

func (r *BinaryReader) ReadBool() (bool, error) {
	start := r.off
	b, err := r.byteOf("bool")
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(start).
		Value(b).
		Detail("invalid bool byte 0x%02x", b).
		Build()
}

func (r *BinaryReader) ReadInt8() (int8, error) {
	b, err := r.byteOf("int8")
	return int8(b), err
}

func (r *BinaryReader) ReadUint8() (uint8, error) {
	return r.byteOf("uint8")
}

func (r *BinaryReader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *BinaryReader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *BinaryReader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *BinaryReader) ReadUint16() (uint16, error) {
	b, err := r.fixed(2, "uint16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *BinaryReader) ReadUint32() (uint32, error) {
	b, err := r.fixed(4, "uint32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *BinaryReader) ReadUint64() (uint64, error) {
	b, err := r.fixed(8, "uint64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *BinaryReader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *BinaryReader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

func (r *BinaryReader) ReadDecimal() (Decimal, error) {
	start := r.off
	b, err := r.fixed(16, "decimal")
	if err != nil {
		return Decimal{}, err
	}
	var words [4]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	d, err := decimalFromWords(words)
	if err != nil {
		return Decimal{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(start).
			Cause(err).
			Detail("invalid decimal flags").
			Build()
	}
	return d, nil
}

func (r *BinaryReader) ReadChar() (Char, error) {
	v, err := r.ReadUint16()
	return Char(v), err
}

// block reads a len+1 prefixed block; ok is false for the absent form.
func (r *BinaryReader) block(what string) (data []byte, ok bool, err error) {
	start := r.off
	n, err := ReadUvarint(r)
	if err != nil {
		return nil, false, r.fail(err, start, what)
	}
	if n == 0 {
		return nil, false, nil
	}
	n--
	if n > r.blockLimit() {
		return nil, false, errors.Overflow(errors.PhaseDecode, start, n, what+" length")
	}
	data = make([]byte, n)
	got, err := io.ReadFull(r.r, data)
	r.off += int64(got)
	if err != nil {
		return nil, false, r.fail(err, start, what)
	}
	return data, true, nil
}

func (r *BinaryReader) ReadString() (string, error) {
	b, _, err := r.block("string")
	return string(b), err
}

func (r *BinaryReader) ReadNullableString() (*string, error) {
	b, ok, err := r.block("string")
	if err != nil || !ok {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func (r *BinaryReader) ReadBytes() ([]byte, error) {
	b, _, err := r.block("bytes")
	return b, err
}

func (r *BinaryReader) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	b, err := r.fixed(16, "uuid")
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

func (r *BinaryReader) ReadUvarint() (uint64, error) {
	start := r.off
	v, err := ReadUvarint(r)
	if err != nil {
		return 0, r.fail(err, start, "uvarint")
	}
	return v, nil
}

func (r *BinaryReader) ReadVarint() (int64, error) {
	start := r.off
	v, err := ReadVarint(r)
	if err != nil {
		return 0, r.fail(err, start, "varint")
	}
	return v, nil
}

func (r *BinaryReader) present(what string) (bool, error) {
	start := r.off
	b, err := r.byteOf(what)
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(start).
			Value(b).
			Detail("invalid presence marker 0x%02x", b).
			Build()
	}
	return b == 1, nil
}

func (r *BinaryReader) ReadNullableUvarint() (*uint64, error) {
	ok, err := r.present("nullable uvarint")
	if err != nil || !ok {
		return nil, err
	}
	v, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *BinaryReader) ReadNullableVarint() (*int64, error) {
	ok, err := r.present("nullable varint")
	if err != nil || !ok {
		return nil, err
	}
	v, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *BinaryReader) ReadTag() (Tag, error) {
	start := r.off
	b, err := r.byteOf("tag")
	if err != nil {
		return 0, err
	}
	t := Tag(b)
	if !t.Valid() {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(start).
			Value(b).
			Detail("unknown structural tag 0x%02x", b).
			Build()
	}
	return t, nil
}

func (r *BinaryReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.IO(errors.PhaseDecode, r.off, err)
		}
	}
	return nil
}
