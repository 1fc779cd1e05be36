package graph

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/wire"
)

type wireMember struct {
	name string
	typ  *wireType
}

// wireType is a type declaration read from the stream, bound to the local
// descriptor of the same identity and kind when one is registered.
type wireType struct {
	id       uint64
	kind     descriptor.Kind
	identity string
	args     []*wireType
	members  []wireMember
	length   int

	// local is nil when the identity did not resolve.
	local *descriptor.TypeDescriptor
	// goType is the Go type values of this wire type decode to. Unresolved
	// structs decode to *Bag held in an interface.
	goType reflect.Type

	plan     []*descriptor.MemberDescriptor
	building bool
}

func (wt *wireType) isBag() bool {
	return wt.kind == descriptor.KindStruct && wt.local == nil
}

// nullable mirrors the writer's rule: pointers to strings and
// variable-length integers use the nullable primitive forms.
func (wt *wireType) nullable() bool {
	if wt.kind != descriptor.KindPointer || len(wt.args) != 1 {
		return false
	}
	switch wt.args[0].kind {
	case descriptor.KindString, descriptor.KindInt, descriptor.KindInt64, descriptor.KindUint, descriptor.KindUint64:
		return true
	}
	return false
}

var builtinTypes = map[descriptor.Kind]reflect.Type{
	descriptor.KindBool:    reflect.TypeFor[bool](),
	descriptor.KindInt8:    reflect.TypeFor[int8](),
	descriptor.KindInt16:   reflect.TypeFor[int16](),
	descriptor.KindInt32:   reflect.TypeFor[int32](),
	descriptor.KindInt64:   reflect.TypeFor[int64](),
	descriptor.KindUint8:   reflect.TypeFor[uint8](),
	descriptor.KindUint16:  reflect.TypeFor[uint16](),
	descriptor.KindUint32:  reflect.TypeFor[uint32](),
	descriptor.KindUint64:  reflect.TypeFor[uint64](),
	descriptor.KindInt:     reflect.TypeFor[int](),
	descriptor.KindUint:    reflect.TypeFor[uint](),
	descriptor.KindFloat32: reflect.TypeFor[float32](),
	descriptor.KindFloat64: reflect.TypeFor[float64](),
	descriptor.KindDecimal: reflect.TypeFor[wire.Decimal](),
	descriptor.KindChar:    reflect.TypeFor[wire.Char](),
	descriptor.KindString:  reflect.TypeFor[string](),
	descriptor.KindBytes:   reflect.TypeFor[[]byte](),
	descriptor.KindUUID:    reflect.TypeFor[uuid.UUID](),
	descriptor.KindCustom:  reflect.TypeFor[[]byte](),
}

type pendingHook struct {
	ptr      reflect.Value
	identity string
	lost     LostData
	path     []string
}

// Decoder rebuilds object graphs from a wire.Reader.
//
// Each Decode call reads one stream written by Encoder.Encode. Types are
// matched by identity; members by wire name. Members missing on either side
// are absorbed and reported through the diagnostic sink. A Decoder is not
// safe for concurrent use.
type Decoder struct {
	r    wire.Reader
	opts Options

	refs  readRefs
	types readTypes
	hooks []pendingHook
	lost  []Lost

	observe   func(Frame)
	path      []string
	depth     int
	typeDepth int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r wire.Reader, opts ...Option) *Decoder {
	return &Decoder{r: r, opts: buildOptions(opts)}
}

// Decode reads one stream and returns its root. Structs whose identity has no
// local type come back as *Bag.
func (d *Decoder) Decode() (any, error) {
	v, _, err := d.decode()
	if err != nil {
		return nil, err
	}
	return export(v), nil
}

// DecodeLost is Decode that also returns the unmatched wire members of every
// instance it built. The decoder keeps no reference to either result.
func (d *Decoder) DecodeLost() (any, []Lost, error) {
	v, lost, err := d.decode()
	if err != nil {
		return nil, nil, err
	}
	return export(v), lost, nil
}

// DecodeInto reads one stream into the value target points to. The root must
// convert to the target's element type; a root *T is copied into a T target.
func (d *Decoder) DecodeInto(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.InvalidInput(errors.PhaseRead, fmt.Sprintf("DecodeInto needs a non-nil pointer, got %T", target))
	}
	to := rv.Type().Elem()
	if _, err := d.opts.Registry.Preload(to); err != nil {
		return err
	}

	v, _, err := d.decode()
	if err != nil {
		return err
	}
	cv, ok := convert(v, to)
	if !ok {
		return errors.New(errors.PhaseRead, errors.KindInvalidInput).
			GoType(to.String()).
			Detail("stream root %s does not convert to %s", typeName(v), to).
			Build()
	}
	rv.Elem().Set(cv)
	return nil
}

func (d *Decoder) decode() (reflect.Value, []Lost, error) {
	d.depth = 0
	d.typeDepth = 0
	defer d.release()

	off := d.r.Offset()
	version, err := d.r.ReadUvarint()
	if err != nil {
		return reflect.Value{}, nil, err
	}
	if version != Version {
		return reflect.Value{}, nil, errors.New(errors.PhaseRead, errors.KindUnsupportedVersion).
			Offset(off).
			Value(version).
			Detail("stream version %d, want %d", version, Version).
			Build()
	}

	v, err := d.readInterface()
	if err != nil {
		return reflect.Value{}, nil, err
	}
	for _, h := range d.hooks {
		d.runHook(h)
	}
	return v, d.lost, nil
}

// release drops every per-call table so the decoded graph is not reachable
// from the decoder once a call returns.
func (d *Decoder) release() {
	d.refs.reset()
	d.types.reset()
	clear(d.hooks)
	d.hooks = d.hooks[:0]
	d.lost = nil
	d.path = d.path[:0]
}

func (d *Decoder) fail(err error) error {
	return errors.WithPath(err, slices.Clone(d.path))
}

func (d *Decoder) invalid(off int64, format string, args ...any) error {
	return errors.New(errors.PhaseRead, errors.KindInvalidData).
		Path(slices.Clone(d.path)...).
		Offset(off).
		Detail(format, args...).
		Build()
}

func (d *Decoder) enter(seg string) error {
	d.depth++
	d.path = append(d.path, seg)
	if d.depth > d.opts.MaxDepth {
		return errors.New(errors.PhaseRead, errors.KindDepthExceeded).
			Path(slices.Clone(d.path)...).
			Offset(d.r.Offset()).
			Detail("nesting exceeds %d", d.opts.MaxDepth).
			Build()
	}
	return nil
}

func (d *Decoder) leave() {
	d.depth--
	d.path = d.path[:len(d.path)-1]
}

func (d *Decoder) emit(f Frame) {
	if d.observe == nil {
		return
	}
	f.Depth = d.depth
	if len(d.path) > 0 {
		f.Member = d.path[len(d.path)-1]
	}
	d.observe(f)
}

func (d *Decoder) diagnose(sev Severity, kind errors.Kind, identity, msg string, cause error) {
	d.opts.Sink(Diagnostic{
		Severity: sev,
		Kind:     kind,
		Path:     slices.Clone(d.path),
		Identity: identity,
		Offset:   d.r.Offset(),
		Message:  msg,
		Cause:    cause,
	})
}

func (d *Decoder) readCount(what string) (int, error) {
	off := d.r.Offset()
	n, err := d.r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, errors.New(errors.PhaseRead, errors.KindInvalidData).
			Path(slices.Clone(d.path)...).
			Offset(off).
			Value(n).
			Detail("%s %d exceeds %d", what, n, maxCount).
			Build()
	}
	return int(n), nil
}

// readTypeRef reads a type declaration or a back-reference to one.
func (d *Decoder) readTypeRef() (*wireType, error) {
	off := d.r.Offset()
	tag, err := d.r.ReadTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case wire.TagTypeRef:
		id, err := d.r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		wt, ok := d.types.get(id)
		if !ok {
			return nil, errors.UndeclaredType(off, slices.Clone(d.path), id)
		}
		d.emit(Frame{Tag: tag, TypeID: id, Identity: wt.identity, Offset: off})
		return wt, nil
	case wire.TagType:
		first := d.types.nextID()
		wt, err := d.readTypeDecl(off)
		if err != nil {
			return nil, err
		}
		if d.typeDepth == 0 {
			if err := d.finishTypes(first); err != nil {
				return nil, err
			}
		}
		return wt, nil
	}
	return nil, d.invalid(off, "expected type or tref, got %s", tag)
}

func (d *Decoder) readTypeDecl(off int64) (*wireType, error) {
	id, err := d.r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if id != d.types.nextID() {
		return nil, d.invalid(off, "type id %d out of sequence, want %d", id, d.types.nextID())
	}
	kindOff := d.r.Offset()
	k, err := d.r.ReadUint8()
	if err != nil {
		return nil, err
	}
	kind := descriptor.Kind(k)
	if !kind.Valid() {
		return nil, d.invalid(kindOff, "unknown type kind %d", k)
	}
	identity, err := d.r.ReadString()
	if err != nil {
		return nil, err
	}

	wt := &wireType{id: id, kind: kind, identity: identity}
	d.types.insert(wt)
	d.resolve(wt)
	d.emit(Frame{Tag: wire.TagType, TypeID: id, Identity: identity, Offset: off})

	d.typeDepth++
	defer func() { d.typeDepth-- }()
	if d.typeDepth > d.opts.MaxDepth {
		return nil, errors.New(errors.PhaseRead, errors.KindDepthExceeded).
			Identity(identity).
			Offset(off).
			Detail("type declarations nest deeper than %d", d.opts.MaxDepth).
			Build()
	}

	arity, err := d.readCount("type arity")
	if err != nil {
		return nil, err
	}
	for range arity {
		a, err := d.readTypeRef()
		if err != nil {
			return nil, err
		}
		wt.args = append(wt.args, a)
	}
	if kind.HasElem() {
		want := 1
		if kind == descriptor.KindMap {
			want = 2
		}
		if len(wt.args) != want {
			return nil, d.invalid(off, "%s type %q declares %d type arguments, want %d", kind, identity, len(wt.args), want)
		}
	}

	switch kind {
	case descriptor.KindStruct:
		n, err := d.readCount("member count")
		if err != nil {
			return nil, err
		}
		for range n {
			name, err := d.r.ReadString()
			if err != nil {
				return nil, err
			}
			mt, err := d.readTypeRef()
			if err != nil {
				return nil, err
			}
			wt.members = append(wt.members, wireMember{name: name, typ: mt})
		}
	case descriptor.KindArray:
		n, err := d.readCount("array length")
		if err != nil {
			return nil, err
		}
		wt.length = n
	}

	return wt, nil
}

// resolve binds wt to the local descriptor of the same identity. It runs
// before arguments and members are read so self-referencing types see their
// Go type.
func (d *Decoder) resolve(wt *wireType) {
	local, ok := d.opts.Registry.Resolve(wt.identity)
	switch {
	case ok && local.GoType != nil && local.Kind == wt.kind:
		if wt.kind.HasElem() && local.GoType.Name() == "" {
			// Unnamed composites are rebuilt from their arguments.
			break
		}
		wt.local = local
		wt.goType = local.GoType
		return
	case ok && local.GoType != nil:
		d.diagnose(SeverityWarn, errors.KindReshape, wt.identity,
			fmt.Sprintf("wire kind %s does not match local kind %s", wt.kind, local.Kind), nil)
	}

	switch wt.kind {
	case descriptor.KindStruct:
		wt.goType = anyType
		d.diagnose(SeverityWarn, errors.KindUnresolvedType, wt.identity, "no local type; decoding as Bag", nil)
	case descriptor.KindInterface, descriptor.KindUnknown:
		wt.goType = anyType
	default:
		if t, ok := builtinTypes[wt.kind]; ok {
			wt.goType = t
		}
	}
}

// finishTypes gives every type declared since id first its Go type. It runs
// once the outermost declaration is complete, when all arguments are known.
func (d *Decoder) finishTypes(first uint64) error {
	for id := first; id < d.types.nextID(); id++ {
		wt, _ := d.types.get(id)
		if _, err := d.goTypeOf(wt); err != nil {
			return d.fail(err)
		}
	}
	return nil
}

// goTypeOf returns the Go type of wt, building unresolved composites from
// their arguments. A composite that contains itself without a named type in
// between decodes its inner occurrence as any.
func (d *Decoder) goTypeOf(wt *wireType) (reflect.Type, error) {
	if wt.goType != nil {
		return wt.goType, nil
	}
	if wt.building {
		return anyType, nil
	}
	wt.building = true
	defer func() { wt.building = false }()

	args := make([]reflect.Type, len(wt.args))
	for i, a := range wt.args {
		t, err := d.goTypeOf(a)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}

	t := anyType
	switch wt.kind {
	case descriptor.KindPointer:
		if !wt.args[0].isBag() {
			t = reflect.PointerTo(args[0])
		}
	case descriptor.KindList:
		t = reflect.SliceOf(args[0])
	case descriptor.KindArray:
		t = reflect.ArrayOf(wt.length, args[0])
	case descriptor.KindMap:
		if !args[0].Comparable() {
			return nil, errors.New(errors.PhaseRead, errors.KindUnsupported).
				Identity(wt.identity).
				Detail("map key %s is not comparable", args[0]).
				Build()
		}
		t = reflect.MapOf(args[0], args[1])
	}
	wt.goType = t
	return t, nil
}

// readInterface reads a polymorphic slot.
func (d *Decoder) readInterface() (reflect.Value, error) {
	off := d.r.Offset()
	tag, err := d.r.ReadTag()
	if err != nil {
		return reflect.Value{}, err
	}
	switch tag {
	case wire.TagNull, wire.TagRef, wire.TagNew:
		return d.readRefTag(tag, off)
	case wire.TagValue:
		d.emit(Frame{Tag: tag, Offset: off})
		wt, err := d.readTypeRef()
		if err != nil {
			return reflect.Value{}, err
		}
		return d.readValue(wt)
	}
	return reflect.Value{}, d.invalid(off, "unexpected %s in value slot", tag)
}

// readRef reads a reference slot of a statically typed pointer, slice or map.
// A nil slot returns the invalid Value.
func (d *Decoder) readRef() (reflect.Value, error) {
	off := d.r.Offset()
	tag, err := d.r.ReadTag()
	if err != nil {
		return reflect.Value{}, err
	}
	switch tag {
	case wire.TagNull, wire.TagRef, wire.TagNew:
		return d.readRefTag(tag, off)
	}
	return reflect.Value{}, d.invalid(off, "unexpected %s in reference slot", tag)
}

func (d *Decoder) readRefTag(tag wire.Tag, off int64) (reflect.Value, error) {
	switch tag {
	case wire.TagNull:
		d.emit(Frame{Tag: tag, Offset: off})
		return reflect.Value{}, nil
	case wire.TagRef:
		id, err := d.r.ReadUvarint()
		if err != nil {
			return reflect.Value{}, err
		}
		e, ok := d.refs.get(id)
		if !ok {
			return reflect.Value{}, errors.UndeclaredRef(off, slices.Clone(d.path), id)
		}
		d.emit(Frame{Tag: tag, RefID: id, TypeID: e.typ.id, Identity: e.typ.identity, Offset: off})
		return e.value, nil
	}
	return d.readInstance(off)
}

// readInstance reads a new instance frame after its tag. The instance is
// registered before its body is read so references inside the body, including
// cycles back to it, resolve to the same value.
func (d *Decoder) readInstance(off int64) (reflect.Value, error) {
	id, err := d.r.ReadUvarint()
	if err != nil {
		return reflect.Value{}, err
	}
	if id != d.refs.nextID() {
		return reflect.Value{}, errors.UndeclaredRef(off, slices.Clone(d.path), id)
	}
	wt, err := d.readTypeRef()
	if err != nil {
		return reflect.Value{}, err
	}
	d.refs.declare(wt)
	d.emit(Frame{Tag: wire.TagNew, RefID: id, TypeID: wt.id, Identity: wt.identity, Offset: off})

	if err := d.enter(wt.identity); err != nil {
		return reflect.Value{}, err
	}
	defer d.leave()

	switch wt.kind {
	case descriptor.KindPointer:
		if wt.nullable() {
			break
		}
		return d.readPointerBody(id, wt)
	case descriptor.KindList:
		return d.readListBody(id, wt)
	case descriptor.KindMap:
		return d.readMapBody(id, wt)
	}
	return reflect.Value{}, d.invalid(off, "%s type %q cannot be a reference instance", wt.kind, wt.identity)
}

func (d *Decoder) readPointerBody(id uint64, wt *wireType) (reflect.Value, error) {
	elem := wt.args[0]
	switch {
	case elem.isBag():
		b := &Bag{Identity: elem.identity}
		bv := reflect.ValueOf(b)
		d.refs.allocate(id, bv)
		if err := d.readBag(b, elem); err != nil {
			return reflect.Value{}, err
		}
		d.refs.advance(id, stateReady)
		return bv, nil

	case elem.kind == descriptor.KindStruct:
		p, err := elem.local.New()
		if err != nil {
			return reflect.Value{}, d.fail(err)
		}
		d.refs.allocate(id, p)
		lost, err := d.populate(p.Elem(), elem)
		if err != nil {
			return reflect.Value{}, err
		}
		d.refs.advance(id, statePopulated)
		d.hooks = append(d.hooks, pendingHook{ptr: p, identity: elem.identity, lost: lost, path: slices.Clone(d.path)})
		d.recordLost(p, elem.identity, lost)
		return p, nil
	}

	p := reflect.New(wt.goType.Elem())
	d.refs.allocate(id, p)
	v, err := d.readValue(elem)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := d.assign(p.Elem(), v, elem.identity); err != nil {
		return reflect.Value{}, err
	}
	d.refs.advance(id, stateReady)
	return p, nil
}

func (d *Decoder) readListBody(id uint64, wt *wireType) (reflect.Value, error) {
	n, err := d.readCount("list length")
	if err != nil {
		return reflect.Value{}, err
	}
	s := reflect.MakeSlice(wt.goType, n, n)
	d.refs.allocate(id, s)
	elem := wt.args[0]
	for i := range n {
		d.path = append(d.path, "["+strconv.Itoa(i)+"]")
		v, err := d.readValue(elem)
		if err == nil {
			err = d.assign(s.Index(i), v, elem.identity)
		}
		d.path = d.path[:len(d.path)-1]
		if err != nil {
			return reflect.Value{}, err
		}
	}
	d.refs.advance(id, stateReady)
	return s, nil
}

func (d *Decoder) readMapBody(id uint64, wt *wireType) (reflect.Value, error) {
	n, err := d.readCount("map length")
	if err != nil {
		return reflect.Value{}, err
	}
	m := reflect.MakeMapWithSize(wt.goType, n)
	d.refs.allocate(id, m)
	keyType, valType := wt.goType.Key(), wt.goType.Elem()
	for range n {
		off := d.r.Offset()
		k, err := d.readValue(wt.args[0])
		if err != nil {
			return reflect.Value{}, err
		}
		kv, ok := convert(k, keyType)
		if !ok || !kv.Comparable() {
			return reflect.Value{}, d.invalid(off, "map key %s does not fit %s", typeName(k), keyType)
		}
		v, err := d.readValue(wt.args[1])
		if err != nil {
			return reflect.Value{}, err
		}
		vv, ok := convert(v, valType)
		if !ok {
			return reflect.Value{}, d.invalid(off, "map value %s does not fit %s", typeName(v), valType)
		}
		m.SetMapIndex(kv, vv)
	}
	d.refs.advance(id, stateReady)
	return m, nil
}

// assign stores v into the settable dst. Values of a resolved wire type always
// convert to their local type; a failure here means the stream contradicts its
// own declarations.
func (d *Decoder) assign(dst, v reflect.Value, identity string) error {
	cv, ok := convert(v, dst.Type())
	if !ok {
		return d.invalid(d.r.Offset(), "%s value %s does not fit %s", identity, typeName(v), dst.Type())
	}
	dst.Set(cv)
	return nil
}

// readValue reads the value form of wt.
func (d *Decoder) readValue(wt *wireType) (reflect.Value, error) {
	r := d.r
	var (
		x   any
		err error
	)
	switch wt.kind {
	case descriptor.KindBool:
		x, err = r.ReadBool()
	case descriptor.KindInt8:
		x, err = r.ReadInt8()
	case descriptor.KindInt16:
		x, err = r.ReadInt16()
	case descriptor.KindInt32:
		x, err = r.ReadInt32()
	case descriptor.KindInt64:
		x, err = r.ReadInt64()
	case descriptor.KindInt:
		var n int64
		n, err = r.ReadVarint()
		x = int(n)
		if err == nil && int64(int(n)) != n {
			return reflect.Value{}, errors.Overflow(errors.PhaseRead, r.Offset(), n, "int")
		}
	case descriptor.KindUint8:
		x, err = r.ReadUint8()
	case descriptor.KindUint16:
		x, err = r.ReadUint16()
	case descriptor.KindUint32:
		x, err = r.ReadUint32()
	case descriptor.KindUint64:
		x, err = r.ReadUint64()
	case descriptor.KindUint:
		var n uint64
		n, err = r.ReadUvarint()
		x = uint(n)
		if err == nil && uint64(uint(n)) != n {
			return reflect.Value{}, errors.Overflow(errors.PhaseRead, r.Offset(), n, "uint")
		}
	case descriptor.KindFloat32:
		x, err = r.ReadFloat32()
	case descriptor.KindFloat64:
		x, err = r.ReadFloat64()
	case descriptor.KindDecimal:
		x, err = r.ReadDecimal()
	case descriptor.KindChar:
		x, err = r.ReadChar()
	case descriptor.KindString:
		x, err = r.ReadString()
	case descriptor.KindBytes:
		x, err = r.ReadBytes()
	case descriptor.KindUUID:
		x, err = r.ReadUUID()
	case descriptor.KindCustom:
		return d.readCustom(wt)
	case descriptor.KindStruct:
		return d.readStructValue(wt)
	case descriptor.KindArray:
		return d.readArray(wt)
	case descriptor.KindPointer:
		if wt.nullable() {
			return d.readNullable(wt)
		}
		return d.readRef()
	case descriptor.KindList, descriptor.KindMap:
		return d.readRef()
	case descriptor.KindInterface:
		return d.readInterface()
	default:
		return reflect.Value{}, d.invalid(r.Offset(), "no value form for %s type %q", wt.kind, wt.identity)
	}
	if err != nil {
		return reflect.Value{}, err
	}

	v := reflect.ValueOf(x)
	if v.Type() != wt.goType && v.Type().ConvertibleTo(wt.goType) {
		v = v.Convert(wt.goType)
	}
	return v, nil
}

func (d *Decoder) readCustom(wt *wireType) (reflect.Value, error) {
	off := d.r.Offset()
	b, err := d.r.ReadBytes()
	if err != nil {
		return reflect.Value{}, err
	}
	if wt.local == nil {
		return reflect.ValueOf(b), nil
	}
	p := reflect.New(wt.goType)
	if err := p.Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(b); err != nil {
		return reflect.Value{}, errors.New(errors.PhaseRead, errors.KindInvalidData).
			Path(slices.Clone(d.path)...).
			Identity(wt.identity).
			Offset(off).
			Cause(err).
			Detail("UnmarshalBinary failed").
			Build()
	}
	return p.Elem(), nil
}

func (d *Decoder) readNullable(wt *wireType) (reflect.Value, error) {
	var (
		x      any
		absent bool
		err    error
	)
	switch wt.args[0].kind {
	case descriptor.KindString:
		var s *string
		s, err = d.r.ReadNullableString()
		absent = s == nil
		if s != nil {
			x = *s
		}
	case descriptor.KindInt, descriptor.KindInt64:
		var n *int64
		n, err = d.r.ReadNullableVarint()
		absent = n == nil
		if n != nil {
			x = *n
		}
	default:
		var n *uint64
		n, err = d.r.ReadNullableUvarint()
		absent = n == nil
		if n != nil {
			x = *n
		}
	}
	if err != nil || absent {
		return reflect.Value{}, err
	}
	elem := wt.goType.Elem()
	cv, ok := convert(reflect.ValueOf(x), elem)
	if !ok {
		return reflect.Value{}, errors.Overflow(errors.PhaseRead, d.r.Offset(), x, elem.String())
	}
	p := reflect.New(elem)
	p.Elem().Set(cv)
	return p, nil
}

// readStructValue reads an inline struct. Its hook runs as soon as it is
// populated since nothing else can refer to it.
func (d *Decoder) readStructValue(wt *wireType) (reflect.Value, error) {
	if err := d.enter(wt.identity); err != nil {
		return reflect.Value{}, err
	}
	defer d.leave()

	if wt.isBag() {
		b := &Bag{Identity: wt.identity}
		if err := d.readBag(b, wt); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil
	}

	p, err := wt.local.New()
	if err != nil {
		return reflect.Value{}, d.fail(err)
	}
	lost, err := d.populate(p.Elem(), wt)
	if err != nil {
		return reflect.Value{}, err
	}
	d.recordLost(p, wt.identity, lost)
	d.runHook(pendingHook{ptr: p, identity: wt.identity, lost: lost, path: slices.Clone(d.path)})
	return p.Elem(), nil
}

func (d *Decoder) readArray(wt *wireType) (reflect.Value, error) {
	if err := d.enter(wt.identity); err != nil {
		return reflect.Value{}, err
	}
	defer d.leave()

	a := reflect.New(wt.goType).Elem()
	if a.Len() != wt.length {
		return reflect.Value{}, d.invalid(d.r.Offset(), "array %q has length %d, local type %s", wt.identity, wt.length, wt.goType)
	}
	elem := wt.args[0]
	for i := range wt.length {
		v, err := d.readValue(elem)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := d.assign(a.Index(i), v, elem.identity); err != nil {
			return reflect.Value{}, err
		}
	}
	return a, nil
}

func (d *Decoder) readBag(b *Bag, wt *wireType) error {
	b.Fields = make([]Field, 0, len(wt.members))
	for _, m := range wt.members {
		d.path = append(d.path, m.name)
		v, err := d.readValue(m.typ)
		d.path = d.path[:len(d.path)-1]
		if err != nil {
			return err
		}
		b.Fields = append(b.Fields, Field{Name: m.name, Value: export(v)})
	}
	return nil
}

func (d *Decoder) recordLost(p reflect.Value, identity string, lost LostData) {
	if len(lost) == 0 {
		return
	}
	d.lost = append(d.lost, Lost{Instance: p.Interface(), Identity: identity, Fields: lost})
}

func (d *Decoder) runHook(h pendingHook) {
	hook, ok := h.ptr.Interface().(AfterDeserializer)
	if !ok {
		return
	}
	err := callHook(hook, h.lost)
	if err == nil {
		return
	}
	d.opts.Sink(Diagnostic{
		Severity: SeverityWarn,
		Kind:     errors.KindHookFailed,
		Path:     h.path,
		Identity: h.identity,
		Offset:   errors.NoOffset,
		Message:  "AfterDeserialize failed",
		Cause:    err,
	})
}

func callHook(h AfterDeserializer, lost LostData) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h.AfterDeserialize(lost)
}

func export(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}
