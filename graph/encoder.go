package graph

import (
	"cmp"
	"encoding"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/wire"
)

// Encoder writes object graphs to a wire.Writer.
//
// Each Encode call writes one self-contained stream: the format version then
// the root as a polymorphic slot. Reference and type ids are scoped to the
// call. An Encoder is not safe for concurrent use.
type Encoder struct {
	w    wire.Writer
	opts Options

	refs  writeRefs
	types writeTypes
	bags  map[string]*descriptor.TypeDescriptor

	anyDesc *descriptor.TypeDescriptor
	path    []string
	depth   int
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w wire.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: buildOptions(opts)}
}

// Encode writes v and flushes the writer. The graph is never mutated.
func (e *Encoder) Encode(v any) error {
	e.refs.reset()
	e.types.reset()
	e.bags = make(map[string]*descriptor.TypeDescriptor)
	e.path = e.path[:0]
	e.depth = 0

	anyDesc, err := e.opts.Registry.Describe(anyType)
	if err != nil {
		return err
	}
	e.anyDesc = anyDesc

	if err := e.w.WriteUvarint(Version); err != nil {
		return err
	}
	if err := e.writeInterface(reflect.ValueOf(&v).Elem()); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) fail(err error) error {
	return errors.WithPath(err, slices.Clone(e.path))
}

func (e *Encoder) enter(seg string) error {
	e.depth++
	e.path = append(e.path, seg)
	if e.depth > e.opts.MaxDepth {
		return errors.New(errors.PhaseWrite, errors.KindDepthExceeded).
			Path(e.path...).
			Detail("nesting exceeds %d", e.opts.MaxDepth).
			Build()
	}
	return nil
}

func (e *Encoder) leave() {
	e.depth--
	e.path = e.path[:len(e.path)-1]
}

// writeTypeRef declares d on first use and back-references it afterwards. The
// id is assigned before arguments and members are written so recursive types
// refer to themselves with tref.
func (e *Encoder) writeTypeRef(d *descriptor.TypeDescriptor) error {
	if id, ok := e.types.lookup(d); ok {
		if err := e.w.WriteTag(wire.TagTypeRef); err != nil {
			return err
		}
		return e.w.WriteUvarint(id)
	}

	id := e.types.insert(d)
	if err := e.w.WriteTag(wire.TagType); err != nil {
		return err
	}
	if err := e.w.WriteUvarint(id); err != nil {
		return err
	}
	if err := e.w.WriteUint8(uint8(d.Kind)); err != nil {
		return err
	}
	if err := e.w.WriteString(d.Identity); err != nil {
		return err
	}

	args, err := d.TypeArgs()
	if err != nil {
		return e.fail(err)
	}
	if err := e.w.WriteUvarint(uint64(len(args))); err != nil {
		return err
	}
	for _, a := range args {
		if err := e.writeTypeRef(a); err != nil {
			return err
		}
	}

	switch d.Kind {
	case descriptor.KindStruct:
		if err := e.w.WriteUvarint(uint64(len(d.Members))); err != nil {
			return err
		}
		for _, m := range d.Members {
			mt, err := m.Type()
			if err != nil {
				return errors.WithPath(err, append(slices.Clone(e.path), d.Identity, m.Name))
			}
			if err := e.w.WriteString(m.Name); err != nil {
				return err
			}
			if err := e.writeTypeRef(mt); err != nil {
				return err
			}
		}
	case descriptor.KindArray:
		if err := e.w.WriteUvarint(uint64(d.Len)); err != nil {
			return err
		}
	}
	return nil
}

// writeInterface writes a polymorphic slot. v has interface kind or is the
// dynamic value itself.
func (e *Encoder) writeInterface(v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return e.w.WriteTag(wire.TagNull)
		}
		v = v.Elem()
	}
	if v.Type() == bagPtrType {
		return e.writeBagRef(v)
	}

	d, err := e.opts.Registry.Describe(v.Type())
	if err != nil {
		return e.fail(err)
	}

	switch {
	case d.Kind == descriptor.KindPointer && !d.Nullable, d.Kind.IsReference():
		return e.writeRef(v, d)
	}

	if err := e.w.WriteTag(wire.TagValue); err != nil {
		return err
	}
	if err := e.writeTypeRef(d); err != nil {
		return err
	}
	return e.writeValue(v, d)
}

// writeRef writes a reference slot: nil, a back-reference, or a new instance
// frame carrying the slot's dynamic type.
func (e *Encoder) writeRef(v reflect.Value, d *descriptor.TypeDescriptor) error {
	if v.IsNil() {
		return e.w.WriteTag(wire.TagNull)
	}
	if v.Type() == bagPtrType {
		return e.writeBagRef(v)
	}

	key := keyOf(v)
	if id, ok := e.refs.lookup(key); ok {
		if err := e.w.WriteTag(wire.TagRef); err != nil {
			return err
		}
		return e.w.WriteUvarint(id)
	}

	id := e.refs.insert(key)
	if err := e.w.WriteTag(wire.TagNew); err != nil {
		return err
	}
	if err := e.w.WriteUvarint(id); err != nil {
		return err
	}
	if err := e.writeTypeRef(d); err != nil {
		return err
	}
	if err := e.enter(d.Identity); err != nil {
		return err
	}
	defer e.leave()

	switch d.Kind {
	case descriptor.KindPointer:
		elem, err := d.Elem()
		if err != nil {
			return e.fail(err)
		}
		return e.writeValue(v.Elem(), elem)
	case descriptor.KindList:
		return e.writeList(v, d)
	case descriptor.KindMap:
		return e.writeMap(v, d)
	}
	return e.fail(errors.Unsupported(errors.PhaseWrite, v.Type().String(), "not a reference type"))
}

func (e *Encoder) writeList(v reflect.Value, d *descriptor.TypeDescriptor) error {
	elem, err := d.Elem()
	if err != nil {
		return e.fail(err)
	}
	n := v.Len()
	if err := e.w.WriteUvarint(uint64(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e.path = append(e.path, "["+strconv.Itoa(i)+"]")
		err := e.writeValue(v.Index(i), elem)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeMap(v reflect.Value, d *descriptor.TypeDescriptor) error {
	key, err := d.Key()
	if err != nil {
		return e.fail(err)
	}
	elem, err := d.Elem()
	if err != nil {
		return e.fail(err)
	}

	keys := v.MapKeys()
	sortKeys(keys)
	if err := e.w.WriteUvarint(uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.writeValue(k, key); err != nil {
			return err
		}
		e.path = append(e.path, "["+keyString(k)+"]")
		err := e.writeValue(v.MapIndex(k), elem)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

// sortKeys orders keys of ordered kinds. Other key kinds keep map iteration
// order, so their output is not stable across runs.
func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	switch keys[0].Kind() {
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	case reflect.Bool:
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case b.Bool():
				return -1
			}
			return 1
		})
	}
}

func keyString(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return strconv.Quote(k.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return k.Type().String()
}

// writeValue writes v in the form its static descriptor d selects.
func (e *Encoder) writeValue(v reflect.Value, d *descriptor.TypeDescriptor) error {
	w := e.w
	switch d.Kind {
	case descriptor.KindBool:
		return w.WriteBool(v.Bool())
	case descriptor.KindInt8:
		return w.WriteInt8(int8(v.Int()))
	case descriptor.KindInt16:
		return w.WriteInt16(int16(v.Int()))
	case descriptor.KindInt32:
		return w.WriteInt32(int32(v.Int()))
	case descriptor.KindInt64:
		return w.WriteInt64(v.Int())
	case descriptor.KindInt:
		return w.WriteVarint(v.Int())
	case descriptor.KindUint8:
		return w.WriteUint8(uint8(v.Uint()))
	case descriptor.KindUint16:
		return w.WriteUint16(uint16(v.Uint()))
	case descriptor.KindUint32:
		return w.WriteUint32(uint32(v.Uint()))
	case descriptor.KindUint64:
		return w.WriteUint64(v.Uint())
	case descriptor.KindUint:
		return w.WriteUvarint(v.Uint())
	case descriptor.KindFloat32:
		return w.WriteFloat32(float32(v.Float()))
	case descriptor.KindFloat64:
		return w.WriteFloat64(v.Float())
	case descriptor.KindDecimal:
		return w.WriteDecimal(v.Interface().(wire.Decimal))
	case descriptor.KindChar:
		return w.WriteChar(wire.Char(v.Uint()))
	case descriptor.KindString:
		return w.WriteString(v.String())
	case descriptor.KindBytes:
		return w.WriteBytes(v.Bytes())
	case descriptor.KindUUID:
		return w.WriteUUID(v.Interface().(uuid.UUID))
	case descriptor.KindCustom:
		b, err := v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
		if err != nil {
			return e.fail(errors.New(errors.PhaseWrite, errors.KindMemberAccess).
				GoType(v.Type().String()).
				Cause(err).
				Detail("MarshalBinary failed").
				Build())
		}
		if b == nil {
			b = []byte{}
		}
		return w.WriteBytes(b)
	case descriptor.KindStruct:
		return e.writeStruct(v, d)
	case descriptor.KindArray:
		return e.writeArray(v, d)
	case descriptor.KindPointer:
		if d.Nullable {
			return e.writeNullable(v)
		}
		return e.writeRef(v, d)
	case descriptor.KindList, descriptor.KindMap:
		return e.writeRef(v, d)
	case descriptor.KindInterface:
		return e.writeInterface(v)
	}
	return e.fail(errors.Unsupported(errors.PhaseWrite, d.Identity, "no wire form for "+d.Kind.String()))
}

func (e *Encoder) writeNullable(v reflect.Value) error {
	switch v.Type().Elem().Kind() {
	case reflect.String:
		if v.IsNil() {
			return e.w.WriteNullableString(nil)
		}
		s := v.Elem().String()
		return e.w.WriteNullableString(&s)
	case reflect.Int, reflect.Int64:
		if v.IsNil() {
			return e.w.WriteNullableVarint(nil)
		}
		n := v.Elem().Int()
		return e.w.WriteNullableVarint(&n)
	default:
		if v.IsNil() {
			return e.w.WriteNullableUvarint(nil)
		}
		n := v.Elem().Uint()
		return e.w.WriteNullableUvarint(&n)
	}
}

func (e *Encoder) writeStruct(v reflect.Value, d *descriptor.TypeDescriptor) error {
	if err := e.enter(d.Identity); err != nil {
		return err
	}
	defer e.leave()

	if !v.CanAddr() {
		tmp := reflect.New(v.Type()).Elem()
		tmp.Set(v)
		v = tmp
	}
	for _, m := range d.Members {
		mt, err := m.Type()
		if err != nil {
			return e.fail(err)
		}
		mv := reflect.Zero(m.GoType())
		if m.CanGet {
			if mv, err = m.Get(v); err != nil {
				return e.fail(err)
			}
		}
		e.path = append(e.path, m.Name)
		err = e.writeValue(mv, mt)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeArray(v reflect.Value, d *descriptor.TypeDescriptor) error {
	elem, err := d.Elem()
	if err != nil {
		return e.fail(err)
	}
	if err := e.enter(d.Identity); err != nil {
		return err
	}
	defer e.leave()
	for i := 0; i < v.Len(); i++ {
		if err := e.writeValue(v.Index(i), elem); err != nil {
			return err
		}
	}
	return nil
}

// writeBagRef writes a *Bag as an instance of its original identity whose
// members are polymorphic slots.
func (e *Encoder) writeBagRef(v reflect.Value) error {
	if v.IsNil() {
		return e.w.WriteTag(wire.TagNull)
	}
	key := keyOf(v)
	if id, ok := e.refs.lookup(key); ok {
		if err := e.w.WriteTag(wire.TagRef); err != nil {
			return err
		}
		return e.w.WriteUvarint(id)
	}

	bag := v.Interface().(*Bag)
	ptr := e.bagDescriptor(bag)
	id := e.refs.insert(key)
	if err := e.w.WriteTag(wire.TagNew); err != nil {
		return err
	}
	if err := e.w.WriteUvarint(id); err != nil {
		return err
	}
	if err := e.writeTypeRef(ptr); err != nil {
		return err
	}
	if err := e.enter(bag.Identity); err != nil {
		return err
	}
	defer e.leave()

	for i := range bag.Fields {
		f := &bag.Fields[i]
		e.path = append(e.path, f.Name)
		err := e.writeInterface(reflect.ValueOf(&f.Value).Elem())
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

// bagDescriptor returns the pointer descriptor of a bag's shape, shared by
// bags with the same identity and field names.
func (e *Encoder) bagDescriptor(b *Bag) *descriptor.TypeDescriptor {
	key := b.Identity + "\x00" + strings.Join(b.Names(), "\x00")
	if d, ok := e.bags[key]; ok {
		return d
	}
	members := make([]descriptor.UnresolvedMember, len(b.Fields))
	for i, f := range b.Fields {
		members[i] = descriptor.UnresolvedMember{Name: f.Name, Type: e.anyDesc}
	}
	elem := descriptor.NewUnresolved(b.Identity, descriptor.KindStruct, nil, members)
	ptr := descriptor.NewUnresolved("*"+b.Identity, descriptor.KindPointer, []*descriptor.TypeDescriptor{elem}, nil)
	e.bags[key] = ptr
	return ptr
}
