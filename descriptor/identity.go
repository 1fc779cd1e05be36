package descriptor

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/wire"
)

var (
	decimalType           = reflect.TypeOf(wire.Decimal{})
	charType              = reflect.TypeOf(wire.Char(0))
	uuidType              = reflect.TypeOf(uuid.UUID{})
	byteType              = reflect.TypeOf(byte(0))
	identifierType        = reflect.TypeOf((*Identifier)(nil)).Elem()
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// kindOf maps a Go type to its wire kind. ok is false for types with no wire
// form: channels, functions, complex numbers and unsafe pointers.
func kindOf(t reflect.Type) (k Kind, ok bool) {
	switch t {
	case decimalType:
		return KindDecimal, true
	case charType:
		return KindChar, true
	case uuidType:
		return KindUUID, true
	}
	if isCustom(t) {
		return KindCustom, true
	}

	switch t.Kind() {
	case reflect.Bool:
		return KindBool, true
	case reflect.Int8:
		return KindInt8, true
	case reflect.Int16:
		return KindInt16, true
	case reflect.Int32:
		return KindInt32, true
	case reflect.Int64:
		return KindInt64, true
	case reflect.Int:
		return KindInt, true
	case reflect.Uint8:
		return KindUint8, true
	case reflect.Uint16:
		return KindUint16, true
	case reflect.Uint32:
		return KindUint32, true
	case reflect.Uint64:
		return KindUint64, true
	case reflect.Uint:
		return KindUint, true
	case reflect.Float32:
		return KindFloat32, true
	case reflect.Float64:
		return KindFloat64, true
	case reflect.String:
		return KindString, true
	case reflect.Slice:
		if t.Elem() == byteType {
			return KindBytes, true
		}
		return KindList, true
	case reflect.Array:
		return KindArray, true
	case reflect.Map:
		return KindMap, true
	case reflect.Pointer:
		return KindPointer, true
	case reflect.Struct:
		return KindStruct, true
	case reflect.Interface:
		return KindInterface, true
	}
	return KindUnknown, false
}

func isCustom(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return false
	}
	return t.Implements(binaryMarshalerType) && reflect.PointerTo(t).Implements(binaryUnmarshalerType)
}

// isNullable reports whether pointers to t use the nullable primitive forms.
func isNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return !isCustom(t)
	}
	return false
}

// identityOf derives the wire identity of t. Unnamed composites are spelled
// from their parts so they never need a descriptor of their own.
func (r *Registry) identityOf(t reflect.Type) string {
	cfg := r.config(t)
	if cfg != nil && cfg.identity != "" {
		return cfg.identity
	}
	if id := selfIdentity(t); id != "" {
		return id
	}

	switch t {
	case decimalType:
		return "decimal"
	case charType:
		return "char"
	case uuidType:
		return "uuid"
	}

	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		id, _ := r.namedIdentity(t, cfg)
		return id
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + r.identityOf(t.Elem())
	case reflect.Slice:
		if t.Elem() == byteType {
			return "bytes"
		}
		return "[]" + r.identityOf(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + r.identityOf(t.Elem())
	case reflect.Map:
		return "map[" + r.identityOf(t.Key()) + "]" + r.identityOf(t.Elem())
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
	}
	return t.String()
}

// namedIdentity returns the identity and, for generic instantiations, the
// unbound identity of a named type declared in a package.
func (r *Registry) namedIdentity(t reflect.Type, cfg *typeConfig) (identity, unbound string) {
	qualify := r.qualify && (cfg == nil || !cfg.unqualified)
	prefix := t.PkgPath()
	if !qualify {
		prefix = packageName(t)
	}

	base, rawArgs, generic := splitGeneric(t.Name())
	unbound = prefix + "." + base
	if !generic {
		return unbound, ""
	}

	var args []string
	if cfg != nil && len(cfg.typeArgs) > 0 {
		for _, a := range cfg.typeArgs {
			args = append(args, r.identityOf(a))
		}
	} else {
		for _, a := range splitArgs(rawArgs) {
			if !qualify {
				a = unqualify(a)
			}
			args = append(args, a)
		}
	}
	return unbound + "[" + strings.Join(args, ",") + "]", unbound
}

func selfIdentity(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return ""
	}
	if t.Implements(identifierType) {
		return reflect.Zero(t).Interface().(Identifier).GraphIdentity()
	}
	if reflect.PointerTo(t).Implements(identifierType) {
		return reflect.New(t).Interface().(Identifier).GraphIdentity()
	}
	return ""
}

// packageName is the declared package name, which reflect only exposes through
// the type's string form.
func packageName(t reflect.Type) string {
	s := t.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// splitGeneric splits "Box[int32]" into "Box" and "int32".
func splitGeneric(name string) (base, args string, ok bool) {
	i := strings.IndexByte(name, '[')
	if i < 0 || !strings.HasSuffix(name, "]") {
		return name, "", false
	}
	return name[:i], name[i+1 : len(name)-1], true
}

// splitArgs splits a type argument list on top-level commas.
func splitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// unqualify reduces every package path in a type expression to its last
// element: "map[string]example.com/x/y.V" becomes "map[string]y.V".
func unqualify(s string) string {
	var b strings.Builder
	start := 0
	flush := func(end int) {
		seg := s[start:end]
		if i := strings.LastIndexByte(seg, '/'); i >= 0 {
			seg = seg[i+1:]
		}
		b.WriteString(seg)
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', ']', ',', '*', ' ':
			flush(i)
			b.WriteByte(s[i])
			start = i + 1
		}
	}
	flush(len(s))
	return b.String()
}
