package descriptor

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/wippyai/graphcodec/errors"
)

// Strategy selects how an instance is allocated before population.
type Strategy uint8

const (
	StrategyZeroed      Strategy = iota // reflect.New, no constructor runs
	StrategyConstructor                 // registered zero-argument constructor
	StrategyExternal                    // injected Activator
)

func (s Strategy) String() string {
	switch s {
	case StrategyConstructor:
		return "constructor"
	case StrategyExternal:
		return "external"
	default:
		return "zeroed"
	}
}

// Activator builds an instance for types with no usable constructor. It returns
// either a T or a *T for the descriptor's Go type.
type Activator func(*TypeDescriptor) (any, error)

// Identifier lets a type pick its own wire identity.
type Identifier interface {
	GraphIdentity() string
}

// TypeDescriptor is the cached wire metadata of one type. Descriptors are
// shared across goroutines and never change after creation.
type TypeDescriptor struct {
	// Identity defines wire compatibility. Two descriptors with the same
	// identity describe the same wire type regardless of Go type.
	Identity string
	Kind     Kind
	// GoType is nil for unresolved and open descriptors.
	GoType  reflect.Type
	Members []*MemberDescriptor
	// Strategy applies to struct kinds.
	Strategy Strategy

	// Unbound is the identity without type arguments for generic types.
	Unbound string
	// Arity is the number of type arguments: generic parameters for named
	// generics, element types for pointers, lists, arrays and maps.
	Arity int
	// Len is the array length.
	Len int
	// Nullable marks pointers to string and variable-length integers, which
	// are written through the nullable primitive forms and never tracked.
	Nullable bool

	// Unresolved descriptors come from the wire and have no local Go type.
	Unresolved bool
	// Open descriptors carry metadata only and cannot be instantiated.
	Open bool

	registry    *Registry
	constructor func() any
	activator   Activator
	memberIndex map[string]*MemberDescriptor

	argsOnce  sync.Once
	argsFn    func() ([]*TypeDescriptor, error)
	args      []*TypeDescriptor
	argsErr   error
	fixedArgs bool
}

// TypeArgs returns the ordered type argument descriptors. For pointers, lists
// and arrays this is the element type; for maps the key then the value type.
func (d *TypeDescriptor) TypeArgs() ([]*TypeDescriptor, error) {
	if d.fixedArgs || d.argsFn == nil {
		return d.args, nil
	}
	d.argsOnce.Do(func() {
		d.args, d.argsErr = d.argsFn()
	})
	return d.args, d.argsErr
}

// Elem returns the element type of a pointer, list or array, or the value type
// of a map.
func (d *TypeDescriptor) Elem() (*TypeDescriptor, error) {
	args, err := d.TypeArgs()
	if err != nil {
		return nil, err
	}
	if !d.Kind.HasElem() || len(args) == 0 {
		return nil, errors.New(errors.PhaseDescribe, errors.KindInvalidInput).
			Identity(d.Identity).
			Detail("%s type has no element", d.Kind).
			Build()
	}
	return args[len(args)-1], nil
}

// Key returns the key type of a map.
func (d *TypeDescriptor) Key() (*TypeDescriptor, error) {
	args, err := d.TypeArgs()
	if err != nil {
		return nil, err
	}
	if d.Kind != KindMap || len(args) != 2 {
		return nil, errors.New(errors.PhaseDescribe, errors.KindInvalidInput).
			Identity(d.Identity).
			Detail("%s type has no key", d.Kind).
			Build()
	}
	return args[0], nil
}

// IsReferenceType reports whether instances are identity-tracked collections.
func (d *TypeDescriptor) IsReferenceType() bool {
	return d.Kind.IsReference()
}

// IsGeneric reports whether d is a closed instantiation of a generic type.
func (d *TypeDescriptor) IsGeneric() bool {
	return d.Unbound != "" && d.Unbound != d.Identity
}

// Member returns the member with the given wire name, or nil.
func (d *TypeDescriptor) Member(name string) *MemberDescriptor {
	return d.memberIndex[name]
}

func (d *TypeDescriptor) String() string {
	return d.Identity
}

// New allocates an instance according to Strategy and returns a pointer to it.
func (d *TypeDescriptor) New() (reflect.Value, error) {
	if d.GoType == nil || d.Open {
		return reflect.Value{}, errors.New(errors.PhaseRead, errors.KindUnsupported).
			Identity(d.Identity).
			Detail("cannot instantiate %s descriptor", d.describeState()).
			Build()
	}

	switch d.Strategy {
	case StrategyConstructor:
		return d.adopt(d.constructor(), "constructor")
	case StrategyExternal:
		act := d.activator
		if act == nil && d.registry != nil {
			act = d.registry.activator
		}
		if act == nil {
			return reflect.Value{}, errors.New(errors.PhaseRead, errors.KindRegistration).
				Identity(d.Identity).
				GoType(d.GoType.String()).
				Detail("external factory strategy without an activator").
				Build()
		}
		v, err := act(d)
		if err != nil {
			return reflect.Value{}, errors.New(errors.PhaseRead, errors.KindRegistration).
				Identity(d.Identity).
				GoType(d.GoType.String()).
				Cause(err).
				Detail("activator failed").
				Build()
		}
		return d.adopt(v, "activator")
	default:
		return reflect.New(d.GoType), nil
	}
}

func (d *TypeDescriptor) adopt(v any, source string) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.IsValid() && rv.Type() == reflect.PointerTo(d.GoType) && !rv.IsNil():
		return rv, nil
	case rv.IsValid() && rv.Type() == d.GoType:
		p := reflect.New(d.GoType)
		p.Elem().Set(rv)
		return p, nil
	}
	return reflect.Value{}, errors.New(errors.PhaseRead, errors.KindRegistration).
		Identity(d.Identity).
		GoType(d.GoType.String()).
		Detail("%s returned %T", source, v).
		Build()
}

func (d *TypeDescriptor) describeState() string {
	if d.Open {
		return "open"
	}
	return "unresolved"
}

// MemberDescriptor is one serializable member of a struct type.
type MemberDescriptor struct {
	// Name is the wire name; GoName is the field or property name.
	Name     string
	GoName   string
	Ordinal  int
	CanGet   bool
	CanSet   bool
	Property bool

	owner    *TypeDescriptor
	goType   reflect.Type
	index    []int
	exported bool
	get      func(ptr reflect.Value) reflect.Value
	set      func(ptr reflect.Value, v reflect.Value)

	typeOnce sync.Once
	typ      *TypeDescriptor
	typeErr  error
}

// GoType returns the member's static Go type, nil for unresolved members.
func (m *MemberDescriptor) GoType() reflect.Type { return m.goType }

// Type resolves the member's value type on first use, which keeps recursive
// type graphs finite.
func (m *MemberDescriptor) Type() (*TypeDescriptor, error) {
	m.typeOnce.Do(func() {
		if m.typ != nil || m.goType == nil {
			return
		}
		m.typ, m.typeErr = m.owner.registry.Describe(m.goType)
	})
	if m.typ == nil && m.typeErr == nil {
		return nil, errors.New(errors.PhaseDescribe, errors.KindUnresolvedType).
			Path(m.Name).
			Identity(m.owner.Identity).
			Detail("member has no type").
			Build()
	}
	return m.typ, m.typeErr
}

// Get reads the member from the addressable struct value sv.
func (m *MemberDescriptor) Get(sv reflect.Value) (reflect.Value, error) {
	if !m.CanGet {
		return reflect.Value{}, m.accessError("member is write-only")
	}
	if m.get != nil {
		return m.get(sv.Addr()), nil
	}
	f := sv.FieldByIndex(m.index)
	if !m.exported {
		f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
	}
	return f, nil
}

// Set assigns v to the member of the addressable struct value sv. v must be
// assignable to GoType.
func (m *MemberDescriptor) Set(sv reflect.Value, v reflect.Value) error {
	if !m.CanSet {
		return m.accessError("member is read-only")
	}
	if m.set != nil {
		m.set(sv.Addr(), v)
		return nil
	}
	f := sv.FieldByIndex(m.index)
	if !m.exported {
		f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
	}
	f.Set(v)
	return nil
}

func (m *MemberDescriptor) accessError(msg string) error {
	return errors.New(errors.PhaseRead, errors.KindMemberAccess).
		Path(m.Name).
		Identity(m.owner.Identity).
		Detail("%s", msg).
		Build()
}
