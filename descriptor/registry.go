package descriptor

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/wire"
)

// Registry builds and caches type descriptors. It is safe for concurrent use:
// lookups are lock-free and concurrent first descriptions of one type race
// through LoadOrStore so a single descriptor wins.
type Registry struct {
	qualify   bool
	activator Activator
	members   MemberOptions

	cache      sync.Map // reflect.Type -> *TypeDescriptor
	byIdentity sync.Map // string -> *TypeDescriptor
	byUnbound  sync.Map // string -> *TypeDescriptor, any closed instantiation
	configs    sync.Map // reflect.Type -> *typeConfig
}

var builtins = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[int8](), reflect.TypeFor[int16](), reflect.TypeFor[int32](), reflect.TypeFor[int64](), reflect.TypeFor[int](),
	reflect.TypeFor[uint8](), reflect.TypeFor[uint16](), reflect.TypeFor[uint32](), reflect.TypeFor[uint64](), reflect.TypeFor[uint](),
	reflect.TypeFor[float32](), reflect.TypeFor[float64](),
	reflect.TypeFor[wire.Decimal](), reflect.TypeFor[wire.Char](),
	reflect.TypeFor[string](), reflect.TypeFor[[]byte](), reflect.TypeFor[uuid.UUID](),
	reflect.TypeFor[time.Time](), reflect.TypeFor[time.Duration](),
	reflect.TypeFor[any](),
}

// NewRegistry returns a registry with the builtin kinds preloaded.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{qualify: true, members: DefaultMemberOptions()}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range builtins {
		if _, err := r.Describe(t); err != nil {
			panic(err)
		}
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Qualify reports whether derived identities carry the package path.
func (r *Registry) Qualify() bool { return r.qualify }

func (r *Registry) config(t reflect.Type) *typeConfig {
	if v, ok := r.configs.Load(t); ok {
		return v.(*typeConfig)
	}
	return nil
}

// Register records options for the type of sample (a T or *T naming T) and
// describes it together with every type reachable from its members, so the
// identities are resolvable before the first read. Options must be registered
// before the type is first described.
func (r *Registry) Register(sample any, opts ...Option) (*TypeDescriptor, error) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return nil, errors.New(errors.PhaseDescribe, errors.KindNilPointer).
			Detail("cannot register untyped nil").
			Build()
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		t = t.Elem()
	}

	if len(opts) > 0 {
		cfg := &typeConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		for _, p := range cfg.properties {
			if p.owner != t {
				return nil, errors.New(errors.PhaseDescribe, errors.KindRegistration).
					GoType(t.String()).
					Detail("property %q is declared on %s", p.name, p.owner).
					Build()
			}
		}
		if prev, loaded := r.configs.LoadOrStore(t, cfg); loaded && prev != cfg {
			return nil, errors.New(errors.PhaseDescribe, errors.KindRegistration).
				GoType(t.String()).
				Detail("type is already registered").
				Build()
		}
		if _, described := r.cache.Load(t); described {
			r.configs.Delete(t)
			return nil, errors.New(errors.PhaseDescribe, errors.KindRegistration).
				GoType(t.String()).
				Detail("type was described before registration").
				Build()
		}
	}

	return r.Preload(t)
}

// Preload describes t and every type reachable from it.
func (r *Registry) Preload(t reflect.Type) (*TypeDescriptor, error) {
	d, err := r.Describe(t)
	if err != nil {
		return nil, err
	}
	if err := r.preload(d, make(map[*TypeDescriptor]bool)); err != nil {
		return nil, err
	}
	return d, nil
}

// MustRegister is Register that panics on error, for package initialization.
func (r *Registry) MustRegister(sample any, opts ...Option) *TypeDescriptor {
	d, err := r.Register(sample, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (r *Registry) preload(d *TypeDescriptor, seen map[*TypeDescriptor]bool) error {
	if seen[d] {
		return nil
	}
	seen[d] = true
	for _, m := range d.Members {
		mt, err := m.Type()
		if err != nil {
			return err
		}
		if err := r.preload(mt, seen); err != nil {
			return err
		}
	}
	args, err := d.TypeArgs()
	if err != nil {
		return err
	}
	for _, a := range args {
		if err := r.preload(a, seen); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns the descriptor of t, building it on first use.
func (r *Registry) Describe(t reflect.Type) (*TypeDescriptor, error) {
	if t == nil {
		return nil, errors.New(errors.PhaseDescribe, errors.KindNilPointer).
			Detail("Go type cannot be nil").
			Build()
	}
	if cached, ok := r.cache.Load(t); ok {
		return cached.(*TypeDescriptor), nil
	}

	d, err := r.build(t)
	if err != nil {
		return nil, err
	}

	actual, loaded := r.cache.LoadOrStore(t, d)
	if loaded {
		return actual.(*TypeDescriptor), nil
	}
	r.byIdentity.LoadOrStore(d.Identity, d)
	if d.IsGeneric() {
		r.byUnbound.LoadOrStore(d.Unbound, d)
	}
	Logger().Debug("described type",
		zap.String("identity", d.Identity),
		zap.Stringer("kind", d.Kind),
		zap.Stringer("go_type", t),
		zap.Int("members", len(d.Members)))
	return d, nil
}

// DescribeValue describes the dynamic type of v.
func (r *Registry) DescribeValue(v any) (*TypeDescriptor, error) {
	return r.Describe(reflect.TypeOf(v))
}

// Resolve maps a wire identity to a descriptor known to this registry.
func (r *Registry) Resolve(identity string) (*TypeDescriptor, bool) {
	if v, ok := r.byIdentity.Load(identity); ok {
		return v.(*TypeDescriptor), true
	}
	return nil, false
}

// Open returns the metadata-only form of a generic type from the unbound
// identity of any instantiation described so far.
func (r *Registry) Open(unbound string) (*TypeDescriptor, error) {
	v, ok := r.byUnbound.Load(unbound)
	if !ok {
		return nil, errors.New(errors.PhaseDescribe, errors.KindUnresolvedType).
			Identity(unbound).
			Detail("no instantiation of generic type is known").
			Build()
	}
	closed := v.(*TypeDescriptor)
	open := &TypeDescriptor{
		Identity:    unbound,
		Kind:        closed.Kind,
		Unbound:     unbound,
		Arity:       closed.Arity,
		Open:        true,
		registry:    r,
		fixedArgs:   true,
		memberIndex: make(map[string]*MemberDescriptor, len(closed.Members)),
	}
	for _, m := range closed.Members {
		om := &MemberDescriptor{
			Name:     m.Name,
			GoName:   m.GoName,
			Ordinal:  m.Ordinal,
			CanGet:   m.CanGet,
			CanSet:   m.CanSet,
			Property: m.Property,
			owner:    open,
		}
		open.Members = append(open.Members, om)
		open.memberIndex[om.Name] = om
	}
	return open, nil
}

// NewUnresolved builds a descriptor for a wire type with no local Go type.
// Member types and type arguments are fixed by the caller.
func NewUnresolved(identity string, kind Kind, args []*TypeDescriptor, members []UnresolvedMember) *TypeDescriptor {
	d := &TypeDescriptor{
		Identity:    identity,
		Kind:        kind,
		Arity:       len(args),
		Unresolved:  true,
		fixedArgs:   true,
		args:        args,
		memberIndex: make(map[string]*MemberDescriptor, len(members)),
	}
	for i, um := range members {
		m := &MemberDescriptor{
			Name:    um.Name,
			GoName:  um.Name,
			Ordinal: i,
			CanGet:  true,
			CanSet:  true,
			owner:   d,
			typ:     um.Type,
		}
		m.typeOnce.Do(func() {})
		d.Members = append(d.Members, m)
		d.memberIndex[m.Name] = m
	}
	return d
}

// UnresolvedMember is one wire member of an unresolved struct.
type UnresolvedMember struct {
	Name string
	Type *TypeDescriptor
}

func (r *Registry) build(t reflect.Type) (*TypeDescriptor, error) {
	kind, ok := kindOf(t)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseDescribe, t.String(), t.Kind().String()+" has no wire form")
	}

	cfg := r.config(t)
	d := &TypeDescriptor{
		Identity: r.identityOf(t),
		Kind:     kind,
		GoType:   t,
		registry: r,
	}

	switch kind {
	case KindPointer:
		d.Nullable = isNullable(t.Elem())
		d.Arity = 1
		d.argsFn = r.argsOf(t.Elem())
	case KindList:
		d.Arity = 1
		d.argsFn = r.argsOf(t.Elem())
	case KindArray:
		d.Arity = 1
		d.Len = t.Len()
		d.argsFn = r.argsOf(t.Elem())
	case KindMap:
		d.Arity = 2
		d.argsFn = r.argsOf(t.Key(), t.Elem())
	case KindStruct:
		if err := r.buildStruct(d, t, cfg); err != nil {
			return nil, err
		}
	}

	if t.Name() != "" && t.PkgPath() != "" && !kind.HasElem() {
		if _, unbound := r.namedIdentity(t, cfg); unbound != "" {
			d.Unbound = unbound
			r.genericArgs(d, t, cfg)
		}
	}
	return d, nil
}

func (r *Registry) argsOf(types ...reflect.Type) func() ([]*TypeDescriptor, error) {
	return func() ([]*TypeDescriptor, error) {
		out := make([]*TypeDescriptor, 0, len(types))
		for _, t := range types {
			d, err := r.Describe(t)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}
}

// genericArgs installs the type arguments of a generic instantiation. Explicit
// WithTypeArgs win; otherwise the arguments are looked up by the identities
// spelled in the type name, falling back to open placeholders.
func (r *Registry) genericArgs(d *TypeDescriptor, t reflect.Type, cfg *typeConfig) {
	if cfg != nil && len(cfg.typeArgs) > 0 {
		d.Arity = len(cfg.typeArgs)
		d.argsFn = r.argsOf(cfg.typeArgs...)
		return
	}
	_, raw, _ := splitGeneric(t.Name())
	names := splitArgs(raw)
	qualify := r.qualify && (cfg == nil || !cfg.unqualified)
	d.Arity = len(names)
	d.argsFn = func() ([]*TypeDescriptor, error) {
		r.describeReachable(t, make(map[reflect.Type]bool))
		out := make([]*TypeDescriptor, 0, len(names))
		for _, n := range names {
			if !qualify {
				n = unqualify(n)
			}
			if a, ok := r.Resolve(n); ok {
				out = append(out, a)
				continue
			}
			out = append(out, &TypeDescriptor{Identity: n, Open: true, fixedArgs: true, registry: r})
		}
		return out, nil
	}
}

// describeReachable describes the Go types reachable from t through exported
// fields and element types, so argument identities spelled in a generic type
// name resolve. Types with no wire form are skipped.
func (r *Registry) describeReachable(t reflect.Type, seen map[reflect.Type]bool) {
	if seen[t] {
		return
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		r.describeReachable(t.Elem(), seen)
	case reflect.Map:
		r.describeReachable(t.Key(), seen)
		r.describeReachable(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() {
				r.describeReachable(f.Type, seen)
			}
		}
	}
	if _, ok := kindOf(t); ok {
		_, _ = r.Describe(t)
	}
}

func (r *Registry) buildStruct(d *TypeDescriptor, t reflect.Type, cfg *typeConfig) error {
	opts := r.members
	if cfg != nil && cfg.members != nil {
		opts = *cfg.members
	}

	members, err := buildMembers(d, t, cfg, opts)
	if err != nil {
		return err
	}
	d.Members = members
	d.memberIndex = make(map[string]*MemberDescriptor, len(members))
	for _, m := range members {
		if _, dup := d.memberIndex[m.Name]; dup {
			return errors.New(errors.PhaseDescribe, errors.KindRegistration).
				GoType(t.String()).
				Path(m.Name).
				Detail("duplicate wire member name").
				Build()
		}
		d.memberIndex[m.Name] = m
	}

	switch {
	case cfg != nil && cfg.constructor != nil:
		d.Strategy = StrategyConstructor
		d.constructor = cfg.constructor
	case cfg != nil && cfg.external:
		d.Strategy = StrategyExternal
		d.activator = cfg.activator
	default:
		d.Strategy = StrategyZeroed
	}
	return nil
}
