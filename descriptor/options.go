package descriptor

import (
	"reflect"
)

// MemberOptions selects which members of a struct are serialized.
type MemberOptions struct {
	// IncludeUnexported serializes unexported fields.
	IncludeUnexported bool
	// IncludeProperties serializes accessor pairs registered with Property.
	IncludeProperties bool
	// IncludeFields serializes struct fields.
	IncludeFields bool
	// OptIn serializes only members carrying a graph tag or an Include option.
	OptIn bool
}

// DefaultMemberOptions serializes exported fields and registered properties.
func DefaultMemberOptions() MemberOptions {
	return MemberOptions{IncludeProperties: true, IncludeFields: true}
}

type property struct {
	name   string
	goType reflect.Type
	owner  reflect.Type
	get    func(ptr reflect.Value) reflect.Value
	set    func(ptr reflect.Value, v reflect.Value)
}

type typeConfig struct {
	identity    string
	unqualified bool
	constructor func() any
	external    bool
	activator   Activator
	typeArgs    []reflect.Type
	members     *MemberOptions
	renames     map[string]string
	excludes    map[string]bool
	includes    map[string]bool
	ordinals    map[string]int
	properties  []property
}

// Option configures the registration of one type.
type Option func(*typeConfig)

// WithIdentity overrides the derived wire identity.
func WithIdentity(identity string) Option {
	return func(c *typeConfig) { c.identity = identity }
}

// WithUnqualifiedIdentity drops the package path from the derived identity so
// the type matches across builds that move it between modules.
func WithUnqualifiedIdentity() Option {
	return func(c *typeConfig) { c.unqualified = true }
}

// WithConstructor registers a zero-argument constructor returning T or *T.
func WithConstructor(fn func() any) Option {
	return func(c *typeConfig) { c.constructor = fn }
}

// WithExternalFactory allocates instances through a, or through the registry
// activator when a is nil.
func WithExternalFactory(a Activator) Option {
	return func(c *typeConfig) {
		c.external = true
		c.activator = a
	}
}

// WithTypeArgs declares the type arguments of a generic instantiation, which
// reflection cannot recover.
func WithTypeArgs(args ...reflect.Type) Option {
	return func(c *typeConfig) { c.typeArgs = args }
}

// WithMembers overrides the registry's member selection for this type.
func WithMembers(opts MemberOptions) Option {
	return func(c *typeConfig) { c.members = &opts }
}

// Rename sets the wire name of a member by its Go name.
func Rename(goName, wireName string) Option {
	return func(c *typeConfig) {
		if c.renames == nil {
			c.renames = make(map[string]string)
		}
		c.renames[goName] = wireName
	}
}

// Exclude forces members out regardless of tags and member options.
func Exclude(goNames ...string) Option {
	return func(c *typeConfig) {
		if c.excludes == nil {
			c.excludes = make(map[string]bool)
		}
		for _, n := range goNames {
			c.excludes[n] = true
		}
	}
}

// Include forces members in regardless of member options.
func Include(goNames ...string) Option {
	return func(c *typeConfig) {
		if c.includes == nil {
			c.includes = make(map[string]bool)
		}
		for _, n := range goNames {
			c.includes[n] = true
		}
	}
}

// Ordinal sets the wire position of a member by its Go name.
func Ordinal(goName string, ordinal int) Option {
	return func(c *typeConfig) {
		if c.ordinals == nil {
			c.ordinals = make(map[string]int)
		}
		c.ordinals[goName] = ordinal
	}
}

// Property registers an accessor pair on *T as a member named name. A nil set
// makes the member read-only: it is written but dropped on read.
func Property[T, V any](name string, get func(*T) V, set func(*T, V)) Option {
	p := property{
		name:   name,
		goType: reflect.TypeOf((*V)(nil)).Elem(),
		owner:  reflect.TypeOf((*T)(nil)).Elem(),
	}
	if get != nil {
		p.get = func(ptr reflect.Value) reflect.Value {
			v := get(ptr.Interface().(*T))
			return reflect.ValueOf(&v).Elem()
		}
	}
	if set != nil {
		p.set = func(ptr reflect.Value, v reflect.Value) {
			var val V
			if v.IsValid() {
				reflect.ValueOf(&val).Elem().Set(v)
			}
			set(ptr.Interface().(*T), val)
		}
	}
	return func(c *typeConfig) { c.properties = append(c.properties, p) }
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithQualify selects package-path qualified identities (the default) or
// package-name identities.
func WithQualify(qualify bool) RegistryOption {
	return func(r *Registry) { r.qualify = qualify }
}

// WithActivator sets the activator used by types registered with a nil
// WithExternalFactory.
func WithActivator(a Activator) RegistryOption {
	return func(r *Registry) { r.activator = a }
}

// WithDefaultMembers sets the member selection for types without WithMembers.
func WithDefaultMembers(opts MemberOptions) RegistryOption {
	return func(r *Registry) { r.members = opts }
}
