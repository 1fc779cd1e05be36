package descriptor_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wippyai/graphcodec/descriptor"
)

type Counter struct {
	Start int
	Step  int
}

type Validated struct {
	Name string
}

// NewValidated rejects empty names; the codec never calls it.
func NewValidated(name string) (*Validated, error) {
	if name == "" {
		return nil, errors.New("name required")
	}
	return &Validated{Name: name}, nil
}

type Service struct {
	Endpoint string
}

func TestStrategy_Constructor(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Counter{}, descriptor.WithConstructor(func() any {
		return &Counter{Step: 1}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if d.Strategy != descriptor.StrategyConstructor {
		t.Fatalf("strategy = %s", d.Strategy)
	}
	p, err := d.New()
	if err != nil {
		t.Fatal(err)
	}
	if c := p.Interface().(*Counter); c.Step != 1 {
		t.Errorf("constructor default lost: %+v", c)
	}
}

func TestStrategy_ConstructorValue(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Counter{}, descriptor.WithConstructor(func() any {
		return Counter{Start: 5}
	}))
	if err != nil {
		t.Fatal(err)
	}
	p, err := d.New()
	if err != nil {
		t.Fatal(err)
	}
	if c := p.Interface().(*Counter); c.Start != 5 {
		t.Errorf("got %+v", c)
	}
}

func TestStrategy_Zeroed(t *testing.T) {
	r := descriptor.NewRegistry()
	d := describe(t, r, Validated{})
	if d.Strategy != descriptor.StrategyZeroed {
		t.Fatalf("strategy = %s", d.Strategy)
	}
	p, err := d.New()
	if err != nil {
		t.Fatal(err)
	}
	if v := p.Interface().(*Validated); v.Name != "" {
		t.Errorf("zeroed instance has %q", v.Name)
	}
}

func TestStrategy_External(t *testing.T) {
	var seen string
	r := descriptor.NewRegistry(descriptor.WithActivator(func(d *descriptor.TypeDescriptor) (any, error) {
		seen = d.Identity
		return &Service{Endpoint: "injected"}, nil
	}))
	d, err := r.Register(Service{}, descriptor.WithExternalFactory(nil))
	if err != nil {
		t.Fatal(err)
	}
	p, err := d.New()
	if err != nil {
		t.Fatal(err)
	}
	if s := p.Interface().(*Service); s.Endpoint != "injected" {
		t.Errorf("got %+v", s)
	}
	if seen != d.Identity {
		t.Errorf("activator saw %q", seen)
	}
}

func TestStrategy_ExternalErrors(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Service{}, descriptor.WithExternalFactory(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.New(); err == nil {
		t.Error("missing activator should fail")
	}

	r2 := descriptor.NewRegistry()
	d2, err := r2.Register(Service{}, descriptor.WithExternalFactory(func(*descriptor.TypeDescriptor) (any, error) {
		return &Counter{}, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d2.New(); err == nil {
		t.Error("activator returning the wrong type should fail")
	}
}

func TestGenerics_ClosedForms(t *testing.T) {
	r := descriptor.NewRegistry()
	a := describe(t, r, Box[int32]{})
	b := describe(t, r, Box[string]{})

	if a.Identity == b.Identity {
		t.Fatalf("instantiations share identity %q", a.Identity)
	}
	if a.Unbound != b.Unbound || a.Unbound != pkg+".Box" {
		t.Errorf("unbound = %q / %q", a.Unbound, b.Unbound)
	}
	if !a.IsGeneric() || a.Arity != 1 {
		t.Errorf("arity = %d", a.Arity)
	}
	args, err := a.TypeArgs()
	if err != nil || len(args) != 1 || args[0].Kind != descriptor.KindInt32 {
		t.Fatalf("args = %v, %v", args, err)
	}
	mt, _ := b.Member("Value").Type()
	if mt.Kind != descriptor.KindString {
		t.Errorf("Box[string].Value kind = %s", mt.Kind)
	}
}

func TestGenerics_UserTypeArgs(t *testing.T) {
	tests := []struct {
		name   string
		sample any
		want   reflect.Type
	}{
		{name: "struct", sample: Box[Line]{}, want: reflect.TypeOf(Line{})},
		{name: "pointer", sample: Box[*Node]{}, want: reflect.TypeOf((*Node)(nil))},
		{name: "slice", sample: Box[[]Line]{}, want: reflect.TypeOf([]Line(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := descriptor.NewRegistry()
			d, err := r.Register(tt.sample)
			if err != nil {
				t.Fatal(err)
			}
			args, err := d.TypeArgs()
			if err != nil || len(args) != 1 {
				t.Fatalf("args = %v, %v", args, err)
			}
			if args[0].Open || args[0].Kind == descriptor.KindUnknown || args[0].GoType != tt.want {
				t.Errorf("arg = %+v, want resolved %s", args[0], tt.want)
			}
		})
	}
}

func TestGenerics_UserTypeArgsWithoutPreload(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Describe(reflect.TypeOf(Box[Line]{}))
	if err != nil {
		t.Fatal(err)
	}
	args, err := d.TypeArgs()
	if err != nil || len(args) != 1 {
		t.Fatalf("args = %v, %v", args, err)
	}
	if args[0].Kind != descriptor.KindStruct || args[0].GoType != reflect.TypeOf(Line{}) {
		t.Errorf("arg = %+v", args[0])
	}
}

func TestGenerics_ExplicitTypeArgs(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Pair[string, *Line]{}, descriptor.WithTypeArgs(
		reflect.TypeOf(""), reflect.TypeOf((*Line)(nil)),
	))
	if err != nil {
		t.Fatal(err)
	}
	want := pkg + ".Pair[string,*" + pkg + ".Line]"
	if d.Identity != want {
		t.Errorf("identity = %q, want %q", d.Identity, want)
	}
	args, err := d.TypeArgs()
	if err != nil || len(args) != 2 || args[1].Kind != descriptor.KindPointer {
		t.Fatalf("args = %v, %v", args, err)
	}
}

func TestGenerics_Open(t *testing.T) {
	r := descriptor.NewRegistry()
	if _, err := r.Open(pkg + ".Box"); err == nil {
		t.Fatal("no instantiation is known yet")
	}
	describe(t, r, Box[int32]{})

	open, err := r.Open(pkg + ".Box")
	if err != nil {
		t.Fatal(err)
	}
	if !open.Open || open.GoType != nil || open.Arity != 1 {
		t.Errorf("open form = %+v", open)
	}
	if open.Member("Value") == nil {
		t.Error("open form lost member metadata")
	}
	if _, err := open.New(); err == nil {
		t.Error("open form must not instantiate")
	}
}

func TestResolve(t *testing.T) {
	r := descriptor.NewRegistry()
	if _, ok := r.Resolve(pkg + ".Order"); ok {
		t.Fatal("resolved before description")
	}
	if _, err := r.Register(Order{}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{pkg + ".Order", pkg + ".Line", "[]*" + pkg + ".Line", "int32"} {
		if _, ok := r.Resolve(id); !ok {
			t.Errorf("%q not resolvable after Register", id)
		}
	}
}

func TestNewUnresolved(t *testing.T) {
	r := descriptor.NewRegistry()
	str := describe(t, r, "")
	d := descriptor.NewUnresolved("legacy.Thing", descriptor.KindStruct, nil, []descriptor.UnresolvedMember{
		{Name: "A", Type: str},
		{Name: "B", Type: str},
	})
	if !d.Unresolved || d.GoType != nil {
		t.Errorf("flags = %+v", d)
	}
	if got := memberNames(d); len(got) != 2 || got[1] != "B" {
		t.Errorf("members = %v", got)
	}
	if mt, err := d.Member("A").Type(); err != nil || mt != str {
		t.Errorf("member type = %v, %v", mt, err)
	}
	if _, err := d.New(); err == nil {
		t.Error("unresolved descriptor must not instantiate")
	}
}
