package descriptor_test

import (
	"reflect"
	"slices"
	"testing"

	"github.com/wippyai/graphcodec/descriptor"
)

type Account struct {
	Owner   string
	Balance int64  `graph:"bal,ordinal=5"`
	secret  string `graph:",include"`
	hidden  int
	Skipped bool `graph:"-"`
}

type Tagged struct {
	Plain  string
	Chosen string `graph:"chosen"`
	Also   int    `graph:""`
}

type Temperature struct {
	celsius float64
}

func (t *Temperature) Fahrenheit() float64     { return t.celsius*9/5 + 32 }
func (t *Temperature) SetFahrenheit(f float64) { t.celsius = (f - 32) * 5 / 9 }

func TestMembers_DefaultSelection(t *testing.T) {
	r := descriptor.NewRegistry()
	d := describe(t, r, Account{})

	want := []string{"Owner", "secret", "bal"}
	if got := memberNames(d); !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}
	if m := d.Member("bal"); m == nil || m.GoName != "Balance" || m.Ordinal != 5 {
		t.Errorf("bal = %+v", m)
	}
	if d.Member("Balance") != nil {
		t.Error("member is indexed by Go name")
	}
}

func TestMembers_IncludeUnexported(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Account{}, descriptor.WithMembers(descriptor.MemberOptions{
		IncludeFields:     true,
		IncludeUnexported: true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Owner", "secret", "hidden", "bal"}
	if got := memberNames(d); !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}

	acc := Account{secret: "s3"}
	sv := reflect.ValueOf(&acc).Elem()
	hidden := d.Member("hidden")
	if err := hidden.Set(sv, reflect.ValueOf(42)); err != nil {
		t.Fatal(err)
	}
	if acc.hidden != 42 {
		t.Errorf("unexported set failed: %d", acc.hidden)
	}
	v, err := d.Member("secret").Get(sv)
	if err != nil || v.Interface() != "s3" {
		t.Errorf("unexported get = %v, %v", v, err)
	}
}

func TestMembers_OptIn(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Tagged{}, descriptor.WithMembers(descriptor.MemberOptions{
		IncludeFields: true,
		OptIn:         true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"chosen", "Also"}
	if got := memberNames(d); !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}
}

func TestMembers_Options(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(&Tagged{},
		descriptor.Rename("Plain", "p"),
		descriptor.Exclude("Also"),
		descriptor.Ordinal("Plain", 10),
	)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"chosen", "p"}
	if got := memberNames(d); !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}
}

func TestMembers_DuplicateName(t *testing.T) {
	r := descriptor.NewRegistry()
	_, err := r.Register(Tagged{}, descriptor.Rename("Plain", "chosen"))
	if err == nil {
		t.Fatal("expected duplicate member error")
	}
}

func TestProperty(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Temperature{},
		descriptor.Property("F", (*Temperature).Fahrenheit, (*Temperature).SetFahrenheit),
		descriptor.Property("C", func(t *Temperature) float64 { return t.celsius }, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := memberNames(d); !slices.Equal(got, []string{"F", "C"}) {
		t.Fatalf("members = %v", got)
	}

	f := d.Member("F")
	if !f.Property || !f.CanGet || !f.CanSet {
		t.Errorf("F flags = %+v", f)
	}
	if ft, err := f.Type(); err != nil || ft.Kind != descriptor.KindFloat64 {
		t.Errorf("F type = %v, %v", ft, err)
	}

	temp := Temperature{celsius: 100}
	sv := reflect.ValueOf(&temp).Elem()
	v, err := f.Get(sv)
	if err != nil || v.Float() != 212 {
		t.Errorf("get F = %v, %v", v, err)
	}
	if err := f.Set(sv, reflect.ValueOf(32.0)); err != nil || temp.celsius != 0 {
		t.Errorf("set F: celsius = %v, %v", temp.celsius, err)
	}

	c := d.Member("C")
	if c.CanSet {
		t.Error("C has no setter")
	}
	if err := c.Set(sv, reflect.ValueOf(1.0)); err == nil {
		t.Error("read-only set should fail")
	}
}

func TestProperty_WrongOwner(t *testing.T) {
	r := descriptor.NewRegistry()
	_, err := r.Register(Tagged{},
		descriptor.Property("F", (*Temperature).Fahrenheit, nil),
	)
	if err == nil {
		t.Fatal("expected registration error")
	}
}

func TestRegister_AfterDescribe(t *testing.T) {
	r := descriptor.NewRegistry()
	describe(t, r, Tagged{})
	if _, err := r.Register(Tagged{}, descriptor.Rename("Plain", "x")); err == nil {
		t.Fatal("late registration must fail")
	}
	if _, err := r.Register(Tagged{}); err != nil {
		t.Fatalf("option-free register: %v", err)
	}
}

func TestMember_LazyRecursiveType(t *testing.T) {
	r := descriptor.NewRegistry()
	d := describe(t, r, Node{})
	next, err := d.Member("Next").Type()
	if err != nil {
		t.Fatal(err)
	}
	elem, err := next.Elem()
	if err != nil {
		t.Fatal(err)
	}
	if elem != d {
		t.Error("*Node elem does not resolve to the cached Node descriptor")
	}
}
