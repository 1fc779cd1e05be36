package descriptor_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/descriptor"
	gerrors "github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/wire"
)

const pkg = "github.com/wippyai/graphcodec/descriptor_test"

type Order struct {
	ID       int64
	Customer string `graph:"customer"`
	Lines    []*Line
	internal string
	Cache    []byte `graph:"-"`
}

type Line struct {
	SKU   string
	Qty   int32
	Order *Order
}

type Node struct {
	Value int
	Next  *Node
}

type Box[T any] struct {
	Value T
}

type Pair[K comparable, V any] struct {
	Key K
	Val V
}

type named struct{}

func (named) GraphIdentity() string { return "acme.Named" }

type WithFunc struct {
	Name     string
	Callback func()
}

func describe(t *testing.T, r *descriptor.Registry, v any) *descriptor.TypeDescriptor {
	t.Helper()
	d, err := r.Describe(reflect.TypeOf(v))
	if err != nil {
		t.Fatalf("Describe(%T): %v", v, err)
	}
	return d
}

func TestDescribe_Cached(t *testing.T) {
	r := descriptor.NewRegistry()
	a := describe(t, r, Order{})
	b := describe(t, r, Order{})
	if a != b {
		t.Error("second Describe built a new descriptor")
	}
}

func TestDescribe_ConcurrentFirstCreatorWins(t *testing.T) {
	r := descriptor.NewRegistry()
	const n = 32

	results := make([]*descriptor.TypeDescriptor, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			d, err := r.Describe(reflect.TypeOf(Node{}))
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = d
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d observed a different descriptor", i)
		}
	}
}

func TestIdentity(t *testing.T) {
	r := descriptor.NewRegistry()
	tests := []struct {
		value any
		want  string
	}{
		{int32(0), "int32"},
		{int(0), "int"},
		{"", "string"},
		{[]byte(nil), "bytes"},
		{uuid.UUID{}, "uuid"},
		{wire.Decimal{}, "decimal"},
		{wire.Char(0), "char"},
		{time.Time{}, "time.Time"},
		{Order{}, pkg + ".Order"},
		{&Order{}, "*" + pkg + ".Order"},
		{[]int32{}, "[]int32"},
		{[3]string{}, "[3]string"},
		{map[string]*Line{}, "map[string]*" + pkg + ".Line"},
		{named{}, "acme.Named"},
		{Box[int32]{}, pkg + ".Box[int32]"},
		{Pair[string, int64]{}, pkg + ".Pair[string,int64]"},
	}

	for _, tt := range tests {
		d := describe(t, r, tt.value)
		if d.Identity != tt.want {
			t.Errorf("%T: identity = %q, want %q", tt.value, d.Identity, tt.want)
		}
	}
}

func TestIdentity_Unqualified(t *testing.T) {
	r := descriptor.NewRegistry(descriptor.WithQualify(false))
	if d := describe(t, r, Order{}); d.Identity != "descriptor_test.Order" {
		t.Errorf("registry option: %q", d.Identity)
	}

	q := descriptor.NewRegistry()
	d, err := q.Register(Line{}, descriptor.WithUnqualifiedIdentity())
	if err != nil {
		t.Fatal(err)
	}
	if d.Identity != "descriptor_test.Line" {
		t.Errorf("type option: %q", d.Identity)
	}
}

func TestIdentity_Override(t *testing.T) {
	r := descriptor.NewRegistry()
	d, err := r.Register(Order{}, descriptor.WithIdentity("shop.Order"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Identity != "shop.Order" {
		t.Errorf("identity = %q", d.Identity)
	}
	if got, ok := r.Resolve("shop.Order"); !ok || got != d {
		t.Error("override identity does not resolve")
	}
	if ptr := describe(t, r, &Order{}); ptr.Identity != "*shop.Order" {
		t.Errorf("pointer identity = %q", ptr.Identity)
	}
}

func TestKinds(t *testing.T) {
	r := descriptor.NewRegistry()
	tests := []struct {
		value any
		want  descriptor.Kind
	}{
		{false, descriptor.KindBool},
		{int8(0), descriptor.KindInt8},
		{uint64(0), descriptor.KindUint64},
		{int(0), descriptor.KindInt},
		{uint(0), descriptor.KindUint},
		{float32(0), descriptor.KindFloat32},
		{"", descriptor.KindString},
		{[]byte{}, descriptor.KindBytes},
		{uuid.UUID{}, descriptor.KindUUID},
		{time.Time{}, descriptor.KindCustom},
		{Order{}, descriptor.KindStruct},
		{&Order{}, descriptor.KindPointer},
		{[]int{}, descriptor.KindList},
		{[2]int{}, descriptor.KindArray},
		{map[string]int{}, descriptor.KindMap},
	}

	for _, tt := range tests {
		if d := describe(t, r, tt.value); d.Kind != tt.want {
			t.Errorf("%T: kind = %s, want %s", tt.value, d.Kind, tt.want)
		}
	}

	if d := describe(t, r, []int{}); !d.IsReferenceType() {
		t.Error("slices are reference types")
	}
	if d := describe(t, r, Order{}); d.IsReferenceType() {
		t.Error("struct values are not reference types")
	}
}

func TestNullablePointers(t *testing.T) {
	r := descriptor.NewRegistry()
	for _, v := range []any{(*string)(nil), (*int)(nil), (*int64)(nil), (*uint)(nil), (*uint64)(nil)} {
		if d := describe(t, r, v); !d.Nullable {
			t.Errorf("%T should be nullable", v)
		}
	}
	for _, v := range []any{(*int32)(nil), (*Order)(nil), (*time.Time)(nil)} {
		if d := describe(t, r, v); d.Nullable {
			t.Errorf("%T should not be nullable", v)
		}
	}
}

func TestDescribe_Unsupported(t *testing.T) {
	r := descriptor.NewRegistry()
	_, err := r.Describe(reflect.TypeOf(make(chan int)))
	var e *gerrors.Error
	if !errors.As(err, &e) || e.Kind != gerrors.KindUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}

	d := describe(t, r, WithFunc{})
	if len(d.Members) != 1 || d.Members[0].Name != "Name" {
		t.Errorf("func member was not skipped: %v", memberNames(d))
	}
}

func TestContainerArgs(t *testing.T) {
	r := descriptor.NewRegistry()
	m := describe(t, r, map[string][]int32{})
	key, err := m.Key()
	if err != nil || key.Identity != "string" {
		t.Fatalf("key = %v, %v", key, err)
	}
	elem, err := m.Elem()
	if err != nil || elem.Identity != "[]int32" {
		t.Fatalf("elem = %v, %v", elem, err)
	}
	inner, err := elem.Elem()
	if err != nil || inner.Kind != descriptor.KindInt32 {
		t.Fatalf("inner = %v, %v", inner, err)
	}
	if a := describe(t, r, [4]byte{}); a.Len != 4 || a.Arity != 1 {
		t.Errorf("array len = %d, arity = %d", a.Len, a.Arity)
	}
}

func memberNames(d *descriptor.TypeDescriptor) []string {
	var names []string
	for _, m := range d.Members {
		names = append(names, m.Name)
	}
	return names
}
