package graph_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/graph"
	"github.com/wippyai/graphcodec/wire"
)

type Person struct {
	Name   string
	Child  *Person
	Parent *Person
}

type Item struct {
	SKU string
	Qty int32
}

type Holder struct {
	A, B   *Item
	S1, S2 []int32
	M1, M2 map[string]int
}

type Box[T any] struct {
	Value T
}

type Profile struct {
	Nick  *string
	Age   *int
	Score *int32
	ID    *uint64
}

type Envelope struct {
	Body any
	Meta map[string]any
}

type Record struct {
	ID      uuid.UUID
	Stamp   time.Time
	Grid    [3]int16
	Blob    []byte
	Empty   []byte
	Initial wire.Char
	Ratio   float32
	Count   uint
	Delta   int
}

type Tree struct {
	Label string
	Kids  []*Tree
}

func TestCycle(t *testing.T) {
	r := descriptor.NewRegistry()
	a := &Person{Name: "a"}
	a.Child = &Person{Name: "c", Parent: a}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, a, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		p, ok := got.(*Person)
		if !ok {
			t.Fatalf("root = %T", got)
		}
		if p.Child == nil || p.Child.Name != "c" {
			t.Fatalf("child = %+v", p.Child)
		}
		if p.Child.Parent != p {
			t.Error("child.Parent does not point back at the root")
		}
	})
}

func TestSelfReferencingSlice(t *testing.T) {
	r := descriptor.NewRegistry()
	root := &Tree{Label: "root"}
	leaf := &Tree{Label: "leaf"}
	root.Kids = []*Tree{leaf, root}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, root, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		tr := got.(*Tree)
		if len(tr.Kids) != 2 || tr.Kids[0].Label != "leaf" {
			t.Fatalf("kids = %+v", tr.Kids)
		}
		if tr.Kids[1] != tr {
			t.Error("tree does not contain itself")
		}
	})
}

func TestAliasing(t *testing.T) {
	r := descriptor.NewRegistry()
	item := &Item{SKU: "x", Qty: 1}
	s := []int32{1, 2, 3}
	m := map[string]int{"k": 1}
	h := &Holder{A: item, B: item, S1: s, S2: s, M1: m, M2: m}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, h, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		g := got.(*Holder)
		if g.A != g.B {
			t.Error("shared pointer decoded as two instances")
		}
		if &g.S1[0] != &g.S2[0] {
			t.Error("shared slice decoded as two backing arrays")
		}
		if reflect.ValueOf(g.M1).Pointer() != reflect.ValueOf(g.M2).Pointer() {
			t.Error("shared map decoded as two maps")
		}
		g.M1["new"] = 2
		if g.M2["new"] != 2 {
			t.Error("map aliasing lost")
		}
	})
}

func TestEqualButDistinct(t *testing.T) {
	r := descriptor.NewRegistry()
	in := []*Item{{SKU: "x"}, {SKU: "x"}}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, in, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		items := got.([]*Item)
		if items[0] == items[1] {
			t.Error("equal values were merged into one instance")
		}
		if diff := cmp.Diff(in, items); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGenerics(t *testing.T) {
	r := descriptor.NewRegistry()
	in := []any{
		Box[int32]{Value: 7},
		Box[string]{Value: "seven"},
		Box[Item]{Value: Item{SKU: "x", Qty: 2}},
		&Box[*Item]{Value: &Item{SKU: "y", Qty: 3}},
	}

	var diags collector
	write := []graph.Option{graph.WithRegistry(r)}
	read := []graph.Option{graph.WithRegistry(r), graph.WithSink(diags.sink())}
	roundTrip(t, in, write, read, func(t *testing.T, got any, _ *graph.Decoder) {
		if diff := cmp.Diff(in, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	if len(diags.diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags.diags)
	}
}

func TestValues(t *testing.T) {
	r := descriptor.NewRegistry()
	in := &Record{
		ID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Stamp:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Grid:    [3]int16{-1, 0, 1},
		Blob:    []byte{1, 2, 3},
		Empty:   []byte{},
		Initial: 'Z',
		Ratio:   0.5,
		Count:   1 << 40,
		Delta:   -42,
	}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, in, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		rec := got.(*Record)
		if diff := cmp.Diff(in, rec); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		if rec.Empty == nil {
			t.Error("empty byte slice decoded as nil")
		}
	})
}

func TestNullablePointers(t *testing.T) {
	r := descriptor.NewRegistry()
	in := &Profile{Nick: ptr("neo"), Score: ptr(int32(9)), ID: ptr(uint64(77))}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, in, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		if diff := cmp.Diff(in, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestInterfaceMembers(t *testing.T) {
	r := descriptor.NewRegistry()
	in := &Envelope{
		Body: &Item{SKU: "b", Qty: 2},
		Meta: map[string]any{"n": int64(5), "s": "x", "none": nil, "list": []string{"a"}},
	}

	opts := []graph.Option{graph.WithRegistry(r)}
	roundTrip(t, in, opts, opts, func(t *testing.T, got any, _ *graph.Decoder) {
		if diff := cmp.Diff(in, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNilRoot(t *testing.T) {
	roundTrip(t, nil, nil, nil, func(t *testing.T, got any, _ *graph.Decoder) {
		if got != nil {
			t.Errorf("got %v", got)
		}
	})
}

func TestTextLayout(t *testing.T) {
	var buf bytes.Buffer
	enc := graph.NewEncoder(wire.NewTextWriter(&buf), graph.WithRegistry(descriptor.NewRegistry()))
	if err := enc.Encode([]int32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	want := `1 new 1 type 1 22 "[]int32" 1 type 2 4 "int32" 0 3 1 2 3`
	if got := buf.String(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestMapKeysSorted(t *testing.T) {
	r := descriptor.NewRegistry()
	m := map[string]int{"b": 2, "c": 3, "a": 1}

	var first string
	for i := 0; i < 5; i++ {
		var buf bytes.Buffer
		if err := graph.NewEncoder(wire.NewTextWriter(&buf), graph.WithRegistry(r)).Encode(m); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = buf.String()
			continue
		}
		if buf.String() != first {
			t.Fatalf("output changed between runs:\n%s\n%s", first, buf.String())
		}
	}
	if !strings.Contains(first, `3 "a" 1 "b" 2 "c" 3`) {
		t.Errorf("keys not in order: %s", first)
	}
}

type P struct {
	ID int32
}

func TestInspect_SharedInstanceWrittenOnce(t *testing.T) {
	r := descriptor.NewRegistry()
	p := &P{ID: 1}

	w := wire.NewTokenWriter()
	if err := graph.NewEncoder(w, graph.WithRegistry(r)).Encode([]*P{p, p}); err != nil {
		t.Fatal(err)
	}
	frames, root, err := graph.Inspect(wire.NewTokenReader(w.Tokens()), graph.WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}

	var news, refs int
	var id uint64
	for _, f := range frames {
		switch {
		case f.Tag == wire.TagNew && f.Identity == "*"+pkg+".P":
			news++
			id = f.RefID
		case f.Tag == wire.TagRef:
			refs++
			if f.RefID != id {
				t.Errorf("ref to %d, want %d", f.RefID, id)
			}
		}
	}
	if news != 1 || refs != 1 {
		t.Errorf("new frames = %d, ref frames = %d", news, refs)
	}
	got := root.([]*P)
	if got[0] != got[1] || got[0].ID != 1 {
		t.Errorf("root = %+v", got)
	}
}

func TestDecodeInto(t *testing.T) {
	r := descriptor.NewRegistry()
	w := wire.NewTokenWriter()
	if err := graph.NewEncoder(w, graph.WithRegistry(r)).Encode(&Item{SKU: "s", Qty: 3}); err != nil {
		t.Fatal(err)
	}

	var ptrTarget *Item
	if err := graph.NewDecoder(wire.NewTokenReader(w.Tokens()), graph.WithRegistry(r)).DecodeInto(&ptrTarget); err != nil {
		t.Fatal(err)
	}
	if ptrTarget == nil || ptrTarget.SKU != "s" {
		t.Errorf("pointer target = %+v", ptrTarget)
	}

	var valTarget Item
	if err := graph.NewDecoder(wire.NewTokenReader(w.Tokens()), graph.WithRegistry(r)).DecodeInto(&valTarget); err != nil {
		t.Fatal(err)
	}
	if valTarget.Qty != 3 {
		t.Errorf("value target = %+v", valTarget)
	}

	var wrong int
	if err := graph.NewDecoder(wire.NewTokenReader(w.Tokens()), graph.WithRegistry(r)).DecodeInto(&wrong); err == nil {
		t.Error("decoding an Item into an int should fail")
	}
	if err := graph.NewDecoder(wire.NewTokenReader(w.Tokens())).DecodeInto(nil); err == nil {
		t.Error("nil target should fail")
	}
}

func TestDecoderReuse(t *testing.T) {
	r := descriptor.NewRegistry()
	w := wire.NewTokenWriter()
	enc := graph.NewEncoder(w, graph.WithRegistry(r))
	for _, sku := range []string{"a", "b"} {
		if err := enc.Encode(&Item{SKU: sku}); err != nil {
			t.Fatal(err)
		}
	}

	dec := graph.NewDecoder(wire.NewTokenReader(w.Tokens()), graph.WithRegistry(r))
	for _, want := range []string{"a", "b"} {
		got, err := dec.Decode()
		if err != nil {
			t.Fatal(err)
		}
		if got.(*Item).SKU != want {
			t.Errorf("got %+v, want %s", got, want)
		}
	}
}
