package graph

import (
	"bytes"
	"testing"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/wire"
)

type ring struct {
	Name string
	Next *ring
}

func encodeRing(t *testing.T, reg *descriptor.Registry) []byte {
	t.Helper()
	a := &ring{Name: "a"}
	a.Next = &ring{Name: "b", Next: a}
	var buf bytes.Buffer
	if err := NewEncoder(wire.NewBinaryWriter(&buf), WithRegistry(reg)).Encode(a); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecoder_ReleasesGraph(t *testing.T) {
	reg := descriptor.NewRegistry()
	data := encodeRing(t, reg)

	d := NewDecoder(wire.NewBinaryReader(bytes.NewReader(append(append([]byte(nil), data...), data...))), WithRegistry(reg))
	for i := range 2 {
		got, err := d.Decode()
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if r := got.(*ring); r.Next.Next != r {
			t.Fatalf("decode %d lost the cycle", i)
		}

		if len(d.refs.entries) != 0 || len(d.hooks) != 0 || len(d.types.types) != 0 || d.lost != nil {
			t.Fatalf("decode %d left state: refs=%d hooks=%d types=%d lost=%d",
				i, len(d.refs.entries), len(d.hooks), len(d.types.types), len(d.lost))
		}
		for j, e := range d.refs.entries[:cap(d.refs.entries)] {
			if e.value.IsValid() || e.typ != nil {
				t.Errorf("decode %d: ref slot %d still holds an instance", i, j)
			}
		}
		for j, h := range d.hooks[:cap(d.hooks)] {
			if h.ptr.IsValid() {
				t.Errorf("decode %d: hook slot %d still holds an instance", i, j)
			}
		}
	}
}

func TestDecoder_ReleasesOnError(t *testing.T) {
	reg := descriptor.NewRegistry()
	data := encodeRing(t, reg)

	d := NewDecoder(wire.NewBinaryReader(bytes.NewReader(data[:len(data)-1])), WithRegistry(reg))
	if _, err := d.Decode(); err == nil {
		t.Fatal("truncated stream decoded")
	}
	for j, e := range d.refs.entries[:cap(d.refs.entries)] {
		if e.value.IsValid() {
			t.Errorf("ref slot %d still holds an instance", j)
		}
	}
	if len(d.path) != 0 {
		t.Errorf("path = %v", d.path)
	}
}
