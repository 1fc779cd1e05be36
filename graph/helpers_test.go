package graph_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/graph"
	"github.com/wippyai/graphcodec/wire"
)

const pkg = "github.com/wippyai/graphcodec/graph_test"

type backend struct {
	name string
	open func() (wire.Writer, func() wire.Reader)
}

func backends() []backend {
	return []backend{
		{"binary", func() (wire.Writer, func() wire.Reader) {
			var buf bytes.Buffer
			w := wire.NewBinaryWriter(&buf)
			return w, func() wire.Reader { return wire.NewBinaryReader(bytes.NewReader(buf.Bytes())) }
		}},
		{"text", func() (wire.Writer, func() wire.Reader) {
			var buf bytes.Buffer
			w := wire.NewTextWriter(&buf)
			return w, func() wire.Reader { return wire.NewTextReader(bytes.NewReader(buf.Bytes())) }
		}},
		{"token", func() (wire.Writer, func() wire.Reader) {
			w := wire.NewTokenWriter()
			return w, func() wire.Reader { return wire.NewTokenReader(w.Tokens()) }
		}},
	}
}

// roundTrip encodes v and decodes it back on every backend, handing the
// result to check.
func roundTrip(t *testing.T, v any, write, read []graph.Option, check func(t *testing.T, got any, dec *graph.Decoder)) {
	t.Helper()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			w, reader := b.open()
			if err := graph.NewEncoder(w, write...).Encode(v); err != nil {
				t.Fatalf("encode: %v", err)
			}
			dec := graph.NewDecoder(reader(), read...)
			got, err := dec.Decode()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			check(t, got, dec)
		})
	}
}

type collector struct {
	diags []graph.Diagnostic
}

func (c *collector) sink() graph.Sink {
	return func(d graph.Diagnostic) { c.diags = append(c.diags, d) }
}

func (c *collector) count(kind errors.Kind) int {
	n := 0
	for _, d := range c.diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func ptr[T any](v T) *T { return &v }
