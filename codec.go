package graphcodec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/graph"
	"github.com/wippyai/graphcodec/wire"
)

// Codec serializes object graphs with a fixed configuration. A Codec is safe
// for concurrent use; each call builds its own encoder or decoder.
type Codec struct {
	cfg    Config
	reg    *descriptor.Registry
	logger *zap.Logger
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithRegistry shares a descriptor registry instead of building one from the
// config.
func WithRegistry(r *descriptor.Registry) CodecOption {
	return func(c *Codec) { c.reg = r }
}

// WithLogger routes diagnostics to l. Without it diagnostics go to
// graph.Logger().
func WithLogger(l *zap.Logger) CodecOption {
	return func(c *Codec) { c.logger = l }
}

// New validates cfg and returns a Codec.
func New(cfg Config, opts ...CodecOption) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Codec{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.reg == nil {
		c.reg = descriptor.NewRegistry(descriptor.WithQualify(cfg.QualifyIdentities))
	}
	return c, nil
}

// Config returns the codec's configuration.
func (c *Codec) Config() Config { return c.cfg }

// Registry returns the descriptor registry used by the codec.
func (c *Codec) Registry() *descriptor.Registry { return c.reg }

func (c *Codec) options() []graph.Option {
	opts := []graph.Option{
		graph.WithRegistry(c.reg),
		graph.WithMaxDepth(c.cfg.MaxDepth),
	}
	if c.logger != nil {
		opts = append(opts, graph.WithSink(graph.LogSink(c.logger)))
	}
	return opts
}

// Serialize writes v to w. w is flushed but not closed.
func (c *Codec) Serialize(v any, w io.Writer) error {
	if c.cfg.Compression != CompressionZstd {
		return graph.NewEncoder(c.writer(w), c.options()...).Encode(v)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errors.IO(errors.PhaseEncode, errors.NoOffset, err)
	}
	if err := graph.NewEncoder(c.writer(zw), c.options()...).Encode(v); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.IO(errors.PhaseEncode, errors.NoOffset, err)
	}
	return nil
}

// Deserialize reads one graph from r.
func (c *Codec) Deserialize(r io.Reader) (any, error) {
	var out any
	err := c.read(r, func(d *graph.Decoder) (err error) {
		out, err = d.Decode()
		return err
	})
	return out, err
}

// DeserializeInto reads one graph from r into the value target points to.
func (c *Codec) DeserializeInto(r io.Reader, target any) error {
	return c.read(r, func(d *graph.Decoder) error {
		return d.DecodeInto(target)
	})
}

func (c *Codec) read(r io.Reader, fn func(*graph.Decoder) error) error {
	if c.cfg.Compression == CompressionZstd {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return errors.IO(errors.PhaseDecode, errors.NoOffset, err)
		}
		defer zr.Close()
		r = zr
	}
	return fn(graph.NewDecoder(c.reader(r), c.options()...))
}

// Marshal serializes v to a byte slice.
func (c *Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Serialize(v, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes data into the value target points to.
func (c *Codec) Unmarshal(data []byte, target any) error {
	return c.DeserializeInto(bytes.NewReader(data), target)
}

func (c *Codec) writer(w io.Writer) wire.Writer {
	if c.cfg.Format == FormatText {
		return wire.NewTextWriter(w)
	}
	return wire.NewBinaryWriter(w)
}

func (c *Codec) reader(r io.Reader) wire.Reader {
	if c.cfg.Format == FormatText {
		return wire.NewTextReader(r)
	}
	return wire.NewBinaryReader(r)
}

// CloneWith deep-copies v through the token backend using c's registry.
// Shared and cyclic structure is preserved in the copy.
func CloneWith[T any](c *Codec, v T) (T, error) {
	var out T
	w := wire.NewTokenWriter()
	if err := graph.NewEncoder(w, c.options()...).Encode(v); err != nil {
		return out, err
	}
	err := graph.NewDecoder(wire.NewTokenReader(w.Tokens()), c.options()...).DecodeInto(&out)
	return out, err
}

var defaultCodec, _ = New(DefaultConfig(), WithRegistry(descriptor.Default()))

// Default returns the package codec: binary, uncompressed, backed by
// descriptor.Default().
func Default() *Codec { return defaultCodec }

// Serialize writes v to w with the default codec.
func Serialize(v any, w io.Writer) error { return defaultCodec.Serialize(v, w) }

// Deserialize reads one graph from r with the default codec.
func Deserialize(r io.Reader) (any, error) { return defaultCodec.Deserialize(r) }

// DeserializeInto reads one graph from r into target with the default codec.
func DeserializeInto(r io.Reader, target any) error { return defaultCodec.DeserializeInto(r, target) }

// Marshal serializes v with the default codec.
func Marshal(v any) ([]byte, error) { return defaultCodec.Marshal(v) }

// Unmarshal deserializes data into target with the default codec.
func Unmarshal(data []byte, target any) error { return defaultCodec.Unmarshal(data, target) }

// Clone deep-copies v with the default registry.
func Clone[T any](v T) (T, error) { return CloneWith(defaultCodec, v) }
