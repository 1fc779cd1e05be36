package graph

import (
	"github.com/wippyai/graphcodec/descriptor"
)

// Version is the stream format version written ahead of every root.
const Version = 1

const (
	// DefaultMaxDepth bounds the nesting of values in one stream.
	DefaultMaxDepth = 1 << 16
	// maxCount bounds collection lengths, member counts and type arities read
	// from a stream.
	maxCount = 1 << 24
)

// Options configures an Encoder or Decoder.
type Options struct {
	Registry *descriptor.Registry
	MaxDepth int
	Sink     Sink
}

// Option mutates Options.
type Option func(*Options)

// WithRegistry sets the descriptor registry. The default is descriptor.Default().
func WithRegistry(r *descriptor.Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithMaxDepth bounds value nesting. Values below 1 select DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *Options) { o.MaxDepth = n }
}

// WithSink sets the diagnostic sink. The default logs through Logger().
func WithSink(s Sink) Option {
	return func(o *Options) { o.Sink = s }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Registry == nil {
		o.Registry = descriptor.Default()
	}
	if o.MaxDepth < 1 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Sink == nil {
		o.Sink = defaultSink
	}
	return o
}
