package graph

import (
	"strconv"
	"strings"

	"github.com/wippyai/graphcodec/wire"
)

// Frame is one structural marker met while reading a stream.
type Frame struct {
	Tag      wire.Tag
	RefID    uint64
	TypeID   uint64
	Identity string
	// Member is the innermost path segment at the frame: a member name, an
	// index, or the identity of the enclosing instance.
	Member string
	Depth  int
	Offset int64
}

func (f Frame) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", f.Depth))
	b.WriteString(f.Tag.String())
	switch f.Tag {
	case wire.TagNew, wire.TagRef:
		b.WriteString(" #")
		b.WriteString(strconv.FormatUint(f.RefID, 10))
	case wire.TagType, wire.TagTypeRef:
		b.WriteString(" t")
		b.WriteString(strconv.FormatUint(f.TypeID, 10))
	}
	if f.Identity != "" {
		b.WriteString(" ")
		b.WriteString(f.Identity)
	}
	if f.Member != "" {
		b.WriteString(" @")
		b.WriteString(f.Member)
	}
	return b.String()
}

// Inspect decodes one stream and returns its frames in stream order along
// with the decoded root. On a corrupt stream the frames read before the
// failure are returned with the error.
func Inspect(r wire.Reader, opts ...Option) ([]Frame, any, error) {
	d := NewDecoder(r, opts...)
	var frames []Frame
	d.observe = func(f Frame) { frames = append(frames, f) }
	v, err := d.Decode()
	return frames, v, err
}
