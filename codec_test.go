package graphcodec_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/graphcodec"
	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/graph"
)

type Order struct {
	ID    int64
	Lines []*Line
	Tags  map[string]string
}

type Line struct {
	SKU   string
	Qty   int32
	Order *Order
}

type Note struct {
	Text string
}

func sampleOrder() *Order {
	o := &Order{ID: 42, Tags: map[string]string{"channel": "web"}}
	o.Lines = []*Line{{SKU: "a", Qty: 1, Order: o}, {SKU: "b", Qty: 2, Order: o}}
	return o
}

func TestCodec_RoundTrip(t *testing.T) {
	configs := []graphcodec.Config{
		graphcodec.DefaultConfig(),
		{Format: graphcodec.FormatText, Compression: graphcodec.CompressionNone, MaxDepth: 64, QualifyIdentities: true, LogLevel: "warn"},
		{Format: graphcodec.FormatBinary, Compression: graphcodec.CompressionZstd, MaxDepth: 64, QualifyIdentities: true, LogLevel: "warn"},
		{Format: graphcodec.FormatText, Compression: graphcodec.CompressionZstd, MaxDepth: 64, QualifyIdentities: false, LogLevel: "warn"},
	}

	for _, cfg := range configs {
		t.Run(string(cfg.Format)+"/"+string(cfg.Compression), func(t *testing.T) {
			c, err := graphcodec.New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			data, err := c.Marshal(sampleOrder())
			if err != nil {
				t.Fatal(err)
			}
			var got *Order
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatal(err)
			}
			if got.ID != 42 || len(got.Lines) != 2 || got.Tags["channel"] != "web" {
				t.Fatalf("got %+v", got)
			}
			for _, l := range got.Lines {
				if l.Order != got {
					t.Errorf("line %s does not point back at its order", l.SKU)
				}
			}
		})
	}
}

func TestCodec_Zstd(t *testing.T) {
	cfg := graphcodec.DefaultConfig()
	cfg.Compression = graphcodec.CompressionZstd
	c, err := graphcodec.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	data, err := c.Marshal(sampleOrder())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Errorf("output is not a zstd frame: % x", data[:4])
	}

	plain, err := graphcodec.New(graphcodec.DefaultConfig(), graphcodec.WithRegistry(c.Registry()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := plain.Deserialize(bytes.NewReader(data)); err == nil {
		t.Error("uncompressed codec accepted a zstd stream")
	}
}

func TestClone(t *testing.T) {
	in := sampleOrder()
	out, err := graphcodec.Clone(in)
	if err != nil {
		t.Fatal(err)
	}
	if out == in || out.Lines[0] == in.Lines[0] {
		t.Fatal("clone shares instances with the original")
	}
	if out.Lines[1].Order != out {
		t.Error("clone lost the back reference")
	}
	out.Tags["channel"] = "store"
	if in.Tags["channel"] != "web" {
		t.Error("clone shares its map with the original")
	}

	opts := cmp.Comparer(func(a, b *Order) bool { return a.ID == b.ID })
	if diff := cmp.Diff(in.Lines, out.Lines, opts); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := graphcodec.Serialize(&Note{Text: "hi"}, &buf); err != nil {
		t.Fatal(err)
	}
	got, err := graphcodec.Deserialize(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := got.(*Note); !ok || n.Text != "hi" {
		t.Errorf("got %#v", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := graphcodec.DefaultConfig()
	cfg.Format = "xml"
	if _, err := graphcodec.New(cfg); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestCodec_LogsDiagnostics(t *testing.T) {
	writer, err := graphcodec.New(graphcodec.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	writer.Registry().MustRegister(Note{}, descriptor.WithIdentity("memo.Note"))
	data, err := writer.Marshal(&Note{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zap.DebugLevel)
	reader, err := graphcodec.New(graphcodec.DefaultConfig(), graphcodec.WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := reader.Deserialize(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := got.(*graph.Bag); !ok || b.Identity != "memo.Note" {
		t.Fatalf("got %#v", got)
	}
	if logs.FilterField(zap.String("kind", string(errors.KindUnresolvedType))).Len() != 1 {
		t.Errorf("entries = %v", logs.All())
	}
}
