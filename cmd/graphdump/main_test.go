package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/graphcodec"
	"github.com/wippyai/graphcodec/descriptor"
)

type node struct {
	Name string
	Next *node
}

func writeStream(t *testing.T, cfg graphcodec.Config) string {
	t.Helper()
	c, err := graphcodec.New(cfg, graphcodec.WithRegistry(descriptor.Default()))
	if err != nil {
		t.Fatal(err)
	}
	a := &node{Name: "a"}
	a.Next = &node{Name: "b", Next: a}
	data, err := c.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "stream.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(*graphcodec.Config)
		filter string
		want   string
	}{
		{name: "all", want: "frames"},
		{name: "new only", filter: `tag == "new"`, want: "2 of "},
		{name: "refs", filter: `tag == "ref" && ref == 1`, want: "1 of "},
		{name: "text", cfg: func(c *graphcodec.Config) { c.Format = graphcodec.FormatText }, filter: `tag == "new"`, want: "2 of "},
		{name: "zstd", cfg: func(c *graphcodec.Config) { c.Compression = graphcodec.CompressionZstd }, filter: `tag == "new"`, want: "2 of "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := graphcodec.DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			d, err := load(writeStream(t, cfg), cfg)
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			if err := run(&out, d, tt.filter, false); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
			if !strings.Contains(out.String(), "root: *main.node") {
				t.Errorf("root not decoded:\n%s", out.String())
			}
		})
	}
}

func TestRun_BadFilter(t *testing.T) {
	cfg := graphcodec.DefaultConfig()
	d, err := load(writeStream(t, cfg), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := run(&bytes.Buffer{}, d, `tag +`, false); err == nil {
		t.Error("malformed filter accepted")
	}
	if err := run(&bytes.Buffer{}, d, `depth`, false); err == nil {
		t.Error("non-boolean filter accepted")
	}
}

func TestRun_CorruptStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	if err := os.WriteFile(path, []byte{1, 2, 9}, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := graphcodec.DefaultConfig()
	d, err := load(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := run(&bytes.Buffer{}, d, "", false); err == nil {
		t.Error("corrupt stream reported no error")
	}
}
