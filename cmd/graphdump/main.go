package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/term"

	"github.com/wippyai/graphcodec"
	"github.com/wippyai/graphcodec/graph"
	"github.com/wippyai/graphcodec/wire"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Stream to inspect (- for stdin)")
		format      = flag.String("format", "", "Wire format: binary or text (default from config)")
		configFile  = flag.String("config", "", "Path to a graphcodec TOML config")
		filter      = flag.String("filter", "", `Frame filter expression, e.g. tag == "new" && depth < 3`)
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: graphdump -in <file> [-format binary|text] [-config file.toml] [-filter expr]")
		fmt.Fprintln(os.Stderr, "       graphdump -in <file> -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := graphcodec.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *format != "" {
		cfg.Format = graphcodec.Format(*format)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	d, err := load(*inFile, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*inFile, d, *filter); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Stdout, d, *filter, term.IsTerminal(int(os.Stdout.Fd()))); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dump is the result of inspecting one stream.
type dump struct {
	frames []graph.Frame
	root   any
	err    error
}

func load(path string, cfg graphcodec.Config) (*dump, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	if cfg.Compression == graphcodec.CompressionZstd {
		zr, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	var r wire.Reader
	if cfg.Format == graphcodec.FormatText {
		r = wire.NewTextReader(in)
	} else {
		r = wire.NewBinaryReader(in)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	defer logger.Sync() //nolint:errcheck

	frames, root, err := graph.Inspect(r,
		graph.WithMaxDepth(cfg.MaxDepth),
		graph.WithSink(graph.LogSink(logger)),
	)
	return &dump{frames: frames, root: root, err: err}, nil
}

// frameEnv is the environment a -filter expression is evaluated against.
type frameEnv struct {
	Tag      string `expr:"tag"`
	Ref      uint64 `expr:"ref"`
	Type     uint64 `expr:"type"`
	Identity string `expr:"identity"`
	Member   string `expr:"member"`
	Depth    int    `expr:"depth"`
	Offset   int64  `expr:"offset"`
}

func envOf(f graph.Frame) frameEnv {
	return frameEnv{
		Tag:      f.Tag.String(),
		Ref:      f.RefID,
		Type:     f.TypeID,
		Identity: f.Identity,
		Member:   f.Member,
		Depth:    f.Depth,
		Offset:   f.Offset,
	}
}

func compileFilter(src string) (*vm.Program, error) {
	if src == "" {
		return nil, nil
	}
	prog, err := expr.Compile(src, expr.Env(frameEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return prog, nil
}

func applyFilter(prog *vm.Program, frames []graph.Frame) ([]graph.Frame, error) {
	if prog == nil {
		return frames, nil
	}
	var out []graph.Frame
	for _, f := range frames {
		ok, err := expr.Run(prog, envOf(f))
		if err != nil {
			return nil, fmt.Errorf("filter at offset %d: %w", f.Offset, err)
		}
		if ok.(bool) {
			out = append(out, f)
		}
	}
	return out, nil
}

var (
	tagStyles = map[wire.Tag]lipgloss.Style{
		wire.TagNew:     lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		wire.TagRef:     lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		wire.TagType:    lipgloss.NewStyle().Foreground(lipgloss.Color("#DDA0DD")),
		wire.TagTypeRef: lipgloss.NewStyle().Foreground(lipgloss.Color("#B0A0C0")),
		wire.TagValue:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F0E68C")),
		wire.TagNull:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}

	offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func renderFrame(f graph.Frame, color bool) string {
	line := fmt.Sprintf("%08x  %s", f.Offset, f.String())
	if !color {
		return line
	}
	return offsetStyle.Render(fmt.Sprintf("%08x", f.Offset)) + "  " + tagStyles[f.Tag].Render(f.String())
}

func run(w io.Writer, d *dump, filter string, color bool) error {
	prog, err := compileFilter(filter)
	if err != nil {
		return err
	}
	frames, err := applyFilter(prog, d.frames)
	if err != nil {
		return err
	}

	for _, f := range frames {
		fmt.Fprintln(w, renderFrame(f, color))
	}
	fmt.Fprintf(w, "\n%d of %d frames\n", len(frames), len(d.frames))
	if d.err != nil {
		return fmt.Errorf("stream: %w", d.err)
	}
	fmt.Fprintf(w, "root: %T\n", d.root)
	return nil
}
