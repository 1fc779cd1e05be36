package graphcodec

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/graphcodec/errors"
	"github.com/wippyai/graphcodec/graph"
)

// Format selects the wire backend of a Codec.
type Format string

const (
	FormatBinary Format = "binary"
	FormatText   Format = "text"
)

// Compression selects the stream compression of a Codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Environment variables applied on top of a loaded config.
const (
	EnvFormat      = "GRAPHCODEC_FORMAT"
	EnvCompression = "GRAPHCODEC_COMPRESSION"
	EnvLogLevel    = "GRAPHCODEC_LOG_LEVEL"
	EnvMaxDepth    = "GRAPHCODEC_MAX_DEPTH"
)

// Config configures a Codec.
type Config struct {
	Format            Format      `toml:"format"`
	Compression       Compression `toml:"compression"`
	MaxDepth          int         `toml:"max_depth"`
	QualifyIdentities bool        `toml:"qualify_identities"`
	LogLevel          string      `toml:"log_level"`
}

// DefaultConfig returns binary, uncompressed output with qualified identities.
func DefaultConfig() Config {
	return Config{
		Format:            FormatBinary,
		Compression:       CompressionNone,
		MaxDepth:          graph.DefaultMaxDepth,
		QualifyIdentities: true,
		LogLevel:          "warn",
	}
}

// LoadConfig reads a TOML file over DefaultConfig, then applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var raw Config
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load config "+path)
		}
		if meta.IsDefined("format") {
			cfg.Format = Format(strings.TrimSpace(string(raw.Format)))
		}
		if meta.IsDefined("compression") {
			cfg.Compression = Compression(strings.TrimSpace(string(raw.Compression)))
		}
		if meta.IsDefined("max_depth") {
			cfg.MaxDepth = raw.MaxDepth
		}
		if meta.IsDefined("qualify_identities") {
			cfg.QualifyIdentities = raw.QualifyIdentities
		}
		if meta.IsDefined("log_level") {
			cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("unknown config key %q in %s", undecoded[0].String(), path).
				Build()
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvFormat); ok {
		c.Format = Format(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvCompression); ok {
		c.Compression = Compression(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvMaxDepth); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, EnvMaxDepth+" is not an integer")
		}
		c.MaxDepth = n
	}
	return nil
}

// Validate rejects unknown formats, compressions and log levels.
func (c Config) Validate() error {
	switch c.Format {
	case FormatBinary, FormatText:
	default:
		return invalidConfig("format", string(c.Format))
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return invalidConfig("compression", string(c.Compression))
	}
	if c.MaxDepth < 1 {
		return invalidConfig("max_depth", strconv.Itoa(c.MaxDepth))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return invalidConfig("log_level", c.LogLevel)
	}
	return nil
}

func invalidConfig(key, value string) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(key).
		Value(value).
		Detail("invalid %s %q", key, value).
		Build()
}

// NewLogger builds a production zap logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log_level").
			Value(c.LogLevel).
			Cause(err).
			Detail("parse log level").
			Build()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "build logger")
	}
	return l, nil
}
