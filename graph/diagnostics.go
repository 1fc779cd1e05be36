package graph

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/graphcodec/errors"
)

// Severity grades a Diagnostic.
type Severity int8

const (
	SeverityDebug Severity = iota - 1
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	default:
		return "error"
	}
}

func (s Severity) level() zapcore.Level {
	switch s {
	case SeverityDebug:
		return zapcore.DebugLevel
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Diagnostic is a non-fatal anomaly met during a write or read: a dropped
// member, a reshaped type, an unresolved identity or a failed hook.
type Diagnostic struct {
	Severity Severity
	Kind     errors.Kind
	Path     []string
	Identity string
	Offset   int64
	Message  string
	Cause    error
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	b.WriteString(" ")
	b.WriteString(string(d.Kind))
	if len(d.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(d.Path, "."))
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Sink receives diagnostics. It is called synchronously on the goroutine
// running the write or read.
type Sink func(Diagnostic)

// LogSink writes diagnostics to l.
func LogSink(l *zap.Logger) Sink {
	return func(d Diagnostic) {
		ce := l.Check(d.Severity.level(), d.Message)
		if ce == nil {
			return
		}
		fields := []zap.Field{zap.String("kind", string(d.Kind))}
		if len(d.Path) > 0 {
			fields = append(fields, zap.String("path", strings.Join(d.Path, ".")))
		}
		if d.Identity != "" {
			fields = append(fields, zap.String("identity", d.Identity))
		}
		if d.Offset > errors.NoOffset {
			fields = append(fields, zap.Int64("offset", d.Offset))
		}
		if d.Cause != nil {
			fields = append(fields, zap.Error(d.Cause))
		}
		ce.Write(fields...)
	}
}

func defaultSink(d Diagnostic) {
	LogSink(Logger())(d)
}
