package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDescribe Phase = "describe" // type descriptor construction
	PhaseEncode   Phase = "encode"   // primitive writes
	PhaseDecode   Phase = "decode"   // primitive reads
	PhaseWrite    Phase = "write"    // graph walk, Go to wire
	PhaseRead     Phase = "read"     // graph rebuild, wire to Go
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	// structural corruption
	KindUndeclaredRef  Kind = "undeclared_ref"
	KindUndeclaredType Kind = "undeclared_type"
	KindTruncated      Kind = "truncated"

	// format errors
	KindMalformedToken     Kind = "malformed_token"
	KindUnterminatedString Kind = "unterminated_string"
	KindKindMismatch       Kind = "kind_mismatch"
	KindOverflow           Kind = "overflow"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindInvalidData        Kind = "invalid_data"

	// usage errors
	KindUnsupported   Kind = "unsupported"
	KindDepthExceeded Kind = "depth_exceeded"
	KindRegistration  Kind = "registration"
	KindInvalidInput  Kind = "invalid_input"
	KindNilPointer    Kind = "nil_pointer"
	KindIO            Kind = "io"

	// absorbed kinds, only surfaced as diagnostics
	KindMemberAccess   Kind = "member_access"
	KindReshape        Kind = "reshape"
	KindUnresolvedType Kind = "unresolved_type"
	KindHookFailed     Kind = "hook_failed"
)

// NoOffset marks an error that has no stream position.
const NoOffset int64 = -1

// Error is the structured error type used throughout the codec
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	Identity string
	Detail   string
	Path     []string
	Offset   int64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset > NoOffset {
		b.WriteString(" (offset ")
		b.WriteString(strconv.FormatInt(e.Offset, 10))
		b.WriteByte(')')
	}

	if e.GoType != "" || e.Identity != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Identity != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", wire type ")
			b.WriteString(e.Identity)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("wire type ")
			b.WriteString(e.Identity)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Identity != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Structural reports whether the error means the stream itself is corrupt.
func (e *Error) Structural() bool {
	switch e.Kind {
	case KindUndeclaredRef, KindUndeclaredType, KindTruncated:
		return true
	}
	return false
}

// Format reports whether the error is a malformed primitive or kind mismatch.
func (e *Error) Format() bool {
	switch e.Kind {
	case KindMalformedToken, KindUnterminatedString, KindKindMismatch,
		KindOverflow, KindUnsupportedVersion, KindInvalidData:
		return true
	}
	return false
}

// IsStructural reports whether err carries a structural corruption error.
func IsStructural(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Structural()
}

// IsFormat reports whether err carries a format error.
func IsFormat(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Format()
}

// As is errors.As for callers that import this package under its own name.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// WithPath attaches a field path to err when it is an *Error without one.
// Other errors are returned unchanged.
func WithPath(err error, path []string) error {
	var e *Error
	if !stderrors.As(err, &e) || len(e.Path) > 0 || len(path) == 0 {
		return err
	}
	e.Path = append([]string(nil), path...)
	return err
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Identity sets the wire type identity
func (b *Builder) Identity(id string) *Builder {
	b.err.Identity = id
	return b
}

// Offset sets the byte or token position
func (b *Builder) Offset(off int64) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Truncated creates an end-of-stream error at offset
func Truncated(phase Phase, offset int64, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTruncated,
		Offset: offset,
		Detail: fmt.Sprintf("unexpected end of input reading %s", what),
	}
}

// MalformedToken creates a malformed text token error
func MalformedToken(offset int64, token, want string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformedToken,
		Offset: offset,
		Value:  token,
		Detail: fmt.Sprintf("malformed %s token %q", want, token),
	}
}

// KindMismatch creates a primitive kind mismatch error
func KindMismatch(offset int64, got, want string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindKindMismatch,
		Offset: offset,
		Detail: fmt.Sprintf("got %s, want %s", got, want),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, offset int64, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Offset: offset,
		Value:  value,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
	}
}

// UndeclaredRef creates a back-reference to an unknown instance id
func UndeclaredRef(offset int64, path []string, id uint64) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindUndeclaredRef,
		Offset: offset,
		Path:   path,
		Value:  id,
		Detail: fmt.Sprintf("reference id %d was never declared", id),
	}
}

// UndeclaredType creates a reference to an unknown type id
func UndeclaredType(offset int64, path []string, id uint64) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindUndeclaredType,
		Offset: offset,
		Path:   path,
		Value:  id,
		Detail: fmt.Sprintf("type id %d was never declared", id),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, goType, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		GoType: goType,
		Offset: NoOffset,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Offset: NoOffset,
		Detail: "nil pointer",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
	}
}

// IO wraps a sink or source failure
func IO(phase Phase, offset int64, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Offset: offset,
		Detail: "stream i/o failed",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}
