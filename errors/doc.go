// Package errors provides structured error types for the graph codec.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, Go type, wire identity,
// stream offset and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRead, errors.KindUndeclaredRef).
//		Path("order", "customer").
//		Offset(128).
//		Detail("reference id %d was never declared", id).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Truncated(errors.PhaseDecode, offset, "uint32")
//	err := errors.MalformedToken(offset, tok, "float64")
//
// Fatal kinds fall in two classes checked with IsStructural (undeclared
// reference or type id, truncated stream) and IsFormat (malformed token,
// unterminated string, kind mismatch). The remaining kinds never abort a call;
// they are reported through the graph diagnostic sink.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
