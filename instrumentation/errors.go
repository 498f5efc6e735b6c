// Package instrumentation defines the engine's error taxonomy and the
// begin/end resolver-instrumentation hooks the execution engine invokes
// around every field and object fetch.
//
// The taxonomy is grounded in the teacher's graphql.SanitizedError /
// SafeError / ClientError split (graphql/errors.go): a SanitizedError
// carries a message safe to return to the client verbatim, while an
// unrecognized error is collapsed to a generic message before it ever
// reaches a response. Each of this engine's error kinds implements
// SanitizedError the same way the teacher's ClientError does.
package instrumentation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SanitizedError is implemented by every error the engine is willing to
// surface to a client verbatim. Any error that does not implement it is
// replaced with a generic message before being attached to a response
// (spec.md §7: "errors reaching the client are sanitized; only the
// recognized classes carry a client-safe message").
type SanitizedError interface {
	error
	SanitizedError() string
}

// Sanitize returns the client-safe message for err: its own
// SanitizedError() if it implements the interface, else a generic fallback
// that leaks no internal detail.
func Sanitize(err error) string {
	if s, ok := err.(SanitizedError); ok {
		return s.SanitizedError()
	}
	return "internal server error"
}

// DataFetchingException wraps any error a resolver or batch function
// returned while fetching a field's value (spec.md §7).
type DataFetchingException struct {
	Coordinate string // "TypeName.fieldName"
	Err        error
}

func (e *DataFetchingException) Error() string {
	return fmt.Sprintf("error fetching %s: %v", e.Coordinate, e.Err)
}
func (e *DataFetchingException) Unwrap() error { return e.Err }
func (e *DataFetchingException) SanitizedError() string {
	return fmt.Sprintf("error fetching %s", e.Coordinate)
}

// BatchSizeMismatch is raised when a BatchResolveFunc returns a result slice
// whose length does not match the number of parents it was given (spec.md
// §4.5.2, §7): the one shape violation the batching contract itself can
// detect, kept distinct from the generic DataFetchingException every other
// resolver failure collapses into.
type BatchSizeMismatch struct {
	Coordinate string
	Parents    int
	Results    int
}

func (e *BatchSizeMismatch) Error() string {
	return fmt.Sprintf("batch resolver for %s returned %d results for %d inputs", e.Coordinate, e.Results, e.Parents)
}
func (e *BatchSizeMismatch) SanitizedError() string { return e.Error() }

// UnsetSelection is raised when a resolver reads a parent/root field that
// was not named in its declared required-selection-set (spec.md §3, §7).
type UnsetSelection struct {
	Coordinate string
	FieldName  string
}

func (e *UnsetSelection) Error() string {
	return fmt.Sprintf("%s read field %q outside its required selection set", e.Coordinate, e.FieldName)
}
func (e *UnsetSelection) SanitizedError() string { return e.Error() }

// InvalidGlobalID is raised when a global ID string fails to decode, or
// decodes to a type other than the one the field's @idOf(type:) expects
// (spec.md §7, §8).
type InvalidGlobalID struct {
	Value        string
	ExpectedType string
	Err          error
}

func (e *InvalidGlobalID) Error() string {
	if e.ExpectedType != "" {
		return fmt.Sprintf("invalid global id %q: expected type %q: %v", e.Value, e.ExpectedType, e.Err)
	}
	return fmt.Sprintf("invalid global id %q: %v", e.Value, e.Err)
}
func (e *InvalidGlobalID) Unwrap() error { return e.Err }
func (e *InvalidGlobalID) SanitizedError() string {
	return fmt.Sprintf("invalid id %q", e.Value)
}

// ValidationError is raised at bootstrap or plan-build time when a
// selection set fails structural validation (spec.md §4.2, §7).
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string          { return "validation error: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error          { return e.Err }
func (e *ValidationError) SanitizedError() string { return e.Error() }

// Cancelled is raised when a request's context is cancelled or its deadline
// elapses mid-execution (spec.md §7).
type Cancelled struct {
	Err error
}

func (e *Cancelled) Error() string          { return "request cancelled: " + e.Err.Error() }
func (e *Cancelled) Unwrap() error          { return e.Err }
func (e *Cancelled) SanitizedError() string { return "request cancelled" }

// GRPCStatus lets a transport that speaks gRPC (google.golang.org/grpc's
// status.FromError recognizes any error implementing this) report request
// cancellation as the conventional codes.Canceled / codes.DeadlineExceeded
// rather than a generic codes.Unknown.
func (e *Cancelled) GRPCStatus() *status.Status {
	code := codes.Canceled
	if errors.Is(e.Err, context.DeadlineExceeded) {
		code = codes.DeadlineExceeded
	}
	return status.New(code, e.SanitizedError())
}

// NewCancelled wraps ctx.Err() (or any cancellation cause) as a Cancelled,
// the instrumentation layer's single entry point for recognizing a
// request's context was cancelled or timed out mid-execution.
func NewCancelled(err error) *Cancelled {
	return &Cancelled{Err: err}
}

// AccessDenied is raised when a scope/authorization check rejects a field
// or object (spec.md §7, the @scope directive of schema.AppliedDirective).
type AccessDenied struct {
	Coordinate string
	Reason     string
}

func (e *AccessDenied) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("access denied to %s: %s", e.Coordinate, e.Reason)
	}
	return fmt.Sprintf("access denied to %s", e.Coordinate)
}
func (e *AccessDenied) SanitizedError() string { return e.Error() }

// SubqueryExecutionException wraps a failure raised by the sub-selection
// protocol (spec.md §6, C6): a resolver's ad-hoc ExecutionHandle.Execute
// call failed.
type SubqueryExecutionException struct {
	Err error
}

func (e *SubqueryExecutionException) Error() string {
	return "subquery execution failed: " + e.Err.Error()
}
func (e *SubqueryExecutionException) Unwrap() error { return e.Err }
func (e *SubqueryExecutionException) SanitizedError() string {
	return "subquery execution failed"
}

// PathError attaches the response path (a sequence of response keys and
// list indices) an error occurred at, so callers can sort and report errors
// the way spec.md §7 requires: ordered by (path, message).
type PathError struct {
	Path []interface{}
	Err  error
}

func (e *PathError) Error() string          { return fmt.Sprintf("%v: %v", e.Path, e.Err) }
func (e *PathError) Unwrap() error          { return e.Err }
func (e *PathError) SanitizedError() string { return Sanitize(e.Err) }

// GraphQLBuildError is raised only at schema-bootstrap time (never during
// request execution): a malformed schema, an unregistrable resolver, or any
// other condition that makes the engine impossible to construct.
type GraphQLBuildError struct {
	Err error
}

func (e *GraphQLBuildError) Error() string          { return "graphql build error: " + e.Err.Error() }
func (e *GraphQLBuildError) Unwrap() error          { return e.Err }
func (e *GraphQLBuildError) SanitizedError() string { return e.Error() }
