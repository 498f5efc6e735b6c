package schema

import "github.com/samsarahq/go/oops"

// InvalidSchema is returned from Schema construction and Build when the
// definitions given do not form a closed, consistent schema. It is a fatal,
// bootstrap-time error (spec.md §7: GraphQLBuildError-class), never produced
// during request execution.
type InvalidSchema struct {
	err error
}

func (e *InvalidSchema) Error() string { return e.err.Error() }
func (e *InvalidSchema) Unwrap() error { return e.err }

func newInvalidSchema(format string, args ...interface{}) error {
	return &InvalidSchema{err: oops.Errorf(format, args...)}
}
