// Package subselect implements the sub-selection protocol (spec.md §6, C6):
// the ExecutionHandle a resolver can use to re-enter the engine with a
// fresh, ad-hoc selection string against the live request's schema and
// batching context, independent of whatever selection the outer query
// actually asked for.
//
// Grounded in the teacher's reactive/query re-entry pattern used by its
// live-query resolvers (reactive/util.go, since removed from this tree as
// out of scope) generalized into a synchronous one-shot handle: this
// specification's sub-selection re-entry is a plain nested Execute call,
// not a long-lived reactive subscription.
package subselect

import (
	"github.com/viaductgraph/viaduct/engine"
	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"

	"context"
)

// Handle is bound to one request's params and the engine's schema (always
// the full, unfiltered schema: spec.md §6 is explicit that a sub-selection
// re-entry ignores whatever scoped/filtered schema the outer request may
// have been planned against).
type Handle struct {
	params *engine.Params
	schema *schema.Schema
}

// New returns a Handle bound to the full schema and the request's shared
// engine.Params (so a subquery still batches alongside sibling resolutions
// of the request it was spawned from).
func New(params *engine.Params, fullSchema *schema.Schema) *Handle {
	return &Handle{params: params, schema: fullSchema}
}

// options configures one Execute call.
type options struct {
	sharedOER *engine.ObjectEngineResult
}

// Option configures a single subselect.Execute call.
type Option func(*options)

// WithSharedOER makes the subquery reuse the parent's ObjectEngineResult
// for the root object, so a field the parent query already resolved is not
// recomputed by the subquery (spec.md §6: "optionally sharing the parent's
// OER for memoization").
func WithSharedOER(oer *engine.ObjectEngineResult) Option {
	return func(o *options) { o.sharedOER = oer }
}

// Execute parses selectionText as a required-selection-set fragment
// against rootType, builds a fresh plan for it, and executes that plan
// against root with its own isolated variables. Errors are always wrapped
// in instrumentation.SubqueryExecutionException, per spec.md §7.
func (h *Handle) Execute(ctx context.Context, rootType, selectionText string, variables map[string]interface{}, root *eod.Object, opts ...Option) (*engine.Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rss, err := selection.ParseFragmentText(selectionText, rootType)
	if err != nil {
		return nil, &instrumentation.SubqueryExecutionException{Err: err}
	}
	if err := selection.Validate(rss, h.schema, rootType, nil); err != nil {
		return nil, &instrumentation.SubqueryExecutionException{Err: err}
	}

	plan, err := planner.Build(rss, rootType, h.schema, planner.OperationSubquery)
	if err != nil {
		return nil, &instrumentation.SubqueryExecutionException{Err: err}
	}

	subParams := h.params.WithVariables(variables)

	oer := o.sharedOER
	if oer == nil {
		oer = engine.NewOER()
	}

	result := engine.ExecuteWithOER(ctx, subParams, plan, root, oer)
	return result, nil
}
