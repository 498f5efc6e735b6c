package viaduct

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viaductgraph/viaduct/engine"
	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
	"github.com/viaductgraph/viaduct/subselect"
)

// ExecutionInput is the transport-agnostic request the engine accepts
// (spec.md §6). A real deployment would resolve SchemaID against a schema
// registry and Document against a persisted-query store before reaching
// here; this engine is single-schema and takes Document directly, since
// persisted-query storage is outside this specification's scope.
type ExecutionInput struct {
	Document      string
	OperationName string
	Variables     map[string]interface{}

	// Root is the backing data for the operation's root object (Query or
	// Mutation). A host typically constructs this once per request from
	// whatever request-scoped context it has (the current viewer, tenant,
	// etc.) via eod.New; RootData is a convenience for callers with a
	// plain, fully-visible root map and no access-scoping to apply.
	Root     *eod.Object
	RootData map[string]interface{}

	// OpaqueExtensions carries implementation-defined request metadata
	// through unexamined; the engine does not interpret it, but a
	// ResolverInstrumentation implementation may close over it.
	OpaqueExtensions map[string]interface{}
}

// GQLError is one error entry of an ExecutionResult: a client-sanitized
// message and the response path it occurred at (spec.md §7).
type GQLError struct {
	Message string
	Path    []interface{}
}

// PathString renders Path the way spec.md §8's sortedness property compares
// it: path segments joined with '.'.
func (e *GQLError) PathString() string {
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return strings.Join(parts, ".")
}

// ExecutionResult is the outcome of one Execute call (spec.md §6).
type ExecutionResult struct {
	Data                   map[string]interface{}
	Errors                 []*GQLError
	Extensions             map[string]interface{}
	SortedDeterministically bool
}

// Engine is the immutable, request-servable result of Builder.Build: a
// closed schema, a validated resolver registry, a shared plan cache, and
// the request-independent configuration (codec, instrumentation, access
// checks) every Execute call reuses.
type Engine struct {
	fullSchema *schema.Schema // unscoped; sub-selections always plan against this one
	schema     *schema.Schema // scope-filtered, used for top-level requests

	registry *registry.Built
	cache    *planner.Cache

	codec           globalid.Codec
	instrumentation instrumentation.Resolver
	accessCheck     engine.AccessCheckFunc
	maxInFlight     int

	subqueryExecutionViaHandle bool

	// accessChecksSeparatePass selects the separate-pass access-check
	// strategy over the default inline one (spec.md §9,
	// FlagAccessChecksSeparatePass). Both strategies call accessCheck;
	// they differ only in when.
	accessChecksSeparatePass bool
}

// Schema returns the engine's (possibly scope-filtered) schema.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Execute parses, plans (or retrieves a cached plan for), and runs input
// against e, returning a fully-formed ExecutionResult with errors sorted by
// (path, message) and sanitized for client consumption (spec.md §6-7).
func (e *Engine) Execute(ctx context.Context, input ExecutionInput) *ExecutionResult {
	rss, err := selection.ParseOperation(input.Document, input.OperationName)
	if err != nil {
		return e.singleError(&instrumentation.ValidationError{Err: err}, nil)
	}

	rootType := e.schema.QueryTypeName()
	opKind := planner.OperationQuery
	if rss.OperationType == "mutation" {
		rootType = e.schema.MutationTypeName()
		opKind = planner.OperationMutation
		if rootType == "" {
			return e.singleError(&instrumentation.ValidationError{Err: fmt.Errorf("schema declares no Mutation type")}, nil)
		}
	}

	declaredVars := make(map[string]bool, len(input.Variables))
	for name := range input.Variables {
		declaredVars[name] = true
	}
	if err := selection.Validate(rss, e.schema, rootType, declaredVars); err != nil {
		return e.singleError(&instrumentation.ValidationError{Err: err}, nil)
	}

	plan, release, err := e.planFor(rss, rootType, opKind)
	if err != nil {
		return e.singleError(&instrumentation.GraphQLBuildError{Err: err}, nil)
	}
	defer release()

	root := input.Root
	if root == nil {
		root = eod.New(rootType, input.RootData, nil)
	}

	params := engine.NewParams(e.registry, e.fullSchema, input.Variables, e.codec, e.instrumentation)
	params.MaxInFlight = e.maxInFlight
	if e.accessCheck != nil {
		if e.accessChecksSeparatePass {
			denials := engine.PrecheckAccess(ctx, params, plan, e.accessCheck)
			params = params.WithPrecheckedAccess(denials)
		} else {
			params = params.WithAccessCheck(e.accessCheck)
		}
	}

	result := engine.Execute(ctx, params, plan, root)
	return e.toExecutionResult(result, input.OpaqueExtensions)
}

// SubselectHandle returns a subselect.Handle bound to this engine's full,
// unscoped schema and a Params carrying codec/instrumentation/access-check
// but no shared registry state with any particular in-flight request; a
// resolver normally obtains its own request-scoped handle instead of
// calling this directly (see engine.Params passed into resolver contexts by
// a host's resolver wiring). Exposed for hosts that need to drive a
// one-shot sub-selection outside of any request (e.g. warm-up, tests).
func (e *Engine) SubselectHandle(variables map[string]interface{}) *subselect.Handle {
	params := engine.NewParams(e.registry, e.fullSchema, variables, e.codec, e.instrumentation)
	params.MaxInFlight = e.maxInFlight
	if e.accessCheck != nil {
		params = params.WithAccessCheck(e.accessCheck)
	}
	return subselect.New(params, e.fullSchema)
}

// SubqueryExecutionViaHandleEnabled reports whether the
// ENABLE_SUBQUERY_EXECUTION_VIA_HANDLE flag was set at Build time. Resolver
// packages gate their own use of subselect.Handle on this so a host can
// stage the sub-selection protocol's rollout behind a flag.
func (e *Engine) SubqueryExecutionViaHandleEnabled() bool { return e.subqueryExecutionViaHandle }

func (e *Engine) planFor(rss *selection.RawSelectionSet, rootType string, op planner.OperationType) (*planner.Plan, func(), error) {
	key := planner.CacheKey{
		SchemaDigest:                  rootType,
		SelectionText:                 selectionDigest(rss),
		ExecuteAccessChecksInModstrat: e.accessCheck != nil,
	}
	if plan, release, ok := e.cache.Acquire(key); ok {
		return plan, release, nil
	}
	plan, err := planner.Build(rss, rootType, e.schema, op)
	if err != nil {
		return nil, nil, err
	}
	return plan, e.cache.Put(key, plan), nil
}

// selectionDigest renders one parsed document into the selection component
// of the plan cache key. Field names and aliases, arguments, directives,
// fragments and variable definitions all contribute, so two documents that
// would plan differently never share a cached plan; variable values do not
// (spec.md §4.3).
func selectionDigest(rss *selection.RawSelectionSet) string {
	var b strings.Builder
	writeSelectionDigest(&b, rss)
	return b.String()
}

func writeSelectionDigest(b *strings.Builder, rss *selection.RawSelectionSet) {
	if rss == nil {
		return
	}
	b.WriteString(rss.TypeCondition)
	for _, name := range rss.VariableOrder {
		v := rss.Variables[name]
		fmt.Fprintf(b, "$%s:%s=%#v;", name, v.TypeName, v.Default)
	}
	b.WriteByte('{')
	for _, sel := range rss.Selections {
		switch {
		case sel.IsField():
			b.WriteString(sel.ResponseKey())
			b.WriteByte(':')
			b.WriteString(sel.Name)
		case sel.IsInlineFragment:
			b.WriteString("...on ")
			b.WriteString(sel.InlineFragmentOn)
			writeSelectionDigest(b, sel.SelectionSet)
		default:
			b.WriteString("...")
			b.WriteString(sel.FragmentSpreadName)
			if frag, ok := rss.Fragments[sel.FragmentSpreadName]; ok {
				writeSelectionDigest(b, frag.SelectionSet)
			}
		}
		fmt.Fprintf(b, "%#v", sel.Args)
		for _, d := range sel.Directives {
			fmt.Fprintf(b, "@%s%#v", d.Name, d.Args)
		}
		if sel.SelectionSet != nil && sel.IsField() {
			writeSelectionDigest(b, sel.SelectionSet)
		}
		b.WriteByte(',')
	}
	b.WriteByte('}')
}

func (e *Engine) toExecutionResult(result *engine.Result, extensions map[string]interface{}) *ExecutionResult {
	out := &ExecutionResult{
		Data:                    result.Data,
		Extensions:              extensions,
		SortedDeterministically: true,
	}
	for _, err := range result.Errors {
		out.Errors = append(out.Errors, toGQLError(err))
	}
	sortErrors(out.Errors)
	return out
}

func (e *Engine) singleError(err error, path []interface{}) *ExecutionResult {
	return &ExecutionResult{
		Errors:                  []*GQLError{{Message: instrumentation.Sanitize(err), Path: path}},
		SortedDeterministically: true,
	}
}

func toGQLError(err error) *GQLError {
	if pe, ok := err.(*instrumentation.PathError); ok {
		return &GQLError{Message: instrumentation.Sanitize(pe.Err), Path: pe.Path}
	}
	return &GQLError{Message: instrumentation.Sanitize(err)}
}

func sortErrors(errs []*GQLError) {
	sort.SliceStable(errs, func(i, j int) bool {
		pi, pj := errs[i].PathString(), errs[j].PathString()
		if pi != pj {
			return pi < pj
		}
		return errs[i].Message < errs[j].Message
	})
}
