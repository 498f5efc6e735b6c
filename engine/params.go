package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/viaductgraph/viaduct/batch"
	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

// Params bundles everything one Execute call shares across every object and
// field it resolves: the built resolver registry, the schema, bound request
// variables, the instrumentation hooks, the global ID codec, and the
// request-scoped batch.Func instances that implement automatic batching
// across sibling parents (spec.md §5.2, C5.2).
//
// The batching layer is the teacher's batch.Func (batch/batch.go) used
// exactly as designed: Invoke calls made by concurrently-resolving sibling
// objects within the same coordinate's MaxDuration window combine into one
// ManyFunc call. One Params (and so one set of batch.Func instances) must be
// scoped to a single request, since batch.Func accumulates calls across
// goroutines and never resets itself.
type Params struct {
	Registry        *registry.Built
	Schema          *schema.Schema
	Codec           globalid.Codec
	Instrumentation instrumentation.Resolver
	Variables       map[string]interface{}

	// AccessCheck, when non-nil, is invoked once per @scope-bearing field
	// before its resolver runs (the viaduct.Builder's withCheckerExecutorFactory
	// plug-in point). A non-nil return denies the field with AccessDenied
	// without failing the rest of the request. Ignored once precheckedAccess
	// is set: the separate-pass strategy has already decided every scoped
	// coordinate the plan reaches, so computeStep never calls AccessCheck
	// inline in that mode.
	AccessCheck AccessCheckFunc

	// precheckedAccess holds the separate-pass strategy's precomputed
	// denial map (spec.md §9), built once up front by PrecheckAccess. Nil
	// means the inline ("resolver strategy") mode is active instead.
	precheckedAccess map[registry.Coordinate]error

	// MaxInFlight bounds how many field/list-element resolutions this
	// request may run concurrently; 0 means unbounded. Execute installs
	// this as a internal/concurrency limiter on the request context.
	MaxInFlight int

	mu         *sync.Mutex
	batchFuncs map[string]*batch.Func

	// depPlansMu guards both objFragmentPlans and queryFragmentPlans, the
	// per-coordinate Plan caches resolveRequiredSelection draws from for a
	// resolver's object fragment and query fragment respectively (spec.md
	// §4.4). Both depend only on the schema, never on request variables, so
	// one cache lives for the whole request (and any subquery sharing this
	// Params).
	depPlansMu         *sync.Mutex
	objFragmentPlans   map[registry.Coordinate]*planner.Plan
	queryFragmentPlans map[registry.Coordinate]*planner.Plan

	// rootObj/rootOER are the root object and memoization scope this
	// request's Execute/ExecuteWithOER call started from, letting a
	// resolver's query fragment (spec.md §4.4) read root Query fields
	// regardless of how deeply nested the resolver's own parent is. Unset
	// for a Params that has never gone through ExecuteWithOER (e.g. a bare
	// NewParams used directly in a unit test that never reads a query
	// fragment).
	rootObj *eod.Object
	rootOER *ObjectEngineResult
}

// withRoot returns a copy of p bound to root/oer as the request's root
// scope for query-fragment resolution.
func (p *Params) withRoot(root *eod.Object, oer *ObjectEngineResult) *Params {
	cp := *p
	cp.rootObj = root
	cp.rootOER = oer
	return &cp
}

// AccessCheckFunc evaluates whether the current request may read a field
// that declared one or more @scope(to: [...]) requirements.
type AccessCheckFunc func(ctx context.Context, coordinate string, scopes []string) error

// NewParams constructs a Params for one request. codec and instr may be nil,
// in which case the default global-ID codec and a no-op instrumentation
// resolver are used.
func NewParams(reg *registry.Built, sch *schema.Schema, variables map[string]interface{}, codec globalid.Codec, instr instrumentation.Resolver) *Params {
	if codec == nil {
		codec = globalid.Default
	}
	if instr == nil {
		instr = instrumentation.NopResolver{}
	}
	if variables == nil {
		variables = map[string]interface{}{}
	}
	return &Params{
		Registry:           reg,
		Schema:             sch,
		Codec:              codec,
		Instrumentation:    instr,
		Variables:          variables,
		mu:                 &sync.Mutex{},
		batchFuncs:         map[string]*batch.Func{},
		depPlansMu:         &sync.Mutex{},
		objFragmentPlans:   map[registry.Coordinate]*planner.Plan{},
		queryFragmentPlans: map[registry.Coordinate]*planner.Plan{},
	}
}

// WithVariables returns a copy of p bound to a different, isolated set of
// variables, while continuing to share p's resolver registry, schema,
// codec, instrumentation, and in-flight batch.Func instances. This is the
// hook the sub-selection protocol uses (spec.md §6, C6): a resolver-driven
// subquery gets its own variable scope but still batches alongside the
// request it was spawned from.
func (p *Params) WithVariables(variables map[string]interface{}) *Params {
	if variables == nil {
		variables = map[string]interface{}{}
	}
	cp := *p
	cp.Variables = variables
	return &cp
}

// WithAccessCheck returns a copy of p with check installed as its
// AccessCheckFunc, otherwise sharing everything p shares.
func (p *Params) WithAccessCheck(check AccessCheckFunc) *Params {
	cp := *p
	cp.AccessCheck = check
	return &cp
}

// WithPrecheckedAccess returns a copy of p bound to denials, the output of
// PrecheckAccess, switching computeStep from the inline access-check
// strategy to the separate-pass one (spec.md §9).
func (p *Params) WithPrecheckedAccess(denials map[registry.Coordinate]error) *Params {
	cp := *p
	cp.precheckedAccess = denials
	return &cp
}

// batchCall is one sibling's contribution to a batched coordinate's
// invocation: its scoped parent object and its coerced runtime arguments.
type batchCall struct {
	parent *eod.Object
	args   map[string]interface{}
}

// dependencyPlanFor returns the Plan for coord's FieldResolver's object
// fragment (spec.md §4.4's objectFragment), building it once per Coordinate
// and caching it for the life of the request (and any subquery sharing this
// Params, since the plan depends only on the schema, never on variables).
// The resulting Plan's steps are what resolveRequiredSelection actually
// invokes through resolveStep, so a required field that is itself
// @resolver-backed runs through the same dispatch, batching, and
// memoization as any other step.
func (p *Params) dependencyPlanFor(coord registry.Coordinate, fr *registry.FieldResolver) *planner.Plan {
	return p.cachedPlan(p.objFragmentPlans, coord, fr.RequiredSelection(), coord.TypeName)
}

// queryDependencyPlanFor returns the Plan for coord's FieldResolver's query
// fragment (spec.md §4.4's queryFragment), rooted at the schema's Query type
// rather than coord.TypeName. Only meaningful when fr.QueryFragment() is
// non-nil.
func (p *Params) queryDependencyPlanFor(coord registry.Coordinate, fr *registry.FieldResolver) *planner.Plan {
	return p.cachedPlan(p.queryFragmentPlans, coord, fr.QueryFragment(), p.Schema.QueryTypeName())
}

func (p *Params) cachedPlan(cache map[registry.Coordinate]*planner.Plan, coord registry.Coordinate, rss *selection.RawSelectionSet, rootType string) *planner.Plan {
	p.depPlansMu.Lock()
	defer p.depPlansMu.Unlock()
	if dp, ok := cache[coord]; ok {
		return dp
	}
	// rss was already parsed and validated against rootType at
	// registry.Build time, so Build here can only fail if that invariant has
	// been violated elsewhere.
	dp, err := planner.Build(rss, rootType, p.Schema, planner.OperationQuery)
	if err != nil {
		dp = &planner.Plan{TypeName: rootType, PerObjectType: map[string][]*planner.FieldStep{}}
	}
	cache[coord] = dp
	return dp
}

func (p *Params) batchFuncFor(coord registry.Coordinate, fr *registry.FieldResolver) *batch.Func {
	key := coord.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	if bf, ok := p.batchFuncs[key]; ok {
		return bf
	}

	bf := &batch.Func{
		Shard: func(arg interface{}) interface{} {
			call := arg.(*batchCall)
			return fmt.Sprintf("%v", call.args)
		},
		Many: func(ctx context.Context, args []interface{}) ([]interface{}, error) {
			parents := make([]*eod.Object, len(args))
			argMaps := make([]map[string]interface{}, len(args))
			for i, a := range args {
				call := a.(*batchCall)
				parents[i] = call.parent
				argMaps[i] = call.args
			}
			results, err := fr.BatchResolve(ctx, parents, argMaps)
			if err != nil {
				return nil, err
			}
			if len(results) != len(parents) {
				return nil, &instrumentation.BatchSizeMismatch{Coordinate: coord.String(), Parents: len(parents), Results: len(results)}
			}
			return results, nil
		},
	}
	p.batchFuncs[key] = bf
	return bf
}
