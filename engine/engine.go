// Package engine is the execution engine (spec.md §5, C5): given a
// planner.Plan and a root eod.Object, it resolves every selected field,
// dispatching through the resolver registry, deduplicating repeated field
// access through an ObjectEngineResult, and batching sibling resolver calls
// through the adapted teacher batch.Func.
//
// Grounded in the teacher's batch_executor.go/batch_scheduler.go WorkUnit
// model: a Query's fields resolve concurrently, a Mutation's root fields
// resolve one at a time, and children always revert to concurrent
// (graphql/batch_executor.go's outputNode tree walks the same way). Unlike
// the teacher, concurrency here is expressed directly with goroutines and
// golang.org/x/sync/errgroup rather than a hand-rolled WorkScheduler, since
// this engine's plan is already fully built before execution starts (no
// reflection-driven field discovery happens mid-walk). Every goroutine this
// package spawns acquires a token from internal/concurrency first, bounding
// how many field/list-element resolutions one request runs at once.
package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/viaductgraph/viaduct/batch"
	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/internal/concurrency"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

// Result is the outcome of executing one plan against one root object: a
// response-key-keyed map of values, and any errors raised along the way
// (partial results and errors can coexist, per spec.md §7). Data is nil
// when a non-null field failed all the way to the root with no nullable
// ancestor to absorb it (spec.md §8 S6).
type Result struct {
	Data   map[string]interface{}
	Errors []error
}

// nullBubble marks an error whose underlying failures have already been
// recorded (as PathErrors, inside Errs) at the point a non-null field first
// failed to produce a value. Every ancestor step it passes through on its
// way up (run, via step.Type.NullableAtOutermost) decides only whether to
// stop it here — absorb it into a plain null for this field and merge Errs
// into its own errs — or keep propagating it (this field is itself
// non-null too, so the whole object containing it is void); it is never
// re-wrapped into a second PathError at any of those stops.
type nullBubble struct{ Errs []error }

func (nullBubble) Error() string { return "a non-null field resolved to null" }

func isNullBubble(err error) (nullBubble, bool) {
	b, ok := err.(nullBubble)
	return b, ok
}

// Execute runs plan against root, establishing the batching context the
// teacher's batch.Func requires and returning the combined result. This is
// the engine's one true entrypoint; every recursive descent into a child
// object goes through executeObject directly since it reuses the same
// batching context already installed on ctx.
func Execute(ctx context.Context, params *Params, plan *planner.Plan, root *eod.Object) *Result {
	return ExecuteWithOER(ctx, params, plan, root, NewOER())
}

// ExecuteWithOER is Execute with the caller supplying the root object's
// ObjectEngineResult rather than a fresh one. The sub-selection protocol
// (package subselect) uses this to let a resolver-spawned subquery share
// memoization with the query it was spawned from (spec.md §6, C6).
func ExecuteWithOER(ctx context.Context, params *Params, plan *planner.Plan, root *eod.Object, oer *ObjectEngineResult) *Result {
	if !batch.HasBatching(ctx) {
		ctx = batch.WithBatching(ctx)
	}
	if !batch.HasCache(ctx) {
		ctx = batch.WithCache(ctx)
	}
	if !concurrency.HasLimiter(ctx) {
		ctx = concurrency.WithLimiter(ctx, params.MaxInFlight)
	}
	if params.rootObj == nil {
		params = params.withRoot(root, oer)
	}
	data, errs, invalidated := executeObject(ctx, params, plan, root, oer)
	if invalidated {
		data = nil
	}
	return &Result{Data: data, Errors: errs}
}

// executeObject resolves every field plan selects against obj (looked up by
// obj's own concrete type, so a plan built against an interface or union
// still resolves correctly regardless of which member obj actually is),
// sharing oer as the memoization scope for this one object instance. The
// returned bool reports whether a non-null field failed without a nullable
// ancestor within this object to absorb it, in which case obj's own value
// must become null (or keep bubbling, if the field that produced obj is
// itself non-null) rather than the partial result map (spec.md §8 S6).
func executeObject(ctx context.Context, params *Params, plan *planner.Plan, obj *eod.Object, oer *ObjectEngineResult) (map[string]interface{}, []error, bool) {
	steps := plan.StepsFor(obj.GraphQLObjectType())
	result := make(map[string]interface{}, len(steps))
	var errs []error
	var invalidated bool
	var mu sync.Mutex

	run := func(step *planner.FieldStep) {
		if !directivesAllow(step.Directives, params.Variables) {
			return
		}
		val, err := resolveStep(ctx, params, step, obj, oer)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if bubble, ok := isNullBubble(err); ok {
				errs = append(errs, bubble.Errs...)
			} else {
				errs = append(errs, &instrumentation.PathError{Path: []interface{}{step.ResponseKey}, Err: err})
			}
			if step.Type != nil && !step.Type.NullableAtOutermost() {
				invalidated = true
			} else {
				result[step.ResponseKey] = nil
			}
			return
		}
		result[step.ResponseKey] = val
	}

	if plan.Operation == planner.OperationMutation {
		// Root mutation fields resolve strictly serially (spec.md §5.1);
		// their own children are planned as OperationQuery and so resolve
		// concurrently from here on down.
		for _, step := range steps {
			span := params.Instrumentation.BeginFetchObjectSerially(ctx, obj.GraphQLObjectType())
			run(step)
			span.End(nil)
		}
		return result, errs, invalidated
	}

	span := params.Instrumentation.BeginFetchObject(ctx, obj.GraphQLObjectType())
	defer span.End(nil)

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		step := step
		g.Go(func() error {
			concurrency.Acquire(gctx)
			defer concurrency.Release(gctx)
			run(step)
			return gctx.Err()
		})
	}
	_ = g.Wait()
	return result, errs, invalidated
}

func resolveStep(ctx context.Context, params *Params, step *planner.FieldStep, obj *eod.Object, oer *ObjectEngineResult) (interface{}, error) {
	cell := oer.CellFor(step.ResponseKey)
	if cell.TryStart() {
		val, err := computeStep(ctx, params, step, obj, oer)
		if err == nil && ctx.Err() != nil {
			err = instrumentation.NewCancelled(ctx.Err())
		}
		if err != nil {
			cell.Fail(err)
		} else {
			cell.Resolve(val)
		}
	}
	return cell.Wait(ctx)
}

func computeStep(ctx context.Context, params *Params, step *planner.FieldStep, obj *eod.Object, oer *ObjectEngineResult) (interface{}, error) {
	if step.IsTypename {
		return obj.GraphQLObjectType(), nil
	}

	coord := registry.Coordinate{TypeName: obj.GraphQLObjectType(), FieldName: step.FieldName}
	args, err := coerceRuntimeArgs(step.Args, params)
	if err != nil {
		return nil, err
	}

	if params.precheckedAccess != nil {
		// Separate-pass strategy: the decision for coord, if it carries any
		// scope requirement, was already made by PrecheckAccess before this
		// request resolved a single field.
		if denyErr, scoped := params.precheckedAccess[coord]; scoped && denyErr != nil {
			return nil, denyErr
		}
	} else if params.AccessCheck != nil {
		if scopes := fieldScopeNames(params.Schema, coord); len(scopes) > 0 {
			if denyErr := params.AccessCheck(ctx, coord.String(), scopes); denyErr != nil {
				return nil, &instrumentation.AccessDenied{Coordinate: coord.String(), Reason: denyErr.Error()}
			}
		}
	}

	var value interface{}
	fr, hasResolver := params.Registry.Field(coord)
	if hasResolver {
		scoped, depErr := resolveRequiredSelection(ctx, params, params.dependencyPlanFor(coord, fr), obj, oer)
		if depErr != nil {
			return nil, depErr
		}
		boundArgs, bindErr := bindVariables(ctx, params, coord, fr, scoped, args)
		if bindErr != nil {
			return nil, bindErr
		}
		span := params.Instrumentation.BeginFieldResolve(ctx, coord.String())
		if fr.BatchResolve != nil {
			bf := params.batchFuncFor(coord, fr)
			v, invokeErr := bf.Invoke(ctx, &batchCall{parent: scoped, args: boundArgs})
			value, err = v, invokeErr
		} else {
			value, err = fr.Resolve(ctx, scoped, boundArgs)
		}
		span.End(err)
	} else {
		value, err = obj.Fetch(step.FieldName)
	}
	if err != nil {
		// An error already classified into the engine's own taxonomy (e.g.
		// UnsetSelection, BatchSizeMismatch) keeps its specific classification
		// rather than collapsing into the generic DataFetchingException.
		if _, classified := err.(instrumentation.SanitizedError); classified {
			return nil, err
		}
		return nil, &instrumentation.DataFetchingException{Coordinate: coord.String(), Err: err}
	}

	if step.Children == nil {
		return value, nil
	}
	if hasResolver && fr.Selective {
		return value, nil
	}
	return resolveComposite(ctx, params, step.Type, step.Children, value)
}

// resolveComposite walks step.Type's list/nullable wrapping down to its base
// composite type, executing step.Children against whatever object(s) the
// resolver produced.
func resolveComposite(ctx context.Context, params *Params, t *schema.TypeExpr, childPlan *planner.Plan, value interface{}) (interface{}, error) {
	if t.IsList() {
		if value == nil {
			if !t.NullableAtOutermost() {
				return nil, fmt.Errorf("non-null list field resolved to nil")
			}
			return nil, nil
		}
		list, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("resolver returned %T, expected []interface{} for list field of %s", value, t.BaseType)
		}
		inner := t.UnwrapList()
		out := make([]interface{}, len(list))
		// Sibling list elements resolve concurrently so that, in particular,
		// a batchable resolver reached once per element collapses into one
		// ManyFunc call instead of len(list) serial ones (spec.md §5.2).
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range list {
			i, item := i, item
			g.Go(func() error {
				concurrency.Acquire(gctx)
				defer concurrency.Release(gctx)
				v, err := resolveComposite(gctx, params, inner, childPlan, item)
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}

	if value == nil {
		if !t.BaseNullable {
			return nil, fmt.Errorf("non-null field of type %s resolved to nil", t.BaseType)
		}
		return nil, nil
	}

	obj, err := realizeObject(ctx, value)
	if err != nil {
		return nil, err
	}
	data, errs, invalidated := executeObject(ctx, params, childPlan, obj, NewOER())
	if invalidated {
		return nil, nullBubble{Errs: errs}
	}
	if len(errs) > 0 {
		return data, combine(errs)
	}
	return data, nil
}

// fieldScopeNames looks up the @scope(to: [...]) requirements declared on
// coord's field, checking the object's own fields first and falling back to
// any interface it implements (a field can be declared, and scoped, at the
// interface level rather than re-declared per implementor).
func fieldScopeNames(sch *schema.Schema, coord registry.Coordinate) []string {
	if coord.FieldName == "__typename" {
		return nil
	}
	if obj, ok := sch.GetObject(coord.TypeName); ok {
		if f, ok := obj.Fields[coord.FieldName]; ok {
			return f.ScopeNames()
		}
	}
	if iface, ok := sch.GetInterface(coord.TypeName); ok {
		if f, ok := iface.Fields[coord.FieldName]; ok {
			return f.ScopeNames()
		}
	}
	return nil
}

func realizeObject(ctx context.Context, value interface{}) (*eod.Object, error) {
	switch v := value.(type) {
	case *eod.Object:
		return v, nil
	case *eod.NodeRef:
		return v.ResolveData(ctx)
	default:
		return nil, fmt.Errorf("eod: resolver returned %T for a composite field; expected *eod.Object or *eod.NodeRef", value)
	}
}

// resolveRequiredSelection produces the scoped view a resolver actually
// sees for one required selection set (a resolver's object fragment against
// obj, or its query fragment against the request root): one field per
// depPlan's steps, each resolved through the same obj/oer resolveStep path
// an ordinarily-selected field goes through rather than a raw map read
// (spec.md §4.5.1 item 3, §4.4). A required field that is itself
// @resolver-backed is therefore actually invoked here (and batched/memoized
// exactly like any other step reaching that coordinate) instead of silently
// reading stale backing data or failing UnsetSelection; a plain backing
// field falls through computeStep's own obj.Fetch branch unchanged. Sharing
// oer means a dependency already resolved for a sibling resolver (or already
// selected directly by the client's own query) is read once, not recomputed
// per dependent.
func resolveRequiredSelection(ctx context.Context, params *Params, depPlan *planner.Plan, obj *eod.Object, oer *ObjectEngineResult) (*eod.Object, error) {
	depSteps := depPlan.StepsFor(obj.GraphQLObjectType())

	allowed := make(map[string]bool, len(depSteps))
	data := make(map[string]interface{}, len(depSteps))
	if len(depSteps) == 0 {
		return eod.New(obj.GraphQLObjectType(), data, allowed), nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range depSteps {
		step := step
		allowed[step.ResponseKey] = true
		g.Go(func() error {
			concurrency.Acquire(gctx)
			defer concurrency.Release(gctx)
			val, err := resolveStep(gctx, params, step, obj, oer)
			if err != nil {
				return err
			}
			mu.Lock()
			data[step.ResponseKey] = val
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return eod.New(obj.GraphQLObjectType(), data, allowed), nil
}

// bindVariables computes fr.Variables (spec.md §4.4) against args (the
// resolver's own coerced GraphQL arguments), scoped (the object fragment
// view resolveRequiredSelection already built for this call), and, when
// fr.QueryFragment() is set, a second scoped view resolved against the
// request's root object. Each binding's resolved value is merged into a
// copy of args under its own Name, so the resolver sees its argument record
// and its bound variables as one flat map, matching how fr.Resolve's second
// parameter has always worked. Returns args unmodified when fr has no
// Variables, so the common case allocates nothing extra.
func bindVariables(ctx context.Context, params *Params, coord registry.Coordinate, fr *registry.FieldResolver, scoped *eod.Object, args map[string]interface{}) (map[string]interface{}, error) {
	if len(fr.Variables) == 0 {
		return args, nil
	}

	var queryScoped *eod.Object
	if fr.QueryFragment() != nil {
		if params.rootObj == nil || params.rootOER == nil {
			return nil, fmt.Errorf("registry: %s declares a query fragment but no request root is available", coord)
		}
		qs, err := resolveRequiredSelection(ctx, params, params.queryDependencyPlanFor(coord, fr), params.rootObj, params.rootOER)
		if err != nil {
			return nil, err
		}
		queryScoped = qs
	}

	out := make(map[string]interface{}, len(args)+len(fr.Variables))
	for k, v := range args {
		out[k] = v
	}
	for _, vb := range fr.Variables {
		var (
			val interface{}
			err error
		)
		switch vb.Source {
		case registry.FromArgument:
			val = args[vb.ArgumentName]
		case registry.FromObjectField:
			val, err = scoped.Fetch(vb.FieldName)
		case registry.FromQueryField:
			if queryScoped == nil {
				err = fmt.Errorf("registry: %s binds variable %q FromQueryField but declares no query fragment", coord, vb.Name)
			} else {
				val, err = queryScoped.Fetch(vb.FieldName)
			}
		case registry.FromProvider:
			val, err = vb.Provider(ctx, args)
		}
		if err != nil {
			return nil, err
		}
		out[vb.Name] = val
	}
	return out, nil
}

func combine(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d errors", len(errs))
	return fmt.Errorf("%s: %v", msg, errs)
}

// directivesAllow evaluates @skip/@include against vars, defaulting to
// "include" when neither directive is present.
func directivesAllow(directives []*selection.Directive, vars map[string]interface{}) bool {
	for _, d := range directives {
		switch d.Name {
		case "skip":
			if boolArg(d.Args["if"], vars) {
				return false
			}
		case "include":
			if !boolArg(d.Args["if"], vars) {
				return false
			}
		}
	}
	return true
}

func boolArg(v selection.Value, vars map[string]interface{}) bool {
	switch v := v.(type) {
	case selection.ScalarValue:
		b, _ := v.Raw.(bool)
		return b
	case selection.VariableRef:
		b, _ := vars[v.Name].(bool)
		return b
	default:
		return false
	}
}
