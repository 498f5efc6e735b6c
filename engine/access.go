package engine

import (
	"context"

	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
)

// PrecheckAccess implements the "separate pass" access-check strategy
// spec.md §9 names as an alternative to running AccessCheck inline from
// computeStep as each field is about to resolve (the "resolver strategy"):
// it walks plan once, up front, statically across every concrete object
// type and nested child plan the document could ever reach, and invokes
// check exactly once per distinct scoped coordinate the plan contains —
// before any resolver has run, independent of the runtime data those
// resolvers will eventually produce. Since an AccessCheckFunc's decision
// depends only on (ctx, coordinate, scopes), never on a particular parent
// object's field values, visiting each coordinate once here yields exactly
// the outcomes the inline strategy would reach by calling check repeatedly
// (once per object instance) as it walks the live response tree — the two
// strategies differ only in when the same decisions are made, never in
// what they decide.
//
// The returned map holds an entry for every scoped coordinate the plan
// reaches, nil for an allowed field and the denial error for a denied one;
// a coordinate absent from the map carries no scope requirement at all.
func PrecheckAccess(ctx context.Context, params *Params, plan *planner.Plan, check AccessCheckFunc) map[registry.Coordinate]error {
	denials := map[registry.Coordinate]error{}
	visitPlanAccess(ctx, params, plan, check, denials)
	return denials
}

func visitPlanAccess(ctx context.Context, params *Params, plan *planner.Plan, check AccessCheckFunc, denials map[registry.Coordinate]error) {
	if plan == nil {
		return
	}
	for typeName, steps := range plan.PerObjectType {
		for _, step := range steps {
			if step.IsTypename {
				continue
			}
			coord := registry.Coordinate{TypeName: typeName, FieldName: step.FieldName}
			if _, seen := denials[coord]; !seen {
				if scopes := fieldScopeNames(params.Schema, coord); len(scopes) > 0 {
					if err := check(ctx, coord.String(), scopes); err != nil {
						denials[coord] = &instrumentation.AccessDenied{Coordinate: coord.String(), Reason: err.Error()}
					} else {
						denials[coord] = nil
					}
				}
			}
			visitPlanAccess(ctx, params, step.Children, check, denials)
		}
	}
}
