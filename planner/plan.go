// Package planner turns a validated selection.RawSelectionSet into a
// QueryPlan: a schema-bound, per-concrete-type tree of field steps that the
// execution engine walks directly, without re-inspecting fragments or
// interface/union membership at resolution time.
//
// It is grounded in the teacher's schemabuilder query-to-executableQuery
// pass (graphql/schemabuilder/schema.go's planning helpers, since removed
// from this tree as out of scope) generalized from the teacher's codegen
// object model to the schema package's runtime Composite/Object model, and
// in the teacher's batch_executor.go outputNode tree (one node per selected
// field, carrying its own children) which this plan's FieldStep/Plan
// pairing mirrors.
package planner

import (
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

// OperationType distinguishes the three execution modes spec.md §5
// requires different concurrency treatment for: a Query's fields resolve in
// parallel, a Mutation's top-level fields resolve strictly serially (their
// own children revert to concurrent), and a Subquery is a sub-selection
// re-entry that is always treated like a Query regardless of what resolver
// spawned it.
type OperationType int

const (
	OperationQuery OperationType = iota
	OperationMutation
	OperationSubquery
)

func (t OperationType) String() string {
	switch t {
	case OperationMutation:
		return "mutation"
	case OperationSubquery:
		return "subquery"
	default:
		return "query"
	}
}

// ArgValueKind is the closed set of shapes a coerced argument value can
// take. Coercion deliberately stops short of resolving variable references:
// spec.md §4.3 requires the plan cache key to exclude variable values, so a
// QueryPlan must remain valid across many requests that share a plan but
// differ in variables.
type ArgValueKind int

const (
	ArgNull ArgValueKind = iota
	ArgLiteral
	ArgVariable
	ArgList
	ArgObject
)

// ArgValue is one coerced argument (or nested list/object element). Exactly
// the fields matching Kind are meaningful.
type ArgValue struct {
	Kind ArgValueKind

	Literal  interface{}         // ArgLiteral: the raw scalar/enum token.
	Variable string              // ArgVariable: the referenced variable's name.
	Items    []ArgValue          // ArgList: element values, in order.
	Fields   map[string]ArgValue // ArgObject: input object field values.

	// IDOfType is non-empty when the schema binds this argument position to
	// an @idOf(type: "...") directive: the resolved value (literal or
	// variable) is a serialized global ID for that type and must be
	// decoded through the engine's GlobalID codec before a resolver sees
	// it. Coercion happens at execution time, never at plan time, since a
	// variable's concrete value isn't known until then.
	IDOfType string
}

// FieldStep is one field contributed by a concrete object type's selection:
// either a real schema field (with its coerced arguments and, if its type is
// composite, a child Plan) or the built-in __typename meta-field.
type FieldStep struct {
	ResponseKey string
	FieldName   string
	IsTypename  bool

	// Type is the field's declared TypeExpr (nil for IsTypename steps),
	// captured at plan time since it never varies with request variables;
	// the engine uses it to decide list-depth/nullability handling when a
	// resolver's value comes back.
	Type *schema.TypeExpr

	// Args holds one ArgValue per declared argument that was either
	// supplied in the selection or carries a schema default; arguments
	// that are absent and have no default are omitted entirely.
	Args map[string]ArgValue

	// Directives carries @include/@skip (and any other selection-level
	// directive) unresolved, since their condition argument may reference
	// a variable. The engine evaluates these against the request's bound
	// variables immediately before deciding whether to run this step.
	Directives []*selection.Directive

	// Children is nil for leaf (scalar/enum) fields and set whenever the
	// field's base type is a composite (Object/Interface/Union).
	Children *Plan
}

// Plan is the planned form of a selection set against a known composite
// type: one ordered field-step list per concrete object type the selection
// might resolve against at runtime (a union or interface fans out to more
// than one; a plain object has exactly one entry, itself).
type Plan struct {
	TypeName  string
	Operation OperationType

	// PerObjectType maps a concrete Object name (one of
	// Schema.PossibleObjects(TypeName)) to the ordered field steps selected
	// against it. Looked up at execution time once the concrete runtime
	// type of the object being resolved is known.
	PerObjectType map[string][]*FieldStep
}

// StepsFor returns the field steps planned for concreteObjectType, or nil if
// that type was not among the possible objects considered when the plan was
// built (the caller should treat this as "nothing selected", not an error:
// it can legitimately happen for a union member no branch of the query named).
func (p *Plan) StepsFor(concreteObjectType string) []*FieldStep {
	return p.PerObjectType[concreteObjectType]
}
