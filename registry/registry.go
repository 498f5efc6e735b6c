// Package registry is the resolver registry and dispatcher (spec.md §3-4,
// C4): it holds every FieldResolver and NodeResolver the host application
// registers, validates each one's required selection against the schema at
// Build time, and answers the execution engine's lookups by coordinate.
//
// It is grounded in the teacher's schemabuilder.Schema field-registration
// surface (graphql/schemabuilder/schema.go, since removed from this tree as
// codegen-specific) generalized from reflection-derived resolvers to
// directly-registered FieldResolver/NodeResolver descriptors, since this
// specification's resolvers are declared against the already-built
// schema.Schema rather than generated from Go struct tags.
package registry

import (
	"context"
	"fmt"

	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

// Coordinate names a single resolvable field by its enclosing type and
// field name, e.g. {"Character", "filmCount"}.
type Coordinate struct {
	TypeName  string
	FieldName string
}

func (c Coordinate) String() string { return c.TypeName + "." + c.FieldName }

// ResolveFunc computes one field's value for one parent object.
type ResolveFunc func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error)

// BatchResolveFunc computes a field's value for many sibling parent objects
// at once (spec.md §5.2). It must return a result slice the same length as
// parents, element-aligned; the engine raises BatchSizeMismatch otherwise.
type BatchResolveFunc func(ctx context.Context, parents []*eod.Object, args []map[string]interface{}) ([]interface{}, error)

// VariableBindingSource is the closed set of places a VariableBinding may
// draw its value from (spec.md §4.4's "variables bindings").
type VariableBindingSource int

const (
	// FromArgument copies the resolver's own coerced GraphQL argument
	// named by VariableBinding.ArgumentName.
	FromArgument VariableBindingSource = iota
	// FromObjectField reads a field named by VariableBinding.FieldName out
	// of the resolver's object fragment (so that field must also appear in
	// RequiredSelectionText).
	FromObjectField
	// FromQueryField reads a field named by VariableBinding.FieldName out
	// of the resolver's query fragment (so that field must also appear in
	// QueryFragmentText).
	FromQueryField
	// FromProvider computes the value dynamically via
	// VariableBinding.Provider, given the resolver's coerced arguments.
	FromProvider
)

// VariablesProviderFunc computes a dynamically-bound variable's value from
// the resolver's own coerced argument record.
type VariablesProviderFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// VariableBinding derives one extra named input a resolver receives
// alongside its coerced GraphQL arguments (spec.md §4.4). Exactly the field
// matching Source is meaningful: ArgumentName for FromArgument, FieldName
// for FromObjectField/FromQueryField, Provider for FromProvider.
type VariableBinding struct {
	Name         string
	Source       VariableBindingSource
	ArgumentName string
	FieldName    string
	Provider     VariablesProviderFunc
}

// FieldResolver is the descriptor a host application registers for one
// resolvable field. Exactly one of Resolve or BatchResolve must be set.
type FieldResolver struct {
	Coordinate Coordinate

	// RequiredSelectionText is the object fragment (spec.md §4.4's
	// objectFragment): the required-selection-set string naming exactly
	// the parent fields this resolver is allowed to read; "" means the
	// resolver reads no parent data.
	RequiredSelectionText string

	// QueryFragmentText is the query fragment (spec.md §4.4's
	// queryFragment): a second, independent required-selection-set string
	// naming fields this resolver may read off the request's root Query
	// object, regardless of how deeply nested the resolver's own parent
	// is. "" means the resolver reads no root Query data.
	QueryFragmentText string

	// Variables binds extra named inputs the resolver receives alongside
	// its coerced GraphQL arguments (spec.md §4.4).
	Variables []VariableBinding

	// Selective marks a resolver that manages which of its own children to
	// resolve itself (typically via package subselect), rather than
	// leaving the engine to plan and walk step.Children automatically
	// (spec.md §4.4). The engine returns a Selective resolver's value
	// as-is without further composite resolution.
	Selective bool

	Resolve      ResolveFunc
	BatchResolve BatchResolveFunc

	// requiredSelection/queryFragment are populated by Build from
	// RequiredSelectionText/QueryFragmentText.
	requiredSelection *selection.RawSelectionSet
	queryFragment     *selection.RawSelectionSet
}

// RequiredSelection returns the parsed, validated object fragment (nil
// before Build runs).
func (f *FieldResolver) RequiredSelection() *selection.RawSelectionSet { return f.requiredSelection }

// QueryFragment returns the parsed, validated query fragment (nil before
// Build runs, or if QueryFragmentText was never set).
func (f *FieldResolver) QueryFragment() *selection.RawSelectionSet { return f.queryFragment }

// NodeResolver resolves a Node type's backing data from its internal ID
// (spec.md §3, §8): the half of the global-ID protocol that turns a decoded
// (typeName, internalID) pair back into fetchable object data.
type NodeResolver struct {
	TypeName string
	Fetch    func(ctx context.Context, internalID string) (map[string]interface{}, error)
}

// DuplicateResolver is raised at Build time when two FieldResolvers (or two
// NodeResolvers) register the same coordinate / type name.
type DuplicateResolver struct {
	Coordinate string
}

func (e *DuplicateResolver) Error() string {
	return fmt.Sprintf("duplicate resolver registered for %s", e.Coordinate)
}

// AmbiguousResolver is raised when a field is both declared resolvable by
// the schema (it or its enclosing Object carries @resolver) and left
// unregistered, or is registered without the schema marking it resolvable.
// spec.md §9 resolves the "warn and skip vs. hard fail" open question in
// favor of hard failing everywhere unless the registry is explicitly built
// in lenient mode (see Build's strict parameter).
type AmbiguousResolver struct {
	Coordinate string
	Reason     string
}

func (e *AmbiguousResolver) Error() string {
	return fmt.Sprintf("ambiguous resolver for %s: %s", e.Coordinate, e.Reason)
}

// Registry accumulates FieldResolver/NodeResolver registrations before
// Build closes and validates them against a schema.
type Registry struct {
	fields []*FieldResolver
	nodes  []*NodeResolver
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// AddField registers fr. Returns the Registry for chaining.
func (r *Registry) AddField(fr *FieldResolver) *Registry {
	r.fields = append(r.fields, fr)
	return r
}

// AddNode registers nr. Returns the Registry for chaining.
func (r *Registry) AddNode(nr *NodeResolver) *Registry {
	r.nodes = append(r.nodes, nr)
	return r
}

// Built is the validated, immutable result of Build: fast coordinate/type
// lookups the execution engine uses during dispatch.
type Built struct {
	fields map[Coordinate]*FieldResolver
	nodes  map[string]*NodeResolver
}

// Field looks up the resolver registered for coordinate, if any.
func (b *Built) Field(c Coordinate) (*FieldResolver, bool) {
	fr, ok := b.fields[c]
	return fr, ok
}

// Node looks up the NodeResolver registered for typeName, if any.
func (b *Built) Node(typeName string) (*NodeResolver, bool) {
	nr, ok := b.nodes[typeName]
	return nr, ok
}

// Build validates every registration against sch: required selections must
// parse and type-check, every coordinate must be unique, and (when strict
// is true, the default the viaduct.Builder wires) every field the schema
// marks resolvable must have exactly one registered FieldResolver and vice
// versa, and every Node Object must have a registered NodeResolver. A second
// NodeResolver for the same type fails in either mode.
func Build(r *Registry, sch *schema.Schema, strict bool) (*Built, error) {
	b := &Built{fields: map[Coordinate]*FieldResolver{}, nodes: map[string]*NodeResolver{}}

	for _, fr := range r.fields {
		if _, exists := b.fields[fr.Coordinate]; exists {
			return nil, &DuplicateResolver{Coordinate: fr.Coordinate.String()}
		}
		if fr.Resolve == nil && fr.BatchResolve == nil {
			return nil, &AmbiguousResolver{Coordinate: fr.Coordinate.String(), Reason: "neither Resolve nor BatchResolve is set"}
		}
		if fr.Resolve != nil && fr.BatchResolve != nil {
			return nil, &AmbiguousResolver{Coordinate: fr.Coordinate.String(), Reason: "both Resolve and BatchResolve are set"}
		}

		rss, err := selection.ParseFragmentText(fr.RequiredSelectionText, fr.Coordinate.TypeName)
		if err != nil {
			return nil, &selection.RequiredSelectionsAreInvalid{Errors: []error{err}}
		}
		if err := selection.Validate(rss, sch, fr.Coordinate.TypeName, nil); err != nil {
			return nil, err
		}
		fr.requiredSelection = rss

		if fr.QueryFragmentText != "" {
			qrss, err := selection.ParseFragmentText(fr.QueryFragmentText, sch.QueryTypeName())
			if err != nil {
				return nil, &selection.RequiredSelectionsAreInvalid{Errors: []error{err}}
			}
			if err := selection.Validate(qrss, sch, sch.QueryTypeName(), nil); err != nil {
				return nil, err
			}
			fr.queryFragment = qrss
		}

		for _, vb := range fr.Variables {
			if vb.Source == FromProvider && vb.Provider == nil {
				return nil, &AmbiguousResolver{Coordinate: fr.Coordinate.String(), Reason: fmt.Sprintf("variable %q is bound FromProvider but has no Provider func", vb.Name)}
			}
		}

		b.fields[fr.Coordinate] = fr
	}

	for _, nr := range r.nodes {
		if _, exists := b.nodes[nr.TypeName]; exists {
			return nil, &DuplicateResolver{Coordinate: nr.TypeName}
		}
		if _, ok := sch.GetObject(nr.TypeName); !ok {
			return nil, &AmbiguousResolver{Coordinate: nr.TypeName, Reason: "registered as a node type but not declared in the schema"}
		}
		b.nodes[nr.TypeName] = nr
	}

	if strict {
		if err := checkCoverage(b, sch); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func checkCoverage(b *Built, sch *schema.Schema) error {
	for _, obj := range sch.AllObjects() {
		name := obj.Name
		if obj.IsNode {
			if _, ok := b.nodes[name]; !ok {
				return &AmbiguousResolver{Coordinate: name, Reason: "declared as a Node but has no registered NodeResolver"}
			}
		}
		for _, fieldName := range obj.FieldOrder {
			f := obj.Fields[fieldName]
			resolvable := f.Resolvable() || obj.HasResolverDirective()
			coord := Coordinate{TypeName: name, FieldName: fieldName}
			_, registered := b.fields[coord]
			if resolvable && !registered {
				return &AmbiguousResolver{Coordinate: coord.String(), Reason: "schema marks this field resolvable but no FieldResolver is registered"}
			}
			if !resolvable && registered {
				return &AmbiguousResolver{Coordinate: coord.String(), Reason: "a FieldResolver is registered but the schema does not mark this field resolvable"}
			}
		}
	}
	return nil
}
