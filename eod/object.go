// Package eod holds Engine Object Data: the per-object view a resolver
// actually sees when it runs, restricted to the fields named in that
// resolver's required selection set (spec.md §3, C9). Reading a field
// outside that set is a programming error the engine must catch, not a
// silent nil: Fetch returns instrumentation.UnsetSelection rather than
// letting a resolver accidentally depend on data nobody asked the backing
// system to fetch.
//
// Grounded in the teacher's internal object-wrapping pattern used by
// schemabuilder's generated resolvers (graphql/schemabuilder, since removed
// from this tree as codegen-specific) to bind a Go struct's fields to a
// selection set; this package generalizes that binding to a plain
// map[string]interface{} since this engine has no generated struct types to
// reflect over.
package eod

import (
	"github.com/viaductgraph/viaduct/instrumentation"
)

// Object is the field data available for one concrete object instance
// during execution, scoped to whichever required selection set authorized
// the code currently holding it.
type Object struct {
	typeName string
	data     map[string]interface{}
	allowed  map[string]bool
}

// New wraps data as an Object of typeName, readable only through the field
// names in allowed. A nil allowed map means unrestricted (used internally
// by the engine when constructing the object that seeds a request, before
// any resolver's required selection narrows it).
func New(typeName string, data map[string]interface{}, allowed map[string]bool) *Object {
	return &Object{typeName: typeName, data: data, allowed: allowed}
}

// GraphQLObjectType returns the concrete schema Object name this data
// belongs to.
func (o *Object) GraphQLObjectType() string { return o.typeName }

// Fetch returns the named field's value, or UnsetSelection if the field was
// not named in the required selection set that scoped this Object (or is
// simply absent from the underlying data).
func (o *Object) Fetch(field string) (interface{}, error) {
	if o.allowed != nil && !o.allowed[field] {
		return nil, &instrumentation.UnsetSelection{Coordinate: o.typeName, FieldName: field}
	}
	v, ok := o.data[field]
	if !ok {
		return nil, &instrumentation.UnsetSelection{Coordinate: o.typeName, FieldName: field}
	}
	return v, nil
}

// FetchOrNull is Fetch without the error: callers that treat an unset or
// absent field as simply nil (rather than a bug) use this instead.
func (o *Object) FetchOrNull(field string) interface{} {
	v, err := o.Fetch(field)
	if err != nil {
		return nil
	}
	return v
}

// ResolveData returns the Object's full underlying data map, restricted the
// same way Fetch restricts individual fields: keys outside the allowed set
// are omitted entirely rather than merely inaccessible, so a resolver that
// passes this map onward (e.g. into a sub-selection execution) cannot leak
// data it was never granted.
func (o *Object) ResolveData() map[string]interface{} {
	if o.allowed == nil {
		return o.data
	}
	out := make(map[string]interface{}, len(o.allowed))
	for k := range o.allowed {
		if v, ok := o.data[k]; ok {
			out[k] = v
		}
	}
	return out
}
