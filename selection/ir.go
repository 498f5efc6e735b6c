// Package selection defines the normalized selection-set intermediate
// representation (RawSelectionSet) that both top-level GraphQL documents and
// required-selection-set fragments are parsed into, and the parser that
// produces it.
//
// It is grounded in the teacher's graphql.SelectionSet/Selection/Fragment
// trio (graphql/types.go): selections are stored in a slice rather than a
// map because GraphQL permits repeated aliases, and fragments are kept
// alongside selections rather than pre-expanded, so a RawSelectionSet can be
// validated once and planned many times.
package selection

// RawSelectionSet is the parsed, normalized form of a GraphQL document or a
// required-selection-set fragment string. A shorthand selection string like
// "first last" is auto-expanded into an implicit unnamed fragment (see
// Parse).
type RawSelectionSet struct {
	// TypeCondition is the composite type this selection set is understood
	// to apply against (the query's root type, or a fragment's "on" type).
	TypeCondition string
	Selections    []*Selection
	Fragments     map[string]*Fragment
	// FragmentOrder preserves declaration order for deterministic planning.
	FragmentOrder []string
	Variables     map[string]*VariableDef
	// VariableOrder preserves declaration order.
	VariableOrder []string

	// OperationType is the parsed operation's kind ("query", "mutation", or
	// "subscription"), set only on the RawSelectionSet Parse returns
	// directly for a full document; "" on every nested/fragment-derived set.
	OperationType string
}

// Selection is one field, inline fragment, or fragment spread appearing in a
// selection set. Exactly one of the three roles applies, distinguished by
// which fields are set:
//   - Field selection: Name != "" (FragmentSpreadName empty and
//     IsInlineFragment false).
//   - Named fragment spread: FragmentSpreadName != "".
//   - Inline fragment: IsInlineFragment is true; InlineFragmentOn holds its
//     type condition, or "" for none (spread unconditionally).
type Selection struct {
	Name         string // field name, or "" for a fragment selection
	Alias        string // response key; defaults to Name for fields
	Args         map[string]Value
	Directives   []*Directive
	SelectionSet *RawSelectionSet // nil for leaf/scalar fields

	FragmentSpreadName string
	IsInlineFragment   bool
	InlineFragmentOn   string
}

// ResponseKey is the key this selection contributes under in the response
// map: the alias if present, else the field name.
func (s *Selection) ResponseKey() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// IsField reports whether this Selection is a field selection (as opposed to
// a fragment spread or inline fragment).
func (s *Selection) IsField() bool {
	return s.FragmentSpreadName == "" && !s.IsInlineFragment
}

// Fragment is a named fragment definition: the composite type it applies to
// and its body.
type Fragment struct {
	Name          string
	TypeCondition string
	SelectionSet  *RawSelectionSet
}

// VariableDef declares a variable usable within a RawSelectionSet: its
// GraphQL type name (as written, including list/non-null wrappers handled by
// the caller) and optional default.
type VariableDef struct {
	Name       string
	TypeName   string // e.g. "ID!", "[String!]"
	HasDefault bool
	Default    Value
}

// Directive is an applied directive (e.g. @include(if: $x)) on a selection.
type Directive struct {
	Name string
	Args map[string]Value
}

// Value is the closed set of argument/variable-default value shapes: a
// literal scalar, an enum value token, a variable reference, a list, or an
// object/input literal.
type Value interface{ isValue() }

type ScalarValue struct{ Raw interface{} }
type EnumLiteral struct{ Name string }
type VariableRef struct{ Name string }
type ListLiteral struct{ Items []Value }
type ObjectLiteral struct{ Fields map[string]Value }
type NullLiteral struct{}

func (ScalarValue) isValue()    {}
func (EnumLiteral) isValue()    {}
func (VariableRef) isValue()    {}
func (ListLiteral) isValue()    {}
func (ObjectLiteral) isValue()  {}
func (NullLiteral) isValue()    {}

// ReferencedVariables returns the set of variable names transitively used by
// v (itself, or within lists/objects).
func ReferencedVariables(v Value, out map[string]bool) {
	switch v := v.(type) {
	case VariableRef:
		out[v.Name] = true
	case ListLiteral:
		for _, item := range v.Items {
			ReferencedVariables(item, out)
		}
	case ObjectLiteral:
		for _, item := range v.Fields {
			ReferencedVariables(item, out)
		}
	}
}
