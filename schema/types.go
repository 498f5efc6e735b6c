// Package schema is the in-memory typed model of a GraphQL schema: objects,
// interfaces, unions, inputs, enums, scalars, and directives, plus the
// TypeExpr algebra used to describe nullability and list depth throughout
// planning and execution.
//
// It is grounded in the teacher's graphql.Type hierarchy (Scalar, Object,
// List as a closed sum type distinguished by an unexported isType marker)
// generalized with the additional kinds (Interface, Union, Input, Enum,
// Directive) this specification's schema requires.
package schema

// Type is the closed set of schema definitions: Object, Interface, Union,
// Enum, Input, or Scalar. isType is unexported so arbitrary values can never
// satisfy the interface.
type Type interface {
	TypeName() string
	isType()
}

// Scalar is a named leaf type. The built-in scalars are registered by every
// Schema; extended scalars (Long, Date, DateTime, BigDecimal, BigInteger,
// JSON) are registered the same way.
type Scalar struct {
	Name string
}

func (s *Scalar) isType()            {}
func (s *Scalar) TypeName() string   { return s.Name }
func (s *Scalar) String() string     { return s.Name }

// Built-in scalar names, per spec.md §6.
const (
	ScalarString     = "String"
	ScalarInt        = "Int"
	ScalarFloat      = "Float"
	ScalarBoolean    = "Boolean"
	ScalarID         = "ID"
	ScalarLong       = "Long"
	ScalarShort      = "Short"
	ScalarDate       = "Date"
	ScalarDateTime   = "DateTime"
	ScalarBigDecimal = "BigDecimal"
	ScalarBigInteger = "BigInteger"
	ScalarJSON       = "JSON"
)

// BuiltinScalars returns fresh Scalar definitions for every scalar the core
// recognizes without further configuration.
func BuiltinScalars() []*Scalar {
	names := []string{
		ScalarString, ScalarInt, ScalarFloat, ScalarBoolean, ScalarID,
		ScalarLong, ScalarShort, ScalarDate, ScalarDateTime,
		ScalarBigDecimal, ScalarBigInteger, ScalarJSON,
	}
	out := make([]*Scalar, len(names))
	for i, n := range names {
		out[i] = &Scalar{Name: n}
	}
	return out
}

// Enum is an ordered set of named values.
type Enum struct {
	Name   string
	Values []string
}

func (e *Enum) isType()          {}
func (e *Enum) TypeName() string { return e.Name }

// Composite is implemented by every type that can appear as the target of a
// selection set: Object, Interface, Union.
type Composite interface {
	Type
	compositeType()
}

// Object is a named, field-bearing type. It may declare interfaces it
// implements, and may be marked as a Node (stable global identity) or as one
// of the schema's two root types (Query/Mutation).
type Object struct {
	Name          string
	Fields        map[string]*Field
	FieldOrder    []string // source/declaration order, for deterministic planning
	Interfaces    []string
	IsNode        bool
	IsRootQuery   bool
	IsRootMutation bool
	Directives    []*AppliedDirective
}

func (o *Object) isType()          {}
func (o *Object) compositeType()   {}
func (o *Object) TypeName() string { return o.Name }

// HasResolverDirective reports whether the Object itself carries @resolver,
// which (per spec.md §3) implies the Object is a Node with a node resolver.
func (o *Object) HasResolverDirective() bool {
	return hasDirective(o.Directives, "resolver")
}

// ScopeNames returns the union of every @scope(to: [...]) directive's "to"
// list applied directly to the Object.
func (o *Object) ScopeNames() []string {
	return directiveListArgs(o.Directives, "scope", "to")
}

// Interface is a named, field-bearing type that other Objects implement. It
// may extend other interfaces, and tracks the Objects that implement it
// (computed by Builder.Build, not set by hand).
type Interface struct {
	Name            string
	Fields          map[string]*Field
	FieldOrder      []string
	Extends         []string
	PossibleObjects []string
}

func (i *Interface) isType()          {}
func (i *Interface) compositeType()   {}
func (i *Interface) TypeName() string { return i.Name }

// Union is a named set of possible Object members.
type Union struct {
	Name    string
	Members []string
}

func (u *Union) isType()          {}
func (u *Union) compositeType()   {}
func (u *Union) TypeName() string { return u.Name }

// InputField is a field of an Input type.
type InputField struct {
	Name       string
	Type       *TypeExpr
	HasDefault bool
	Default    interface{}
	Directives []*AppliedDirective
}

// IDOfType returns the type name bound by an @idOf(type: "...") directive
// applied to this input field, or "" if none is present.
func (f *InputField) IDOfType() string {
	return directiveStringArg(f.Directives, "idOf", "type")
}

// Input is an input object: fields with optional defaults. If OneOf is set,
// exactly one field must be set on any value of this type.
type Input struct {
	Name       string
	Fields     map[string]*InputField
	FieldOrder []string
	OneOf      bool
}

func (i *Input) isType()          {}
func (i *Input) TypeName() string { return i.Name }

// Field is a named field of an Object or Interface: its type, its ordered
// argument definitions, and any applied directives.
type Field struct {
	Name       string
	Type       *TypeExpr
	Args       []*ArgumentDef
	Directives []*AppliedDirective
}

// Resolvable reports whether the field carries @resolver on itself, per
// spec.md §3 ("A field is resolvable if it carries @resolver on itself or
// on its enclosing Object"). The enclosing-Object case is checked by the
// caller, which has access to the parent Object.
func (f *Field) Resolvable() bool {
	return hasDirective(f.Directives, "resolver")
}

// IDOfType returns the type name bound by an @idOf(type: "...") directive
// applied to this field, or "" if none is present.
func (f *Field) IDOfType() string {
	return directiveStringArg(f.Directives, "idOf", "type")
}

// ScopeNames returns the union of every @scope(to: [...]) directive's "to"
// list applied to this field, in declaration order with duplicates
// removed. @scope is repeatable, so a field may accumulate scope
// requirements from more than one application.
func (f *Field) ScopeNames() []string {
	return directiveListArgs(f.Directives, "scope", "to")
}

// ArgumentDef is one argument declaration of a Field.
type ArgumentDef struct {
	Name       string
	Type       *TypeExpr
	HasDefault bool
	Default    interface{}
	Directives []*AppliedDirective
}

// IDOfType returns the type name bound by an @idOf(type: "...") directive
// applied to this argument, or "" if none is present. A non-empty result
// means values supplied for this argument are global IDs that must be
// decoded through the schema's GlobalID codec before reaching a resolver.
func (a *ArgumentDef) IDOfType() string {
	return directiveStringArg(a.Directives, "idOf", "type")
}

// DirectiveLocation enumerates where a Directive may be applied, per the
// GraphQL spec's DirectiveLocation enum restricted to the locations this
// core recognizes.
type DirectiveLocation string

const (
	LocationFieldDefinition      DirectiveLocation = "FIELD_DEFINITION"
	LocationObject               DirectiveLocation = "OBJECT"
	LocationInterface            DirectiveLocation = "INTERFACE"
	LocationUnion                DirectiveLocation = "UNION"
	LocationEnum                 DirectiveLocation = "ENUM"
	LocationEnumValue            DirectiveLocation = "ENUM_VALUE"
	LocationInputObject          DirectiveLocation = "INPUT_OBJECT"
	LocationInputFieldDefinition DirectiveLocation = "INPUT_FIELD_DEFINITION"
	LocationArgumentDefinition   DirectiveLocation = "ARGUMENT_DEFINITION"
)

// DirectiveDef is a directive declaration: name, allowed locations,
// arguments, and whether it may be applied more than once to the same
// target.
type DirectiveDef struct {
	Name       string
	Locations  []DirectiveLocation
	Args       []*ArgumentDef
	Repeatable bool
}

// AppliedDirective is a directive use-site: the directive's name and the
// argument values supplied at that application.
type AppliedDirective struct {
	Name string
	Args map[string]interface{}
}

func hasDirective(directives []*AppliedDirective, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

func directiveStringArg(directives []*AppliedDirective, name, arg string) string {
	for _, d := range directives {
		if d.Name != name {
			continue
		}
		if v, ok := d.Args[arg]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func directiveListArgs(directives []*AppliedDirective, name, arg string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range directives {
		if d.Name != name {
			continue
		}
		v, ok := d.Args[arg]
		if !ok {
			continue
		}
		items, ok := v.([]string)
		if !ok {
			if raw, ok := v.([]interface{}); ok {
				for _, r := range raw {
					if s, ok := r.(string); ok {
						items = append(items, s)
					}
				}
			}
		}
		for _, s := range items {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

var (
	_ Type      = &Scalar{}
	_ Type      = &Enum{}
	_ Type      = &Object{}
	_ Type      = &Interface{}
	_ Type      = &Union{}
	_ Type      = &Input{}
	_ Composite = &Object{}
	_ Composite = &Interface{}
	_ Composite = &Union{}
)

func (o *Object) String() string    { return o.Name }
func (i *Interface) String() string { return i.Name }
func (u *Union) String() string     { return u.Name }
func (i *Input) String() string     { return i.Name }
func (e *Enum) String() string      { return e.Name }
