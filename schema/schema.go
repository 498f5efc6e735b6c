package schema

import "sort"

// Schema is a closed, immutable set of named type definitions. Once built it
// is shared across every request (spec.md §3: "Schema is shared immutable").
type Schema struct {
	objects    map[string]*Object
	interfaces map[string]*Interface
	unions     map[string]*Union
	inputs     map[string]*Input
	enums      map[string]*Enum
	scalars    map[string]*Scalar
	directives map[string]*DirectiveDef

	queryName    string
	mutationName string

	// possibleObjects caches, for every composite name, the ordered set of
	// concrete Object names that are spreadable for it.
	possibleObjects map[string][]string
}

// Builder assembles definitions before Build closes and validates them.
type Builder struct {
	objects    []*Object
	interfaces []*Interface
	unions     []*Union
	inputs     []*Input
	enums      []*Enum
	scalars    []*Scalar
	directives []*DirectiveDef
}

// NewBuilder returns a Builder pre-seeded with the built-in scalars and the
// four core directives of spec.md §6.
func NewBuilder() *Builder {
	b := &Builder{}
	for _, s := range BuiltinScalars() {
		b.scalars = append(b.scalars, s)
	}
	b.directives = append(b.directives, coreDirectives()...)
	return b
}

func coreDirectives() []*DirectiveDef {
	return []*DirectiveDef{
		{
			Name:      "resolver",
			Locations: []DirectiveLocation{LocationFieldDefinition, LocationObject},
		},
		{
			Name:      "backingData",
			Locations: []DirectiveLocation{LocationFieldDefinition},
			Args:      []*ArgumentDef{{Name: "class", Type: NonNull(ScalarString)}},
		},
		{
			Name: "scope",
			Locations: []DirectiveLocation{
				LocationObject, LocationInterface, LocationUnion, LocationEnum,
				LocationInputObject, LocationFieldDefinition, LocationEnumValue,
			},
			Args:       []*ArgumentDef{{Name: "to", Type: NonNull(ScalarString).List(false)}},
			Repeatable: true,
		},
		{
			Name:      "idOf",
			Locations: []DirectiveLocation{LocationFieldDefinition, LocationInputFieldDefinition, LocationArgumentDefinition},
			Args:      []*ArgumentDef{{Name: "type", Type: NonNull(ScalarString)}},
		},
	}
}

func (b *Builder) AddObject(o *Object) *Builder       { b.objects = append(b.objects, o); return b }
func (b *Builder) AddInterface(i *Interface) *Builder { b.interfaces = append(b.interfaces, i); return b }
func (b *Builder) AddUnion(u *Union) *Builder         { b.unions = append(b.unions, u); return b }
func (b *Builder) AddInput(i *Input) *Builder         { b.inputs = append(b.inputs, i); return b }
func (b *Builder) AddEnum(e *Enum) *Builder           { b.enums = append(b.enums, e); return b }
func (b *Builder) AddScalar(s *Scalar) *Builder       { b.scalars = append(b.scalars, s); return b }
func (b *Builder) AddDirective(d *DirectiveDef) *Builder {
	b.directives = append(b.directives, d)
	return b
}

// Build closes and validates the schema, failing with *InvalidSchema.
func (b *Builder) Build() (*Schema, error) {
	s := &Schema{
		objects:    map[string]*Object{},
		interfaces: map[string]*Interface{},
		unions:     map[string]*Union{},
		inputs:     map[string]*Input{},
		enums:      map[string]*Enum{},
		scalars:    map[string]*Scalar{},
		directives: map[string]*DirectiveDef{},
	}

	for _, o := range b.objects {
		if _, ok := s.objects[o.Name]; ok {
			return nil, newInvalidSchema("duplicate object %q", o.Name)
		}
		s.objects[o.Name] = o
		if o.IsRootQuery {
			s.queryName = o.Name
		}
		if o.IsRootMutation {
			s.mutationName = o.Name
		}
	}
	for _, i := range b.interfaces {
		if _, ok := s.interfaces[i.Name]; ok {
			return nil, newInvalidSchema("duplicate interface %q", i.Name)
		}
		s.interfaces[i.Name] = i
	}
	for _, u := range b.unions {
		if _, ok := s.unions[u.Name]; ok {
			return nil, newInvalidSchema("duplicate union %q", u.Name)
		}
		s.unions[u.Name] = u
	}
	for _, i := range b.inputs {
		if _, ok := s.inputs[i.Name]; ok {
			return nil, newInvalidSchema("duplicate input %q", i.Name)
		}
		s.inputs[i.Name] = i
	}
	for _, e := range b.enums {
		if _, ok := s.enums[e.Name]; ok {
			return nil, newInvalidSchema("duplicate enum %q", e.Name)
		}
		s.enums[e.Name] = e
	}
	for _, sc := range b.scalars {
		s.scalars[sc.Name] = sc
	}
	for _, d := range b.directives {
		s.directives[d.Name] = d
	}

	if err := s.synthesizeNodeContract(); err != nil {
		return nil, err
	}

	if err := s.validateClosed(); err != nil {
		return nil, err
	}
	if err := s.validateDirectiveUsage(); err != nil {
		return nil, err
	}
	if err := s.validateInputs(); err != nil {
		return nil, err
	}
	if err := s.validateFieldOverrides(); err != nil {
		return nil, err
	}

	s.computePossibleObjects()
	s.computeInterfaceImplementors()

	if s.queryName == "" {
		return nil, newInvalidSchema("schema has no root Query object")
	}

	return s, nil
}

// GetObject returns the named Object, or nil if absent.
func (s *Schema) GetObject(name string) (*Object, bool) { o, ok := s.objects[name]; return o, ok }

// GetInterface returns the named Interface, or nil if absent.
func (s *Schema) GetInterface(name string) (*Interface, bool) {
	i, ok := s.interfaces[name]
	return i, ok
}

// GetUnion returns the named Union, or nil if absent.
func (s *Schema) GetUnion(name string) (*Union, bool) { u, ok := s.unions[name]; return u, ok }

// GetInput returns the named Input, or nil if absent.
func (s *Schema) GetInput(name string) (*Input, bool) { i, ok := s.inputs[name]; return i, ok }

// GetEnum returns the named Enum, or nil if absent.
func (s *Schema) GetEnum(name string) (*Enum, bool) { e, ok := s.enums[name]; return e, ok }

// GetScalar returns the named Scalar, or nil if absent.
func (s *Schema) GetScalar(name string) (*Scalar, bool) { sc, ok := s.scalars[name]; return sc, ok }

// GetDirective returns the named DirectiveDef, or nil if absent.
func (s *Schema) GetDirective(name string) (*DirectiveDef, bool) {
	d, ok := s.directives[name]
	return d, ok
}

// GetComposite resolves a name to any of Object/Interface/Union.
func (s *Schema) GetComposite(name string) (Composite, bool) {
	if o, ok := s.objects[name]; ok {
		return o, true
	}
	if i, ok := s.interfaces[name]; ok {
		return i, true
	}
	if u, ok := s.unions[name]; ok {
		return u, true
	}
	return nil, false
}

// GetType resolves a name to any schema Type.
func (s *Schema) GetType(name string) (Type, bool) {
	if t, ok := s.GetComposite(name); ok {
		return t, true
	}
	if t, ok := s.inputs[name]; ok {
		return t, true
	}
	if t, ok := s.enums[name]; ok {
		return t, true
	}
	if t, ok := s.scalars[name]; ok {
		return t, true
	}
	return nil, false
}

// AllObjects returns every Object the schema declares, in no particular
// order. Used by callers (the resolver registry's coverage check, notably)
// that need to walk the whole object set rather than look up one by name.
func (s *Schema) AllObjects() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out
}

// QueryTypeName returns the name of the root Query object.
func (s *Schema) QueryTypeName() string { return s.queryName }

// MutationTypeName returns the name of the root Mutation object, or "" if
// the schema declares no mutations.
func (s *Schema) MutationTypeName() string { return s.mutationName }

// PossibleObjects returns the ordered set of concrete Object names spreadable
// for the given composite type name (itself, if it is an Object).
func (s *Schema) PossibleObjects(compositeName string) []string {
	return s.possibleObjects[compositeName]
}

// IsSpreadable reports whether a fragment on fragmentType can be spread into
// a selection whose carrier is parentType, i.e. whether the two composite
// types' possible-object sets intersect.
func (s *Schema) IsSpreadable(parentType, fragmentType string) bool {
	if parentType == fragmentType {
		return true
	}
	parentSet := s.possibleObjects[parentType]
	fragSet := s.possibleObjects[fragmentType]
	if parentSet == nil || fragSet == nil {
		return false
	}
	frag := make(map[string]bool, len(fragSet))
	for _, n := range fragSet {
		frag[n] = true
	}
	for _, n := range parentSet {
		if frag[n] {
			return true
		}
	}
	return false
}

func (s *Schema) computePossibleObjects() {
	s.possibleObjects = map[string][]string{}
	for name := range s.objects {
		s.possibleObjects[name] = []string{name}
	}
	for name, u := range s.unions {
		members := append([]string(nil), u.Members...)
		sort.Strings(members)
		s.possibleObjects[name] = members
	}
	for name, iface := range s.interfaces {
		var members []string
		for objName, obj := range s.objects {
			if implementsInterface(s, obj, name) {
				members = append(members, objName)
			}
		}
		sort.Strings(members)
		s.possibleObjects[name] = members
		iface.PossibleObjects = members
	}
}

func (s *Schema) computeInterfaceImplementors() {
	// PossibleObjects already populated during computePossibleObjects; this
	// pass exists to keep the two concerns (membership vs. the field set an
	// interface contributes via Extends) named separately for readers.
}

func implementsInterface(s *Schema, obj *Object, ifaceName string) bool {
	for _, name := range obj.Interfaces {
		if name == ifaceName {
			return true
		}
		if parent, ok := s.interfaces[name]; ok {
			if extendsInterface(s, parent, ifaceName) {
				return true
			}
		}
	}
	return false
}

func extendsInterface(s *Schema, iface *Interface, target string) bool {
	for _, name := range iface.Extends {
		if name == target {
			return true
		}
		if parent, ok := s.interfaces[name]; ok && extendsInterface(s, parent, target) {
			return true
		}
	}
	return false
}

// Filter yields a scoped schema by removing fields and types the predicate
// rejects, and union members whose Object was removed (spec.md §4.1). Every
// type the predicate accepts is kept, whether or not a remaining field still
// reaches it. The result is rebuilt through Builder.Build, so a kept field
// whose type was removed makes Filter fail with *InvalidSchema instead of
// returning a schema with a dangling reference.
func (s *Schema) Filter(predicate func(Type) bool) (*Schema, error) {
	b := &Builder{}

	for _, sc := range s.scalars {
		if predicate(sc) {
			b.scalars = append(b.scalars, sc)
		}
	}
	for _, e := range s.enums {
		if predicate(e) {
			b.enums = append(b.enums, e)
		}
	}
	for _, i := range s.inputs {
		if predicate(i) {
			b.inputs = append(b.inputs, filterInput(i, predicate))
		}
	}
	keepObject := map[string]bool{}
	for name, o := range s.objects {
		if predicate(o) {
			keepObject[name] = true
			b.objects = append(b.objects, filterObject(o, predicate))
		}
	}
	for name, u := range s.unions {
		if !predicate(u) {
			continue
		}
		var members []string
		for _, m := range u.Members {
			if keepObject[m] {
				members = append(members, m)
			}
		}
		b.unions = append(b.unions, &Union{Name: name, Members: members})
	}
	for name, iface := range s.interfaces {
		if predicate(iface) {
			b.interfaces = append(b.interfaces, filterInterface(iface, predicate))
			_ = name
		}
	}
	for _, d := range s.directives {
		b.directives = append(b.directives, d)
	}

	return b.Build()
}

func filterObject(o *Object, predicate func(Type) bool) *Object {
	cp := &Object{
		Name: o.Name, Interfaces: o.Interfaces, IsNode: o.IsNode,
		IsRootQuery: o.IsRootQuery, IsRootMutation: o.IsRootMutation,
		Directives: o.Directives,
		Fields:     map[string]*Field{},
	}
	for _, key := range o.FieldOrder {
		f := o.Fields[key]
		if f == nil || !predicate(fieldTypeSentinel{f}) {
			continue
		}
		cp.Fields[key] = f
		cp.FieldOrder = append(cp.FieldOrder, key)
	}
	return cp
}

func filterInterface(i *Interface, predicate func(Type) bool) *Interface {
	cp := &Interface{Name: i.Name, Extends: i.Extends, Fields: map[string]*Field{}}
	for _, key := range i.FieldOrder {
		f := i.Fields[key]
		if f == nil || !predicate(fieldTypeSentinel{f}) {
			continue
		}
		cp.Fields[key] = f
		cp.FieldOrder = append(cp.FieldOrder, key)
	}
	return cp
}

func filterInput(i *Input, predicate func(Type) bool) *Input {
	return i // inputs are not scope-filtered per-field; kept whole if visible at all.
}

// fieldTypeSentinel lets Filter's predicate inspect a *Field the same way it
// inspects a Type, without making Field implement the full Type interface
// (fields are not independently-named schema members).
type fieldTypeSentinel struct{ f *Field }

func (fieldTypeSentinel) isType() {}
func (s fieldTypeSentinel) TypeName() string {
	return s.f.Name
}
func (s fieldTypeSentinel) ScopeNames() []string {
	return s.f.ScopeNames()
}

var _ Type = fieldTypeSentinel{}
