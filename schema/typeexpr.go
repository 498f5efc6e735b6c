package schema

import "strings"

// TypeExpr is a type-expression: a base named type wrapped in some depth of
// lists, each level independently nullable, per spec.md §3.
//
// Invariant: len(NullableAtDepth) == ListDepth.
type TypeExpr struct {
	BaseType        string
	BaseNullable    bool
	ListDepth       int
	NullableAtDepth []bool
}

// NonNull builds a non-nullable scalar/object TypeExpr for BaseType.
func NonNull(baseType string) *TypeExpr {
	return &TypeExpr{BaseType: baseType, BaseNullable: false}
}

// Nullable builds a nullable scalar/object TypeExpr for BaseType.
func Nullable(baseType string) *TypeExpr {
	return &TypeExpr{BaseType: baseType, BaseNullable: true}
}

// IsList reports whether this expression is wrapped in at least one list.
func (t *TypeExpr) IsList() bool { return t.ListDepth > 0 }

// Validate checks the TypeExpr invariant.
func (t *TypeExpr) Validate() error {
	if len(t.NullableAtDepth) != t.ListDepth {
		return newInvalidSchema("type expression %s: nullableAtDepth length %d does not match listDepth %d",
			t.String(), len(t.NullableAtDepth), t.ListDepth)
	}
	return nil
}

// List wraps t in one additional list level with the given nullability for
// that new outermost level.
func (t *TypeExpr) List(nullable bool) *TypeExpr {
	depths := make([]bool, 0, t.ListDepth+1)
	depths = append(depths, nullable)
	depths = append(depths, t.NullableAtDepth...)
	return &TypeExpr{
		BaseType:        t.BaseType,
		BaseNullable:    t.BaseNullable,
		ListDepth:       t.ListDepth + 1,
		NullableAtDepth: depths,
	}
}

// UnwrapList strips one list level, returning the TypeExpr one level
// shallower. Panics if called on a non-list expression; callers must check
// IsList first (mirrors the teacher's *List.Type field access pattern).
func (t *TypeExpr) UnwrapList() *TypeExpr {
	if t.ListDepth == 0 {
		panic("schema: UnwrapList called on a non-list TypeExpr")
	}
	return &TypeExpr{
		BaseType:        t.BaseType,
		BaseNullable:    t.BaseNullable,
		ListDepth:       t.ListDepth - 1,
		NullableAtDepth: append([]bool(nil), t.NullableAtDepth[1:]...),
	}
}

// AsNonNullable returns a copy of t with its outermost level (the list level
// if any, else the base type) forced non-nullable. Used when planning a
// field whose declared nullability is overridden by a non-null wrapper
// applied at the use site.
func (t *TypeExpr) AsNonNullable() *TypeExpr {
	cp := *t
	if cp.ListDepth > 0 {
		depths := append([]bool(nil), cp.NullableAtDepth...)
		depths[0] = false
		cp.NullableAtDepth = depths
	} else {
		cp.BaseNullable = false
	}
	return &cp
}

// NullableAtOutermost reports whether the outermost wrapper (a list level if
// present, else the base type) is nullable.
func (t *TypeExpr) NullableAtOutermost() bool {
	if t.ListDepth > 0 {
		return t.NullableAtDepth[0]
	}
	return t.BaseNullable
}

// String renders the GraphQL SDL form, e.g. "[String!]!".
func (t *TypeExpr) String() string {
	var b strings.Builder
	for i := 0; i < t.ListDepth; i++ {
		b.WriteString("[")
	}
	b.WriteString(t.BaseType)
	if !t.BaseNullable {
		b.WriteString("!")
	}
	for i := t.ListDepth - 1; i >= 0; i-- {
		b.WriteString("]")
		if !t.NullableAtDepth[i] {
			b.WriteString("!")
		}
	}
	return b.String()
}

// Equal reports whether two TypeExprs describe the same wire shape.
func (t *TypeExpr) Equal(o *TypeExpr) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.BaseType != o.BaseType || t.BaseNullable != o.BaseNullable || t.ListDepth != o.ListDepth {
		return false
	}
	for i := range t.NullableAtDepth {
		if t.NullableAtDepth[i] != o.NullableAtDepth[i] {
			return false
		}
	}
	return true
}
