package selection

import (
	"fmt"
	"strings"

	"github.com/viaductgraph/viaduct/schema"
)

// RequiredSelectionsAreInvalid is returned by Validate (at bootstrap for
// required selection sets, and per request for operation documents and
// sub-selections) when a RawSelectionSet fails structural validation against the
// schema (spec.md §4.2): unknown fragment type conditions, unknown fields,
// or undeclared variable usage.
type RequiredSelectionsAreInvalid struct {
	Errors []error
}

func (e *RequiredSelectionsAreInvalid) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "required selections are invalid: " + strings.Join(msgs, "; ")
}

type validator struct {
	schema *schema.Schema
	errs   []error
}

func (v *validator) fail(format string, args ...interface{}) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

// Validate checks rss (and every fragment it reaches) against sch, starting
// from rootType. declaredVars is the set of variable names the caller (the
// resolver descriptor, or the operation's own VariableDefinitions) makes
// available; any variable referenced by an @include/@skip or argument that
// is not in this set is an error.
func Validate(rss *RawSelectionSet, sch *schema.Schema, rootType string, declaredVars map[string]bool) error {
	v := &validator{schema: sch}
	if declaredVars == nil {
		declaredVars = map[string]bool{}
	}
	for name := range rss.Variables {
		declaredVars[name] = true
	}
	v.validateSelectionSet(rss, rootType, declaredVars)
	if len(v.errs) > 0 {
		return &RequiredSelectionsAreInvalid{Errors: v.errs}
	}
	return nil
}

func (v *validator) validateSelectionSet(rss *RawSelectionSet, typeName string, declaredVars map[string]bool) {
	if rss == nil {
		return
	}
	composite, ok := v.schema.GetComposite(typeName)
	if !ok {
		v.fail("selection set type condition %q does not exist", typeName)
		return
	}

	for _, sel := range rss.Selections {
		v.validateSelection(sel, composite, rss.Fragments, declaredVars)
	}
}

func (v *validator) validateSelection(sel *Selection, composite schema.Composite, fragments map[string]*Fragment, declaredVars map[string]bool) {
	for _, d := range sel.Directives {
		if d.Name == "include" || d.Name == "skip" {
			for _, val := range d.Args {
				v.validateVariableUsage(val, declaredVars)
			}
		}
	}

	switch {
	case sel.IsField():
		if sel.Name == "__typename" {
			return
		}
		field := fieldOf(composite, sel.Name)
		if field == nil {
			v.fail("field %q does not exist on type %q", sel.Name, composite.TypeName())
			return
		}
		for _, val := range sel.Args {
			v.validateVariableUsage(val, declaredVars)
		}
		if sel.SelectionSet != nil {
			childComposite, ok := v.schema.GetComposite(field.Type.BaseType)
			if !ok {
				v.fail("field %q has non-composite type %q but carries a selection set", sel.Name, field.Type.BaseType)
				return
			}
			for _, child := range sel.SelectionSet.Selections {
				v.validateSelection(child, childComposite, mergeFragments(fragments, sel.SelectionSet.Fragments), declaredVars)
			}
		}

	case sel.IsInlineFragment:
		target := composite
		if sel.InlineFragmentOn != "" {
			c, ok := v.schema.GetComposite(sel.InlineFragmentOn)
			if !ok {
				v.fail("inline fragment type condition %q does not exist", sel.InlineFragmentOn)
				return
			}
			if !v.schema.IsSpreadable(composite.TypeName(), sel.InlineFragmentOn) {
				v.fail("inline fragment on %q cannot be spread on %q", sel.InlineFragmentOn, composite.TypeName())
				return
			}
			target = c
		}
		if sel.SelectionSet != nil {
			for _, child := range sel.SelectionSet.Selections {
				v.validateSelection(child, target, mergeFragments(fragments, sel.SelectionSet.Fragments), declaredVars)
			}
		}

	default: // named fragment spread
		frag, ok := fragments[sel.FragmentSpreadName]
		if !ok {
			v.fail("fragment %q is not defined", sel.FragmentSpreadName)
			return
		}
		fragComposite, ok := v.schema.GetComposite(frag.TypeCondition)
		if !ok {
			v.fail("fragment %q has unknown type condition %q", frag.Name, frag.TypeCondition)
			return
		}
		if !v.schema.IsSpreadable(composite.TypeName(), frag.TypeCondition) {
			v.fail("fragment %q on %q cannot be spread on %q", frag.Name, frag.TypeCondition, composite.TypeName())
			return
		}
		for _, child := range frag.SelectionSet.Selections {
			v.validateSelection(child, fragComposite, mergeFragments(fragments, frag.SelectionSet.Fragments), declaredVars)
		}
	}
}

func (v *validator) validateVariableUsage(val Value, declaredVars map[string]bool) {
	used := map[string]bool{}
	ReferencedVariables(val, used)
	for name := range used {
		if !declaredVars[name] {
			v.fail("variable %q is used but not declared", name)
		}
	}
}

func fieldOf(c schema.Composite, name string) *schema.Field {
	switch t := c.(type) {
	case *schema.Object:
		return t.Fields[name]
	case *schema.Interface:
		return t.Fields[name]
	default:
		return nil
	}
}

func mergeFragments(a, b map[string]*Fragment) map[string]*Fragment {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]*Fragment, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
