package planner

import (
	"sort"
	"strconv"

	"github.com/samsarahq/go/oops"

	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

// Build compiles rss into a Plan rooted at rootType. op governs only the
// top-level concurrency strategy the execution engine applies to the
// resulting Plan's own PerObjectType steps; every nested Plan reachable
// through a FieldStep.Children is always built as OperationQuery, since
// mutation seriality is a root-level rule only (spec.md §5.1).
func Build(rss *selection.RawSelectionSet, rootType string, sch *schema.Schema, op OperationType) (*Plan, error) {
	plan := &Plan{
		TypeName:      rootType,
		Operation:     op,
		PerObjectType: map[string][]*FieldStep{},
	}

	objects := sch.PossibleObjects(rootType)
	if len(objects) == 0 {
		if _, ok := sch.GetObject(rootType); ok {
			objects = []string{rootType}
		}
	}
	// Deterministic iteration: PossibleObjects is already sorted for
	// interfaces/unions, but a plain object's slice is a single element, so
	// sort defensively rather than rely on caller-supplied ordering.
	objects = append([]string(nil), objects...)
	sort.Strings(objects)

	for _, objName := range objects {
		steps, err := collectFieldsForObject(rss, objName, sch)
		if err != nil {
			return nil, err
		}
		plan.PerObjectType[objName] = steps
	}
	return plan, nil
}

// collected tracks, per response key, the first selection that named it (for
// its field identity, arguments, and directives) and every selection set
// that contributed child selections under that key, which GraphQL field
// merging requires treating as one combined selection (spec.md is silent on
// merge semantics, so this follows the base language spec graphql-go's
// parser itself assumes fragments obey).
type collected struct {
	order []string
	byKey map[string]*collectedEntry
}

type collectedEntry struct {
	selection *selection.Selection
	childSets []*selection.RawSelectionSet
}

func collectFieldsForObject(rss *selection.RawSelectionSet, objName string, sch *schema.Schema) ([]*FieldStep, error) {
	c := &collected{byKey: map[string]*collectedEntry{}}
	if err := walkSelectionSet(rss, objName, sch, c); err != nil {
		return nil, err
	}

	obj, ok := sch.GetObject(objName)
	if !ok {
		return nil, oops.Errorf("planner: %q is not a known object type", objName)
	}

	steps := make([]*FieldStep, 0, len(c.order))
	for _, key := range c.order {
		entry := c.byKey[key]
		step, err := buildStep(entry, obj, sch)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func walkSelectionSet(rss *selection.RawSelectionSet, objName string, sch *schema.Schema, c *collected) error {
	if rss == nil {
		return nil
	}
	for _, sel := range rss.Selections {
		if err := walkSelection(sel, objName, sch, c, rss.Fragments); err != nil {
			return err
		}
	}
	return nil
}

// walkSelection dispatches on sel's role. fragments is the shared
// name-to-definition table from the enclosing RawSelectionSet: the parser
// (selection.Parse/ParseFragmentText) assigns the same map to every nested
// RawSelectionSet it produces, so a fragment spread anywhere beneath rss can
// always be resolved through the table rss itself carries.
func walkSelection(sel *selection.Selection, objName string, sch *schema.Schema, c *collected, fragments map[string]*selection.Fragment) error {
	switch {
	case sel.IsField():
		key := sel.ResponseKey()
		entry, ok := c.byKey[key]
		if !ok {
			entry = &collectedEntry{selection: sel}
			c.byKey[key] = entry
			c.order = append(c.order, key)
		}
		if sel.SelectionSet != nil {
			entry.childSets = append(entry.childSets, sel.SelectionSet)
		}
		return nil

	case sel.IsInlineFragment:
		if sel.InlineFragmentOn != "" && !sch.IsSpreadable(objName, sel.InlineFragmentOn) {
			return nil
		}
		return walkSelectionSet(sel.SelectionSet, objName, sch, c)

	default: // named fragment spread
		frag, ok := fragments[sel.FragmentSpreadName]
		if !ok {
			return oops.Errorf("planner: fragment %q referenced but not found while planning %q", sel.FragmentSpreadName, objName)
		}
		if frag.TypeCondition != "" && !sch.IsSpreadable(objName, frag.TypeCondition) {
			return nil
		}
		return walkSelectionSet(frag.SelectionSet, objName, sch, c)
	}
}

func buildStep(entry *collectedEntry, obj *schema.Object, sch *schema.Schema) (*FieldStep, error) {
	sel := entry.selection
	step := &FieldStep{
		ResponseKey: sel.ResponseKey(),
		Directives:  sel.Directives,
	}

	if sel.Name == "__typename" {
		step.IsTypename = true
		return step, nil
	}

	field, ok := obj.Fields[sel.Name]
	if !ok {
		return nil, oops.Errorf("planner: object %q has no field %q", obj.Name, sel.Name)
	}
	step.FieldName = sel.Name
	step.Type = field.Type

	args, err := coerceArgs(sel.Args, field.Args)
	if err != nil {
		return nil, err
	}
	step.Args = args

	if len(entry.childSets) == 0 {
		return step, nil
	}

	merged := mergeSelectionSets(entry.childSets)
	childPlan, err := Build(merged, field.Type.BaseType, sch, OperationQuery)
	if err != nil {
		return nil, oops.Errorf("planner: building child plan for %q.%q: %w", obj.Name, sel.Name, err)
	}
	step.Children = childPlan
	return step, nil
}

// mergeSelectionSets combines several selection sets that all apply under
// the same response key (GraphQL field merging) into one set sharing the
// first set's fragment table.
func mergeSelectionSets(sets []*selection.RawSelectionSet) *selection.RawSelectionSet {
	if len(sets) == 1 {
		return sets[0]
	}
	merged := &selection.RawSelectionSet{
		TypeCondition: sets[0].TypeCondition,
		Fragments:     sets[0].Fragments,
		FragmentOrder: sets[0].FragmentOrder,
	}
	for _, s := range sets {
		merged.Selections = append(merged.Selections, s.Selections...)
	}
	return merged
}

func coerceArgs(supplied map[string]selection.Value, defs []*schema.ArgumentDef) (map[string]ArgValue, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make(map[string]ArgValue, len(defs))
	for _, def := range defs {
		val, ok := supplied[def.Name]
		if !ok {
			if def.HasDefault {
				out[def.Name] = ArgValue{Kind: ArgLiteral, Literal: def.Default, IDOfType: def.IDOfType()}
			}
			continue
		}
		out[def.Name] = convertValue(val, def.IDOfType(), def.Type.BaseType)
	}
	return out, nil
}

func convertValue(v selection.Value, idOfType, baseType string) ArgValue {
	switch v := v.(type) {
	case selection.VariableRef:
		return ArgValue{Kind: ArgVariable, Variable: v.Name, IDOfType: idOfType}
	case selection.NullLiteral:
		return ArgValue{Kind: ArgNull}
	case selection.ScalarValue:
		return ArgValue{Kind: ArgLiteral, Literal: coerceScalarLiteral(v.Raw, baseType), IDOfType: idOfType}
	case selection.EnumLiteral:
		return ArgValue{Kind: ArgLiteral, Literal: v.Name}
	case selection.ListLiteral:
		items := make([]ArgValue, len(v.Items))
		for i, item := range v.Items {
			items[i] = convertValue(item, idOfType, baseType)
		}
		return ArgValue{Kind: ArgList, Items: items}
	case selection.ObjectLiteral:
		fields := make(map[string]ArgValue, len(v.Fields))
		for name, item := range v.Fields {
			fields[name] = convertValue(item, "", "")
		}
		return ArgValue{Kind: ArgObject, Fields: fields}
	default:
		return ArgValue{Kind: ArgNull}
	}
}

// coerceScalarLiteral converts the raw lexeme the GraphQL parser attaches to
// an IntValue/FloatValue node (always a string, per gqlast.IntValue.Value)
// into the Go numeric type a resolver actually expects. Variables never go
// through here: JSON decoding already hands those in as float64/bool/string,
// which is why coerceRuntimeArgs in the engine package leaves ArgVariable
// values untouched.
func coerceScalarLiteral(raw interface{}, baseType string) interface{} {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	switch baseType {
	case schema.ScalarInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return int(n)
		}
	case schema.ScalarFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return raw
}
