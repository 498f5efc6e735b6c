package selection

import (
	"strings"

	gqlast "github.com/graphql-go/graphql/language/ast"
	gqlparser "github.com/graphql-go/graphql/language/parser"

	"github.com/samsarahq/go/oops"
)

// mainFragmentName is the required name of the entry fragment when a
// required-selection-set string declares more than one named fragment
// (spec.md §4.2).
const mainFragmentName = "Main"

// Parse parses a full GraphQL document (an operation, with its fragment
// definitions) into a RawSelectionSet rooted at the operation's selection
// set. A document that declares more than one operation is rejected;
// callers that need to select a named operation out of a
// multi-operation document should use ParseOperation instead.
func Parse(document string) (*RawSelectionSet, error) {
	return ParseOperation(document, "")
}

// ParseOperation parses document the same way Parse does, but selects
// among multiple operation definitions by name the way a GraphQL request's
// operationName field does (spec.md §6's ExecutionInput.OperationName): if
// operationName is "" and the document declares exactly one operation, that
// operation is used; if the document declares more than one, operationName
// must name one of them.
func ParseOperation(document string, operationName string) (*RawSelectionSet, error) {
	doc, err := gqlparser.Parse(gqlparser.ParseParams{Source: document})
	if err != nil {
		return nil, oops.Errorf("selection: parsing document: %w", err)
	}

	fragments := map[string]*Fragment{}
	var fragmentOrder []string
	var ops []*gqlast.OperationDefinition

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *gqlast.OperationDefinition:
			ops = append(ops, d)
		case *gqlast.FragmentDefinition:
			name := d.Name.Value
			fragments[name] = &Fragment{
				Name:          name,
				TypeCondition: d.TypeCondition.Name.Value,
				SelectionSet:  convertSelectionSet(d.SelectionSet, fragments, &fragmentOrder),
			}
			fragmentOrder = append(fragmentOrder, name)
		}
	}

	if len(ops) == 0 {
		return nil, oops.Errorf("selection: document contains no operation")
	}

	op := ops[0]
	if operationName != "" {
		op = nil
		for _, candidate := range ops {
			if candidate.Name != nil && candidate.Name.Value == operationName {
				op = candidate
				break
			}
		}
		if op == nil {
			return nil, oops.Errorf("selection: document contains no operation named %q", operationName)
		}
	} else if len(ops) > 1 {
		return nil, oops.Errorf("selection: document declares %d operations; operationName is required", len(ops))
	}

	rss := convertSelectionSet(op.SelectionSet, fragments, &fragmentOrder)
	rss.Variables, rss.VariableOrder = convertVariableDefs(op.VariableDefinitions)
	if op.Operation != "" {
		rss.OperationType = op.Operation
	} else {
		rss.OperationType = "query"
	}
	return rss, nil
}

// ParseFragmentText parses a required-selection-set fragment string against
// targetType. It supports two forms:
//
//   - Shorthand: a bare field list like "first last" with no braces, which
//     is auto-expanded into an implicit unnamed fragment on targetType.
//   - Full fragment document syntax (one or more `fragment Name on Type {
//     ... }` definitions). When more than one fragment is present, the entry
//     fragment must be named "Main" (spec.md §4.2).
func ParseFragmentText(text string, targetType string) (*RawSelectionSet, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &RawSelectionSet{TypeCondition: targetType, Fragments: map[string]*Fragment{}}, nil
	}

	if !strings.Contains(trimmed, "{") && !strings.HasPrefix(trimmed, "fragment") {
		return parseShorthand(trimmed, targetType)
	}

	wrapped := trimmed + "\nquery ViaductRequiredSelection { __typename }"
	doc, err := gqlparser.Parse(gqlparser.ParseParams{Source: wrapped})
	if err != nil {
		return nil, oops.Errorf("selection: parsing required selection set %q: %w", text, err)
	}

	fragments := map[string]*Fragment{}
	var fragmentOrder []string
	for _, def := range doc.Definitions {
		if fd, ok := def.(*gqlast.FragmentDefinition); ok {
			name := fd.Name.Value
			fragments[name] = &Fragment{
				Name:          name,
				TypeCondition: fd.TypeCondition.Name.Value,
				SelectionSet:  convertSelectionSet(fd.SelectionSet, fragments, &fragmentOrder),
			}
			fragmentOrder = append(fragmentOrder, name)
		}
	}

	if len(fragments) > 1 {
		if _, ok := fragments[mainFragmentName]; !ok {
			return nil, oops.Errorf("selection: required selection set with multiple fragments must name the entry fragment %q", mainFragmentName)
		}
		main := fragments[mainFragmentName]
		return &RawSelectionSet{
			TypeCondition: main.TypeCondition,
			Selections:    main.SelectionSet.Selections,
			Fragments:     fragments,
			FragmentOrder: fragmentOrder,
		}, nil
	}
	for _, f := range fragments {
		return &RawSelectionSet{
			TypeCondition: f.TypeCondition,
			Selections:    f.SelectionSet.Selections,
			Fragments:     fragments,
			FragmentOrder: fragmentOrder,
		}, nil
	}
	return nil, oops.Errorf("selection: required selection set %q declares no fragment", text)
}

func parseShorthand(fieldList string, targetType string) (*RawSelectionSet, error) {
	// graphql-go's grammar has no bare "on Type { ... }" query form; wrap the
	// shorthand field list in a synthetic fragment so the existing
	// field-selection grammar handles arguments/sub-selections/directives
	// uniformly.
	doc := "fragment Main on " + targetType + " { " + fieldList + " }\nquery ViaductShorthand { ...Main }"
	parsed, err := gqlparser.Parse(gqlparser.ParseParams{Source: doc})
	if err != nil {
		return nil, oops.Errorf("selection: parsing shorthand selection %q: %w", fieldList, err)
	}

	fragments := map[string]*Fragment{}
	var fragmentOrder []string
	for _, def := range parsed.Definitions {
		if fd, ok := def.(*gqlast.FragmentDefinition); ok {
			name := fd.Name.Value
			fragments[name] = &Fragment{
				Name:          name,
				TypeCondition: fd.TypeCondition.Name.Value,
				SelectionSet:  convertSelectionSet(fd.SelectionSet, fragments, &fragmentOrder),
			}
			fragmentOrder = append(fragmentOrder, name)
		}
	}
	main := fragments[mainFragmentName]
	if main == nil {
		return nil, oops.Errorf("selection: shorthand selection %q failed to expand", fieldList)
	}
	return &RawSelectionSet{
		TypeCondition: targetType,
		Selections:    main.SelectionSet.Selections,
		Fragments:     fragments,
		FragmentOrder: fragmentOrder,
	}, nil
}

func convertSelectionSet(set *gqlast.SelectionSet, fragments map[string]*Fragment, fragmentOrder *[]string) *RawSelectionSet {
	if set == nil {
		return nil
	}
	rss := &RawSelectionSet{Fragments: fragments}
	for _, sel := range set.Selections {
		rss.Selections = append(rss.Selections, convertSelection(sel, fragments, fragmentOrder))
	}
	return rss
}

func convertSelection(sel gqlast.Selection, fragments map[string]*Fragment, fragmentOrder *[]string) *Selection {
	switch s := sel.(type) {
	case *gqlast.Field:
		out := &Selection{
			Name:         s.Name.Value,
			Args:         convertArguments(s.Arguments),
			Directives:   convertDirectives(s.Directives),
			SelectionSet: convertSelectionSet(s.SelectionSet, fragments, fragmentOrder),
		}
		if s.Alias != nil {
			out.Alias = s.Alias.Value
		} else {
			out.Alias = s.Name.Value
		}
		return out
	case *gqlast.FragmentSpread:
		return &Selection{
			FragmentSpreadName: s.Name.Value,
			Directives:         convertDirectives(s.Directives),
		}
	case *gqlast.InlineFragment:
		onType := ""
		if s.TypeCondition != nil {
			onType = s.TypeCondition.Name.Value
		}
		return &Selection{
			IsInlineFragment: true,
			InlineFragmentOn: onType,
			Directives:       convertDirectives(s.Directives),
			SelectionSet:     convertSelectionSet(s.SelectionSet, fragments, fragmentOrder),
		}
	default:
		return &Selection{}
	}
}

func convertArguments(args []*gqlast.Argument) map[string]Value {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]Value, len(args))
	for _, a := range args {
		out[a.Name.Value] = convertValue(a.Value)
	}
	return out
}

func convertDirectives(directives []*gqlast.Directive) []*Directive {
	if len(directives) == 0 {
		return nil
	}
	out := make([]*Directive, 0, len(directives))
	for _, d := range directives {
		out = append(out, &Directive{Name: d.Name.Value, Args: convertArguments(d.Arguments)})
	}
	return out
}

func convertVariableDefs(defs []*gqlast.VariableDefinition) (map[string]*VariableDef, []string) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make(map[string]*VariableDef, len(defs))
	var order []string
	for _, d := range defs {
		name := d.Variable.Name.Value
		vd := &VariableDef{Name: name, TypeName: typeNodeString(d.Type)}
		if d.DefaultValue != nil {
			vd.HasDefault = true
			vd.Default = convertValue(d.DefaultValue)
		}
		out[name] = vd
		order = append(order, name)
	}
	return out, order
}

func typeNodeString(t gqlast.Type) string {
	switch t := t.(type) {
	case *gqlast.Named:
		return t.Name.Value
	case *gqlast.NonNull:
		return typeNodeString(t.Type) + "!"
	case *gqlast.List:
		return "[" + typeNodeString(t.Type) + "]"
	default:
		return ""
	}
}

func convertValue(v gqlast.Value) Value {
	if v == nil {
		return NullLiteral{}
	}
	switch v := v.(type) {
	case *gqlast.Variable:
		return VariableRef{Name: v.Name.Value}
	case *gqlast.IntValue:
		return ScalarValue{Raw: v.Value}
	case *gqlast.FloatValue:
		return ScalarValue{Raw: v.Value}
	case *gqlast.StringValue:
		return ScalarValue{Raw: v.Value}
	case *gqlast.BooleanValue:
		return ScalarValue{Raw: v.Value}
	case *gqlast.EnumValue:
		return EnumLiteral{Name: v.Value}
	case *gqlast.NullValue:
		return NullLiteral{}
	case *gqlast.ListValue:
		items := make([]Value, len(v.Values))
		for i, item := range v.Values {
			items[i] = convertValue(item)
		}
		return ListLiteral{Items: items}
	case *gqlast.ObjectValue:
		fields := make(map[string]Value, len(v.Fields))
		for _, f := range v.Fields {
			fields[f.Name.Value] = convertValue(f.Value)
		}
		return ObjectLiteral{Fields: fields}
	default:
		return NullLiteral{}
	}
}

