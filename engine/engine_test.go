package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/engine"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

func buildCharacterListSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:   "Character",
		IsNode: true,
		Fields: map[string]*schema.Field{
			"name": {Name: "name", Type: schema.Nullable(schema.ScalarString)},
			"filmCount": {
				Name:       "filmCount",
				Type:       schema.NonNull(schema.ScalarInt),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"name", "filmCount"},
	})
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"characters": {Name: "characters", Type: schema.NonNull("Character").List(false)},
		},
		FieldOrder: []string{"characters"},
	})
	sch, err := b.Build()
	require.NoError(t, err)
	return sch
}

// TestExecuteBatchesSiblingResolvers resolves filmCount for three sibling
// Character objects returned by one list field and verifies the batch
// resolver is invoked exactly once with all three inputs, per spec.md §5.2.
func TestExecuteBatchesSiblingResolvers(t *testing.T) {
	sch := buildCharacterListSchema(t)

	calls := 0
	reg := registry.New()
	reg.AddField(&registry.FieldResolver{
		Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "filmCount"},
		RequiredSelectionText: "name",
		BatchResolve: func(ctx context.Context, parents []*eod.Object, args []map[string]interface{}) ([]interface{}, error) {
			calls++
			out := make([]interface{}, len(parents))
			for i, p := range parents {
				name, _ := p.Fetch("name")
				out[i] = len(name.(string))
			}
			return out, nil
		},
	})
	built, err := registry.Build(reg, sch, false)
	require.NoError(t, err)

	rss, err := selection.Parse(`query { characters { name filmCount } }`)
	require.NoError(t, err)
	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	params := engine.NewParams(built, sch, nil, nil, nil)

	names := []string{"Leia", "Luke", "Han"}
	characters := make([]interface{}, len(names))
	for i, n := range names {
		characters[i] = eod.New("Character", map[string]interface{}{"name": n}, nil)
	}
	root := eod.New("Query", map[string]interface{}{"characters": characters}, nil)

	result := engine.Execute(context.Background(), params, plan, root)
	require.Empty(t, result.Errors)

	list := result.Data["characters"].([]interface{})
	require.Len(t, list, 3)
	for i, n := range names {
		obj := list[i].(map[string]interface{})
		assert.Equal(t, len(n), obj["filmCount"])
	}
	assert.Equal(t, 1, calls, "sibling resolutions within the batch window must collapse into one ManyFunc call")
}

// TestExecuteRequiredSelectionResolvesResolverBackedDependency covers
// spec.md §4.5.1 item 3: a resolver's required selection set can itself
// name an @resolver-backed field (not just plain backing data), and the
// engine must actually invoke that dependency's own resolver rather than
// reading stale/absent raw data. "shout" requires "upperName", which is
// itself @resolver-backed and requires "name"; the query selects only
// "shout", so neither "name" nor "upperName" is ever client-selected.
func TestExecuteRequiredSelectionResolvesResolverBackedDependency(t *testing.T) {
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name: "Character",
		Fields: map[string]*schema.Field{
			"name": {Name: "name", Type: schema.Nullable(schema.ScalarString)},
			"upperName": {
				Name:       "upperName",
				Type:       schema.Nullable(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			"shout": {
				Name:       "shout",
				Type:       schema.Nullable(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"name", "upperName", "shout"},
	})
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields:      map[string]*schema.Field{"hero": {Name: "hero", Type: schema.Nullable("Character")}},
		FieldOrder:  []string{"hero"},
	})
	sch, err := b.Build()
	require.NoError(t, err)

	var upperCalls, shoutCalls int
	reg := registry.New()
	reg.AddField(&registry.FieldResolver{
		Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "upperName"},
		RequiredSelectionText: "name",
		Resolve: func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
			upperCalls++
			name, err := parent.Fetch("name")
			if err != nil {
				return nil, err
			}
			return strings.ToUpper(name.(string)), nil
		},
	})
	reg.AddField(&registry.FieldResolver{
		Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "shout"},
		RequiredSelectionText: "upperName",
		Resolve: func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
			shoutCalls++
			upper, err := parent.Fetch("upperName")
			if err != nil {
				return nil, err
			}
			return upper.(string) + "!", nil
		},
	})
	built, err := registry.Build(reg, sch, false)
	require.NoError(t, err)

	rss, err := selection.Parse(`query { hero { shout } }`)
	require.NoError(t, err)
	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	params := engine.NewParams(built, sch, nil, nil, nil)
	hero := eod.New("Character", map[string]interface{}{"name": "luke"}, nil)
	root := eod.New("Query", map[string]interface{}{"hero": hero}, nil)

	result := engine.Execute(context.Background(), params, plan, root)
	require.Empty(t, result.Errors)

	got := result.Data["hero"].(map[string]interface{})
	assert.Equal(t, "LUKE!", got["shout"])
	assert.Equal(t, 1, upperCalls, "upperName's own resolver must run exactly once even though the client never selected it directly")
	assert.Equal(t, 1, shoutCalls)
}

// TestExecuteBindsQueryFragmentAndVariables mirrors spec.md §4.4: a
// resolver's query fragment lets it read a root Query field regardless of
// how deeply it is nested, and its variable bindings (FromQueryField,
// FromArgument, FromProvider) all merge into the one argument record the
// resolver receives.
func TestExecuteBindsQueryFragmentAndVariables(t *testing.T) {
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:   "Character",
		IsNode: true,
		Fields: map[string]*schema.Field{
			"name": {Name: "name", Type: schema.Nullable(schema.ScalarString)},
			"tag": {
				Name:       "tag",
				Type:       schema.Nullable(schema.ScalarString),
				Args:       []*schema.ArgumentDef{{Name: "loud", Type: schema.NonNull(schema.ScalarBoolean)}},
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"name", "tag"},
	})
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"viewerID": {Name: "viewerID", Type: schema.Nullable(schema.ScalarString)},
			"hero":     {Name: "hero", Type: schema.Nullable("Character")},
		},
		FieldOrder: []string{"viewerID", "hero"},
	})
	sch, err := b.Build()
	require.NoError(t, err)

	reg := registry.New()
	reg.AddField(&registry.FieldResolver{
		Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "tag"},
		RequiredSelectionText: "name",
		QueryFragmentText:     "viewerID",
		Variables: []registry.VariableBinding{
			{Name: "viewer", Source: registry.FromQueryField, FieldName: "viewerID"},
			{Name: "loudness", Source: registry.FromArgument, ArgumentName: "loud"},
			{
				Name:   "stamp",
				Source: registry.FromProvider,
				Provider: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
					return "v1", nil
				},
			},
		},
		Resolve: func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
			name, err := parent.Fetch("name")
			if err != nil {
				return nil, err
			}
			tag := name.(string) + ":" + args["viewer"].(string) + ":" + args["stamp"].(string)
			if args["loudness"].(bool) {
				tag = strings.ToUpper(tag)
			}
			return tag, nil
		},
	})
	built, err := registry.Build(reg, sch, false)
	require.NoError(t, err)

	rss, err := selection.Parse(`query { hero { tag(loud: true) } }`)
	require.NoError(t, err)
	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	params := engine.NewParams(built, sch, nil, nil, nil)
	hero := eod.New("Character", map[string]interface{}{"name": "luke"}, nil)
	root := eod.New("Query", map[string]interface{}{"viewerID": "user-42", "hero": hero}, nil)

	result := engine.Execute(context.Background(), params, plan, root)
	require.Empty(t, result.Errors)

	got := result.Data["hero"].(map[string]interface{})
	assert.Equal(t, "LUKE:USER-42:V1", got["tag"])
}

// TestExecuteSelectiveResolverSkipsCompositeWalk mirrors spec.md §4.4's
// selective resolver: its returned value is handed back as-is, without the
// engine walking step.Children against it (which would otherwise fail,
// since the resolver returns a plain map rather than an *eod.Object).
func TestExecuteSelectiveResolverSkipsCompositeWalk(t *testing.T) {
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:       "Blob",
		Fields:     map[string]*schema.Field{"value": {Name: "value", Type: schema.Nullable(schema.ScalarString)}},
		FieldOrder: []string{"value"},
	})
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"blob": {
				Name:       "blob",
				Type:       schema.Nullable("Blob"),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"blob"},
	})
	sch, err := b.Build()
	require.NoError(t, err)

	reg := registry.New()
	reg.AddField(&registry.FieldResolver{
		Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "blob"},
		Selective:  true,
		Resolve: func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"value": "unmanaged by the engine"}, nil
		},
	})
	built, err := registry.Build(reg, sch, false)
	require.NoError(t, err)

	rss, err := selection.Parse(`query { blob { value } }`)
	require.NoError(t, err)
	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	params := engine.NewParams(built, sch, nil, nil, nil)
	root := eod.New("Query", map[string]interface{}{}, nil)

	result := engine.Execute(context.Background(), params, plan, root)
	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{"value": "unmanaged by the engine"}, result.Data["blob"])
}

// TestExecuteNonNullFieldFailurePropagatesToRoot mirrors spec.md §8's S6:
// a non-null field's resolver error must null out the entire response data,
// not just that field, since there is no nullable ancestor to absorb it.
func TestExecuteNonNullFieldFailurePropagatesToRoot(t *testing.T) {
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"x": {Name: "x", Type: schema.NonNull(schema.ScalarInt), Directives: []*schema.AppliedDirective{{Name: "resolver"}}},
			"y": {Name: "y", Type: schema.Nullable(schema.ScalarString)},
		},
		FieldOrder: []string{"x", "y"},
	})
	sch, err := b.Build()
	require.NoError(t, err)

	reg := registry.New()
	reg.AddField(&registry.FieldResolver{
		Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "x"},
		Resolve: func(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
			return nil, assertErrEngine("x failed")
		},
	})
	built, err := registry.Build(reg, sch, false)
	require.NoError(t, err)

	rss, err := selection.Parse(`query { x y }`)
	require.NoError(t, err)
	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	params := engine.NewParams(built, sch, nil, nil, nil)
	root := eod.New("Query", map[string]interface{}{"y": "hi"}, nil)

	result := engine.Execute(context.Background(), params, plan, root)
	require.Len(t, result.Errors, 1)
	assert.Nil(t, result.Data, "a non-null field error at the root must null out the whole response")
}

type assertErrEngine string

func (e assertErrEngine) Error() string { return string(e) }
