package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/selection"
)

func buildFilmSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:   "Film",
		IsNode: true,
		Fields: map[string]*schema.Field{
			"id":    {Name: "id", Type: schema.NonNull(schema.ScalarID)},
			"title": {Name: "title", Type: schema.Nullable(schema.ScalarString)},
		},
		FieldOrder: []string{"id", "title"},
	})
	b.AddObject(&schema.Object{
		Name: "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"film": {
				Name: "film",
				Type: schema.Nullable("Film"),
				Args: []*schema.ArgumentDef{
					{Name: "id", Type: schema.NonNull(schema.ScalarID), Directives: []*schema.AppliedDirective{{Name: "idOf", Args: map[string]interface{}{"type": "Film"}}}},
				},
			},
		},
		FieldOrder: []string{"film"},
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func TestBuildPlansLeafAndNestedFields(t *testing.T) {
	sch := buildFilmSchema(t)
	rss, err := selection.Parse(`query { film(id: "Zmlsb0Noi") { title } }`)
	require.NoError(t, err)

	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	steps := plan.StepsFor("Query")
	require.Len(t, steps, 1)
	filmStep := steps[0]
	assert.Equal(t, "film", filmStep.FieldName)
	idArg := filmStep.Args["id"]
	assert.Equal(t, planner.ArgLiteral, idArg.Kind)
	assert.Equal(t, "Film", idArg.IDOfType)

	require.NotNil(t, filmStep.Children)
	childSteps := filmStep.Children.StepsFor("Film")
	require.Len(t, childSteps, 1)
	assert.Equal(t, "title", childSteps[0].FieldName)
}

func TestBuildMergesRepeatedFieldSelections(t *testing.T) {
	sch := buildFilmSchema(t)
	rss, err := selection.Parse(`
		query {
			film(id: "Zmlsb0Noi") { id }
			film(id: "Zmlsb0Noi") { title }
		}
	`)
	require.NoError(t, err)

	plan, err := planner.Build(rss, sch.QueryTypeName(), sch, planner.OperationQuery)
	require.NoError(t, err)

	steps := plan.StepsFor("Query")
	require.Len(t, steps, 1, "repeated selections under the same response key must merge into one step")
	childSteps := steps[0].Children.StepsFor("Film")
	require.Len(t, childSteps, 2)
}
