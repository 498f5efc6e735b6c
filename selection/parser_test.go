package selection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaductgraph/viaduct/selection"
)

func TestParseSimpleDocument(t *testing.T) {
	rss, err := selection.Parse(`
		query GetCharacter($id: ID!) {
			character(id: $id) {
				name
				filmCount
			}
		}
	`)
	require.NoError(t, err)
	require.Len(t, rss.Selections, 1)

	characterSel := rss.Selections[0]
	assert.Equal(t, "character", characterSel.Name)
	assert.Equal(t, "character", characterSel.ResponseKey())
	require.NotNil(t, characterSel.SelectionSet)
	assert.Len(t, characterSel.SelectionSet.Selections, 2)

	idArg, ok := characterSel.Args["id"]
	require.True(t, ok)
	assert.Equal(t, selection.VariableRef{Name: "id"}, idArg)

	require.Contains(t, rss.Variables, "id")
	assert.Equal(t, "ID!", rss.Variables["id"].TypeName)
}

func TestParseAliasAndDirectives(t *testing.T) {
	rss, err := selection.Parse(`
		query {
			a: setX(v: 1) @skip(if: false)
		}
	`)
	require.NoError(t, err)
	require.Len(t, rss.Selections, 1)
	sel := rss.Selections[0]
	assert.Equal(t, "setX", sel.Name)
	assert.Equal(t, "a", sel.Alias)
	assert.Equal(t, "a", sel.ResponseKey())
	require.Len(t, sel.Directives, 1)
	assert.Equal(t, "skip", sel.Directives[0].Name)
}

func TestParseFragmentTextShorthand(t *testing.T) {
	rss, err := selection.ParseFragmentText("first last", "User")
	require.NoError(t, err)
	assert.Equal(t, "User", rss.TypeCondition)
	require.Len(t, rss.Selections, 2)
	assert.Equal(t, "first", rss.Selections[0].Name)
	assert.Equal(t, "last", rss.Selections[1].Name)
}

func TestParseFragmentTextRequiresMainWhenMultiple(t *testing.T) {
	_, err := selection.ParseFragmentText(`
		fragment A on User { first }
		fragment B on User { last }
	`, "User")
	require.Error(t, err)

	rss, err := selection.ParseFragmentText(`
		fragment Main on User { first last }
		fragment Extra on User { first }
	`, "User")
	require.NoError(t, err)
	assert.Equal(t, "User", rss.TypeCondition)
	assert.Len(t, rss.Selections, 2)
}
