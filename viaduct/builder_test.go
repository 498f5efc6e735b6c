package viaduct_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaductgraph/viaduct/engine"
	"github.com/viaductgraph/viaduct/schema"
	"github.com/viaductgraph/viaduct/viaduct"
)

func buildUserSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name: "Query",
		Fields: map[string]*schema.Field{
			"hello": {Name: "hello", Type: schema.Nullable(schema.ScalarString)},
		},
		FieldOrder:  []string{"hello"},
		IsRootQuery: true,
	})
	sch, err := b.Build()
	require.NoError(t, err)
	return sch
}

func TestBuilderRequiresSchema(t *testing.T) {
	_, err := viaduct.NewBuilder().Build()
	require.Error(t, err)
}

func TestBuilderBuildsWithBareSchema(t *testing.T) {
	sch := buildUserSchema(t)
	eng, err := viaduct.NewBuilder().
		WithSchemaConfiguration(sch, nil).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "Query", eng.Schema().QueryTypeName())
}

func TestBuilderRejectsSubscriptionsByDefault(t *testing.T) {
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields:      map[string]*schema.Field{"hello": {Name: "hello", Type: schema.Nullable(schema.ScalarString)}},
		FieldOrder:  []string{"hello"},
	})
	b.AddObject(&schema.Object{
		Name:       "Subscription",
		Fields:     map[string]*schema.Field{"ping": {Name: "ping", Type: schema.Nullable(schema.ScalarString)}},
		FieldOrder: []string{"ping"},
	})
	sch, err := b.Build()
	require.NoError(t, err)

	_, err = viaduct.NewBuilder().WithSchemaConfiguration(sch, nil).Build()
	require.Error(t, err)

	eng, err := viaduct.NewBuilder().WithSchemaConfiguration(sch, nil).AllowSubscriptions(true).Build()
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func buildScopedUserSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.AddObject(&schema.Object{
		Name: "Query",
		Fields: map[string]*schema.Field{
			"hello": {Name: "hello", Type: schema.Nullable(schema.ScalarString)},
			"secret": {
				Name:       "secret",
				Type:       schema.Nullable(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "scope", Args: map[string]interface{}{"to": []string{"admin"}}}},
			},
		},
		FieldOrder:  []string{"hello", "secret"},
		IsRootQuery: true,
	})
	sch, err := b.Build()
	require.NoError(t, err)
	return sch
}

// TestAccessChecksInlineAndSeparatePassAgree mirrors spec.md §9: whether
// access checks run inline (interleaved with resolver dispatch) or in a
// separate pass up front, both must reach identical outcomes for the same
// request — here, a denied scoped field and an allowed unscoped one.
func TestAccessChecksInlineAndSeparatePassAgree(t *testing.T) {
	sch := buildScopedUserSchema(t)

	build := func(separatePass bool) *viaduct.Engine {
		flags := map[string]bool{viaduct.FlagExecuteAccessChecksInModstrat: true}
		if separatePass {
			flags[viaduct.FlagAccessChecksSeparatePass] = true
		}
		eng, err := viaduct.NewBuilder().
			WithSchemaConfiguration(sch, nil).
			WithCheckerExecutorFactory(func() engine.AccessCheckFunc {
				return func(ctx context.Context, coordinate string, scopes []string) error {
					return fmt.Errorf("viewer lacks scope(s) %v for %s", scopes, coordinate)
				}
			}).
			WithFlagManager(func(flag string) bool { return flags[flag] }).
			Build()
		require.NoError(t, err)
		return eng
	}

	for _, separatePass := range []bool{false, true} {
		eng := build(separatePass)
		result := eng.Execute(context.Background(), viaduct.ExecutionInput{
			Document: `query { hello secret }`,
			RootData: map[string]interface{}{"hello": "hi", "secret": "nope"},
		})
		require.Len(t, result.Errors, 1, "separatePass=%v", separatePass)
		assert.Equal(t, "secret", result.Errors[0].Path[0], "separatePass=%v", separatePass)
		assert.Equal(t, "hi", result.Data["hello"], "separatePass=%v", separatePass)
		assert.Nil(t, result.Data["secret"], "separatePass=%v", separatePass)
	}
}

func TestBuilderFlagManagerGatesAccessChecks(t *testing.T) {
	sch := buildUserSchema(t)
	checkerCalls := 0
	eng, err := viaduct.NewBuilder().
		WithSchemaConfiguration(sch, nil).
		WithCheckerExecutorFactory(func() engine.AccessCheckFunc {
			checkerCalls++
			return func(ctx context.Context, coordinate string, scopes []string) error {
				return nil
			}
		}).
		Build()
	require.NoError(t, err)
	require.NotNil(t, eng)
	// No EXECUTE_ACCESS_CHECKS_IN_MODSTRAT flag manager was installed, so the
	// checker factory is never invoked at Build time.
	assert.Equal(t, 0, checkerCalls)
}
