package viaduct_test

import (
	"context"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/samsarahq/go/snapshotter"

	"github.com/viaductgraph/viaduct/viaduct"
)

// TestExecuteGreeterSnapshot golden-files the full ExecutionResult the way
// the teacher's internal/testgraphql.Snapshotter golden-files query output,
// catching unintended shape changes (new fields, reordered errors) that a
// single assert.Equal on one field wouldn't.
func TestExecuteGreeterSnapshot(t *testing.T) {
	sch := buildGreeterSchema(t)
	eng, err := viaduct.NewBuilder().
		WithSchemaConfiguration(sch, nil).
		WithTenantAPIBootstrapper(nil).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result := eng.Execute(context.Background(), viaduct.ExecutionInput{
		Document: `query { first last }`,
		RootData: map[string]interface{}{"first": "Ada", "last": "Lovelace"},
	})
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors, dump follows:\n%s", spew.Sdump(result.Errors))
	}

	snap := snapshotter.New(t)
	snap.Snapshot("greeter query result", result.Data)
}
