package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaductgraph/viaduct/planner"
)

func TestCachePutAcquireRelease(t *testing.T) {
	c, err := planner.NewCache(2)
	require.NoError(t, err)

	key := planner.CacheKey{SchemaDigest: "d1", SelectionText: "{ film { title } }"}
	plan := &planner.Plan{TypeName: "Query"}
	release := c.Put(key, plan)

	got, release2, ok := c.Acquire(key)
	require.True(t, ok)
	assert.Same(t, plan, got)

	release()
	release2()
	assert.Equal(t, 1, c.Len())
}

func TestCacheNeverEvictsAnInFlightPlan(t *testing.T) {
	c, err := planner.NewCache(1)
	require.NoError(t, err)

	keyA := planner.CacheKey{SchemaDigest: "d1", SelectionText: "A"}
	planA := &planner.Plan{TypeName: "Query"}
	_, releaseA, ok := func() (*planner.Plan, func(), bool) {
		release := c.Put(keyA, planA)
		return planA, release, true
	}()
	require.True(t, ok)

	// Acquire a second reference so planA looks "in flight" while a second
	// plan forces it out of the bounded store.
	heldPlan, heldRelease, ok := c.Acquire(keyA)
	require.True(t, ok)
	assert.Same(t, planA, heldPlan)

	keyB := planner.CacheKey{SchemaDigest: "d1", SelectionText: "B"}
	planB := &planner.Plan{TypeName: "Query"}
	releaseB := c.Put(keyB, planB)

	// planA has been evicted from the bounded store by planB, but the
	// Plan itself must remain valid for the still-outstanding references.
	assert.Equal(t, "Query", heldPlan.TypeName)

	releaseA()
	heldRelease()
	releaseB()
}
