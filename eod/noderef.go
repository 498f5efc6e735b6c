package eod

import (
	"context"
	"fmt"
	"sync"
)

// NodeRef is a Node-typed value that is known only by its global identity
// (type name and internal ID) until ResolveData runs its backing fetch.
// Creating a NodeRef never fetches. The engine calls ResolveData whenever it
// completes a NodeRef against a selection set, including one that names only
// __typename or id, so every NodeRef that reaches the response is fetched.
type NodeRef struct {
	typeName   string
	internalID string

	once    sync.Once
	object  *Object
	err     error
	fetch   func(ctx context.Context, internalID string) (map[string]interface{}, error)
	allowed map[string]bool
}

// NewNodeRef returns a NodeRef for (typeName, internalID) whose full data is
// produced by calling fetch at most once, the first time ResolveData is
// called. allowed restricts the resulting Object the same way eod.New does.
func NewNodeRef(typeName, internalID string, allowed map[string]bool, fetch func(ctx context.Context, internalID string) (map[string]interface{}, error)) *NodeRef {
	return &NodeRef{typeName: typeName, internalID: internalID, allowed: allowed, fetch: fetch}
}

// GraphQLObjectType returns the Node's concrete type name without forcing
// resolution.
func (r *NodeRef) GraphQLObjectType() string { return r.typeName }

// InternalID returns the Node's internal ID without forcing resolution.
func (r *NodeRef) InternalID() string { return r.internalID }

// ResolveData forces the backing fetch (once, cached) and returns the
// resulting Object.
func (r *NodeRef) ResolveData(ctx context.Context) (*Object, error) {
	r.once.Do(func() {
		if r.fetch == nil {
			r.err = fmt.Errorf("eod: node ref for %s:%s has no fetch function bound", r.typeName, r.internalID)
			return
		}
		data, err := r.fetch(ctx, r.internalID)
		if err != nil {
			r.err = err
			return
		}
		r.object = New(r.typeName, data, r.allowed)
	})
	return r.object, r.err
}
