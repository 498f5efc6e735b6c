package viaduct

import (
	"context"
	"fmt"

	"github.com/viaductgraph/viaduct/batch"
	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/registry"
)

// registerNodeFieldResolvers installs the Query.node and Query.nodes
// resolvers the schema's synthesizeNodeContract step requires once any
// Object is marked IsNode. Both close over builtRef rather than a concrete
// *registry.Built, since they're registered before registry.Build runs (the
// registry has to be closed, including these two entries, before it can be
// built) and only ever invoked later, by which point Builder.Build has
// already assigned *builtRef.
func registerNodeFieldResolvers(reg *registry.Registry, queryTypeName string, codec globalid.Codec, builtRef **registry.Built) {
	reg.AddField(&registry.FieldResolver{
		Coordinate: registry.Coordinate{TypeName: queryTypeName, FieldName: "node"},
		Resolve: func(ctx context.Context, _ *eod.Object, args map[string]interface{}) (interface{}, error) {
			id, _ := args["id"].(string)
			return decodeNodeRef(*builtRef, codec, id)
		},
	})
	reg.AddField(&registry.FieldResolver{
		Coordinate: registry.Coordinate{TypeName: queryTypeName, FieldName: "nodes"},
		Resolve: func(ctx context.Context, _ *eod.Object, args map[string]interface{}) (interface{}, error) {
			ids, _ := args["ids"].([]interface{})
			out := make([]interface{}, len(ids))
			for i, raw := range ids {
				id, _ := raw.(string)
				ref, err := decodeNodeRef(*builtRef, codec, id)
				if err != nil {
					return nil, err
				}
				out[i] = ref
			}
			return out, nil
		},
	})
}

// decodeNodeRef turns one global ID string into a lazily-fetched NodeRef
// (its backing fetch runs when the engine completes it against the
// selection set). Unlike a field declaring
// @idOf(type: "X"), node/nodes accept an ID of any registered Node type, so
// decoding uses the codec's generic Deserialize rather than
// DeserializeExpecting.
func decodeNodeRef(built *registry.Built, codec globalid.Codec, id string) (*eod.NodeRef, error) {
	typeName, internalID, err := codec.Deserialize(id)
	if err != nil {
		return nil, err
	}
	nr, ok := built.Node(typeName)
	if !ok {
		return nil, &instrumentation.InvalidGlobalID{Value: id, Err: fmt.Errorf("type %q is not a registered Node type", typeName)}
	}
	return eod.NewNodeRef(typeName, internalID, nil, cachedFetch(nr, id)), nil
}

// cachedFetch wraps a NodeResolver's Fetch so two separate NodeRefs minted
// for the same global ID within one request (node(id:) plus a foreign-key
// field that happens to point at the same row) collapse onto a single
// backing call rather than issuing it twice. NodeRef.ResolveData's own
// sync.Once only dedupes repeated reads of the *same* NodeRef instance; this
// extends the guarantee to the whole request via batch.Cache, the same
// request-scoped cache the batch package already provides for resolver
// computations in general. A context without batch.WithCache installed
// (only possible from tests that call Fetch directly) falls back to an
// uncached call.
func cachedFetch(nr *registry.NodeResolver, id string) func(ctx context.Context, internalID string) (map[string]interface{}, error) {
	return func(ctx context.Context, internalID string) (map[string]interface{}, error) {
		if !batch.HasCache(ctx) {
			return nr.Fetch(ctx, internalID)
		}
		in := map[batch.Index]string{batch.NewIndex(0): id}
		out := make(map[batch.Index]map[string]interface{}, 1)
		err := batch.Cache(ctx, in, out, func(ctx context.Context, in map[batch.Index]string) (map[batch.Index]map[string]interface{}, error) {
			res := make(map[batch.Index]map[string]interface{}, len(in))
			for idx := range in {
				data, err := nr.Fetch(ctx, internalID)
				if err != nil {
					return nil, err
				}
				res[idx] = data
			}
			return res, nil
		})
		if err != nil {
			return nil, err
		}
		return out[batch.NewIndex(0)], nil
	}
}
