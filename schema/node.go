package schema

import "sort"

// NodeTypeName is the synthesized union every Node-implementing Object is
// folded into, and the name of the engine-provided node/nodes fields'
// return type (spec.md §6: "If any type implements Node, the schema
// exposes node(id: ID!): Node and nodes(ids: [ID!]!): [Node]!").
const NodeTypeName = "Node"

// synthesizeNodeContract runs once per Build: if any Object is marked
// IsNode, it folds them into a "Node" union (unless the caller already
// declared one) and injects the node/nodes fields onto the root Query
// object, each carrying @resolver so the registry's strict coverage check
// requires exactly one registered resolver for them. viaduct.Builder is
// responsible for auto-registering those two resolvers before the registry
// closes, since their implementation (decode a global ID, dispatch to the
// matching NodeResolver) only needs the codec and registry this package
// doesn't depend on.
func (s *Schema) synthesizeNodeContract() error {
	var nodeTypes []string
	for name, o := range s.objects {
		if o.IsNode {
			nodeTypes = append(nodeTypes, name)
		}
	}
	if len(nodeTypes) == 0 {
		return nil
	}
	sort.Strings(nodeTypes)

	if _, ok := s.unions[NodeTypeName]; !ok {
		s.unions[NodeTypeName] = &Union{Name: NodeTypeName, Members: nodeTypes}
	}

	if s.queryName == "" {
		return nil // the caller's "schema has no root Query object" check fires next
	}
	query := s.objects[s.queryName]
	if _, exists := query.Fields["node"]; !exists {
		query.Fields["node"] = &Field{
			Name: "node",
			Type: Nullable(NodeTypeName),
			Args: []*ArgumentDef{{Name: "id", Type: NonNull(ScalarID)}},
			Directives: []*AppliedDirective{{Name: "resolver"}},
		}
		query.FieldOrder = append(query.FieldOrder, "node")
	}
	if _, exists := query.Fields["nodes"]; !exists {
		query.Fields["nodes"] = &Field{
			Name: "nodes",
			Type: Nullable(NodeTypeName).List(false),
			Args: []*ArgumentDef{{Name: "ids", Type: NonNull(ScalarID).List(false)}},
			Directives: []*AppliedDirective{{Name: "resolver"}},
		}
		query.FieldOrder = append(query.FieldOrder, "nodes")
	}
	return nil
}
