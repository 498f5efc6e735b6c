package starwars

import (
	"context"
	"fmt"

	"github.com/viaductgraph/viaduct/eod"
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/viaduct"
)

// RegisterResolvers returns a TenantAPIBootstrapper registering every field
// and node resolver this demo schema needs against store.
func RegisterResolvers(store *Store) viaduct.TenantAPIBootstrapper {
	return func(r *registry.Registry) {
		r.AddNode(&registry.NodeResolver{TypeName: "Character", Fetch: store.FetchCharacter})
		r.AddNode(&registry.NodeResolver{TypeName: "Film", Fetch: store.FetchFilm})

		r.AddField(&registry.FieldResolver{
			Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "hero"},
			Resolve:    store.resolveHero,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "characters"},
			Resolve:    store.resolveCharacters,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "films"},
			Resolve:    store.resolveFilms,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate: registry.Coordinate{TypeName: "Query", FieldName: "deathStarPlans"},
			Resolve:    resolveDeathStarPlans,
		})

		r.AddField(&registry.FieldResolver{
			Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "displayName"},
			RequiredSelectionText: "name homeworld",
			Resolve:               resolveDisplayName,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "greeting"},
			RequiredSelectionText: "displayName",
			Resolve:               resolveGreeting,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "filmCount"},
			RequiredSelectionText: "appearsIn",
			BatchResolve:          store.batchFilmCount,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "friends"},
			RequiredSelectionText: "id",
			Resolve:               store.resolveFriends,
		})
		r.AddField(&registry.FieldResolver{
			Coordinate:            registry.Coordinate{TypeName: "Character", FieldName: "secretBackstory"},
			RequiredSelectionText: "id",
			Resolve:               resolveSecretBackstory,
		})

		r.AddField(&registry.FieldResolver{
			Coordinate: registry.Coordinate{TypeName: "Mutation", FieldName: "adjustShieldPower"},
			Resolve:    store.resolveAdjustShieldPower,
		})
	}
}

func (s *Store) resolveHero(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	episode, _ := args["episode"].(string)
	id := s.heroForEpisode(episode)
	return eod.NewNodeRef("Character", id, nil, s.FetchCharacter), nil
}

func (s *Store) resolveCharacters(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	ids := s.sortedCharacterIDs()
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = eod.NewNodeRef("Character", id, nil, s.FetchCharacter)
	}
	return out, nil
}

func (s *Store) resolveFilms(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	ids := s.sortedFilmIDs()
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = eod.NewNodeRef("Film", id, nil, s.FetchFilm)
	}
	return out, nil
}

// resolveDeathStarPlans always fails: selecting this field demonstrates
// spec.md §8's S6 scenario (non-null field failure collapsing the whole
// response to null) directly at the response root.
func resolveDeathStarPlans(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	return nil, fmt.Errorf("starwars: the plans are not in the main computer")
}

// resolveDisplayName composes Character.name with its homeworld, reading
// only the two fields it declared in RequiredSelectionText (spec.md §8's S1
// scenario).
func resolveDisplayName(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	name, err := parent.Fetch("name")
	if err != nil {
		return nil, err
	}
	homeworld, err := parent.Fetch("homeworld")
	if err != nil {
		return nil, err
	}
	if hw, ok := homeworld.(string); ok && hw != "" {
		return fmt.Sprintf("%s of %s", name.(string), hw), nil
	}
	return name.(string), nil
}

// resolveGreeting requires displayName, which is itself @resolver-backed
// rather than plain passthrough data: it demonstrates that a resolver's
// required selection set can name another resolver's output, not just raw
// backing fields.
func resolveGreeting(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	displayName, err := parent.Fetch("displayName")
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Hello, %s!", displayName.(string)), nil
}

// batchFilmCount computes how many films each Character parent appears in,
// reading only their required "appearsIn" selection. It is registered as a
// BatchResolve rather than a Resolve so that selecting filmCount on N
// sibling characters collapses into one call over all N parents instead of
// N independent ones (spec.md §8's S3 scenario).
func (s *Store) batchFilmCount(ctx context.Context, parents []*eod.Object, args []map[string]interface{}) ([]interface{}, error) {
	s.recordFilmCountBatch()
	out := make([]interface{}, len(parents))
	for i, parent := range parents {
		appearsIn, err := parent.Fetch("appearsIn")
		if err != nil {
			return nil, err
		}
		list, _ := appearsIn.([]interface{})
		out[i] = len(list)
	}
	return out, nil
}

// resolveFriends decodes the parent's own global ID back to an internal ID
// (the only field it required) and returns the friend roster as NodeRefs,
// demonstrating that embedding a Node reference in a response never forces
// that Node's own backing fetch (spec.md §3) unless a caller actually
// selects one of the friend's fields.
func (s *Store) resolveFriends(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	idVal, err := parent.Fetch("id")
	if err != nil {
		return nil, err
	}
	_, internalID, err := globalid.Default.Deserialize(idVal.(string))
	if err != nil {
		return nil, err
	}
	c, ok := s.characters[internalID]
	if !ok {
		return nil, fmt.Errorf("starwars: unknown character id %q", internalID)
	}
	out := make([]interface{}, len(c.friends))
	for i, friendID := range c.friends {
		out[i] = eod.NewNodeRef("Character", friendID, nil, s.FetchCharacter)
	}
	return out, nil
}

// resolveSecretBackstory reads "name", a field outside its own
// RequiredSelectionText of "id", so it always fails with UnsetSelection.
func resolveSecretBackstory(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	_, err := parent.Fetch("name")
	return nil, err
}

// resolveAdjustShieldPower mutates the Store's shared counter, returning
// its new value. Two sibling adjustShieldPower selections in one mutation
// operation must observe each other's effect in document order (spec.md
// §8's S5 scenario), which the engine guarantees by resolving a Mutation's
// root fields strictly serially.
func (s *Store) resolveAdjustShieldPower(ctx context.Context, parent *eod.Object, args map[string]interface{}) (interface{}, error) {
	delta := intArg(args["delta"])
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shieldPower += delta
	return s.shieldPower, nil
}

// intArg coerces an Int argument value to int regardless of whether it
// arrived as a Go int (a test constructing ExecutionInput.Variables by hand)
// or a float64 (a JSON transport decoding a request body via
// encoding/json, which has no integer number type).
func intArg(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
