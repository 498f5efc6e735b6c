// Package starwars is a worked example tenant API: a small Character/Film
// schema wired against the engine end to end, covering the derived-field,
// batching, node-fetch, mutation-ordering, and null-propagation behaviors
// exercised individually elsewhere in this module's test suites. It also
// ships a thin net/http handler and a main showing how a transport plugs
// into an Engine without the engine package itself ever importing net/http.
package starwars

import "github.com/viaductgraph/viaduct/schema"

// Schema builds the Star Wars demo schema: two Node types (Character, Film)
// related by an enum of the three original-trilogy episodes, a root Query
// with a handful of resolver fields, and a root Mutation with one field used
// to demonstrate strict mutation ordering.
func Schema() (*schema.Schema, error) {
	b := schema.NewBuilder()

	b.AddEnum(&schema.Enum{
		Name:   "Episode",
		Values: []string{"NEWHOPE", "EMPIRE", "JEDI"},
	})

	b.AddObject(&schema.Object{
		Name:   "Film",
		IsNode: true,
		Fields: map[string]*schema.Field{
			"id":      {Name: "id", Type: schema.NonNull(schema.ScalarID)},
			"title":   {Name: "title", Type: schema.NonNull(schema.ScalarString)},
			"episode": {Name: "episode", Type: schema.NonNull("Episode")},
		},
		FieldOrder: []string{"id", "title", "episode"},
	})

	b.AddObject(&schema.Object{
		Name:   "Character",
		IsNode: true,
		Fields: map[string]*schema.Field{
			"id":        {Name: "id", Type: schema.NonNull(schema.ScalarID)},
			"name":      {Name: "name", Type: schema.NonNull(schema.ScalarString)},
			"homeworld": {Name: "homeworld", Type: schema.Nullable(schema.ScalarString)},
			"appearsIn": {Name: "appearsIn", Type: schema.NonNull("Episode").List(false)},
			"displayName": {
				Name:       "displayName",
				Type:       schema.NonNull(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			// greeting requires displayName rather than name/homeworld
			// directly: displayName is itself @resolver-backed, so greeting
			// demonstrates a resolver depending on another resolver's output
			// rather than only on plain backing data.
			"greeting": {
				Name:       "greeting",
				Type:       schema.NonNull(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			"filmCount": {
				Name:       "filmCount",
				Type:       schema.NonNull(schema.ScalarInt),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			"friends": {
				Name:       "friends",
				Type:       schema.NonNull("Character").List(false),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			// secretBackstory deliberately reads outside its own required
			// selection set, the same way the archetypal Star Wars demo
			// schema's secretBackstory field always panics: both exist purely
			// to give a field that can never succeed a permanent home,
			// demonstrating the engine's required-selection enforcement
			// (UnsetSelection) rather than any particular application bug.
			"secretBackstory": {
				Name:       "secretBackstory",
				Type:       schema.Nullable(schema.ScalarString),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"id", "name", "homeworld", "appearsIn", "displayName", "greeting", "filmCount", "friends", "secretBackstory"},
	})

	b.AddObject(&schema.Object{
		Name:        "Query",
		IsRootQuery: true,
		Fields: map[string]*schema.Field{
			"hero": {
				Name:       "hero",
				Type:       schema.Nullable("Character"),
				Args:       []*schema.ArgumentDef{{Name: "episode", Type: schema.Nullable("Episode")}},
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			"characters": {
				Name:       "characters",
				Type:       schema.NonNull("Character").List(false),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			"films": {
				Name:       "films",
				Type:       schema.NonNull("Film").List(false),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
			// deathStarPlans always fails, giving the response root a clean,
			// permanent way to exercise non-null error propagation: selecting
			// it alone collapses the entire response's data to null.
			"deathStarPlans": {
				Name:       "deathStarPlans",
				Type:       schema.NonNull(schema.ScalarInt),
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"hero", "characters", "films", "deathStarPlans"},
	})

	b.AddObject(&schema.Object{
		Name:           "Mutation",
		IsRootMutation: true,
		Fields: map[string]*schema.Field{
			"adjustShieldPower": {
				Name:       "adjustShieldPower",
				Type:       schema.NonNull(schema.ScalarInt),
				Args:       []*schema.ArgumentDef{{Name: "delta", Type: schema.NonNull(schema.ScalarInt)}},
				Directives: []*schema.AppliedDirective{{Name: "resolver"}},
			},
		},
		FieldOrder: []string{"adjustShieldPower"},
	})

	return b.Build()
}
