package starwars

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viaductgraph/viaduct/globalid"
)

// characterRecord is one character's backing data, keyed by the same
// internal IDs the classic Star Wars demo schema uses (humans in the 1000s,
// droids in the 2000s).
type characterRecord struct {
	id        string
	name      string
	homeworld string // "" means unknown/unset, stored as a nil field value
	appearsIn []string
	friends   []string
}

type filmRecord struct {
	id      string
	title   string
	episode string
}

// Store holds the demo's fixed in-memory roster plus the one piece of
// mutable state (shieldPower) adjustShieldPower exercises to demonstrate
// strict mutation ordering.
type Store struct {
	characters map[string]*characterRecord
	films      map[string]*filmRecord

	mu          sync.Mutex
	shieldPower int

	batchMu          sync.Mutex
	filmCountBatches int
}

// NewStore returns a Store pre-populated with the original trilogy's
// principal cast and films.
func NewStore() *Store {
	characters := map[string]*characterRecord{
		"1000": {id: "1000", name: "Luke Skywalker", homeworld: "Tatooine", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1002", "1003", "2000", "2001"}},
		"1001": {id: "1001", name: "Darth Vader", homeworld: "Tatooine", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1004"}},
		"1002": {id: "1002", name: "Han Solo", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1000", "1003", "2001"}},
		"1003": {id: "1003", name: "Leia Organa", homeworld: "Alderaan", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1000", "1002", "2000", "2001"}},
		"1004": {id: "1004", name: "Wilhuff Tarkin", appearsIn: []string{"NEWHOPE"}, friends: []string{"1001"}},
		"2000": {id: "2000", name: "C-3PO", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1000", "1002", "1003", "2001"}},
		"2001": {id: "2001", name: "R2-D2", appearsIn: []string{"NEWHOPE", "EMPIRE", "JEDI"}, friends: []string{"1000", "1002", "1003"}},
	}
	films := map[string]*filmRecord{
		"1": {id: "1", title: "A New Hope", episode: "NEWHOPE"},
		"2": {id: "2", title: "The Empire Strikes Back", episode: "EMPIRE"},
		"3": {id: "3", title: "Return of the Jedi", episode: "JEDI"},
	}
	return &Store{characters: characters, films: films}
}

// characterData renders a characterRecord as the map[string]interface{}
// shape both NodeResolver.Fetch and the root Query resolvers hand to
// eod.New: "id" carries the serialized GlobalID rather than the bare
// internal ID, per the Node contract's convention that a Node's own id
// field round-trips through node(id:).
func characterData(c *characterRecord) map[string]interface{} {
	var homeworld interface{}
	if c.homeworld != "" {
		homeworld = c.homeworld
	}
	appearsIn := make([]interface{}, len(c.appearsIn))
	for i, e := range c.appearsIn {
		appearsIn[i] = e
	}
	return map[string]interface{}{
		"id":        globalid.Default.Serialize("Character", c.id),
		"name":      c.name,
		"homeworld": homeworld,
		"appearsIn": appearsIn,
	}
}

func filmData(f *filmRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":      globalid.Default.Serialize("Film", f.id),
		"title":   f.title,
		"episode": f.episode,
	}
}

// FetchCharacter is the Character NodeResolver.Fetch implementation.
func (s *Store) FetchCharacter(ctx context.Context, internalID string) (map[string]interface{}, error) {
	c, ok := s.characters[internalID]
	if !ok {
		return nil, fmt.Errorf("starwars: unknown character id %q", internalID)
	}
	return characterData(c), nil
}

// FetchFilm is the Film NodeResolver.Fetch implementation.
func (s *Store) FetchFilm(ctx context.Context, internalID string) (map[string]interface{}, error) {
	f, ok := s.films[internalID]
	if !ok {
		return nil, fmt.Errorf("starwars: unknown film id %q", internalID)
	}
	return filmData(f), nil
}

// sortedCharacterIDs returns every character's internal ID in a fixed,
// deterministic order, so characters: [Character!]! produces the same list
// shape on every call.
func (s *Store) sortedCharacterIDs() []string {
	ids := make([]string, 0, len(s.characters))
	for id := range s.characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) sortedFilmIDs() []string {
	ids := make([]string, 0, len(s.films))
	for id := range s.films {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) heroForEpisode(episode string) string {
	switch episode {
	case "EMPIRE":
		return "1000" // Luke Skywalker
	case "JEDI":
		return "1003" // Leia Organa
	default:
		return "2001" // R2-D2
	}
}

// FilmCountBatchCalls reports how many times the filmCount BatchResolveFunc
// has actually been invoked, letting a test assert that N sibling
// Character.filmCount selections collapsed into a single batch rather than
// N independent calls (spec.md §8's S3 scenario).
func (s *Store) FilmCountBatchCalls() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.filmCountBatches
}

func (s *Store) recordFilmCountBatch() {
	s.batchMu.Lock()
	s.filmCountBatches++
	s.batchMu.Unlock()
}

// ShieldPower returns the mutation demo's current counter value.
func (s *Store) ShieldPower() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shieldPower
}
