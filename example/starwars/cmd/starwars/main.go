// Command starwars runs the Star Wars demo schema behind a single
// /graphql HTTP endpoint, the same "build a schema, bootstrap resolvers,
// listen" shape the teacher's own example/minimal server follows.
package main

import (
	"log"
	"net/http"

	"github.com/viaductgraph/viaduct/example/starwars"
	"github.com/viaductgraph/viaduct/viaduct"
)

func main() {
	sch, err := starwars.Schema()
	if err != nil {
		log.Fatal(err)
	}

	store := starwars.NewStore()
	eng, err := viaduct.NewBuilder().
		WithSchemaConfiguration(sch, nil).
		WithTenantAPIBootstrapper([]viaduct.TenantAPIBootstrapper{
			starwars.RegisterResolvers(store),
		}).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	http.Handle("/graphql", starwars.Handler(eng))
	log.Println("starwars demo listening on :3030")
	log.Fatal(http.ListenAndServe(":3030", nil))
}
