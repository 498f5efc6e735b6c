package starwars

import (
	"encoding/json"
	"net/http"

	"github.com/viaductgraph/viaduct/viaduct"
)

// httpPostBody is the request shape a GraphQL-over-HTTP POST body takes.
type httpPostBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// httpResponse is the response shape written back: data alongside a flat
// list of sanitized error messages, mirroring the minimal wire contract a
// GraphQL-over-HTTP transport needs without committing to the full
// response-path/extensions shape ExecutionResult carries internally.
type httpResponse struct {
	Data   interface{} `json:"data"`
	Errors []string    `json:"errors,omitempty"`
}

// Handler adapts an *viaduct.Engine to net/http: decode a POST body into an
// ExecutionInput, call Execute, and write the result back as JSON. The
// engine package itself has no knowledge of net/http or JSON; this handler
// is the thin transport layer a host wires in front of it, the same
// separation the teacher keeps between its core executor and its own HTTP
// handler.
func Handler(eng *viaduct.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "request must be a POST", http.StatusMethodNotAllowed)
			return
		}
		var body httpPostBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result := eng.Execute(r.Context(), viaduct.ExecutionInput{
			Document:      body.Query,
			OperationName: body.OperationName,
			Variables:     body.Variables,
			RootData:      map[string]interface{}{},
		})

		resp := httpResponse{Data: result.Data}
		for _, e := range result.Errors {
			resp.Errors = append(resp.Errors, e.Message)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
