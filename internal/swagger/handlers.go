package swagger

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

const docPath = "/swagger/doc.json"

// ServeSwaggerJSON serves the OpenAPI document as JSON.
func ServeSwaggerJSON(spec *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS off for docs
		_ = json.NewEncoder(w).Encode(spec)
	}
}

// Mount registers the JSON document and the Swagger UI on r.
func Mount(r chi.Router, spec *openapi3.T) {
	r.Get(docPath, ServeSwaggerJSON(spec))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docPath)))
}
