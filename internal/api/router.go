package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ManagePrefix is where the authenticated management routes are mounted.
const ManagePrefix = "/manage"

// NewRouter combines the public question routes with the management
// routes under ManagePrefix.
func NewRouter(asker Asker, deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Mount(ManagePrefix, NewAppHandler(deps))
	r.Mount("/", NewQueryHandler(asker))
	return r
}
