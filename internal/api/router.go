package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/tagservice"
	"github.com/starford/autotag/internal/workspace"
)

// Deps are the collaborators the API routes need.
type Deps struct {
	Service   *tagservice.Service
	Workspace *workspace.Tracker
	// OnSettingsChanged, if set, is called with the new state after PUT /settings.
	OnSettingsChanged func(*models.State)
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)
	r.Post("/documents/tag/*", h.TagDocument)
	r.Post("/documents/untag/*", h.UntagDocument)

	// Batches.
	r.Post("/tag-all", h.TagAll)
	r.Post("/untag-all", h.UntagAll)

	// Models and settings.
	r.Get("/models", h.Models)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Editor workspace.
	r.Get("/workspace", h.GetWorkspace)
	r.Put("/workspace", h.UpdateWorkspace)

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
