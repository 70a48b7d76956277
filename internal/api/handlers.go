package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/tagservice"
	"github.com/starford/autotag/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	svc        *tagservice.Service
	ws         *workspace.Tracker
	onSettings func(*models.State)
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	ws := d.Workspace
	if ws == nil {
		ws = workspace.New(nil)
	}
	return &Handler{svc: d.Service, ws: ws, onSettings: d.OnSettingsChanged}
}

// docPath extracts the document path from the wildcard URL segment.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConcurrentEdit):
		writeJSON(w, http.StatusConflict, errorBody("document changed during tagging"))
	case errors.Is(err, apperr.ErrNoModelSelected):
		writeJSON(w, http.StatusPreconditionFailed, errorBody("no model selected"))
	case errors.Is(err, apperr.ErrEmptyContent):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("document is empty"))
	case errors.Is(err, apperr.ErrNetwork):
		writeJSON(w, http.StatusBadGateway, errorBody("language model unavailable"))
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with their tagging state
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments()
	if err != nil {
		writeError(w, "list documents", "", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get the tagging state of one document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentStatus
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	st, err := h.svc.Status(path)
	if err != nil {
		writeError(w, "get document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// TagDocument handles POST /api/documents/tag/*.
//
//	@Summary		Tag one document, ignoring exclusion patterns
//	@Tags			tagging
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	TagResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		412		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/tag/{path} [post]
func (h *Handler) TagDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	out, err := h.svc.TagDocument(r.Context(), path)
	if err != nil {
		writeError(w, "tag document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, TagResponse{Path: path, Outcome: string(out)})
}

// UntagDocument handles POST /api/documents/untag/*.
//
//	@Summary		Remove tags and summary block from one document
//	@Tags			tagging
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	UntagResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/untag/{path} [post]
func (h *Handler) UntagDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	changed, err := h.svc.UntagDocument(r.Context(), path)
	if err != nil {
		writeError(w, "untag document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, UntagResponse{Path: path, Changed: changed})
}

// TagAll handles POST /api/tag-all.
//
//	@Summary		Tag every eligible document
//	@Tags			tagging
//	@Produce		json
//	@Success		200	{object}	BatchResult
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tag-all [post]
func (h *Handler) TagAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.TagAll(r.Context())
	if err != nil {
		writeError(w, "tag all", "", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UntagAll handles POST /api/untag-all.
//
//	@Summary		Untag every document
//	@Tags			tagging
//	@Produce		json
//	@Success		200	{object}	BatchResult
//	@Security		BearerAuth
//	@Router			/untag-all [post]
func (h *Handler) UntagAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.UntagAll(r.Context())
	if err != nil {
		writeError(w, "untag all", "", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Models handles GET /api/models.
//
//	@Summary		List models offered by the language model service
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	ModelsResponse
//	@Security		BearerAuth
//	@Router			/models [get]
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		Models:   h.svc.Models(r.Context()),
		Selected: h.svc.State().Snapshot().SelectedModel,
	})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get tagging settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse(h.svc.State().Snapshot()))
}

// UpdateSettings handles PUT /api/settings.
//
//	@Summary		Update tagging settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateSettingsRequest	true	"Fields to change"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	h.svc.State().Update(func(s *models.State) {
		if req.SelectedModel != nil {
			if m := strings.TrimSpace(*req.SelectedModel); m != "" {
				s.SelectedModel = &m
			} else {
				s.SelectedModel = nil
			}
		}
		if req.DefaultTags != nil {
			s.DefaultTags = *req.DefaultTags
		}
		if req.AutoAddTags != nil {
			s.AutoAddTags = *req.AutoAddTags
		}
		if req.ExcludePatterns != nil {
			s.ExcludePatterns = *req.ExcludePatterns
		}
	})

	snap := h.svc.State().Snapshot()
	if h.onSettings != nil {
		h.onSettings(snap)
	}
	writeJSON(w, http.StatusOK, settingsResponse(snap))
}

// GetWorkspace handles GET /api/workspace.
//
//	@Summary		Get the tracked editor workspace
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	WorkspaceResponse
//	@Security		BearerAuth
//	@Router			/workspace [get]
func (h *Handler) GetWorkspace(w http.ResponseWriter, _ *http.Request) {
	active, open := h.ws.Snapshot()
	writeJSON(w, http.StatusOK, WorkspaceResponse{Active: active, Open: open})
}

// UpdateWorkspace handles PUT /api/workspace.
//
//	@Summary		Report the active and open documents of the editor
//	@Tags			workspace
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WorkspaceRequest	true	"Editor state"
//	@Success		200		{object}	WorkspaceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace [put]
func (h *Handler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req WorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	// Open set first so the closed document is no longer reported open.
	h.ws.SetOpen(req.Open)
	h.ws.SetActive(req.Active)
	active, open := h.ws.Snapshot()
	writeJSON(w, http.StatusOK, WorkspaceResponse{Active: active, Open: open})
}

func settingsResponse(s *models.State) SettingsResponse {
	return SettingsResponse{
		SelectedModel:   s.SelectedModel,
		DefaultTags:     nonNil(s.DefaultTags),
		AutoAddTags:     s.AutoAddTags,
		ExcludePatterns: nonNil(s.ExcludePatterns),
		TaggedCount:     len(s.TaggedFiles),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
