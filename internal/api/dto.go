package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/autotag/internal/tagging"
	"github.com/starford/autotag/internal/tagservice"
)

// DocumentStatus is the tagging view of a document (aliased from the domain layer).
type DocumentStatus = tagservice.DocumentStatus

// BatchResult summarizes a tag-all or untag-all run (aliased from the domain layer).
type BatchResult = tagservice.BatchResult

// DocumentListResponse wraps the document listing.
type DocumentListResponse struct {
	Documents []DocumentStatus `json:"documents" validate:"required"`
	Total     int              `json:"total" example:"42" validate:"required"`
}

// TagResponse is returned after tagging a single document.
type TagResponse struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Outcome string `json:"outcome" example:"tagged" validate:"required"`
}

// UntagResponse is returned after untagging a single document.
type UntagResponse struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Changed bool   `json:"changed" validate:"required"`
}

// ModelsResponse lists the models offered by the LLM service.
type ModelsResponse struct {
	Models   []string `json:"models" validate:"required"`
	Selected *string  `json:"selected"`
}

// SettingsResponse is the user-editable part of the persisted state.
type SettingsResponse struct {
	SelectedModel   *string  `json:"selectedModel"`
	DefaultTags     []string `json:"defaultTags"`
	AutoAddTags     bool     `json:"autoAddTags"`
	ExcludePatterns []string `json:"excludePatterns"`
	TaggedCount     int      `json:"taggedCount"`
}

// UpdateSettingsRequest is a partial settings update; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	SelectedModel   *string   `json:"selectedModel"`
	DefaultTags     *[]string `json:"defaultTags"`
	AutoAddTags     *bool     `json:"autoAddTags"`
	ExcludePatterns *[]string `json:"excludePatterns"`
}

// Validate validates the settings update.
func (r *UpdateSettingsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DefaultTags, validation.By(func(v any) error {
			tags, _ := v.(*[]string)
			if tags == nil {
				return nil
			}
			for _, tag := range *tags {
				if err := tagging.ValidateTag(tag); err != nil {
					return err
				}
			}
			return nil
		})),
	)
}

// WorkspaceRequest reports the documents open in the editor.
type WorkspaceRequest struct {
	Active string   `json:"active" example:"notes/hello.md"`
	Open   []string `json:"open"`
}

// WorkspaceResponse echoes the tracked workspace.
type WorkspaceResponse struct {
	Active string   `json:"active"`
	Open   []string `json:"open"`
}
