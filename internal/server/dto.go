package server

import (
	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// Request bodies. Responses reuse the domain types directly (they already
// carry the json tags the API needs) rather than duplicating every field
// into a parallel DTO.

type createProjectBody struct {
	Slug string `json:"slug" minLength:"1" maxLength:"64"`
	Name string `json:"name" minLength:"1" maxLength:"200"`
}

type createPromptBody struct {
	ProjectID      string                `json:"project_id"`
	Slug           string                `json:"slug" minLength:"1" maxLength:"64"`
	Name           string                `json:"name" minLength:"1" maxLength:"200"`
	Description    string                `json:"description,omitempty"`
	Content        string                `json:"content"`
	Format         domain.PromptFormat   `json:"format,omitempty"`
	TemplateEngine domain.TemplateEngine `json:"template_engine,omitempty"`
	VariableSpec   []domain.VariableDecl `json:"variable_spec,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	Category       string                `json:"category,omitempty"`
	IsShared       bool                  `json:"is_shared,omitempty"`
}

type updatePromptBody struct {
	Name           string                `json:"name" minLength:"1" maxLength:"200"`
	Description    string                `json:"description,omitempty"`
	Content        string                `json:"content"`
	Format         domain.PromptFormat   `json:"format,omitempty"`
	TemplateEngine domain.TemplateEngine `json:"template_engine,omitempty"`
	VariableSpec   []domain.VariableDecl `json:"variable_spec,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	Category       string                `json:"category,omitempty"`
	IsShared       bool                  `json:"is_shared,omitempty"`
}

type publishBody struct {
	Bump         string                `json:"bump" enum:"patch,minor,major"`
	Content      string                `json:"content,omitempty"`
	Changelog    string                `json:"changelog,omitempty"`
	VariableSpec []domain.VariableDecl `json:"variable_spec,omitempty"`
}

type renderBody struct {
	Version   string         `json:"version,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

type createSceneBody struct {
	ProjectID     string              `json:"project_id"`
	Slug          string              `json:"slug" minLength:"1" maxLength:"64"`
	Name          string              `json:"name" minLength:"1" maxLength:"200"`
	Description   string              `json:"description,omitempty"`
	Pipeline      domain.Pipeline     `json:"pipeline"`
	MergeStrategy domain.MergeStrategy `json:"merge_strategy,omitempty"`
	Separator     string              `json:"separator,omitempty"`
	OutputFormat  string              `json:"output_format,omitempty"`
}

type resolveBody struct {
	Variables map[string]any `json:"variables,omitempty"`
}

type forkBody struct {
	TargetProjectID string `json:"target_project_id"`
	Slug            string `json:"slug,omitempty"`
}

// listParams is embedded into list operation inputs for the shared
// page/page_size/sort_by/order query parameters.
type listParams struct {
	Page     int    `query:"page" default:"1"`
	PageSize int    `query:"page_size"`
	SortBy   string `query:"sort_by"`
	Order    string `query:"order"`
}
