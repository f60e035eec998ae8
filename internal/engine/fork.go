package engine

import (
	"context"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// Fork copies a shared prompt into a target project as a brand-new prompt:
// new id, newSlug (the source's slug when newSlug is empty), is_shared reset
// to false, current_version reset to
// "1.0.0" — a copy, never a link, per the decided reading of the open
// question in the fork semantics (a caller that later publishes a new
// version of the shared original must not perturb prior forks).
func (e Engine) Fork(ctx context.Context, sourceID, targetProjectID, newSlug, actorID string) (domain.Prompt, error) {
	source, err := e.GetPrompt(ctx, sourceID)
	if err != nil {
		return domain.Prompt{}, err
	}
	if !source.IsShared {
		return domain.Prompt{}, domain.NewPermissionDeniedError("prompt is not shared", sourceID)
	}
	if newSlug == "" {
		newSlug = source.Slug
	}

	return e.CreatePrompt(ctx, CreatePromptInput{
		ProjectID: targetProjectID, Slug: newSlug, Name: source.Name, Description: source.Description,
		Content: source.Content, Format: source.Format, TemplateEngine: source.TemplateEngine,
		VariableSpec: source.VariableSpec, Tags: source.Tags, Category: source.Category, IsShared: false,
	}, actorID)
}

// ListShared lists prompts marked is_shared=true across all projects, the
// shared-prompt browse surface fork sources from.
func (e Engine) ListShared(ctx context.Context, page, limit int) ([]domain.Prompt, int, error) {
	shared := true
	in := ListPromptsInput{Page: page}
	in.IsShared = &shared
	in.Limit = limit
	return e.ListPrompts(ctx, in)
}
