package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/render"
	"github.com/HyxiaoGe/prompthub/internal/repo"
	"github.com/HyxiaoGe/prompthub/internal/semver"
)

// CreatePromptInput is the engine-facing shape of a create request; the API
// layer's DTO maps onto this.
type CreatePromptInput struct {
	ProjectID      string
	Slug           string
	Name           string
	Description    string
	Content        string
	Format         domain.PromptFormat
	TemplateEngine domain.TemplateEngine
	VariableSpec   []domain.VariableDecl
	Tags           []string
	Category       string
	IsShared       bool
}

func (e Engine) CreatePrompt(ctx context.Context, in CreatePromptInput, actorID string) (domain.Prompt, error) {
	if err := validateVariableSpec(in.VariableSpec); err != nil {
		return domain.Prompt{}, err
	}
	if in.TemplateEngine == domain.EngineNone && len(in.VariableSpec) > 0 {
		return domain.Prompt{}, domain.NewValidationError("engine none requires an empty variable_spec", "")
	}

	now := e.nowString()
	id := newID()
	p := domain.Prompt{
		ID: id, ProjectID: in.ProjectID, Slug: normalizeSlug(in.Slug), Name: in.Name, Description: in.Description,
		Content: in.Content, Format: orDefault(in.Format, domain.FormatText), TemplateEngine: orDefaultEngine(in.TemplateEngine),
		VariableSpec: in.VariableSpec, Tags: normalizeTags(in.Tags), Category: in.Category, IsShared: in.IsShared,
		CurrentVersion: "1.0.0", CreatedBy: actorID, CreatedAt: now, UpdatedAt: now,
	}

	v := domain.Version{
		ID: newID(), PromptID: id, Version: "1.0.0", Content: in.Content, VariableSpec: in.VariableSpec,
		Status: domain.StatusPublished, CreatedBy: actorID, CreatedAt: now,
	}
	created, err := e.Repo.CreatePromptWithVersion(ctx, p, v)
	if err != nil {
		if isConflict(err) {
			return domain.Prompt{}, domain.NewConflictError("prompt slug already exists in project", in.Slug)
		}
		return domain.Prompt{}, domain.NewInternalError("create prompt failed", err.Error())
	}
	return created, nil
}

func orDefault(v domain.PromptFormat, def domain.PromptFormat) domain.PromptFormat {
	if v == "" {
		return def
	}
	return v
}

func orDefaultEngine(v domain.TemplateEngine) domain.TemplateEngine {
	if v == "" {
		return domain.EngineA
	}
	return v
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validateVariableSpec(spec []domain.VariableDecl) error {
	for _, v := range spec {
		if v.Name == "" {
			return domain.NewValidationError("variable declaration missing name", "")
		}
		if v.Type == domain.VarEnum && len(v.EnumValues) == 0 {
			return domain.NewValidationError("enum variable requires enum_values", v.Name)
		}
		if v.Type == domain.VarEnum && v.Default != nil {
			if s, ok := v.Default.(string); ok {
				found := false
				for _, allowed := range v.EnumValues {
					if allowed == s {
						found = true
						break
					}
				}
				if !found {
					return domain.NewValidationError("default outside declared enum", v.Name)
				}
			}
		}
	}
	return nil
}

func (e Engine) GetPrompt(ctx context.Context, id string) (domain.Prompt, error) {
	p, err := e.Repo.GetPrompt(ctx, id)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Prompt{}, domain.NewNotFoundError("prompt not found", id)
		}
		return domain.Prompt{}, domain.NewInternalError("get prompt failed", err.Error())
	}
	return p, nil
}

func (e Engine) GetPromptBySlug(ctx context.Context, projectID, slug string) (domain.Prompt, error) {
	p, err := e.Repo.GetPromptByProjectSlug(ctx, projectID, slug)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Prompt{}, domain.NewNotFoundError("prompt not found", slug)
		}
		return domain.Prompt{}, domain.NewInternalError("get prompt failed", err.Error())
	}
	return p, nil
}

// ListPromptsInput mirrors repo.PromptFilters plus pagination; the engine
// enforces the page-size cap. For sort_by=current_version the SQL query pages
// in created_at order and the engine re-sorts each returned page by natural
// semver, so the semver order holds within a page, not across pages.
type ListPromptsInput struct {
	repo.PromptFilters
	Page int
}

func (e Engine) ListPrompts(ctx context.Context, in ListPromptsInput) ([]domain.Prompt, int, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	maxPageSize := e.Config.Pagination.MaxPageSize
	pageSize := in.Limit
	if pageSize <= 0 {
		pageSize = e.Config.Pagination.DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	in.Limit = pageSize
	in.Offset = (page - 1) * pageSize

	items, total, err := e.Repo.ListPrompts(ctx, in.PromptFilters)
	if err != nil {
		return nil, 0, domain.NewInternalError("list prompts failed", err.Error())
	}
	if in.SortBy == "current_version" {
		sortBySemver(items, in.Order)
	}
	return items, total, nil
}

func sortBySemver(items []domain.Prompt, order string) {
	sort.SliceStable(items, func(i, j int) bool {
		vi, erri := semver.Parse(items[i].CurrentVersion)
		vj, errj := semver.Parse(items[j].CurrentVersion)
		if erri != nil || errj != nil {
			return false
		}
		cmp := vi.Compare(vj)
		if strings.EqualFold(order, "asc") {
			return cmp < 0
		}
		return cmp > 0
	})
}

// UpdatePromptInput carries the fields an update may change. UpdatePrompt
// writes every one of them as given (a full replacement), so a zero value
// clears the stored field.
type UpdatePromptInput struct {
	Name           string
	Description    string
	Content        string
	Format         domain.PromptFormat
	TemplateEngine domain.TemplateEngine
	VariableSpec   []domain.VariableDecl
	Tags           []string
	Category       string
	IsShared       bool
}

func (e Engine) UpdatePrompt(ctx context.Context, id string, in UpdatePromptInput) (domain.Prompt, error) {
	if err := validateVariableSpec(in.VariableSpec); err != nil {
		return domain.Prompt{}, err
	}
	existing, err := e.GetPrompt(ctx, id)
	if err != nil {
		return domain.Prompt{}, err
	}
	existing.Name = in.Name
	existing.Description = in.Description
	existing.Content = in.Content
	existing.Format = in.Format
	existing.TemplateEngine = in.TemplateEngine
	existing.VariableSpec = in.VariableSpec
	existing.Tags = normalizeTags(in.Tags)
	existing.Category = in.Category
	existing.IsShared = in.IsShared
	existing.UpdatedAt = e.nowString()

	updated, err := e.Repo.UpdatePrompt(ctx, existing)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Prompt{}, domain.NewNotFoundError("prompt not found", id)
		}
		return domain.Prompt{}, domain.NewInternalError("update prompt failed", err.Error())
	}
	e.Cache.InvalidatePrompt(id)
	return updated, nil
}

func (e Engine) SoftDeletePrompt(ctx context.Context, id string) error {
	if err := e.Repo.SoftDeletePrompt(ctx, id, e.nowString()); err != nil {
		if err == repo.ErrNotFound {
			return domain.NewNotFoundError("prompt not found", id)
		}
		return domain.NewInternalError("delete prompt failed", err.Error())
	}
	e.Cache.InvalidatePrompt(id)
	return nil
}

func (e Engine) Share(ctx context.Context, id string) (domain.Prompt, error) {
	if err := e.Repo.SetPromptShared(ctx, id, true, e.nowString()); err != nil {
		if err == repo.ErrNotFound {
			return domain.Prompt{}, domain.NewNotFoundError("prompt not found", id)
		}
		return domain.Prompt{}, domain.NewInternalError("share prompt failed", err.Error())
	}
	e.Cache.InvalidatePrompt(id)
	return e.GetPrompt(ctx, id)
}

func (e Engine) ListVersions(ctx context.Context, promptID string) ([]domain.Version, error) {
	out, err := e.Repo.ListVersions(ctx, promptID)
	if err != nil {
		return nil, domain.NewInternalError("list versions failed", err.Error())
	}
	return out, nil
}

func (e Engine) GetVersion(ctx context.Context, promptID, version string) (domain.Version, error) {
	v, err := e.Repo.GetVersion(ctx, promptID, version)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Version{}, domain.NewNotFoundError("version not found", version)
		}
		return domain.Version{}, domain.NewInternalError("get version failed", err.Error())
	}
	return v, nil
}

// Publish bumps current_version per the requested kind, inserts the new
// immutable Version row and atomically updates the prompt's
// current_version — both succeed or both fail.
func (e Engine) Publish(ctx context.Context, promptID string, bump semver.Bump, content, changelog string, variableSpec []domain.VariableDecl, actorID string) (domain.Version, error) {
	prompt, err := e.GetPrompt(ctx, promptID)
	if err != nil {
		return domain.Version{}, err
	}
	current, err := semver.Parse(prompt.CurrentVersion)
	if err != nil {
		return domain.Version{}, domain.NewInternalError("corrupt current_version", prompt.CurrentVersion)
	}
	next, err := current.Bump(bump)
	if err != nil {
		return domain.Version{}, err
	}
	if content == "" {
		content = prompt.Content
	}
	if variableSpec == nil {
		variableSpec = prompt.VariableSpec
	}
	if err := validateVariableSpec(variableSpec); err != nil {
		return domain.Version{}, err
	}

	now := e.nowString()
	v := domain.Version{
		ID: newID(), PromptID: promptID, Version: next.String(), Content: content,
		VariableSpec: variableSpec, Changelog: changelog, Status: domain.StatusPublished,
		CreatedBy: actorID, CreatedAt: now,
	}

	published, err := e.Repo.Publish(ctx, v, now)
	if err != nil {
		if isConflict(err) {
			return domain.Version{}, domain.NewConflictError("version already exists", next.String())
		}
		return domain.Version{}, domain.NewInternalError("publish failed", err.Error())
	}
	e.Cache.InvalidatePrompt(promptID)
	return published, nil
}

// Render renders one prompt's current or pinned version against the given
// input variables — the standalone /prompts/{id}/render endpoint, reusing
// the render package directly without going through the resolver or scene
// engine.
func (e Engine) Render(ctx context.Context, promptID, version string, variables map[string]any) (domain.RenderResult, error) {
	prompt, err := e.GetPrompt(ctx, promptID)
	if err != nil {
		return domain.RenderResult{}, err
	}
	if version == "" || version == "latest" {
		version = prompt.CurrentVersion
	}
	v, err := e.GetVersion(ctx, promptID, version)
	if err != nil {
		return domain.RenderResult{}, err
	}

	merged, err := render.Validate(v.VariableSpec, variables)
	if err != nil {
		return domain.RenderResult{}, err
	}
	rendered, err := render.Render(v.Content, prompt.TemplateEngine, merged)
	if err != nil {
		return domain.RenderResult{}, err
	}
	return domain.RenderResult{
		PromptID: promptID, Version: v.Version, RenderedContent: rendered, VariablesUsed: merged,
	}, nil
}
