package engine

import (
	"context"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/repo"
	"github.com/HyxiaoGe/prompthub/internal/resolver"
)

// CreateSceneInput is the engine-facing shape of a scene create/update
// request; the API layer's DTO maps onto this.
type CreateSceneInput struct {
	ProjectID     string
	Slug          string
	Name          string
	Description   string
	Pipeline      domain.Pipeline
	MergeStrategy domain.MergeStrategy
	Separator     string
	OutputFormat  string
}

func (e Engine) CreateScene(ctx context.Context, in CreateSceneInput, actorID string) (domain.Scene, error) {
	if err := validatePipeline(in.Pipeline); err != nil {
		return domain.Scene{}, err
	}
	now := e.nowString()
	s := domain.Scene{
		ID: newID(), ProjectID: in.ProjectID, Slug: normalizeSlug(in.Slug), Name: in.Name, Description: in.Description,
		Pipeline: in.Pipeline, MergeStrategy: orDefaultMerge(in.MergeStrategy), Separator: orDefaultSeparator(in.Separator),
		OutputFormat: in.OutputFormat, CreatedBy: actorID, CreatedAt: now, UpdatedAt: now,
	}

	refs := derivePromptRefs(s)
	created, err := e.Repo.CreateSceneWithRefs(ctx, s, refs)
	if err != nil {
		if isConflict(err) {
			return domain.Scene{}, domain.NewConflictError("scene slug already exists in project", in.Slug)
		}
		return domain.Scene{}, domain.NewInternalError("create scene failed", err.Error())
	}
	return created, nil
}

func validatePipeline(p domain.Pipeline) error {
	if len(p.Steps) == 0 {
		return domain.NewValidationError("pipeline must have at least one step", "")
	}
	seen := map[string]bool{}
	for _, step := range p.Steps {
		if step.ID == "" {
			return domain.NewValidationError("step missing id", "")
		}
		if seen[step.ID] {
			return domain.NewValidationError("duplicate step id", step.ID)
		}
		seen[step.ID] = true
		if step.PromptRef.PromptID == "" {
			return domain.NewValidationError("step missing prompt_ref", step.ID)
		}
	}
	return nil
}

func orDefaultMerge(m domain.MergeStrategy) domain.MergeStrategy {
	if m == "" {
		return domain.MergeConcat
	}
	return m
}

func orDefaultSeparator(s string) string {
	if s == "" {
		return "\n\n"
	}
	return s
}

// derivePromptRefs materializes the Reference Index rows implied by a
// scene's pipeline: one edge per step, source_scene_id/source_step_id set,
// no pinned_version beyond what the step itself declares.
func derivePromptRefs(s domain.Scene) []domain.PromptRef {
	refs := make([]domain.PromptRef, 0, len(s.Pipeline.Steps))
	now := s.UpdatedAt
	for _, step := range s.Pipeline.Steps {
		refs = append(refs, domain.PromptRef{
			ID: newID(), SourceSceneID: s.ID, SourceStepID: step.ID, TargetPromptID: step.PromptRef.PromptID,
			SourceProjectID: s.ProjectID, TargetProjectID: s.ProjectID, RefType: domain.RefComposes,
			PinnedVersion: step.PromptRef.Version, OverrideConfig: step.Variables, CreatedAt: now,
		})
	}
	return refs
}

func (e Engine) GetScene(ctx context.Context, id string) (domain.Scene, error) {
	s, err := e.Repo.GetScene(ctx, id)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Scene{}, domain.NewNotFoundError("scene not found", id)
		}
		return domain.Scene{}, domain.NewInternalError("get scene failed", err.Error())
	}
	return s, nil
}

func (e Engine) GetSceneBySlug(ctx context.Context, projectID, slug string) (domain.Scene, error) {
	s, err := e.Repo.GetSceneByProjectSlug(ctx, projectID, slug)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Scene{}, domain.NewNotFoundError("scene not found", slug)
		}
		return domain.Scene{}, domain.NewInternalError("get scene failed", err.Error())
	}
	return s, nil
}

func (e Engine) ListScenes(ctx context.Context, projectID string, offset, limit int) ([]domain.Scene, int, error) {
	if limit <= 0 || limit > e.Config.Pagination.MaxPageSize {
		limit = e.Config.Pagination.DefaultPageSize
	}
	out, total, err := e.Repo.ListScenes(ctx, projectID, offset, limit)
	if err != nil {
		return nil, 0, domain.NewInternalError("list scenes failed", err.Error())
	}
	return out, total, nil
}

func (e Engine) UpdateScene(ctx context.Context, id string, in CreateSceneInput) (domain.Scene, error) {
	if err := validatePipeline(in.Pipeline); err != nil {
		return domain.Scene{}, err
	}
	existing, err := e.GetScene(ctx, id)
	if err != nil {
		return domain.Scene{}, err
	}
	existing.Name = in.Name
	existing.Description = in.Description
	existing.Pipeline = in.Pipeline
	existing.MergeStrategy = orDefaultMerge(in.MergeStrategy)
	existing.Separator = orDefaultSeparator(in.Separator)
	existing.OutputFormat = in.OutputFormat
	existing.UpdatedAt = e.nowString()

	refs := derivePromptRefs(existing)
	updated, err := e.Repo.UpdateSceneWithRefs(ctx, existing, refs)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Scene{}, domain.NewNotFoundError("scene not found", id)
		}
		return domain.Scene{}, domain.NewInternalError("update scene failed", err.Error())
	}
	e.Cache.InvalidateScene(id)
	return updated, nil
}

func (e Engine) DeleteScene(ctx context.Context, id string) error {
	if err := e.Repo.DeleteScene(ctx, id); err != nil {
		if err == repo.ErrNotFound {
			return domain.NewNotFoundError("scene not found", id)
		}
		return domain.NewInternalError("delete scene failed", err.Error())
	}
	e.Cache.InvalidateScene(id)
	return nil
}

// DependencyGraph assembles the visualization payload for GET
// /scenes/{id}/dependencies.
func (e Engine) DependencyGraph(ctx context.Context, sceneID string) (domain.DependencyGraph, error) {
	scene, err := e.GetScene(ctx, sceneID)
	if err != nil {
		return domain.DependencyGraph{}, err
	}
	graph, err := resolver.DependencyGraph(ctx, scene, e.Repo)
	if err != nil {
		return domain.DependencyGraph{}, domain.NewInternalError("dependency graph failed", err.Error())
	}
	return graph, nil
}
