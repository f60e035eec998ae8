// Package resolver builds the directed-acyclic-graph resolution for a scene
// pipeline: concrete version binding per step, cycle detection, and a stable
// topological order, using a `visiting`/`visited` DFS with typed Go error
// returns for cycle and permission failures.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/repo"
)

// PromptReader is the narrow read surface the resolver needs from the
// Prompt Store; keeping it an interface lets the scene engine and tests
// substitute a fake without dragging in the full repo.
type PromptReader interface {
	GetPrompt(ctx context.Context, id string) (domain.Prompt, error)
	OutEdges(ctx context.Context, promptID string) ([]domain.PromptRef, error)
}

// ResolvedStep is one pipeline step annotated with the concrete version it
// will render against, in topological order.
type ResolvedStep struct {
	Step    domain.Step
	Prompt  domain.Prompt
	Version domain.Version
}

// Plan is the resolver's output: the ordered steps plus the plan-version
// tuple used as part of the resolve cache fingerprint.
type Plan struct {
	Steps       []ResolvedStep
	PlanVersion []PlanVersionEntry
}

// PlanVersionEntry is one (prompt_id, concrete_version) pair in the tuple.
type PlanVersionEntry struct {
	PromptID string
	Version  string
}

// VersionReader fetches a specific or latest published version.
type VersionReader interface {
	GetVersion(ctx context.Context, promptID, version string) (domain.Version, error)
}

// Resolve computes the plan for one scene's pipeline. callerProjectID is the
// project the resolve was invoked from, used for the cross-project
// is_shared gate.
func Resolve(ctx context.Context, scene domain.Scene, prompts PromptReader, versions VersionReader, callerProjectID string) (Plan, error) {
	visiting := map[string]bool{}
	visited := map[string]bool{}
	var order []string
	nodePrompt := map[string]domain.Prompt{}
	nodeVersion := map[string]domain.Version{}

	var visit func(promptID, requestedVersion string, path []string) error
	visit = func(promptID, requestedVersion string, path []string) error {
		if visiting[promptID] {
			return domain.NewCircularDependencyError("circular dependency detected",
				fmt.Sprintf("cycle: %v -> %s", path, promptID))
		}
		if visited[promptID] {
			return nil
		}
		visiting[promptID] = true
		defer func() { visiting[promptID] = false }()

		prompt, err := prompts.GetPrompt(ctx, promptID)
		if err != nil {
			if err == repo.ErrNotFound {
				return domain.NewNotFoundError("prompt not found", promptID)
			}
			return domain.NewInternalError("failed to load prompt", err.Error())
		}
		if prompt.ProjectID != callerProjectID && !prompt.IsShared {
			return domain.NewPermissionDeniedError("cross-project reference to non-shared prompt",
				fmt.Sprintf("prompt %s is not shared", promptID))
		}

		version := requestedVersion
		if version == "" || version == "latest" {
			version = prompt.CurrentVersion
		}
		v, err := versions.GetVersion(ctx, promptID, version)
		if err != nil {
			if err == repo.ErrNotFound {
				return domain.NewNotFoundError("version not found", fmt.Sprintf("%s@%s", promptID, version))
			}
			return domain.NewInternalError("failed to load version", err.Error())
		}

		edges, err := prompts.OutEdges(ctx, promptID)
		if err != nil {
			return domain.NewInternalError("failed to load reference index", err.Error())
		}
		for _, edge := range edges {
			if err := visit(edge.TargetPromptID, edge.PinnedVersion, append(path, promptID)); err != nil {
				return err
			}
		}

		nodePrompt[promptID] = prompt
		nodeVersion[promptID] = v
		visited[promptID] = true
		order = append(order, promptID)
		return nil
	}

	for _, step := range scene.Pipeline.Steps {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		if err := visit(step.PromptRef.PromptID, step.PromptRef.Version, []string{}); err != nil {
			return Plan{}, err
		}
	}

	resolved, err := kahnOrder(scene, nodePrompt, nodeVersion)
	if err != nil {
		return Plan{}, err
	}

	tuple := make([]PlanVersionEntry, 0, len(order))
	sortedIDs := append([]string{}, order...)
	sort.Strings(sortedIDs)
	for _, id := range sortedIDs {
		tuple = append(tuple, PlanVersionEntry{PromptID: id, Version: nodeVersion[id].Version})
	}

	return Plan{Steps: resolved, PlanVersion: tuple}, nil
}

// kahnOrder produces the pipeline's own step order annotated with resolved
// prompt/version — the scene's steps are already author-ordered and do not
// themselves need topological sorting (only the hidden prerequisite nodes
// discovered via the reference index do, and those are fully resolved
// in-memory above before any step renders). No topological sort runs here:
// hidden prerequisites are resolved eagerly via DFS rather than emitted as
// renderable steps, the pipeline's own steps are returned in their declared
// order, and the PlanVersion tuple is ordered by prompt_id alone (the sort
// above).
func kahnOrder(scene domain.Scene, prompts map[string]domain.Prompt, versions map[string]domain.Version) ([]ResolvedStep, error) {
	out := make([]ResolvedStep, 0, len(scene.Pipeline.Steps))
	for _, step := range scene.Pipeline.Steps {
		p, ok := prompts[step.PromptRef.PromptID]
		if !ok {
			return nil, domain.NewNotFoundError("prompt not found", step.PromptRef.PromptID)
		}
		v, ok := versions[step.PromptRef.PromptID]
		if !ok {
			return nil, domain.NewNotFoundError("version not found", step.PromptRef.PromptID)
		}
		out = append(out, ResolvedStep{Step: step, Prompt: p, Version: v})
	}
	return out, nil
}

// DependencyGraph builds the visualization payload for GET
// /scenes/{id}/dependencies, combining the scene's pipeline-derived edges
// with the reference index's prompt_refs rows.
func DependencyGraph(ctx context.Context, scene domain.Scene, prompts PromptReader) (domain.DependencyGraph, error) {
	graph := domain.DependencyGraph{}
	seen := map[string]bool{}
	addNode := func(p domain.Prompt) {
		if seen[p.ID] {
			return
		}
		seen[p.ID] = true
		graph.Nodes = append(graph.Nodes, domain.DependencyNode{
			ID: p.ID, Name: p.Name, ProjectID: p.ProjectID, Version: p.CurrentVersion, IsShared: p.IsShared,
		})
	}

	for _, step := range scene.Pipeline.Steps {
		p, err := prompts.GetPrompt(ctx, step.PromptRef.PromptID)
		if err != nil {
			continue
		}
		addNode(p)
		graph.Edges = append(graph.Edges, domain.DependencyEdge{
			Source: scene.ID, Target: p.ID, StepID: step.ID, RefType: "pipeline",
		})

		edges, err := prompts.OutEdges(ctx, p.ID)
		if err != nil {
			continue
		}
		for _, edge := range edges {
			target, err := prompts.GetPrompt(ctx, edge.TargetPromptID)
			if err != nil {
				continue
			}
			addNode(target)
			graph.Edges = append(graph.Edges, domain.DependencyEdge{
				Source: p.ID, Target: target.ID, RefType: string(edge.RefType),
			})
		}
	}
	return graph, nil
}
