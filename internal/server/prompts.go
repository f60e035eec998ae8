package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/HyxiaoGe/prompthub/internal/engine"
	"github.com/HyxiaoGe/prompthub/internal/repo"
	"github.com/HyxiaoGe/prompthub/internal/semver"
)

func listPromptsInputFrom(projectID string, lp listParams, pageSize int) engine.ListPromptsInput {
	return engine.ListPromptsInput{
		PromptFilters: repo.PromptFilters{
			ProjectID: projectID,
			SortBy:    lp.SortBy,
			Order:     lp.Order,
			Limit:     pageSize,
		},
		Page: pageOf(lp.Page),
	}
}

func registerPrompts(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-prompt",
		Method:      "POST",
		Path:        "/prompts",
		Summary:     "Create a prompt",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		Body createPromptBody
	}) (*envelopeOutput, error) {
		p, err := eng.CreatePrompt(ctx, engine.CreatePromptInput{
			ProjectID: in.Body.ProjectID, Slug: in.Body.Slug, Name: in.Body.Name, Description: in.Body.Description,
			Content: in.Body.Content, Format: in.Body.Format, TemplateEngine: in.Body.TemplateEngine,
			VariableSpec: in.Body.VariableSpec, Tags: in.Body.Tags, Category: in.Body.Category, IsShared: in.Body.IsShared,
		}, actorIDFromContext(ctx))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-prompt",
		Method:      "GET",
		Path:        "/prompts/{id}",
		Summary:     "Get a prompt",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		p, err := eng.GetPrompt(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-prompts",
		Method:      "GET",
		Path:        "/prompts",
		Summary:     "List prompts",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		listParams
		ProjectID string `query:"project_id"`
		Category  string `query:"category"`
		Search    string `query:"search"`
	}) (*envelopeOutput, error) {
		li := listPromptsInputFrom(in.ProjectID, in.listParams, in.PageSize)
		li.Category = in.Category
		li.Search = in.Search
		items, total, err := eng.ListPrompts(ctx, li)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: successPaged(items, pageOf(in.Page), pageSizeOf(in.PageSize), total)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-prompt",
		Method:      "PUT",
		Path:        "/prompts/{id}",
		Summary:     "Update a prompt",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body updatePromptBody
	}) (*envelopeOutput, error) {
		p, err := eng.UpdatePrompt(ctx, in.ID, engine.UpdatePromptInput{
			Name: in.Body.Name, Description: in.Body.Description, Content: in.Body.Content, Format: in.Body.Format,
			TemplateEngine: in.Body.TemplateEngine, VariableSpec: in.Body.VariableSpec, Tags: in.Body.Tags,
			Category: in.Body.Category, IsShared: in.Body.IsShared,
		})
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-prompt",
		Method:        "DELETE",
		Path:          "/prompts/{id}",
		Summary:       "Soft-delete a prompt",
		Tags:          []string{"prompts"},
		DefaultStatus: 200,
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		if err := eng.SoftDeletePrompt(ctx, in.ID); err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(nil)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-prompt-versions",
		Method:      "GET",
		Path:        "/prompts/{id}/versions",
		Summary:     "List a prompt's version history",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		versions, err := eng.ListVersions(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(versions)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-prompt-version",
		Method:      "GET",
		Path:        "/prompts/{id}/versions/{version}",
		Summary:     "Fetch a specific version",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID      string `path:"id"`
		Version string `path:"version"`
	}) (*envelopeOutput, error) {
		v, err := eng.GetVersion(ctx, in.ID, in.Version)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-prompt",
		Method:      "POST",
		Path:        "/prompts/{id}/publish",
		Summary:     "Bump and publish a new version",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body publishBody
	}) (*envelopeOutput, error) {
		bump := semver.Bump(in.Body.Bump)
		if bump == "" {
			bump = semver.BumpPatch
		}
		v, err := eng.Publish(ctx, in.ID, bump, in.Body.Content, in.Body.Changelog, in.Body.VariableSpec, actorIDFromContext(ctx))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-prompt",
		Method:      "POST",
		Path:        "/prompts/{id}/render",
		Summary:     "Render a single prompt with variables",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body renderBody
	}) (*envelopeOutput, error) {
		result, err := eng.Render(ctx, in.ID, in.Body.Version, in.Body.Variables)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "share-prompt",
		Method:      "POST",
		Path:        "/prompts/{id}/share",
		Summary:     "Mark a prompt as shared",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		p, err := eng.Share(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})
}
