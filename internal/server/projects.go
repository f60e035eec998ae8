package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/HyxiaoGe/prompthub/internal/engine"
)

type envelopeOutput struct {
	Body envelopeBody
}

func registerProjects(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      "POST",
		Path:        "/projects",
		Summary:     "Create a project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, in *struct {
		Body createProjectBody
	}) (*envelopeOutput, error) {
		p, err := eng.CreateProject(ctx, in.Body.Slug, in.Body.Name, actorIDFromContext(ctx))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      "GET",
		Path:        "/projects/{id}",
		Summary:     "Get a project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		p, err := eng.GetProject(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      "GET",
		Path:        "/projects",
		Summary:     "List projects",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, in *struct{}) (*envelopeOutput, error) {
		items, err := eng.ListProjects(ctx)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: successPaged(items, 1, len(items), len(items))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-prompts",
		Method:      "GET",
		Path:        "/projects/{id}/prompts",
		Summary:     "List prompts in a project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
		listParams
	}) (*envelopeOutput, error) {
		pageSize := in.PageSize
		items, total, err := eng.ListPrompts(ctx, listPromptsInputFrom(in.ID, in.listParams, pageSize))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: successPaged(items, pageOf(in.Page), pageSizeOf(pageSize), total)}, nil
	})
}

func pageOf(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func pageSizeOf(p int) int {
	if p <= 0 {
		return 20
	}
	return p
}
