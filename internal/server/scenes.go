package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/HyxiaoGe/prompthub/internal/engine"
)

func registerScenes(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-scene",
		Method:      "POST",
		Path:        "/scenes",
		Summary:     "Create a scene",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		Body createSceneBody
	}) (*envelopeOutput, error) {
		s, err := eng.CreateScene(ctx, sceneInputFrom(in.Body), actorIDFromContext(ctx))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-scene",
		Method:      "GET",
		Path:        "/scenes/{id}",
		Summary:     "Get a scene",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		s, err := eng.GetScene(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-scenes",
		Method:      "GET",
		Path:        "/scenes",
		Summary:     "List scenes in a project",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		listParams
		ProjectID string `query:"project_id"`
	}) (*envelopeOutput, error) {
		pageSize := pageSizeOf(in.PageSize)
		offset := (pageOf(in.Page) - 1) * pageSize
		items, total, err := eng.ListScenes(ctx, in.ProjectID, offset, pageSize)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: successPaged(items, pageOf(in.Page), pageSize, total)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-scene",
		Method:      "PUT",
		Path:        "/scenes/{id}",
		Summary:     "Update a scene",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body createSceneBody
	}) (*envelopeOutput, error) {
		s, err := eng.UpdateScene(ctx, in.ID, sceneInputFrom(in.Body))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-scene",
		Method:        "DELETE",
		Path:          "/scenes/{id}",
		Summary:       "Delete a scene",
		Tags:          []string{"scenes"},
		DefaultStatus: 200,
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		if err := eng.DeleteScene(ctx, in.ID); err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(nil)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-scene",
		Method:      "POST",
		Path:        "/scenes/{id}/resolve",
		Summary:     "Resolve a scene's pipeline into final rendered content",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body resolveBody
	}) (*envelopeOutput, error) {
		principal, _ := principalFromContext(ctx)
		result, err := eng.ResolveScene(ctx, engine.ResolveInput{
			SceneID: in.ID, Variables: in.Body.Variables, CallerProject: principal.ProjectID,
			CallerSystem: "api", CallerID: principal.ActorID,
		})
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "scene-dependencies",
		Method:      "GET",
		Path:        "/scenes/{id}/dependencies",
		Summary:     "Fetch a scene's dependency graph for visualization",
		Tags:        []string{"scenes"},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*envelopeOutput, error) {
		graph, err := eng.DependencyGraph(ctx, in.ID)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(graph)}, nil
	})
}

func sceneInputFrom(b createSceneBody) engine.CreateSceneInput {
	return engine.CreateSceneInput{
		ProjectID: b.ProjectID, Slug: b.Slug, Name: b.Name, Description: b.Description,
		Pipeline: b.Pipeline, MergeStrategy: b.MergeStrategy, Separator: b.Separator, OutputFormat: b.OutputFormat,
	}
}
