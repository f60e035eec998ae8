package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/HyxiaoGe/prompthub/internal/engine"
)

func registerShared(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-shared-prompts",
		Method:      "GET",
		Path:        "/shared/prompts",
		Summary:     "Browse the shared prompt repository",
		Tags:        []string{"shared"},
	}, func(ctx context.Context, in *struct {
		listParams
	}) (*envelopeOutput, error) {
		items, total, err := eng.ListShared(ctx, pageOf(in.Page), in.PageSize)
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: successPaged(items, pageOf(in.Page), pageSizeOf(in.PageSize), total)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fork-shared-prompt",
		Method:      "POST",
		Path:        "/shared/prompts/{id}/fork",
		Summary:     "Copy a shared prompt into another project",
		Tags:        []string{"shared"},
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body forkBody
	}) (*envelopeOutput, error) {
		p, err := eng.Fork(ctx, in.ID, in.Body.TargetProjectID, in.Body.Slug, actorIDFromContext(ctx))
		if err != nil {
			return nil, toAPIError(err)
		}
		return &envelopeOutput{Body: success(p)}, nil
	})
}
