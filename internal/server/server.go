package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/engine"
)

// Config assembles the HTTP handler: the wired Engine, the mount path, and
// the auth middleware's bearer-token verification secret.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

// New returns an HTTP handler exposing the PromptHub API under cfg.BasePath.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	// huma's own errors carry no domain code; derive one from the status.
	codeFor := func(status int) int {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
			return status * 100
		}
		if status < http.StatusInternalServerError {
			return int(domain.CodeValidationError)
		}
		return int(domain.CodeInternalError)
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, codeFor(status), msg, "")
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		var detail string
		if len(errs) > 0 {
			detail = errs[0].Error()
		}
		return newAPIError(status, codeFor(status), msg, detail)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))

	hcfg := huma.DefaultConfig("PromptHub API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi.json"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(router, basePath)
	registerDocs(router, basePath)
	registerProjects(group, cfg.Engine)
	registerPrompts(group, cfg.Engine)
	registerScenes(group, cfg.Engine)
	registerShared(group, cfg.Engine)

	return router, nil
}

func registerHealth(router chi.Router, basePath string) {
	router.Get(basePath+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	})
}

// registerDocs serves a minimal Swagger UI page pointed at the generated
// openapi.json, giving callers interactive docs rather than a static
// reference.
func registerDocs(router chi.Router, basePath string) {
	router.Get(basePath+"/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, docsHTML, basePath+"/openapi.json")
	})
}

const docsHTML = `<!doctype html>
<html>
<head><title>PromptHub API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>window.onload = () => SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"});</script>
</body>
</html>`
