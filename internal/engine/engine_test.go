package engine

import (
	"context"
	"testing"
	"time"

	"github.com/HyxiaoGe/prompthub/internal/config"
	"github.com/HyxiaoGe/prompthub/internal/db"
	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/migrate"
	"github.com/HyxiaoGe/prompthub/internal/semver"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	e := New(conn, config.Default(), nil)
	t.Cleanup(func() { e.CallLog.Close() })
	e.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func createTestProject(t *testing.T, e Engine) domain.Project {
	t.Helper()
	p, err := e.CreateProject(context.Background(), "proj1", "Project One", "actor1")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestCreatePromptSetsInitialVersion(t *testing.T) {
	e := newTestEngine(t)
	proj := createTestProject(t, e)

	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "Greeting", Name: "Greeting",
		Content: "hi {{ name }}", TemplateEngine: domain.EngineA,
		VariableSpec: []domain.VariableDecl{{Name: "name", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	if p.CurrentVersion != "1.0.0" {
		t.Fatalf("current_version = %s, want 1.0.0", p.CurrentVersion)
	}
	if p.Slug != "greeting" {
		t.Fatalf("slug not normalized: %s", p.Slug)
	}
}

func TestCreatePromptDuplicateSlugConflicts(t *testing.T) {
	e := newTestEngine(t)
	proj := createTestProject(t, e)

	in := CreatePromptInput{ProjectID: proj.ID, Slug: "dup", Name: "dup", Content: "x", TemplateEngine: domain.EngineNone}
	if _, err := e.CreatePrompt(context.Background(), in, "actor1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := e.CreatePrompt(context.Background(), in, "actor1")
	var ae *domain.AppError
	if !asAppError(err, &ae) || ae.Code != domain.CodeConflictError {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestPublishBumpsVersionAndUpdatesPromptMirror(t *testing.T) {
	e := newTestEngine(t)
	proj := createTestProject(t, e)
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "p1", Name: "p1", Content: "v1", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}

	v, err := e.Publish(context.Background(), p.ID, semver.BumpMinor, "v2", "minor bump", nil, "actor1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if v.Version != "1.1.0" {
		t.Fatalf("version = %s, want 1.1.0", v.Version)
	}

	updated, err := e.GetPrompt(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.CurrentVersion != "1.1.0" || updated.Content != "v2" {
		t.Fatalf("prompt mirror not updated: %+v", updated)
	}
}

func TestResolveSceneRendersAndCachesResult(t *testing.T) {
	e := newTestEngine(t)
	proj := createTestProject(t, e)
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "greeting", Name: "greeting", Content: "hi {{ name }}",
		TemplateEngine: domain.EngineA,
		VariableSpec:   []domain.VariableDecl{{Name: "name", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}

	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "scene1", Name: "scene1",
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s1", PromptRef: domain.PromptReference{PromptID: p.ID}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"name": "world"}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "hi world" {
		t.Fatalf("final content = %q, want %q", result.FinalContent, "hi world")
	}
	if e.Cache.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", e.Cache.Len())
	}

	result2, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"name": "world"}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve (cached): %v", err)
	}
	if result2.FinalContent != result.FinalContent {
		t.Fatal("expected identical cached result")
	}
}

func TestResolveSceneMissingVariableIsTemplateRenderError(t *testing.T) {
	e := newTestEngine(t)
	proj := createTestProject(t, e)
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "greeting", Name: "greeting", Content: "hi {{ name }}",
		TemplateEngine: domain.EngineA,
		VariableSpec:   []domain.VariableDecl{{Name: "name", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "scene1", Name: "scene1",
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s1", PromptRef: domain.PromptReference{PromptID: p.ID}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	_, err = e.ResolveScene(context.Background(), ResolveInput{SceneID: scene.ID, CallerProject: proj.ID})
	var trErr *domain.TemplateRenderError
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !asTemplateRenderError(err, &trErr) {
		t.Fatalf("expected TemplateRenderError, got %T: %v", err, err)
	}
}

func TestGetPromptNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetPrompt(context.Background(), "missing")
	var ae *domain.AppError
	if !asAppError(err, &ae) || ae.Code != domain.CodeNotFoundError {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// TestSceneResolveEndToEndScenarios covers the six literal end-to-end
// scenarios: single-step concat, condition skip, chain merge, cycle
// rejection, version pin survival across a publish, and variable
// precedence (caller input beats ref override beats step static beats
// declared default).
func TestSceneResolveEndToEndScenarios(t *testing.T) {
	scenarios := []struct {
		name string
		run  func(t *testing.T, e Engine, proj domain.Project)
	}{
		{"single-step concat", scenarioSingleStepConcat},
		{"condition skip", scenarioConditionSkip},
		{"chain merge", scenarioChainMerge},
		{"cycle rejection", scenarioCycleRejection},
		{"version pin survives publish", scenarioVersionPin},
		{"precedence: caller beats ref override beats step static beats default", scenarioPrecedence},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			e := newTestEngine(t)
			proj := createTestProject(t, e)
			s.run(t, e, proj)
		})
	}
}

func scenarioSingleStepConcat(t *testing.T, e Engine, proj domain.Project) {
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "greet", Name: "greet", Content: "Hello, {{ name }}!",
		TemplateEngine: domain.EngineA,
		VariableSpec:   []domain.VariableDecl{{Name: "name", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "hello", Name: "hello", MergeStrategy: domain.MergeConcat,
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s", PromptRef: domain.PromptReference{PromptID: p.ID}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"name": "Ada"}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "Hello, Ada!" {
		t.Fatalf("final_content = %q, want %q", result.FinalContent, "Hello, Ada!")
	}
	if len(result.Steps) != 1 || result.Steps[0].Skipped {
		t.Fatalf("unexpected steps: %+v", result.Steps)
	}
}

func scenarioConditionSkip(t *testing.T, e Engine, proj domain.Project) {
	a, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "a", Name: "a", Content: "x", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt a: %v", err)
	}
	b, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "b", Name: "b", Content: "y", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt b: %v", err)
	}
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "cond", Name: "cond", MergeStrategy: domain.MergeConcat, Separator: "",
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "A", PromptRef: domain.PromptReference{PromptID: a.ID}},
			{ID: "B", PromptRef: domain.PromptReference{PromptID: b.ID}, Condition: &domain.Condition{
				Variable: "need_img", Operator: domain.OpEq, Value: true,
			}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"need_img": false}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "x" {
		t.Fatalf("final_content = %q, want %q", result.FinalContent, "x")
	}
	if len(result.Steps) != 2 || !result.Steps[1].Skipped {
		t.Fatalf("expected step B skipped: %+v", result.Steps)
	}
}

func scenarioChainMerge(t *testing.T, e Engine, proj domain.Project) {
	a, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "a", Name: "a", Content: "raw: {{ text }}",
		TemplateEngine: domain.EngineA,
		VariableSpec:   []domain.VariableDecl{{Name: "text", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt a: %v", err)
	}
	b, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "b", Name: "b", Content: "upper: {{ prior_output }}",
		TemplateEngine: domain.EngineA,
		VariableSpec:   []domain.VariableDecl{{Name: "prior_output", Type: domain.VarString, Required: true}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt b: %v", err)
	}
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "chain_s", Name: "chain_s", MergeStrategy: domain.MergeChain,
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "A", PromptRef: domain.PromptReference{PromptID: a.ID}},
			{ID: "B", PromptRef: domain.PromptReference{PromptID: b.ID}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"text": "hi"}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "upper: raw: hi" {
		t.Fatalf("final_content = %q, want %q", result.FinalContent, "upper: raw: hi")
	}
}

func scenarioCycleRejection(t *testing.T, e Engine, proj domain.Project) {
	a, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "a", Name: "a", Content: "a", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt a: %v", err)
	}
	b, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "b", Name: "b", Content: "b", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt b: %v", err)
	}
	// a -> b -> a via the reference index (not the pipeline itself, which
	// cannot self-reference): seed the edges directly through the scene
	// that owns the a-step, then point back from b to a.
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "cyclic", Name: "cyclic", MergeStrategy: domain.MergeConcat,
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s", PromptRef: domain.PromptReference{PromptID: a.ID}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	now := e.nowString()
	if _, err := e.Repo.UpdateSceneWithRefs(context.Background(), scene, []domain.PromptRef{
		{ID: newID(), SourcePromptID: a.ID, TargetPromptID: b.ID, SourceProjectID: proj.ID, TargetProjectID: proj.ID,
			RefType: domain.RefIncludes, CreatedAt: now},
		{ID: newID(), SourcePromptID: b.ID, TargetPromptID: a.ID, SourceProjectID: proj.ID, TargetProjectID: proj.ID,
			RefType: domain.RefIncludes, CreatedAt: now},
	}); err != nil {
		t.Fatalf("seed cyclic refs: %v", err)
	}

	beforeCount := callLogCount(t, e)
	_, err = e.ResolveScene(context.Background(), ResolveInput{SceneID: scene.ID, CallerProject: proj.ID})
	var ae *domain.AppError
	if !asAppError(err, &ae) || ae.Code != domain.CodeCircularDependencyError || ae.Status != 409 {
		t.Fatalf("expected circular dependency error with status 409, got %v", err)
	}
	if after := callLogCount(t, e); after != beforeCount {
		t.Fatalf("expected no call log written on cycle rejection, before=%d after=%d", beforeCount, after)
	}
}

func callLogCount(t *testing.T, e Engine) int {
	t.Helper()
	var n int
	if err := e.Repo.DB.QueryRow(`SELECT COUNT(*) FROM call_logs`).Scan(&n); err != nil {
		t.Fatalf("count call_logs: %v", err)
	}
	return n
}

func scenarioVersionPin(t *testing.T, e Engine, proj domain.Project) {
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "greet", Name: "greet", Content: "v1 content", TemplateEngine: domain.EngineNone,
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "pinned", Name: "pinned", MergeStrategy: domain.MergeConcat,
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s", PromptRef: domain.PromptReference{PromptID: p.ID, Version: "1.0.0"}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	if _, err := e.Publish(context.Background(), p.ID, semver.BumpMajor, "v2 content", "", nil, "actor1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{SceneID: scene.ID, CallerProject: proj.ID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "v1 content" {
		t.Fatalf("final_content = %q, want pinned %q", result.FinalContent, "v1 content")
	}
}

func scenarioPrecedence(t *testing.T, e Engine, proj domain.Project) {
	p, err := e.CreatePrompt(context.Background(), CreatePromptInput{
		ProjectID: proj.ID, Slug: "stylist", Name: "stylist", Content: "Style: {{ style }}",
		TemplateEngine: domain.EngineA,
		VariableSpec: []domain.VariableDecl{
			{Name: "style", Type: domain.VarString, Default: "plain"},
		},
	}, "actor1")
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	// Ref override and step static collapse onto the same `step.Variables`
	// tier in this data model (see DESIGN.md); "serif" here stands in for
	// whichever of the two was authored last onto the step.
	scene, err := e.CreateScene(context.Background(), CreateSceneInput{
		ProjectID: proj.ID, Slug: "precedence", Name: "precedence", MergeStrategy: domain.MergeConcat,
		Pipeline: domain.Pipeline{Steps: []domain.Step{
			{ID: "s", PromptRef: domain.PromptReference{PromptID: p.ID}, Variables: map[string]any{"style": "serif"}},
		}},
	}, "actor1")
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	result, err := e.ResolveScene(context.Background(), ResolveInput{
		SceneID: scene.ID, Variables: map[string]any{"style": "bold"}, CallerProject: proj.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.FinalContent != "Style: bold" {
		t.Fatalf("final_content = %q, want caller value to win: %q", result.FinalContent, "Style: bold")
	}
}

func asAppError(err error, out **domain.AppError) bool {
	if ae, ok := err.(*domain.AppError); ok {
		*out = ae
		return true
	}
	return false
}

func asTemplateRenderError(err error, out **domain.TemplateRenderError) bool {
	if tr, ok := err.(*domain.TemplateRenderError); ok {
		*out = tr
		return true
	}
	return false
}
