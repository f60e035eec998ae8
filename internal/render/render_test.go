package render

import (
	"errors"
	"testing"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

func TestValidateFillsDefaultsAndRequiresMissing(t *testing.T) {
	spec := []domain.VariableDecl{
		{Name: "topic", Type: domain.VarString, Required: true},
		{Name: "tone", Type: domain.VarString, Default: "neutral"},
	}
	if _, err := Validate(spec, map[string]any{}); err == nil {
		t.Fatal("expected error for missing required variable")
	}

	merged, err := Validate(spec, map[string]any{"topic": "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged["tone"] != "neutral" {
		t.Fatalf("tone = %v, want default filled in", merged["tone"])
	}
}

func TestValidateEnumViolation(t *testing.T) {
	spec := []domain.VariableDecl{
		{Name: "level", Type: domain.VarEnum, EnumValues: []string{"low", "high"}},
	}
	_, err := Validate(spec, map[string]any{"level": "medium"})
	var tre *domain.TemplateRenderError
	if !errors.As(err, &tre) || tre.Kind != domain.KindEnumViolation {
		t.Fatalf("expected enum violation, got %v", err)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	spec := []domain.VariableDecl{{Name: "count", Type: domain.VarInteger}}
	_, err := Validate(spec, map[string]any{"count": "not a number"})
	var tre *domain.TemplateRenderError
	if !errors.As(err, &tre) || tre.Kind != domain.KindTypeMismatch {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestRenderEngineNonePassesThrough(t *testing.T) {
	out, err := Render("literal {{ x }}", domain.EngineNone, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "literal {{ x }}" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineBSimpleSubstitution(t *testing.T) {
	out, err := Render("Hello {{ name }}!", domain.EngineB, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello Ada!" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineBUndefinedVariableErrors(t *testing.T) {
	_, err := Render("{{ missing }}", domain.EngineB, map[string]any{})
	var tre *domain.TemplateRenderError
	if !errors.As(err, &tre) || tre.Kind != domain.KindUndefinedVariable {
		t.Fatalf("expected undefined variable error, got %v", err)
	}
}

func TestRenderEngineBNestedPath(t *testing.T) {
	scope := map[string]any{"user": map[string]any{"name": "Grace"}}
	out, err := Render("{{ user.name }}", domain.EngineB, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Grace" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineAIfElse(t *testing.T) {
	tmpl := "{% if premium %}VIP{% else %}Standard{% endif %}"
	out, err := Render(tmpl, domain.EngineA, map[string]any{"premium": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "VIP" {
		t.Fatalf("got %q", out)
	}

	out, err = Render(tmpl, domain.EngineA, map[string]any{"premium": false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Standard" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineAElif(t *testing.T) {
	tmpl := `{% if tier == "gold" %}Gold{% elif tier == "silver" %}Silver{% else %}Bronze{% endif %}`
	out, err := Render(tmpl, domain.EngineA, map[string]any{"tier": "silver"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Silver" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineAForLoop(t *testing.T) {
	tmpl := "{% for item in items %}[{{ item }}]{% endfor %}"
	scope := map[string]any{"items": []any{"a", "b", "c"}}
	out, err := Render(tmpl, domain.EngineA, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[a][b][c]" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineAAndOrConditions(t *testing.T) {
	tmpl := "{% if a and b %}both{% else %}not both{% endif %}"
	out, err := Render(tmpl, domain.EngineA, map[string]any{"a": true, "b": false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "not both" {
		t.Fatalf("got %q", out)
	}

	out, err = Render("{% if a or b %}either{% else %}neither{% endif %}", domain.EngineA, map[string]any{"a": false, "b": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "either" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderEngineAUnterminatedTagIsSyntaxError(t *testing.T) {
	_, err := Render("{{ oops", domain.EngineA, nil)
	var tre *domain.TemplateRenderError
	if !errors.As(err, &tre) || tre.Kind != domain.KindSyntaxError {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestRenderUnknownEngine(t *testing.T) {
	_, err := Render("x", domain.TemplateEngine("bogus"), nil)
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
}
