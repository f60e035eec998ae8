// Package render implements a data-only, sandboxed template substitution
// engine over a variable map, hand-rolled because no Jinja2-equivalent Go
// library fits this use case — see DESIGN.md for why this is a justified
// stdlib-only component.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// Validate runs the pre-substitution validation pass: required variables
// present (or defaulted), input types compatible with declarations, enum
// membership honored. It returns the fully merged variable scope (declared
// defaults filled in) ready for Render.
func Validate(spec []domain.VariableDecl, input map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(input)+len(spec))
	for k, v := range input {
		merged[k] = v
	}

	declared := make(map[string]domain.VariableDecl, len(spec))
	for _, decl := range spec {
		declared[decl.Name] = decl
		if _, present := merged[decl.Name]; !present {
			if decl.Default != nil {
				merged[decl.Name] = decl.Default
				continue
			}
			if decl.Required {
				return nil, domain.NewTemplateRenderError(domain.KindMissingRequired,
					"missing required variable", decl.Name)
			}
		}
	}

	for name, val := range merged {
		decl, ok := declared[name]
		if !ok {
			continue
		}
		if err := checkType(decl, val); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func checkType(decl domain.VariableDecl, val any) error {
	switch decl.Type {
	case domain.VarString, "":
		if _, ok := val.(string); !ok {
			return typeMismatch(decl.Name, "string")
		}
	case domain.VarInteger:
		switch v := val.(type) {
		case int, int64, float64:
			if f, ok := v.(float64); ok && f != float64(int64(f)) {
				return typeMismatch(decl.Name, "integer")
			}
		default:
			return typeMismatch(decl.Name, "integer")
		}
	case domain.VarNumber:
		switch val.(type) {
		case int, int64, float64:
		default:
			return typeMismatch(decl.Name, "number")
		}
	case domain.VarBoolean:
		if _, ok := val.(bool); !ok {
			return typeMismatch(decl.Name, "boolean")
		}
	case domain.VarEnum:
		str, ok := val.(string)
		if !ok {
			return typeMismatch(decl.Name, "enum")
		}
		for _, allowed := range decl.EnumValues {
			if allowed == str {
				return nil
			}
		}
		return domain.NewTemplateRenderError(domain.KindEnumViolation,
			"value not in declared enum", fmt.Sprintf("%s: %q not in %v", decl.Name, str, decl.EnumValues))
	case domain.VarObject:
		if _, ok := val.(map[string]any); !ok {
			return typeMismatch(decl.Name, "object")
		}
	case domain.VarArray:
		if _, ok := val.([]any); !ok {
			return typeMismatch(decl.Name, "array")
		}
	}
	return nil
}

func typeMismatch(name, wantType string) error {
	return domain.NewTemplateRenderError(domain.KindTypeMismatch,
		"variable type mismatch", fmt.Sprintf("%s: expected %s", name, wantType))
}

// Render dispatches to the selected engine. variables must already be the
// merged scope returned by Validate (or, for engine_B/none, the caller's
// raw input — those engines do not require a prior validation pass).
func Render(content string, engine domain.TemplateEngine, variables map[string]any) (string, error) {
	switch engine {
	case domain.EngineNone:
		return content, nil
	case domain.EngineB:
		return renderEngineB(content, variables)
	case domain.EngineA, "":
		return renderEngineA(content, variables)
	default:
		return "", domain.NewTemplateRenderError(domain.KindSyntaxError, "unknown template engine", string(engine))
	}
}

// renderEngineB implements the logic-less fallback: only {{ var }} and
// {{ obj.field }}. A key present in the scope map with a nil value renders
// empty; a path absent from the scope map is an undefined-variable error.
// Variable declarations are not consulted here, so an optional variable that
// was given no value and has no default is reported as undefined too.
func renderEngineB(content string, variables map[string]any) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(content) {
		start := strings.Index(content[i:], "{{")
		if start < 0 {
			out.WriteString(content[i:])
			break
		}
		out.WriteString(content[i : i+start])
		rest := content[i+start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", domain.NewTemplateRenderError(domain.KindSyntaxError, "unterminated variable tag", "")
		}
		expr := strings.TrimSpace(rest[:end])
		val, ok := lookupPath(variables, expr)
		if !ok {
			return "", domain.NewTemplateRenderError(domain.KindUndefinedVariable, "undefined variable", expr)
		}
		out.WriteString(stringify(val))
		i = i + start + 2 + end + 2
	}
	return out.String(), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// lookupPath resolves dotted paths like "obj.field" against a variable map.
func lookupPath(scope map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = scope
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[p]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
