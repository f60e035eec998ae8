package render

import (
	"strconv"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// engine_A is a mustache-with-control-flow dialect: {{ var }}, {{ obj.field }},
// {% if expr %}...{% elif expr %}...{% else %}...{% endif %}, and
// {% for item in iterable %}...{% endfor %}. It is parsed once into a small
// node tree, then evaluated against the variable scope.

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeVar
	nodeIf
	nodeFor
)

type templateNode struct {
	kind nodeKind

	text string // nodeText
	path string // nodeVar, or the iterable expr for nodeFor

	// nodeIf
	branches []ifBranch // first branch has cond != "" (the `if`); later branches are `elif`; a trailing branch with cond == "" is `else`
	// nodeFor
	loopVar string
	body    []templateNode
}

type ifBranch struct {
	cond string
	body []templateNode
}

func renderEngineA(content string, scope map[string]any) (string, error) {
	nodes, err := parseEngineA(content)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := evalNodes(nodes, scope, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// parseEngineA tokenizes on {{ }} and {% %} tags and builds a node tree via
// a small recursive-descent parser over the flat token stream.
func parseEngineA(content string) ([]templateNode, error) {
	tokens, err := tokenize(content)
	if err != nil {
		return nil, err
	}
	pos := 0
	nodes, _, err := parseBlock(tokens, &pos, "")
	if err != nil {
		return nil, err
	}
	if pos < len(tokens) {
		return nil, domain.NewTemplateRenderError(domain.KindSyntaxError, "block tag outside an open block", "")
	}
	return nodes, nil
}

type tagKind int

const (
	tagText tagKind = iota
	tagVar
	tagIf
	tagElif
	tagElse
	tagEndif
	tagFor
	tagEndfor
)

type rawTag struct {
	kind tagKind
	text string // literal text for tagText; trimmed expr for others
}

func tokenize(content string) ([]rawTag, error) {
	var tags []rawTag
	i := 0
	for i < len(content) {
		nextVar := indexOf(content, i, "{{")
		nextBlock := indexOf(content, i, "{%")
		next := minPositive(nextVar, nextBlock)
		if next < 0 {
			tags = append(tags, rawTag{kind: tagText, text: content[i:]})
			break
		}
		if next > i {
			tags = append(tags, rawTag{kind: tagText, text: content[i:next]})
		}
		if next == nextVar {
			end := strings.Index(content[next+2:], "}}")
			if end < 0 {
				return nil, domain.NewTemplateRenderError(domain.KindSyntaxError, "unterminated variable tag", "")
			}
			expr := strings.TrimSpace(content[next+2 : next+2+end])
			tags = append(tags, rawTag{kind: tagVar, text: expr})
			i = next + 2 + end + 2
			continue
		}
		end := strings.Index(content[next+2:], "%}")
		if end < 0 {
			return nil, domain.NewTemplateRenderError(domain.KindSyntaxError, "unterminated block tag", "")
		}
		expr := strings.TrimSpace(content[next+2 : next+2+end])
		tag, err := classifyBlock(expr)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
		i = next + 2 + end + 2
	}
	return tags, nil
}

func classifyBlock(expr string) (rawTag, error) {
	switch {
	case expr == "endif":
		return rawTag{kind: tagEndif}, nil
	case expr == "endfor":
		return rawTag{kind: tagEndfor}, nil
	case expr == "else":
		return rawTag{kind: tagElse}, nil
	case strings.HasPrefix(expr, "elif "):
		return rawTag{kind: tagElif, text: strings.TrimSpace(expr[len("elif "):])}, nil
	case strings.HasPrefix(expr, "if "):
		return rawTag{kind: tagIf, text: strings.TrimSpace(expr[len("if "):])}, nil
	case strings.HasPrefix(expr, "for "):
		return rawTag{kind: tagFor, text: strings.TrimSpace(expr[len("for "):])}, nil
	default:
		return rawTag{}, domain.NewTemplateRenderError(domain.KindSyntaxError, "unrecognized block tag", expr)
	}
}

func indexOf(s string, from int, sub string) int {
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func minPositive(a, b int) int {
	if a < 0 {
		return b
	}
	if b < 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// parseBlock consumes tokens until it sees an elif/else/endif/endfor tag (or
// EOF when context == ""), returning the parsed nodes and which tag ended the
// block; EOF inside a named context is a syntax error.
func parseBlock(tokens []rawTag, pos *int, context string) ([]templateNode, tagKind, error) {
	var nodes []templateNode
	for *pos < len(tokens) {
		tok := tokens[*pos]
		switch tok.kind {
		case tagText:
			nodes = append(nodes, templateNode{kind: nodeText, text: tok.text})
			*pos++
		case tagVar:
			nodes = append(nodes, templateNode{kind: nodeVar, path: tok.text})
			*pos++
		case tagIf:
			*pos++
			node, err := parseIf(tokens, pos, tok.text)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, node)
		case tagFor:
			*pos++
			node, err := parseFor(tokens, pos, tok.text)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, node)
		case tagElif, tagElse, tagEndif, tagEndfor:
			return nodes, tok.kind, nil
		}
	}
	if context != "" {
		return nil, 0, domain.NewTemplateRenderError(domain.KindSyntaxError, "unterminated "+context+" block", "")
	}
	return nodes, 0, nil
}

func parseIf(tokens []rawTag, pos *int, firstCond string) (templateNode, error) {
	node := templateNode{kind: nodeIf}
	cond := firstCond
	for {
		body, stop, err := parseBlock(tokens, pos, "if")
		if err != nil {
			return templateNode{}, err
		}
		node.branches = append(node.branches, ifBranch{cond: cond, body: body})
		switch stop {
		case tagElif:
			cond = tokens[*pos].text
			*pos++
			continue
		case tagElse:
			cond = ""
			*pos++
			continue
		case tagEndif:
			*pos++
			return node, nil
		default:
			return templateNode{}, domain.NewTemplateRenderError(domain.KindSyntaxError, "malformed if block", "")
		}
	}
}

func parseFor(tokens []rawTag, pos *int, clause string) (templateNode, error) {
	parts := strings.SplitN(clause, " in ", 2)
	if len(parts) != 2 {
		return templateNode{}, domain.NewTemplateRenderError(domain.KindSyntaxError, "malformed for clause", clause)
	}
	loopVar := strings.TrimSpace(parts[0])
	iterPath := strings.TrimSpace(parts[1])
	body, stop, err := parseBlock(tokens, pos, "for")
	if err != nil {
		return templateNode{}, err
	}
	if stop != tagEndfor {
		return templateNode{}, domain.NewTemplateRenderError(domain.KindSyntaxError, "malformed for block", "")
	}
	*pos++
	return templateNode{kind: nodeFor, loopVar: loopVar, path: iterPath, body: body}, nil
}

func evalNodes(nodes []templateNode, scope map[string]any, out *strings.Builder) error {
	for _, n := range nodes {
		if err := evalNode(n, scope, out); err != nil {
			return err
		}
	}
	return nil
}

func evalNode(n templateNode, scope map[string]any, out *strings.Builder) error {
	switch n.kind {
	case nodeText:
		out.WriteString(n.text)
	case nodeVar:
		val, ok := lookupPath(scope, n.path)
		if !ok {
			return domain.NewTemplateRenderError(domain.KindUndefinedVariable, "undefined variable", n.path)
		}
		out.WriteString(stringify(val))
	case nodeIf:
		for _, branch := range n.branches {
			if branch.cond == "" {
				return evalNodes(branch.body, scope, out)
			}
			truthy, err := evalCondition(branch.cond, scope)
			if err != nil {
				return err
			}
			if truthy {
				return evalNodes(branch.body, scope, out)
			}
		}
	case nodeFor:
		iterable, ok := lookupPath(scope, n.path)
		if !ok {
			return domain.NewTemplateRenderError(domain.KindUndefinedVariable, "undefined variable", n.path)
		}
		items, ok := iterable.([]any)
		if !ok {
			return domain.NewTemplateRenderError(domain.KindTypeMismatch, "for target is not iterable", n.path)
		}
		for _, item := range items {
			inner := make(map[string]any, len(scope)+1)
			for k, v := range scope {
				inner[k] = v
			}
			inner[n.loopVar] = item
			if err := evalNodes(n.body, inner, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// evalCondition supports: bare truthy lookup, "not <expr>", "a and b",
// "a or b", and binary comparisons "a == b" / "a != b" where operands are
// either dotted paths or quoted/numeric literals. This is the surface a
// control-flow template dialect needs for data-only branching, nothing more.
func evalCondition(expr string, scope map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if idx := splitTopLevel(expr, " or "); idx >= 0 {
		left, err := evalCondition(expr[:idx], scope)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return evalCondition(expr[idx+len(" or "):], scope)
	}
	if idx := splitTopLevel(expr, " and "); idx >= 0 {
		left, err := evalCondition(expr[:idx], scope)
		if err != nil {
			return false, err
		}
		if !left {
			return false, nil
		}
		return evalCondition(expr[idx+len(" and "):], scope)
	}
	if strings.HasPrefix(expr, "not ") {
		inner, err := evalCondition(strings.TrimSpace(expr[4:]), scope)
		return !inner, err
	}
	if idx := strings.Index(expr, "=="); idx >= 0 {
		return compareOperands(expr[:idx], expr[idx+2:], scope, true)
	}
	if idx := strings.Index(expr, "!="); idx >= 0 {
		eq, err := compareOperands(expr[:idx], expr[idx+2:], scope, true)
		return !eq, err
	}
	val, ok := lookupPath(scope, expr)
	if !ok {
		return false, domain.NewTemplateRenderError(domain.KindUndefinedVariable, "undefined variable in condition", expr)
	}
	return truthy(val), nil
}

func splitTopLevel(expr, sep string) int {
	return strings.Index(expr, sep)
}

func compareOperands(leftExpr, rightExpr string, scope map[string]any, _ bool) (bool, error) {
	left, err := resolveOperand(leftExpr, scope)
	if err != nil {
		return false, err
	}
	right, err := resolveOperand(rightExpr, scope)
	if err != nil {
		return false, err
	}
	return stringify(left) == stringify(right), nil
}

func resolveOperand(expr string, scope map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)
	if len(expr) >= 2 && (expr[0] == '"' || expr[0] == '\'') && expr[len(expr)-1] == expr[0] {
		return expr[1 : len(expr)-1], nil
	}
	if expr == "true" {
		return true, nil
	}
	if expr == "false" {
		return false, nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}
	val, ok := lookupPath(scope, expr)
	if !ok {
		return nil, domain.NewTemplateRenderError(domain.KindUndefinedVariable, "undefined variable in condition", expr)
	}
	return val, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
