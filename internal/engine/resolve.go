package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/cache"
	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/render"
	"github.com/HyxiaoGe/prompthub/internal/resolver"
)

// ResolveInput carries a resolve request against one scene.
type ResolveInput struct {
	SceneID       string
	Variables     map[string]any
	CallerProject string
	CallerSystem  string
	CallerID      string
}

// ResolveScene is the scene composition engine's core operation: resolve
// the dependency plan, evaluate each step's precedence-merged
// variables and condition, render non-skipped steps, assemble the final
// content per the merge strategy, and record telemetry — all behind the
// Resolve Cache's single-flight fingerprint collapse.
func (e Engine) ResolveScene(ctx context.Context, in ResolveInput) (domain.SceneResolveResult, error) {
	start := e.now()
	scene, err := e.GetScene(ctx, in.SceneID)
	if err != nil {
		return domain.SceneResolveResult{}, err
	}

	plan, err := resolver.Resolve(ctx, scene, e.Repo, e.Repo, in.CallerProject)
	if err != nil {
		return domain.SceneResolveResult{}, err
	}

	fp, err := cache.Fingerprint(scene.ID, in.Variables, in.CallerProject, plan.PlanVersion)
	if err != nil {
		return domain.SceneResolveResult{}, domain.NewInternalError("fingerprint failed", err.Error())
	}

	entry, err := e.Cache.GetOrCompute(ctx, fp, func(context.Context) (cache.Entry, error) {
		result, computeErr := e.executeScenePlan(scene, plan, in.Variables)
		if computeErr != nil {
			return cache.Entry{}, computeErr
		}
		return cache.Entry{Result: result, SceneID: scene.ID, PlanVersion: plan.PlanVersion}, nil
	})
	if err != nil {
		return domain.SceneResolveResult{}, err
	}
	result := entry.Result

	elapsed := e.now().Sub(start)
	e.CallLog.Accept(domain.CallLog{
		SceneID: &scene.ID, ResolvedVersion: planVersionString(plan.PlanVersion), CallerSystem: in.CallerSystem,
		CallerID: in.CallerID, RenderedContent: result.FinalContent, TokenEstimate: result.TotalTokenEstimate,
		ElapsedMS: elapsed.Milliseconds(), CreatedAt: e.nowString(),
	})
	return result, nil
}

func planVersionString(pv []resolver.PlanVersionEntry) string {
	parts := make([]string, len(pv))
	for i, e := range pv {
		parts[i] = fmt.Sprintf("%s@%s", e.PromptID, e.Version)
	}
	return strings.Join(parts, ",")
}

// executeScenePlan runs the render pass over a resolved plan: per-step
// variable precedence merge, condition evaluation, template rendering, and
// final assembly by merge strategy. For merge_strategy=chain, each step's
// rendered output is threaded into the next step as chain_context, lowest
// precedence, under the reserved name prior_output and, if the step
// declares one, its output_key.
func (e Engine) executeScenePlan(scene domain.Scene, plan resolver.Plan, callerInput map[string]any) (domain.SceneResolveResult, error) {
	results := make([]domain.StepResult, 0, len(plan.Steps))
	outputs := map[string]string{}
	chainContext := map[string]any{}
	tokenTotal := 0

	for _, rs := range plan.Steps {
		step := rs.Step
		if step.Condition != nil {
			ok, err := evaluateCondition(*step.Condition, callerInput, outputs)
			if err != nil {
				return domain.SceneResolveResult{}, err
			}
			if !ok {
				results = append(results, domain.StepResult{
					StepID: step.ID, PromptID: rs.Prompt.ID, PromptName: rs.Prompt.Name, Version: rs.Version.Version,
					Skipped: true, SkipReason: "condition not satisfied",
				})
				continue
			}
		}

		merged := mergeVariables(chainContext, step.Variables, callerInput)
		validated, err := render.Validate(rs.Version.VariableSpec, merged)
		if err != nil {
			return domain.SceneResolveResult{}, err
		}
		rendered, err := render.Render(rs.Version.Content, rs.Prompt.TemplateEngine, validated)
		if err != nil {
			return domain.SceneResolveResult{}, err
		}

		outputKey := step.OutputKey
		if outputKey == "" {
			outputKey = step.ID
		}
		outputs[outputKey] = rendered
		if scene.MergeStrategy == domain.MergeChain {
			chainContext["prior_output"] = rendered
			if step.OutputKey != "" {
				chainContext[step.OutputKey] = rendered
			}
		}
		tokenTotal += estimateTokens(rendered)
		results = append(results, domain.StepResult{
			StepID: step.ID, PromptID: rs.Prompt.ID, PromptName: rs.Prompt.Name, Version: rs.Version.Version,
			RenderedContent: rendered,
		})
	}

	final := assembleFinal(results, scene.MergeStrategy, scene.Separator)
	return domain.SceneResolveResult{
		SceneID: scene.ID, SceneName: scene.Name, MergeStrategy: scene.MergeStrategy,
		FinalContent: final, Steps: results, TotalTokenEstimate: tokenTotal,
	}, nil
}

// mergeVariables merges chain_context (lowest precedence), a step's own
// declared variables (materialized into the reference index's
// override_config at scene-save time, so this is also the ref-override
// tier), and caller-supplied input (highest precedence, always wins when
// set at every level); declared defaults are the floor and are filled in
// later by render.Validate only where nothing here supplied a value.
func mergeVariables(chainContext, stepVars, callerInput map[string]any) map[string]any {
	merged := map[string]any{}
	for k, v := range chainContext {
		merged[k] = v
	}
	for k, v := range stepVars {
		merged[k] = v
	}
	for k, v := range callerInput {
		merged[k] = v
	}
	return merged
}

func estimateTokens(s string) int {
	// A conservative, deterministic approximation: whitespace-delimited word
	// count scaled by the common ~1.3 tokens-per-word heuristic for English
	// prose, used in place of a real tokenizer.
	words := strings.Fields(s)
	return int(float64(len(words))*1.3) + 1
}

// assembleFinal joins non-skipped step outputs according to strategy.
// results is mutated in place: select_best's conservative last-step
// fallback records a non-fatal Warning on the chosen step.
func assembleFinal(results []domain.StepResult, strategy domain.MergeStrategy, separator string) string {
	lastIdx := -1
	var parts []string
	for i, r := range results {
		if r.Skipped {
			continue
		}
		parts = append(parts, r.RenderedContent)
		lastIdx = i
	}
	switch strategy {
	case domain.MergeSelectBest:
		// Scoring metadata (`{{!score=...}}`) or an external scorer is
		// under-specified; fall back to the last non-skipped step's output
		// and flag it so callers know no real scoring happened.
		if lastIdx < 0 {
			return ""
		}
		results[lastIdx].Warning = "select_best scoring unavailable; falling back to last step's output"
		return results[lastIdx].RenderedContent
	case domain.MergeChain:
		if lastIdx < 0 {
			return ""
		}
		return results[lastIdx].RenderedContent
	default: // concat
		return strings.Join(parts, separator)
	}
}

// evaluateCondition supports eq/neq/in/not_in/exists/not_exists plus the
// ordering comparisons gt/gte/lt/lte for numeric step-condition checks.
func evaluateCondition(c domain.Condition, callerInput map[string]any, stepOutputs map[string]string) (bool, error) {
	val, present := lookupConditionVar(c.Variable, callerInput, stepOutputs)
	switch c.Operator {
	case domain.OpExists:
		return present, nil
	case domain.OpNotExist:
		return !present, nil
	}
	if !present {
		return false, nil
	}
	switch c.Operator {
	case domain.OpEq:
		return fmt.Sprintf("%v", val) == fmt.Sprintf("%v", c.Value), nil
	case domain.OpNeq:
		return fmt.Sprintf("%v", val) != fmt.Sprintf("%v", c.Value), nil
	case domain.OpIn:
		return containsAny(c.Value, val), nil
	case domain.OpNotIn:
		return !containsAny(c.Value, val), nil
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		return compareNumeric(val, c.Value, c.Operator)
	default:
		return false, domain.NewValidationError("unknown condition operator", string(c.Operator))
	}
}

func lookupConditionVar(name string, callerInput map[string]any, stepOutputs map[string]string) (any, bool) {
	if v, ok := callerInput[name]; ok {
		return v, true
	}
	if v, ok := stepOutputs[name]; ok {
		return v, true
	}
	return nil, false
}

func containsAny(list any, target any) bool {
	arr, ok := list.([]any)
	if !ok {
		return false
	}
	for _, v := range arr {
		if fmt.Sprintf("%v", v) == fmt.Sprintf("%v", target) {
			return true
		}
	}
	return false
}

func compareNumeric(a, b any, op domain.ConditionOperator) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, domain.NewValidationError("non-numeric operand for comparison operator", string(op))
	}
	switch op {
	case domain.OpGt:
		return af > bf, nil
	case domain.OpGte:
		return af >= bf, nil
	case domain.OpLt:
		return af < bf, nil
	case domain.OpLte:
		return af <= bf, nil
	}
	return false, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
