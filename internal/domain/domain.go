package domain

// Project is the tenant boundary for prompts and scenes. Auth, billing and
// membership live outside the core; only identity and slug are modeled here.
type Project struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// VariableType enumerates the declared types a prompt variable may take.
type VariableType string

const (
	VarString  VariableType = "string"
	VarInteger VariableType = "integer"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarEnum    VariableType = "enum"
	VarObject  VariableType = "object"
	VarArray   VariableType = "array"
)

// VariableDecl declares one variable a prompt or step template may reference.
type VariableDecl struct {
	Name        string       `json:"name"`
	Type        VariableType `json:"type" enum:"string,integer,number,boolean,enum,object,array"`
	Required    bool         `json:"required"`
	Default     any          `json:"default,omitempty"`
	Description string       `json:"description,omitempty"`
	EnumValues  []string     `json:"enum_values,omitempty"`
}

// PromptFormat is the shape the rendered content is meant to be interpreted as.
type PromptFormat string

const (
	FormatText PromptFormat = "text"
	FormatJSON PromptFormat = "json"
	FormatYAML PromptFormat = "yaml"
	FormatChat PromptFormat = "chat"
)

// TemplateEngine selects which renderer processes a prompt's content.
type TemplateEngine string

const (
	EngineA    TemplateEngine = "engine_A"
	EngineB    TemplateEngine = "engine_B"
	EngineNone TemplateEngine = "none"
)

// Prompt is the logical, mutable artifact. Content/variables for the
// currently published version live on the Version row, not here.
type Prompt struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	// Content mirrors the current published version's content for
	// single-row reads; the Version row remains the source of truth and is
	// the only place content is ever written first.
	Content        string         `json:"content"`
	Format         PromptFormat   `json:"format" enum:"text,json,yaml,chat"`
	TemplateEngine TemplateEngine `json:"template_engine" enum:"engine_A,engine_B,none"`
	VariableSpec   []VariableDecl `json:"variable_spec,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Category       string         `json:"category,omitempty"`
	IsShared       bool           `json:"is_shared"`
	CurrentVersion string         `json:"current_version"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      string         `json:"created_at" format:"date-time"`
	UpdatedAt      string         `json:"updated_at" format:"date-time"`
	DeletedAt      *string        `json:"deleted_at,omitempty" format:"date-time"`
}

// VersionStatus is the publication lifecycle of a Version row.
type VersionStatus string

const (
	StatusDraft      VersionStatus = "draft"
	StatusPublished  VersionStatus = "published"
	StatusDeprecated VersionStatus = "deprecated"
)

// Version is an immutable, append-only snapshot of a prompt's content.
// Once Status is published, Content and VariableSpec never change again.
type Version struct {
	ID           string         `json:"id"`
	PromptID     string         `json:"prompt_id"`
	Version      string         `json:"version"`
	Content      string         `json:"content"`
	VariableSpec []VariableDecl `json:"variable_spec,omitempty"`
	Changelog    string         `json:"changelog,omitempty"`
	Status       VersionStatus  `json:"status" enum:"draft,published,deprecated"`
	CreatedBy    string         `json:"created_by,omitempty"`
	CreatedAt    string         `json:"created_at" format:"date-time"`
}

// RefType classifies a directed edge between two prompts.
type RefType string

const (
	RefExtends  RefType = "extends"
	RefIncludes RefType = "includes"
	RefComposes RefType = "composes"
)

// PromptRef is a materialized edge source -> target, optionally pinned to a
// concrete version and carrying variables bound into the target at ref time.
type PromptRef struct {
	ID              string         `json:"id"`
	SourceSceneID   string         `json:"source_scene_id,omitempty"`
	SourceStepID    string         `json:"source_step_id,omitempty"`
	SourcePromptID  string         `json:"source_prompt_id,omitempty"`
	TargetPromptID  string         `json:"target_prompt_id"`
	SourceProjectID string         `json:"source_project_id,omitempty"`
	TargetProjectID string         `json:"target_project_id"`
	RefType         RefType        `json:"ref_type" enum:"extends,includes,composes"`
	PinnedVersion   string         `json:"pinned_version,omitempty"`
	OverrideConfig  map[string]any `json:"override_config,omitempty"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
}

// ConditionOperator enumerates the predicate operators a step Condition may use.
type ConditionOperator string

const (
	OpEq       ConditionOperator = "eq"
	OpNeq      ConditionOperator = "neq"
	OpIn       ConditionOperator = "in"
	OpNotIn    ConditionOperator = "not_in"
	OpGt       ConditionOperator = "gt"
	OpGte      ConditionOperator = "gte"
	OpLt       ConditionOperator = "lt"
	OpLte      ConditionOperator = "lte"
	OpExists   ConditionOperator = "exists"
	OpNotExist ConditionOperator = "not_exists"
)

// Condition gates whether a step participates in a resolve.
type Condition struct {
	Variable string            `json:"variable"`
	Operator ConditionOperator `json:"operator" enum:"eq,neq,in,not_in,gt,gte,lt,lte,exists,not_exists"`
	Value    any               `json:"value,omitempty"`
}

// PromptReference is the step-level pointer to the prompt a step renders.
// Version "" or "latest" binds live to the prompt's CurrentVersion.
type PromptReference struct {
	PromptID string `json:"prompt_id"`
	Version  string `json:"version,omitempty"`
}

// Step is one entry in a Scene's pipeline.
type Step struct {
	ID             string         `json:"id"`
	PromptRef      PromptReference `json:"prompt_ref"`
	Variables      map[string]any `json:"variables,omitempty"`
	Condition      *Condition     `json:"condition,omitempty"`
	OutputKey      string         `json:"output_key,omitempty"`
}

// MergeStrategy selects how non-skipped step outputs are assembled.
type MergeStrategy string

const (
	MergeConcat      MergeStrategy = "concat"
	MergeChain        MergeStrategy = "chain"
	MergeSelectBest   MergeStrategy = "select_best"
)

// Pipeline is the ordered list of steps a Scene executes.
type Pipeline struct {
	Steps []Step `json:"steps"`
}

// Scene is a named, composable pipeline yielding one final rendered text.
type Scene struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	Slug          string        `json:"slug"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Pipeline      Pipeline      `json:"pipeline"`
	MergeStrategy MergeStrategy `json:"merge_strategy" enum:"concat,chain,select_best"`
	Separator     string        `json:"separator"`
	OutputFormat  string        `json:"output_format,omitempty"`
	CreatedBy     string        `json:"created_by,omitempty"`
	CreatedAt     string        `json:"created_at" format:"date-time"`
	UpdatedAt     string        `json:"updated_at" format:"date-time"`
}

// CallLog is a telemetry record of one resolve or render invocation.
type CallLog struct {
	ID             int64    `json:"id"`
	PromptID       *string  `json:"prompt_id,omitempty"`
	SceneID        *string  `json:"scene_id,omitempty"`
	ResolvedVersion string  `json:"resolved_version,omitempty"`
	CallerSystem   string   `json:"caller_system,omitempty"`
	CallerID       string   `json:"caller_id,omitempty"`
	InputVariables string   `json:"input_variables,omitempty"`
	RenderedContent string  `json:"rendered_content,omitempty"`
	TokenEstimate  int      `json:"token_estimate"`
	ElapsedMS      int64    `json:"elapsed_ms"`
	QualityScore   *float64 `json:"quality_score,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
}

// StepResult reports what happened for one pipeline step during a resolve.
type StepResult struct {
	StepID          string `json:"step_id"`
	PromptID        string `json:"prompt_id"`
	PromptName      string `json:"prompt_name"`
	Version         string `json:"version"`
	RenderedContent string `json:"rendered_content"`
	Skipped         bool   `json:"skipped"`
	SkipReason      string `json:"skip_reason,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

// SceneResolveResult is the output of the Scene Engine's core operation.
type SceneResolveResult struct {
	SceneID             string       `json:"scene_id"`
	SceneName           string       `json:"scene_name"`
	MergeStrategy        MergeStrategy `json:"merge_strategy"`
	FinalContent        string       `json:"final_content"`
	Steps               []StepResult `json:"steps"`
	TotalTokenEstimate  int          `json:"total_token_estimate"`
}

// DependencyNode is one vertex in a scene's dependency graph visualization.
type DependencyNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Version   string `json:"version"`
	IsShared  bool   `json:"is_shared"`
}

// DependencyEdge is one directed edge in a scene's dependency graph.
type DependencyEdge struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	StepID  string `json:"step_id,omitempty"`
	RefType string `json:"ref_type"`
}

// DependencyGraph is the assembled visualization payload for a scene.
type DependencyGraph struct {
	Nodes []DependencyNode `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}

// RenderResult is the output of a standalone single-prompt render.
type RenderResult struct {
	PromptID        string         `json:"prompt_id"`
	Version         string         `json:"version"`
	RenderedContent string         `json:"rendered_content"`
	VariablesUsed   map[string]any `json:"variables_used,omitempty"`
}
