// Package repo is the persistence layer for projects, prompts, versions,
// scenes, prompt refs and call logs. It follows a raw database/sql style:
// plain structs scanned by hand, transactional and non-transactional method
// pairs (XxxTx takes an explicit *sql.Tx; Xxx opens and commits its own).
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// ErrNotFound is returned by single-row lookups that find nothing; callers
// at the service boundary translate it into a not-found domain.AppError
// (domain.NewNotFoundError) with a resource-specific message.
var ErrNotFound = errors.New("not found")

// ErrConflict is wrapped with context by unique-constraint violations.
var ErrConflict = errors.New("conflict")

// Repo wraps the shared *sql.DB handle. It has no behavior beyond SQL; the
// typed-error translation happens in the service layer above it.
type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) Repo { return Repo{DB: db} }

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableStringPtr(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func stringPtrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

func (r Repo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// --- Project -------------------------------------------------------------

func (r Repo) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	var out domain.Project
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		created, err := r.CreateProjectTx(ctx, tx, p)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func (r Repo) CreateProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) (domain.Project, error) {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id, slug, name, created_by, created_at, updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Slug, p.Name, nullableString(p.CreatedBy), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Project{}, fmt.Errorf("%w: slug %s", ErrConflict, p.Slug)
		}
		return domain.Project{}, err
	}
	return p, nil
}

const projectSelect = `SELECT id, slug, name, created_by, created_at, updated_at FROM projects`

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var createdBy sql.NullString
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Project{}, ErrNotFound
	}
	if err != nil {
		return domain.Project{}, err
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, projectSelect+` WHERE id=?`, id))
}

func (r Repo) GetProjectBySlug(ctx context.Context, slug string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, projectSelect+` WHERE slug=?`, slug))
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, projectSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		var createdBy sql.NullString
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if createdBy.Valid {
			p.CreatedBy = createdBy.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Prompt ----------------------------------------------------------------

const promptSelect = `SELECT id, project_id, slug, name, description, content, format, template_engine,
	variable_spec_json, tags_json, category, is_shared, current_version, created_by, created_at, updated_at, deleted_at
	FROM prompts`

func scanPrompt(scan func(dest ...any) error) (domain.Prompt, error) {
	var p domain.Prompt
	var desc, category, createdBy, deletedAt sql.NullString
	var varSpecJSON, tagsJSON string
	var isShared int
	err := scan(&p.ID, &p.ProjectID, &p.Slug, &p.Name, &desc, &p.Content, &p.Format, &p.TemplateEngine,
		&varSpecJSON, &tagsJSON, &category, &isShared, &p.CurrentVersion, &createdBy, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return domain.Prompt{}, ErrNotFound
	}
	if err != nil {
		return domain.Prompt{}, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if category.Valid {
		p.Category = category.String
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}
	p.DeletedAt = stringPtrFromNull(deletedAt)
	p.IsShared = isShared != 0
	_ = json.Unmarshal([]byte(varSpecJSON), &p.VariableSpec)
	_ = json.Unmarshal([]byte(tagsJSON), &p.Tags)
	return p, nil
}

func (r Repo) CreatePrompt(ctx context.Context, p domain.Prompt) (domain.Prompt, error) {
	varSpec, err := marshalJSON(p.VariableSpec)
	if err != nil {
		return domain.Prompt{}, err
	}
	tags, err := marshalJSON(p.Tags)
	if err != nil {
		return domain.Prompt{}, err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO prompts(
		id, project_id, slug, name, description, content, format, template_engine,
		variable_spec_json, tags_json, category, is_shared, current_version, created_by, created_at, updated_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Slug, p.Name, nullableString(p.Description), p.Content, p.Format, p.TemplateEngine,
		varSpec, tags, nullableString(p.Category), boolToInt(p.IsShared), p.CurrentVersion, nullableString(p.CreatedBy), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Prompt{}, fmt.Errorf("%w: project %s slug %s", ErrConflict, p.ProjectID, p.Slug)
		}
		return domain.Prompt{}, err
	}
	return p, nil
}

// CreatePromptWithVersion inserts a prompt and its initial version row in
// one transaction, mirroring the atomicity PublishTx gives later versions.
func (r Repo) CreatePromptWithVersion(ctx context.Context, p domain.Prompt, v domain.Version) (domain.Prompt, error) {
	var out domain.Prompt
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		varSpec, err := marshalJSON(p.VariableSpec)
		if err != nil {
			return err
		}
		tags, err := marshalJSON(p.Tags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO prompts(
			id, project_id, slug, name, description, content, format, template_engine,
			variable_spec_json, tags_json, category, is_shared, current_version, created_by, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			p.ID, p.ProjectID, p.Slug, p.Name, nullableString(p.Description), p.Content, p.Format, p.TemplateEngine,
			varSpec, tags, nullableString(p.Category), boolToInt(p.IsShared), p.CurrentVersion, nullableString(p.CreatedBy), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: project %s slug %s", ErrConflict, p.ProjectID, p.Slug)
			}
			return err
		}
		if _, err := r.CreateVersionTx(ctx, tx, v); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Publish wraps PublishTx in its own transaction for non-transactional
// callers.
func (r Repo) Publish(ctx context.Context, v domain.Version, updatedAt string) (domain.Version, error) {
	var out domain.Version
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		created, err := r.PublishTx(ctx, tx, v, updatedAt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r Repo) GetPrompt(ctx context.Context, id string) (domain.Prompt, error) {
	row := r.DB.QueryRowContext(ctx, promptSelect+` WHERE id=? AND deleted_at IS NULL`, id)
	return scanPrompt(row.Scan)
}

func (r Repo) GetPromptIncludingDeleted(ctx context.Context, id string) (domain.Prompt, error) {
	row := r.DB.QueryRowContext(ctx, promptSelect+` WHERE id=?`, id)
	return scanPrompt(row.Scan)
}

func (r Repo) GetPromptByProjectSlug(ctx context.Context, projectID, slug string) (domain.Prompt, error) {
	row := r.DB.QueryRowContext(ctx, promptSelect+` WHERE project_id=? AND slug=? AND deleted_at IS NULL`, projectID, slug)
	return scanPrompt(row.Scan)
}

// PromptFilters narrows ListPrompts's result set.
type PromptFilters struct {
	ProjectID string
	Slug      string
	Tags      []string
	Category  string
	IsShared  *bool
	Search    string
	SortBy    string // created_at | updated_at | name | slug | current_version
	Order     string // asc | desc
	Offset    int
	Limit     int
}

func (r Repo) ListPrompts(ctx context.Context, f PromptFilters) ([]domain.Prompt, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any

	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Slug != "" {
		where = append(where, "slug = ?")
		args = append(args, f.Slug)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.IsShared != nil {
		where = append(where, "is_shared = ?")
		args = append(args, boolToInt(*f.IsShared))
	}
	if f.Search != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle)
	}
	if len(f.Tags) > 0 {
		tagConds := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			tagConds = append(tagConds, "tags_json LIKE ?")
			args = append(args, "%\""+strings.ToLower(tag)+"\"%")
		}
		where = append(where, "("+strings.Join(tagConds, " OR ")+")")
	}

	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM prompts WHERE ` + clause
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol := sortColumn(f.SortBy)
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, promptSelect, clause, sortCol, order, order)
	args = append(args, limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []domain.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func sortColumn(sortBy string) string {
	switch sortBy {
	case "updated_at", "name", "slug":
		return sortBy
	case "current_version":
		// Natural semver order isn't representable as a lexicographic SQL
		// sort; callers needing exact semver ordering re-sort the page in
		// Go (see engine.sortBySemver). Falling back to created_at keeps
		// pagination stable and cheap at the SQL layer.
		return "created_at"
	default:
		return "created_at"
	}
}

func (r Repo) UpdatePrompt(ctx context.Context, p domain.Prompt) (domain.Prompt, error) {
	varSpec, err := marshalJSON(p.VariableSpec)
	if err != nil {
		return domain.Prompt{}, err
	}
	tags, err := marshalJSON(p.Tags)
	if err != nil {
		return domain.Prompt{}, err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE prompts SET name=?, description=?, content=?, format=?, template_engine=?,
		variable_spec_json=?, tags_json=?, category=?, is_shared=?, updated_at=?
		WHERE id=? AND deleted_at IS NULL`,
		p.Name, nullableString(p.Description), p.Content, p.Format, p.TemplateEngine,
		varSpec, tags, nullableString(p.Category), boolToInt(p.IsShared), p.UpdatedAt, p.ID)
	if err != nil {
		return domain.Prompt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Prompt{}, ErrNotFound
	}
	return r.GetPrompt(ctx, p.ID)
}

func (r Repo) SetPromptShared(ctx context.Context, id string, shared bool, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE prompts SET is_shared=?, updated_at=? WHERE id=? AND deleted_at IS NULL`,
		boolToInt(shared), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SoftDeletePrompt(ctx context.Context, id, deletedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE prompts SET deleted_at=? WHERE id=? AND deleted_at IS NULL`, deletedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Version -----------------------------------------------------------

const versionSelect = `SELECT id, prompt_id, version, content, variable_spec_json, changelog, status, created_by, created_at FROM prompt_versions`

func scanVersion(scan func(dest ...any) error) (domain.Version, error) {
	var v domain.Version
	var changelog, createdBy sql.NullString
	var varSpecJSON string
	err := scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &varSpecJSON, &changelog, &v.Status, &createdBy, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Version{}, ErrNotFound
	}
	if err != nil {
		return domain.Version{}, err
	}
	if changelog.Valid {
		v.Changelog = changelog.String
	}
	if createdBy.Valid {
		v.CreatedBy = createdBy.String
	}
	_ = json.Unmarshal([]byte(varSpecJSON), &v.VariableSpec)
	return v, nil
}

func (r Repo) CreateVersionTx(ctx context.Context, tx *sql.Tx, v domain.Version) (domain.Version, error) {
	varSpec, err := marshalJSON(v.VariableSpec)
	if err != nil {
		return domain.Version{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO prompt_versions(id, prompt_id, version, content, variable_spec_json, changelog, status, created_by, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		v.ID, v.PromptID, v.Version, v.Content, varSpec, nullableString(v.Changelog), v.Status, nullableString(v.CreatedBy), v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Version{}, fmt.Errorf("%w: prompt %s version %s", ErrConflict, v.PromptID, v.Version)
		}
		return domain.Version{}, err
	}
	return v, nil
}

// PublishTx atomically inserts the new published version row and updates
// the owning prompt's current_version + denormalized content mirror.
func (r Repo) PublishTx(ctx context.Context, tx *sql.Tx, v domain.Version, updatedAt string) (domain.Version, error) {
	created, err := r.CreateVersionTx(ctx, tx, v)
	if err != nil {
		return domain.Version{}, err
	}
	varSpec, err := marshalJSON(v.VariableSpec)
	if err != nil {
		return domain.Version{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE prompts SET current_version=?, content=?, variable_spec_json=?, updated_at=? WHERE id=? AND deleted_at IS NULL`,
		v.Version, v.Content, varSpec, updatedAt, v.PromptID)
	if err != nil {
		return domain.Version{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Version{}, ErrNotFound
	}
	return created, nil
}

func (r Repo) GetVersion(ctx context.Context, promptID, version string) (domain.Version, error) {
	row := r.DB.QueryRowContext(ctx, versionSelect+` WHERE prompt_id=? AND version=?`, promptID, version)
	return scanVersion(row.Scan)
}

func (r Repo) ListVersions(ctx context.Context, promptID string) ([]domain.Version, error) {
	rows, err := r.DB.QueryContext(ctx, versionSelect+` WHERE prompt_id=? ORDER BY created_at ASC, id ASC`, promptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Version
	for rows.Next() {
		v, err := scanVersion(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Scene ---------------------------------------------------------------

const sceneSelect = `SELECT id, project_id, slug, name, description, pipeline_json, merge_strategy, separator, output_format, created_by, created_at, updated_at FROM scenes`

func scanScene(scan func(dest ...any) error) (domain.Scene, error) {
	var s domain.Scene
	var desc, outputFormat, createdBy sql.NullString
	var pipelineJSON string
	err := scan(&s.ID, &s.ProjectID, &s.Slug, &s.Name, &desc, &pipelineJSON, &s.MergeStrategy, &s.Separator, &outputFormat, &createdBy, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Scene{}, ErrNotFound
	}
	if err != nil {
		return domain.Scene{}, err
	}
	if desc.Valid {
		s.Description = desc.String
	}
	if outputFormat.Valid {
		s.OutputFormat = outputFormat.String
	}
	if createdBy.Valid {
		s.CreatedBy = createdBy.String
	}
	_ = json.Unmarshal([]byte(pipelineJSON), &s.Pipeline)
	return s, nil
}

func (r Repo) CreateSceneTx(ctx context.Context, tx *sql.Tx, s domain.Scene) (domain.Scene, error) {
	pipeline, err := marshalJSON(s.Pipeline)
	if err != nil {
		return domain.Scene{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO scenes(id, project_id, slug, name, description, pipeline_json, merge_strategy, separator, output_format, created_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Slug, s.Name, nullableString(s.Description), pipeline, s.MergeStrategy, s.Separator, nullableString(s.OutputFormat), nullableString(s.CreatedBy), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Scene{}, fmt.Errorf("%w: project %s slug %s", ErrConflict, s.ProjectID, s.Slug)
		}
		return domain.Scene{}, err
	}
	return s, nil
}

func (r Repo) UpdateSceneTx(ctx context.Context, tx *sql.Tx, s domain.Scene) (domain.Scene, error) {
	pipeline, err := marshalJSON(s.Pipeline)
	if err != nil {
		return domain.Scene{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE scenes SET name=?, description=?, pipeline_json=?, merge_strategy=?, separator=?, output_format=?, updated_at=?
		WHERE id=?`,
		s.Name, nullableString(s.Description), pipeline, s.MergeStrategy, s.Separator, nullableString(s.OutputFormat), s.UpdatedAt, s.ID)
	if err != nil {
		return domain.Scene{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Scene{}, ErrNotFound
	}
	return s, nil
}

// CreateSceneWithRefs inserts a scene and materializes its Reference Index
// edges in one transaction.
func (r Repo) CreateSceneWithRefs(ctx context.Context, s domain.Scene, refs []domain.PromptRef) (domain.Scene, error) {
	var out domain.Scene
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		created, err := r.CreateSceneTx(ctx, tx, s)
		if err != nil {
			return err
		}
		if err := r.ReplaceSceneRefsTx(ctx, tx, s.ID, refs); err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// UpdateSceneWithRefs updates a scene and re-materializes its Reference
// Index edges in one transaction (delete-then-insert per
// ReplaceSceneRefsTx).
func (r Repo) UpdateSceneWithRefs(ctx context.Context, s domain.Scene, refs []domain.PromptRef) (domain.Scene, error) {
	var out domain.Scene
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		updated, err := r.UpdateSceneTx(ctx, tx, s)
		if err != nil {
			return err
		}
		if err := r.ReplaceSceneRefsTx(ctx, tx, s.ID, refs); err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

func (r Repo) GetScene(ctx context.Context, id string) (domain.Scene, error) {
	row := r.DB.QueryRowContext(ctx, sceneSelect+` WHERE id=?`, id)
	return scanScene(row.Scan)
}

func (r Repo) GetSceneByProjectSlug(ctx context.Context, projectID, slug string) (domain.Scene, error) {
	row := r.DB.QueryRowContext(ctx, sceneSelect+` WHERE project_id=? AND slug=?`, projectID, slug)
	return scanScene(row.Scan)
}

func (r Repo) ListScenes(ctx context.Context, projectID string, offset, limit int) ([]domain.Scene, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE project_id=?`, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, sceneSelect+` WHERE project_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []domain.Scene
	for rows.Next() {
		s, err := scanScene(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r Repo) DeleteScene(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM scenes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- PromptRef (Reference Index) -----------------------------------------

// ReplaceSceneRefsTx atomically replaces all edges sourced from a scene's
// pipeline using a delete-then-bulk-insert. Called inside the same
// transaction as the scene write.
func (r Repo) ReplaceSceneRefsTx(ctx context.Context, tx *sql.Tx, sceneID string, refs []domain.PromptRef) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_refs WHERE source_scene_id=?`, sceneID); err != nil {
		return err
	}
	for _, ref := range refs {
		override, err := marshalJSON(ref.OverrideConfig)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO prompt_refs(
			id, source_scene_id, source_step_id, source_prompt_id, target_prompt_id,
			source_project_id, target_project_id, ref_type, pinned_version, override_config_json, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			ref.ID, nullableString(ref.SourceSceneID), nullableString(ref.SourceStepID), nullableString(ref.SourcePromptID), ref.TargetPromptID,
			nullableString(ref.SourceProjectID), ref.TargetProjectID, ref.RefType, nullableString(ref.PinnedVersion), override, ref.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

const promptRefSelect = `SELECT id, source_scene_id, source_step_id, source_prompt_id, target_prompt_id,
	source_project_id, target_project_id, ref_type, pinned_version, override_config_json, created_at FROM prompt_refs`

func scanPromptRef(scan func(dest ...any) error) (domain.PromptRef, error) {
	var ref domain.PromptRef
	var sourceScene, sourceStep, sourcePrompt, sourceProject, pinned sql.NullString
	var overrideJSON string
	err := scan(&ref.ID, &sourceScene, &sourceStep, &sourcePrompt, &ref.TargetPromptID,
		&sourceProject, &ref.TargetProjectID, &ref.RefType, &pinned, &overrideJSON, &ref.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.PromptRef{}, ErrNotFound
	}
	if err != nil {
		return domain.PromptRef{}, err
	}
	ref.SourceSceneID = sourceScene.String
	ref.SourceStepID = sourceStep.String
	ref.SourcePromptID = sourcePrompt.String
	ref.SourceProjectID = sourceProject.String
	ref.PinnedVersion = pinned.String
	_ = json.Unmarshal([]byte(overrideJSON), &ref.OverrideConfig)
	return ref, nil
}

// OutEdges returns prompt-to-prompt refs whose source_prompt_id is promptID;
// scene-step refs (source_scene_id set) are not included. The resolver
// follows these edges as hidden prerequisites.
func (r Repo) OutEdges(ctx context.Context, promptID string) ([]domain.PromptRef, error) {
	rows, err := r.DB.QueryContext(ctx, promptRefSelect+` WHERE source_prompt_id=?`, promptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromptRefRows(rows)
}

// InEdges returns refs that target promptID.
func (r Repo) InEdges(ctx context.Context, promptID string) ([]domain.PromptRef, error) {
	rows, err := r.DB.QueryContext(ctx, promptRefSelect+` WHERE target_prompt_id=?`, promptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromptRefRows(rows)
}

// RefsForScene returns the materialized edges sourced from one scene.
func (r Repo) RefsForScene(ctx context.Context, sceneID string) ([]domain.PromptRef, error) {
	rows, err := r.DB.QueryContext(ctx, promptRefSelect+` WHERE source_scene_id=?`, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromptRefRows(rows)
}

func scanPromptRefRows(rows *sql.Rows) ([]domain.PromptRef, error) {
	var out []domain.PromptRef
	for rows.Next() {
		ref, err := scanPromptRef(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// --- CallLog ---------------------------------------------------------------

func (r Repo) InsertCallLog(ctx context.Context, c domain.CallLog) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO call_logs(
		prompt_id, scene_id, resolved_version, caller_system, caller_id,
		input_variables_json, rendered_content, token_estimate, elapsed_ms, quality_score, created_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		nullableStringPtr(c.PromptID), nullableStringPtr(c.SceneID), nullableString(c.ResolvedVersion), nullableString(c.CallerSystem), nullableString(c.CallerID),
		nullableString(c.InputVariables), nullableString(c.RenderedContent), c.TokenEstimate, c.ElapsedMS, c.QualityScore, c.CreatedAt)
	return err
}
