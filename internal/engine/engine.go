// Package engine is the business-logic orchestration layer: multi-step
// transactional operations over the repo, wired to the render, resolver,
// cache, and calllog packages. It is a struct wrapping DB/Repo/Config plus
// a Now func() time.Time seam for deterministic tests.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/HyxiaoGe/prompthub/internal/cache"
	"github.com/HyxiaoGe/prompthub/internal/calllog"
	"github.com/HyxiaoGe/prompthub/internal/config"
	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/repo"
)

// Engine bundles everything a request handler needs to execute one
// operation: persistence, the resolve cache, the async call-log sink, and
// the active configuration.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Cache   *cache.Cache
	CallLog *calllog.Sink
	Config  *config.Config
	Now     func() time.Time
}

// New wires an Engine from an open database and loaded config.
func New(db *sql.DB, cfg *config.Config, logger *log.Logger) Engine {
	r := repo.New(db)
	return Engine{
		DB:      db,
		Repo:    r,
		Cache:   cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		CallLog: calllog.New(r, cfg.CallLog.QueueDepth, cfg.CallLog.ContentMaxLength, logger),
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID() string {
	return uuid.NewString()
}

func isConflict(err error) bool {
	return errors.Is(err, repo.ErrConflict)
}

// --- Project -----------------------------------------------------------

func (e Engine) CreateProject(ctx context.Context, slug, name, actorID string) (domain.Project, error) {
	now := e.nowString()
	p := domain.Project{ID: newID(), Slug: slug, Name: name, CreatedBy: actorID, CreatedAt: now, UpdatedAt: now}
	created, err := e.Repo.CreateProject(ctx, p)
	if err != nil {
		if isConflict(err) {
			return domain.Project{}, domain.NewConflictError("project slug already exists", slug)
		}
		return domain.Project{}, domain.NewInternalError("create project failed", err.Error())
	}
	return created, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Project{}, domain.NewNotFoundError("project not found", id)
		}
		return domain.Project{}, domain.NewInternalError("get project failed", err.Error())
	}
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	out, err := e.Repo.ListProjects(ctx)
	if err != nil {
		return nil, domain.NewInternalError("list projects failed", err.Error())
	}
	return out, nil
}
