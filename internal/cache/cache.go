// Package cache implements a TTL'd resolve cache keyed by a canonical
// fingerprint of (scene, variables, caller project, resolved plan-version
// tuple), with single-flight collapse of concurrent identical computations
// and precise invalidation on prompt/scene writes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/resolver"
)

// Entry is one cached resolve result, tagged with the plan-version tuple it
// was computed from so writes can invalidate precisely.
type Entry struct {
	Result      domain.SceneResolveResult
	SceneID     string
	PlanVersion []resolver.PlanVersionEntry
}

// Cache is single-writer safe: reads and writes to the underlying LRU are
// already synchronized by golang-lru/v2, and concurrent computes for the
// same fingerprint collapse via singleflight.
type Cache struct {
	store *lru.LRU[string, Entry]
	group singleflight.Group
}

// New builds a TTL'd Resolve Cache with the given max entry count and TTL.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{store: lru.NewLRU[string, Entry](maxEntries, nil, ttl)}
}

// Fingerprint computes the stable cache key: scene id, canonical JSON of
// variables (Go's encoding/json already sorts map keys on marshal, so no
// extra canonicalization is needed), caller project id, and the resolved
// plan-version tuple.
func Fingerprint(sceneID string, variables map[string]any, callerProjectID string, planVersion []resolver.PlanVersionEntry) (string, error) {
	sorted := append([]resolver.PlanVersionEntry{}, planVersion...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PromptID < sorted[j].PromptID })

	payload := struct {
		SceneID   string                          `json:"scene_id"`
		Variables map[string]any                  `json:"variables"`
		Caller    string                          `json:"caller_project_id"`
		Plan      []resolver.PlanVersionEntry      `json:"plan_version"`
	}{SceneID: sceneID, Variables: variables, Caller: callerProjectID, Plan: sorted}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetOrCompute returns the cached entry for fingerprint if present and
// fresh, otherwise calls compute exactly once even under concurrent
// requests for the same fingerprint (single-flight), stores the result, and
// returns it.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, compute func(ctx context.Context) (Entry, error)) (Entry, error) {
	if entry, ok := c.store.Get(fingerprint); ok {
		return entry, nil
	}
	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		if entry, ok := c.store.Get(fingerprint); ok {
			return entry, nil
		}
		entry, err := compute(ctx)
		if err != nil {
			return Entry{}, err
		}
		c.store.Add(fingerprint, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// InvalidatePrompt removes every cached entry whose plan-version tuple
// contains promptID — precise invalidation on prompt update/delete/
// publish/share, never a blanket flush.
func (c *Cache) InvalidatePrompt(promptID string) {
	for _, key := range c.store.Keys() {
		entry, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		for _, pv := range entry.PlanVersion {
			if pv.PromptID == promptID {
				c.store.Remove(key)
				break
			}
		}
	}
}

// InvalidateScene removes every cached entry for sceneID — precise
// invalidation on scene update/delete.
func (c *Cache) InvalidateScene(sceneID string) {
	for _, key := range c.store.Keys() {
		entry, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		if entry.SceneID == sceneID {
			c.store.Remove(key)
		}
	}
}

// Len reports the number of entries currently cached, exposed for tests and
// observability.
func (c *Cache) Len() int {
	return c.store.Len()
}
