package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/resolver"
)

func TestFingerprintStableAcrossVariableKeyOrder(t *testing.T) {
	plan := []resolver.PlanVersionEntry{{PromptID: "p2", Version: "1.0.0"}, {PromptID: "p1", Version: "2.0.0"}}
	f1, err := Fingerprint("scene1", map[string]any{"a": 1, "b": 2}, "proj", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := Fingerprint("scene1", map[string]any{"b": 2, "a": 1}, "proj", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f1 != f2 {
		t.Fatalf("fingerprints differ despite equivalent input: %s vs %s", f1, f2)
	}
}

func TestFingerprintDiffersOnDifferentVariables(t *testing.T) {
	plan := []resolver.PlanVersionEntry{{PromptID: "p1", Version: "1.0.0"}}
	f1, _ := Fingerprint("scene1", map[string]any{"a": 1}, "proj", plan)
	f2, _ := Fingerprint("scene1", map[string]any{"a": 2}, "proj", plan)
	if f1 == f2 {
		t.Fatal("expected distinct fingerprints for distinct variables")
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(16, time.Minute)
	var calls atomic.Int64
	compute := func(ctx context.Context) (Entry, error) {
		calls.Add(1)
		return Entry{Result: domain.SceneResolveResult{FinalContent: "hi"}}, nil
	}

	e1, err := c.GetOrCompute(context.Background(), "fp1", compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e2, err := c.GetOrCompute(context.Background(), "fp1", compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("compute called %d times, want 1", calls.Load())
	}
	if e1.Result.FinalContent != e2.Result.FinalContent {
		t.Fatal("expected identical cached results")
	}
}

func TestGetOrComputeSingleFlightCollapsesConcurrentCalls(t *testing.T) {
	c := New(16, time.Minute)
	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) (Entry, error) {
		calls.Add(1)
		<-release
		return Entry{Result: domain.SceneResolveResult{FinalContent: "slow"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrCompute(context.Background(), "shared-key", compute)
		}()
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("compute called %d times, want exactly 1 under single-flight", calls.Load())
	}
}

func TestInvalidatePromptRemovesMatchingEntries(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	_, _ = c.GetOrCompute(ctx, "k1", func(ctx context.Context) (Entry, error) {
		return Entry{PlanVersion: []resolver.PlanVersionEntry{{PromptID: "p1", Version: "1.0.0"}}}, nil
	})
	_, _ = c.GetOrCompute(ctx, "k2", func(ctx context.Context) (Entry, error) {
		return Entry{PlanVersion: []resolver.PlanVersionEntry{{PromptID: "p2", Version: "1.0.0"}}}, nil
	})

	c.InvalidatePrompt("p1")
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1 after invalidating p1", c.Len())
	}
}

func TestInvalidateSceneRemovesMatchingEntries(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	_, _ = c.GetOrCompute(ctx, "k1", func(ctx context.Context) (Entry, error) {
		return Entry{SceneID: "scene-a"}, nil
	})
	_, _ = c.GetOrCompute(ctx, "k2", func(ctx context.Context) (Entry, error) {
		return Entry{SceneID: "scene-b"}, nil
	})

	c.InvalidateScene("scene-a")
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1 after invalidating scene-a", c.Len())
	}
}

func TestGetOrComputePropagatesError(t *testing.T) {
	c := New(16, time.Minute)
	wantErr := domain.NewInternalError("boom", "")
	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (Entry, error) {
		return Entry{}, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if c.Len() != 0 {
		t.Fatal("failed compute must not populate the cache")
	}
}
