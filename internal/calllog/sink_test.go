package calllog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/HyxiaoGe/prompthub/internal/db"
	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/migrate"
	"github.com/HyxiaoGe/prompthub/internal/repo"
)

func openTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return repo.New(conn)
}

func seedPromptForLogging(t *testing.T, r repo.Repo) {
	t.Helper()
	_, err := r.CreateProject(context.Background(), domain.Project{
		ID: "proj1", Slug: "proj1", Name: "proj1", CreatedAt: "t0", UpdatedAt: "t0",
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	_, err = r.CreatePrompt(context.Background(), domain.Prompt{
		ID: "p1", ProjectID: "proj1", Slug: "p1", Name: "p1", CurrentVersion: "1.0.0", CreatedAt: "t0", UpdatedAt: "t0",
	})
	if err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
}

func waitForCallLogCount(t *testing.T, conn *sql.DB, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var n int
		if err := conn.QueryRow(`SELECT COUNT(*) FROM call_logs`).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d call log rows", want)
}

func TestAcceptDrainsToRepo(t *testing.T) {
	r := openTestRepo(t)
	seedPromptForLogging(t, r)

	s := New(r, 8, 0, nil)
	defer s.Close()

	promptID := "p1"
	s.Accept(domain.CallLog{PromptID: &promptID, ResolvedVersion: "1.0.0", RenderedContent: "hi", CreatedAt: "t0"})

	waitForCallLogCount(t, r.DB, 1)
	if s.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", s.Dropped())
	}
}

func TestAcceptTruncatesRenderedContent(t *testing.T) {
	r := openTestRepo(t)
	seedPromptForLogging(t, r)

	s := New(r, 8, 4, nil)
	defer s.Close()

	promptID := "p1"
	s.Accept(domain.CallLog{PromptID: &promptID, RenderedContent: "abcdefgh", CreatedAt: "t0"})
	waitForCallLogCount(t, r.DB, 1)

	var content string
	if err := r.DB.QueryRow(`SELECT rendered_content FROM call_logs LIMIT 1`).Scan(&content); err != nil {
		t.Fatalf("query: %v", err)
	}
	if content != "abcd" {
		t.Fatalf("content = %q, want truncated to 4 chars", content)
	}
}

func TestAcceptDropsOldestOnFullQueue(t *testing.T) {
	s := &Sink{queue: make(chan domain.CallLog, 2), done: make(chan struct{})}
	// No drain goroutine running: queue fills deterministically without a race
	// against the background consumer.
	s.Accept(domain.CallLog{RenderedContent: "one"})
	s.Accept(domain.CallLog{RenderedContent: "two"})
	s.Accept(domain.CallLog{RenderedContent: "three"})

	if s.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", s.Dropped())
	}
	if len(s.queue) != 2 {
		t.Fatalf("queue len = %d, want 2", len(s.queue))
	}
	first := <-s.queue
	if first.RenderedContent != "two" {
		t.Fatalf("expected oldest ('one') dropped, got queue head %q", first.RenderedContent)
	}
}
