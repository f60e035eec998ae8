package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HyxiaoGe/prompthub/internal/config"
	"github.com/HyxiaoGe/prompthub/internal/db"
	"github.com/HyxiaoGe/prompthub/internal/engine"
	"github.com/HyxiaoGe/prompthub/internal/migrate"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	eng := engine.New(conn, config.Default(), nil)
	t.Cleanup(func() { eng.CallLog.Close() })

	h, err := New(Config{Engine: eng, BasePath: "/api/v1", Auth: AuthConfig{AllowLegacyActorHeader: true}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return h
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "actor1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzDoesNotRequireAuth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMissingAuthIsRejected(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateAndGetProjectEnvelope(t *testing.T) {
	h := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/projects", map[string]string{"slug": "demo", "name": "Demo"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Code != 0 {
		t.Fatalf("code = %d, want 0: %s", created.Code, rec.Body.String())
	}
	data := created.Data.(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("expected project id in response: %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/projects/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateProjectDuplicateSlugReturnsConflictEnvelope(t *testing.T) {
	h := newTestHandler(t)
	body := map[string]string{"slug": "dup", "name": "Dup"}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/projects", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first create status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/v1/projects", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	var errBody envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errBody.Code != int(40900) {
		t.Fatalf("code = %d, want 40900", errBody.Code)
	}
}

type envelope struct {
	Code    int `json:"code"`
	Message string `json:"message"`
	Data    any `json:"data"`
}
