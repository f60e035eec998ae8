// Package prompthubsdk is a minimal Go client for the PromptHub HTTP API.
package prompthubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal PromptHub HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api/v1",
		Timeout:  10 * time.Second,
	}
}

// Prompt mirrors the API's prompt representation (partial). The API's
// prompt carries no status field, so Status stays empty.
type Prompt struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	IsShared       bool   `json:"is_shared"`
	Status         string `json:"status"`
}

// Version mirrors the API's version representation (partial).
type Version struct {
	ID              string `json:"id"`
	PromptID        string `json:"prompt_id"`
	Version         string `json:"version"`
	Content         string `json:"content"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// Scene mirrors the API's scene representation (partial).
type Scene struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
}

// ResolveResult mirrors a resolved scene response. The resolve response
// carries no plan_version or cached field, so PlanVersion and Cached stay
// at their zero values.
type ResolveResult struct {
	SceneID       string         `json:"scene_id"`
	FinalContent  string         `json:"final_content"`
	PlanVersion   []PlanEntry    `json:"plan_version"`
	Cached        bool           `json:"cached"`
	TokenEstimate int            `json:"total_token_estimate"`
	StepResults   []StepResult   `json:"steps,omitempty"`
}

// PlanEntry names a prompt+version bound during resolution.
type PlanEntry struct {
	PromptID string `json:"prompt_id"`
	Version  string `json:"version"`
}

// StepResult is one pipeline step's rendered output.
type StepResult struct {
	StepID          string `json:"step_id"`
	PromptID        string `json:"prompt_id"`
	Version         string `json:"version"`
	RenderedContent string `json:"rendered_content"`
	Skipped         bool   `json:"skipped"`
}

// envelope mirrors the API's {code,message,data} response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError wraps a non-success envelope or non-2xx transport response.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%d message=%s", e.StatusCode, e.Code, e.Message)
}

// CreatePrompt creates a prompt with its initial version.
func (c *Client) CreatePrompt(ctx context.Context, projectID, slug, name, content string) (Prompt, error) {
	body := map[string]any{
		"project_id": projectID,
		"slug":       slug,
		"name":       name,
		"content":    content,
	}
	var resp Prompt
	err := c.do(ctx, http.MethodPost, "/prompts", body, &resp)
	return resp, err
}

// GetPrompt fetches a prompt by id.
func (c *Client) GetPrompt(ctx context.Context, id string) (Prompt, error) {
	var resp Prompt
	err := c.do(ctx, http.MethodGet, "/prompts/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Publish bumps and publishes a new version of a prompt.
func (c *Client) Publish(ctx context.Context, promptID, bump, content, changelog string) (Version, error) {
	body := map[string]any{
		"bump":      bump,
		"content":   content,
		"changelog": changelog,
	}
	var resp Version
	endpoint := fmt.Sprintf("/prompts/%s/publish", url.PathEscape(promptID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RenderPrompt renders a single prompt version with the given variables.
func (c *Client) RenderPrompt(ctx context.Context, promptID, version string, variables map[string]any) (map[string]any, error) {
	body := map[string]any{
		"version":   version,
		"variables": variables,
	}
	var resp map[string]any
	endpoint := fmt.Sprintf("/prompts/%s/render", url.PathEscape(promptID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateScene creates a scene from a pipeline definition.
func (c *Client) CreateScene(ctx context.Context, projectID, slug, name string, pipeline []map[string]any) (Scene, error) {
	body := map[string]any{
		"project_id": projectID,
		"slug":       slug,
		"name":       name,
		"pipeline":   map[string]any{"steps": pipeline},
	}
	var resp Scene
	err := c.do(ctx, http.MethodPost, "/scenes", body, &resp)
	return resp, err
}

// ResolveScene resolves a scene's pipeline into final rendered content.
func (c *Client) ResolveScene(ctx context.Context, sceneID string, variables map[string]any) (ResolveResult, error) {
	body := map[string]any{"variables": variables}
	var resp ResolveResult
	endpoint := fmt.Sprintf("/scenes/%s/resolve", url.PathEscape(sceneID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListShared browses the shared prompt repository.
func (c *Client) ListShared(ctx context.Context, page, pageSize int) ([]Prompt, error) {
	endpoint := fmt.Sprintf("/shared/prompts?page=%d&page_size=%d", page, pageSize)
	var resp []Prompt
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ForkShared copies a shared prompt into another project.
func (c *Client) ForkShared(ctx context.Context, sourceID, targetProjectID, slug string) (Prompt, error) {
	body := map[string]any{
		"target_project_id": targetProjectID,
		"slug":              slug,
	}
	var resp Prompt
	endpoint := fmt.Sprintf("/shared/prompts/%s/fork", url.PathEscape(sourceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	fullURL := c.base() + c.path(endpoint)
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) path(endpoint string) string {
	base := strings.TrimRight(c.BasePath, "/")
	if base == "" {
		base = "/api/v1"
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
