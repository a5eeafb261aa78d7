// Package client provides the HTTP client for the Rikugan REST API.
// The WebSocket stream has its own client in the console package; this
// covers model control, health, and plain inference.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client connects to a Rikugan server's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8321"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// BaseURL returns the server address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// APIError is a structured error returned by the server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health is the response from GET /health.
type Health struct {
	Status  string `json:"status"`
	ModelID string `json:"model_id"`
}

// Model describes one registered model capability.
type Model struct {
	ID          string   `json:"adapter_id"`
	DisplayName string   `json:"display_name"`
	Aliases     []string `json:"aliases"`
	Layers      int      `json:"layers"`
	DModel      int      `json:"d_model"`
	MaxSeqLen   int      `json:"max_seq_len"`
	Parameters  string   `json:"parameters_approx"`
	Loaded      bool     `json:"loaded"`
}

// ModelAction is the response from model load/unload.
type ModelAction struct {
	Status    string `json:"status"`
	AdapterID string `json:"adapter_id"`
	Message   string `json:"message"`
}

// InferenceResult is the response from plain inference.
type InferenceResult struct {
	Prompt        string `json:"prompt"`
	GeneratedText string `json:"generated_text"`
	ModelID       string `json:"model_id"`
}

// Health fetches the server health and active model.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels fetches all registered models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var out struct {
		Models []Model `json:"models"`
	}
	if err := c.get(ctx, "/api/models", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// GetModel fetches one model descriptor by name or alias.
func (c *Client) GetModel(ctx context.Context, name string) (*Model, error) {
	var out Model
	if err := c.get(ctx, "/api/models/"+name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadModel loads a model into the server's session slot.
func (c *Client) LoadModel(ctx context.Context, name string) (*ModelAction, error) {
	var out ModelAction
	if err := c.post(ctx, "/api/models/"+name+"/load", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnloadModel unloads a model if it is active.
func (c *Client) UnloadModel(ctx context.Context, name string) (*ModelAction, error) {
	var out ModelAction
	if err := c.post(ctx, "/api/models/"+name+"/unload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run performs plain inference without activation capture.
func (c *Client) Run(ctx context.Context, prompt string, maxNewTokens int) (*InferenceResult, error) {
	req := map[string]any{
		"prompt":         prompt,
		"max_new_tokens": maxNewTokens,
	}
	var out InferenceResult
	if err := c.post(ctx, "/api/inference/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) post(ctx context.Context, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, target)
}

// do runs the request and unwraps the response envelope. Server-side
// failures come back as *APIError so callers can inspect the code.
func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, string(respBody))
	}
	if !env.Success {
		if env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if target != nil {
		return json.Unmarshal(env.Data, target)
	}
	return nil
}
