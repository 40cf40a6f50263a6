package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultBaseURL is the public Piston endpoint, usable without an API key.
const DefaultBaseURL = "https://emkc.org/api/v2/piston/execute"

type (
	// Result is the outcome of one remote execution, delivered as-is to the
	// whole room.
	Result struct {
		Success  bool   `json:"success"`
		Output   string `json:"output"`
		Language string `json:"language"`
	}

	// Runner is the narrow remote-execution collaborator.
	Runner interface {
		Run(ctx context.Context, language, code string) (*Result, error)
	}

	executeRequest struct {
		Language string        `json:"language"`
		Version  string        `json:"version"`
		Files    []executeFile `json:"files"`
	}

	executeFile struct {
		Content string `json:"content"`
	}

	executeResponse struct {
		Run struct {
			Output string `json:"output"`
		} `json:"run"`
		Message string `json:"message"`
	}
)

// Client executes code through the Piston HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClientFromEnv builds a client from PISTON_API_URL, falling back to the
// public endpoint.
func NewClientFromEnv() *Client {
	baseURL := os.Getenv("PISTON_API_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewClient(baseURL)
}

// NewClient builds a client for the given Piston endpoint.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run submits the source text and returns the combined stdout/stderr output.
// A response without run output is an execution failure.
func (c *Client) Run(ctx context.Context, language, code string) (*Result, error) {
	payload := executeRequest{
		Language: language,
		Version:  "*", // latest version available on Piston
		Files:    []executeFile{{Content: code}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execution request failed: %w", err)
	}
	defer resp.Body.Close()

	var result executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode execute response: %w", err)
	}

	if result.Run.Output == "" {
		if result.Message != "" {
			return nil, fmt.Errorf("%s", result.Message)
		}
		return nil, fmt.Errorf("unknown execution error occurred")
	}

	return &Result{
		Success:  true,
		Output:   result.Run.Output,
		Language: language,
	}, nil
}
