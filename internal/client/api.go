// Package client talks to the Confab server: job submission and status
// queries over HTTP, and the realtime event stream over WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/confab-dev/confab-go/internal/models"
)

// Client is an HTTP client for the Confab job API. It implements
// jobs.StatusQuerier.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a job API client. If baseURL is empty, uses CONFAB_SERVER_URL
// or defaults to localhost:8787. Timeout can be configured via
// CONFAB_CLIENT_TIMEOUT (default 30s).
func New(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CONFAB_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8787"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("CONFAB_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// submitResponse is the payload returned by the submission endpoint.
type submitResponse struct {
	JobID string `json:"jobId"`
}

// apiError is the error payload returned by the server.
type apiError struct {
	Error string `json:"error"`
}

// SubmitJob submits a new async job and returns its id. The caller is
// expected to hand the id to the poll supervisor immediately.
func (c *Client) SubmitJob(ctx context.Context, input models.JobInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal job input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	var out submitResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("submit %s job: %w", input.Type, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit %s job: server returned no job id", input.Type)
	}

	c.logger.Info("job submitted", "job_id", out.JobID, "type", input.Type)
	return out.JobID, nil
}

// JobStatus fetches the current status of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	var snap models.JobSnapshot
	if err := c.do(req, &snap); err != nil {
		return nil, fmt.Errorf("job status %s: %w", jobID, err)
	}
	return &snap, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, ae.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
