package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Client talks to a running daemon. The CLI uses it.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Train asks the daemon to start a job. overrides may be nil.
// A running job yields domain.ErrAlreadyRunning.
func (c *Client) Train(ctx context.Context, overrides map[string]any) (TrainResponse, error) {
	var out TrainResponse
	var body io.Reader
	if len(overrides) > 0 {
		data, err := json.Marshal(overrides)
		if err != nil {
			return out, fmt.Errorf("encode overrides: %w", err)
		}
		body = bytes.NewReader(data)
	}
	status, data, err := c.do(ctx, http.MethodPost, "/train", body)
	if err != nil {
		return out, err
	}
	switch status {
	case http.StatusOK:
		return out, json.Unmarshal(data, &out)
	case http.StatusBadRequest:
		if json.Unmarshal(data, &out) == nil && out.Message == MsgAlreadyRunning {
			return out, domain.ErrAlreadyRunning
		}
	}
	return out, apiError(status, data)
}

// Stop cancels the running job; domain.ErrNoActiveJob when idle.
func (c *Client) Stop(ctx context.Context) (TrainResponse, error) {
	var out TrainResponse
	status, data, err := c.do(ctx, http.MethodPost, "/train/stop", nil)
	if err != nil {
		return out, err
	}
	switch status {
	case http.StatusOK:
		return out, json.Unmarshal(data, &out)
	case http.StatusNotFound:
		return out, domain.ErrNoActiveJob
	}
	return out, apiError(status, data)
}

// Status queries liveness of the current job.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	status, data, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		return out, apiError(status, data)
	}
	return out, json.Unmarshal(data, &out)
}

// Jobs lists job records, newest first.
func (c *Client) Jobs(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	path := "/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	status, data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, data)
	}
	var out JobsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Job fetches one job record; domain.ErrJobNotFound for unknown ids.
func (c *Client) Job(ctx context.Context, id string) (*domain.JobRecord, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var out domain.JobRecord
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return nil, apiError(status, data)
}

// do sends a request and returns the status code and body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("daemon unreachable at %s (is 'tutu-gym serve' running?): %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// apiError turns an unexpected response into an error carrying the
// server's message.
func apiError(status int, data []byte) error {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	return fmt.Errorf("daemon: %s (HTTP %d)", msg, status)
}
