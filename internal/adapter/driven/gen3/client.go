// Package gen3 implements the SubmissionAPI port over HTTP.
package gen3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SubmissionAPI = (*Client)(nil)

const (
	accessTokenPath = "/user/credentials/cdis/access_token"

	// maxErrorBody bounds how much of a non-2xx body is kept in HTTPError.
	maxErrorBody = 512
)

// Client implements the driven.SubmissionAPI port. It issues exactly one
// request per call and never retries.
type Client struct {
	http    *http.Client
	baseURL string // Optional override; empty means derive from the api_key issuer.
	logger  *slog.Logger
}

// NewClient creates a Client. A zero timeout leaves requests unbounded except
// by the caller's context. baseURL may be empty.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout}, baseURL, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ResolveBaseURL returns the configured base URL, or the one inferred from
// the credential's token when none is configured.
func (c *Client) ResolveBaseURL(cred model.Credential) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	return IssuerURL(cred)
}

// RequestAccessToken posts the credential to the access token endpoint and
// returns the access_token field of the response.
func (c *Client) RequestAccessToken(ctx context.Context, baseURL string, cred model.Credential) (string, error) {
	body, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("marshal credential: %w", err)
	}

	endpoint := strings.TrimRight(baseURL, "/") + accessTokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create access token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req, slog.LevelDebug)
	if err != nil {
		return "", err
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode access token response: %w", err)
	}
	token, ok := payload["access_token"].(string)
	if !ok || token == "" {
		return "", &model.MissingFieldError{Field: "access_token", Context: "access token response"}
	}
	return token, nil
}

// Export fetches a node export in JSON format.
func (c *Client) Export(ctx context.Context, baseURL string, headers model.AuthHeaders, q model.ExportQuery) (*model.Dataset, error) {
	endpoint := ExportURL(baseURL, q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create export request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	headers.Apply(req)

	data, err := c.do(req, slog.LevelInfo)
	if err != nil {
		return nil, err
	}

	return model.NewDataset(q.Key, data, time.Now().UTC())
}

// ExportURL builds the export endpoint for q under baseURL.
func ExportURL(baseURL string, q model.ExportQuery) string {
	return fmt.Sprintf("%s/api/%s/submission/%s/%s/export/?node_label=%s&format=json",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(q.Version()),
		url.PathEscape(q.Key.Program),
		url.PathEscape(q.Key.Project),
		url.QueryEscape(q.Key.NodeLabel),
	)
}

// do sends req and returns the body of a 2xx response. Any other status is
// returned as a *model.HTTPError. The response status is logged at level.
func (c *Client) do(req *http.Request, level slog.Level) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	c.logger.Log(req.Context(), level, "gen3 api call",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status_code", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &model.HTTPError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", req.URL.Redacted(), err)
	}
	return data, nil
}
