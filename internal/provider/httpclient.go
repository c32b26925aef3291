package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// apiClient is the shared HTTP plumbing for the remote providers: JSON in,
// JSON out, per-provider auth header, request/response logging.
type apiClient struct {
	http       *http.Client
	baseURL    string
	authHeader string
	authValue  string
	log        *logrus.Logger
	name       string
}

func newAPIClient(name, baseURL, authHeader, authValue string, log *logrus.Logger) *apiClient {
	return &apiClient{
		http:       &http.Client{Timeout: 120 * time.Second},
		baseURL:    baseURL,
		authHeader: authHeader,
		authValue:  authValue,
		log:        log,
		name:       name,
	}
}

func (c *apiClient) post(ctx context.Context, endpoint string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *apiClient) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *apiClient) do(req *http.Request, result any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.authHeader, c.authValue)

	log := c.log.WithFields(logrus.Fields{
		"provider": c.name,
		"method":   req.Method,
		"url":      req.URL.String(),
	})
	log.Debug("provider request")

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("provider request failed")
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("provider error response")
		return fmt.Errorf("%s API error (status %d): %s", c.name, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", c.name, err)
	}
	return nil
}
