// Package partner integrates with the external partner platform that mirrors
// patient registrations. Mirroring is best-effort: a partner failure never
// blocks the local operation, it is only logged.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const requestTimeout = 10 * time.Second

// RegisterRequest is the payload sent to the partner registration endpoint.
type RegisterRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// RegisterResult carries the partner's identifier for the mirrored patient.
type RegisterResult struct {
	PatientID string `json:"PatientID"`
}

// envelope is the lambda-style wrapper some partner deployments respond with:
// the real payload is a JSON string under "body".
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Client talks to the partner registration API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a partner client. An empty baseURL disables mirroring:
// RegisterPatient returns immediately with no result.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger.With().Str("component", "partner").Logger(),
	}
}

// Enabled reports whether a partner endpoint is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// RegisterPatient mirrors a patient registration to the partner platform and
// returns the partner's patient identifier. The request is bounded by the
// client timeout and the caller's context.
func (c *Client) RegisterPatient(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !c.Enabled() {
		return nil, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal partner request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build partner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call partner API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read partner response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("partner API returned status %d", resp.StatusCode)
	}

	result, err := parseResult(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("partner_patient_id", result.PatientID).
		Msg("patient mirrored to partner platform")
	return result, nil
}

// parseResult handles both response shapes: the result object directly, or
// wrapped in a lambda envelope with the object serialized into "body".
func parseResult(body []byte) (*RegisterResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Body != "" {
		if env.StatusCode != 0 && (env.StatusCode < 200 || env.StatusCode >= 300) {
			return nil, fmt.Errorf("partner API returned enveloped status %d", env.StatusCode)
		}
		var result RegisterResult
		if err := json.Unmarshal([]byte(env.Body), &result); err != nil {
			return nil, fmt.Errorf("decode partner envelope body: %w", err)
		}
		return &result, nil
	}

	var result RegisterResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode partner response: %w", err)
	}
	return &result, nil
}
