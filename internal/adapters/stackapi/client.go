// Package stackapi is the REST client for the deployment service that
// owns infrastructure stacks. It starts drift detection runs, polls
// their outcome and dispatches stack updates.
package stackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"
)

var _ ports.StackDeployer = (*Client)(nil)

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *logger.Logger
}

func NewClient(cfg config.OptimizerConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:  cfg.GetOptimizerBaseURL(),
		username: cfg.GetOptimizerUsername(),
		password: cfg.GetOptimizerPassword(),
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type detectionResponse struct {
	DetectionID string `json:"detectionId"`
}

type driftStatusResponse struct {
	DetectionStatus  string    `json:"detectionStatus"`
	StackDriftStatus string    `json:"stackDriftStatus"`
	CheckedAt        time.Time `json:"checkedAt"`
}

func (c *Client) DetectDrift(ctx context.Context, stackID string) (string, error) {
	var resp detectionResponse
	path := fmt.Sprintf("/v1/stacks/%s/drift-detections", stackID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.DetectionID == "" {
		return "", apperr.Upstream("stack service returned no detection id", nil).WithOp("stackapi.DetectDrift")
	}
	return resp.DetectionID, nil
}

func (c *Client) PollDrift(ctx context.Context, detectionID string) (ports.DriftPoll, error) {
	var resp driftStatusResponse
	path := fmt.Sprintf("/v1/drift-detections/%s", detectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return ports.DriftPoll{}, err
	}
	return ports.DriftPoll{
		DetectionStatus:  resp.DetectionStatus,
		StackDriftStatus: resp.StackDriftStatus,
		CheckedAt:        resp.CheckedAt,
	}, nil
}

func (c *Client) Update(ctx context.Context, stackID string) error {
	path := fmt.Sprintf("/v1/stacks/%s/updates", stackID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"usePreviousTemplate": "true"}, nil)
}

type stackStatusResponse struct {
	StackStatus string `json:"stackStatus"`
}

func (c *Client) Status(ctx context.Context, stackID string) (string, error) {
	var resp stackStatusResponse
	path := fmt.Sprintf("/v1/stacks/%s", stackID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.StackStatus, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	const op = "stackapi.do"

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperr.Internal("encode stack request", err).WithOp(op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Internal("build stack request", err).WithOp(op)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream("stack request failed", err).WithOp(op)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("stack not found").WithOp(op)
	case resp.StatusCode >= 400:
		return apperr.Upstream(fmt.Sprintf("stack service returned %d", resp.StatusCode), nil).WithOp(op)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Upstream("decode stack response", err).WithOp(op)
		}
	}
	return nil
}
