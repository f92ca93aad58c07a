// Package itsm is the REST client for the external change-management
// system. Ticket operations are idempotent per ticket id; callers treat
// failures here as side-channel and keep the lifecycle moving.
package itsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"

	"github.com/sethvargo/go-retry"
)

// Change ticket states in the external system.
const (
	stateScheduled = -1
	stateClosed    = 0
	stateCancelled = 7
)

const (
	changeRequestPath = "/api/now/table/change_request"
	attachmentPath    = "/api/now/attachment/file"
)

// Client implements ports.TicketSystem against the change-request REST
// API, authenticated with basic credentials.
type Client struct {
	baseURL  string
	username string
	password string
	attempts int
	delay    time.Duration
	http     *http.Client
	log      *logger.Logger
}

func NewClient(cfg config.TicketConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:  cfg.GetTicketBaseURL(),
		username: cfg.GetTicketUsername(),
		password: cfg.GetTicketPassword(),
		attempts: cfg.GetTicketRetryAttempts(),
		delay:    cfg.GetTicketRetryDelay(),
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type changeRecord struct {
	ShortDescription string `json:"short_description,omitempty"`
	Description      string `json:"description,omitempty"`
	State            *int   `json:"state,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	CloseNotes       string `json:"close_notes,omitempty"`
	WorkNotes        string `json:"work_notes,omitempty"`
}

type changeResponse struct {
	Result struct {
		SysID string `json:"sys_id"`
	} `json:"result"`
}

func (c *Client) Open(ctx context.Context, tags map[string]string) (string, error) {
	record := changeRecord{
		ShortDescription: fmt.Sprintf("Rightsizing %s %s", tags["serviceType"], tags["resourceId"]),
		Description: fmt.Sprintf("Change %s from %s to %s (stack %s)",
			tags["resourceId"], tags[domain.TagCurrentType], tags[domain.TagRecommended], tags["stackName"]),
	}

	var resp changeResponse
	if err := c.do(ctx, http.MethodPost, changeRequestPath, record, &resp); err != nil {
		return "", err
	}
	if resp.Result.SysID == "" {
		return "", apperr.Upstream("ticket system returned no id", nil).WithOp("itsm.Open")
	}
	return resp.Result.SysID, nil
}

func (c *Client) Schedule(ctx context.Context, ticketID string, window domain.MaintenanceWindow) error {
	state := stateScheduled
	record := changeRecord{
		State:     &state,
		StartDate: window.NextFireAt.UTC().Format("2006-01-02 15:04:05"),
		EndDate:   window.NextFireAt.Add(time.Duration(window.DurationHours) * time.Hour).UTC().Format("2006-01-02 15:04:05"),
		WorkNotes: window.Details(),
	}
	return c.patch(ctx, ticketID, record)
}

func (c *Client) Close(ctx context.Context, ticketID string) error {
	state := stateClosed
	return c.patch(ctx, ticketID, changeRecord{
		State:      &state,
		CloseNotes: "Rightsizing change executed and verified",
	})
}

func (c *Client) Cancel(ctx context.Context, ticketID string) error {
	state := stateCancelled
	return c.patch(ctx, ticketID, changeRecord{
		State:      &state,
		CloseNotes: "Recommendation superseded before execution",
	})
}

func (c *Client) Update(ctx context.Context, ticketID string, fields map[string]string) error {
	return c.do(ctx, http.MethodPatch, changeRequestPath+"/"+ticketID, fields, nil)
}

// Attach uploads a file into the ticket's attachment collection.
func (c *Client) Attach(ctx context.Context, ticketID, name string, content []byte) error {
	path := fmt.Sprintf("%s?table_name=change_request&table_sys_id=%s&file_name=%s",
		attachmentPath, url.QueryEscape(ticketID), url.QueryEscape(name))
	return c.send(ctx, http.MethodPost, path, content, nil)
}

func (c *Client) patch(ctx context.Context, ticketID string, record changeRecord) error {
	return c.do(ctx, http.MethodPatch, changeRequestPath+"/"+ticketID, record, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("encode ticket payload", err).WithOp("itsm.do")
	}
	return c.send(ctx, method, path, body, out)
}

// send delivers one JSON request with bounded retries on transport
// errors and 5xx responses.
func (c *Client) send(ctx context.Context, method, path string, body []byte, out interface{}) error {
	const op = "itsm.send"

	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewConstant(c.delay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return apperr.Internal("build ticket request", err).WithOp(op)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(c.username, c.password)

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(apperr.Upstream("ticket request failed", err).WithOp(op))
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 500:
			return retry.RetryableError(apperr.Upstream(fmt.Sprintf("ticket system returned %d", resp.StatusCode), nil).WithOp(op))
		case resp.StatusCode == http.StatusNotFound:
			return apperr.NotFound("ticket not found").WithOp(op)
		case resp.StatusCode >= 400:
			return apperr.Upstream(fmt.Sprintf("ticket system returned %d", resp.StatusCode), nil).WithOp(op)
		}

		if out != nil {
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return retry.RetryableError(apperr.Upstream("read ticket response", err).WithOp(op))
			}
			if err := json.Unmarshal(data, out); err != nil {
				return apperr.Upstream("decode ticket response", err).WithOp(op)
			}
		}
		return nil
	})
}
