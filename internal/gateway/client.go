// Package gateway is the bot's client for the platform backend API.
// Calls are stateless request/response; retry policy belongs to
// callers, never to the gateway itself.
package gateway

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

	"github.com/itamhq/teambot/pkg/config"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
)

const responseBodyReadLimit = 1 << 16

// Client calls the platform backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a backend client from config.
func NewClient(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backend base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// RegisterResult is the backend's answer to a user registration.
type RegisterResult struct {
	Status    string `json:"status"`
	IsNewUser bool   `json:"isNewUser"`
}

type registerRequest struct {
	TelegramUserID int64  `json:"telegramUserId"`
	Username       string `json:"username"`
}

// RegisterUser upserts the Telegram user in the backend registry.
func (c *Client) RegisterUser(ctx context.Context, telegramUserID int64, username string) (*RegisterResult, error) {
	var result RegisterResult
	err := c.do(ctx, http.MethodPost, "/api/user/register", registerRequest{
		TelegramUserID: telegramUserID,
		Username:       username,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// NotificationStatus is a user's delivery preference and display name.
type NotificationStatus struct {
	Enabled bool   `json:"notificationsEnabled"`
	Name    string `json:"name"`
}

// GetNotificationStatus fetches the user's notification preference.
func (c *Client) GetNotificationStatus(ctx context.Context, telegramUserID int64) (*NotificationStatus, error) {
	var status NotificationStatus
	path := fmt.Sprintf("/api/bot/notifications/%d", telegramUserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type setNotificationsRequest struct {
	Enabled bool `json:"enabled"`
}

// SetNotifications updates the user's notification preference.
func (c *Client) SetNotifications(ctx context.Context, telegramUserID int64, enabled bool) error {
	path := fmt.Sprintf("/api/bot/notifications/%d", telegramUserID)
	return c.do(ctx, http.MethodPut, path, setNotificationsRequest{Enabled: enabled}, nil)
}

// AuthorizedUser is one entry from the authorized-user roster.
type AuthorizedUser struct {
	TelegramUserID int64  `json:"telegramUserId"`
	Username       string `json:"username"`
	Authorized     bool   `json:"authorized"`
}

type authorizedUsersResponse struct {
	Users []AuthorizedUser `json:"users"`
}

// AuthorizedUsers lists every user eligible for broadcast delivery.
func (c *Client) AuthorizedUsers(ctx context.Context) ([]AuthorizedUser, error) {
	var resp authorizedUsersResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/authorized", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

type respondJoinRequest struct {
	Accepted bool `json:"accepted"`
}

// RespondJoinRequest accepts or rejects a pending team join request.
func (c *Client) RespondJoinRequest(ctx context.Context, teamID, requestID string, accepted bool) error {
	path := fmt.Sprintf("/api/teams/%s/join-requests/%s", url.PathEscape(teamID), url.PathEscape(requestID))
	return c.do(ctx, http.MethodPut, path, respondJoinRequest{Accepted: accepted}, nil)
}

// RespondInvite accepts or declines a team invite on behalf of the
// invited Telegram user.
func (c *Client) RespondInvite(ctx context.Context, inviteID string, telegramUserID int64, accept bool) error {
	action := "decline"
	if accept {
		action = "accept"
	}
	path := fmt.Sprintf("/api/bot/invites/%s/%s?telegramId=%d", url.PathEscape(inviteID), action, telegramUserID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building backend request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading backend response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyRejection(resp.StatusCode, string(raw))
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding backend response")
		}
	}
	return nil
}

// classifyRejection maps a non-2xx backend reply onto the error
// taxonomy. The backend reports business outcomes as free-text bodies,
// so interpretation is by substring; this is the only place that does
// it.
func classifyRejection(status int, body string) error {
	lowered := strings.ToLower(body)
	switch {
	case strings.Contains(lowered, "already processed"), strings.Contains(lowered, "not found"):
		return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, trimmedBody(status, body))
	case strings.Contains(lowered, "team is full"):
		return pkgerrors.New(pkgerrors.CodeTeamFull, trimmedBody(status, body))
	case strings.Contains(lowered, "not your invite"):
		return pkgerrors.New(pkgerrors.CodeNotYourInvite, trimmedBody(status, body))
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, trimmedBody(status, body))
	}
}

func trimmedBody(status int, body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("backend returned %d: %s", status, body)
}
