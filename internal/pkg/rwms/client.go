package rwms

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

	"github.com/monkey-island/yookassa-payments/internal/pkg/env"
)

// Subscription states and traffic policies understood by the management
// service.
const (
	StatusActive        = "ACTIVE"
	TrafficLimitNoReset = "NO_RESET"
)

// User is a subscription record in the management service.
type User struct {
	UUID                 string     `json:"uuid"`
	Username             string     `json:"username"`
	TelegramID           *int64     `json:"telegram_id,omitempty"`
	Email                string     `json:"email,omitempty"`
	Status               string     `json:"status"`
	ExpireAt             *time.Time `json:"expire_at,omitempty"`
	TrafficLimitStrategy string     `json:"traffic_limit_strategy"`
	ActiveInternalSquads []string   `json:"active_internal_squads"`
}

// CreateUserRequest registers a new subscription.
type CreateUserRequest struct {
	Username             string     `json:"username"`
	TelegramID           *int64     `json:"telegram_id,omitempty"`
	Email                string     `json:"email,omitempty"`
	ExpireAt             time.Time  `json:"expire_at"`
	Status               string     `json:"status"`
	TrafficLimitStrategy string     `json:"traffic_limit_strategy"`
	ActivateAllInbounds  bool       `json:"activate_all_inbounds"`
	ActiveInternalSquads []string   `json:"active_internal_squads"`
}

// UpdateUserRequest converges an existing subscription.
type UpdateUserRequest struct {
	UUID                 string    `json:"uuid"`
	ExpireAt             time.Time `json:"expire_at"`
	Status               string    `json:"status"`
	TrafficLimitStrategy string    `json:"traffic_limit_strategy"`
	ActiveInternalSquads []string  `json:"active_internal_squads"`
}

// API is the subset of the management service used by this service. The
// concrete Client is assumed safe for concurrent calls from both consumer
// loops.
type API interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error)
}

// Client talks JSON over HTTP to the subscription management service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClientFromEnv reads RWMS_BASE_URL and builds a client.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(env.MustGetEnv("RWMS_BASE_URL"), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetUserByUsername resolves a subscription by username. An unknown username
// returns (nil, nil).
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	endpoint := c.BaseURL + "/api/users/by-username/" + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rwms get user request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	return decodeUserResponse(resp)
}

// CreateUser registers a subscription.
func (c *Client) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	return c.sendUser(ctx, http.MethodPost, "/api/users", in)
}

// UpdateUser converges an existing subscription.
func (c *Client) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	return c.sendUser(ctx, http.MethodPatch, "/api/users", in)
}

func (c *Client) sendUser(ctx context.Context, method, path string, payload any) (*User, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rwms %s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	return decodeUserResponse(resp)
}

func decodeUserResponse(resp *http.Response) (*User, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("rwms response read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rwms returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("rwms response decode failed: %w", err)
	}
	return &user, nil
}
