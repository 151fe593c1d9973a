// Package api wraps the login and directory REST calls. It owns nothing but
// the HTTP session; all results are returned for the state machine to
// inspect.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"nexuschat/internal/protocol"
)

const (
	loginEndpoint    = "/api/application/login"
	userInfoEndpoint = "/api/user/userinfo"
	usersEndpoint    = "/api/application/getusersinfo"
)

// Client is the HTTP collaborator adapter. The login token is fed in by the
// connection state machine after a successful login.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates an adapter for the given base URL, e.g.
// "https://chat.example.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the server prefix, used to resolve relative avatar refs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UpdateToken installs the authorization token used on subsequent calls.
func (c *Client) UpdateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	req.Header.Set("Authorization", c.token)
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// Login performs the HTTP login call. The caller inspects the envelope; this
// layer only reports transport and decode failures.
func (c *Client) Login(ctx context.Context, account, password string) (*protocol.LoginResponse, error) {
	body := protocol.LoginRequest{
		Account:     account,
		Password:    password,
		Application: protocol.Application,
	}
	var out protocol.LoginResponse
	if err := c.do(ctx, http.MethodPost, loginEndpoint, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUserInfo fetches the logged-in user's own directory record. Relative
// avatar refs are resolved against the server prefix.
func (c *Client) CurrentUserInfo(ctx context.Context) (*protocol.UserInfo, error) {
	var out protocol.UserInfoResponse
	if err := c.do(ctx, http.MethodGet, userInfoEndpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.Status != protocol.StatusOK {
		return nil, fmt.Errorf("userinfo rejected (status %d): %s", out.Status, out.Message)
	}

	info := out.Data
	if info.Avatar != "" {
		info.Avatar = c.baseURL + info.Avatar
	}
	return &info, nil
}

// UsersInfo fetches directory records for a set of ids. Results come back in
// the requested order; ids the server does not know yield zero records.
func (c *Client) UsersInfo(ctx context.Context, ids []int64) ([]protocol.UserInfo, error) {
	if len(ids) == 0 {
		return []protocol.UserInfo{}, nil
	}

	body := map[string][]int64{"ids": ids}
	var out protocol.UserListResponse
	if err := c.do(ctx, http.MethodPost, usersEndpoint, body, &out); err != nil {
		return nil, err
	}
	if out.Status != protocol.StatusOK {
		return nil, fmt.Errorf("getusersinfo rejected (status %d): %s", out.Status, out.Message)
	}

	byID := make(map[int64]protocol.UserInfo, len(out.Data))
	for _, info := range out.Data {
		if info.Avatar != "" {
			info.Avatar = c.baseURL + info.Avatar
		}
		byID[info.ID] = info
	}

	sorted := make([]protocol.UserInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := byID[id]; ok {
			sorted = append(sorted, info)
		}
	}
	return sorted, nil
}
