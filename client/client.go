package client

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

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/httpapi"
	"github.com/MrEthical07/authstate/session"
)

const defaultTimeout = 15 * time.Second

// Client is an authstate.Backend speaking to an httpapi server.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ authstate.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticate posts the credentials to the login endpoint.
func (c *Client) Authenticate(ctx context.Context, creds authstate.Credentials) (authstate.LoginResponse, error) {
	body := httpapi.LoginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	}
	if creds.RequestedDuration > 0 {
		body.ExpiresIn = strconv.FormatInt(int64(creds.RequestedDuration/time.Second), 10)
	}

	var env httpapi.Response[httpapi.LoginView]
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &env); err != nil {
		return authstate.LoginResponse{}, err
	}
	resp := authstate.LoginResponse{
		Token:     env.Data.List.Token,
		ExpiresIn: time.Duration(env.Data.List.ExpiresIn) * time.Second,
	}
	if u := env.Data.List.User; u.ID != "" || u.Username != "" {
		resp.User = &u
	}
	return resp, nil
}

// Validate asks the server whether token is still good.
func (c *Client) Validate(ctx context.Context, token string) (authstate.ValidateResponse, error) {
	var env httpapi.Response[httpapi.UserView]
	if err := c.do(ctx, http.MethodGet, "/api/auth/validate", token, nil, &env); err != nil {
		return authstate.ValidateResponse{}, err
	}
	resp := authstate.ValidateResponse{User: env.Data.List.User}
	if env.Data.List.ExpiresAt != nil {
		resp.ExpiresAt = *env.Data.List.ExpiresAt
	}
	return resp, nil
}

// Logout tells the server the token is being discarded.
func (c *Client) Logout(ctx context.Context, token string) error {
	var env httpapi.Response[json.RawMessage]
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, &env)
}

// UpdateProfile sends patch and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, patch session.Patch) (session.User, error) {
	var env httpapi.Response[[]httpapi.UserView]
	if err := c.do(ctx, http.MethodPatch, "/api/auth/profile", token, patch, &env); err != nil {
		return session.User{}, err
	}
	if len(env.Data.List) == 0 {
		return session.User{}, fmt.Errorf("%w: profile response carried no user", authstate.ErrNetworkFailure)
	}
	return env.Data.List[0].User, nil
}

// do performs one round trip and decodes the envelope into out. Transport
// failures and unreadable answers wrap ErrNetworkFailure; rejections map onto
// the authstate sentinels.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", authstate.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", authstate.ErrNetworkFailure, err)
	}

	var head struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: server answered %d", authstate.ErrNetworkFailure, resp.StatusCode)
		}
		return fmt.Errorf("%w: malformed response (status %d)", authstate.ErrNetworkFailure, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !head.Success {
		return rejection(path, resp.StatusCode, head.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", authstate.ErrNetworkFailure, err)
	}
	return nil
}

func rejection(path string, status int, message string) error {
	switch status {
	case http.StatusTooManyRequests:
		return authstate.ErrLoginRateLimited
	case http.StatusForbidden:
		return authstate.ErrForbidden
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", authstate.ErrInvalidProfile, message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: server answered %d", authstate.ErrNetworkFailure, status)
	case http.StatusUnauthorized, http.StatusBadRequest:
		switch message {
		case httpapi.MsgInvalidCredentials:
			return authstate.ErrInvalidCredentials
		case httpapi.MsgTokenExpired:
			return authstate.ErrTokenExpired
		case httpapi.MsgUserNotFound:
			return authstate.ErrUserNotFound
		case httpapi.MsgTokenInvalid, httpapi.MsgMissingBearer:
			return fmt.Errorf("%w: %s", authstate.ErrTokenInvalid, message)
		case httpapi.MsgNotLoggedIn:
			return authstate.ErrNotLoggedIn
		}
		if status == http.StatusBadRequest && path == "/api/auth/profile" {
			return fmt.Errorf("%w: %s", authstate.ErrInvalidProfile, message)
		}
		if status == http.StatusUnauthorized && path == "/api/auth/login" {
			return authstate.ErrInvalidCredentials
		}
		if status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", authstate.ErrTokenInvalid, message)
		}
	}
	return fmt.Errorf("server rejected request (%d): %s", status, message)
}
