package dsentr

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ClientInterface defines the main interface for interacting with the dsentr platform API
type ClientInterface interface {
	// Connection inventory operations
	GetConnections(ctx context.Context, workspaceID string) (*GetConnectionsResponse, error)

	// Connection mutation operations
	PromoteConnection(ctx context.Context, workspaceID, connectionID string) (*PromoteConnectionResponse, error)
	UnshareConnection(ctx context.Context, workspaceID, connectionID string) (*UnshareConnectionResponse, error)
	DisconnectConnection(ctx context.Context, workspaceID, scope, connectionID string) (*DisconnectConnectionResponse, error)
	RefreshConnection(ctx context.Context, workspaceID, connectionID string) (*RefreshConnectionResponse, error)

	// Credential operations
	GetCredential(ctx context.Context, workspaceID, credentialID string) (*EncryptedCredential, error)

	// Workspace operations
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	GetWorkspaces(ctx context.Context) ([]Workspace, error)

	// Hub registration operations
	CreateHubRegistration(ctx context.Context, req *CreateHubRegistrationRequest) (*CreateHubRegistrationResponse, error)
	GetHubRegistrationStatus(ctx context.Context, code string) (*GetHubRegistrationStatusResponse, error)
}

// Client talks to the dsentr platform API on behalf of a single hub. All
// settings are resolved once in NewClient; a Client is safe for concurrent
// use.
type Client struct {
	baseURL    string
	hubID      string
	userAgent  string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	signingKey ed25519.PrivateKey
	httpClient *http.Client
}

// NewClient builds a platform client from the given options.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    "https://api.dsentr.com",
		userAgent:  "dsentr-go-client/1.0.0",
		timeout:    30 * time.Second,
		retries:    3,
		retryDelay: time.Second,
	}

	for _, option := range options {
		option(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c
}

// GetConnections retrieves the full connection inventory for a workspace
func (c *Client) GetConnections(ctx context.Context, workspaceID string) (*GetConnectionsResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}

	resp, err := c.callAsHub(ctx, "GET", fmt.Sprintf("/v1/workspaces/%s/connections", workspaceID), nil)
	if err != nil {
		return nil, fmt.Errorf("get connections: %w", err)
	}

	var result GetConnectionsResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode connections response: %w", err)
	}

	return &result, nil
}

// PromoteConnection shares a personal connection with the whole workspace
func (c *Client) PromoteConnection(ctx context.Context, workspaceID, connectionID string) (*PromoteConnectionResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}
	if connectionID == "" {
		return nil, fmt.Errorf("missing connection ID")
	}

	resp, err := c.callAsHub(ctx, "POST", fmt.Sprintf("/v1/workspaces/%s/connections/%s/promote", workspaceID, connectionID), nil)
	if err != nil {
		return nil, fmt.Errorf("promote connection: %w", err)
	}

	var result PromoteConnectionResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode promote response: %w", err)
	}

	return &result, nil
}

// UnshareConnection reverts a workspace-shared connection back to personal
func (c *Client) UnshareConnection(ctx context.Context, workspaceID, connectionID string) (*UnshareConnectionResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}
	if connectionID == "" {
		return nil, fmt.Errorf("missing connection ID")
	}

	resp, err := c.callAsHub(ctx, "POST", fmt.Sprintf("/v1/workspaces/%s/connections/%s/unshare", workspaceID, connectionID), nil)
	if err != nil {
		return nil, fmt.Errorf("unshare connection: %w", err)
	}

	var result UnshareConnectionResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode unshare response: %w", err)
	}

	return &result, nil
}

// DisconnectConnection removes a connection. Scope disambiguates when the
// same connection id exists both personally and workspace-shared.
func (c *Client) DisconnectConnection(ctx context.Context, workspaceID, scope, connectionID string) (*DisconnectConnectionResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}
	if connectionID == "" {
		return nil, fmt.Errorf("missing connection ID")
	}

	path := fmt.Sprintf("/v1/workspaces/%s/connections/%s?scope=%s", workspaceID, connectionID, url.QueryEscape(scope))

	resp, err := c.callAsHub(ctx, "DELETE", path, nil)
	if err != nil {
		return nil, fmt.Errorf("disconnect connection: %w", err)
	}

	var result DisconnectConnectionResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode disconnect response: %w", err)
	}

	return &result, nil
}

// RefreshConnection asks the platform to refresh the provider tokens behind
// a connection
func (c *Client) RefreshConnection(ctx context.Context, workspaceID, connectionID string) (*RefreshConnectionResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}
	if connectionID == "" {
		return nil, fmt.Errorf("missing connection ID")
	}

	resp, err := c.callAsHub(ctx, "POST", fmt.Sprintf("/v1/workspaces/%s/connections/%s/refresh", workspaceID, connectionID), nil)
	if err != nil {
		return nil, fmt.Errorf("refresh connection: %w", err)
	}

	var result RefreshConnectionResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	return &result, nil
}

// GetCredential retrieves an encrypted credential payload sealed to this hub
func (c *Client) GetCredential(ctx context.Context, workspaceID, credentialID string) (*EncryptedCredential, error) {
	if c.hubID == "" {
		return nil, fmt.Errorf("credential requests require a configured hub ID")
	}
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}
	if credentialID == "" {
		return nil, fmt.Errorf("missing credential ID")
	}

	resp, err := c.callAsHub(ctx, "GET", fmt.Sprintf("/v1/workspaces/%s/credentials/%s", workspaceID, credentialID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch credential: %w", err)
	}

	var result EncryptedCredential
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode credential response: %w", err)
	}

	return &result, nil
}

// GetWorkspace retrieves workspace information by ID
func (c *Client) GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace ID")
	}

	resp, err := c.call(ctx, "GET", "/v1/workspaces/"+workspaceID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch workspace: %w", err)
	}

	var result Workspace
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode workspace response: %w", err)
	}

	return &result, nil
}

// GetWorkspaces retrieves all workspaces this hub serves
func (c *Client) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	resp, err := c.call(ctx, "GET", "/v1/workspaces", nil)
	if err != nil {
		return nil, fmt.Errorf("list hub workspaces: %w", err)
	}

	var result []Workspace
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode workspaces response: %w", err)
	}

	return result, nil
}

// CreateHubRegistration creates a new hub registration
func (c *Client) CreateHubRegistration(ctx context.Context, req *CreateHubRegistrationRequest) (*CreateHubRegistrationResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil registration request")
	}

	resp, err := c.call(ctx, "POST", "/hubs", req)
	if err != nil {
		return nil, fmt.Errorf("create hub registration: %w", err)
	}

	var result CreateHubRegistrationResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode registration response: %w", err)
	}

	return &result, nil
}

// GetHubRegistrationStatus checks whether a pending registration was verified
func (c *Client) GetHubRegistrationStatus(ctx context.Context, code string) (*GetHubRegistrationStatusResponse, error) {
	if code == "" {
		return nil, fmt.Errorf("missing verification code")
	}

	resp, err := c.call(ctx, "GET", "/hubs/registration-status?code="+url.QueryEscape(code), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch registration status: %w", err)
	}

	var result GetHubRegistrationStatusResponse
	if err := c.decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("decode registration status response: %w", err)
	}

	return &result, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.send(ctx, method, path, body, false)
}

// callAsHub sends the request with the X-Hub-ID header so the platform can
// scope the response to this hub's grants.
func (c *Client) callAsHub(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.send(ctx, method, path, body, true)
}

// send runs the retry loop. Transport failures and 5xx responses are retried
// with a context-aware pause; any other response is returned as-is. Each
// attempt gets a freshly built request so body readers are never reused.
func (c *Client) send(ctx context.Context, method, path string, body any, asHub bool) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := c.newRequest(ctx, method, path, payload, asHub)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}

		requestID := resp.Header.Get("X-Request-ID")
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("request_id", requestID).
			Msg("Platform returned a server error")

		resp.Body.Close()
		lastErr = &Error{
			StatusCode: resp.StatusCode,
			Message:    "platform error: " + resp.Status,
			RequestID:  requestID,
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, asHub bool) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if asHub && c.hubID != "" {
		req.Header.Set("X-Hub-ID", c.hubID)
	}

	c.signRequest(req, payload)

	return req, nil
}

// signRequest stamps the hub identity headers onto an outbound request. The
// platform verifies method|path|timestamp|hub-id|body-sha256 under the
// public key this hub registered with.
func (c *Client) signRequest(req *http.Request, payload []byte) {
	if c.signingKey == nil || c.hubID == "" {
		return
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	digest := sha256.Sum256(payload)

	canonical := strings.Join([]string{
		req.Method,
		req.URL.Path,
		timestamp,
		c.hubID,
		hex.EncodeToString(digest[:]),
	}, "|")
	signature := ed25519.Sign(c.signingKey, []byte(canonical))
	encoded := base64.StdEncoding.EncodeToString(signature)

	req.Header.Set("X-Hub-ID", c.hubID)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", encoded)
}

// decodeResponse drains the body, then either unmarshals the payload into
// result or turns an error status into a typed *Error.
func (c *Client) decodeResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response payload: %w", err)
		}
	}

	return nil
}
