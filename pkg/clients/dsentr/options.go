package dsentr

import (
	"net/http"
	"strings"
	"time"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithBaseURL points the client at a platform deployment. Trailing slashes
// are stripped so request paths can always start with one.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHubID sets the hub identity sent with authenticated requests.
func WithHubID(hubID string) ClientOption {
	return func(c *Client) {
		c.hubID = hubID
	}
}

// WithEd25519PrivateKey installs the base64-encoded signing key minted at
// setup time. A missing or malformed key leaves requests unsigned, which the
// platform only accepts for registration endpoints.
func WithEd25519PrivateKey(privateKeyBase64 string) ClientOption {
	return func(c *Client) {
		c.signingKey = parseSigningKey(privateKeyBase64)
	}
}

// WithTimeout bounds each HTTP attempt. Ignored when a custom HTTP client is
// supplied.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetry sets how many times a failed request is retried and the pause
// between attempts. Only transport failures and 5xx responses are retried.
func WithRetry(retries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithHTTPClient swaps in a caller-owned HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}
