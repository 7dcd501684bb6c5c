package httpclient

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Client defines an interface for executing HTTP requests
// This allows for easy mocking and testing of HTTP calls
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialedClient wraps the standard http.Client with a cookie jar so the
// HTTP-only refresh cookie travels with every request, the way a browser's
// credentials-included fetch would.
type CredentialedClient struct {
	client *http.Client
}

// NewCredentialedClient creates an HTTP client with an in-memory cookie jar.
// A zero timeout means no deadline, matching the original behavior; callers
// wanting a bound pass it explicitly.
func NewCredentialedClient(timeout time.Duration) Client {
	jar, _ := cookiejar.New(nil) // cookiejar.New never fails with nil options
	return &CredentialedClient{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}
}

// Do executes an HTTP request
func (c *CredentialedClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}
