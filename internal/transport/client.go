// Package transport is the HTTP plumbing shared by the directory and
// enrollment clients: base URL resolution, authentication, optional TLS
// client certificates, and JSON request/response handling.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with authentication.
type Client struct {
	api     string
	baseURL *url.URL
	http    *http.Client

	mu   sync.RWMutex
	auth Authenticator
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTLSConfig installs a TLS configuration, typically one carrying a
// client certificate.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.http.Transport = transport
	}
}

// WithAuthenticator sets the initial authenticator.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// New creates a client for the API named api rooted at baseURL.
func New(api, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewConfigError(api+" base url", err.Error(), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.NewConfigError(api+" base url", fmt.Sprintf("%q is not an absolute URL", baseURL), nil)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		api:     api,
		baseURL: u,
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		auth:    &NoAuth{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetAuthenticator swaps the authenticator, e.g. once a login returned a token.
func (c *Client) SetAuthenticator(auth Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if auth == nil {
		auth = &NoAuth{}
	}
	c.auth = auth
}

func (c *Client) authenticator() Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Do sends a JSON request and decodes a JSON response into target.
// body and target may be nil. A non-2xx response is returned as an
// *errors.APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w: %w", method, path, errors.ErrCanceled, ctxErr)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	return DecodeResponse(resp, c.api, method+" "+path, target)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, errors.NewValidationError("path", path, err.Error())
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapParse("json", method+" "+path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authenticator().Apply(req)

	return req, nil
}
