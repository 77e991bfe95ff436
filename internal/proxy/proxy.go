// Package proxy forwards arbitrary JSON payloads to a named provider, optionally
// at a nested relative path under the provider's base URL.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/errors"
	"github.com/relaygrid/mcpgate/internal/registry"
)

// githubProvider triggers bearer-token injection when a global GitHub token is configured.
const githubProvider = "github"

// Result is the normalized outcome of one proxied call. The upstream status code
// is preserved as data; a 404 from the provider is valid proxied content, only
// transport failures are gateway errors.
type Result struct {
	Provider   string `json:"provider"`
	TargetURL  string `json:"target_url"`
	StatusCode int    `json:"status_code"`
	Response   any    `json:"response"`
}

// Router is the slice of the registry the forwarder needs.
type Router interface {
	Descriptor(name string) (registry.Descriptor, bool)
	BuildTargetURL(d registry.Descriptor, relativePath string) string
	Headers(name string) map[string]string
}

// Forwarder issues proxied POST requests on behalf of gateway callers.
type Forwarder struct {
	logger      hclog.Logger
	router      Router
	client      *http.Client
	timeout     time.Duration
	githubToken string
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithTimeout bounds each proxied request.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithGitHubToken sets the global bearer token injected for the github provider.
func WithGitHubToken(token string) Option {
	return func(f *Forwarder) {
		f.githubToken = token
	}
}

// WithHTTPClient overrides the HTTP client used for forwarding.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		if c != nil {
			f.client = c
		}
	}
}

// NewForwarder creates a Forwarder routing through the given registry view.
func NewForwarder(logger hclog.Logger, router Router, opt ...Option) *Forwarder {
	f := &Forwarder{
		logger:  logger.Named("proxy"),
		router:  router,
		client:  &http.Client{},
		timeout: registry.DefaultTimeout,
	}
	for _, o := range opt {
		o(f)
	}
	return f
}

// Forward posts the JSON payload to the provider at the given relative path.
// Unknown providers fail with ErrProviderNotFound; network-level failures fail
// with ErrUpstreamUnreachable carrying the transport error message.
func (f *Forwarder) Forward(ctx context.Context, provider, relativePath string, payload map[string]any) (*Result, error) {
	descriptor, ok := f.router.Descriptor(provider)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", errors.ErrProviderNotFound, provider)
	}

	targetURL := f.router.BuildTargetURL(descriptor, relativePath)

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %w", errors.ErrBadRequest, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUpstreamUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range f.router.Headers(descriptor.Name) {
		req.Header.Set(k, v)
	}
	// The global GitHub bearer overrides any stored provider header for this call.
	if strings.EqualFold(descriptor.Name, githubProvider) && f.githubToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.githubToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("Proxy request failed", "provider", provider, "target", targetURL, "error", err)
		return nil, fmt.Errorf("%w: %w", errors.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", errors.ErrUpstreamUnreachable, err)
	}

	var parsed any = string(raw)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			parsed = decoded
		}
		// Parse failure passes the raw text body through unmodified.
	}

	return &Result{
		Provider:   provider,
		TargetURL:  targetURL,
		StatusCode: resp.StatusCode,
		Response:   parsed,
	}, nil
}
