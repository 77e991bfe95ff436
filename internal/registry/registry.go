// Package registry owns the authoritative set of provider descriptors and their
// last known health and capabilities, and answers proxy routing queries.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each health or capabilities request.
const DefaultTimeout = 10 * time.Second

// Registry is the in-memory provider store. It is safe for concurrent use by
// multiple goroutines; one mutex guards every read-modify-write sequence so
// concurrent admin calls and poll cycles cannot lose updates.
type Registry struct {
	logger  hclog.Logger
	client  *http.Client
	timeout time.Duration

	mu                  sync.Mutex
	order               []string
	providers           map[string]Descriptor
	health              map[string]Health
	capabilities        map[string]map[string]any
	capabilitiesUpdated map[string]time.Time
	authHeaders         map[string]map[string]string
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout sets the shared per-request timeout for health and capability polls.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client used for polling.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		if c != nil {
			r.client = c
		}
	}
}

// WithAuthHeaders stores per-provider request headers. Keys are matched
// case-insensitively against provider names.
func WithAuthHeaders(headers map[string]map[string]string) Option {
	return func(r *Registry) {
		for name, h := range headers {
			r.authHeaders[strings.ToLower(name)] = maps.Clone(h)
		}
	}
}

// New creates a Registry seeded with the given descriptors.
// Descriptors that fail normalization are skipped with a warning.
func New(logger hclog.Logger, descriptors []Descriptor, opt ...Option) *Registry {
	r := &Registry{
		logger:              logger.Named("registry"),
		client:              &http.Client{},
		timeout:             DefaultTimeout,
		providers:           make(map[string]Descriptor),
		health:              make(map[string]Health),
		capabilities:        make(map[string]map[string]any),
		capabilitiesUpdated: make(map[string]time.Time),
		authHeaders:         make(map[string]map[string]string),
	}
	for _, o := range opt {
		o(r)
	}
	for _, d := range descriptors {
		if !d.Normalize() {
			r.logger.Warn("Skipping invalid provider descriptor", "name", d.Name, "base_url", d.BaseURL)
			continue
		}
		if _, exists := r.providers[d.Name]; !exists {
			r.order = append(r.order, d.Name)
		}
		r.providers[d.Name] = d
	}
	return r
}

// Descriptor returns the stored descriptor for a provider name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.providers[name]
	return d, ok
}

// BuildTargetURL joins a descriptor's base URL with a relative path. The base's
// trailing slash and the path's leading slash are normalized so the result never
// contains a double slash. No '..' traversal policing happens here; callers that
// care must validate upstream.
func (r *Registry) BuildTargetURL(d Descriptor, relativePath string) string {
	base := strings.TrimRight(d.BaseURL, "/")
	rel := strings.TrimLeft(relativePath, "/")
	if rel == "" {
		return base
	}
	return base + "/" + rel
}

// Headers returns a copy of the stored auth headers for a provider, or nil.
func (r *Registry) Headers(name string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.authHeaders[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return maps.Clone(h)
}

// List returns a read view over every provider in insertion order, merging the
// descriptor with its last known health and capabilities.
func (r *Registry) List() []ProviderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProviderInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.buildInfoLocked(r.providers[name]))
	}
	return out
}

// Info returns the merged read view for a single provider.
func (r *Registry) Info(name string) (ProviderInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.providers[name]
	if !ok {
		return ProviderInfo{}, false
	}
	return r.buildInfoLocked(d), true
}

func (r *Registry) buildInfoLocked(d Descriptor) ProviderInfo {
	info := ProviderInfo{
		Name:             d.Name,
		BaseURL:          d.BaseURL,
		HealthPath:       d.HealthPath,
		CapabilitiesPath: d.CapabilitiesPath,
		DefaultTools:     slices.Clone(d.DefaultTools),
	}
	if h, ok := r.health[d.Name]; ok {
		health := h
		info.Health = &health
	}
	if caps, ok := r.capabilities[d.Name]; ok {
		info.Capabilities = caps
	}
	if at, ok := r.capabilitiesUpdated[d.Name]; ok {
		updated := at
		info.CapabilitiesUpdatedAt = &updated
	}
	return info
}

// Upsert inserts or fully replaces a descriptor by name, optionally storing
// per-provider auth headers. It does not trigger a health or capability refresh;
// that side effect belongs to the admin API.
func (r *Registry) Upsert(d Descriptor, headers map[string]string) (ProviderInfo, error) {
	if !d.Normalize() {
		return ProviderInfo{}, fmt.Errorf("descriptor requires name and base_url")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.providers[d.Name] = d
	if len(headers) > 0 {
		r.authHeaders[strings.ToLower(d.Name)] = maps.Clone(headers)
	}
	return r.buildInfoLocked(d), nil
}

// Remove deletes a descriptor and all cached state associated with it.
// It reports whether anything was removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return false
	}
	delete(r.providers, name)
	delete(r.health, name)
	delete(r.capabilities, name)
	delete(r.capabilitiesUpdated, name)
	delete(r.authHeaders, strings.ToLower(name))
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// CollectHealth concurrently polls every provider's health endpoint with the
// shared timeout. A failure for one provider is captured as that provider's
// error state and never aborts the aggregation. The overall status is ok only
// if every provider reports ok.
func (r *Registry) CollectHealth(ctx context.Context) AggregatedHealth {
	descriptors := r.snapshot()

	results := make([]Health, len(descriptors))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range descriptors {
		g.Go(func() error {
			results[i] = r.fetchHealth(gctx, d)
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	for _, h := range results {
		// A provider removed while its poll was in flight must not leave an
		// orphan cache entry behind.
		if _, ok := r.providers[h.Name]; ok {
			r.health[h.Name] = h
		}
	}
	r.mu.Unlock()

	status := StatusOK
	for _, h := range results {
		if h.Status != StatusOK {
			status = StatusError
			break
		}
	}
	return AggregatedHealth{Status: status, Services: results, UpdatedAt: time.Now().UTC()}
}

// RefreshCapabilities concurrently fetches each provider's manifest with the
// shared timeout. On failure the previous cached value (if any) is left
// untouched; capabilities are never cleared by a failed fetch.
func (r *Registry) RefreshCapabilities(ctx context.Context) {
	descriptors := r.snapshot()

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range descriptors {
		if d.CapabilitiesPath == "" {
			continue
		}
		g.Go(func() error {
			r.fetchCapabilities(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) snapshot() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

func (r *Registry) fetchHealth(ctx context.Context, d Descriptor) Health {
	url := r.BuildTargetURL(d, d.HealthPath)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, d.HealthMethod, url, nil)
	if err != nil {
		return Health{Name: d.Name, Status: StatusError, Detail: err.Error(), UpdatedAt: time.Now().UTC()}
	}
	for k, v := range r.Headers(d.Name) {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Health{Name: d.Name, Status: StatusError, Detail: err.Error(), UpdatedAt: time.Now().UTC()}
	}
	defer resp.Body.Close()

	latency := time.Since(started).Milliseconds()
	if resp.StatusCode >= http.StatusBadRequest {
		return Health{
			Name:      d.Name,
			Status:    StatusError,
			Detail:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			LatencyMS: &latency,
			UpdatedAt: time.Now().UTC(),
		}
	}

	var detail any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
			detail = decoded
		}
		// Decode failure is swallowed, leaving detail nil.
	}

	return Health{
		Name:      d.Name,
		Status:    StatusOK,
		Detail:    detail,
		LatencyMS: &latency,
		UpdatedAt: time.Now().UTC(),
	}
}

func (r *Registry) fetchCapabilities(ctx context.Context, d Descriptor) {
	url := r.BuildTargetURL(d, d.CapabilitiesPath)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Warn("Failed to build capabilities request", "provider", d.Name, "error", err)
		return
	}
	for k, v := range r.Headers(d.Name) {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Failed to fetch capabilities", "provider", d.Name, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		r.logger.Warn("Failed to fetch capabilities", "provider", d.Name, "status", resp.StatusCode)
		return
	}

	var manifest map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		r.logger.Warn("Failed to decode capabilities manifest", "provider", d.Name, "error", err)
		return
	}

	r.mu.Lock()
	if _, ok := r.providers[d.Name]; ok {
		r.capabilities[d.Name] = manifest
		r.capabilitiesUpdated[d.Name] = time.Now().UTC()
	}
	r.mu.Unlock()
}
