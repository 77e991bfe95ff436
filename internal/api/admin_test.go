package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/relaygrid/mcpgate/internal/errors"
	"github.com/relaygrid/mcpgate/internal/registry"
)

func TestAuthorizeAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		header  string
		wantErr error
	}{
		{
			name:    "no token configured disables the surface",
			token:   "",
			header:  "Bearer anything",
			wantErr: internalerrors.ErrAdminDisabled,
		},
		{
			name:    "missing header",
			token:   "secret",
			header:  "",
			wantErr: internalerrors.ErrUnauthorized,
		},
		{
			name:    "non-bearer header",
			token:   "secret",
			header:  "Basic c2VjcmV0",
			wantErr: internalerrors.ErrUnauthorized,
		},
		{
			name:    "wrong token",
			token:   "secret",
			header:  "Bearer not-secret",
			wantErr: internalerrors.ErrUnauthorized,
		},
		{
			name:   "matching token",
			token:  "secret",
			header: "Bearer secret",
		},
		{
			name:   "surrounding whitespace is tolerated",
			token:  "secret",
			header: "Bearer  secret ",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := authorizeAdmin(tc.token, tc.header)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func newAdminAPI(store *registry.Registry, adminToken string) http.Handler {
	return newTestAPI(func(_ chi.Router, routerAPI huma.API) {
		RegisterAdminRoutes(routerAPI, store, adminToken)
	})
}

func TestRegisterProviderReturnsFreshState(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"uptime":42}`))
		case "/.well-known/mcp.json":
			_, _ = w.Write([]byte(`{"name":"svc","tools":["a"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	store := registry.New(hclog.NewNullLogger(), nil)
	handler := newAdminAPI(store, "secret")

	body := fmt.Sprintf(`{"descriptor":{"name":"svc","base_url":"%s"}}`, upstream.URL)
	req := httptest.NewRequest(http.MethodPost, "/admin/providers", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The registration response already carries live health and capabilities;
	// no separate refresh call is needed.
	var info registry.ProviderInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "svc", info.Name)
	require.NotNil(t, info.Health)
	require.Equal(t, registry.StatusOK, info.Health.Status)
	require.Equal(t, map[string]any{"uptime": float64(42)}, info.Health.Detail)
	require.Equal(t, map[string]any{"name": "svc", "tools": []any{"a"}}, info.Capabilities)
	require.NotNil(t, info.CapabilitiesUpdatedAt)

	// Listing shows the same fresh view.
	listed := store.List()
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Health)
	require.Equal(t, registry.StatusOK, listed[0].Health.Status)
}

func TestAdminRouteStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		token      string
		header     string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "no token configured is service unavailable",
			token:      "",
			header:     "Bearer anything",
			method:     http.MethodPost,
			path:       "/admin/providers",
			body:       `{"descriptor":{"name":"svc","base_url":"http://x.local"}}`,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "wrong token is unauthorized",
			token:      "secret",
			header:     "Bearer wrong",
			method:     http.MethodPost,
			path:       "/admin/providers",
			body:       `{"descriptor":{"name":"svc","base_url":"http://x.local"}}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "removing an unknown provider is not found",
			token:      "secret",
			header:     "Bearer secret",
			method:     http.MethodDelete,
			path:       "/admin/providers/ghost",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := newAdminAPI(registry.New(hclog.NewNullLogger(), nil), tc.token)

			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			req.Header.Set("Authorization", tc.header)
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRemoveProviderPurgesAndReports(t *testing.T) {
	t.Parallel()

	store := registry.New(hclog.NewNullLogger(), []registry.Descriptor{
		{Name: "svc", BaseURL: "http://x.local"},
	})
	handler := newAdminAPI(store, "secret")

	req := httptest.NewRequest(http.MethodDelete, "/admin/providers/svc", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status   string `json:"status"`
		Provider string `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "removed", body.Status)
	require.Equal(t, "svc", body.Provider)
	require.Empty(t, store.List())
}
