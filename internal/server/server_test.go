package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/mcpgate/internal/errors"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	logger := testLogger()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "ErrBadRequest maps to 400",
			err:            errors.ErrBadRequest,
			expectedStatus: 400,
		},
		{
			name:           "ErrUnauthorized maps to 401",
			err:            errors.ErrUnauthorized,
			expectedStatus: 401,
		},
		{
			name:           "ErrProviderNotFound maps to 404",
			err:            errors.ErrProviderNotFound,
			expectedStatus: 404,
		},
		{
			name:           "ErrUpstreamUnreachable maps to 502",
			err:            errors.ErrUpstreamUnreachable,
			expectedStatus: 502,
		},
		{
			name:           "ErrToolCallFailed maps to 502",
			err:            errors.ErrToolCallFailed,
			expectedStatus: 502,
		},
		{
			name:           "ErrAdminDisabled maps to 503",
			err:            errors.ErrAdminDisabled,
			expectedStatus: 503,
		},
		{
			name:           "ErrNotConfigured maps to 503",
			err:            errors.ErrNotConfigured,
			expectedStatus: 503,
		},
		{
			name:           "ErrBridgeNotRunning maps to 503",
			err:            errors.ErrBridgeNotRunning,
			expectedStatus: 503,
		},
		{
			name:           "ErrRequestTimedOut maps to 504",
			err:            errors.ErrRequestTimedOut,
			expectedStatus: 504,
		},
		{
			name:           "wrapped sentinel keeps its status",
			err:            fmt.Errorf("%w: '%s'", errors.ErrProviderNotFound, "ghost"),
			expectedStatus: 404,
		},
		{
			name:           "unknown error maps to 500",
			err:            fmt.Errorf("unknown error"),
			expectedStatus: 500,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			statusErr := mapError(logger, tc.err)
			require.Equal(t, tc.expectedStatus, statusErr.GetStatus())
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	noop := RouteRegistrar(func(chi.Router, huma.API) {})

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		s, err := New(testLogger(), "localhost:8010", "test", "dev", noop)
		require.NoError(t, err)
		require.NotNil(t, s)
		require.Equal(t, DefaultShutdownTimeout(), s.shutdownTimeout)
		require.False(t, s.cors.Enabled)
	})

	t.Run("applies options over defaults", func(t *testing.T) {
		t.Parallel()

		s, err := New(
			testLogger(),
			"localhost:8010",
			"test",
			"dev",
			noop,
			WithCORSEnabled(true),
			WithCORSAllowOrigins([]string{"*"}),
			WithShutdownTimeout(10*time.Second),
		)
		require.NoError(t, err)
		require.True(t, s.cors.Enabled)
		require.Equal(t, []string{"*"}, s.cors.AllowOrigins)
		require.Equal(t, 10*time.Second, s.shutdownTimeout)
	})

	t.Run("rejects missing logger", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil, "localhost:8010", "test", "dev", noop)
		require.Error(t, err)
	})

	t.Run("rejects missing registrar", func(t *testing.T) {
		t.Parallel()

		_, err := New(testLogger(), "localhost:8010", "test", "dev", nil)
		require.Error(t, err)
	})

	t.Run("rejects invalid address", func(t *testing.T) {
		t.Parallel()

		_, err := New(testLogger(), "not-an-address", "test", "dev", noop)
		require.Error(t, err)
	})

	t.Run("rejects non-positive shutdown timeout", func(t *testing.T) {
		t.Parallel()

		_, err := New(testLogger(), "localhost:8010", "test", "dev", noop, WithShutdownTimeout(0))
		require.Error(t, err)
	})
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "host and numeric port", addr: "localhost:8010", wantErr: false},
		{name: "wildcard host", addr: "0.0.0.0:8005", wantErr: false},
		{name: "named port", addr: "localhost:http", wantErr: false},
		{name: "missing port", addr: "localhost", wantErr: true},
		{name: "empty", addr: "", wantErr: true},
		{name: "garbage port", addr: "localhost:no-such-port", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateAddr(tc.addr)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}
