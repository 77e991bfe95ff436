package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/contracts"
	internalerrors "github.com/relaygrid/mcpgate/internal/errors"
)

// RegisterProxyRoutes mounts the pass-through proxy endpoints directly on
// the chi mux. The wildcard tail segment can contain slashes, which huma's
// path templating does not express, so these two routes bypass it.
func RegisterProxyRoutes(mux chi.Router, forwarder contracts.ProxyForwarder, logger hclog.Logger) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		relativePath := chi.URLParam(r, "*")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeProxyError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		var payload map[string]any
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				writeProxyError(w, http.StatusBadRequest, "request body must be a JSON object")
				return
			}
		}

		result, err := forwarder.Forward(r.Context(), provider, relativePath, payload)
		if err != nil {
			logger.Error("Proxy request failed", "provider", provider, "path", relativePath, "error", err)
			writeProxyError(w, proxyStatus(err), err.Error())
			return
		}

		writeProxyJSON(w, http.StatusOK, result)
	}

	mux.Post("/proxy/{provider}", handler)
	mux.Post("/proxy/{provider}/*", handler)
}

func proxyStatus(err error) int {
	switch {
	case errors.Is(err, internalerrors.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerrors.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, internalerrors.ErrRequestTimedOut):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeProxyError(w http.ResponseWriter, status int, detail string) {
	writeProxyJSON(w, status, map[string]any{"status": status, "detail": detail})
}

func writeProxyJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
