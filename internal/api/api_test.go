package api

import (
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/server"
)

var installErrorHook sync.Once

// newTestAPI serves a set of routes with the production error mapping
// installed, mirroring how server.Server wires them at startup.
func newTestAPI(register func(mux chi.Router, routerAPI huma.API)) http.Handler {
	installErrorHook.Do(func() {
		huma.NewErrorWithContext = server.ErrorHandler(hclog.NewNullLogger())
	})

	mux := chi.NewMux()
	routerAPI := humachi.New(mux, huma.DefaultConfig("test", "0.0.0"))
	register(mux, routerAPI)
	return mux
}
