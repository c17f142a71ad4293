package handlers

import (
	"net/http"

	"github.com/treyturner/ninjaone-e2e/internal/metrics"
	"github.com/treyturner/ninjaone-e2e/internal/middleware"
)

// APIRoutes returns the JSON device API. Device routes require token when it
// is non-empty. m may be nil to skip instrumentation.
func (h *Handler) APIRoutes(token string, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, next http.Handler, auth bool) {
		if auth {
			next = middleware.Auth(token, next)
		}
		if m != nil {
			next = m.Middleware("api", pattern, next)
		}
		mux.Handle(pattern, next)
	}

	// No auth
	handle("GET /healthz", http.HandlerFunc(h.Health), false)
	handle("GET /openapi.yaml", http.HandlerFunc(h.OpenAPISpec), false)
	handle("GET /docs", http.HandlerFunc(h.Docs), false)

	handle("POST /devices", http.HandlerFunc(h.CreateDevice), true)
	handle("GET /devices", http.HandlerFunc(h.ListDevices), true)
	handle("GET /devices/{id}", http.HandlerFunc(h.GetDevice), true)
	handle("PUT /devices/{id}", http.HandlerFunc(h.UpdateDevice), true)
	handle("DELETE /devices/{id}", http.HandlerFunc(h.DeleteDevice), true)
	return mux
}

// UIRoutes returns the server-rendered device UI.
func (h *Handler) UIRoutes(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, next http.HandlerFunc) {
		var hh http.Handler = next
		if m != nil {
			hh = m.Middleware("ui", pattern, hh)
		}
		mux.Handle(pattern, hh)
	}

	handle("GET /{$}", h.ListPage)
	handle("GET /healthz", h.Health)
	handle("GET /devices/add", h.AddForm)
	handle("POST /devices/add", h.AddSubmit)
	handle("GET /devices/edit/{id}", h.EditForm)
	handle("POST /devices/edit/{id}", h.EditSubmit)
	handle("POST /devices/{id}/remove", h.Remove)
	return mux
}
