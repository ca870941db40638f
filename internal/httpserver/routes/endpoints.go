package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/warden/internal/httpserver/deps"
	"github.com/MrSnakeDoc/warden/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/warden/internal/httpserver/mw"
)

func init() { Register(registerEndpoints) }

func registerEndpoints(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/endpoints", handlers.Endpoints(d))
}
