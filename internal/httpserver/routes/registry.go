package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg       Registrar
	mws       []Middleware
	streaming bool
}

var registry []entry

// Register a registrar with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterStream registers long-lived routes that must not inherit the
// per-request timeout.
func RegisterStream(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws, streaming: true})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		if e.streaming {
			mount(r, e, d)
		}
	}
	r.Group(func(g chi.Router) {
		if d.RequestTimeout > 0 {
			g.Use(middleware.Timeout(d.RequestTimeout))
		}
		for _, e := range registry {
			if !e.streaming {
				mount(g, e, d)
			}
		}
	})
}

func mount(r chi.Router, e entry, d deps.Deps) {
	if len(e.mws) == 0 {
		e.reg(r, d)
		return
	}
	sub := r.With(e.mws...) // apply per-route middlewares
	e.reg(sub, d)
}
