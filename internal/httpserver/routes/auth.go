package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(limited(d))
		r.Get("/signin", handlers.SignIn(d))
		r.Get("/callback", handlers.Callback(d))
		r.Post("/signout", handlers.SignOut(d))
		r.Get("/state", handlers.AuthState(d))
	})
}
