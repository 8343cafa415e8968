package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() {
	RegisterStream(registerBridgeStream)
	Register(registerBridge)
}

func registerBridgeStream(r chi.Router, d deps.Deps) {
	r.Get("/bridge/stream", handlers.BridgeStream(d))
}

func registerBridge(r chi.Router, d deps.Deps) {
	r.Post("/bridge/messages", handlers.BridgeMessage(d))
}
