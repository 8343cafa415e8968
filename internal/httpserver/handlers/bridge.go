package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/bridge"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// heartbeat keeps idle event streams open through proxies.
const heartbeat = 25 * time.Second

type streamOpen struct {
	Conn          string `json:"conn"`
	BridgeVersion int    `json:"bridgeVersion"`
}

// BridgeStream opens a server-sent event stream for one extension context.
// The first event carries the connection id to use with BridgeMessage.
func BridgeStream(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		u, _ := domain.UserFromContext(r.Context())
		c, ok := d.Bridge.Connect(origin, u, mw.TokenFromContext(r.Context()))
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		defer d.Bridge.Disconnect(c)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, "open", streamOpen{Conn: c.ID, BridgeVersion: bridge.BridgeVersion}); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case reply, open := <-c.Outbox():
				if !open {
					return
				}
				if err := writeEvent(w, "message", reply); err != nil {
					d.Logger.Debug("bridge stream write failed", logger.String("conn", c.ID), logger.Error(err))
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// BridgeMessage accepts one message for the stream ?conn=. Replies go out on
// the stream; messages that are not for the bridge are dropped silently.
func BridgeMessage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg bridge.Message
		if err := decodeJSON(r, &msg); err != nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		var caller bridge.Caller
		if u, ok := domain.UserFromContext(r.Context()); ok {
			caller = bridge.Caller{User: u, Token: mw.TokenFromContext(r.Context())}
		}
		d.Bridge.Handle(r.Context(), r.Header.Get("Origin"), r.URL.Query().Get("conn"), caller, msg)
		w.WriteHeader(http.StatusAccepted)
	}
}
