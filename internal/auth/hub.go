package auth

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

// EventSource delivers auth-state transitions published by any instance.
type EventSource interface {
	SubscribeAuthEvents(ctx context.Context) (<-chan redisstore.AuthEvent, error)
}

// Listener is called for every transition. ev.User is nil on sign-out.
type Listener func(ev redisstore.AuthEvent)

// Hub fans auth-state transitions out to in-process listeners.
type Hub struct {
	src EventSource
	log logger.Logger

	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func NewHub(src EventSource, log logger.Logger) *Hub {
	return &Hub{src: src, log: log, listeners: make(map[int]Listener)}
}

// OnAuthStateChange registers fn and returns a function that removes it.
func (h *Hub) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Run dispatches events until ctx is cancelled or the subscription ends.
func (h *Hub) Run(ctx context.Context) error {
	events, err := h.src.SubscribeAuthEvents(ctx)
	if err != nil {
		return err
	}
	h.log.Info("auth-state hub started")
	for ev := range events {
		h.dispatch(ev)
	}
	h.log.Info("auth-state hub stopped")
	return ctx.Err()
}

func (h *Hub) dispatch(ev redisstore.AuthEvent) {
	h.mu.RLock()
	fns := make([]Listener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
