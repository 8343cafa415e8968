package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// outboxSize bounds undelivered replies per connection; extra replies are dropped.
const outboxSize = 16

// Conn is one connected extension context.
type Conn struct {
	ID     string
	Origin string

	out chan Reply

	mu    sync.Mutex
	user  *domain.User
	token string
}

// Outbox delivers replies until the connection is removed.
func (c *Conn) Outbox() <-chan Reply {
	return c.out
}

// User returns the user bound to the connection, nil when signed out.
func (c *Conn) User() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Conn) session() (*domain.User, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.token
}

func (c *Conn) bind(u *domain.User, token string) {
	c.mu.Lock()
	c.user, c.token = u, token
	c.mu.Unlock()
}

func (c *Conn) send(r Reply) bool {
	r.BridgeVersion = BridgeVersion
	select {
	case c.out <- r:
		return true
	default:
		return false
	}
}

// Registry tracks connections by origin. It is only used to route replies and
// broadcasts.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Conn
	byOrigin map[string]map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Conn),
		byOrigin: make(map[string]map[string]*Conn),
	}
}

// Add registers a new connection for origin, optionally already signed in.
func (r *Registry) Add(origin string, u *domain.User, token string) *Conn {
	c := &Conn{
		ID:     uuid.NewString(),
		Origin: origin,
		out:    make(chan Reply, outboxSize),
		user:   u,
		token:  token,
	}
	r.mu.Lock()
	r.byID[c.ID] = c
	if r.byOrigin[origin] == nil {
		r.byOrigin[origin] = make(map[string]*Conn)
	}
	r.byOrigin[origin][c.ID] = c
	r.mu.Unlock()
	return c
}

// Remove forgets a connection and closes its outbox.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return
	}
	delete(r.byID, c.ID)
	if set := r.byOrigin[c.Origin]; set != nil {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(r.byOrigin, c.Origin)
		}
	}
	close(c.out)
}

// Get returns a connection by id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Len is the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Broadcast sends reply to every connection for which match returns true and
// returns how many accepted it.
func (r *Registry) Broadcast(reply Reply, match func(*Conn) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.byOrigin {
		for _, c := range set {
			if match != nil && !match(c) {
				continue
			}
			if c.send(reply) {
				n++
			}
		}
	}
	return n
}

// Send delivers reply to one connection if it is still registered.
func (r *Registry) Send(c *Conn, reply Reply) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byID[c.ID]; !ok {
		return false
	}
	return c.send(reply)
}
