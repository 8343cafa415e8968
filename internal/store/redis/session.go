package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// Session is a signed-in user bound to an opaque token.
type Session struct {
	Token     string       `json:"token"`
	User      *domain.User `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
}

// AuthState is a pending sign-in, consumed once by the callback.
type AuthState struct {
	Mode     string `json:"mode"`
	ReturnTo string `json:"returnTo"`
	// Conn is the bridge connection waiting on this sign-in, if any.
	Conn string `json:"conn,omitempty"`
}

// SaveSession stores a session with the given lifetime.
func (s *Store) SaveSession(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.Token == "" || sess.User == nil {
		return fmt.Errorf("%w: incomplete session", domain.ErrInvalidInput)
	}
	data, err := mustJSON(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, SessionKey(sess.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession resolves a token. Unknown or expired tokens yield domain.ErrUnauthenticated.
func (s *Store) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	var sess Session
	if err := getJSON(ctx, s.client, SessionKey(token), &sess); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session and returns it, or nil when it did not exist.
func (s *Store) DeleteSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	data, err := s.client.GetDel(ctx, SessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	var sess Session
	if err := unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveAuthState stores a one-time sign-in state.
func (s *Store) SaveAuthState(ctx context.Context, state string, st AuthState, ttl time.Duration) error {
	data, err := mustJSON(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, AuthStateKey(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save auth state: %w", err)
	}
	return nil
}

// ConsumeAuthState returns and deletes a sign-in state. Unknown states yield
// domain.ErrUnauthenticated.
func (s *Store) ConsumeAuthState(ctx context.Context, state string) (*AuthState, error) {
	if state == "" {
		return nil, domain.ErrUnauthenticated
	}
	data, err := s.client.GetDel(ctx, AuthStateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("unknown sign-in state: %w", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to read auth state: %w", err)
	}
	var st AuthState
	if err := unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
