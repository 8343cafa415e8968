package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// AuthEvent is published on ChannelAuthState whenever a user signs in or out.
// User is nil on sign-out. Conn and Token are set only when the sign-in was
// started for a bridge connection.
type AuthEvent struct {
	UID   string       `json:"uid"`
	User  *domain.User `json:"user"`
	Conn  string       `json:"conn,omitempty"`
	Token string       `json:"token,omitempty"`
}

// PublishAuthEvent broadcasts an auth-state transition to every instance.
func (s *Store) PublishAuthEvent(ctx context.Context, ev AuthEvent) error {
	data, err := mustJSON(ev)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, ChannelAuthState, data).Err(); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// SubscribeAuthEvents delivers auth-state transitions until ctx is done. The
// returned channel is closed when the subscription ends. Undecodable payloads are
// dropped.
func (s *Store) SubscribeAuthEvents(ctx context.Context) (<-chan AuthEvent, error) {
	sub := s.client.Subscribe(ctx, ChannelAuthState)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ChannelAuthState, err)
	}

	out := make(chan AuthEvent)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev AuthEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
