// Package bridge relays sign-in, sign-out and auth-state messages between the
// browser extension and the identity session held by this service.
package bridge

import (
	"strings"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// BridgeVersion is echoed in every reply.
const BridgeVersion = 1

// Message types.
const (
	TypePing        = "ob:ping"
	TypePong        = "ob:pong"
	TypeSignIn      = "ob:signin"
	TypeCredential  = "ob:credential"
	TypeSignOut     = "ob:signout"
	TypeSignedOut   = "ob:signed-out"
	TypeAuthRequest = "ob:auth-request"
	TypeAuthState   = "ob:auth-state"
)

// DefaultOriginPrefix is the only origin family allowed to use the bridge.
const DefaultOriginPrefix = "chrome-extension://"

// Message is a request from the extension. IDToken is set on ob:signin when
// the extension already holds a token from the identity provider.
type Message struct {
	Type    string `json:"type"`
	IDToken string `json:"idToken,omitempty"`
}

// UserInfo is the user as exposed to the extension. Missing values are null.
type UserInfo struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// Credential is handed back after a bridge sign-in.
type Credential struct {
	ProviderID   string `json:"providerId"`
	SessionToken string `json:"sessionToken"`
}

// Error is a structured failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply is sent to the extension. User is always present on auth-state
// replies, null when signed out.
type Reply struct {
	Type          string      `json:"type"`
	User          *UserInfo   `json:"user"`
	Credential    *Credential `json:"credential,omitempty"`
	SignInURL     string      `json:"signInUrl,omitempty"`
	Error         *Error      `json:"error,omitempty"`
	BridgeVersion int         `json:"bridgeVersion"`
}

// ExtractUser converts a user to its bridge form.
func ExtractUser(u *domain.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		UID:         u.UID,
		Email:       optional(u.Email),
		DisplayName: optional(u.DisplayName),
		PhotoURL:    optional(u.PhotoURL),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AllowedOrigin reports whether origin may talk to the bridge.
func AllowedOrigin(origin, prefix string) bool {
	if prefix == "" {
		prefix = DefaultOriginPrefix
	}
	return strings.HasPrefix(origin, prefix) && len(origin) > len(prefix)
}
