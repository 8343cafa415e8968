package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// Identity is the identity provider as seen by the Manager.
type Identity interface {
	// AuthCodeURL returns the provider URL that starts a sign-in for state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the user and its raw ID token.
	Exchange(ctx context.Context, code string) (*domain.User, string, error)
	// Verify checks a raw ID token issued for this client.
	Verify(ctx context.Context, rawIDToken string) (*domain.User, error)
}

// OIDCOptions configures an OpenID Connect identity provider.
type OIDCOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Retries      int
	Interval     time.Duration
}

// OIDCIdentity implements Identity with go-oidc and the oauth2 code flow.
type OIDCIdentity struct {
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

type idClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewOIDCIdentity discovers the provider, retrying while it is not reachable yet.
func NewOIDCIdentity(ctx context.Context, opts OIDCOptions, log logger.Logger) (*OIDCIdentity, error) {
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}

	var (
		provider *oidc.Provider
		err      error
	)
	for i := 1; i <= retries; i++ {
		provider, err = oidc.NewProvider(ctx, opts.Issuer)
		if err == nil {
			break
		}
		log.Warn("identity provider discovery failed",
			logger.String("issuer", opts.Issuer),
			logger.Int("attempt", i),
			logger.Int("max_attempts", retries),
			logger.Error(err))
		if i == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to discover identity provider after %d attempts: %w", retries, err)
	}

	scopes := append([]string{oidc.ScopeOpenID}, opts.Scopes...)
	log.Info("identity provider ready",
		logger.String("issuer", opts.Issuer),
		logger.String("client_id", opts.ClientID))

	return &OIDCIdentity{
		verifier: provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		oauth: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

func (o *OIDCIdentity) AuthCodeURL(state string) string {
	return o.oauth.AuthCodeURL(state)
}

func (o *OIDCIdentity) Exchange(ctx context.Context, code string) (*domain.User, string, error) {
	tok, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, "", errors.New("token response carries no id_token")
	}
	u, err := o.Verify(ctx, raw)
	if err != nil {
		return nil, "", err
	}
	return u, raw, nil
}

func (o *OIDCIdentity) Verify(ctx context.Context, rawIDToken string) (*domain.User, error) {
	tok, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	var c idClaims
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return &domain.User{
		UID:         tok.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
	}, nil
}
