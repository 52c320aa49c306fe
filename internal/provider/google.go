package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Google verifies Google ID tokens and runs the auth-code exchange.
type Google struct {
	provider *oidc.Provider
	oauth    oauth2.Config
}

// NewGoogle discovers the issuer and prepares the verifier. redirectURL
// may be empty when only VerifyIDToken is used.
func NewGoogle(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*Google, error) {
	if issuer == "" {
		issuer = "https://accounts.google.com"
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("google provider discovery: %w", err)
	}
	return &Google{
		provider: p,
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     p.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// AuthCodeURL returns the consent-screen URL for the code flow.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange trades an auth code for an Identity, verifying the ID token
// against the issuer keys on the way.
func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("google code exchange: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Identity{}, errors.New("google response carried no id_token")
	}
	return g.VerifyIDToken(ctx, rawIDToken)
}

// VerifyIDToken validates a raw ID token (as handed over by the native
// Google SDK) and extracts the identity claims.
func (g *Google) VerifyIDToken(ctx context.Context, rawIDToken string) (Identity, error) {
	idToken, err := g.provider.Verifier(&oidc.Config{ClientID: g.oauth.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("google id token rejected: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Sub   string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("google claims: %w", err)
	}
	if claims.Email == "" {
		return Identity{}, errors.New("google id token carried no email")
	}
	return Identity{Token: rawIDToken, Email: claims.Email, Name: claims.Name}, nil
}
