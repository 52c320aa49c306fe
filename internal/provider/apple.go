package provider

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AppleIdentity extracts email from an Apple identity token. The signature
// is NOT checked here: Apple tokens are verified by the auth API against
// Apple's keys, and the client only needs the claims to drive the
// signup/signin asymmetry. fallbackName covers the fact that Apple hands
// the display name over outside the token, and only on first sign-in.
func AppleIdentity(identityToken, fallbackName string) (Identity, error) {
	if identityToken == "" {
		return Identity{}, errors.New("empty apple identity token")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(identityToken, claims); err != nil {
		return Identity{}, fmt.Errorf("apple identity token: %w", err)
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return Identity{}, errors.New("apple identity token carried no email")
	}
	return Identity{Token: identityToken, Email: email, Name: fallbackName}, nil
}
