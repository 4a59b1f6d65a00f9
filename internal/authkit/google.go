package authkit

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleTokenValidator validates Google ID tokens for an audience.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// NewGoogleTokenValidator builds a validator backed by Google's published signing keys.
func NewGoogleTokenValidator(ctx context.Context) (GoogleTokenValidator, error) {
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.google.validator: %w", err)
	}
	return validator, nil
}

// googleIdentity is the subset of ID token claims used to link a principal.
type googleIdentity struct {
	subject  string
	email    string
	name     string
	picture  string
	nonce    string
	verified bool
}

func identityFromPayload(payload *idtoken.Payload) (googleIdentity, bool) {
	if payload == nil {
		return googleIdentity{}, false
	}
	issuer, _ := payload.Claims["iss"].(string)
	if issuer != "https://accounts.google.com" && issuer != "accounts.google.com" {
		return googleIdentity{}, false
	}
	identity := googleIdentity{}
	identity.subject, _ = payload.Claims["sub"].(string)
	identity.email, _ = payload.Claims["email"].(string)
	identity.name, _ = payload.Claims["name"].(string)
	identity.picture, _ = payload.Claims["picture"].(string)
	identity.nonce, _ = payload.Claims["nonce"].(string)
	identity.verified, _ = payload.Claims["email_verified"].(bool)
	if identity.subject == "" || identity.email == "" || !identity.verified {
		return googleIdentity{}, false
	}
	return identity, true
}
