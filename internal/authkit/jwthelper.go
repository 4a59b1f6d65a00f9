package authkit

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/tyemirov/vidtube/internal/store"
	"github.com/tyemirov/vidtube/pkg/sessionvalidator"
)

var errEmptySubject = errors.New("jwt.mint.failure: subject must be non-empty")

// MintAccessToken creates a signed HS256 access token carrying the principal's public identity.
func MintAccessToken(principal store.Principal, issuer string, signingKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(principal.ID) == "" {
		return "", time.Time{}, errEmptySubject
	}
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionvalidator.Claims{
		PrincipalID: principal.ID,
		Username:    principal.Username,
		Email:       principal.Email,
		FullName:    principal.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.access: %w", err)
	}
	return signed, expiresAt, nil
}

// MintRefreshToken creates a signed HS256 refresh token carrying only the principal id and a random token id.
func MintRefreshToken(principalID string, issuer string, signingKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(principalID) == "" {
		return "", time.Time{}, errEmptySubject
	}
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   principalID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.refresh: %w", err)
	}
	return signed, expiresAt, nil
}

// parseRefreshToken verifies signature, expiry and issuer, returning the embedded principal id.
func parseRefreshToken(tokenString string, issuer string, signingKey []byte, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsedToken, err := jwt.ParseWithClaims(tokenString, claims, func(parsed *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(func() time.Time {
		return now
	}))
	if err != nil {
		return "", fmt.Errorf("jwt.parse.refresh: %w", err)
	}
	if !parsedToken.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("jwt.parse.refresh: missing subject")
	}
	return claims.Subject, nil
}

// digestToken returns the at-rest form of a refresh token.
func digestToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func digestsEqual(stored *string, presented string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}
