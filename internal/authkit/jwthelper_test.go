package authkit

import (
	"errors"
	"testing"
	"time"

	"github.com/tyemirov/vidtube/internal/store"
	"github.com/tyemirov/vidtube/pkg/sessionvalidator"
)

func TestMintAccessTokenRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	_, _, err := MintAccessToken(store.Principal{}, "issuer", []byte("signing-key"), time.Minute, time.Unix(1700000000, 0))
	if !errors.Is(err, errEmptySubject) {
		t.Fatalf("expected empty subject error, got %v", err)
	}
	_, _, err = MintRefreshToken(" ", "issuer", []byte("signing-key"), time.Minute, time.Unix(1700000000, 0))
	if !errors.Is(err, errEmptySubject) {
		t.Fatalf("expected empty subject error, got %v", err)
	}
}

func TestMintAccessTokenIsReadableBySessionValidator(t *testing.T) {
	t.Parallel()

	reference := time.Now().UTC().Truncate(time.Second)
	principal := store.Principal{ID: "principal-1", Username: "alice", Email: "alice@example.com", FullName: "Alice"}
	token, expiresAt, err := MintAccessToken(principal, "vidtube", []byte("access-key"), 2*time.Minute, reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expiresAt.Equal(reference.Add(2 * time.Minute)) {
		t.Fatalf("expected expiry %v, got %v", reference.Add(2*time.Minute), expiresAt)
	}
	validator, err := sessionvalidator.New(sessionvalidator.Config{SigningKey: []byte("access-key"), Issuer: "vidtube"})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected token to validate, got %v", err)
	}
	if claims.Username != "alice" || claims.GetPrincipalID() != "principal-1" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestRefreshTokensAreUniqueAndSecretBound(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	first, _, err := MintRefreshToken("principal-1", "vidtube", []byte("refresh-key"), time.Hour, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, _, err := MintRefreshToken("principal-1", "vidtube", []byte("refresh-key"), time.Hour, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if first == second || digestToken(first) == digestToken(second) {
		t.Fatalf("expected distinct refresh tokens for the same instant")
	}
	subject, err := parseRefreshToken(first, "vidtube", []byte("refresh-key"), now.Add(time.Minute))
	if err != nil || subject != "principal-1" {
		t.Fatalf("expected subject principal-1, got %q %v", subject, err)
	}
	if _, err := parseRefreshToken(first, "vidtube", []byte("access-key"), now); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := parseRefreshToken(first, "vidtube", []byte("refresh-key"), now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestDigestsEqual(t *testing.T) {
	t.Parallel()

	digest := digestToken("token")
	if !digestsEqual(&digest, digestToken("token")) {
		t.Fatalf("expected equal digests")
	}
	if digestsEqual(nil, digest) {
		t.Fatalf("expected empty slot to never match")
	}
	if digestsEqual(&digest, digestToken("other")) {
		t.Fatalf("expected different tokens to differ")
	}
}
