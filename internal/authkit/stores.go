package authkit

import (
	"context"

	"github.com/tyemirov/vidtube/internal/store"
)

// PrincipalStore persists principals and their single refresh-token slot.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, principal *store.Principal) error
	PrincipalByID(ctx context.Context, principalID string) (store.Principal, error)
	PrincipalByIdentifier(ctx context.Context, username string, email string) (store.Principal, error)
	PrincipalExists(ctx context.Context, username string, email string) (bool, error)
	SetRefreshTokenDigest(ctx context.Context, principalID string, digest *string) error
	SwapRefreshTokenDigest(ctx context.Context, principalID string, expected string, next string) (bool, error)
	SetPasswordHash(ctx context.Context, principalID string, passwordHash string) error
	UpsertGooglePrincipal(ctx context.Context, googleSubject string, email string, fullName string, avatarURL string) (store.Principal, error)
}
