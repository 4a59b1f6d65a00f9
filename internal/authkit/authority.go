package authkit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/metrics"
	"github.com/tyemirov/vidtube/internal/store"
)

// Causes attached to the client-facing auth errors.
var (
	ErrRefreshTokenMissing = errors.New("auth.refresh.missing")
	ErrRefreshTokenInvalid = errors.New("auth.refresh.invalid")
	ErrRefreshTokenReused  = errors.New("auth.refresh.reused")
	ErrUnknownPrincipal    = errors.New("auth.principal.unknown")
	ErrPasswordMismatch    = errors.New("auth.password.mismatch")
)

// CredentialPair is an access token and the refresh token that can replace it.
type CredentialPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Authority issues, verifies and rotates credential pairs. Each principal has one refresh slot.
type Authority struct {
	configuration ServerConfig
	principals    PrincipalStore
	recorder      metrics.Recorder
	logger        *zap.Logger
	now           func() time.Time
	hashCost      int
}

// NewAuthority constructs an Authority over the given principal store.
func NewAuthority(configuration ServerConfig, principals PrincipalStore, recorder metrics.Recorder, logger *zap.Logger) *Authority {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authority{
		configuration: configuration,
		principals:    principals,
		recorder:      recorder,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		hashCost:      bcrypt.DefaultCost,
	}
}

// Configuration returns the settings the authority was built with.
func (authority *Authority) Configuration() ServerConfig {
	return authority.configuration
}

// Issue mints a fresh pair and overwrites the principal's refresh slot with its digest.
func (authority *Authority) Issue(ctx context.Context, principal store.Principal) (CredentialPair, error) {
	pair, err := authority.mint(principal)
	if err != nil {
		return CredentialPair{}, err
	}
	digest := digestToken(pair.RefreshToken)
	if err := authority.principals.SetRefreshTokenDigest(ctx, principal.ID, &digest); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CredentialPair{}, withCause(apiresponse.Unauthorized("Invalid refresh token"), ErrUnknownPrincipal)
		}
		return CredentialPair{}, apiresponse.Internal("Something went wrong while generating access and refresh token", err)
	}
	authority.recorder.Increment("auth.issue.success")
	return pair, nil
}

func (authority *Authority) mint(principal store.Principal) (CredentialPair, error) {
	now := authority.now()
	accessToken, accessExpiresAt, err := MintAccessToken(principal, authority.configuration.TokenIssuer, authority.configuration.AccessTokenSecret, authority.configuration.AccessTokenTTL, now)
	if err != nil {
		return CredentialPair{}, apiresponse.Internal("Something went wrong while generating access and refresh token", err)
	}
	refreshToken, refreshExpiresAt, err := MintRefreshToken(principal.ID, authority.configuration.TokenIssuer, authority.configuration.RefreshTokenSecret, authority.configuration.RefreshTokenTTL, now)
	if err != nil {
		return CredentialPair{}, apiresponse.Internal("Something went wrong while generating access and refresh token", err)
	}
	return CredentialPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Verify checks the refresh token against the refresh secret and the stored slot.
func (authority *Authority) Verify(ctx context.Context, refreshToken string) (store.Principal, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return store.Principal{}, withCause(apiresponse.Unauthorized("Unauthorized request"), ErrRefreshTokenMissing)
	}
	principalID, err := parseRefreshToken(refreshToken, authority.configuration.TokenIssuer, authority.configuration.RefreshTokenSecret, authority.now())
	if err != nil {
		authority.logger.Debug("refresh token rejected", zap.String("code", "auth.refresh.parse_failed"), zap.Error(err))
		return store.Principal{}, withCause(apiresponse.Unauthorized("Invalid refresh token"), ErrRefreshTokenInvalid)
	}
	principal, err := authority.principals.PrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Principal{}, withCause(apiresponse.Unauthorized("Invalid refresh token"), ErrUnknownPrincipal)
		}
		return store.Principal{}, apiresponse.Internal("", err)
	}
	if !digestsEqual(principal.RefreshTokenDigest, digestToken(refreshToken)) {
		return store.Principal{}, withCause(apiresponse.Unauthorized("Refresh token is expired or used"), ErrRefreshTokenReused)
	}
	return principal, nil
}

// Rotate verifies the refresh token and replaces the pair. A token can rotate at most once.
func (authority *Authority) Rotate(ctx context.Context, refreshToken string) (CredentialPair, error) {
	principal, err := authority.Verify(ctx, refreshToken)
	if err != nil {
		authority.recorder.Increment("auth.refresh.failure")
		return CredentialPair{}, asUnauthorized(err)
	}
	pair, err := authority.mint(principal)
	if err != nil {
		authority.recorder.Increment("auth.refresh.failure")
		return CredentialPair{}, asUnauthorized(err)
	}
	swapped, err := authority.principals.SwapRefreshTokenDigest(ctx, principal.ID, digestToken(refreshToken), digestToken(pair.RefreshToken))
	if err != nil {
		authority.recorder.Increment("auth.refresh.failure")
		authority.logger.Error("refresh slot update failed", zap.String("code", "auth.refresh.persist_failed"), zap.Error(err))
		return CredentialPair{}, withCause(apiresponse.Unauthorized("Invalid refresh token"), err)
	}
	if !swapped {
		authority.recorder.Increment("auth.refresh.failure")
		return CredentialPair{}, withCause(apiresponse.Unauthorized("Refresh token is expired or used"), ErrRefreshTokenReused)
	}
	authority.recorder.Increment("auth.refresh.success")
	return pair, nil
}

// Login checks the password of the principal named by username or email and issues a pair.
func (authority *Authority) Login(ctx context.Context, username string, email string, password string) (CredentialPair, store.Principal, error) {
	if strings.TrimSpace(username) == "" && strings.TrimSpace(email) == "" {
		return CredentialPair{}, store.Principal{}, apiresponse.BadRequest("username or email is required")
	}
	if password == "" {
		return CredentialPair{}, store.Principal{}, apiresponse.BadRequest("password is required")
	}
	principal, err := authority.principals.PrincipalByIdentifier(ctx, username, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authority.recorder.Increment("auth.login.unknown")
			return CredentialPair{}, store.Principal{}, withCause(apiresponse.NotFound("User does not exist"), ErrUnknownPrincipal)
		}
		return CredentialPair{}, store.Principal{}, apiresponse.Internal("", err)
	}
	if !authority.passwordMatches(principal, password) {
		authority.recorder.Increment("auth.login.failure")
		return CredentialPair{}, store.Principal{}, withCause(apiresponse.Unauthorized("Password incorrect"), ErrPasswordMismatch)
	}
	pair, err := authority.Issue(ctx, principal)
	if err != nil {
		return CredentialPair{}, store.Principal{}, err
	}
	authority.recorder.Increment("auth.login.success")
	return pair, principal, nil
}

// Logout empties the principal's refresh slot.
func (authority *Authority) Logout(ctx context.Context, principalID string) error {
	if err := authority.principals.SetRefreshTokenDigest(ctx, principalID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return withCause(apiresponse.Unauthorized("Invalid Access Token"), ErrUnknownPrincipal)
		}
		return apiresponse.Internal("", err)
	}
	authority.recorder.Increment("auth.logout")
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (authority *Authority) ChangePassword(ctx context.Context, principalID string, oldPassword string, newPassword string) error {
	principal, err := authority.principals.PrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apiresponse.NotFound("User does not exist")
		}
		return apiresponse.Internal("", err)
	}
	if !authority.passwordMatches(principal, oldPassword) {
		return withCause(apiresponse.BadRequest("Invalid old password"), ErrPasswordMismatch)
	}
	passwordHash, err := authority.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := authority.principals.SetPasswordHash(ctx, principalID, passwordHash); err != nil {
		return apiresponse.Internal("", err)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored for a password.
func (authority *Authority) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), authority.hashCost)
	if err != nil {
		return "", apiresponse.Internal("", err)
	}
	return string(hashed), nil
}

func (authority *Authority) passwordMatches(principal store.Principal, password string) bool {
	if principal.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)) == nil
}

func withCause(apiErr *apiresponse.Error, cause error) *apiresponse.Error {
	apiErr.Cause = cause
	return apiErr
}

func asUnauthorized(err error) error {
	var apiErr *apiresponse.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apiresponse.KindUnauthorized {
		return apiErr
	}
	return withCause(apiresponse.Unauthorized("Invalid refresh token"), err)
}
