package authkit

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/store"
	"github.com/tyemirov/vidtube/pkg/sessionvalidator"
)

const (
	principalContextKey = "auth_principal"
	claimsContextKey    = sessionvalidator.DefaultContextKey
)

// PrincipalLoader loads the principal named by an access token.
type PrincipalLoader interface {
	PrincipalByID(ctx context.Context, principalID string) (store.Principal, error)
}

// RequireSession validates the access token from the cookie or bearer header and loads its principal.
func RequireSession(validator *sessionvalidator.Validator, principals PrincipalLoader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	validateClaims := validator.GinMiddleware(claimsContextKey)
	return func(contextGin *gin.Context) {
		validateClaims(contextGin)
		if contextGin.IsAborted() {
			return
		}
		claims, ok := sessionClaims(contextGin)
		if !ok {
			apiresponse.Abort(contextGin, apiresponse.Unauthorized("Unauthorized request"))
			return
		}
		principal, err := principals.PrincipalByID(contextGin.Request.Context(), claims.GetPrincipalID())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				apiresponse.Abort(contextGin, apiresponse.Unauthorized("Invalid Access Token"))
				return
			}
			logger.Error("session principal lookup failed", zap.String("code", "auth.session.lookup_failed"), zap.Error(err))
			apiresponse.Abort(contextGin, apiresponse.Internal("", err))
			return
		}
		SetPrincipal(contextGin, principal)
		contextGin.Next()
	}
}

func sessionClaims(contextGin *gin.Context) (*sessionvalidator.Claims, bool) {
	value, exists := contextGin.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*sessionvalidator.Claims)
	return claims, ok
}

// SetPrincipal attaches the authenticated principal to the request context.
func SetPrincipal(contextGin *gin.Context, principal store.Principal) {
	contextGin.Set(principalContextKey, principal)
}

// CurrentPrincipal returns the principal loaded by RequireSession.
func CurrentPrincipal(contextGin *gin.Context) (store.Principal, bool) {
	value, exists := contextGin.Get(principalContextKey)
	if !exists {
		return store.Principal{}, false
	}
	principal, ok := value.(store.Principal)
	return principal, ok
}

// MustPrincipal returns the session principal or an Unauthorized error for handlers mounted behind RequireSession.
func MustPrincipal(contextGin *gin.Context) (store.Principal, *apiresponse.Error) {
	principal, ok := CurrentPrincipal(contextGin)
	if !ok {
		return store.Principal{}, apiresponse.Unauthorized("Unauthorized request")
	}
	return principal, nil
}
