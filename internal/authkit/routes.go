package authkit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/store"
)

// Routes serves registration, login, refresh, logout, password change and Google sign-in.
type Routes struct {
	authority  *Authority
	principals PrincipalStore
	uploader   *media.Uploader
	nonces     NonceStore
	google     GoogleTokenValidator
	logger     *zap.Logger
}

// NewRoutes wires the auth handlers. google may be nil when Google sign-in is not configured.
func NewRoutes(authority *Authority, principals PrincipalStore, uploader *media.Uploader, nonces NonceStore, google GoogleTokenValidator, logger *zap.Logger) *Routes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Routes{
		authority:  authority,
		principals: principals,
		uploader:   uploader,
		nonces:     nonces,
		google:     google,
		logger:     logger,
	}
}

// Mount registers the handlers on the users group. requireSession guards logout and change-password.
func (routes *Routes) Mount(router gin.IRouter, requireSession gin.HandlerFunc) {
	router.POST("/register", apiresponse.Handle(routes.logger, routes.register))
	router.POST("/login", apiresponse.Handle(routes.logger, routes.login))
	router.POST("/refresh-token", apiresponse.Handle(routes.logger, routes.refresh))
	router.POST("/logout", requireSession, apiresponse.Handle(routes.logger, routes.logout))
	changePassword := apiresponse.Handle(routes.logger, routes.changePassword)
	router.PUT("/change-password", requireSession, changePassword)
	router.POST("/change-password", requireSession, changePassword)
	if routes.google != nil && routes.nonces != nil {
		router.POST("/google/nonce", apiresponse.Handle(routes.logger, routes.googleNonce))
		router.POST("/google", apiresponse.Handle(routes.logger, routes.googleSignIn))
	}
}

type registerForm struct {
	FullName string `form:"fullName" json:"fullName" binding:"required,notblank"`
	Email    string `form:"email" json:"email" binding:"required,notblank,email"`
	Username string `form:"username" json:"username" binding:"required,notblank"`
	Password string `form:"password" json:"password" binding:"required,notblank"`
}

func (routes *Routes) register(contextGin *gin.Context) apiresponse.Result {
	var form registerForm
	if apiErr := apiresponse.Bind(contextGin, &form); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	ctx := contextGin.Request.Context()
	exists, err := routes.principals.PrincipalExists(ctx, form.Username, form.Email)
	if err != nil {
		return apiresponse.Fail(err)
	}
	if exists {
		return apiresponse.Fail(apiresponse.Conflict("User with email or username already exists"))
	}
	avatar, apiErr := routes.uploader.FormFile(contextGin, "avatar", media.KindImage, true, "Avatar file is required")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	coverImage, apiErr := routes.uploader.FormFile(contextGin, "coverImage", media.KindImage, false, "")
	if apiErr != nil {
		routes.uploader.Discard(ctx, avatar.PublicID, media.KindImage)
		return apiresponse.Fail(apiErr)
	}
	passwordHash, err := routes.authority.HashPassword(form.Password)
	if err != nil {
		routes.discardUploads(ctx, avatar, coverImage)
		return apiresponse.Fail(err)
	}
	principal := store.Principal{
		Username:       form.Username,
		Email:          form.Email,
		FullName:       strings.TrimSpace(form.FullName),
		Avatar:         avatar.URL,
		AvatarPublicID: avatar.PublicID,
		PasswordHash:   passwordHash,
	}
	if coverImage != nil {
		principal.CoverImage = coverImage.URL
		principal.CoverImagePublicID = coverImage.PublicID
	}
	if err := routes.principals.CreatePrincipal(ctx, &principal); err != nil {
		routes.discardUploads(ctx, avatar, coverImage)
		if errors.Is(err, store.ErrConflict) {
			return apiresponse.Fail(apiresponse.Conflict("User with email or username already exists"))
		}
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while registering the user", err))
	}
	created, err := routes.principals.PrincipalByID(ctx, principal.ID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while registering the user", err))
	}
	return apiresponse.OK(http.StatusCreated, created, "User registered successfully")
}

func (routes *Routes) discardUploads(ctx context.Context, assets ...*media.Asset) {
	for _, asset := range assets {
		if asset != nil {
			routes.uploader.Discard(ctx, asset.PublicID, media.KindImage)
		}
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type sessionPayload struct {
	User store.Principal `json:"user"`
	CredentialPair
}

func (routes *Routes) login(contextGin *gin.Context) apiresponse.Result {
	var request loginRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	pair, principal, err := routes.authority.Login(contextGin.Request.Context(), request.Username, request.Email, request.Password)
	if err != nil {
		return apiresponse.Fail(err)
	}
	routes.writeCredentialCookies(contextGin, pair)
	return apiresponse.OK(http.StatusOK, sessionPayload{User: principal, CredentialPair: pair}, "User logged In Successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (routes *Routes) refresh(contextGin *gin.Context) apiresponse.Result {
	configuration := routes.authority.Configuration()
	refreshToken := ""
	if cookie, err := contextGin.Request.Cookie(configuration.refreshCookieName()); err == nil {
		refreshToken = strings.TrimSpace(cookie.Value)
	}
	if refreshToken == "" && contextGin.Request.ContentLength != 0 {
		var request refreshRequest
		if err := contextGin.ShouldBindJSON(&request); err == nil {
			refreshToken = strings.TrimSpace(request.RefreshToken)
		}
	}
	pair, err := routes.authority.Rotate(contextGin.Request.Context(), refreshToken)
	if err != nil {
		return apiresponse.Fail(err)
	}
	routes.writeCredentialCookies(contextGin, pair)
	return apiresponse.OK(http.StatusOK, pair, "Access token refreshed")
}

func (routes *Routes) logout(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	if err := routes.authority.Logout(contextGin.Request.Context(), principal.ID); err != nil {
		return apiresponse.Fail(err)
	}
	routes.clearCredentialCookies(contextGin)
	return apiresponse.OK(http.StatusOK, gin.H{}, "User logged Out")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,notblank"`
}

func (routes *Routes) changePassword(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var request changePasswordRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	if err := routes.authority.ChangePassword(contextGin.Request.Context(), principal.ID, request.OldPassword, request.NewPassword); err != nil {
		return apiresponse.Fail(err)
	}
	return apiresponse.OK(http.StatusOK, gin.H{}, "Password changed successfully")
}

func (routes *Routes) googleNonce(contextGin *gin.Context) apiresponse.Result {
	nonce, err := routes.nonces.Issue(contextGin.Request.Context())
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, gin.H{"nonce": nonce}, "Nonce issued")
}

type googleSignInRequest struct {
	GoogleIDToken string `json:"googleIdToken" binding:"required,notblank"`
	Nonce         string `json:"nonce" binding:"required,notblank"`
}

func (routes *Routes) googleSignIn(contextGin *gin.Context) apiresponse.Result {
	var request googleSignInRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	configuration := routes.authority.Configuration()
	if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
		return apiresponse.Fail(apiresponse.BadRequest("HTTPS is required"))
	}
	ctx := contextGin.Request.Context()
	if err := routes.nonces.Consume(ctx, request.Nonce); err != nil {
		return apiresponse.Fail(withCause(apiresponse.Unauthorized("Invalid nonce"), err))
	}
	payload, err := routes.google.Validate(ctx, request.GoogleIDToken, configuration.GoogleWebClientID)
	if err != nil {
		routes.authority.recorder.Increment("auth.google.failure")
		return apiresponse.Fail(withCause(apiresponse.Unauthorized("Invalid Google token"), err))
	}
	identity, ok := identityFromPayload(payload)
	if !ok || identity.nonce != request.Nonce {
		routes.authority.recorder.Increment("auth.google.failure")
		return apiresponse.Fail(apiresponse.Unauthorized("Unverified Google identity"))
	}
	principal, err := routes.principals.UpsertGooglePrincipal(ctx, identity.subject, identity.email, identity.name, identity.picture)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	pair, err := routes.authority.Issue(ctx, principal)
	if err != nil {
		return apiresponse.Fail(err)
	}
	routes.authority.recorder.Increment("auth.google.success")
	routes.writeCredentialCookies(contextGin, pair)
	return apiresponse.OK(http.StatusOK, sessionPayload{User: principal, CredentialPair: pair}, "User logged In Successfully")
}

func (routes *Routes) writeCredentialCookies(contextGin *gin.Context, pair CredentialPair) {
	configuration := routes.authority.Configuration()
	writeCookie(contextGin, configuration, configuration.accessCookieName(), pair.AccessToken, pair.AccessExpiresAt)
	writeCookie(contextGin, configuration, configuration.refreshCookieName(), pair.RefreshToken, pair.RefreshExpiresAt)
}

func (routes *Routes) clearCredentialCookies(contextGin *gin.Context) {
	configuration := routes.authority.Configuration()
	clearCookie(contextGin, configuration.accessCookieName(), configuration.CookieDomain, configuration.SameSiteMode)
	clearCookie(contextGin, configuration.refreshCookieName(), configuration.CookieDomain, configuration.SameSiteMode)
}

func writeCookie(contextGin *gin.Context, configuration ServerConfig, name string, value string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearCookie(contextGin *gin.Context, name string, domain string, sameSite http.SameSite) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func isHTTPS(request *http.Request) bool {
	if request.TLS != nil {
		return true
	}
	if strings.EqualFold(request.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	forwarded := request.Header.Get("Forwarded")
	if forwarded != "" && strings.Contains(strings.ToLower(forwarded), "proto=https") {
		return true
	}
	host, _, splitErr := net.SplitHostPort(request.Host)
	return splitErr == nil && host == "localhost"
}
