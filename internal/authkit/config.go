package authkit

import (
	"net/http"
	"time"
)

// Default cookie names carrying the credential pair.
const (
	DefaultAccessCookieName  = "accessToken"
	DefaultRefreshCookieName = "refreshToken"
)

// ServerConfig configures signing secrets, token lifetimes and cookies.
type ServerConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	TokenIssuer        string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AccessCookieName   string
	RefreshCookieName  string
	CookieDomain       string
	SameSiteMode       http.SameSite
	AllowInsecureHTTP  bool
	GoogleWebClientID  string
	MaxUploadBytes     int64
	NonceTTL           time.Duration
}

func (configuration ServerConfig) accessCookieName() string {
	if configuration.AccessCookieName == "" {
		return DefaultAccessCookieName
	}
	return configuration.AccessCookieName
}

func (configuration ServerConfig) refreshCookieName() string {
	if configuration.RefreshCookieName == "" {
		return DefaultRefreshCookieName
	}
	return configuration.RefreshCookieName
}
