package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errWildcardOrigin      = errors.New("web.cors.wildcard_origin")
	errEmptyAllowedOrigins = errors.New("web.cors.empty_origins")
	errInvalidOrigin       = errors.New("web.cors.invalid_origin")
)

const corsPreflightMaxAge = 12 * time.Hour

// Browser clients send JSON or multipart bodies and may present the access token as a bearer header.
var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{"Authorization", "Content-Type", "X-Requested-With"}
	corsExposedHeaders = []string{"Content-Length", "Content-Type", "Content-Disposition"}
)

// ConfigureCORS allows credentialed cross-origin requests from the supplied origins only.
// Credentials are required because sessions travel in the accessToken and refreshToken cookies.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins, err := sanitizeOrigins(logger, allowedOrigins)
	if err != nil {
		return nil, err
	}
	logger.Info("cors enabled", zap.Strings("origins", origins))
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsPreflightMaxAge,
	}), nil
}

// sanitizeOrigins normalizes every configured origin and returns them sorted without duplicates.
func sanitizeOrigins(logger *zap.Logger, configured []string) ([]string, error) {
	origins := make([]string, 0, len(configured))
	for _, raw := range configured {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		origin, secure, err := normalizeOrigin(trimmed)
		if err != nil {
			return nil, err
		}
		if !secure {
			logger.Warn("plain http cors origin outside local development",
				zap.String("code", "web.cors.insecure_origin"),
				zap.String("origin", origin))
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return nil, errEmptyAllowedOrigins
	}
	slices.Sort(origins)
	return slices.Compact(origins), nil
}

// normalizeOrigin lower-cases scheme and host and drops the scheme's default port.
// secure is false for plain http origins that are not loopback hosts.
func normalizeOrigin(raw string) (origin string, secure bool, err error) {
	if raw == "*" {
		return "", false, errWildcardOrigin
	}
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false, fmt.Errorf("%w: %s", errInvalidOrigin, raw)
	}
	switch {
	case parsed.User != nil:
		return "", false, fmt.Errorf("%w: %s carries credentials", errInvalidOrigin, raw)
	case parsed.Path != "" && parsed.Path != "/":
		return "", false, fmt.Errorf("%w: %s contains path segment", errInvalidOrigin, raw)
	case parsed.RawQuery != "" || parsed.Fragment != "":
		return "", false, fmt.Errorf("%w: %s contains query or fragment", errInvalidOrigin, raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	defaultPort := map[string]string{"http": "80", "https": "443"}[scheme]
	if defaultPort == "" {
		return "", false, fmt.Errorf("%w: %s uses unsupported scheme", errInvalidOrigin, raw)
	}
	hostname := strings.ToLower(parsed.Hostname())
	host := hostname
	if port := parsed.Port(); port != "" && port != defaultPort {
		host = net.JoinHostPort(hostname, port)
	} else if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	return scheme + "://" + host, scheme == "https" || isDevelopmentHost(hostname), nil
}

func isDevelopmentHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
