package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/media"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger, err := zap.NewProduction()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	router := gin.New()
	router.Use(zapLoggerMiddleware(logger))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServerMissingConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}

	expectedMessage := "config.uninitialized_server_config: server configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func setRequiredConfig() {
	viper.Set("access_token_secret", "access-secret")
	viper.Set("refresh_token_secret", "refresh-secret")
	viper.Set("access_token_ttl", time.Minute)
	viper.Set("refresh_token_ttl", time.Hour)
}

func TestLoadServerConfigValidation(t *testing.T) {
	testCases := []struct {
		name            string
		override        func()
		expectedMessage string
	}{
		{
			name:            "missing access secret",
			override:        func() { viper.Set("access_token_secret", "") },
			expectedMessage: "config.missing_access_token_secret: access_token_secret must be provided",
		},
		{
			name:            "missing refresh secret",
			override:        func() { viper.Set("refresh_token_secret", "") },
			expectedMessage: "config.missing_refresh_token_secret: refresh_token_secret must be provided",
		},
		{
			name:            "shared secret",
			override:        func() { viper.Set("refresh_token_secret", "access-secret") },
			expectedMessage: "config.shared_token_secret: refresh_token_secret must differ from access_token_secret",
		},
		{
			name:            "non-positive access ttl",
			override:        func() { viper.Set("access_token_ttl", 0) },
			expectedMessage: "config.invalid_access_token_ttl: access_token_ttl must be greater than zero",
		},
		{
			name:            "non-positive refresh ttl",
			override:        func() { viper.Set("refresh_token_ttl", -time.Second) },
			expectedMessage: "config.invalid_refresh_token_ttl: refresh_token_ttl must be greater than zero",
		},
		{
			name:            "negative upload limit",
			override:        func() { viper.Set("max_upload_bytes", -1) },
			expectedMessage: "config.invalid_max_upload_bytes: max_upload_bytes must not be negative",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			setRequiredConfig()
			testCase.override()

			_, err := LoadServerConfig()
			if err == nil {
				t.Fatalf("expected configuration error")
			}
			if err.Error() != testCase.expectedMessage {
				t.Fatalf("expected error %q, got %q", testCase.expectedMessage, err.Error())
			}
		})
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	setRequiredConfig()
	viper.Set("enable_cors", true)

	config, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.TokenIssuer != "vidtube" {
		t.Fatalf("expected default issuer, got %q", config.TokenIssuer)
	}
	if config.AccessCookieName != "accessToken" || config.RefreshCookieName != "refreshToken" {
		t.Fatalf("unexpected cookie names: %q %q", config.AccessCookieName, config.RefreshCookieName)
	}
	if config.SameSiteMode != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None with CORS enabled, got %v", config.SameSiteMode)
	}
	if config.NonceTTL != 5*time.Minute {
		t.Fatalf("expected default nonce ttl, got %v", config.NonceTTL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing dotenv file to be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("APP_VIDTUBE_DOTENV_MARKER=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_VIDTUBE_DOTENV_MARKER", "")
	_ = os.Unsetenv("APP_VIDTUBE_DOTENV_MARKER")
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value := os.Getenv("APP_VIDTUBE_DOTENV_MARKER"); value != "loaded" {
		t.Fatalf("expected dotenv value to be exported, got %q", value)
	}
}

func preparedCommand(t *testing.T) *cobra.Command {
	t.Helper()
	config, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}
	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, config))
	return command
}

func TestRunServerValidatorInitFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	restoreValidator := withGoogleValidatorBuilderStub(func(ctx context.Context) (authkit.GoogleTokenValidator, error) {
		return nil, errors.New("validator_fail")
	})
	defer restoreValidator()

	viper.Set("listen_addr", ":0")
	viper.Set("google_web_client_id", "client")
	setRequiredConfig()

	if err := runServer(preparedCommand(t), nil); err == nil || err.Error() != "config.google_validator_init: validator_fail" {
		t.Fatalf("expected google validator init error, got %v", err)
	}
}

func TestRunServerMediaInitFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreMedia := withMediaHostBuilderStub(func(ctx context.Context, configuration media.S3Config) (media.Host, error) {
		return nil, errors.New("bucket_unreachable")
	})
	defer restoreMedia()

	viper.Set("media_bucket", "uploads")
	setRequiredConfig()

	if err := runServer(preparedCommand(t), nil); err == nil || err.Error() != "config.media_init: bucket_unreachable" {
		t.Fatalf("expected media init error, got %v", err)
	}
}

func TestRunServerRejectsInvalidCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		t.Fatalf("server must not start with invalid CORS configuration")
		return nil
	})
	defer restoreServe()

	setRequiredConfig()
	viper.Set("enable_cors", true)
	viper.Set("cors_allowed_origins", []string{"*"})

	err := runServer(preparedCommand(t), nil)
	if err == nil {
		t.Fatalf("expected CORS configuration error")
	}
}

func TestRunServerServesHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler to be configured")
		}
		recorder := httptest.NewRecorder()
		server.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected healthcheck 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		protected := httptest.NewRecorder()
		server.Handler.ServeHTTP(protected, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))
		if protected.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without credentials, got %d", protected.Code)
		}
		missing := httptest.NewRecorder()
		server.Handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
		if missing.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown route, got %d", missing.Code)
		}
		return http.ErrServerClosed
	})
	defer restoreServe()

	restoreValidator := withGoogleValidatorBuilderStub(func(ctx context.Context) (authkit.GoogleTokenValidator, error) {
		return noopGoogleValidator{}, nil
	})
	defer restoreValidator()

	viper.Set("listen_addr", ":0")
	viper.Set("google_web_client_id", "client")
	viper.Set("cookie_domain", "localhost")
	viper.Set("dev_insecure_http", true)
	viper.Set("enable_cors", true)
	viper.Set("cors_allowed_origins", []string{"http://localhost:3000"})
	setRequiredConfig()

	if err := runServer(preparedCommand(t), nil); err != nil {
		t.Fatalf("expected runServer to succeed, got %v", err)
	}
}

func TestRunServerSQLiteStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	viper.Set("listen_addr", ":0")
	viper.Set("database_url", "sqlite://"+filepath.Join(t.TempDir(), "vidtube.db"))
	setRequiredConfig()

	if err := runServer(preparedCommand(t), nil); err != nil {
		t.Fatalf("expected runServer to succeed with sqlite store, got %v", err)
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}

type noopGoogleValidator struct{}

func (noopGoogleValidator) Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
	return &idtoken.Payload{}, nil
}

func withGoogleValidatorBuilderStub(stub func(ctx context.Context) (authkit.GoogleTokenValidator, error)) func() {
	previous := buildGoogleTokenValidator
	buildGoogleTokenValidator = stub
	return func() {
		buildGoogleTokenValidator = previous
	}
}

func withMediaHostBuilderStub(stub func(ctx context.Context, configuration media.S3Config) (media.Host, error)) func() {
	previous := buildMediaHost
	buildMediaHost = stub
	return func() {
		buildMediaHost = previous
	}
}
