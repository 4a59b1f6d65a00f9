package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/catalog"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/metrics"
	"github.com/tyemirov/vidtube/internal/relations"
	"github.com/tyemirov/vidtube/internal/store"
	"github.com/tyemirov/vidtube/internal/storepg"
	"github.com/tyemirov/vidtube/internal/users"
	"github.com/tyemirov/vidtube/internal/web"
	"github.com/tyemirov/vidtube/pkg/sessionvalidator"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGoogleTokenValidator = func(ctx context.Context) (authkit.GoogleTokenValidator, error) {
	return authkit.NewGoogleTokenValidator(ctx)
}

var buildMediaHost = func(ctx context.Context, configuration media.S3Config) (media.Host, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return media.NewMemoryHost(), nil
	}
	return media.NewS3Host(ctx, configuration)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "vidtube",
		Short:   "Video platform API with rotating JWT sessions, media uploads, likes, subscriptions and playlists",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("env_file", ".env", "Optional dotenv file loaded before configuration is read")
	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite://; leave empty for an in-memory database)")
	rootCmd.Flags().String("access_token_secret", "", "HS256 secret for access tokens")
	rootCmd.Flags().Duration("access_token_ttl", time.Hour, "Access token TTL")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 secret for refresh tokens")
	rootCmd.Flags().Duration("refresh_token_ttl", 240*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("token_issuer", "vidtube", "Issuer claim of minted tokens")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP for local dev")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients (required to set SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID; empty disables Google sign-in")
	rootCmd.Flags().Duration("nonce_ttl", 5*time.Minute, "Nonce lifetime for Google Sign-In exchanges")
	rootCmd.Flags().String("media_bucket", "", "S3-compatible bucket for uploads; empty keeps media in memory")
	rootCmd.Flags().String("media_region", "", "Bucket region")
	rootCmd.Flags().String("media_endpoint", "", "S3-compatible endpoint; empty for AWS")
	rootCmd.Flags().String("media_access_key", "", "Bucket access key; empty uses the default credential chain")
	rootCmd.Flags().String("media_secret_key", "", "Bucket secret key")
	rootCmd.Flags().String("media_public_base_url", "", "Public URL prefix of stored media")
	rootCmd.Flags().Int64("max_upload_bytes", 200<<20, "Largest accepted upload in bytes")

	_ = viper.BindPFlags(rootCmd.Flags())

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	tokenIssuerDefault = "vidtube"

	configCodeDotEnv                  = "config.dotenv"
	configCodeMissingAccessSecret     = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret    = "config.missing_refresh_token_secret"
	configCodeSharedTokenSecret       = "config.shared_token_secret"
	configCodeInvalidAccessTTL        = "config.invalid_access_token_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_token_ttl"
	configCodeInvalidMaxUpload        = "config.invalid_max_upload_bytes"
	configCodeInvalidCORS             = "config.invalid_cors"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeGoogleValidatorInit     = "config.google_validator_init"
	configCodeStoreInit               = "config.store_init"
	configCodeMediaInit               = "config.media_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	if err := loadDotEnv(viper.GetString("env_file")); err != nil {
		return err
	}
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

// loadDotEnv exports the variables of path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return configError(configCodeDotEnv, err.Error())
	}
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authkit.ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}

	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}
	if refreshSecret == accessSecret {
		return authkit.ServerConfig{}, configError(configCodeSharedTokenSecret, "refresh_token_secret must differ from access_token_secret")
	}

	accessTTL := viper.GetDuration("access_token_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_token_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_token_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_token_ttl must be greater than zero")
	}

	maxUploadBytes := viper.GetInt64("max_upload_bytes")
	if maxUploadBytes < 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidMaxUpload, "max_upload_bytes must not be negative")
	}

	nonceTTL := 5 * time.Minute
	if configuredNonceTTL := viper.GetDuration("nonce_ttl"); configuredNonceTTL > 0 {
		nonceTTL = configuredNonceTTL
	}

	issuer := viper.GetString("token_issuer")
	if strings.TrimSpace(issuer) == "" {
		issuer = tokenIssuerDefault
	}

	sameSite := http.SameSiteStrictMode
	if viper.GetBool("enable_cors") {
		sameSite = http.SameSiteNoneMode
	}

	return authkit.ServerConfig{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		TokenIssuer:        issuer,
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		AccessCookieName:   authkit.DefaultAccessCookieName,
		RefreshCookieName:  authkit.DefaultRefreshCookieName,
		CookieDomain:       viper.GetString("cookie_domain"),
		SameSiteMode:       sameSite,
		AllowInsecureHTTP:  viper.GetBool("dev_insecure_http"),
		GoogleWebClientID:  strings.TrimSpace(viper.GetString("google_web_client_id")),
		MaxUploadBytes:     maxUploadBytes,
		NonceTTL:           nonceTTL,
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	ctx := commandContext
	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")

	dataStore, pool, storeErr := openStore(ctx, databaseURL, logger)
	if storeErr != nil {
		return fmt.Errorf("%s: %w", configCodeStoreInit, storeErr)
	}
	defer func() { _ = dataStore.Close() }()
	if pool != nil {
		defer pool.Close()
	}

	mediaHost, mediaErr := buildMediaHost(ctx, media.S3Config{
		Bucket:        viper.GetString("media_bucket"),
		Region:        viper.GetString("media_region"),
		Endpoint:      viper.GetString("media_endpoint"),
		AccessKey:     viper.GetString("media_access_key"),
		SecretKey:     viper.GetString("media_secret_key"),
		PublicBaseURL: viper.GetString("media_public_base_url"),
	})
	if mediaErr != nil {
		return fmt.Errorf("%s: %w", configCodeMediaInit, mediaErr)
	}

	var googleValidator authkit.GoogleTokenValidator
	var nonceStore authkit.NonceStore
	if serverConfig.GoogleWebClientID != "" {
		validator, validatorErr := buildGoogleTokenValidator(ctx)
		if validatorErr != nil {
			return fmt.Errorf("%s: %w", configCodeGoogleValidatorInit, validatorErr)
		}
		googleValidator = validator
		nonceStore = authkit.NewMemoryNonceStore(serverConfig.NonceTTL)
	}

	sessionValidator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: serverConfig.AccessTokenSecret,
		Issuer:     serverConfig.TokenIssuer,
		CookieName: serverConfig.AccessCookieName,
	})
	if validatorErr != nil {
		return validatorErr
	}

	metricsRecorder := metrics.NewCounterMetrics()
	defer metricsRecorder.Log(logger)

	var atomicToggler relations.AtomicToggler
	if pool != nil {
		atomicToggler = storepg.NewToggler(pool)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(apiresponse.Recovery(logger))
	router.Use(zapLoggerMiddleware(logger))
	router.NoRoute(apiresponse.NoRoute)

	if viper.GetBool("enable_cors") {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, viper.GetStringSlice("cors_allowed_origins"))
		if corsErr != nil {
			return configError(configCodeInvalidCORS, corsErr.Error())
		}
		router.Use(corsMiddleware)
	}

	uploader := media.NewUploader(mediaHost, serverConfig.MaxUploadBytes, logger)
	authority := authkit.NewAuthority(serverConfig, dataStore, metricsRecorder, logger)
	requireSession := authkit.RequireSession(sessionValidator, dataStore, logger)

	api := router.Group("/api/v1")
	api.GET("/healthcheck", web.HealthCheck(dataStore, mediaHost, logger))

	usersGroup := api.Group("/users")
	authkit.NewRoutes(authority, dataStore, uploader, nonceStore, googleValidator, logger).Mount(usersGroup, requireSession)
	users.NewRoutes(dataStore, uploader, logger).Mount(usersGroup.Group("", requireSession))

	catalogRoutes := catalog.NewRoutes(dataStore, uploader, logger)
	catalogRoutes.MountVideos(api.Group("/videos", requireSession))
	catalogRoutes.MountComments(api.Group("/comments", requireSession))
	catalogRoutes.MountPlaylists(api.Group("/playlist", requireSession))
	catalogRoutes.MountTweets(api.Group("/tweets", requireSession))
	catalogRoutes.MountDashboard(api.Group("/dashboard", requireSession))

	relationRoutes := relations.NewRoutes(relations.NewToggler(dataStore, atomicToggler, metricsRecorder, logger), dataStore, logger)
	relationRoutes.MountLikes(api.Group("/likes", requireSession))
	relationRoutes.MountSubscriptions(api.Group("/subscriptions", requireSession))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.String("code", "server.shutdown_failed"), zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// openStore opens the GORM store and, for Postgres, the pgx pool backing atomic relation toggles.
func openStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*store.Store, *pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		dataStore, err := store.NewInMemory(ctx)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using in-memory database")
		return dataStore, nil, nil
	}
	dataStore, err := store.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using persistent database", zap.String("driver", dataStore.Driver()))
	if dataStore.Driver() != "postgres" {
		return dataStore, nil, nil
	}
	pool, err := storepg.BuildPool(ctx, databaseURL)
	if err != nil {
		_ = dataStore.Close()
		return nil, nil, err
	}
	if err := storepg.EnsureRelationIndexes(ctx, pool); err != nil {
		pool.Close()
		_ = dataStore.Close()
		return nil, nil, err
	}
	return dataStore, pool, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
