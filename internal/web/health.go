package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
)

const healthProbeTimeout = 3 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck reports the reachability of the database and the media host.
func HealthCheck(database Pinger, mediaHost Pinger, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return apiresponse.Handle(logger, func(contextGin *gin.Context) apiresponse.Result {
		ctx, cancel := context.WithTimeout(contextGin.Request.Context(), healthProbeTimeout)
		defer cancel()
		if err := database.Ping(ctx); err != nil {
			logger.Error("database unreachable", zap.String("code", "health.database_unreachable"), zap.Error(err))
			return apiresponse.Fail(apiresponse.Internal("Health check failed", err))
		}
		if err := mediaHost.Ping(ctx); err != nil {
			logger.Error("media host unreachable", zap.String("code", "health.media_unreachable"), zap.Error(err))
			return apiresponse.Fail(apiresponse.Internal("Health check failed", err))
		}
		return apiresponse.OK(http.StatusOK, gin.H{
			"database": "connected",
			"media":    "connected",
		}, "Everything is working fine")
	})
}
