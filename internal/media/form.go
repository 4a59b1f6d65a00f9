package media

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
)

// Uploader stores multipart form files on a Host and maps failures onto client errors.
type Uploader struct {
	host     Host
	maxBytes int64
	logger   *zap.Logger
}

// NewUploader constructs an Uploader. maxBytes <= 0 disables the size check.
func NewUploader(host Host, maxBytes int64, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{host: host, maxBytes: maxBytes, logger: logger}
}

// FormFile uploads the named form file. A missing optional file yields a nil asset.
// requiredMessage is the client message when a required file is absent.
func (uploader *Uploader) FormFile(contextGin *gin.Context, field string, kind Kind, required bool, requiredMessage string) (*Asset, *apiresponse.Error) {
	header, err := contextGin.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			if required {
				return nil, apiresponse.BadRequest(requiredMessage)
			}
			return nil, nil
		}
		return nil, apiresponse.BadRequest("Malformed multipart form")
	}
	upload, closer, err := FromFileHeader(header, kind, uploader.maxBytes)
	if err != nil {
		if errors.Is(err, ErrEmptyUpload) && !required {
			return nil, nil
		}
		return nil, uploader.clientError(field, err, requiredMessage)
	}
	defer closer.Close()
	asset, err := uploader.host.Upload(contextGin.Request.Context(), upload)
	if err != nil {
		uploader.logger.Error("media upload failed",
			zap.String("code", "media.upload_failed"),
			zap.String("field", field),
			zap.Error(err))
		return nil, apiresponse.Internal("Error while uploading "+field, err)
	}
	return &asset, nil
}

// Discard removes an asset, logging instead of failing. Used for replaced or orphaned media.
func (uploader *Uploader) Discard(ctx context.Context, publicID string, kind Kind) {
	if publicID == "" {
		return
	}
	if err := uploader.host.Destroy(ctx, publicID, kind); err != nil {
		uploader.logger.Warn("media destroy failed",
			zap.String("code", "media.destroy_failed"),
			zap.String("public_id", publicID),
			zap.Error(err))
	}
}

func (uploader *Uploader) clientError(field string, err error, requiredMessage string) *apiresponse.Error {
	switch {
	case errors.Is(err, ErrEmptyUpload):
		return apiresponse.BadRequest(requiredMessage)
	case errors.Is(err, ErrTooLarge):
		return apiresponse.BadRequest(field + " file is too large")
	case errors.Is(err, ErrUnexpectedContent):
		return apiresponse.BadRequest(field + " file has an unsupported type")
	default:
		return apiresponse.Internal("Error while reading "+field, err)
	}
}
