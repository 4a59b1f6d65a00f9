package apiresponse

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalMessage = "Internal server error"

// Envelope is the uniform JSON body of every response.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       any         `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
	Errors     []Violation `json:"errors,omitempty"`
}

// Result is either a successful payload or a failure, never both.
type Result struct {
	status  int
	data    any
	message string
	err     error
}

// OK builds a successful result.
func OK(status int, data any, message string) Result {
	if status == 0 {
		status = http.StatusOK
	}
	return Result{status: status, data: data, message: message}
}

// Fail builds a failed result. Errors that are not *Error render as 500.
func Fail(err error) Result {
	if err == nil {
		err = Internal(internalMessage, errors.New("apiresponse.fail: nil error"))
	}
	return Result{err: err}
}

// Err returns the failure carried by the result, if any.
func (result Result) Err() error {
	return result.err
}

// Status returns the status code the result renders with.
func (result Result) Status() int {
	if result.err != nil {
		return asAPIError(result.err).StatusCode()
	}
	return result.status
}

// Data returns the success payload.
func (result Result) Data() any {
	return result.data
}

// HandlerFunc produces a Result for a request.
type HandlerFunc func(contextGin *gin.Context) Result

// Handle adapts a HandlerFunc into gin, rendering its Result at a single boundary.
func Handle(logger *zap.Logger, handler HandlerFunc) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		Render(contextGin, logger, handler(contextGin))
	}
}

// Render writes the Result as an Envelope.
func Render(contextGin *gin.Context, logger *zap.Logger, result Result) {
	if result.err == nil {
		contextGin.JSON(result.status, Envelope{
			StatusCode: result.status,
			Data:       result.data,
			Message:    result.message,
			Success:    result.status < http.StatusBadRequest,
		})
		return
	}
	apiErr := asAPIError(result.err)
	if apiErr.Kind == KindInternal {
		logger.Error("request failed",
			zap.String("code", "api.internal_error"),
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.FullPath()),
			zap.Error(result.err))
	}
	Abort(contextGin, apiErr)
}

// Abort stops the handler chain with an error envelope.
func Abort(contextGin *gin.Context, apiErr *Error) {
	message := apiErr.Message
	if apiErr.Kind == KindInternal && message == "" {
		message = internalMessage
	}
	contextGin.AbortWithStatusJSON(apiErr.StatusCode(), Envelope{
		StatusCode: apiErr.StatusCode(),
		Data:       nil,
		Message:    message,
		Success:    false,
		Errors:     apiErr.Violations,
	})
}

// Recovery converts panics into a 500 envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gin.CustomRecovery(func(contextGin *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("code", "api.panic"),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Any("panic", recovered))
		Abort(contextGin, Internal(internalMessage, nil))
	})
}

// NoRoute renders unknown paths as a 404 envelope.
func NoRoute(contextGin *gin.Context) {
	Abort(contextGin, NotFound("Route not found"))
}

func asAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(internalMessage, err)
}
