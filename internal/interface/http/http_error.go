package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
	apperrors "github.com/yanqian/fevertrack/pkg/errors"
)

// HTTPError is what handlers attach to the gin context; errorHandlingMiddleware
// renders it as {"error":{"code","message"}}.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// codeStatus maps service error codes onto HTTP statuses. Codes missing here
// are reported as 500 with a generic message.
var codeStatus = map[string]int{
	episode.CodeValidation:   http.StatusBadRequest,
	episode.CodeInvalidState: http.StatusConflict,
	episode.CodeNotFound:     http.StatusNotFound,
	tracking.CodeForbidden:   http.StatusForbidden,
	tracking.CodeStoreError:  http.StatusServiceUnavailable,
}

// fromServiceError converts an error returned by the tracking service.
func fromServiceError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		return internalError(err)
	}
	message := errMessage(err)
	if status >= http.StatusInternalServerError {
		message = "storage temporarily unavailable"
	}
	return NewHTTPError(status, code, message, err)
}

func invalidRequest(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, "invalid_request", message, err)
}

func internalError(err error) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return internalError(err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// errMessage prefers the AppError message so wrapped causes stay in the logs.
func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
