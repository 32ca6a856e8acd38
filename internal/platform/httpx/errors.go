package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
)

// StatusOf maps an access error kind to its HTTP status and title.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, access.ErrUnauthorized):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, access.ErrNotFoundOrDenied):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, access.ErrInvalidInput):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, access.ErrUnsupportedOperation):
		return http.StatusNotImplemented, "Not Implemented"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Canceled"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError writes err as RFC7807 problem details. The detail is the
// error's public message, so storage internals never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusOf(err)
	detail := ""
	if access.KindOf(err) != nil {
		detail = access.PublicMessage(err)
	}
	Problem(w, status, title, detail)
}

// Fail logs err with the request's coordinates and responds with it. Server
// side failures log at error level, caller mistakes at debug.
func Fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, _ := StatusOf(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err),
	)
	RespondError(w, err)
}
