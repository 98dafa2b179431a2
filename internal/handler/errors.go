package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/claims"
	"admin-bff/internal/client"
	"admin-bff/internal/csrf"
	"admin-bff/internal/model"
	"admin-bff/internal/validate"
)

// NewErrorHandler returns the echo error handler shared by every route.
// All errors become a JSON envelope; unexpected ones and recovered panics
// are logged and answered with a uniform 500.
func NewErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, env := mapError(err)
		switch {
		case status >= http.StatusInternalServerError && env.Error.Code == model.CodeInternal:
			logger.Error("unhandled error",
				"err", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"request_id", requestID(c),
			)
		case status >= http.StatusInternalServerError:
			logger.Warn("upstream unavailable",
				"err", err,
				"path", c.Request().URL.Path,
				"request_id", requestID(c),
			)
		default:
			logger.Debug("request rejected", "err", err, "status", status)
		}

		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, env)
		}
		if werr != nil {
			logger.Error("write error response", "err", werr)
		}
	}
}

// mapError translates an error into an HTTP status and envelope.
func mapError(err error) (int, model.Envelope) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest, model.Failure(verr.Code, verr.Error(), verr.Field)
	}

	switch {
	case errors.Is(err, claims.ErrMissingTenantContext):
		return http.StatusUnauthorized, model.Failure(model.CodeMissingTenant, "tenant context is required", "")
	case errors.Is(err, claims.ErrInvalidTenantContext):
		return http.StatusBadRequest, model.Failure(model.CodeInvalidTenant, "tenant context is malformed", "")
	case errors.Is(err, csrf.ErrMissingToken),
		errors.Is(err, csrf.ErrMismatch),
		errors.Is(err, csrf.ErrInvalidToken):
		return http.StatusForbidden, model.Failure(model.CodeCSRF, "invalid or missing CSRF token", "")
	}

	var uerr *client.UpstreamError
	if errors.As(err, &uerr) {
		if uerr.Timeout {
			return http.StatusGatewayTimeout, model.Failure(model.CodeUpstreamTimeout, "upstream service timed out", "")
		}
		return http.StatusServiceUnavailable, model.Failure(model.CodeUnavailable, "upstream service unavailable", "")
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, model.Failure(statusCode(he.Code), msg, "")
	}

	return http.StatusInternalServerError, model.Failure(model.CodeInternal, "internal server error", "")
}

// statusCode derives an error code such as NOT_FOUND from an HTTP status.
func statusCode(status int) string {
	if status == http.StatusNotFound {
		return model.CodeNotFound
	}
	text := http.StatusText(status)
	if text == "" {
		return model.CodeInternal
	}
	return strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(text, "-", "_"), " ", "_"))
}
