package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

// errThresholdsUnavailable is returned when a server was constructed
// without a ThresholdStore wired, which should only happen in tests
// that don't exercise /config/thresholds.
var errThresholdsUnavailable = errors.New("api: thresholds store not configured")

// writeError writes the {error, request_id, detail?} envelope spec §7
// requires for every error response. requestID comes from the
// requestID middleware's context value.
func writeError(c *echo.Context, code int, label, detail string) error {
	return c.JSON(code, ErrorResponse{
		Error:     label,
		RequestID: requestIDFromContext(c),
		Detail:    detail,
	})
}

// storeErr maps a storage/tenant-layer error to an HTTP status and
// label, per spec §7's taxonomy. A cross-tenant lookup surfaces as
// models.ErrNotFound from the storage layer already (RLS-scoped
// queries never see another tenant's rows), so TenantIsolationError
// and a genuine not-found collapse onto the same 404 response by
// construction — the "masked as 404" requirement.
func storeErr(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return writeError(c, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, models.ErrAlreadyExists):
		return writeError(c, http.StatusConflict, "conflict", "resource already exists")
	case errors.Is(err, models.ErrInvalidTransition):
		return writeError(c, http.StatusConflict, "conflict", "invalid state transition")
	case errors.Is(err, models.ErrInvalidIdentifier):
		return writeError(c, http.StatusBadRequest, "validation_error", "invalid identifier")
	default:
		slog.Error("unexpected storage error", "error", err)
		return writeError(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// authErr maps a pkg/tenant resolution error to a 401 AuthError
// response. Every branch is deliberately vague beyond "missing" vs.
// "invalid" — the exact rejection reason (expired key, inactive
// tenant, unknown key) is never disclosed to the caller.
func authErr(c *echo.Context, err error) error {
	if errors.Is(err, tenant.ErrMissingCredential) {
		return writeError(c, http.StatusUnauthorized, "auth_error", "missing credential")
	}
	return writeError(c, http.StatusUnauthorized, "auth_error", "invalid credential")
}

func validationErr(c *echo.Context, detail string) error {
	return writeError(c, http.StatusBadRequest, "validation_error", detail)
}

// rateLimitErr responds 429 when a tenant exceeds its token-bucket
// quota for the endpoint (spec §5). Treated as TransientError: the
// caller may retry after backing off.
func rateLimitErr(c *echo.Context) error {
	return writeError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
}
