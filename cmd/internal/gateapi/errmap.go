package gateapi

import (
	"errors"
	"net/http"

	"github.com/Krishanu16/gate-platform/cmd/internal/admin"
	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/internal/voucher"
)

// writeDomainError translates domain sentinels into the HTTP error
// envelope. Unmapped errors become an opaque 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", "profile not found")
	case errors.Is(err, registry.ErrProfileExists):
		writeError(w, http.StatusConflict, "profile_exists", "profile already exists")
	case errors.Is(err, registry.ErrFirstLogin):
		writeError(w, http.StatusConflict, "first_login", "first login: no device recorded")
	case errors.Is(err, registry.ErrDeviceMismatch):
		writeError(w, http.StatusForbidden, "device_mismatch", "account locked to another device")
	case errors.Is(err, registry.ErrAccessRevoked):
		writeError(w, http.StatusForbidden, "revoked", "access revoked")
	case errors.Is(err, registry.ErrAccessExpired):
		writeError(w, http.StatusForbidden, "expired", "access expired")
	case errors.Is(err, registry.ErrNotPaid):
		writeError(w, http.StatusForbidden, "unpaid", "payment required")
	case errors.Is(err, registry.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid session token")
	case errors.Is(err, registry.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case errors.Is(err, admin.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, admin.ErrNotAuthorized):
		writeError(w, http.StatusUnauthorized, "not_authorized", "not authorized")
	case errors.Is(err, admin.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
	case errors.Is(err, voucher.ErrNotFound):
		writeError(w, http.StatusNotFound, "voucher_not_found", "voucher not found")
	case errors.Is(err, voucher.ErrNotActive):
		writeError(w, http.StatusConflict, "voucher_not_active", "voucher expired, revoked, or used up")
	case errors.Is(err, voucher.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
