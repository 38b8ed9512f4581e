package gateapi

import (
	"net/http"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/internal/voucher"
)

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	now := time.Now()
	if blocked, retry := h.throttle.blocked(ip, now); blocked {
		h.log.Info("admin.login.throttled", "ip", ip)
		writeRateLimited(w, retry)
		return
	}

	var req adminLoginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	token, err := h.admin.Login(r.Context(), req.Username, req.Password, ip, now)
	if err != nil {
		h.throttle.fail(ip, now)
		writeDomainError(w, err)
		return
	}
	h.throttle.reset(ip)
	writeJSON(w, http.StatusOK, adminTokenResponse{Token: token})
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}
	users, err := h.admin.Users(r.Context(), r.Header.Get(HeaderAdminToken), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponses(users))
}

func (h *Handler) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}
	sessions, err := h.admin.ActiveSessions(r.Context(), r.Header.Get(HeaderAdminToken), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponses(sessions))
}

// adminOverride factors the shared shape of the principal-targeted
// override endpoints.
func (h *Handler) adminOverride(w http.ResponseWriter, r *http.Request, op func(adminToken, principal, ip string, now time.Time) (registry.Profile, error)) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}

	var req adminPrincipalRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := op(r.Header.Get(HeaderAdminToken), req.Principal, clientIP(r, h.cfg.TrustProxy), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleAdminRevokeSession(w http.ResponseWriter, r *http.Request) {
	h.adminOverride(w, r, func(tok, principal, ip string, now time.Time) (registry.Profile, error) {
		return h.admin.RevokeSession(r.Context(), tok, principal, ip, now)
	})
}

func (h *Handler) handleAdminRevokeAccess(w http.ResponseWriter, r *http.Request) {
	h.adminOverride(w, r, func(tok, principal, ip string, now time.Time) (registry.Profile, error) {
		return h.admin.RevokeAccess(r.Context(), tok, principal, ip, now)
	})
}

func (h *Handler) handleAdminReinstate(w http.ResponseWriter, r *http.Request) {
	h.adminOverride(w, r, func(tok, principal, ip string, now time.Time) (registry.Profile, error) {
		return h.admin.ReinstateAccess(r.Context(), tok, principal, ip, now)
	})
}

func (h *Handler) handleAdminResetDevice(w http.ResponseWriter, r *http.Request) {
	h.adminOverride(w, r, func(tok, principal, ip string, now time.Time) (registry.Profile, error) {
		return h.admin.ResetDevice(r.Context(), tok, principal, ip, now)
	})
}

func (h *Handler) handleAdminPayment(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}

	var req adminPaymentRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.admin.SetPaymentStatus(r.Context(), r.Header.Get(HeaderAdminToken), req.Principal, req.Paid, clientIP(r, h.cfg.TrustProxy), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleAdminExpiry(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}

	var req adminExpiryRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	var expiresAt time.Time
	if req.ExpiresAt != 0 {
		expiresAt = time.Unix(0, req.ExpiresAt).UTC()
	}

	p, err := h.admin.SetExpiry(r.Context(), r.Header.Get(HeaderAdminToken), req.Principal, expiresAt, clientIP(r, h.cfg.TrustProxy), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleAdminVouchers(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil || h.vouchers == nil {
		writeError(w, http.StatusServiceUnavailable, "admin_unavailable", "admin interface not configured")
		return
	}

	now := time.Now()
	if err := h.admin.Authorize(r.Header.Get(HeaderAdminToken), now); err != nil {
		writeDomainError(w, err)
		return
	}

	var req adminVoucherRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	in := voucher.CreateInput{
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
		MaxUses:    req.MaxUses,
		AccessDays: req.AccessDays,
		Now:        now,
	}
	if req.Note != "" {
		in.Note = &req.Note
	}

	v, code, err := h.vouchers.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adminVoucherResponse{
		ID:         v.ID,
		Code:       code,
		ExpiresAt:  unixNanos(v.ExpiresAt),
		MaxUses:    v.MaxUses,
		AccessDays: v.AccessDays,
	})
}

func toProfileResponses(profiles []registry.Profile) []profileResponse {
	out := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileResponse(p))
	}
	return out
}
