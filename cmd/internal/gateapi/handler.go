package gateapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/access"
	"github.com/Krishanu16/gate-platform/cmd/internal/admin"
	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/internal/voucher"
	"github.com/Krishanu16/gate-platform/cmd/internal/watermark"
)

// Config tunes the HTTP surface.
type Config struct {
	// MaxBodyBytes bounds every JSON request body.
	MaxBodyBytes int64
	// TrustProxy enables X-Forwarded-For resolution.
	TrustProxy bool
	// AdminLoginMaxFailures and AdminLoginWindow drive the admin login
	// throttle.
	AdminLoginMaxFailures int
	AdminLoginWindow      time.Duration
}

// DefaultConfig returns the handler defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:          1 << 20,
		AdminLoginMaxFailures: defaultThrottleMax,
		AdminLoginWindow:      defaultThrottleWindow,
	}
}

// Handler wires the HTTP endpoints to the domain services.
type Handler struct {
	log *slog.Logger
	cfg Config

	registry  *registry.Service
	evaluator *access.Evaluator
	admin     *admin.Service
	vouchers  *voucher.Service
	catalog   Catalog
	pipeline  *watermark.Pipeline

	throttle *loginThrottle
}

// NewHandler constructs the handler. All services are required except the
// voucher service; with a nil one the voucher endpoints return 503.
func NewHandler(log *slog.Logger, cfg Config, reg *registry.Service, ev *access.Evaluator, adm *admin.Service, vs *voucher.Service, catalog Catalog, pipeline *watermark.Pipeline) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if catalog == nil {
		catalog = NewMemoryCatalog()
	}
	if pipeline == nil {
		pipeline = watermark.NewPipeline(watermark.Config{})
	}
	return &Handler{
		log:       log.With("module", "gateapi"),
		cfg:       cfg,
		registry:  reg,
		evaluator: ev,
		admin:     adm,
		vouchers:  vs,
		catalog:   catalog,
		pipeline:  pipeline,
		throttle:  newLoginThrottle(cfg.AdminLoginMaxFailures, cfg.AdminLoginWindow),
	}
}

// Register wires API routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("GET /api/me", h.handleMe)
	mux.HandleFunc("POST /api/device/record", h.handleDeviceRecord)
	mux.HandleFunc("POST /api/device/verify", h.handleDeviceVerify)
	mux.HandleFunc("POST /api/payment/simulate", h.handlePaymentSimulate)
	mux.HandleFunc("POST /api/voucher/redeem", h.handleVoucherRedeem)
	mux.HandleFunc("POST /api/progress", h.handleProgress)
	mux.HandleFunc("GET /api/content", h.handleContentList)
	mux.HandleFunc("GET /api/content/{id}", h.handleContentFrame)

	mux.HandleFunc("POST /api/admin/login", h.handleAdminLogin)
	mux.HandleFunc("GET /api/admin/users", h.handleAdminUsers)
	mux.HandleFunc("GET /api/admin/sessions", h.handleAdminSessions)
	mux.HandleFunc("POST /api/admin/revoke-session", h.handleAdminRevokeSession)
	mux.HandleFunc("POST /api/admin/revoke-access", h.handleAdminRevokeAccess)
	mux.HandleFunc("POST /api/admin/reinstate", h.handleAdminReinstate)
	mux.HandleFunc("POST /api/admin/reset-device", h.handleAdminResetDevice)
	mux.HandleFunc("POST /api/admin/payment", h.handleAdminPayment)
	mux.HandleFunc("POST /api/admin/expiry", h.handleAdminExpiry)
	mux.HandleFunc("POST /api/admin/vouchers", h.handleAdminVouchers)
}

// ---- user handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.registry.Register(r.Context(), principal, req.Email, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	p, token, err := h.registry.IssueSession(r.Context(), principal, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Profile: toProfileResponse(p), Token: token})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	p, err := h.registry.Store().Get(r.Context(), principal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleDeviceRecord(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	var req deviceRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.registry.RecordDeviceFingerprint(r.Context(), principal, req.Fingerprint, req.Token, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleDeviceVerify(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	var req deviceRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.registry.VerifyDeviceFingerprint(r.Context(), principal, req.Fingerprint, req.Token, time.Now())
	if err != nil {
		h.log.Info("verify.denied", "principal", principal, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handlePaymentSimulate(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	var req paymentSimulateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.registry.SimulatePayment(r.Context(), principal, req.Token, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleVoucherRedeem(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}
	if h.vouchers == nil {
		writeError(w, http.StatusServiceUnavailable, "vouchers_unavailable", "vouchers not configured")
		return
	}

	var req voucherRedeemRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	_, p, err := h.vouchers.Redeem(r.Context(), voucher.RedeemInput{
		Code:      req.Code,
		Principal: principal,
		Now:       time.Now(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	var req progressRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.registry.UpdateProgress(r.Context(), principal, req.ModuleID, req.Percent, req.Token, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// ---- content handlers ----

func (h *Handler) handleContentList(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}

	// Listing shows titles only; the asset itself is gated per request.
	out := make([]moduleResponse, 0)
	for _, m := range h.catalog.Modules() {
		out = append(out, moduleResponse{ID: m.ID, Title: m.Title, Description: m.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleContentFrame re-evaluates access on every request and streams one
// freshly watermarked frame. Decisions are never cached, so a revocation
// is effective on the next request.
func (h *Handler) handleContentFrame(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "missing principal")
		return
	}
	token := bearerToken(r)
	fp := strings.TrimSpace(r.Header.Get(HeaderFingerprint))
	now := time.Now()

	p, decision, err := h.evaluator.Check(r.Context(), principal, token, fp, now)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !decision.Granted {
		writeDomainError(w, decision.Err())
		return
	}

	m, err := h.catalog.Module(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "module_not_found", "content module not found")
		return
	}

	frame, err := h.pipeline.ComposeJPEG(m.Asset, watermark.Identity{
		Email:       p.Email,
		Fingerprint: fp,
		IP:          clientIP(r, h.cfg.TrustProxy),
		Now:         now,
	}, now)
	if err != nil {
		h.log.Error("content.compose.fail", "module", m.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame)
}
