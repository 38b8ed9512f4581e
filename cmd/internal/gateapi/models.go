package gateapi

import (
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
)

// Timestamps cross the API as int64 nanoseconds since the Unix epoch;
// zero means unset.

type registerRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	Profile profileResponse `json:"profile"`
	Token   string          `json:"token"`
}

type deviceRequest struct {
	Fingerprint string `json:"fingerprint"`
	Token       string `json:"token"`
}

type paymentSimulateRequest struct {
	Token string `json:"token"`
}

type voucherRedeemRequest struct {
	Code string `json:"code"`
}

type progressRequest struct {
	ModuleID string `json:"module_id"`
	Percent  int    `json:"percent"`
	Token    string `json:"token"`
}

type progressEntryResponse struct {
	ModuleID string `json:"module_id"`
	Percent  int    `json:"percent"`
}

type profileResponse struct {
	Principal   string                  `json:"principal"`
	Email       string                  `json:"email"`
	IsPaid      bool                    `json:"is_paid"`
	DeviceBound bool                    `json:"device_bound"`
	HasSession  bool                    `json:"has_session"`
	Revoked     bool                    `json:"revoked"`
	ExpiresAt   int64                   `json:"expires_at"`
	LastLogin   int64                   `json:"last_login"`
	CreatedAt   int64                   `json:"created_at"`
	Progress    []progressEntryResponse `json:"progress"`
}

type moduleResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminTokenResponse struct {
	Token string `json:"token"`
}

type adminPrincipalRequest struct {
	Principal string `json:"principal"`
}

type adminPaymentRequest struct {
	Principal string `json:"principal"`
	Paid      bool   `json:"paid"`
}

type adminExpiryRequest struct {
	Principal string `json:"principal"`
	ExpiresAt int64  `json:"expires_at"` // 0 clears the window
}

type adminVoucherRequest struct {
	TTLSeconds int    `json:"ttl_seconds"`
	MaxUses    int    `json:"max_uses"`
	AccessDays int    `json:"access_days"`
	Note       string `json:"note"`
}

type adminVoucherResponse struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	ExpiresAt  int64  `json:"expires_at"`
	MaxUses    int    `json:"max_uses"`
	AccessDays int    `json:"access_days"`
}

func toProfileResponse(p registry.Profile) profileResponse {
	out := profileResponse{
		Principal:   p.Principal,
		Email:       p.Email,
		IsPaid:      p.IsPaid,
		DeviceBound: p.BindingState() == registry.StateBound,
		HasSession:  p.HasSession(),
		Revoked:     p.Revoked,
		ExpiresAt:   unixNanos(p.ExpiresAt),
		LastLogin:   unixNanos(p.LastLogin),
		CreatedAt:   unixNanos(p.CreatedAt),
		Progress:    make([]progressEntryResponse, 0, len(p.Progress)),
	}
	for _, e := range p.Progress {
		out.Progress = append(out.Progress, progressEntryResponse{ModuleID: e.ModuleID, Percent: e.Percent})
	}
	return out
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
