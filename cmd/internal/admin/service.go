package admin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
)

// Notifier pushes revocation events to connected viewers so that
// entitlement changes take effect without waiting for the next request.
// Delivery is best-effort.
type Notifier interface {
	SessionRevoked(principal string)
	AccessRevoked(principal string)
	DeviceReset(principal string)
}

type noopNotifier struct{}

func (noopNotifier) SessionRevoked(string) {}
func (noopNotifier) AccessRevoked(string)  {}
func (noopNotifier) DeviceReset(string)    {}

// Service is the override surface. Every method requires a valid admin
// token from the Gate; overrides apply through the registry store so they
// serialize with concurrent user requests, and each one is audited.
type Service struct {
	gate   *Gate
	store  registry.Store
	audit  *Auditor
	notify Notifier
	log    *slog.Logger
}

func NewService(gate *Gate, store registry.Store, audit *Auditor, notify Notifier, log *slog.Logger) *Service {
	if notify == nil {
		notify = noopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gate:   gate,
		store:  store,
		audit:  audit,
		notify: notify,
		log:    log.With("module", "admin"),
	}
}

// Login proxies the credential gate.
func (s *Service) Login(ctx context.Context, username, pw, adminIP string, now time.Time) (string, error) {
	tok, err := s.gate.Login(username, pw, now)
	if err != nil {
		s.audit.record(ctx, "admin.login.failed", "", adminIP, map[string]any{"username": username})
		return "", err
	}
	s.audit.record(ctx, "admin.login.success", "", adminIP, nil)
	return tok, nil
}

// Authorize checks an admin token without performing an override.
func (s *Service) Authorize(adminToken string, now time.Time) error {
	return s.gate.Authorize(adminToken, now)
}

// Logout revokes an admin token.
func (s *Service) Logout(ctx context.Context, adminToken, adminIP string) {
	s.gate.Revoke(adminToken)
	s.audit.record(ctx, "admin.logout", "", adminIP, nil)
}

// RevokeSession clears the stored session so the current token stops
// verifying. The device binding and entitlement survive: the user can log
// back in from the bound device.
func (s *Service) RevokeSession(ctx context.Context, adminToken, principal, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.SessionID = ""
		p.SessionTokenHash = ""
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.session.revoked", principal, adminIP, nil)
	s.notify.SessionRevoked(principal)
	return p, nil
}

// RevokeAccess marks the profile revoked and clears the session. Revoked
// outranks every other state until an explicit reinstate.
func (s *Service) RevokeAccess(ctx context.Context, adminToken, principal, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.Revoked = true
		p.SessionID = ""
		p.SessionTokenHash = ""
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.access.revoked", principal, adminIP, nil)
	s.notify.AccessRevoked(principal)
	return p, nil
}

// ReinstateAccess clears a prior revocation. The session stays cleared, so
// the user must log in again; payment and expiry state are untouched.
func (s *Service) ReinstateAccess(ctx context.Context, adminToken, principal, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.Revoked = false
		p.SessionID = ""
		p.SessionTokenHash = ""
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.access.reinstated", principal, adminIP, nil)
	return p, nil
}

// ResetDevice clears the device binding, returning the profile to the
// unbound state so the next recorded fingerprint becomes the new primary
// device. Idempotent: resetting an unbound profile succeeds.
func (s *Service) ResetDevice(ctx context.Context, adminToken, principal, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.PrimaryDeviceID = ""
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.device.reset", principal, adminIP, nil)
	s.notify.DeviceReset(principal)
	return p, nil
}

// SetExpiry overwrites the entitlement window end. Past timestamps are
// accepted and take effect immediately; a zero time removes the window.
func (s *Service) SetExpiry(ctx context.Context, adminToken, principal string, expiresAt time.Time, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.ExpiresAt = expiresAt
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.expiry.set", principal, adminIP, map[string]any{
		"expires_at": marshalTime(expiresAt),
	})
	return p, nil
}

// SetPaymentStatus flips the paid flag without touching the expiry window.
// Granting paid status to a profile with no window leaves it open-ended;
// use SetExpiry to bound it.
func (s *Service) SetPaymentStatus(ctx context.Context, adminToken, principal string, paid bool, adminIP string, now time.Time) (registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return registry.Profile{}, err
	}
	p, err := s.store.Mutate(ctx, principal, func(p *registry.Profile) error {
		p.IsPaid = paid
		return nil
	})
	if err != nil {
		return registry.Profile{}, err
	}
	s.audit.record(ctx, "admin.payment.set", principal, adminIP, map[string]any{"paid": paid})
	return p, nil
}

// Users lists every profile for the admin dashboard.
func (s *Service) Users(ctx context.Context, adminToken string, now time.Time) ([]registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// ActiveSessions lists the profiles that currently hold a session.
func (s *Service) ActiveSessions(ctx context.Context, adminToken string, now time.Time) ([]registry.Profile, error) {
	if err := s.gate.Authorize(adminToken, now); err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sessions := all[:0:0]
	for _, p := range all {
		if p.HasSession() {
			sessions = append(sessions, p)
		}
	}
	return sessions, nil
}

func marshalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return strings.TrimSpace(t.UTC().Format(time.RFC3339Nano))
}
