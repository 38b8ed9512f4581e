package registry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Krishanu16/gate-platform/cmd/security/token"
)

const (
	defaultSessionTokenBytes   = 32
	defaultPaymentAccessWindow = 365 * 24 * time.Hour
)

// ServiceConfig tunes the registry service.
type ServiceConfig struct {
	// SessionTokenBytes is the entropy of generated session tokens.
	SessionTokenBytes int
	// PaymentAccessWindow is the expiry window granted by a payment event.
	PaymentAccessWindow time.Duration
}

// DefaultServiceConfig returns safe defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SessionTokenBytes:   defaultSessionTokenBytes,
		PaymentAccessWindow: defaultPaymentAccessWindow,
	}
}

// Service implements the user-facing profile operations: registration,
// session issuance, device binding and verification, payment simulation, and
// progress updates. Admin overrides live in the admin package and go through
// the same Store.
type Service struct {
	cfg   ServiceConfig
	store Store
	log   *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig, store Store, log *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, OpError{Op: "registry.NewService", Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.SessionTokenBytes <= 0 {
		cfg.SessionTokenBytes = defaultSessionTokenBytes
	}
	if cfg.PaymentAccessWindow <= 0 {
		cfg.PaymentAccessWindow = defaultPaymentAccessWindow
	}
	return &Service{cfg: cfg, store: store, log: log.With("module", "registry")}, nil
}

// Store exposes the underlying store for collaborators (admin overrides,
// voucher redemption).
func (s *Service) Store() Store { return s.store }

// Register creates a profile for the principal, or returns the existing one.
// Email is set once at registration and immutable thereafter; a re-register
// never changes it.
func (s *Service) Register(ctx context.Context, principal, email string, now time.Time) (Profile, error) {
	principal = strings.TrimSpace(principal)
	email = strings.TrimSpace(email)
	if principal == "" {
		return Profile{}, OpError{Op: "registry.Register", Kind: ErrInvalidInput, Msg: "empty principal"}
	}
	if email == "" || !strings.Contains(email, "@") {
		return Profile{}, OpError{Op: "registry.Register", Kind: ErrInvalidInput, Msg: "invalid email"}
	}

	p, err := s.store.Create(ctx, Profile{
		Principal: principal,
		Email:     email,
		CreatedAt: now.UTC(),
		Progress:  []ProgressEntry{},
	})
	if err == nil {
		s.log.Info("profile.registered", "principal", principal)
		return p, nil
	}
	if isExists(err) {
		return s.store.Get(ctx, principal)
	}
	return Profile{}, err
}

// IssueSession regenerates the profile's session token, invalidating the
// previous one, and returns the plain token. A revoked profile keeps its
// revocation: logging in again does not un-revoke.
func (s *Service) IssueSession(ctx context.Context, principal string, now time.Time) (Profile, string, error) {
	plain, hash, err := newOpaqueSessionToken(s.cfg.SessionTokenBytes)
	if err != nil {
		return Profile{}, "", err
	}
	sessionID := ulid.Make().String()

	p, err := s.store.Mutate(ctx, principal, func(p *Profile) error {
		p.SessionID = sessionID
		p.SessionTokenHash = hash
		return nil
	})
	if err != nil {
		return Profile{}, "", err
	}

	s.log.Info("session.issued", "principal", principal, "session_id", sessionID)
	return p, plain, nil
}

// RecordDeviceFingerprint binds the fingerprint to the profile.
// Binding is first-write-only: a different fingerprint while bound fails
// with ErrDeviceMismatch and never overwrites. Re-recording the already
// bound fingerprint is a no-op success.
func (s *Service) RecordDeviceFingerprint(ctx context.Context, principal, fp, sessionToken string, now time.Time) (Profile, error) {
	const op = "registry.RecordDeviceFingerprint"
	if strings.TrimSpace(fp) == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty fingerprint"}
	}

	p, err := s.store.Mutate(ctx, principal, func(p *Profile) error {
		if err := gateSessionState(op, *p, sessionToken, now); err != nil {
			return err
		}
		switch {
		case p.PrimaryDeviceID == "":
			p.PrimaryDeviceID = fp
			p.LastLogin = now.UTC()
			return nil
		case p.PrimaryDeviceID == fp:
			p.LastLogin = now.UTC()
			return nil
		default:
			return OpError{Op: op, Kind: ErrDeviceMismatch}
		}
	})
	if err != nil {
		return Profile{}, err
	}

	s.log.Info("device.recorded", "principal", principal, "state", string(p.BindingState()))
	return p, nil
}

// VerifyDeviceFingerprint runs the verify-time state machine:
//
//   - revoked            -> ErrAccessRevoked
//   - expired            -> ErrAccessExpired
//   - bad session token  -> ErrInvalidToken
//   - no bound device    -> ErrFirstLogin (client records next)
//   - different device   -> ErrDeviceMismatch (binding untouched)
//   - match              -> success, LastLogin updated
func (s *Service) VerifyDeviceFingerprint(ctx context.Context, principal, fp, sessionToken string, now time.Time) (Profile, error) {
	const op = "registry.VerifyDeviceFingerprint"

	p, err := s.store.Mutate(ctx, principal, func(p *Profile) error {
		if err := gateSessionState(op, *p, sessionToken, now); err != nil {
			return err
		}
		switch {
		case p.PrimaryDeviceID == "":
			return OpError{Op: op, Kind: ErrFirstLogin}
		case p.PrimaryDeviceID != fp:
			return OpError{Op: op, Kind: ErrDeviceMismatch}
		}
		p.LastLogin = now.UTC()
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	s.log.Info("device.verified", "principal", principal)
	return p, nil
}

// SimulatePayment is the trusted payment stand-in: it flips IsPaid and opens
// the configured access window. It does not touch the device binding.
func (s *Service) SimulatePayment(ctx context.Context, principal, sessionToken string, now time.Time) (Profile, error) {
	const op = "registry.SimulatePayment"

	p, err := s.store.Mutate(ctx, principal, func(p *Profile) error {
		if err := gateSessionState(op, *p, sessionToken, now); err != nil {
			return err
		}
		p.IsPaid = true
		p.ExpiresAt = now.UTC().Add(s.cfg.PaymentAccessWindow)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	s.log.Info("payment.recorded", "principal", principal, "expires_at", p.ExpiresAt)
	return p, nil
}

// MarkPaid opens the default access window without a session token check.
// It backs voucher redemption and admin payment toggles, both of which
// carry their own authorization.
func (s *Service) MarkPaid(ctx context.Context, principal string, now time.Time) (Profile, error) {
	return s.GrantAccess(ctx, principal, s.cfg.PaymentAccessWindow, now)
}

// GrantAccess opens an access window of the given length. A non-positive
// window falls back to the configured default.
func (s *Service) GrantAccess(ctx context.Context, principal string, window time.Duration, now time.Time) (Profile, error) {
	if window <= 0 {
		window = s.cfg.PaymentAccessWindow
	}
	return s.store.Mutate(ctx, principal, func(p *Profile) error {
		p.IsPaid = true
		p.ExpiresAt = now.UTC().Add(window)
		return nil
	})
}

// UpdateProgress records completion for one content module. Only the owning
// principal's valid session may mutate progress.
func (s *Service) UpdateProgress(ctx context.Context, principal, moduleID string, percent int, sessionToken string, now time.Time) (Profile, error) {
	const op = "registry.UpdateProgress"
	if strings.TrimSpace(moduleID) == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty module id"}
	}
	if percent < 0 || percent > 100 {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "progress out of range"}
	}

	return s.store.Mutate(ctx, principal, func(p *Profile) error {
		if err := gateSessionState(op, *p, sessionToken, now); err != nil {
			return err
		}
		p.SetProgress(moduleID, percent)
		return nil
	})
}

// VerifySessionToken checks only the session-token and revocation gates.
// The notify gateway uses it to authenticate subscriptions without forcing a
// device check.
func (s *Service) VerifySessionToken(ctx context.Context, principal, sessionToken string) (Profile, error) {
	const op = "registry.VerifySessionToken"

	p, err := s.store.Get(ctx, principal)
	if err != nil {
		return Profile{}, err
	}
	if p.Revoked {
		return Profile{}, OpError{Op: op, Kind: ErrAccessRevoked}
	}
	if !sessionTokenMatches(p, sessionToken) {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidToken}
	}
	return p, nil
}

// gateSessionState applies the shared precedence gates for session-scoped
// operations: revoked, then expired, then token validity.
func gateSessionState(op string, p Profile, sessionToken string, now time.Time) error {
	if p.Revoked {
		return OpError{Op: op, Kind: ErrAccessRevoked}
	}
	if p.Expired(now) {
		return OpError{Op: op, Kind: ErrAccessExpired}
	}
	if !sessionTokenMatches(p, sessionToken) {
		return OpError{Op: op, Kind: ErrInvalidToken}
	}
	return nil
}

func sessionTokenMatches(p Profile, plain string) bool {
	if p.SessionTokenHash == "" || plain == "" {
		return false
	}
	return token.EqualHex(p.SessionTokenHash, token.HashSessionTokenHex(plain))
}

func newOpaqueSessionToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)
	hashHex = token.HashSessionTokenHex(plain) // 64 hex chars
	return plain, hashHex, nil
}

func isExists(err error) bool {
	var oe OpError
	ok := errors.As(err, &oe)
	return ok && oe.Kind == ErrProfileExists
}
