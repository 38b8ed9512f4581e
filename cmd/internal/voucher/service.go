package voucher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/security/token"
)

const (
	defaultCodeBytes  = 24
	defaultTTL        = 30 * 24 * time.Hour
	defaultAccessDays = 365
	maxNoteLen        = 512
)

// Entitler opens a paid access window for a principal. The registry
// service satisfies it.
type Entitler interface {
	GrantAccess(ctx context.Context, principal string, window time.Duration, now time.Time) (registry.Profile, error)
}

// CreateInput describes voucher creation.
type CreateInput struct {
	CreatedBy  *string
	TTL        time.Duration
	MaxUses    int
	AccessDays int
	Note       *string
	Now        time.Time
}

// RedeemInput describes voucher redemption by a principal.
type RedeemInput struct {
	Code      string
	Principal string
	Now       time.Time
}

// Service manages voucher creation, validation, and redemption.
type Service struct {
	store     Store
	entitler  Entitler
	codeBytes int
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, entitler Entitler) (*Service, error) {
	if store == nil || entitler == nil {
		return nil, ErrInvalidInput
	}
	return &Service{store: store, entitler: entitler, codeBytes: defaultCodeBytes}, nil
}

// Create mints a voucher and returns it together with the plain code.
func (s *Service) Create(ctx context.Context, in CreateInput) (Voucher, string, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, "", err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	maxUses := in.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}
	accessDays := in.AccessDays
	if accessDays <= 0 {
		accessDays = defaultAccessDays
	}
	note := trimPtr(in.Note)
	if note != nil && len(*note) > maxNoteLen {
		return Voucher{}, "", ErrInvalidInput
	}

	codePlain, err := newOpaqueCode(s.codeBytes)
	if err != nil {
		return Voucher{}, "", err
	}

	voucherID, err := newULID(now)
	if err != nil {
		return Voucher{}, "", err
	}

	v, err := s.store.Create(ctx, CreateRecord{
		ID:         voucherID,
		CodeHash:   token.HashSessionTokenHex(codePlain),
		CreatedBy:  trimPtr(in.CreatedBy),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		MaxUses:    maxUses,
		AccessDays: accessDays,
	})
	if err != nil {
		return Voucher{}, "", err
	}
	return v, codePlain, nil
}

// Validate reports whether a code is redeemable at the given time.
func (s *Service) Validate(ctx context.Context, code string, now time.Time) (bool, Voucher, error) {
	if err := ctx.Err(); err != nil {
		return false, Voucher{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, Voucher{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	v, err := s.store.GetByCodeHash(ctx, token.HashSessionTokenHex(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, Voucher{}, nil
		}
		return false, Voucher{}, err
	}

	if v.RevokedAt != nil {
		return false, v, nil
	}
	if !v.ExpiresAt.After(now) {
		return false, v, nil
	}
	if v.MaxUses > 0 && v.UsedCount >= v.MaxUses {
		return false, v, nil
	}
	return true, v, nil
}

// Redeem consumes one use of the voucher and opens the granted access
// window on the redeeming principal's profile. Consumption and the grant
// are not atomic across stores; the voucher is burned first so a crash
// cannot mint repeated windows from one use.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (Voucher, registry.Profile, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, registry.Profile{}, err
	}
	code := strings.TrimSpace(in.Code)
	principal := strings.TrimSpace(in.Principal)
	if code == "" || principal == "" {
		return Voucher{}, registry.Profile{}, ErrInvalidInput
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	v, err := s.store.Redeem(ctx, RedeemRecord{
		CodeHash:   token.HashSessionTokenHex(code),
		RedeemedBy: &principal,
		Now:        now,
	})
	if err != nil {
		return Voucher{}, registry.Profile{}, err
	}

	window := time.Duration(v.AccessDays) * 24 * time.Hour
	p, err := s.entitler.GrantAccess(ctx, principal, window, now)
	if err != nil {
		return v, registry.Profile{}, err
	}
	return v, p, nil
}

// List returns every voucher for the admin dashboard.
func (s *Service) List(ctx context.Context) ([]Voucher, error) {
	return s.store.List(ctx)
}

func newOpaqueCode(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = defaultCodeBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
