package admin

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/security/password"
)

const (
	testAdminUser = "root"
	testAdminPass = "correct horse battery staple"
)

type recordingNotifier struct {
	sessionRevoked []string
	accessRevoked  []string
	deviceReset    []string
}

func (n *recordingNotifier) SessionRevoked(p string) { n.sessionRevoked = append(n.sessionRevoked, p) }
func (n *recordingNotifier) AccessRevoked(p string)  { n.accessRevoked = append(n.accessRevoked, p) }
func (n *recordingNotifier) DeviceReset(p string)    { n.deviceReset = append(n.deviceReset, p) }

func testPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func newTestAdmin(t *testing.T) (*Service, *registry.MemoryStore, *recordingNotifier) {
	t.Helper()

	pwcfg := testPasswordConfig()
	hash, err := pwcfg.Hash(testAdminPass)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	gate, err := NewGate(GateConfig{Username: testAdminUser, PasswordHash: hash}, pwcfg)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	store := registry.NewMemoryStore()
	notifier := &recordingNotifier{}
	log := slog.New(slog.DiscardHandler)
	svc := NewService(gate, store, NewAuditor(nil, log), notifier, log)
	return svc, store, notifier
}

func seedProfile(t *testing.T, store *registry.MemoryStore, principal string) registry.Profile {
	t.Helper()

	now := time.Now()
	p := registry.Profile{
		Principal:        principal,
		Email:            principal + "@example.com",
		IsPaid:           true,
		SessionID:        "01JTESTSESSION",
		SessionTokenHash: "deadbeef",
		PrimaryDeviceID:  "fp-original",
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
		CreatedAt:        now,
	}
	if _, err := store.Create(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return p
}

func adminLogin(t *testing.T, svc *Service, now time.Time) string {
	t.Helper()
	tok, err := svc.Login(context.Background(), testAdminUser, testAdminPass, "127.0.0.1", now)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return tok
}

func TestGate_Login(t *testing.T) {
	svc, _, _ := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.Login(ctx, testAdminUser, "wrong password here", "", now); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", testAdminPass, "", now); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown username: got %v, want ErrInvalidCredentials", err)
	}

	tok, err := svc.Login(ctx, testAdminUser, testAdminPass, "", now)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok == "" {
		t.Fatal("login returned empty token")
	}

	two, err := svc.Login(ctx, testAdminUser, testAdminPass, "", now)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if two == tok {
		t.Fatal("admin tokens must be unique per login")
	}
}

func TestGate_TokenExpiryAndLogout(t *testing.T) {
	svc, _, _ := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()

	tok := adminLogin(t, svc, now)

	if _, err := svc.Users(ctx, tok, now); err != nil {
		t.Fatalf("users with fresh token: %v", err)
	}
	if _, err := svc.Users(ctx, tok, now.Add(defaultTokenTTL+time.Second)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expired token: got %v, want ErrNotAuthorized", err)
	}

	tok = adminLogin(t, svc, now)
	svc.Logout(ctx, tok, "")
	if _, err := svc.Users(ctx, tok, now); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("token after logout: got %v, want ErrNotAuthorized", err)
	}
}

func TestService_RequiresAuthorization(t *testing.T) {
	svc, store, notifier := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seedProfile(t, store, "alice")

	if _, err := svc.RevokeAccess(ctx, "bogus", "alice", "", now); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("revoke with bad token: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.ResetDevice(ctx, "", "alice", "", now); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("reset with empty token: got %v, want ErrNotAuthorized", err)
	}

	p, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Revoked || p.PrimaryDeviceID != "fp-original" {
		t.Fatal("unauthorized call mutated the profile")
	}
	if len(notifier.accessRevoked) != 0 {
		t.Fatal("unauthorized call emitted a notification")
	}
}

func TestService_RevokeSession(t *testing.T) {
	svc, store, notifier := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seedProfile(t, store, "alice")
	tok := adminLogin(t, svc, now)

	p, err := svc.RevokeSession(ctx, tok, "alice", "127.0.0.1", now)
	if err != nil {
		t.Fatalf("revoke session: %v", err)
	}
	if p.HasSession() {
		t.Fatal("session survived revocation")
	}
	if p.Revoked {
		t.Fatal("session revocation must not revoke access")
	}
	if p.PrimaryDeviceID != "fp-original" {
		t.Fatal("session revocation must not touch the device binding")
	}
	if len(notifier.sessionRevoked) != 1 || notifier.sessionRevoked[0] != "alice" {
		t.Fatalf("session revocation notifications: %v", notifier.sessionRevoked)
	}

	if _, err := svc.RevokeSession(ctx, tok, "missing", "", now); !errors.Is(err, registry.ErrProfileNotFound) {
		t.Fatalf("revoke unknown principal: got %v, want ErrProfileNotFound", err)
	}
}

func TestService_RevokeAndReinstateAccess(t *testing.T) {
	svc, store, notifier := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seedProfile(t, store, "alice")
	tok := adminLogin(t, svc, now)

	p, err := svc.RevokeAccess(ctx, tok, "alice", "", now)
	if err != nil {
		t.Fatalf("revoke access: %v", err)
	}
	if !p.Revoked {
		t.Fatal("profile not marked revoked")
	}
	if p.HasSession() {
		t.Fatal("revocation must clear the session")
	}
	if !p.IsPaid {
		t.Fatal("revocation must not alter payment state")
	}
	if len(notifier.accessRevoked) != 1 {
		t.Fatalf("access revocation notifications: %v", notifier.accessRevoked)
	}

	p, err = svc.ReinstateAccess(ctx, tok, "alice", "", now)
	if err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if p.Revoked {
		t.Fatal("reinstate left the profile revoked")
	}
	if p.HasSession() {
		t.Fatal("reinstate must not resurrect a session")
	}
}

func TestService_ResetDeviceIdempotent(t *testing.T) {
	svc, store, notifier := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seedProfile(t, store, "alice")
	tok := adminLogin(t, svc, now)

	p, err := svc.ResetDevice(ctx, tok, "alice", "", now)
	if err != nil {
		t.Fatalf("reset device: %v", err)
	}
	if p.BindingState() != registry.StateUnbound {
		t.Fatalf("state after reset: %v", p.BindingState())
	}

	// Resetting an already-unbound profile succeeds.
	if _, err := svc.ResetDevice(ctx, tok, "alice", "", now); err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if len(notifier.deviceReset) != 2 {
		t.Fatalf("device reset notifications: %v", notifier.deviceReset)
	}
}

func TestService_SetExpiry(t *testing.T) {
	svc, store, _ := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seedProfile(t, store, "alice")
	tok := adminLogin(t, svc, now)

	past := now.Add(-time.Hour)
	p, err := svc.SetExpiry(ctx, tok, "alice", past, "", now)
	if err != nil {
		t.Fatalf("set expiry: %v", err)
	}
	if !p.Expired(now) {
		t.Fatal("past expiry did not take effect immediately")
	}

	p, err = svc.SetExpiry(ctx, tok, "alice", time.Time{}, "", now)
	if err != nil {
		t.Fatalf("clear expiry: %v", err)
	}
	if p.Expired(now) {
		t.Fatal("zero expiry must mean no window")
	}
}

func TestService_SetPaymentStatusLeavesExpiry(t *testing.T) {
	svc, store, _ := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	seeded := seedProfile(t, store, "alice")
	tok := adminLogin(t, svc, now)

	p, err := svc.SetPaymentStatus(ctx, tok, "alice", false, "", now)
	if err != nil {
		t.Fatalf("set unpaid: %v", err)
	}
	if p.IsPaid {
		t.Fatal("profile still paid")
	}
	if !p.ExpiresAt.Equal(seeded.ExpiresAt) {
		t.Fatal("payment toggle must not touch the expiry window")
	}
}

func TestService_Listings(t *testing.T) {
	svc, store, _ := newTestAdmin(t)
	ctx := context.Background()
	now := time.Now()
	tok := adminLogin(t, svc, now)

	seedProfile(t, store, "alice")
	idle := registry.Profile{Principal: "bob", Email: "bob@example.com", CreatedAt: now}
	if _, err := store.Create(ctx, idle); err != nil {
		t.Fatalf("create: %v", err)
	}

	users, err := svc.Users(ctx, tok, now)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users: got %d, want 2", len(users))
	}

	sessions, err := svc.ActiveSessions(ctx, tok, now)
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Principal != "alice" {
		t.Fatalf("active sessions: %+v", sessions)
	}
}

func TestNewGate_RequiresCredentials(t *testing.T) {
	if _, err := NewGate(GateConfig{}, testPasswordConfig()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("empty config: got %v, want ErrNotConfigured", err)
	}
	if _, err := NewGate(GateConfig{Username: "root"}, testPasswordConfig()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing hash: got %v, want ErrNotConfigured", err)
	}
}
