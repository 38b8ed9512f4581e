package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
)

func newTestVoucherService(t *testing.T) (*Service, *registry.Service) {
	t.Helper()
	reg, err := registry.NewService(registry.DefaultServiceConfig(), registry.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("registry.NewService: %v", err)
	}
	svc, err := NewService(NewMemoryStore(), reg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, reg
}

func TestCreateAndValidate(t *testing.T) {
	svc, _ := newTestVoucherService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v, code, err := svc.Create(ctx, CreateInput{Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if code == "" {
		t.Fatal("create returned no plain code")
	}
	if v.MaxUses != 1 || v.AccessDays != defaultAccessDays {
		t.Fatalf("defaults not applied: %+v", v)
	}

	ok, got, err := svc.Validate(ctx, code, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok || got.ID != v.ID {
		t.Fatalf("fresh code should validate: ok=%v got=%+v", ok, got)
	}

	ok, _, err = svc.Validate(ctx, "no-such-code", now)
	if err != nil {
		t.Fatalf("validate unknown: %v", err)
	}
	if ok {
		t.Fatal("unknown code validated")
	}

	ok, _, err = svc.Validate(ctx, code, v.ExpiresAt.Add(time.Second))
	if err != nil {
		t.Fatalf("validate expired: %v", err)
	}
	if ok {
		t.Fatal("expired code validated")
	}
}

func TestRedeemGrantsAccessWindow(t *testing.T) {
	svc, reg := newTestVoucherService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := reg.Register(ctx, "alice", "alice@example.com", now); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, code, err := svc.Create(ctx, CreateInput{AccessDays: 30, Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v, p, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "alice", Now: now})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !p.IsPaid {
		t.Fatal("redemption did not mark the profile paid")
	}
	want := now.Add(30 * 24 * time.Hour)
	if !p.ExpiresAt.Equal(want) {
		t.Fatalf("access window: got %v, want %v", p.ExpiresAt, want)
	}
	if v.UsedCount != 1 || v.RedeemedBy == nil || *v.RedeemedBy != "alice" {
		t.Fatalf("voucher after redeem: %+v", v)
	}
}

func TestRedeemSingleUse(t *testing.T) {
	svc, reg := newTestVoucherService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, principal := range []string{"alice", "bob"} {
		if _, err := reg.Register(ctx, principal, principal+"@example.com", now); err != nil {
			t.Fatalf("register %s: %v", principal, err)
		}
	}

	_, code, err := svc.Create(ctx, CreateInput{Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "alice", Now: now}); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "bob", Now: now}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second redeem: got %v, want ErrNotActive", err)
	}

	p, err := reg.Store().Get(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if p.IsPaid {
		t.Fatal("failed redemption still granted access")
	}
}

func TestRedeemUnknownPrincipal(t *testing.T) {
	svc, _ := newTestVoucherService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, code, err := svc.Create(ctx, CreateInput{Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "ghost", Now: now}); !errors.Is(err, registry.ErrProfileNotFound) {
		t.Fatalf("redeem for unknown principal: got %v, want ErrProfileNotFound", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _ := newTestVoucherService(t)
	ctx := context.Background()

	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: "nope", Principal: "alice", Now: time.Now()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("redeem unknown code: got %v, want ErrNotFound", err)
	}
}

func TestMultiUseVoucher(t *testing.T) {
	svc, reg := newTestVoucherService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, principal := range []string{"alice", "bob", "carol"} {
		if _, err := reg.Register(ctx, principal, principal+"@example.com", now); err != nil {
			t.Fatalf("register %s: %v", principal, err)
		}
	}

	_, code, err := svc.Create(ctx, CreateInput{MaxUses: 2, Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "alice", Now: now}); err != nil {
		t.Fatalf("redeem 1: %v", err)
	}
	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "bob", Now: now}); err != nil {
		t.Fatalf("redeem 2: %v", err)
	}
	if _, _, err := svc.Redeem(ctx, RedeemInput{Code: code, Principal: "carol", Now: now}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("redeem 3: got %v, want ErrNotActive", err)
	}
}
