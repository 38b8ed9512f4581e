// Package voucher issues single-use enrollment codes that open a paid
// access window when redeemed. Plain codes are never stored; only their
// hashes are.
package voucher

import (
	"context"
	"time"
)

// Voucher represents a voucher row. The plain code exists only in the
// Create response.
type Voucher struct {
	ID         string
	CreatedBy  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	MaxUses    int
	UsedCount  int
	AccessDays int
	RevokedAt  *time.Time
	Note       *string
	RedeemedAt *time.Time
	RedeemedBy *string
}

// CreateRecord is a normalized voucher insert payload.
type CreateRecord struct {
	ID         string
	CodeHash   string
	CreatedBy  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	MaxUses    int
	UsedCount  int
	AccessDays int
	RevokedAt  *time.Time
	Note       *string
	RedeemedAt *time.Time
	RedeemedBy *string
}

// RedeemRecord describes a code redemption.
type RedeemRecord struct {
	CodeHash   string
	RedeemedBy *string
	Now        time.Time
}

// Store is the persistence boundary for vouchers.
type Store interface {
	Create(ctx context.Context, in CreateRecord) (Voucher, error)
	GetByCodeHash(ctx context.Context, codeHash string) (Voucher, error)
	Redeem(ctx context.Context, in RedeemRecord) (Voucher, error)
	List(ctx context.Context) ([]Voucher, error)
}
