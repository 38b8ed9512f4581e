package voucher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists vouchers in gate.vouchers:
//
//	CREATE TABLE gate.vouchers (
//	    id          text PRIMARY KEY,
//	    code_hash   text NOT NULL UNIQUE,
//	    created_by  text,
//	    created_at  timestamptz NOT NULL,
//	    expires_at  timestamptz NOT NULL,
//	    max_uses    integer NOT NULL,
//	    used_count  integer NOT NULL DEFAULT 0,
//	    access_days integer NOT NULL,
//	    revoked_at  timestamptz,
//	    note        text,
//	    redeemed_at timestamptz,
//	    redeemed_by text
//	);
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore constructs a PostgresStore on the "gate" schema.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrInvalidInput
	}
	return &PostgresStore{pool: pool, schema: "gate"}, nil
}

const voucherColumns = `id, created_by, created_at, expires_at, max_uses, used_count, access_days, revoked_at, note, redeemed_at, redeemed_by`

func (s *PostgresStore) Create(ctx context.Context, in CreateRecord) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.CodeHash) == "" || in.MaxUses <= 0 {
		return Voucher{}, ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, code_hash, created_by, created_at, expires_at, max_uses, used_count, access_days, revoked_at, note, redeemed_at, redeemed_by
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		in.ID,
		in.CodeHash,
		in.CreatedBy,
		in.CreatedAt,
		in.ExpiresAt,
		in.MaxUses,
		in.UsedCount,
		in.AccessDays,
		in.RevokedAt,
		in.Note,
		in.RedeemedAt,
		in.RedeemedBy,
	)
	if err != nil {
		return Voucher{}, err
	}

	return Voucher{
		ID:         in.ID,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  in.CreatedAt,
		ExpiresAt:  in.ExpiresAt,
		MaxUses:    in.MaxUses,
		UsedCount:  in.UsedCount,
		AccessDays: in.AccessDays,
		RevokedAt:  in.RevokedAt,
		Note:       in.Note,
		RedeemedAt: in.RedeemedAt,
		RedeemedBy: in.RedeemedBy,
	}, nil
}

func (s *PostgresStore) GetByCodeHash(ctx context.Context, codeHash string) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	codeHash = strings.TrimSpace(codeHash)
	if codeHash == "" {
		return Voucher{}, ErrInvalidInput
	}

	var out Voucher
	err := s.pool.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM `+s.table()+` WHERE code_hash = $1`,
		codeHash,
	).Scan(scanTargets(&out)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrNotFound
		}
		return Voucher{}, err
	}
	return out, nil
}

// Redeem increments used_count in a single guarded UPDATE so concurrent
// redemptions of a single-use code cannot both succeed.
func (s *PostgresStore) Redeem(ctx context.Context, in RedeemRecord) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	if strings.TrimSpace(in.CodeHash) == "" || in.RedeemedBy == nil {
		return Voucher{}, ErrInvalidInput
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	var out Voucher
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET used_count = used_count + 1,
		        redeemed_at = $1,
		        redeemed_by = $2
		  WHERE code_hash = $3
		    AND revoked_at IS NULL
		    AND expires_at > $1
		    AND used_count < max_uses
		RETURNING `+voucherColumns,
		in.Now,
		in.RedeemedBy,
		in.CodeHash,
	).Scan(scanTargets(&out)...)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, err
	}

	// Distinguish not-found vs not-active.
	if _, selErr := s.GetByCodeHash(ctx, in.CodeHash); selErr != nil {
		return Voucher{}, selErr
	}
	return Voucher{}, ErrNotActive
}

func (s *PostgresStore) List(ctx context.Context) ([]Voucher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+voucherColumns+` FROM `+s.table()+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(scanTargets(&v)...); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "vouchers"}.Sanitize()
}

func scanTargets(v *Voucher) []any {
	return []any{
		&v.ID,
		&v.CreatedBy,
		&v.CreatedAt,
		&v.ExpiresAt,
		&v.MaxUses,
		&v.UsedCount,
		&v.AccessDays,
		&v.RevokedAt,
		&v.Note,
		&v.RedeemedAt,
		&v.RedeemedBy,
	}
}
