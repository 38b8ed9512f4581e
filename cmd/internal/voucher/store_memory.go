package voucher

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps vouchers in process memory. It backs tests and
// database-less deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]*Voucher
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*Voucher)}
}

func (m *MemoryStore) Create(ctx context.Context, in CreateRecord) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.CodeHash) == "" || in.MaxUses <= 0 {
		return Voucher{}, ErrInvalidInput
	}

	v := Voucher{
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
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHash[in.CodeHash]; ok {
		return Voucher{}, ErrInvalidInput
	}
	m.byHash[in.CodeHash] = &v
	return v, nil
}

func (m *MemoryStore) GetByCodeHash(ctx context.Context, codeHash string) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.byHash[strings.TrimSpace(codeHash)]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return *v, nil
}

func (m *MemoryStore) Redeem(ctx context.Context, in RedeemRecord) (Voucher, error) {
	if err := ctx.Err(); err != nil {
		return Voucher{}, err
	}
	if strings.TrimSpace(in.CodeHash) == "" || in.RedeemedBy == nil {
		return Voucher{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byHash[in.CodeHash]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	if v.RevokedAt != nil || !v.ExpiresAt.After(in.Now) || v.UsedCount >= v.MaxUses {
		return Voucher{}, ErrNotActive
	}

	v.UsedCount++
	now := in.Now
	v.RedeemedAt = &now
	v.RedeemedBy = in.RedeemedBy
	return *v, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Voucher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Voucher, 0, len(m.byHash))
	for _, v := range m.byHash {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
