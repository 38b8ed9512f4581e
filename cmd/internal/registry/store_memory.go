package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the dev/test fallback when no database is configured.
//
// Each profile owns its own mutex, so mutations against different principals
// never contend; the outer map lock is held only for lookups and inserts.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*memProfile
}

type memProfile struct {
	mu sync.Mutex
	p  Profile
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*memProfile)}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Create inserts a new profile.
func (s *MemoryStore) Create(ctx context.Context, p Profile) (Profile, error) {
	if p.Principal == "" {
		return Profile{}, OpError{Op: "registry.Create", Kind: ErrInvalidInput, Msg: "empty principal"}
	}
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.Principal]; ok {
		return Profile{}, OpError{Op: "registry.Create", Kind: ErrProfileExists}
	}
	s.profiles[p.Principal] = &memProfile{p: p.Clone()}
	return p.Clone(), nil
}

// Get loads a profile snapshot.
func (s *MemoryStore) Get(ctx context.Context, principal string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.RLock()
	mp, ok := s.profiles[principal]
	s.mu.RUnlock()
	if !ok {
		return Profile{}, OpError{Op: "registry.Get", Kind: ErrProfileNotFound}
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.p.Clone(), nil
}

// List returns all profiles ordered by principal.
func (s *MemoryStore) List(ctx context.Context) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*memProfile, 0, len(s.profiles))
	for _, mp := range s.profiles {
		entries = append(entries, mp)
	}
	s.mu.RUnlock()

	out := make([]Profile, 0, len(entries))
	for _, mp := range entries {
		mp.mu.Lock()
		out = append(out, mp.p.Clone())
		mp.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

// Mutate applies fn under the profile's own lock.
func (s *MemoryStore) Mutate(ctx context.Context, principal string, fn func(*Profile) error) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.RLock()
	mp, ok := s.profiles[principal]
	s.mu.RUnlock()
	if !ok {
		return Profile{}, OpError{Op: "registry.Mutate", Kind: ErrProfileNotFound}
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	work := mp.p.Clone()
	if err := fn(&work); err != nil {
		return Profile{}, err
	}
	// Immutable fields are not writable through Mutate.
	work.Principal = mp.p.Principal
	work.Email = mp.p.Email
	work.CreatedAt = mp.p.CreatedAt

	mp.p = work
	return work.Clone(), nil
}
