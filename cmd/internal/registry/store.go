package registry

import "context"

// Store is the persistence boundary for profiles.
//
// Mutate is the single-writer primitive: implementations must serialize
// concurrent mutations of the same principal (per-profile lock in memory,
// row lock in Postgres) while leaving different principals fully
// independent. The callback receives the current profile and edits it in
// place; returning an error aborts the mutation without persisting.
type Store interface {
	// Create inserts a new profile. ErrProfileExists if the principal is
	// already registered.
	Create(ctx context.Context, p Profile) (Profile, error)

	// Get loads a profile snapshot. ErrProfileNotFound when absent.
	Get(ctx context.Context, principal string) (Profile, error)

	// List returns snapshots of all profiles ordered by principal.
	List(ctx context.Context) ([]Profile, error)

	// Mutate atomically applies fn to the profile and persists the result.
	Mutate(ctx context.Context, principal string, fn func(*Profile) error) (Profile, error)
}
