package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (gate.profiles).
//
// Schema is managed externally (see deploy notes); the expected table is:
//
//	CREATE TABLE gate.profiles (
//	    principal          text PRIMARY KEY,
//	    email              text NOT NULL,
//	    is_paid            boolean NOT NULL DEFAULT false,
//	    session_id         text,
//	    session_token_hash text,
//	    primary_device_id  text,
//	    expires_at         timestamptz,
//	    last_login         timestamptz,
//	    created_at         timestamptz NOT NULL,
//	    progress           jsonb NOT NULL DEFAULT '[]',
//	    revoked            boolean NOT NULL DEFAULT false
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed profile store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, OpError{Op: "registry.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return &PostgresStore{pool: pool}, nil
}

const profileColumns = `
	principal, email, is_paid,
	session_id, session_token_hash, primary_device_id,
	expires_at, last_login, created_at,
	progress, revoked
`

// Create inserts a new profile row.
func (s *PostgresStore) Create(ctx context.Context, p Profile) (Profile, error) {
	if p.Principal == "" {
		return Profile{}, OpError{Op: "registry.Create", Kind: ErrInvalidInput, Msg: "empty principal"}
	}

	progress, err := marshalProgress(p.Progress)
	if err != nil {
		return Profile{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO gate.profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		p.Principal, p.Email, p.IsPaid,
		nullIfEmpty(p.SessionID), nullIfEmpty(p.SessionTokenHash), nullIfEmpty(p.PrimaryDeviceID),
		nullIfZeroTime(p.ExpiresAt), nullIfZeroTime(p.LastLogin), p.CreatedAt,
		progress, p.Revoked,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, OpError{Op: "registry.Create", Kind: ErrProfileExists}
		}
		return Profile{}, err
	}
	return p, nil
}

// Get loads a profile snapshot by principal.
func (s *PostgresStore) Get(ctx context.Context, principal string) (Profile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM gate.profiles
		WHERE principal = $1
	`, principal)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, OpError{Op: "registry.Get", Kind: ErrProfileNotFound}
	}
	return p, err
}

// List returns all profiles ordered by principal.
func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM gate.profiles
		ORDER BY principal
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Mutate applies fn inside a transaction holding a row lock, so concurrent
// mutations of one principal serialize while other principals proceed.
func (s *PostgresStore) Mutate(ctx context.Context, principal string, fn func(*Profile) error) (Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM gate.profiles
		WHERE principal = $1
		FOR UPDATE
	`, principal)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, OpError{Op: "registry.Mutate", Kind: ErrProfileNotFound}
	}
	if err != nil {
		return Profile{}, err
	}

	work := p.Clone()
	if err := fn(&work); err != nil {
		return Profile{}, err
	}
	// Immutable fields are not writable through Mutate.
	work.Principal = p.Principal
	work.Email = p.Email
	work.CreatedAt = p.CreatedAt

	progress, err := marshalProgress(work.Progress)
	if err != nil {
		return Profile{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE gate.profiles SET
			is_paid = $2,
			session_id = $3,
			session_token_hash = $4,
			primary_device_id = $5,
			expires_at = $6,
			last_login = $7,
			progress = $8,
			revoked = $9
		WHERE principal = $1
	`,
		work.Principal, work.IsPaid,
		nullIfEmpty(work.SessionID), nullIfEmpty(work.SessionTokenHash), nullIfEmpty(work.PrimaryDeviceID),
		nullIfZeroTime(work.ExpiresAt), nullIfZeroTime(work.LastLogin),
		progress, work.Revoked,
	)
	if err != nil {
		return Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Profile{}, err
	}
	return work, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var (
		p         Profile
		sessionID *string
		tokenHash *string
		deviceID  *string
		expiresAt *time.Time
		lastLogin *time.Time
		progress  []byte
	)
	err := row.Scan(
		&p.Principal, &p.Email, &p.IsPaid,
		&sessionID, &tokenHash, &deviceID,
		&expiresAt, &lastLogin, &p.CreatedAt,
		&progress, &p.Revoked,
	)
	if err != nil {
		return Profile{}, err
	}

	if sessionID != nil {
		p.SessionID = *sessionID
	}
	if tokenHash != nil {
		p.SessionTokenHash = *tokenHash
	}
	if deviceID != nil {
		p.PrimaryDeviceID = *deviceID
	}
	if expiresAt != nil {
		p.ExpiresAt = expiresAt.UTC()
	}
	if lastLogin != nil {
		p.LastLogin = lastLogin.UTC()
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &p.Progress); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

func marshalProgress(entries []ProgressEntry) ([]byte, error) {
	if entries == nil {
		entries = []ProgressEntry{}
	}
	return json.Marshal(entries)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
