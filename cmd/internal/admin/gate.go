package admin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/security/password"
	"github.com/Krishanu16/gate-platform/cmd/security/token"
)

const (
	defaultTokenTTL   = 30 * time.Minute
	adminTokenBytes   = 32
	dummyPlainForTime = "timing-equalizer-password"
)

// GateConfig configures the administrator credential check.
type GateConfig struct {
	// Username is the single admin account name.
	Username string
	// PasswordHash is the PHC-encoded argon2id hash of the admin password.
	PasswordHash string
	// TokenTTL bounds the lifetime of issued admin tokens.
	TokenTTL time.Duration
}

// Gate verifies administrator credentials and issues short-lived opaque
// admin tokens. It is the separately-verified credential check every
// override operation requires; it holds no profile data.
type Gate struct {
	cfg    GateConfig
	pwcfg  password.Config
	// dummyHash keeps failed logins on the same argon2id code path as
	// successful ones.
	dummyHash string

	mu     sync.Mutex
	tokens map[string]time.Time // token hash -> expiry
}

// NewGate constructs a Gate. ErrNotConfigured when username or hash is
// empty: the admin surface stays disabled rather than falling open.
func NewGate(cfg GateConfig, pwcfg password.Config) (*Gate, error) {
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.PasswordHash) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	g := &Gate{cfg: cfg, pwcfg: pwcfg, tokens: make(map[string]time.Time)}
	if hash, err := pwcfg.Hash(dummyPlainForTime + " with sufficient length"); err == nil {
		g.dummyHash = hash
	}
	return g, nil
}

// Login verifies the credentials and, on success, issues an opaque admin
// token valid for the configured TTL.
func (g *Gate) Login(username, pw string, now time.Time) (string, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(g.cfg.Username)) != 1 {
		// Burn the same hashing cost for unknown usernames.
		if g.dummyHash != "" {
			_, _ = g.pwcfg.Verify(g.dummyHash, pw)
		}
		return "", ErrInvalidCredentials
	}

	ok, err := g.pwcfg.Verify(g.cfg.PasswordHash, pw)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	b := make([]byte, adminTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(b)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)
	g.tokens[token.HashSessionTokenHex(plain)] = now.Add(g.cfg.TokenTTL)
	return plain, nil
}

// Authorize checks an admin token. Every failure is the same generic
// ErrNotAuthorized.
func (g *Gate) Authorize(adminToken string, now time.Time) error {
	if strings.TrimSpace(adminToken) == "" {
		return ErrNotAuthorized
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)

	exp, ok := g.tokens[token.HashSessionTokenHex(adminToken)]
	if !ok || !exp.After(now) {
		return ErrNotAuthorized
	}
	return nil
}

// Revoke drops an admin token (admin logout).
func (g *Gate) Revoke(adminToken string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token.HashSessionTokenHex(adminToken))
}

func (g *Gate) pruneLocked(now time.Time) {
	for h, exp := range g.tokens {
		if !exp.After(now) {
			delete(g.tokens, h)
		}
	}
}
