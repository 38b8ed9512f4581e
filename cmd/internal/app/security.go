package app

import (
	"errors"

	"github.com/Krishanu16/gate-platform/cmd/security/token"
)

// ValidateSecurityConfig enforces the runtime security policy at startup.
// Fail-fast: with GATE_REQUIRE_TOKEN_HMAC set, the process refuses to start
// on a plain-SHA fallback rather than silently weakening token hashing.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but GATE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but GATE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// Hard assertion that hashing is actually in HMAC mode in this runtime.
	if !token.HMACEnabled() {
		return errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
