// Package token provides session-token hashing primitives for the gate
// platform.
//
// It is the single source of truth for how opaque tokens (session tokens,
// enrollment voucher codes) are hashed before storage. Plain tokens are never
// persisted.
//
// Modes:
// - Dev/back-compat: SHA-256(token) when no HMAC key is configured.
// - Production: HMAC-SHA256(token, key) when GATE_TOKEN_HMAC_KEY is set.
//
// Output is always 64 hex chars, suitable for storage and constant-time
// comparison.
package token
