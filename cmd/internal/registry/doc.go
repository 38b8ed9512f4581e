// Package registry is the authoritative store for user profiles: payment
// status, the single-valued session token, the bound device fingerprint,
// expiry, progress, and the revocation flag.
//
// State machine along the device-binding axis:
//
//	UNBOUND --first verify--> BOUND --admin reset--> UNBOUND
//
// A verify from a different device while BOUND fails with a device-mismatch
// error and never overwrites the binding; the "locked" condition is derived
// at verify time rather than stored (every later attempt from the unbound
// device fails the same way).
//
// Concurrency contract: all writes to one profile serialize through
// Store.Mutate, so a concurrent admin reset and a verify cannot race into an
// inconsistent bound state. Writes to different profiles do not contend.
package registry
