// Package wire defines the notify protocol v1 contract.
//
// It is shared between server and clients to keep the wire protocol
// authoritative, and stays dependency-light on purpose.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a subscription handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeSessionRevoked tells the client its session was invalidated.
	TypeSessionRevoked = "session_revoked"
	// TypeAccessRevoked tells the client its content access was revoked.
	TypeAccessRevoked = "access_revoked"
	// TypeDeviceReset tells the client its device binding was cleared.
	TypeDeviceReset = "device_reset"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeSessionRevoked,
		TypeAccessRevoked,
		TypeDeviceReset,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload authenticates a subscription.
type HelloPayload struct {
	Principal string `json:"principal"`
	Token     string `json:"token"`
}

// HelloAckPayload confirms the subscription.
type HelloAckPayload struct {
	Principal string `json:"principal"`
}

// RevocationPayload is shared by every revocation event type.
type RevocationPayload struct {
	Principal string `json:"principal"`
	Reason    string `json:"reason,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
