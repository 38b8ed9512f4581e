// Package notify pushes entitlement revocation events to connected
// viewers so admin overrides take effect without waiting for the next
// poll. Delivery is best-effort: a slow or absent subscriber never blocks
// an override, and the access evaluator remains the enforcement point.
package notify

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Krishanu16/gate-platform/cmd/internal/notify/wire"
)

// Hub indexes live subscribers by principal and fans revocation events
// out to them.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[string]*Subscriber // principal -> subscriber id -> subscriber
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log.With("module", "notify"),
		subs: make(map[string]map[string]*Subscriber),
	}
}

// Add registers a subscriber under its principal.
func (h *Hub) Add(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.subs[s.Principal]
	if !ok {
		byID = make(map[string]*Subscriber)
		h.subs[s.Principal] = byID
	}
	byID[s.ID] = s
}

// Remove unregisters a subscriber. Removing an unknown subscriber is a
// no-op.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.subs[s.Principal]
	if !ok {
		return
	}
	delete(byID, s.ID)
	if len(byID) == 0 {
		delete(h.subs, s.Principal)
	}
}

// Subscribers reports how many live subscriptions a principal holds.
func (h *Hub) Subscribers(principal string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[principal])
}

// Publish sends one typed revocation event to every subscriber of the
// principal. Full queues are skipped, never blocked on.
func (h *Hub) Publish(principal, eventType, reason string) {
	payload, err := json.Marshal(wire.RevocationPayload{Principal: principal, Reason: reason})
	if err != nil {
		h.log.Error("notify.publish.marshal.fail", "err", err, "type", eventType)
		return
	}
	env := wire.Envelope{
		V:       wire.Version,
		Type:    eventType,
		ID:      newEventID(),
		TS:      time.Now().UTC(),
		Payload: payload,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs[principal] {
		select {
		case s.Send <- env:
		case <-s.Done():
		default:
			h.log.Info("notify.publish.drop", "principal", principal, "subscriber", s.ID, "type", eventType)
		}
	}
}

// SessionRevoked implements the admin service's Notifier.
func (h *Hub) SessionRevoked(principal string) {
	h.Publish(principal, wire.TypeSessionRevoked, "session revoked by administrator")
}

// AccessRevoked implements the admin service's Notifier.
func (h *Hub) AccessRevoked(principal string) {
	h.Publish(principal, wire.TypeAccessRevoked, "access revoked by administrator")
}

// DeviceReset implements the admin service's Notifier.
func (h *Hub) DeviceReset(principal string) {
	h.Publish(principal, wire.TypeDeviceReset, "device binding reset by administrator")
}

func newEventID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Now(), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
