package watermark

import (
	"fmt"
	"strings"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/fingerprint"
)

// Identity is the viewer identity burned into every frame.
type Identity struct {
	Email       string
	Fingerprint string
	IP          string
	Now         time.Time
}

// Text renders the overlay line:
//
//	user@example.com | 2026-08-31 | Device: a1b2c3d4e5 | IP: 203.0.113.7
//
// The fingerprint is truncated to ten characters; missing fields fall back
// to "Unknown" so a frame never carries an empty identity slot.
func (id Identity) Text() string {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		email = UnknownValue
	}
	ip := strings.TrimSpace(id.IP)
	if ip == "" {
		ip = UnknownValue
	}
	device := fingerprint.Truncate(id.Fingerprint, 10)
	if device == "" {
		device = UnknownValue
	}
	now := id.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return fmt.Sprintf("%s | %s | Device: %s | IP: %s", email, now.UTC().Format("2006-01-02"), device, ip)
}
