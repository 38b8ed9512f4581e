package registry

import "time"

// BindingState is the derived device-binding state of a profile.
type BindingState string

const (
	// StateUnbound means no device fingerprint has been recorded yet.
	StateUnbound BindingState = "unbound"
	// StateBound means a device fingerprint is recorded and immutable until
	// an admin reset.
	StateBound BindingState = "bound"
)

// ProgressEntry records completion of one content module. Entries are kept
// ordered by module id.
type ProgressEntry struct {
	ModuleID string `json:"module_id"`
	Percent  int    `json:"percent"`
}

// Profile is the authoritative per-principal record.
//
// SessionTokenHash is single-valued: issuing a new session overwrites it,
// which implicitly invalidates the previous token. The plain token is never
// stored.
type Profile struct {
	Principal string
	Email     string

	IsPaid           bool
	SessionID        string
	SessionTokenHash string

	// PrimaryDeviceID is empty until the first successful binding and
	// immutable thereafter except via admin reset.
	PrimaryDeviceID string

	// ExpiresAt zero means no expiry window has been set.
	ExpiresAt time.Time
	LastLogin time.Time
	CreatedAt time.Time

	Progress []ProgressEntry

	// Revoked is settable only through an admin override; while true every
	// evaluation fails immediately.
	Revoked bool
}

// BindingState derives the device-binding state.
func (p Profile) BindingState() BindingState {
	if p.PrimaryDeviceID == "" {
		return StateUnbound
	}
	return StateBound
}

// HasSession reports whether a session token is currently issued.
func (p Profile) HasSession() bool { return p.SessionTokenHash != "" }

// Expired reports whether the expiry gate fails at now. A zero ExpiresAt
// means no window is set and the gate passes.
func (p Profile) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// SetProgress upserts a progress entry keeping the slice ordered by module
// id.
func (p *Profile) SetProgress(moduleID string, percent int) {
	for i := range p.Progress {
		if p.Progress[i].ModuleID == moduleID {
			p.Progress[i].Percent = percent
			return
		}
	}
	entry := ProgressEntry{ModuleID: moduleID, Percent: percent}
	at := len(p.Progress)
	for i := range p.Progress {
		if p.Progress[i].ModuleID > moduleID {
			at = i
			break
		}
	}
	p.Progress = append(p.Progress, ProgressEntry{})
	copy(p.Progress[at+1:], p.Progress[at:])
	p.Progress[at] = entry
}

// Clone returns a deep copy safe to hand out across goroutines.
func (p Profile) Clone() Profile {
	cp := p
	if p.Progress != nil {
		cp.Progress = append([]ProgressEntry(nil), p.Progress...)
	}
	return cp
}
