package watermark

import "sync"

// Event names a viewer input event the guard suppresses while attached.
type Event string

const (
	EventContextMenu    Event = "contextmenu"
	EventCopy           Event = "copy"
	EventCut            Event = "cut"
	EventPaste          Event = "paste"
	EventDragStart      Event = "dragstart"
	EventSelectionStart Event = "selectstart"
	EventKeyDown        Event = "keydown"
)

// SuppressedEvents is the full set a Guard blocks.
var SuppressedEvents = []Event{
	EventContextMenu,
	EventCopy,
	EventCut,
	EventPaste,
	EventDragStart,
	EventSelectionStart,
	EventKeyDown,
}

// KeyChord is a keyboard combination blocked while the guard is attached.
type KeyChord struct {
	Ctrl  bool
	Shift bool
	Key   string
}

// SuppressedChords lists the save/inspect/view-source chords the guard
// cancels. Plain typing is never affected.
var SuppressedChords = []KeyChord{
	{Ctrl: true, Key: "s"},              // save page
	{Ctrl: true, Key: "p"},              // print
	{Ctrl: true, Key: "u"},              // view source
	{Ctrl: true, Key: "c"},              // copy
	{Ctrl: true, Key: "a"},              // select all
	{Ctrl: true, Shift: true, Key: "i"}, // devtools
	{Ctrl: true, Shift: true, Key: "j"}, // console
	{Ctrl: true, Shift: true, Key: "c"}, // inspect element
	{Key: "F12"},                        // devtools
	{Key: "PrintScreen"},                // screenshot (best effort)
}

// EventTarget is the surface the guard attaches handlers to. A browser
// document, a desktop window, or a test double.
type EventTarget interface {
	AddListener(ev Event)
	RemoveListener(ev Event)
}

// Guard attaches suppression handlers for every event in SuppressedEvents
// and removes exactly that set on detach, so repeated attach/detach cycles
// leave the target unchanged.
type Guard struct {
	target EventTarget

	mu       sync.Mutex
	attached bool
}

// NewGuard constructs a detached Guard over the target.
func NewGuard(target EventTarget) *Guard {
	return &Guard{target: target}
}

// Attach installs all suppression handlers. Idempotent.
func (g *Guard) Attach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attached {
		return
	}
	for _, ev := range SuppressedEvents {
		g.target.AddListener(ev)
	}
	g.attached = true
}

// Detach removes exactly the handlers Attach installed. Idempotent.
func (g *Guard) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.attached {
		return
	}
	for _, ev := range SuppressedEvents {
		g.target.RemoveListener(ev)
	}
	g.attached = false
}

// Attached reports whether the guard currently holds handlers.
func (g *Guard) Attached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attached
}

// BlocksChord reports whether a key chord is on the suppression list.
// The keydown handler cancels only these; everything else passes through.
func BlocksChord(c KeyChord) bool {
	for _, s := range SuppressedChords {
		if s == c {
			return true
		}
	}
	return false
}
