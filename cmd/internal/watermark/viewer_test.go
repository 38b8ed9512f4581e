package watermark

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type captureSurface struct {
	mu     sync.Mutex
	frames []image.Image
}

func (s *captureSurface) Present(frame image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *captureSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *captureSurface) last() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func newTestViewer(t *testing.T, surface Surface, interval time.Duration) *Viewer {
	t.Helper()
	base, err := Decode(testAsset(t, 160, 100))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := Identity{Email: "alice@example.com", Fingerprint: "fp0123456789", IP: "1.2.3.4"}
	return NewViewer(NewPipeline(Config{}), surface, base, id, interval, nil)
}

func TestViewer_RendersAndStops(t *testing.T) {
	surface := &captureSurface{}
	v := newTestViewer(t, surface, 10*time.Millisecond)

	go v.Run(context.Background())

	deadline := time.After(2 * time.Second)
	for surface.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("viewer produced %d frames, want at least 3", surface.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	v.Close()
	n := surface.count()
	time.Sleep(50 * time.Millisecond)
	if surface.count() != n {
		t.Fatal("viewer rendered after Close")
	}

	// Close is idempotent.
	v.Close()
}

func TestViewer_ContextCancelStopsLoop(t *testing.T) {
	surface := &captureSurface{}
	v := newTestViewer(t, surface, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not stop on context cancel")
	}
}

func TestViewer_VisibilityBlur(t *testing.T) {
	surface := &captureSurface{}
	v := newTestViewer(t, surface, time.Hour) // only explicit renders
	defer v.Close()

	go v.Run(context.Background())

	deadline := time.After(2 * time.Second)
	for surface.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("no initial frame")
		case <-time.After(5 * time.Millisecond):
		}
	}
	live := surface.last()

	v.SetVisible(false)
	hidden := surface.last()
	if framesEqual(live, hidden) {
		t.Fatal("hidden frame identical to live frame")
	}

	v.SetVisible(true)
	restored := surface.last()
	if framesEqual(restored, hidden) {
		t.Fatal("restore did not leave the placeholder")
	}
}

func TestGuard_SymmetricAttachDetach(t *testing.T) {
	target := &countingTarget{counts: make(map[Event]int)}
	g := NewGuard(target)

	g.Attach()
	g.Attach() // idempotent
	if !g.Attached() {
		t.Fatal("guard not attached")
	}
	for _, ev := range SuppressedEvents {
		if target.counts[ev] != 1 {
			t.Fatalf("event %s: %d listeners after attach", ev, target.counts[ev])
		}
	}

	g.Detach()
	g.Detach() // idempotent
	if g.Attached() {
		t.Fatal("guard still attached")
	}
	for _, ev := range SuppressedEvents {
		if target.counts[ev] != 0 {
			t.Fatalf("event %s: %d listeners after detach", ev, target.counts[ev])
		}
	}
}

type countingTarget struct {
	mu     sync.Mutex
	counts map[Event]int
}

func (c *countingTarget) AddListener(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[ev]++
}

func (c *countingTarget) RemoveListener(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[ev]--
}

func TestBlocksChord(t *testing.T) {
	if !BlocksChord(KeyChord{Ctrl: true, Key: "s"}) {
		t.Fatal("ctrl+s must be blocked")
	}
	if !BlocksChord(KeyChord{Ctrl: true, Shift: true, Key: "i"}) {
		t.Fatal("ctrl+shift+i must be blocked")
	}
	if BlocksChord(KeyChord{Key: "a"}) {
		t.Fatal("plain typing must pass through")
	}
}

func TestIPLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer srv.Close()

	l := &IPLookup{URL: srv.URL}
	if got := l.Lookup(context.Background()); got != "203.0.113.7" {
		t.Fatalf("lookup: got %q", got)
	}
}

func TestIPLookup_FailuresReturnUnknown(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an ip</html>"))
	}))
	defer bad.Close()

	cases := map[string]string{
		"garbage body": bad.URL,
		"unreachable":  "http://127.0.0.1:1",
	}
	for name, url := range cases {
		l := &IPLookup{URL: url, Client: &http.Client{Timeout: 200 * time.Millisecond}}
		if got := l.Lookup(context.Background()); got != UnknownValue {
			t.Fatalf("%s: got %q, want %q", name, got, UnknownValue)
		}
	}
}
