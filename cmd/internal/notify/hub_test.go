package notify

import (
	"encoding/json"
	"testing"

	"github.com/Krishanu16/gate-platform/cmd/internal/notify/wire"
)

func TestHub_PublishFansOutByPrincipal(t *testing.T) {
	h := NewHub(nil)

	a1 := NewSubscriber("alice", "s1", 4)
	a2 := NewSubscriber("alice", "s2", 4)
	b := NewSubscriber("bob", "s3", 4)
	h.Add(a1)
	h.Add(a2)
	h.Add(b)

	h.AccessRevoked("alice")

	for _, s := range []*Subscriber{a1, a2} {
		select {
		case env := <-s.Send:
			if env.Type != wire.TypeAccessRevoked {
				t.Fatalf("subscriber %s: type %q", s.ID, env.Type)
			}
			var p wire.RevocationPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if p.Principal != "alice" {
				t.Fatalf("payload principal: %q", p.Principal)
			}
			if err := env.Validate(); err != nil {
				t.Fatalf("published envelope invalid: %v", err)
			}
		default:
			t.Fatalf("subscriber %s received nothing", s.ID)
		}
	}

	select {
	case env := <-b.Send:
		t.Fatalf("bob received alice's event: %+v", env)
	default:
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("alice", "s1", 1)
	h.Add(s)

	// Fill the queue, then publish more; the extra events are dropped.
	h.SessionRevoked("alice")
	done := make(chan struct{})
	go func() {
		h.SessionRevoked("alice")
		h.DeviceReset("alice")
		close(done)
	}()
	<-done

	if got := len(s.Send); got != 1 {
		t.Fatalf("queued events: %d, want 1", got)
	}
}

func TestHub_RemoveStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("alice", "s1", 4)
	h.Add(s)
	if h.Subscribers("alice") != 1 {
		t.Fatalf("subscribers: %d", h.Subscribers("alice"))
	}

	h.Remove(s)
	h.Remove(s) // no-op
	if h.Subscribers("alice") != 0 {
		t.Fatalf("subscribers after remove: %d", h.Subscribers("alice"))
	}

	h.AccessRevoked("alice")
	select {
	case env := <-s.Send:
		t.Fatalf("removed subscriber received %+v", env)
	default:
	}
}

func TestSubscriber_CloseIdempotent(t *testing.T) {
	s := NewSubscriber("alice", "s1", 1)
	s.Close()
	s.Close()
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestEnvelope_Validate(t *testing.T) {
	valid := wire.Envelope{V: wire.Version, Type: wire.TypeHello}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid envelope: %v", err)
	}

	cases := []wire.Envelope{
		{Type: wire.TypeHello},                  // missing version
		{V: "v2", Type: wire.TypeHello},         // wrong version
		{V: wire.Version},                       // missing type
		{V: wire.Version, Type: "message_send"}, // foreign type
	}
	for _, env := range cases {
		if err := env.Validate(); err == nil {
			t.Fatalf("envelope %+v validated", env)
		}
	}
}
