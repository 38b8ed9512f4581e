package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Krishanu16/gate-platform/cmd/internal/notify/wire"
	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
)

func newGatewayFixture(t *testing.T) (*Gateway, *registry.Service, *httptest.Server) {
	t.Helper()
	reg, err := registry.NewService(registry.DefaultServiceConfig(), registry.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("registry.NewService: %v", err)
	}
	gw := NewGateway(nil, NewHub(nil), reg)
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return gw, reg, srv
}

func dialAndHello(t *testing.T, ctx context.Context, url, principal, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocol},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	payload, _ := json.Marshal(wire.HelloPayload{Principal: principal, Token: token})
	env := wire.Envelope{V: wire.Version, Type: wire.TypeHello, ID: "t1", TS: time.Now(), Payload: payload}
	data, _ := json.Marshal(env)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) wire.Envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func TestGateway_SubscribeAndReceiveRevocation(t *testing.T) {
	gw, reg, srv := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	if _, err := reg.Register(ctx, "alice", "alice@example.com", now); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := reg.IssueSession(ctx, "alice", now)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	conn := dialAndHello(t, ctx, srv.URL, "alice", token)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ack := readEnvelope(t, ctx, conn)
	if ack.Type != wire.TypeHelloAck {
		t.Fatalf("handshake reply: %q", ack.Type)
	}

	// The hub only sees the subscriber after the ack; wait for it.
	deadline := time.After(2 * time.Second)
	for gw.Hub().Subscribers("alice") == 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	gw.Hub().AccessRevoked("alice")

	ev := readEnvelope(t, ctx, conn)
	if ev.Type != wire.TypeAccessRevoked {
		t.Fatalf("event type: %q", ev.Type)
	}
	var p wire.RevocationPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Principal != "alice" {
		t.Fatalf("payload principal: %q", p.Principal)
	}
}

func TestGateway_RejectsBadToken(t *testing.T) {
	_, reg, srv := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	if _, err := reg.Register(ctx, "alice", "alice@example.com", now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := reg.IssueSession(ctx, "alice", now); err != nil {
		t.Fatalf("issue session: %v", err)
	}

	conn := dialAndHello(t, ctx, srv.URL, "alice", "not-the-token")
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	reply := readEnvelope(t, ctx, conn)
	if reply.Type != wire.TypeError {
		t.Fatalf("reply type: %q, want error", reply.Type)
	}
	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatal("connection stayed open after rejected hello")
	}
}

func TestGateway_DisconnectRemovesSubscriber(t *testing.T) {
	gw, reg, srv := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	if _, err := reg.Register(ctx, "alice", "alice@example.com", now); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := reg.IssueSession(ctx, "alice", now)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	conn := dialAndHello(t, ctx, srv.URL, "alice", token)
	if env := readEnvelope(t, ctx, conn); env.Type != wire.TypeHelloAck {
		t.Fatalf("handshake reply: %q", env.Type)
	}

	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.After(2 * time.Second)
	for gw.Hub().Subscribers("alice") != 0 {
		select {
		case <-deadline:
			t.Fatalf("subscriber still registered: %d", gw.Hub().Subscribers("alice"))
		case <-time.After(5 * time.Millisecond):
		}
	}
}
