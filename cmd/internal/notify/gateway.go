package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Krishanu16/gate-platform/cmd/internal/notify/wire"
	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
)

const (
	wsSubprotocol = "gate.notify.v1"

	wsDefaultSendQueueSize = 64
	wsDefaultWriteTimeout  = 5 * time.Second
	wsDefaultHelloTimeout  = 10 * time.Second
	wsMaxFrameBytes        = 4 * 1024

	// Secure-by-default for dev: only localhost origins unless overridden.
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// TokenVerifier authenticates a hello's principal and session token. The
// registry service satisfies it.
type TokenVerifier interface {
	VerifySessionToken(ctx context.Context, principal, sessionToken string) (registry.Profile, error)
}

// Gateway is the websocket entrypoint for revocation subscriptions.
//
// A client connects, sends a hello carrying its principal and session
// token, and from then on only receives. There is no client-to-server
// traffic after the handshake; any further frame closes the connection.
type Gateway struct {
	log      *slog.Logger
	hub      *Hub
	verifier TokenVerifier

	originPatterns []string
	writeTimeout   time.Duration
	helloTimeout   time.Duration
	sendQueueSize  int
}

// NewGateway constructs a gateway with secure defaults. Allowed origins
// come from GATE_WS_ALLOWED_ORIGINS (comma-separated).
func NewGateway(log *slog.Logger, hub *Hub, verifier TokenVerifier) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}

	g := &Gateway{
		log:           log.With("module", "notify"),
		hub:           hub,
		verifier:      verifier,
		writeTimeout:  wsDefaultWriteTimeout,
		helloTimeout:  wsDefaultHelloTimeout,
		sendQueueSize: wsDefaultSendQueueSize,
	}
	g.originPatterns = originPatterns(envCSV("GATE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins))
	return g
}

// Hub returns the gateway's hub so admin wiring can publish through it.
func (g *Gateway) Hub() *Hub { return g.hub }

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs one subscription until the
// client disconnects or the server shuts down.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(wsMaxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	principal, err := g.handshake(ctx, conn)
	if err != nil {
		g.log.Info("ws.reject.hello", "err", err, "remote", r.RemoteAddr)
		g.writeError(ctx, conn, "unauthorized", "subscription rejected")
		_ = conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	sub := NewSubscriber(principal, newEventID(), g.sendQueueSize)
	g.hub.Add(sub)

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Remove(sub)
			sub.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}
	defer shutdown(websocket.StatusNormalClosure, "bye")

	if err := g.writeAck(ctx, conn, principal); err != nil {
		shutdown(websocket.StatusAbnormalClosure, "ack failed")
		return
	}
	g.log.Info("ws.subscribed", "principal", principal, "subscriber", sub.ID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case env := <-sub.Send:
				if err := g.writeEnvelope(ctx, conn, env); err != nil {
					g.log.Info("ws.write.fail", "principal", principal, "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	// Reader exists only to notice disconnects. The protocol is one-way
	// after hello, so any readable frame is a violation.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			shutdown(websocket.StatusNormalClosure, "bye")
			break
		}
		shutdown(websocket.StatusPolicyViolation, "unexpected frame")
		break
	}
	<-writerDone
}

func (g *Gateway) handshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.helloTimeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", err
	}

	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if err := env.Validate(); err != nil {
		return "", err
	}
	if env.Type != wire.TypeHello {
		return "", errUnexpectedType(env.Type)
	}

	var hello wire.HelloPayload
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return "", err
	}

	if _, err := g.verifier.VerifySessionToken(ctx, hello.Principal, hello.Token); err != nil {
		return "", err
	}
	return hello.Principal, nil
}

func (g *Gateway) writeAck(ctx context.Context, conn *websocket.Conn, principal string) error {
	payload, err := json.Marshal(wire.HelloAckPayload{Principal: principal})
	if err != nil {
		return err
	}
	return g.writeEnvelope(ctx, conn, wire.Envelope{
		V:       wire.Version,
		Type:    wire.TypeHelloAck,
		ID:      newEventID(),
		TS:      time.Now().UTC(),
		Payload: payload,
	})
}

func (g *Gateway) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) {
	payload, err := json.Marshal(wire.ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	_ = g.writeEnvelope(ctx, conn, wire.Envelope{
		V:       wire.Version,
		Type:    wire.TypeError,
		ID:      newEventID(),
		TS:      time.Now().UTC(),
		Payload: payload,
	})
}

func (g *Gateway) writeEnvelope(ctx context.Context, conn *websocket.Conn, env wire.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

type errUnexpectedType string

func (e errUnexpectedType) Error() string { return "unexpected envelope type: " + string(e) }

func envCSV(key, def string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// originPatterns derives websocket.AcceptOptions host patterns from the
// allowed origin URLs so cross-origin browsers on those hosts pass
// Accept's origin check.
func originPatterns(origins []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		host := u.Hostname()
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		out = append(out, host, host+":*")
	}
	return out
}
