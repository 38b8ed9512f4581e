// Package client is a Go client for the gate HTTP API. It carries the
// device-binding handshake so callers do not have to sequence the
// verify/record round trips themselves.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Krishanu16/gate-platform/cmd/fingerprint"
)

const (
	headerPrincipal   = "X-Gate-Principal"
	headerFingerprint = "X-Gate-Device"

	defaultTimeout  = 15 * time.Second
	defaultRetries  = 2
	retryBackoff    = 250 * time.Millisecond
	maxErrorBodyLen = 4 << 10
)

// ErrDeviceLocked is returned by Connect when the account is bound to a
// different device. The session token has already been discarded; the
// caller should surface AdminContactNotice and stop.
var ErrDeviceLocked = errors.New("account locked to another device")

// AdminContactNotice is the message shown to a user whose account is
// bound to a different device.
const AdminContactNotice = "This account is locked to another device. Contact an administrator to reset the device binding."

// APIError is a structured error returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one gate server on behalf of one principal.
type Client struct {
	BaseURL     string
	Principal   string
	Fingerprint string
	HTTPClient  *http.Client

	token string
}

// New builds a client for the given server and principal. The device
// fingerprint is generated from the local machine's attributes.
func New(baseURL, principal string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Principal:   principal,
		Fingerprint: fingerprint.Generate(fingerprint.Collect()),
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// Token returns the current session token, empty when logged out.
func (c *Client) Token() string { return c.token }

// Profile mirrors the server's profile payload. Timestamps are int64
// nanoseconds since the Unix epoch, zero when unset.
type Profile struct {
	Principal   string          `json:"principal"`
	Email       string          `json:"email"`
	IsPaid      bool            `json:"is_paid"`
	DeviceBound bool            `json:"device_bound"`
	HasSession  bool            `json:"has_session"`
	Revoked     bool            `json:"revoked"`
	ExpiresAt   int64           `json:"expires_at"`
	LastLogin   int64           `json:"last_login"`
	CreatedAt   int64           `json:"created_at"`
	Progress    []ProgressEntry `json:"progress"`
}

type ProgressEntry struct {
	ModuleID string `json:"module_id"`
	Percent  int    `json:"percent"`
}

type Module struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type loginResponse struct {
	Profile Profile `json:"profile"`
	Token   string  `json:"token"`
}

type deviceRequest struct {
	Fingerprint string `json:"fingerprint"`
	Token       string `json:"token"`
}

// Register creates the profile for the client's principal.
func (c *Client) Register(ctx context.Context, email string) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/register", map[string]string{"email": email}, &out)
	return out, err
}

// Login issues a fresh session token and stores it on the client.
func (c *Client) Login(ctx context.Context) (Profile, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, &out); err != nil {
		return Profile{}, err
	}
	c.token = out.Token
	return out.Profile, nil
}

// Logout discards the local session token. The server invalidates the
// old token on the next login, so there is no server call to make.
func (c *Client) Logout() { c.token = "" }

// Connect runs the full login handshake: log in, then verify the device
// binding. A never-bound account is bound to this device automatically.
// An account bound elsewhere is logged out and ErrDeviceLocked returned.
func (c *Client) Connect(ctx context.Context) (Profile, error) {
	if _, err := c.Login(ctx); err != nil {
		return Profile{}, err
	}

	p, err := c.VerifyDevice(ctx)
	if err == nil {
		return p, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Profile{}, err
	}
	switch apiErr.Code {
	case "first_login":
		if _, err := c.RecordDevice(ctx); err != nil {
			return Profile{}, err
		}
		return c.VerifyDevice(ctx)
	case "device_mismatch":
		c.Logout()
		return Profile{}, fmt.Errorf("%w: %s", ErrDeviceLocked, AdminContactNotice)
	default:
		return Profile{}, err
	}
}

// RecordDevice binds the account to this machine's fingerprint.
func (c *Client) RecordDevice(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/device/record", deviceRequest{Fingerprint: c.Fingerprint, Token: c.token}, &out)
	return out, err
}

// VerifyDevice checks this machine's fingerprint against the binding.
func (c *Client) VerifyDevice(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/device/verify", deviceRequest{Fingerprint: c.Fingerprint, Token: c.token}, &out)
	return out, err
}

// Me fetches the current profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &out)
	return out, err
}

// SimulatePayment marks the account paid through the sandbox flow.
func (c *Client) SimulatePayment(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/payment/simulate", map[string]string{"token": c.token}, &out)
	return out, err
}

// RedeemVoucher burns a voucher code for the client's principal.
func (c *Client) RedeemVoucher(ctx context.Context, code string) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/voucher/redeem", map[string]string{"code": code}, &out)
	return out, err
}

// UpdateProgress records completion for one content module.
func (c *Client) UpdateProgress(ctx context.Context, moduleID string, percent int) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPost, "/api/progress", map[string]any{
		"module_id": moduleID,
		"percent":   percent,
		"token":     c.token,
	}, &out)
	return out, err
}

// Modules lists the content catalog.
func (c *Client) Modules(ctx context.Context) ([]Module, error) {
	var out []Module
	err := c.do(ctx, http.MethodGet, "/api/content", nil, &out)
	return out, err
}

// Frame fetches one watermarked JPEG frame for a content module.
func (c *Client) Frame(ctx context.Context, moduleID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/content/"+moduleID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// ---- transport ----

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerPrincipal, c.Principal)
	req.Header.Set(headerFingerprint, c.Fingerprint)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send retries transport failures only. A response from the server, even
// an error response, is never retried: the operations behind POSTs are
// not all idempotent.
func (c *Client) send(req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(req.Context())
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}
		resp, err := c.HTTPClient.Do(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt >= defaultRetries || req.Context().Err() != nil {
			break
		}
		select {
		case <-time.After(retryBackoff << attempt):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, lastErr)
}

func decodeAPIError(resp *http.Response) error {
	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "unknown", Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: resp.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
}
