// Package fingerprint derives a stable device identifier from client
// environment attributes.
//
// The identifier is deterministic: the same device/browser configuration
// yields the same fingerprint across sessions, and different configurations
// diverge with high probability. Every attribute is client-reported and
// spoofable, so the fingerprint is a deterrent against casual account
// sharing, NOT a security boundary. Treat it accordingly.
package fingerprint

import (
	"encoding/base64"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Delimiter joins the ordered attribute set. It must stay stable: changing it
// changes every fingerprint in the fleet.
const Delimiter = "|"

// UnknownSentinel replaces attributes the environment cannot report.
const UnknownSentinel = "unknown"

// Attributes is the fixed, ordered set of environment attributes a
// fingerprint is derived from. Zero-value numeric fields are encoded as the
// unknown sentinel.
type Attributes struct {
	UserAgent         string
	Language          string
	ColorDepth        int
	DisplayWidth      int
	DisplayHeight     int
	TimezoneOffsetMin int
	TimezoneKnown     bool
	Platform          string
	LogicalCPUs       int
}

// Canonical returns the delimiter-joined attribute string in fixed order.
func (a Attributes) Canonical() string {
	parts := []string{
		stringOr(a.UserAgent),
		stringOr(a.Language),
		intOr(a.ColorDepth),
		intOr(a.DisplayWidth),
		intOr(a.DisplayHeight),
		tzOffset(a),
		stringOr(a.Platform),
		intOr(a.LogicalCPUs),
	}
	return strings.Join(parts, Delimiter)
}

// Generate encodes the canonical attribute string into a compact opaque
// fingerprint.
func Generate(a Attributes) string {
	return base64.StdEncoding.EncodeToString([]byte(a.Canonical()))
}

// Collect fills a best-effort attribute set for a native (non-browser) host.
// Display attributes are not observable from a headless process and come back
// as the unknown sentinel.
func Collect() Attributes {
	_, tzSeconds := time.Now().Zone()

	lang := strings.TrimSpace(envLang())
	return Attributes{
		UserAgent:         "gate-client/" + runtime.Version(),
		Language:          lang,
		TimezoneOffsetMin: tzSeconds / 60,
		TimezoneKnown:     true,
		Platform:          runtime.GOOS + "/" + runtime.GOARCH,
		LogicalCPUs:       runtime.NumCPU(),
	}
}

// Truncate shortens a fingerprint for display contexts such as watermark
// overlays. It never pads.
func Truncate(fp string, n int) string {
	if n <= 0 || len(fp) <= n {
		return fp
	}
	return fp[:n]
}

func envLang() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := strings.TrimSpace(osGetenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// osGetenv is swappable in tests.
var osGetenv = os.Getenv

func stringOr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownSentinel
	}
	return s
}

func intOr(n int) string {
	if n <= 0 {
		return UnknownSentinel
	}
	return strconv.Itoa(n)
}

func tzOffset(a Attributes) string {
	if !a.TimezoneKnown {
		return UnknownSentinel
	}
	return strconv.Itoa(a.TimezoneOffsetMin)
}
