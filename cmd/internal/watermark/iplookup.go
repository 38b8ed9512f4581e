package watermark

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// UnknownValue stands in for any identity field that could not be
// resolved. Frames always carry something in every slot.
const UnknownValue = "Unknown"

const (
	defaultLookupURL     = "https://api.ipify.org"
	defaultLookupTimeout = 3 * time.Second
	maxLookupBody        = 64
)

// IPLookup resolves the viewer's public IP from an external echo service.
// It is strictly best-effort: any failure, timeout, or garbage response
// yields UnknownValue, never an error.
type IPLookup struct {
	Client *http.Client
	URL    string
}

// Lookup returns the public IP as a string, or UnknownValue.
func (l *IPLookup) Lookup(ctx context.Context) string {
	url := l.URL
	if url == "" {
		url = defaultLookupURL
	}
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: defaultLookupTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return UnknownValue
	}
	resp, err := client.Do(req)
	if err != nil {
		return UnknownValue
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UnknownValue
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return UnknownValue
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return UnknownValue
	}
	return ip
}
