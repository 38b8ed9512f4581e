package gateapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultThrottleMax    = 5
	defaultThrottleWindow = 5 * time.Minute
)

// loginThrottle counts admin login failures per source IP over a sliding
// window. Admin credentials are local, so an in-process counter is enough;
// it resets on restart by design of the deployment (single instance).
type loginThrottle struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

func newLoginThrottle(maxFailures int, window time.Duration) *loginThrottle {
	if maxFailures <= 0 {
		maxFailures = defaultThrottleMax
	}
	if window <= 0 {
		window = defaultThrottleWindow
	}
	return &loginThrottle{
		max:      maxFailures,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// blocked reports whether the IP has exhausted its attempts, and how long
// until the oldest counted failure ages out.
func (t *loginThrottle) blocked(ip string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.pruneLocked(ip, now)
	if len(recent) < t.max {
		return false, 0
	}
	retry := recent[0].Add(t.window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return true, retry
}

// fail records one failed attempt.
func (t *loginThrottle) fail(ip string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ip] = append(t.pruneLocked(ip, now), now)
}

// reset clears the IP's failures after a successful login.
func (t *loginThrottle) reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, ip)
}

func (t *loginThrottle) pruneLocked(ip string, now time.Time) []time.Time {
	cut := now.Add(-t.window)
	var recent []time.Time
	for _, ts := range t.failures[ip] {
		if ts.After(cut) {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(t.failures, ip)
	} else {
		t.failures[ip] = recent
	}
	return recent
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
