package fingerprint

import (
	"encoding/base64"
	"strings"
	"testing"
)

func browserAttrs() Attributes {
	return Attributes{
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64)",
		Language:          "en-US",
		ColorDepth:        24,
		DisplayWidth:      1920,
		DisplayHeight:     1080,
		TimezoneOffsetMin: -330,
		TimezoneKnown:     true,
		Platform:          "Linux x86_64",
		LogicalCPUs:       8,
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := browserAttrs()
	if Generate(a) != Generate(a) {
		t.Fatalf("same attributes must yield the same fingerprint")
	}
}

func TestGenerate_DivergesOnAnyAttribute(t *testing.T) {
	base := Generate(browserAttrs())

	mutations := []func(*Attributes){
		func(a *Attributes) { a.UserAgent = "Mozilla/5.0 (Macintosh)" },
		func(a *Attributes) { a.Language = "de-DE" },
		func(a *Attributes) { a.ColorDepth = 30 },
		func(a *Attributes) { a.DisplayWidth = 2560 },
		func(a *Attributes) { a.DisplayHeight = 1440 },
		func(a *Attributes) { a.TimezoneOffsetMin = 0 },
		func(a *Attributes) { a.Platform = "Win32" },
		func(a *Attributes) { a.LogicalCPUs = 16 },
	}
	for i, mutate := range mutations {
		a := browserAttrs()
		mutate(&a)
		if Generate(a) == base {
			t.Fatalf("mutation %d did not change the fingerprint", i)
		}
	}
}

func TestCanonical_OrderAndSentinels(t *testing.T) {
	a := Attributes{UserAgent: "ua", Language: "en"}
	got := a.Canonical()
	want := "ua|en|unknown|unknown|unknown|unknown|unknown|unknown"
	if got != want {
		t.Fatalf("canonical = %q, want %q", got, want)
	}
}

func TestCanonical_ZeroTimezoneOffsetIsNotSentinel(t *testing.T) {
	a := browserAttrs()
	a.TimezoneOffsetMin = 0 // UTC is a real offset, not an unknown.
	if !strings.Contains(a.Canonical(), "|0|") {
		t.Fatalf("UTC offset must encode as 0, got %q", a.Canonical())
	}
}

func TestGenerate_IsBase64OfCanonical(t *testing.T) {
	a := browserAttrs()
	decoded, err := base64.StdEncoding.DecodeString(Generate(a))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != a.Canonical() {
		t.Fatalf("decoded %q, want %q", decoded, a.Canonical())
	}
}

func TestCollect_StableWithinProcess(t *testing.T) {
	a := Collect()
	b := Collect()
	if Generate(a) != Generate(b) {
		t.Fatalf("Collect must be stable within a process")
	}
	if a.Platform == "" || a.UserAgent == "" {
		t.Fatalf("Collect must fill platform and user agent")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefghij", 4); got != "abcd" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("ab", 10); got != "ab" {
		t.Fatalf("Truncate short = %q", got)
	}
	if got := Truncate("ab", 0); got != "ab" {
		t.Fatalf("Truncate zero = %q", got)
	}
}
