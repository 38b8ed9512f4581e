package watermark

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

func testAsset(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test asset: %v", err)
	}
	return buf.Bytes()
}

func TestIdentityText(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	id := Identity{
		Email:       "alice@example.com",
		Fingerprint: "a1b2c3d4e5f6g7h8",
		IP:          "203.0.113.7",
		Now:         now,
	}
	got := id.Text()
	want := "alice@example.com | 2026-08-31 | Device: a1b2c3d4e5 | IP: 203.0.113.7"
	if got != want {
		t.Fatalf("identity text:\n got %q\nwant %q", got, want)
	}
}

func TestIdentityText_UnknownFallbacks(t *testing.T) {
	got := Identity{Now: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}.Text()
	if strings.Count(got, UnknownValue) != 3 {
		t.Fatalf("missing fields must fall back to %q: %q", UnknownValue, got)
	}
	if strings.Contains(got, "| |") || strings.Contains(got, ": |") {
		t.Fatalf("empty identity slot in %q", got)
	}
}

func TestComposeJPEG(t *testing.T) {
	p := NewPipeline(Config{})
	asset := testAsset(t, 320, 200)
	id := Identity{Email: "alice@example.com", Fingerprint: "fp", IP: "1.2.3.4"}

	out, err := p.ComposeJPEG(asset, id, time.Now())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	frame, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if frame.Bounds().Dx() != 320 || frame.Bounds().Dy() != 200 {
		t.Fatalf("frame bounds: %v", frame.Bounds())
	}
}

func TestComposeJPEG_BadAsset(t *testing.T) {
	p := NewPipeline(Config{})
	if _, err := p.ComposeJPEG([]byte("not an image"), Identity{}, time.Now()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCompose_AltersFrame(t *testing.T) {
	p := NewPipeline(Config{})
	base, err := Decode(testAsset(t, 200, 120))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	frame := p.Compose(base, Identity{Email: "a@b.c", Fingerprint: "fp", IP: "ip"}, time.Now())
	if framesEqual(base, frame) {
		t.Fatal("composited frame identical to base asset")
	}
}

func TestDriftAngle_MovesBetweenFrames(t *testing.T) {
	p := NewPipeline(Config{})
	now := time.Now()

	a := p.DriftAngle(now)
	b := p.DriftAngle(now.Add(time.Second))
	if a == b {
		t.Fatalf("drift angle static across one second: %v", a)
	}

	// And the composited pixels differ, not just the reported angle.
	base, err := Decode(testAsset(t, 200, 120))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := Identity{Email: "a@b.c", Fingerprint: "fp", IP: "ip"}
	f1 := p.Compose(base, id, now)
	f2 := p.Compose(base, id, now.Add(time.Second))
	if framesEqual(f1, f2) {
		t.Fatal("frames one second apart are identical")
	}
}

func framesEqual(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	bd := a.Bounds()
	for y := bd.Min.Y; y < bd.Max.Y; y++ {
		for x := bd.Min.X; x < bd.Max.X; x++ {
			ar, ag, ab_, aa := a.At(x, y).RGBA()
			br, bg, bb, ba := b.At(x, y).RGBA()
			if ar != br || ag != bg || ab_ != bb || aa != ba {
				return false
			}
		}
	}
	return true
}
