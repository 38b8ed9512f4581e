package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"time"

	"github.com/fogleman/gg"
)

const (
	gridCols = 5
	gridRows = 3

	tileAngleDeg = -45

	// Drift rate of the second overlay. One full turn every five minutes
	// keeps consecutive frames visibly distinct without being distracting.
	driftDegPerSec = 1.2

	noticeText = "PROTECTED CONTENT"

	jpegQuality = 85
)

// Config tunes the compositor. Zero values take the defaults above.
type Config struct {
	TileAlpha   float64 // identity grid opacity, default 0.14
	DriftAlpha  float64 // moving overlay opacity, default 0.08
	NoticeAlpha float64 // notice box opacity, default 0.55
}

func (c Config) withDefaults() Config {
	if c.TileAlpha <= 0 {
		c.TileAlpha = 0.14
	}
	if c.DriftAlpha <= 0 {
		c.DriftAlpha = 0.08
	}
	if c.NoticeAlpha <= 0 {
		c.NoticeAlpha = 0.55
	}
	return c
}

// Pipeline composites identity overlays onto content frames.
type Pipeline struct {
	cfg   Config
	epoch time.Time
}

// NewPipeline constructs a Pipeline. The epoch anchors the drifting
// overlay's rotation so angle is a pure function of wall time.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults(), epoch: time.Unix(0, 0)}
}

// Decode parses a JPEG or PNG asset.
func Decode(asset []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(asset))
	if err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	return img, nil
}

// Compose renders one watermarked frame: the base image, the tiled
// identity grid, the drifting overlay for the given instant, and the
// notice box. The base image is not modified.
func (p *Pipeline) Compose(base image.Image, id Identity, now time.Time) image.Image {
	dc := gg.NewContextForImage(base)
	w := float64(dc.Width())
	h := float64(dc.Height())
	line := id.Text()

	p.drawIdentityGrid(dc, line, w, h)
	p.drawDriftOverlay(dc, line, w, h, now)
	p.drawNotice(dc, w, h)

	return dc.Image()
}

// ComposeJPEG is Compose plus JPEG encoding, the shape the delivery
// handler wants.
func (p *Pipeline) ComposeJPEG(asset []byte, id Identity, now time.Time) ([]byte, error) {
	base, err := Decode(asset)
	if err != nil {
		return nil, err
	}
	frame := p.Compose(base, id, now)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DriftAngle returns the second overlay's rotation in degrees at the given
// instant. Exposed so tests can assert two instants produce distinct
// angles.
func (p *Pipeline) DriftAngle(now time.Time) float64 {
	elapsed := now.Sub(p.epoch).Seconds()
	return math.Mod(elapsed*driftDegPerSec, 360)
}

// drawIdentityGrid tiles the identity line across a 5x3 grid at a fixed
// diagonal, so any crop of the frame still contains at least one full or
// partial identity line.
func (p *Pipeline) drawIdentityGrid(dc *gg.Context, line string, w, h float64) {
	dc.SetRGBA(1, 1, 1, p.cfg.TileAlpha)
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			x := (float64(col) + 0.5) * w / gridCols
			y := (float64(row) + 0.5) * h / gridRows
			dc.Push()
			dc.RotateAbout(gg.Radians(tileAngleDeg), x, y)
			dc.DrawStringAnchored(line, x, y, 0.5, 0.5)
			dc.Pop()
		}
	}
}

// drawDriftOverlay paints one large identity line through the frame
// center at a time-varying angle. Because the angle moves, a screen
// recording cannot be cleaned with a single static mask.
func (p *Pipeline) drawDriftOverlay(dc *gg.Context, line string, w, h float64, now time.Time) {
	dc.SetRGBA(1, 1, 1, p.cfg.DriftAlpha)
	cx, cy := w/2, h/2
	dc.Push()
	dc.RotateAbout(gg.Radians(p.DriftAngle(now)), cx, cy)
	spread := math.Max(w, h) / 4
	for _, off := range []float64{-spread, 0, spread} {
		dc.DrawStringAnchored(line, cx, cy+off, 0.5, 0.5)
	}
	dc.Pop()
}

// drawNotice paints the single higher-opacity notice box at the bottom
// edge.
func (p *Pipeline) drawNotice(dc *gg.Context, w, h float64) {
	tw, th := dc.MeasureString(noticeText)
	padX, padY := 12.0, 8.0
	bw, bh := tw+2*padX, th+2*padY
	x := (w - bw) / 2
	y := h - bh - 16

	dc.SetRGBA(0, 0, 0, p.cfg.NoticeAlpha)
	dc.DrawRectangle(x, y, bw, bh)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, p.cfg.NoticeAlpha)
	dc.DrawStringAnchored(noticeText, x+bw/2, y+bh/2, 0.5, 0.5)
}
