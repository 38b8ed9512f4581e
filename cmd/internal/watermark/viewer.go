package watermark

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"
)

// Surface receives composited frames. Implementations present only; there
// is no frame read-back path.
type Surface interface {
	Present(frame image.Image)
}

const (
	defaultFrameInterval = time.Second
	blurFactor           = 24
)

// Viewer drives a Surface with freshly composited frames on a ticker.
// While the viewer is reported hidden it presents a blurred placeholder
// instead of content. Close stops the loop and releases the ticker.
type Viewer struct {
	pipeline *Pipeline
	surface  Surface
	base     image.Image
	id       Identity
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	visible bool
	blurred image.Image // lazily built placeholder

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewViewer constructs a Viewer over a decoded asset. It does not start
// rendering; call Run.
func NewViewer(pipeline *Pipeline, surface Surface, base image.Image, id Identity, interval time.Duration, log *slog.Logger) *Viewer {
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Viewer{
		pipeline: pipeline,
		surface:  surface,
		base:     base,
		id:       id,
		interval: interval,
		log:      log.With("module", "watermark"),
		visible:  true,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run renders a frame immediately and then on every tick until the
// context ends or Close is called. It blocks.
func (v *Viewer) Run(ctx context.Context) {
	if !v.started.CompareAndSwap(false, true) {
		return
	}
	defer close(v.done)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	v.renderFrame(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.stop:
			return
		case now := <-ticker.C:
			v.renderFrame(now)
		}
	}
}

// SetVisible switches between live frames and the blurred placeholder.
// The change takes effect immediately, not on the next tick.
func (v *Viewer) SetVisible(visible bool) {
	v.mu.Lock()
	changed := v.visible != visible
	v.visible = visible
	v.mu.Unlock()
	if changed {
		v.renderFrame(time.Now())
	}
}

// Close stops the render loop and waits for it to exit. Safe to call more
// than once; a viewer closed before Run will exit Run immediately.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() { close(v.stop) })
	if v.started.Load() {
		<-v.done
	}
}

func (v *Viewer) renderFrame(now time.Time) {
	v.mu.Lock()
	visible := v.visible
	v.mu.Unlock()

	if !visible {
		v.surface.Present(v.placeholder())
		return
	}
	v.surface.Present(v.pipeline.Compose(v.base, v.id, now))
}

// placeholder builds (once) a heavily blurred copy of the base asset by
// downscaling and re-upscaling it. Content stays unreadable while the
// viewer is hidden.
func (v *Viewer) placeholder() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.blurred != nil {
		return v.blurred
	}

	b := v.base.Bounds()
	smallW := max(1, b.Dx()/blurFactor)
	smallH := max(1, b.Dy()/blurFactor)

	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), v.base, b, xdraw.Over, nil)

	big := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.ApproxBiLinear.Scale(big, big.Bounds(), small, small.Bounds(), xdraw.Over, nil)

	v.blurred = big
	return big
}
