package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/geom"
)

// Surface is one completed page raster. Surfaces are immutable once
// published; a newer render replaces the whole surface atomically so a
// late-arriving render can never tear a newer one.
type Surface struct {
	Page  int
	Zoom  float64
	Image *image.RGBA
}

// Viewer renders pages of one document. The document is loaded lazily and
// exactly once per viewer lifetime; page/zoom changes cancel the in-flight
// render for the shared surface before starting a new one.
type Viewer struct {
	open func(ctx context.Context) (DocumentSource, error)

	loadOnce sync.Once
	loadErr  error
	src      DocumentSource

	mu       sync.Mutex
	inflight context.CancelFunc
	gen      uint64

	current atomic.Pointer[Surface]

	logger *zap.Logger
}

// NewViewer creates a viewer that opens its document through the given
// open function on first use.
func NewViewer(open func(ctx context.Context) (DocumentSource, error), logger *zap.Logger) *Viewer {
	return &Viewer{open: open, logger: logger}
}

// load opens the document on first call; every later call returns the same
// source or the same error.
func (v *Viewer) load(ctx context.Context) (DocumentSource, error) {
	v.loadOnce.Do(func() {
		v.src, v.loadErr = v.open(ctx)
		if v.loadErr != nil {
			v.logger.Error("Failed to open document", zap.Error(v.loadErr))
		}
	})
	return v.src, v.loadErr
}

// PageCount loads the document if needed and returns its page count.
func (v *Viewer) PageCount(ctx context.Context) (int, error) {
	src, err := v.load(ctx)
	if err != nil {
		return 0, err
	}
	return src.NumPages(), nil
}

// RenderPage rasterizes one page at the given zoom percent into an
// offscreen surface and publishes it atomically on completion. Starting a
// new render cancels the previous in-flight one; a cancelled render
// returns context.Canceled and publishes nothing.
func (v *Viewer) RenderPage(ctx context.Context, page int, zoom float64) (*Surface, error) {
	src, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	zoom = geom.ClampZoom(zoom)

	v.mu.Lock()
	if v.inflight != nil {
		v.inflight()
	}
	renderCtx, cancel := context.WithCancel(ctx)
	v.inflight = cancel
	v.gen++
	gen := v.gen
	v.mu.Unlock()
	defer cancel()

	w, h, err := src.PageSize(page)
	if err != nil {
		return nil, err
	}

	scale := BaseScale * zoom / 100
	img := image.NewRGBA(image.Rect(0, 0,
		int(math.Ceil(w*scale)), int(math.Ceil(h*scale))))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if err := src.DrawPage(renderCtx, page, img); err != nil {
		return nil, err
	}
	if err := renderCtx.Err(); err != nil {
		return nil, err
	}

	surface := &Surface{Page: page, Zoom: zoom, Image: img}

	// Publish only if no newer render started meanwhile.
	v.mu.Lock()
	superseded := gen != v.gen
	if !superseded {
		v.current.Store(surface)
	}
	v.mu.Unlock()
	if superseded {
		return nil, context.Canceled
	}

	v.logger.Debug("Rendered page",
		zap.Int("page", page),
		zap.Float64("zoom", zoom),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return surface, nil
}

// Current returns the last completed surface, or ErrNoSurface if no render
// has finished yet.
func (v *Viewer) Current() (*Surface, error) {
	s := v.current.Load()
	if s == nil {
		return nil, ErrNoSurface
	}
	return s, nil
}

// Close cancels any in-flight render and releases the document.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.inflight != nil {
		v.inflight()
	}
	v.mu.Unlock()

	if v.src != nil {
		return v.src.Close()
	}
	return nil
}
