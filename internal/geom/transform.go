// Package geom converts between screen coordinates and unscaled document
// coordinates. The same transform is used when placing an annotation from a
// pointer event and when projecting a stored annotation back onto the
// viewport, so the two paths can never disagree about ordering of pan and
// scale.
package geom

// Zoom bounds, in percent.
const (
	MinZoom     = 25
	MaxZoom     = 300
	DefaultZoom = 100
	ZoomStep    = 25
)

// Point is a coordinate pair in either screen or document space.
type Point struct {
	X float64
	Y float64
}

// Offset is the current pan offset of the viewport, in screen pixels.
type Offset struct {
	X float64
	Y float64
}

// Transform captures the viewport state that maps document space onto the
// screen: the panel origin in absolute screen coordinates, the pan offset,
// and the zoom percentage.
type Transform struct {
	Origin Offset
	Pan    Offset
	Zoom   float64
}

// NewTransform returns a transform at the given zoom with origin and pan at
// zero. Zoom is clamped to [MinZoom, MaxZoom].
func NewTransform(zoom float64) Transform {
	return Transform{Zoom: ClampZoom(zoom)}
}

// scale returns the document-to-screen scale factor.
func (t Transform) scale() float64 {
	z := t.Zoom
	if z == 0 {
		z = DefaultZoom
	}
	return z / 100
}

// ScreenToDocument maps a raw pointer position into unscaled document
// coordinates: subtract the panel origin and pan offset, then divide by the
// zoom factor. Translation strictly before scaling.
func (t Transform) ScreenToDocument(p Point) Point {
	s := t.scale()
	return Point{
		X: (p.X - t.Origin.X - t.Pan.X) / s,
		Y: (p.Y - t.Origin.Y - t.Pan.Y) / s,
	}
}

// DocumentToScreen is the inverse of ScreenToDocument: scale first, then
// add pan offset and panel origin.
func (t Transform) DocumentToScreen(p Point) Point {
	s := t.scale()
	return Point{
		X: p.X*s + t.Pan.X + t.Origin.X,
		Y: p.Y*s + t.Pan.Y + t.Origin.Y,
	}
}

// ScaleLength converts a length in document units to screen pixels.
func (t Transform) ScaleLength(l float64) float64 {
	return l * t.scale()
}

// ClampZoom bounds a zoom percentage to the supported range.
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
