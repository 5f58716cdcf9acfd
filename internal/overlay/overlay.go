// Package overlay projects the annotations of the current page onto the
// viewport. Each annotation type has its own drawing strategy; all of them
// go through the one canonical transform, so a stored annotation lands on
// exactly the screen position it was created at.
package overlay

import (
	"github.com/pdf-annotator/backend/internal/geom"
	"github.com/pdf-annotator/backend/internal/models"
)

// ElementKind tells the drawing surface how to paint an element.
type ElementKind string

const (
	KindRect     ElementKind = "rect"     // filled rectangle (highlight)
	KindMarker   ElementKind = "marker"   // circular comment marker
	KindText     ElementKind = "text"     // inline text
	KindOutline  ElementKind = "outline"  // outlined rectangle (shape)
	KindPolyline ElementKind = "polyline" // freehand stroke
	KindImage    ElementKind = "image"    // bounded image reference
)

// commentMarkerSize is the screen-pixel diameter of a comment marker; the
// marker does not scale with zoom.
const commentMarkerSize = 32

// Element is one positioned visual produced for an annotation, in screen
// coordinates at the current zoom.
type Element struct {
	AnnotationID string
	Kind         ElementKind
	X, Y         float64
	Width        float64
	Height       float64
	Color        string
	Opacity      float64
	StrokeWidth  float64
	FontSize     float64
	FontFamily   string
	Text         string
	ImageURL     string
	Points       []geom.Point
	Selected     bool
}

// Render builds the overlay for one page. Annotations belonging to other
// pages produce nothing; drawings with fewer than two points produce
// nothing. selected flags at most one element.
func Render(annotations []models.Annotation, page int, tr geom.Transform, selected string) []Element {
	var out []Element
	for i := range annotations {
		a := &annotations[i]
		if a.Page != page {
			continue
		}
		if el, ok := renderOne(a, tr); ok {
			el.Selected = a.ID == selected
			out = append(out, el)
		}
	}
	return out
}

func renderOne(a *models.Annotation, tr geom.Transform) (Element, bool) {
	pos := tr.DocumentToScreen(geom.Point{X: a.X, Y: a.Y})
	el := Element{
		AnnotationID: a.ID,
		X:            pos.X,
		Y:            pos.Y,
		Color:        a.Color,
		Opacity:      a.EffectiveOpacity(),
	}

	switch a.Type {
	case models.TypeHighlight:
		el.Kind = KindRect
		el.Width = tr.ScaleLength(a.Width)
		el.Height = tr.ScaleLength(a.Height)

	case models.TypeComment:
		el.Kind = KindMarker
		el.Width = commentMarkerSize
		el.Height = commentMarkerSize
		el.Text = a.Content

	case models.TypeText:
		el.Kind = KindText
		el.Text = a.Content
		el.FontSize = tr.ScaleLength(defaultFloat(a.FontSize, 16))
		el.FontFamily = defaultString(a.FontFamily, "Arial")

	case models.TypeShape:
		el.Kind = KindOutline
		el.Width = tr.ScaleLength(a.Width)
		el.Height = tr.ScaleLength(a.Height)
		el.StrokeWidth = tr.ScaleLength(defaultFloat(a.StrokeWidth, 2))

	case models.TypeDrawing:
		if len(a.Points) < models.MinDrawingPoints {
			return Element{}, false
		}
		el.Kind = KindPolyline
		el.StrokeWidth = defaultFloat(a.StrokeWidth, 2)
		el.Points = make([]geom.Point, len(a.Points))
		for i, p := range a.Points {
			el.Points[i] = tr.DocumentToScreen(geom.Point{X: p.X, Y: p.Y})
		}

	case models.TypeImage:
		el.Kind = KindImage
		el.Width = tr.ScaleLength(a.Width)
		el.Height = tr.ScaleLength(a.Height)
		el.ImageURL = a.ImageURL

	default:
		return Element{}, false
	}
	return el, true
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
