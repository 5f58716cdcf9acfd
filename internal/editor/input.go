package editor

import (
	"github.com/pdf-annotator/backend/internal/geom"
	"github.com/pdf-annotator/backend/internal/models"
)

// Per-tool creation defaults, matching the toolbar presets.
const (
	highlightColor = "#fbbf24"
	commentColor   = "#3b82f6"
	textColor      = "#000000"
	shapeColor     = "#ef4444"
	drawColor      = "#ef4444"
	imageColor     = "#3b82f6"
)

// Click handles a pointer click on empty canvas. In select mode it clears
// the selection. With a creation tool active it creates one annotation of
// that type at the click's document-space position and leaves the tool
// active, so repeated clicks create repeatedly without re-selecting the
// tool. Comment and text creation require opts.Content and are skipped
// without it (the user cancelled the prompt); image creation requires
// opts.ImageURL. The draw tool does not react to plain clicks.
func (s *Session) Click(screen geom.Point, opts ClickOptions) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.transform.ScreenToDocument(screen)

	var a models.Annotation
	switch s.tool {
	case ToolSelect:
		s.selected = ""
		return nil, nil
	case ToolDraw:
		return nil, nil
	case ToolHighlight:
		a = models.Annotation{
			Type: models.TypeHighlight, Page: s.page, X: doc.X, Y: doc.Y,
			Width: 150, Height: 20, Color: highlightColor, Opacity: 0.6,
		}
	case ToolComment:
		if opts.Content == "" {
			return nil, nil
		}
		a = models.Annotation{
			Type: models.TypeComment, Page: s.page, X: doc.X, Y: doc.Y,
			Width: 32, Height: 32, Color: commentColor, Content: opts.Content, Opacity: 1,
		}
	case ToolText:
		if opts.Content == "" {
			return nil, nil
		}
		a = models.Annotation{
			Type: models.TypeText, Page: s.page, X: doc.X, Y: doc.Y,
			Color: textColor, Content: opts.Content,
			FontSize: 16, FontFamily: "Arial", Opacity: 1,
		}
	case ToolShape:
		a = models.Annotation{
			Type: models.TypeShape, Page: s.page, X: doc.X, Y: doc.Y,
			Width: 100, Height: 100, Color: shapeColor, Opacity: 0.8, StrokeWidth: 2,
		}
	case ToolImage:
		if opts.ImageURL == "" {
			return nil, nil
		}
		a = models.Annotation{
			Type: models.TypeImage, Page: s.page, X: doc.X, Y: doc.Y,
			Width: 200, Height: 150, Color: imageColor, ImageURL: opts.ImageURL, Opacity: 1,
		}
	default:
		return nil, nil
	}

	created, err := s.addLocked(a)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// PointerDown starts a freehand stroke when the draw tool is active:
// idle -> dragging, capturing the first point.
func (s *Session) PointerDown(screen geom.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tool != ToolDraw {
		return
	}
	doc := s.transform.ScreenToDocument(screen)
	s.drawing = true
	s.stroke = []models.Point{{X: doc.X, Y: doc.Y}}
}

// PointerMove appends a point to the active stroke; dragging -> dragging.
func (s *Session) PointerMove(screen geom.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.drawing {
		return
	}
	doc := s.transform.ScreenToDocument(screen)
	s.stroke = append(s.stroke, models.Point{X: doc.X, Y: doc.Y})
}

// PointerUp ends the stroke; dragging -> idle. A stroke of at least two
// points commits exactly one drawing annotation anchored at the stroke's
// top-left extremum; a shorter stroke commits nothing.
func (s *Session) PointerUp() (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.drawing {
		return nil, nil
	}
	stroke := s.stroke
	s.drawing = false
	s.stroke = nil

	if len(stroke) < models.MinDrawingPoints {
		return nil, nil
	}

	minX, minY := stroke[0].X, stroke[0].Y
	for _, p := range stroke[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
	}

	created, err := s.addLocked(models.Annotation{
		Type: models.TypeDrawing, Page: s.page, X: minX, Y: minY,
		Color: drawColor, Opacity: 1, StrokeWidth: 3, Points: stroke,
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// StrokeLen reports how many points the in-progress stroke has captured.
func (s *Session) StrokeLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stroke)
}
