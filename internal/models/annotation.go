// Package models contains the data models for the application.
package models

import (
	"fmt"
	"time"
)

// AnnotationType is the closed set of annotation kinds the editor supports.
type AnnotationType string

const (
	TypeHighlight AnnotationType = "highlight"
	TypeComment   AnnotationType = "comment"
	TypeDrawing   AnnotationType = "drawing"
	TypeText      AnnotationType = "text"
	TypeShape     AnnotationType = "shape"
	TypeImage     AnnotationType = "image"
)

// Valid reports whether t is one of the known annotation types.
func (t AnnotationType) Valid() bool {
	switch t {
	case TypeHighlight, TypeComment, TypeDrawing, TypeText, TypeShape, TypeImage:
		return true
	}
	return false
}

// Point is a single document-space sample of a freehand stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MinDrawingPoints is the smallest number of stroke samples that renders a
// visible drawing. Drags that capture fewer points are discarded.
const MinDrawingPoints = 2

// Annotation is a positioned, styled mark on one page of one document.
// X and Y are top-left position in unscaled document coordinates, i.e. the
// coordinates at 100% zoom with zero pan offset. Which optional fields are
// meaningful depends on Type; Validate enforces the pairing.
type Annotation struct {
	ID          string         `json:"id"`
	FileID      string         `json:"fileId,omitempty"`
	Type        AnnotationType `json:"type"`
	Page        int            `json:"page"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Width       float64        `json:"width,omitempty"`
	Height      float64        `json:"height,omitempty"`
	Color       string         `json:"color"`
	Content     string         `json:"content,omitempty"`
	FontSize    float64        `json:"fontSize,omitempty"`
	FontFamily  string         `json:"fontFamily,omitempty"`
	Opacity     float64        `json:"opacity,omitempty"`
	StrokeWidth float64        `json:"strokeWidth,omitempty"`
	Points      []Point        `json:"points,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Validate checks the invariants that hold for every persisted annotation.
func (a *Annotation) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown annotation type %q", ErrInvalidAnnotation, a.Type)
	}
	if a.Page < 1 {
		return fmt.Errorf("%w: page must be 1-based, got %d", ErrInvalidAnnotation, a.Page)
	}
	if a.Color == "" {
		return fmt.Errorf("%w: color is required", ErrInvalidAnnotation)
	}
	if a.Opacity < 0 || a.Opacity > 1 {
		return fmt.Errorf("%w: opacity %v outside [0,1]", ErrInvalidAnnotation, a.Opacity)
	}
	switch a.Type {
	case TypeDrawing:
		if len(a.Points) < MinDrawingPoints {
			return fmt.Errorf("%w: drawing needs at least %d points, got %d",
				ErrInvalidAnnotation, MinDrawingPoints, len(a.Points))
		}
	case TypeComment, TypeText:
		if a.Content == "" {
			return fmt.Errorf("%w: %s requires content", ErrInvalidAnnotation, a.Type)
		}
	case TypeImage:
		if a.ImageURL == "" {
			return fmt.Errorf("%w: image requires imageUrl", ErrInvalidAnnotation)
		}
		fallthrough
	case TypeHighlight, TypeShape:
		if a.Width <= 0 || a.Height <= 0 {
			return fmt.Errorf("%w: %s requires positive width and height", ErrInvalidAnnotation, a.Type)
		}
	}
	return nil
}

// EffectiveOpacity returns the rendering alpha, defaulting to fully opaque.
func (a *Annotation) EffectiveOpacity() float64 {
	if a.Opacity == 0 {
		return 1
	}
	return a.Opacity
}

// AnnotationUpdate carries a partial set of mutable annotation fields.
// Nil pointers leave the corresponding field untouched.
type AnnotationUpdate struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Content     *string  `json:"content,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontFamily  *string  `json:"fontFamily,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Points      []Point  `json:"points,omitempty"`
}

// Apply merges the update into a and refreshes UpdatedAt.
func (u *AnnotationUpdate) Apply(a *Annotation) {
	if u.X != nil {
		a.X = *u.X
	}
	if u.Y != nil {
		a.Y = *u.Y
	}
	if u.Width != nil {
		a.Width = *u.Width
	}
	if u.Height != nil {
		a.Height = *u.Height
	}
	if u.Color != nil {
		a.Color = *u.Color
	}
	if u.Content != nil {
		a.Content = *u.Content
	}
	if u.FontSize != nil {
		a.FontSize = *u.FontSize
	}
	if u.FontFamily != nil {
		a.FontFamily = *u.FontFamily
	}
	if u.Opacity != nil {
		a.Opacity = *u.Opacity
	}
	if u.StrokeWidth != nil {
		a.StrokeWidth = *u.StrokeWidth
	}
	if u.Points != nil {
		a.Points = u.Points
	}
	a.UpdatedAt = time.Now().UTC()
}

// SaveAnnotationsRequest is the body of POST /api/files/:id/annotations.
// The provided set replaces the stored set wholesale.
type SaveAnnotationsRequest struct {
	Annotations []Annotation `json:"annotations"`
}

// AnnotationsResponse wraps the annotation list in the API response.
type AnnotationsResponse struct {
	Success     bool         `json:"success"`
	Annotations []Annotation `json:"annotations"`
}

// SaveResponse acknowledges a completed full-replace save.
type SaveResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
