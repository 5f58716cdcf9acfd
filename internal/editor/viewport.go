package editor

import "github.com/pdf-annotator/backend/internal/geom"

// Action is what a keyboard shortcut asks the surrounding application to
// do when the session cannot handle it internally.
type Action int

const (
	ActionNone Action = iota
	ActionSave
)

// Key is a normalized keyboard event.
type Key struct {
	Name string // "s", "+", "-", "0", "ArrowLeft", "ArrowRight", "Escape", ...
	Ctrl bool   // Ctrl or Cmd
}

// HandleKey applies the editor keyboard shortcuts: Ctrl/Cmd+S save now,
// Ctrl/Cmd +/-/0 zoom in/out/reset, arrow keys page navigation, Escape
// clears the selection and resets the tool to select.
func (s *Session) HandleKey(k Key) Action {
	if k.Ctrl {
		switch k.Name {
		case "s":
			return ActionSave
		case "+", "=":
			s.ZoomIn()
		case "-":
			s.ZoomOut()
		case "0":
			s.ZoomReset()
		}
		return ActionNone
	}

	switch k.Name {
	case "ArrowLeft", "ArrowUp":
		s.PrevPage()
	case "ArrowRight", "ArrowDown":
		s.NextPage()
	case "Escape":
		s.mu.Lock()
		s.selected = ""
		s.tool = ToolSelect
		s.mu.Unlock()
	}
	return ActionNone
}

// Page returns the current 1-based page index.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// PageCount returns the number of pages of the open document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// SetPage jumps to a page, clamped to [1, PageCount].
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if page > s.pageCount {
		page = s.pageCount
	}
	s.page = page
}

// NextPage advances one page if possible.
func (s *Session) NextPage() { s.SetPage(s.Page() + 1) }

// PrevPage goes back one page if possible.
func (s *Session) PrevPage() { s.SetPage(s.Page() - 1) }

// SetPageCount updates the page count once the renderer reports the real
// one, clamping the current page into the new range.
func (s *Session) SetPageCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 1 {
		n = 1
	}
	s.pageCount = n
	if s.page > n {
		s.page = n
	}
}

// Zoom returns the current zoom percentage.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform.Zoom
}

// SetZoom sets the zoom percentage, clamped to the supported range.
func (s *Session) SetZoom(z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform.Zoom = geom.ClampZoom(z)
}

// ZoomIn increases zoom by one step.
func (s *Session) ZoomIn() { s.SetZoom(s.Zoom() + geom.ZoomStep) }

// ZoomOut decreases zoom by one step.
func (s *Session) ZoomOut() { s.SetZoom(s.Zoom() - geom.ZoomStep) }

// ZoomReset returns to 100%.
func (s *Session) ZoomReset() { s.SetZoom(geom.DefaultZoom) }

// SetPan updates the viewport pan offset.
func (s *Session) SetPan(o geom.Offset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform.Pan = o
}

// Transform returns a copy of the current viewport transform. The overlay
// renderer and the input handlers share this one transform, so the place
// path and the render path can never disagree.
func (s *Session) Transform() geom.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}
