// Package editor holds the client-side editing state for one open document:
// the in-memory annotation collection, the active tool, the exclusive
// selection, the freehand drawing state machine and the viewport transform.
package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/geom"
	"github.com/pdf-annotator/backend/internal/models"
)

// Tool is the active tool mode. It determines what a canvas click creates
// next and is independent of the selection state.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolHighlight Tool = "highlight"
	ToolComment   Tool = "comment"
	ToolText      Tool = "text"
	ToolDraw      Tool = "draw"
	ToolShape     Tool = "shape"
	ToolImage     Tool = "image"
)

// ClickOptions carries tool-specific input that does not come from the
// pointer itself: comment/text content and the image reference.
type ClickOptions struct {
	Content  string
	ImageURL string
}

// Session owns the annotation collection of the currently open document.
// Each open document has exactly one session; no two sessions share state.
// All mutations are serialized by an internal mutex.
type Session struct {
	mu sync.Mutex

	fileID    string
	pageCount int
	page      int
	transform geom.Transform

	tool     Tool
	selected string

	// Insertion-ordered collection plus an id index.
	order []string
	byID  map[string]*models.Annotation

	dirty bool
	rev   uint64

	// Drawing state machine: idle (drawing=false) or dragging.
	drawing bool
	stroke  []models.Point

	logger *zap.Logger
}

// NewSession creates a session for one open document, seeded with the
// annotations previously loaded from the backend. Seeded records do not
// mark the session dirty.
func NewSession(fileID string, pageCount int, existing []models.Annotation, logger *zap.Logger) *Session {
	if pageCount < 1 {
		pageCount = 1
	}
	s := &Session{
		fileID:    fileID,
		pageCount: pageCount,
		page:      1,
		transform: geom.NewTransform(geom.DefaultZoom),
		tool:      ToolSelect,
		byID:      make(map[string]*models.Annotation),
		logger:    logger,
	}
	for i := range existing {
		a := existing[i]
		s.order = append(s.order, a.ID)
		s.byID[a.ID] = &a
	}
	return s
}

// FileID returns the id of the open document.
func (s *Session) FileID() string { return s.fileID }

// Add assigns an id and timestamps to the record, validates it, appends it
// to the collection and marks the session dirty.
func (s *Session) Add(a models.Annotation) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(a)
}

func (s *Session) addLocked(a models.Annotation) (models.Annotation, error) {
	now := time.Now().UTC()
	a.ID = uuid.New().String()
	a.FileID = s.fileID
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := a.Validate(); err != nil {
		return models.Annotation{}, err
	}

	s.order = append(s.order, a.ID)
	s.byID[a.ID] = &a
	s.markDirtyLocked()

	s.logger.Debug("Added annotation",
		zap.String("id", a.ID),
		zap.String("type", string(a.Type)),
		zap.Int("page", a.Page),
	)
	return a, nil
}

// Update merges partial fields into an existing annotation and refreshes
// its UpdatedAt. Unknown ids are an explicit error, never a silent no-op.
func (s *Session) Update(id string, u models.AnnotationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update annotation %s: %w", id, models.ErrNotFound)
	}
	u.Apply(a)
	s.markDirtyLocked()
	return nil
}

// Remove deletes an annotation. If it was selected, the selection is
// cleared. Removing an unknown id is an error.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("remove annotation %s: %w", id, models.ErrNotFound)
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
	s.markDirtyLocked()
	return nil
}

// Clear removes every annotation on the given page; page 0 clears the
// whole document.
func (s *Session) Clear(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		a := s.byID[id]
		if page != 0 && a.Page != page {
			kept = append(kept, id)
			continue
		}
		delete(s.byID, id)
		if s.selected == id {
			s.selected = ""
		}
		s.markDirtyLocked()
	}
	s.order = kept
}

// ByPage returns the annotations on a page in insertion order.
func (s *Session) ByPage(page int) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Annotation
	for _, id := range s.order {
		if a := s.byID[id]; a.Page == page {
			out = append(out, *a)
		}
	}
	return out
}

// Snapshot returns a copy of the full collection in insertion order,
// together with the revision the copy was taken at.
func (s *Session) Snapshot() ([]models.Annotation, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Annotation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out, s.rev
}

// Get returns a copy of one annotation.
func (s *Session) Get(id string) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Annotation{}, fmt.Errorf("annotation %s: %w", id, models.ErrNotFound)
	}
	return *a, nil
}

// Len reports the number of annotations in the collection.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Dirty reports whether there are unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved clears the dirty flag after a successful save of the snapshot
// taken at rev. Edits made while the save was in flight keep the session
// dirty.
func (s *Session) MarkSaved(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rev == rev {
		s.dirty = false
	}
}

func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.rev++
}

// Select makes the given annotation the single selected one. At most one
// annotation is selected at a time.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("select annotation %s: %w", id, models.ErrNotFound)
	}
	s.selected = id
	return nil
}

// ClearSelection deselects whatever is selected.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// Selected returns the selected annotation id, or "" if none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetTool switches the tool mode. Switching tools does not touch the
// selection; only Escape or an empty-canvas click in select mode does.
func (s *Session) SetTool(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tool = t
}

// Tool returns the active tool mode.
func (s *Session) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}
