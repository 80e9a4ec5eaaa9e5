// Package annot holds the in-memory annotation state for the currently
// open document: the ordered store of annotation records and the
// hash-anchor bridge used to scroll back to a specific one.
package annot

import (
	"errors"
	"time"

	"github.com/skurup/inkwell/internal/ident"
	"github.com/skurup/inkwell/internal/muse"
)

// ErrNotFound is returned by mutating operations targeting an id that is
// not in the store.
var ErrNotFound = errors.New("annotation not found")

// Rect is page-relative selection geometry. The viewer produces it and the
// core passes it through untouched.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Position anchors an annotation inside the document.
type Position struct {
	Page     int    `json:"page"`
	Bounding Rect   `json:"boundingRect"`
	Rects    []Rect `json:"rects,omitempty"`
}

// Content is the captured payload of a selection: extracted text, or a
// reference to a captured image region.
type Content struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Label tags an annotation with the intent chosen for it.
type Label struct {
	Action muse.ActionKind `json:"action"`
	Glyph  string          `json:"glyph"`
}

// LabelFor builds the display label for an action kind.
func LabelFor(kind muse.ActionKind) Label {
	return Label{Action: kind, Glyph: kind.Glyph()}
}

// Annotation is one user-created marker. The ID is assigned locally at
// creation time and never changes.
type Annotation struct {
	ID        string
	Position  Position
	Content   Content
	Label     Label
	CreatedAt time.Time
}

// PositionPatch updates parts of a Position. Nil fields are left alone; a
// non-nil Rects slice replaces the previous one.
type PositionPatch struct {
	Page     *int
	Bounding *Rect
	Rects    []Rect
}

// ContentPatch updates parts of a Content. Nil fields are left alone.
type ContentPatch struct {
	Text  *string
	Image *string
}

// Phase distinguishes a store that has never been attached to a document
// from one that is attached but currently empty, so the presentation
// layer can tell "nothing loaded" apart from "cleared".
type Phase int

const (
	PhaseDetached Phase = iota
	PhaseReady
)

// Store is the ordered, newest-first collection of annotations for one
// document. It is owned by the session event loop and is not safe for
// concurrent mutation.
type Store struct {
	records  []Annotation
	phase    Phase
	onRemove func(id string)
}

// NewStore returns an empty, detached store.
func NewStore() *Store {
	return &Store{}
}

// SetRemovalHook registers fn to run for every record leaving the store,
// whether through DeleteOne or ResetAll. The anchor bridge uses this to
// drop stale anchors.
func (s *Store) SetRemovalHook(fn func(id string)) {
	s.onRemove = fn
}

// Attach marks the store as bound to a document. Records are discarded.
func (s *Store) Attach() {
	s.ResetAll()
	s.phase = PhaseReady
}

// Detach empties the store and returns it to the not-yet-loaded phase.
func (s *Store) Detach() {
	s.ResetAll()
	s.phase = PhaseDetached
}

// Phase reports whether the store is attached to a document.
func (s *Store) Phase() Phase {
	return s.phase
}

// Create stores a new annotation with a fresh id and returns it. The
// newest record sits at the front.
func (s *Store) Create(pos Position, content Content, label Label) Annotation {
	record := Annotation{
		ID:        ident.New("hl"),
		Position:  pos,
		Content:   content,
		Label:     label,
		CreatedAt: time.Now(),
	}
	s.records = append([]Annotation{record}, s.records...)
	s.phase = PhaseReady
	return record
}

// Update merges the given patches into the record's position and content.
// The id and label are untouched.
func (s *Store) Update(id string, pos *PositionPatch, content *ContentPatch) error {
	idx := s.index(id)
	if idx < 0 {
		return ErrNotFound
	}
	record := &s.records[idx]
	if pos != nil {
		if pos.Page != nil {
			record.Position.Page = *pos.Page
		}
		if pos.Bounding != nil {
			record.Position.Bounding = *pos.Bounding
		}
		if pos.Rects != nil {
			record.Position.Rects = append([]Rect(nil), pos.Rects...)
		}
	}
	if content != nil {
		if content.Text != nil {
			record.Content.Text = *content.Text
		}
		if content.Image != nil {
			record.Content.Image = *content.Image
		}
	}
	return nil
}

// Relabel replaces only the record's label, used when the user picks a new
// intent for an existing annotation.
func (s *Store) Relabel(id string, label Label) error {
	idx := s.index(id)
	if idx < 0 {
		return ErrNotFound
	}
	s.records[idx].Label = label
	return nil
}

// DeleteOne removes exactly the matching record, preserving the order of
// the rest. Deleting an unknown id is a no-op.
func (s *Store) DeleteOne(id string) bool {
	idx := s.index(id)
	if idx < 0 {
		return false
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	if s.onRemove != nil {
		s.onRemove(id)
	}
	return true
}

// ResetAll discards every record. Always succeeds, including on an empty
// store.
func (s *Store) ResetAll() {
	removed := s.records
	s.records = nil
	if s.onRemove != nil {
		for _, record := range removed {
			s.onRemove(record.ID)
		}
	}
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Annotation, bool) {
	idx := s.index(id)
	if idx < 0 {
		return Annotation{}, false
	}
	return s.records[idx], true
}

// All returns a copy of the records, newest first.
func (s *Store) All() []Annotation {
	return append([]Annotation(nil), s.records...)
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) index(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
