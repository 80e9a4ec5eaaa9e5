package annot

import "strings"

// FragmentPrefix is the fixed shape of a navigation fragment referencing
// an annotation: "highlight-<id>".
const FragmentPrefix = "highlight-"

// Fragment encodes an annotation id as a navigation fragment.
func Fragment(id string) string {
	return FragmentPrefix + id
}

// ParseFragment extracts the annotation id from a fragment. A leading '#'
// is tolerated. Returns false for fragments of any other shape.
func ParseFragment(fragment string) (string, bool) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if !strings.HasPrefix(fragment, FragmentPrefix) {
		return "", false
	}
	id := fragment[len(FragmentPrefix):]
	if id == "" {
		return "", false
	}
	return id, true
}

// AnchorBridge tracks which annotation the navigation fragment currently
// references and resolves externally written fragments back to records.
// It registers itself as the store's removal hook so the anchor can never
// outlive its annotation.
type AnchorBridge struct {
	store    *Store
	active   string
	scrollTo func(Annotation)
}

// NewAnchorBridge wires a bridge to the store. scrollTo is invoked when an
// external navigation resolves to a stored annotation; it may be nil.
func NewAnchorBridge(store *Store, scrollTo func(Annotation)) *AnchorBridge {
	bridge := &AnchorBridge{store: store, scrollTo: scrollTo}
	store.SetRemovalHook(bridge.Forget)
	return bridge
}

// Activate points the anchor at the given annotation and returns the
// fragment to publish. Unknown ids clear the anchor and return "".
func (b *AnchorBridge) Activate(id string) string {
	if _, ok := b.store.Get(id); !ok {
		b.active = ""
		return ""
	}
	b.active = id
	return Fragment(id)
}

// Active returns the id the anchor currently references, or "".
func (b *AnchorBridge) Active() string {
	return b.active
}

// Clear empties the anchor.
func (b *AnchorBridge) Clear() {
	b.active = ""
}

// Forget clears the anchor only when it references the given id.
func (b *AnchorBridge) Forget(id string) {
	if b.active == id {
		b.active = ""
	}
}

// Navigate handles an externally written fragment. When it resolves to a
// stored annotation the anchor moves there and the scroll callback fires.
// Fragments that parse but match nothing are a silent no-op; they may
// reference an annotation from another session.
func (b *AnchorBridge) Navigate(fragment string) bool {
	id, ok := ParseFragment(fragment)
	if !ok {
		return false
	}
	record, ok := b.store.Get(id)
	if !ok {
		return false
	}
	b.active = id
	if b.scrollTo != nil {
		b.scrollTo(record)
	}
	return true
}
