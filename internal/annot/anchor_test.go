package annot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skurup/inkwell/internal/muse"
)

func TestFragmentRoundTrip(t *testing.T) {
	id := "hl-7-abc123"
	fragment := Fragment(id)
	require.Equal(t, "highlight-hl-7-abc123", fragment)

	parsed, ok := ParseFragment(fragment)
	require.True(t, ok)
	require.Equal(t, id, parsed)

	parsed, ok = ParseFragment("#" + fragment)
	require.True(t, ok)
	require.Equal(t, id, parsed)
}

func TestParseFragmentRejectsOtherShapes(t *testing.T) {
	for _, fragment := range []string{"", "#", "highlight-", "section-2", "hl-7"} {
		if _, ok := ParseFragment(fragment); ok {
			t.Fatalf("fragment %q should not parse", fragment)
		}
	}
}

func TestActivateAndNavigate(t *testing.T) {
	store := NewStore()
	var scrolled []string
	bridge := NewAnchorBridge(store, func(record Annotation) {
		scrolled = append(scrolled, record.ID)
	})

	record := store.Create(Position{Page: 2}, Content{Text: "span"}, LabelFor(muse.KindExplain))

	fragment := bridge.Activate(record.ID)
	require.Equal(t, Fragment(record.ID), fragment)
	require.Equal(t, record.ID, bridge.Active())

	bridge.Clear()
	require.Empty(t, bridge.Active())

	require.True(t, bridge.Navigate(fragment))
	require.Equal(t, record.ID, bridge.Active())
	require.Equal(t, []string{record.ID}, scrolled)
}

func TestNavigateUnknownIDIsSilent(t *testing.T) {
	store := NewStore()
	scrolls := 0
	bridge := NewAnchorBridge(store, func(Annotation) { scrolls++ })

	require.False(t, bridge.Navigate("highlight-hl-ghost"))
	require.Empty(t, bridge.Active())
	require.Zero(t, scrolls)
}

func TestActivateUnknownIDClearsTheAnchor(t *testing.T) {
	store := NewStore()
	bridge := NewAnchorBridge(store, nil)
	record := store.Create(Position{}, Content{}, LabelFor(muse.KindHighlight))

	bridge.Activate(record.ID)
	require.Equal(t, record.ID, bridge.Active())
	require.Empty(t, bridge.Activate("hl-ghost"))
	require.Empty(t, bridge.Active())
}

func TestDeletingTheAnchoredAnnotationClearsTheAnchor(t *testing.T) {
	store := NewStore()
	bridge := NewAnchorBridge(store, nil)

	kept := store.Create(Position{}, Content{Text: "kept"}, LabelFor(muse.KindHighlight))
	doomed := store.Create(Position{}, Content{Text: "doomed"}, LabelFor(muse.KindHighlight))

	bridge.Activate(doomed.ID)
	store.DeleteOne(doomed.ID)
	require.Empty(t, bridge.Active(), "anchor must not outlive its annotation")

	bridge.Activate(kept.ID)
	store.DeleteOne(doomed.ID)
	require.Equal(t, kept.ID, bridge.Active(), "unrelated deletes leave the anchor alone")

	store.ResetAll()
	require.Empty(t, bridge.Active())
}
