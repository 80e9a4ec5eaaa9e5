package results

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skurup/inkwell/internal/muse"
)

func TestPrependKeepsNewestFirst(t *testing.T) {
	log := NewLog()
	first := NewFailure(muse.KindSearch, "alpha", "boom")
	second := NewRecord(muse.KindExplain, "beta", &muse.Analysis{Topic: "Beta"})
	log.Prepend(first)
	log.Prepend(second)

	all := log.All()
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID)
	require.Equal(t, first.ID, all[1].ID)
}

func TestRecordCarriesExactlyPayloadOrError(t *testing.T) {
	ok := NewRecord(muse.KindAnalyze, "span", &muse.Analysis{
		Topic:   "Attention",
		Payload: map[string]any{"detail": "deep dive"},
		Files:   []string{"attention.pdf"},
	})
	require.False(t, ok.Failed())
	require.Equal(t, "Attention", ok.Topic)
	require.Equal(t, []string{"attention.pdf"}, ok.Files)
	require.NotEmpty(t, ok.ID)

	failed := NewFailure(muse.KindAnalyze, "span", "service unreachable")
	require.True(t, failed.Failed())
	require.Nil(t, failed.Payload)
	require.Equal(t, "service unreachable", failed.Err)
	require.NotEqual(t, ok.ID, failed.ID)
}

func TestPreviewTruncatesLongText(t *testing.T) {
	short := "fits as-is"
	require.Equal(t, short, Preview(short))

	long := strings.Repeat("é", PreviewLimit+50)
	preview := Preview(long)
	runes := []rune(preview)
	require.Len(t, runes, PreviewLimit+1, "limit runes plus the ellipsis")
	require.Equal(t, '…', runes[len(runes)-1])
}

func TestDeleteOneIgnoresUnknownIDs(t *testing.T) {
	log := NewLog()
	record := NewFailure(muse.KindSearch, "x", "boom")
	log.Prepend(record)

	require.False(t, log.DeleteOne("res-ghost"))
	require.Equal(t, 1, log.Len())
	require.True(t, log.DeleteOne(record.ID))
	require.False(t, log.DeleteOne(record.ID))
	require.Zero(t, log.Len())
}

func TestClearAll(t *testing.T) {
	log := NewLog()
	log.Prepend(NewFailure(muse.KindSearch, "x", "boom"))
	log.ClearAll()
	require.Zero(t, log.Len())
	log.ClearAll()
	require.Zero(t, log.Len())
}
