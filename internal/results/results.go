// Package results keeps the two per-document transcripts: the result log
// of settled analysis actions (newest first) and the chat transcript
// (oldest first). Both live only for the current session.
package results

import (
	"strings"
	"time"

	"github.com/skurup/inkwell/internal/ident"
	"github.com/skurup/inkwell/internal/muse"
)

// PreviewLimit bounds the source-text preview shown on result cards. The
// full text stays on the record.
const PreviewLimit = 240

// Record is one settled analysis action. Exactly one of Payload and Err
// is set: failures are materialized as records, never dropped. Records
// are immutable after creation.
type Record struct {
	ID         string
	Kind       muse.ActionKind
	Topic      string
	Preview    string
	SourceText string
	Payload    any
	Files      []string
	Err        string
	CreatedAt  time.Time
}

// Failed reports whether the record captures a failure settlement.
func (r Record) Failed() bool {
	return r.Err != ""
}

// NewRecord builds a success record for the given analysis.
func NewRecord(kind muse.ActionKind, sourceText string, analysis *muse.Analysis) Record {
	record := Record{
		ID:         ident.New("res"),
		Kind:       kind,
		Preview:    Preview(sourceText),
		SourceText: sourceText,
		CreatedAt:  time.Now(),
	}
	if analysis != nil {
		record.Topic = analysis.Topic
		record.Payload = analysis.Payload
		record.Files = append([]string(nil), analysis.Files...)
	}
	return record
}

// NewFailure builds a failure record carrying a human-readable message.
func NewFailure(kind muse.ActionKind, sourceText, message string) Record {
	return Record{
		ID:         ident.New("res"),
		Kind:       kind,
		Preview:    Preview(sourceText),
		SourceText: sourceText,
		Err:        message,
		CreatedAt:  time.Now(),
	}
}

// Preview truncates text to PreviewLimit runes with an ellipsis marker.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return strings.TrimSpace(string(runes[:PreviewLimit])) + "…"
}

// Log is the ordered result collection, newest first.
type Log struct {
	records []Record
}

// NewLog returns an empty result log.
func NewLog() *Log {
	return &Log{}
}

// Prepend puts a freshly settled record at the head of the log.
func (l *Log) Prepend(record Record) {
	l.records = append([]Record{record}, l.records...)
}

// DeleteOne filters out exactly the matching record, keeping the order of
// the rest. Unknown ids are a no-op.
func (l *Log) DeleteOne(id string) bool {
	for i := range l.records {
		if l.records[i].ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAll empties the log. Idempotent.
func (l *Log) ClearAll() {
	l.records = nil
}

// All returns a copy of the records, newest first.
func (l *Log) All() []Record {
	return append([]Record(nil), l.records...)
}

// Len reports the number of records.
func (l *Log) Len() int {
	return len(l.records)
}
