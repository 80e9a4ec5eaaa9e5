package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/skurup/inkwell/internal/annot"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/results"
)

type fakeClient struct {
	analyzeFn func(kind muse.ActionKind, target muse.Target) (*muse.Analysis, error)
	askFn     func(question string) (string, error)
	analyzed  []muse.ActionKind
}

func (f *fakeClient) ListDocuments(context.Context) ([]muse.Document, error) {
	return nil, nil
}

func (f *fakeClient) Upload(_ context.Context, filename string, _ []byte) (muse.Document, error) {
	return muse.Document{Filename: filename, Type: "pdf"}, nil
}

func (f *fakeClient) Analyze(_ context.Context, kind muse.ActionKind, target muse.Target) (*muse.Analysis, error) {
	f.analyzed = append(f.analyzed, kind)
	if f.analyzeFn == nil {
		return &muse.Analysis{}, nil
	}
	return f.analyzeFn(kind, target)
}

func (f *fakeClient) Ask(_ context.Context, question string) (string, error) {
	if f.askFn == nil {
		return "answer", nil
	}
	return f.askFn(question)
}

func (f *fakeClient) FileURL(filename string) string { return "http://fake/files/" + filename }

func (f *fakeClient) Name() string { return "fake" }

func newTestSession(fake *fakeClient) *Session {
	s := New(fake, nil)
	s.SelectDocument(muse.Document{Filename: "attention.pdf", Type: "pdf"})
	return s
}

func TestSearchActionSettlesIntoHeadRecord(t *testing.T) {
	fake := &fakeClient{
		analyzeFn: func(kind muse.ActionKind, target muse.Target) (*muse.Analysis, error) {
			if kind != muse.KindSearch || target.Text != "Transformer architecture" {
				t.Errorf("unexpected call %q %+v", kind, target)
			}
			return &muse.Analysis{
				Topic:   "Transformers",
				Payload: map[string]any{"sources_found": "12 relevant pages"},
				Files:   []string{"attention.pdf"},
			}, nil
		},
	}
	s := newTestSession(fake)

	pending, err := s.BeginAction(muse.KindSearch, muse.Target{Text: "Transformer architecture"})
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	if !s.Busy() {
		t.Fatal("session must be busy while the action is in flight")
	}

	record := s.Settle(pending.Run(context.Background()))
	if s.Busy() {
		t.Fatal("settle must drop the busy gate")
	}
	if record.Failed() {
		t.Fatalf("unexpected failure record: %s", record.Err)
	}
	if record.Kind != muse.KindSearch || record.Topic != "Transformers" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Preview != "Transformer architecture" {
		t.Fatalf("preview = %q", record.Preview)
	}

	head := s.Results()
	if len(head) != 1 || head[0].ID != record.ID {
		t.Fatalf("record must sit at the head of the log, got %+v", head)
	}
}

func TestFailureSettlesAsVisibleRecord(t *testing.T) {
	fake := &fakeClient{
		analyzeFn: func(muse.ActionKind, muse.Target) (*muse.Analysis, error) {
			return nil, &muse.APIError{Status: 500, Message: "model overloaded"}
		},
	}
	s := newTestSession(fake)

	pending, err := s.BeginAction(muse.KindExplain, muse.Target{Text: "span"})
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	record := s.Settle(pending.Run(context.Background()))

	if !record.Failed() {
		t.Fatal("expected a failure record")
	}
	if record.Err != "model overloaded" {
		t.Fatalf("failure must carry the server message, got %q", record.Err)
	}
	if s.Busy() {
		t.Fatal("busy gate must drop after a failure settlement")
	}
	if len(s.Results()) != 1 {
		t.Fatal("failures are materialized, never dropped")
	}
}

func TestFailureMessageShapes(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&muse.APIError{Status: 503}, "analysis service returned status 503"},
		{fmt.Errorf("%w: no flow", muse.ErrMissingFlow), "unexpected response from analysis service:"},
		{errors.New("dial tcp: connection refused"), "analysis service unreachable:"},
	}
	for _, tc := range cases {
		got := failureMessage(tc.err)
		if !strings.HasPrefix(got, tc.want) {
			t.Fatalf("failureMessage(%v) = %q, want prefix %q", tc.err, got, tc.want)
		}
	}
}

func TestBeginActionValidation(t *testing.T) {
	fake := &fakeClient{}
	s := newTestSession(fake)

	if _, err := s.BeginAction(muse.KindSearch, muse.Target{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("empty target: got %v", err)
	}
	if _, err := s.BeginAction(muse.KindHighlight, muse.Target{Text: "span"}); err == nil {
		t.Fatal("highlight must never dispatch")
	}
	if s.Busy() {
		t.Fatal("rejected dispatches must not raise the busy gate")
	}
	if len(fake.analyzed) != 0 {
		t.Fatal("rejected dispatches must not reach the client")
	}
	if len(s.Results()) != 0 {
		t.Fatal("synchronous rejections never become records")
	}
}

func TestSingleFlightGate(t *testing.T) {
	fake := &fakeClient{}
	s := newTestSession(fake)

	pending, err := s.BeginAction(muse.KindSearch, muse.Target{Text: "first"})
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	if _, err := s.BeginAction(muse.KindExplain, muse.Target{Text: "second"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := s.BeginChat("question"); !errors.Is(err, ErrBusy) {
		t.Fatalf("chat shares the gate, got %v", err)
	}

	s.Settle(pending.Run(context.Background()))
	if _, err := s.BeginAction(muse.KindExplain, muse.Target{Text: "second"}); err != nil {
		t.Fatalf("gate must reopen after settlement: %v", err)
	}
}

func TestAnnotationsStayResponsiveWhileBusy(t *testing.T) {
	s := newTestSession(&fakeClient{})

	if _, err := s.BeginAction(muse.KindSearch, muse.Target{Text: "span"}); err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	record := s.CreateAnnotation(annot.Position{Page: 1}, annot.Content{Text: "local"}, muse.KindHighlight)
	if len(s.Annotations()) != 1 {
		t.Fatal("annotation creation must work while an action is in flight")
	}
	if !s.DeleteAnnotation(record.ID) {
		t.Fatal("annotation deletion must work while an action is in flight")
	}
}

func TestLateSettlementAfterDocumentSwitchStillLands(t *testing.T) {
	s := newTestSession(&fakeClient{
		analyzeFn: func(muse.ActionKind, muse.Target) (*muse.Analysis, error) {
			return &muse.Analysis{Topic: "Late"}, nil
		},
	})
	s.CreateAnnotation(annot.Position{Page: 1}, annot.Content{Text: "span"}, muse.KindSearch)

	pending, err := s.BeginAction(muse.KindSearch, muse.Target{Text: "span"})
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	outcome := pending.Run(context.Background())

	s.SelectDocument(muse.Document{Filename: "bert.pdf", Type: "pdf"})
	if len(s.Annotations()) != 0 || len(s.Results()) != 0 {
		t.Fatal("document switch must clear annotations and results")
	}
	if s.SelectedText() != "" {
		t.Fatal("document switch must clear the text selection")
	}

	s.Settle(outcome)
	records := s.Results()
	if len(records) != 1 || records[0].Topic != "Late" {
		t.Fatalf("late settlement must still land, got %+v", records)
	}
	if s.Busy() {
		t.Fatal("busy gate must drop")
	}
}

func TestDocumentSwitchKeepsChat(t *testing.T) {
	s := newTestSession(&fakeClient{})
	pending, _ := s.BeginChat("what is attention?")
	s.SettleChat(pending.Run(context.Background()))

	s.SelectDocument(muse.Document{Filename: "bert.pdf", Type: "pdf"})
	if len(s.Chat()) != 2 {
		t.Fatal("chat is not scoped to the document")
	}
}

func TestChatTurns(t *testing.T) {
	s := newTestSession(&fakeClient{
		askFn: func(question string) (string, error) {
			return "A weighted lookup over tokens.", nil
		},
	})

	pending, err := s.BeginChat("  What is attention?  ")
	if err != nil {
		t.Fatalf("BeginChat: %v", err)
	}
	turns := s.Chat()
	if len(turns) != 1 || turns[0].Sender != results.SenderUser || turns[0].Content != "What is attention?" {
		t.Fatalf("user turn must appear immediately, got %+v", turns)
	}

	s.SettleChat(pending.Run(context.Background()))
	turns = s.Chat()
	if len(turns) != 2 || turns[1].Sender != results.SenderAssistant {
		t.Fatalf("expected an assistant turn, got %+v", turns)
	}
	if turns[1].Content != "A weighted lookup over tokens." {
		t.Fatalf("answer = %q", turns[1].Content)
	}
	if s.Busy() {
		t.Fatal("chat settlement must drop the busy gate")
	}
}

func TestChatFailureBecomesAssistantTurn(t *testing.T) {
	s := newTestSession(&fakeClient{
		askFn: func(string) (string, error) {
			return "", errors.New("connection refused")
		},
	})

	pending, _ := s.BeginChat("anyone there?")
	s.SettleChat(pending.Run(context.Background()))

	turns := s.Chat()
	if len(turns) != 2 {
		t.Fatalf("failure must surface as a turn, got %d", len(turns))
	}
	if !strings.HasPrefix(turns[1].Content, "I couldn't answer that:") {
		t.Fatalf("unexpected failure turn %q", turns[1].Content)
	}
}

func TestNavigateQueuesPendingScroll(t *testing.T) {
	s := newTestSession(&fakeClient{})
	record := s.CreateAnnotation(annot.Position{Page: 3}, annot.Content{Text: "span"}, muse.KindHighlight)
	fragment := s.ActivateAnchor(record.ID)
	s.ClearAnchor()

	if !s.Navigate(fragment) {
		t.Fatal("fragment must resolve to the stored annotation")
	}
	scrolled, ok := s.TakePendingScroll()
	if !ok || scrolled.ID != record.ID {
		t.Fatalf("expected a pending scroll to %s, got %+v ok=%v", record.ID, scrolled, ok)
	}
	if _, ok := s.TakePendingScroll(); ok {
		t.Fatal("the pending scroll is consumed on take")
	}

	if s.Navigate("highlight-hl-from-another-session") {
		t.Fatal("unknown fragments are a silent no-op")
	}
	if _, ok := s.TakePendingScroll(); ok {
		t.Fatal("no scroll may be queued for unresolved fragments")
	}
}
