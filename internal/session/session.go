// Package session is the orchestration core behind the UI: it owns the
// annotation store, the result and chat logs, the selected document, and
// the single-flight busy gate, and it turns every action settlement into
// exactly one visible record.
//
// A Session is driven from a single event loop. Only the Run methods of
// pending actions touch the network; everything else mutates state
// synchronously and must be called from that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skurup/inkwell/internal/annot"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/results"
)

// ErrBusy rejects a dispatch attempted while another action is in flight.
// Callers disable the triggering affordance instead of queueing.
var ErrBusy = errors.New("another action is still in flight")

// ErrNoTarget rejects a dispatch whose target resolves to nothing. It is
// reported synchronously and never reaches the result log.
var ErrNoTarget = errors.New("nothing selected to act on")

// Session composes the per-document working state.
type Session struct {
	client muse.Client
	log    *zap.Logger

	store   *annot.Store
	bridge  *annot.AnchorBridge
	results *results.Log
	chat    *results.Transcript

	doc           *muse.Document
	selectedText  string
	busy          bool
	pendingScroll *annot.Annotation
}

// New wires a session around the given service client.
func New(client muse.Client, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		client:  client,
		log:     log,
		store:   annot.NewStore(),
		results: results.NewLog(),
		chat:    results.NewTranscript(),
	}
	s.bridge = annot.NewAnchorBridge(s.store, func(record annot.Annotation) {
		target := record
		s.pendingScroll = &target
	})
	return s
}

// SelectDocument switches the working document. Annotations, results and
// the text selection are scoped to one document and are discarded; an
// in-flight action is not cancelled and will still settle into the log.
func (s *Session) SelectDocument(doc muse.Document) {
	s.doc = &doc
	s.selectedText = ""
	s.pendingScroll = nil
	s.store.Attach()
	s.results.ClearAll()
	s.log.Info("document selected", zap.String("document", doc.Filename))
}

// ClearDocument returns the session to its initial no-document state.
func (s *Session) ClearDocument() {
	s.doc = nil
	s.selectedText = ""
	s.pendingScroll = nil
	s.store.Detach()
	s.results.ClearAll()
}

// SelectedDocument returns the current document, if any.
func (s *Session) SelectedDocument() (muse.Document, bool) {
	if s.doc == nil {
		return muse.Document{}, false
	}
	return *s.doc, true
}

// SetSelectedText records the last text pulled out of the viewer.
func (s *Session) SetSelectedText(text string) {
	s.selectedText = strings.TrimSpace(text)
}

// SelectedText returns the last captured selection text.
func (s *Session) SelectedText() string {
	return s.selectedText
}

// Busy reports whether an action is outstanding.
func (s *Session) Busy() bool {
	return s.busy
}

// CreateAnnotation stores a new annotation for the captured selection and
// remembers its text as the current selection.
func (s *Session) CreateAnnotation(pos annot.Position, content annot.Content, kind muse.ActionKind) annot.Annotation {
	record := s.store.Create(pos, content, annot.LabelFor(kind))
	if text := strings.TrimSpace(content.Text); text != "" {
		s.selectedText = text
	}
	s.log.Debug("annotation created",
		zap.String("id", record.ID),
		zap.String("action", string(kind)),
		zap.Int("page", pos.Page))
	return record
}

// UpdateAnnotation merges geometry and content patches into an existing
// annotation.
func (s *Session) UpdateAnnotation(id string, pos *annot.PositionPatch, content *annot.ContentPatch) error {
	return s.store.Update(id, pos, content)
}

// RelabelAnnotation switches an existing annotation's intent without
// touching its geometry or content.
func (s *Session) RelabelAnnotation(id string, kind muse.ActionKind) error {
	return s.store.Relabel(id, annot.LabelFor(kind))
}

// DeleteAnnotation removes one annotation. A matching active anchor is
// cleared through the store's removal hook.
func (s *Session) DeleteAnnotation(id string) bool {
	return s.store.DeleteOne(id)
}

// ResetAnnotations discards every annotation and any active anchor.
func (s *Session) ResetAnnotations() {
	s.store.ResetAll()
}

// Annotations returns a snapshot of the store, newest first.
func (s *Session) Annotations() []annot.Annotation {
	return s.store.All()
}

// AnnotationPhase reports whether the store is attached to a document,
// letting the view distinguish "no document" from "zero annotations".
func (s *Session) AnnotationPhase() annot.Phase {
	return s.store.Phase()
}

// Annotation looks a record up by id.
func (s *Session) Annotation(id string) (annot.Annotation, bool) {
	return s.store.Get(id)
}

// ActivateAnchor points the navigation fragment at an annotation and
// returns the fragment, or "" for unknown ids.
func (s *Session) ActivateAnchor(id string) string {
	return s.bridge.Activate(id)
}

// ActiveAnchor returns the id the fragment currently references.
func (s *Session) ActiveAnchor() string {
	return s.bridge.Active()
}

// ClearAnchor empties the navigation fragment.
func (s *Session) ClearAnchor() {
	s.bridge.Clear()
}

// Navigate resolves an externally written fragment. Matches queue a
// pending scroll target; anything else is a silent no-op.
func (s *Session) Navigate(fragment string) bool {
	return s.bridge.Navigate(fragment)
}

// TakePendingScroll pops the scroll target queued by the last resolved
// navigation, if any.
func (s *Session) TakePendingScroll() (annot.Annotation, bool) {
	if s.pendingScroll == nil {
		return annot.Annotation{}, false
	}
	record := *s.pendingScroll
	s.pendingScroll = nil
	return record, true
}

// PendingAction is a validated, admitted analysis action. Run performs
// the service call and may be executed off the event loop; the outcome
// must be handed back to Settle.
type PendingAction struct {
	Kind   muse.ActionKind
	Target muse.Target
	client muse.Client
}

// Outcome is the settlement of a pending action.
type Outcome struct {
	Kind     muse.ActionKind
	Target   muse.Target
	Analysis *muse.Analysis
	Err      error
}

// Run calls the analysis service and never panics on failure; any error
// is carried in the outcome for Settle to materialize.
func (p *PendingAction) Run(ctx context.Context) Outcome {
	analysis, err := p.client.Analyze(ctx, p.Kind, p.Target)
	return Outcome{Kind: p.Kind, Target: p.Target, Analysis: analysis, Err: err}
}

// BeginAction admits one analysis action: the session must be idle and
// the target non-empty. On success the busy gate is up until Settle.
// Highlight-only intents are local and are never dispatched.
func (s *Session) BeginAction(kind muse.ActionKind, target muse.Target) (*PendingAction, error) {
	if !kind.Remote() {
		return nil, fmt.Errorf("action %q does not dispatch", kind)
	}
	if s.busy {
		return nil, ErrBusy
	}
	if target.Empty() {
		return nil, ErrNoTarget
	}
	s.busy = true
	s.log.Info("action dispatched",
		zap.String("action", string(kind)),
		zap.Bool("wholeDocument", target.Text == ""))
	return &PendingAction{Kind: kind, Target: target, client: s.client}, nil
}

// Settle converts any outcome, success or failure, into exactly one
// record at the head of the result log and drops the busy gate. An
// outcome that arrives after the document changed still lands; results
// are never silently discarded.
func (s *Session) Settle(outcome Outcome) results.Record {
	defer func() { s.busy = false }()

	source := outcome.Target.Text
	if source == "" {
		source = outcome.Target.Document
	}

	var record results.Record
	if outcome.Err != nil {
		record = results.NewFailure(outcome.Kind, source, failureMessage(outcome.Err))
		s.log.Warn("action failed",
			zap.String("action", string(outcome.Kind)),
			zap.String("error", record.Err))
	} else {
		record = results.NewRecord(outcome.Kind, source, outcome.Analysis)
		s.log.Info("action settled",
			zap.String("action", string(outcome.Kind)),
			zap.String("topic", record.Topic))
	}
	s.results.Prepend(record)
	return record
}

// PendingQuestion is an admitted chat turn awaiting its answer.
type PendingQuestion struct {
	Question string
	client   muse.Client
}

// ChatOutcome is the settlement of a chat turn.
type ChatOutcome struct {
	Question string
	Answer   string
	Err      error
}

// Run asks the service and carries the settlement back for SettleChat.
func (q *PendingQuestion) Run(ctx context.Context) ChatOutcome {
	answer, err := q.client.Ask(ctx, q.Question)
	return ChatOutcome{Question: q.Question, Answer: answer, Err: err}
}

// BeginChat appends the user's turn and admits the question under the
// same single-flight gate as analysis actions.
func (s *Session) BeginChat(text string) (*PendingQuestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoTarget
	}
	if s.busy {
		return nil, ErrBusy
	}
	s.chat.Append(results.SenderUser, text)
	s.busy = true
	return &PendingQuestion{Question: text, client: s.client}, nil
}

// SettleChat appends the assistant's turn. Failures become visible
// assistant turns rather than dropped messages.
func (s *Session) SettleChat(outcome ChatOutcome) {
	defer func() { s.busy = false }()
	if outcome.Err != nil {
		s.chat.Append(results.SenderAssistant, "I couldn't answer that: "+failureMessage(outcome.Err))
		s.log.Warn("chat turn failed", zap.Error(outcome.Err))
		return
	}
	s.chat.Append(results.SenderAssistant, outcome.Answer)
}

// Results returns a snapshot of the result log, newest first.
func (s *Session) Results() []results.Record {
	return s.results.All()
}

// DeleteResult removes one record; unknown ids are a no-op.
func (s *Session) DeleteResult(id string) bool {
	return s.results.DeleteOne(id)
}

// ClearResults empties the result log.
func (s *Session) ClearResults() {
	s.results.ClearAll()
}

// Chat returns a snapshot of the transcript, oldest first.
func (s *Session) Chat() []results.Message {
	return s.chat.All()
}

// ClearChat empties the transcript.
func (s *Session) ClearChat() {
	s.chat.ClearAll()
}

// failureMessage renders a settlement error for display, preferring the
// server's own message when one exists.
func failureMessage(err error) string {
	var apiErr *muse.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, muse.ErrMissingFlow):
		return fmt.Sprintf("unexpected response from analysis service: %v", err)
	default:
		return fmt.Sprintf("analysis service unreachable: %v", err)
	}
}
