package tui

import (
	"context"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skurup/inkwell/internal/docview"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/session"
)

type documentsMsg struct {
	docs []muse.Document
	err  error
}

type uploadMsg struct {
	doc muse.Document
	err error
}

type documentMsg struct {
	doc *docview.Document
	err error
}

type analysisMsg struct {
	outcome session.Outcome
}

type askMsg struct {
	outcome session.ChatOutcome
}

func listDocumentsJob(client muse.Client) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 20*time.Second)
		defer cancel()
		docs, err := client.ListDocuments(ctx)
		return documentsMsg{docs: docs, err: err}, err
	}
}

func uploadDocumentJob(client muse.Client, path string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return uploadMsg{err: err}, err
		}
		ctx, cancel := context.WithTimeout(parent, time.Minute)
		defer cancel()
		doc, err := client.Upload(ctx, path, data)
		return uploadMsg{doc: doc, err: err}, err
	}
}

func openDocumentJob(client muse.Client, httpClient *http.Client, meta muse.Document) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 90*time.Second)
		defer cancel()
		doc, err := docview.Open(ctx, client, meta, httpClient)
		return documentMsg{doc: doc, err: err}, err
	}
}

// analyzeJob runs an admitted action to settlement. Domain failures ride
// inside the outcome so the session can materialize them as result
// records; they are also surfaced as the job error for the session log.
func analyzeJob(pending *session.PendingAction) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		outcome := pending.Run(ctx)
		return analysisMsg{outcome: outcome}, outcome.Err
	}
}

func askJob(pending *session.PendingQuestion) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		outcome := pending.Run(ctx)
		return askMsg{outcome: outcome}, outcome.Err
	}
}
