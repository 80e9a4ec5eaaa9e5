package muse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{Endpoint: server.URL})
}

func TestListDocuments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"filename": "attention.pdf", "type": "pdf"},
				{"filename": "bert.pdf", "type": "pdf"},
			},
		})
	})

	docs, err := client.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 || docs[0].Filename != "attention.pdf" {
		t.Fatalf("unexpected listing %+v", docs)
	}
}

func TestAnalyzeLocatesFlowPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["action"] != "search" || body["text"] != "Transformer architecture" {
			t.Errorf("unexpected request body %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"topic": "Transformers",
			"educational_content": map[string]any{
				"web_search": map[string]string{"sources_found": "12 relevant pages"},
			},
			"pdf_files": []string{"attention.pdf"},
		})
	})

	analysis, err := client.Analyze(context.Background(), KindSearch, Target{Text: "Transformer architecture"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Topic != "Transformers" {
		t.Fatalf("topic = %q", analysis.Topic)
	}
	payload, ok := analysis.Payload.(map[string]any)
	if !ok || payload["sources_found"] != "12 relevant pages" {
		t.Fatalf("unexpected payload %#v", analysis.Payload)
	}
	if len(analysis.Files) != 1 || analysis.Files[0] != "attention.pdf" {
		t.Fatalf("unexpected files %v", analysis.Files)
	}
}

func TestAnalyzeSendsFilenameForDocumentTargets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["filename"] != "attention.pdf" {
			t.Errorf("expected filename field, got %v", body)
		}
		if _, ok := body["text"]; ok {
			t.Error("text must be absent for whole-document targets")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"educational_content": map[string]any{"summary": "Short and sweet."},
		})
	})

	if _, err := client.Analyze(context.Background(), KindSummarize, Target{Document: "attention.pdf"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}

func TestAnalyzeMissingFlowKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"educational_content": map[string]any{"summary": "wrong flow"},
		})
	})

	_, err := client.Analyze(context.Background(), KindSearch, Target{Text: "anything"})
	if !errors.Is(err, ErrMissingFlow) {
		t.Fatalf("expected ErrMissingFlow, got %v", err)
	}
}

func TestAnalyzeServiceFailureBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model overloaded"})
	})

	_, err := client.Analyze(context.Background(), KindExplain, Target{Text: "anything"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "model overloaded" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}
}

func TestAnalyzeEmptyTargetNeverHitsTheWire(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Analyze(context.Background(), KindSearch, Target{Text: "   "})
	if !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("expected ErrEmptyTarget, got %v", err)
	}
	if called {
		t.Fatal("no request should have been made")
	}
}

func TestAsk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ask" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["question"] != "What is attention?" {
			t.Errorf("unexpected question %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"answer": "A weighted lookup."})
	})

	answer, err := client.Ask(context.Background(), "What is attention?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "A weighted lookup." {
		t.Fatalf("answer = %q", answer)
	}
}

func TestFileURLEscapesFilenames(t *testing.T) {
	client := New(Config{Endpoint: "http://localhost:5000"})
	got := client.FileURL("my paper.pdf")
	want := "http://localhost:5000/files/my%20paper.pdf"
	if got != want {
		t.Fatalf("FileURL = %q, want %q", got, want)
	}
}
