// Package muse speaks to the EduMUSE analysis service. The service is an
// opaque RPC boundary: it lists and stores documents, runs analysis flows
// over text or whole files, and answers free-form questions.
package muse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultHTTPTimeout = 3 * time.Minute

// ErrMissingFlow marks a successful analysis response that lacks the
// payload key expected for the requested action. The server answered, but
// not in the agreed shape.
var ErrMissingFlow = errors.New("analysis response missing expected flow payload")

// ErrEmptyTarget is returned before any network traffic when an analysis
// target resolves to nothing.
var ErrEmptyTarget = errors.New("analysis target is empty")

// APIError is a failure the service reported itself, carrying the HTTP
// status and the server-supplied message when one was present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("analysis service returned status %d", e.Status)
}

// Document describes one entry of the service's document listing.
type Document struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// Display returns the filename without its directory prefix.
func (d Document) Display() string {
	return path.Base(d.Filename)
}

// Target selects what an analysis action runs over: inline text from a
// selection, or a whole stored document by filename. Exactly one side
// should be set.
type Target struct {
	Text     string
	Document string
}

// Empty reports whether the target carries neither text nor a document.
func (t Target) Empty() bool {
	return strings.TrimSpace(t.Text) == "" && strings.TrimSpace(t.Document) == ""
}

// Analysis is the located payload of one successful flow run.
type Analysis struct {
	Topic   string
	Payload any
	Files   []string
}

// Client is the service boundary consumed by the session core.
type Client interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	Upload(ctx context.Context, filename string, data []byte) (Document, error)
	Analyze(ctx context.Context, kind ActionKind, target Target) (*Analysis, error)
	Ask(ctx context.Context, question string) (string, error)
	FileURL(filename string) string
	Name() string
}

// Config describes how to build an HTTP client for the service.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type httpClient struct {
	base   string
	client *http.Client
	log    *zap.Logger
}

// New returns a Client over HTTP. The endpoint defaults to the EduMUSE
// development server's local address.
func New(cfg Config) Client {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if base == "" {
		base = "http://127.0.0.1:5000"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &httpClient{base: base, client: client, log: log}
}

func (c *httpClient) Name() string {
	return fmt.Sprintf("muse (%s)", c.base)
}

func (c *httpClient) FileURL(filename string) string {
	return fmt.Sprintf("%s/files/%s", c.base, url.PathEscape(filename))
}

func (c *httpClient) ListDocuments(ctx context.Context) ([]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/files", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Files []Document `json:"files"`
	}
	if err := c.do(req, &parsed); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return parsed.Files, nil
}

func (c *httpClient) Upload(ctx context.Context, filename string, data []byte) (Document, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return Document{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Document{}, err
	}
	if err := form.Close(); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", &buf)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var doc Document
	if err := c.do(req, &doc); err != nil {
		return Document{}, fmt.Errorf("upload %s: %w", path.Base(filename), err)
	}
	if doc.Filename == "" {
		doc.Filename = path.Base(filename)
	}
	return doc, nil
}

func (c *httpClient) Analyze(ctx context.Context, kind ActionKind, target Target) (*Analysis, error) {
	flowKey, err := kind.FlowKey()
	if err != nil {
		return nil, err
	}
	if target.Empty() {
		return nil, ErrEmptyTarget
	}

	body := map[string]string{"action": string(kind)}
	if strings.TrimSpace(target.Text) != "" {
		body["text"] = target.Text
	} else {
		body["filename"] = target.Document
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	var parsed struct {
		Topic              string                     `json:"topic"`
		EducationalContent map[string]json.RawMessage `json:"educational_content"`
		PDFFiles           []string                   `json:"pdf_files"`
	}
	if err := c.do(req, &parsed); err != nil {
		return nil, err
	}

	raw, ok := parsed.EducationalContent[flowKey]
	if !ok {
		return nil, fmt.Errorf("%w: no %q for action %q", ErrMissingFlow, flowKey, kind)
	}
	var flow any
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, fmt.Errorf("%w: %q is not valid JSON", ErrMissingFlow, flowKey)
	}
	c.log.Debug("analysis settled",
		zap.String("action", string(kind)),
		zap.String("flow", flowKey),
		zap.Duration("duration", time.Since(started)))
	return &Analysis{Topic: parsed.Topic, Payload: flow, Files: parsed.PDFFiles}, nil
}

func (c *httpClient) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyTarget
	}
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/ask", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := c.do(req, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrMissingFlow)
	}
	return parsed.Answer, nil
}

// do runs the request and decodes the response into out. Non-2xx statuses
// become *APIError, preferring the server's own error message.
func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &failure)
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(failure.Error)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
