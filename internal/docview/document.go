// Package docview fetches document bytes from the service, caches them on
// disk, and extracts page text for the terminal viewer. It is the
// rendering collaborator of the annotation core: the core treats its
// geometry as opaque and never reaches into it.
package docview

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/muesli/reflow/wordwrap"

	"github.com/skurup/inkwell/internal/muse"
)

// pageWrapWidth fixes the line grid selections are expressed against.
// Rendering may re-wrap for display, but selection geometry stays stable.
const pageWrapWidth = 80

var extraneousWhitespace = regexp.MustCompile(`[ \t]+`)

// Page is one extracted document page.
type Page struct {
	Number int
	Lines  []string
}

// Document is an opened, page-extracted document.
type Document struct {
	Meta  muse.Document
	Path  string
	Pages []Page
}

// Page returns the 1-based page, if present.
func (d *Document) Page(number int) (Page, bool) {
	if number < 1 || number > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[number-1], true
}

// Excerpt joins the inclusive line range [start, end] of a page into the
// text captured for a selection.
func (d *Document) Excerpt(page, start, end int) string {
	p, ok := d.Page(page)
	if !ok {
		return ""
	}
	if start < 0 {
		start = 0
	}
	if end >= len(p.Lines) {
		end = len(p.Lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.TrimSpace(strings.Join(p.Lines[start:end+1], " "))
}

// Open downloads (or revalidates) the document and extracts its pages.
func Open(ctx context.Context, client muse.Client, meta muse.Document, httpClient *http.Client) (*Document, error) {
	cache, err := newFileCache(httpClient)
	if err != nil {
		return nil, err
	}
	path, err := cache.Fetch(ctx, client.FileURL(meta.Filename))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", meta.Display(), err)
	}
	pages, err := extractPages(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", meta.Display(), err)
	}
	return &Document{Meta: meta, Path: path, Pages: pages}, nil
}

func extractPages(path string) ([]Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for number := 1; number <= total; number++ {
		page := reader.Page(number)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: number})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			pages = append(pages, Page{Number: number, Lines: []string{fmt.Sprintf("[page %d could not be extracted]", number)}})
			continue
		}
		pages = append(pages, Page{Number: number, Lines: wrapPage(text)})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	return pages, nil
}

func wrapPage(text string) []string {
	text = extraneousWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	wrapped := wordwrap.String(text, pageWrapWidth)
	lines := strings.Split(wrapped, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return lines
}
