package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/skurup/inkwell/internal/annot"
	"github.com/skurup/inkwell/internal/docview"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/results"
)

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHero())
	b.WriteString("\n\n")

	switch m.stage {
	case stagePicker:
		b.WriteString(m.viewPicker())
	case stageLoading:
		b.WriteString(fmt.Sprintf("%s Fetching and parsing the document…", m.spinner.View()))
	case stageViewer:
		b.WriteString(m.viewViewer())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	if m.helpVisible {
		b.WriteString("\n")
		b.WriteString(m.renderHelp())
	}
	return b.String()
}

func (m *model) renderHero() string {
	return heroBoxStyle.Render(heroTitleStyle.Render("inkwell") + "\n" + helperStyle.Render(heroTagline))
}

func (m *model) viewPicker() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Documents"))
	b.WriteString("\n\n")
	if len(m.docList) == 0 {
		b.WriteString(helperStyle.Render("Nothing here yet. u uploads a PDF, r refreshes."))
		return b.String()
	}
	for i, doc := range m.docList {
		marker := "  "
		label := doc.Display()
		if i == m.docCursor {
			marker = "› "
			label = cursorLineStyle.Render(label)
		}
		b.WriteString(marker + label + "\n")
	}
	b.WriteString("\n")
	b.WriteString(helperStyle.Render("j/k move · enter open · u upload · r refresh · q quit"))
	return b.String()
}

func (m *model) viewViewer() string {
	m.refreshViewportIfDirty()

	var b strings.Builder
	if doc, ok := m.session.SelectedDocument(); ok {
		header := fmt.Sprintf("%s — page %d/%d", doc.Display(), m.pageIdx+1, len(m.document.Pages))
		if m.mode == modeSelect {
			header += "  " + selectionStyle.Render(" SELECT ")
		}
		b.WriteString(sectionHeaderStyle.Render(header))
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.paletteOpen {
		b.WriteString("\n")
		b.WriteString(m.renderPalette())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderAnnotationChips())
	b.WriteString("\n\n")
	b.WriteString(m.renderResults())
	b.WriteString("\n\n")
	b.WriteString(m.renderChat())

	if m.composer.Focused() {
		b.WriteString("\n\n")
		b.WriteString(m.composer.View())
	}
	return b.String()
}

func (m *model) renderPage(page docview.Page) string {
	activeID := m.session.ActiveAnchor()
	selStart, selEnd, selOK := m.selectionRange()

	var b strings.Builder
	for i, raw := range page.Lines {
		line := raw
		if line == "" {
			line = " "
		}

		record, annotated := m.annotationCovering(page.Number, i)
		switch {
		case selOK && i >= selStart && i <= selEnd:
			line = selectionStyle.Render(line)
		case annotated && record.ID == activeID:
			line = anchoredStyle.Render(line)
		case annotated:
			line = annotationStyle.Render(line)
		case i == m.cursorLine:
			line = cursorLineStyle.Render(line)
		}
		if annotated && int(record.Position.Bounding.Y1) == i {
			line += " " + record.Label.Glyph
		}

		marker := "  "
		if i == m.cursorLine {
			marker = "▌ "
		}
		b.WriteString(marker + line)
		if i < len(page.Lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *model) annotationCovering(pageNumber, line int) (annot.Annotation, bool) {
	for _, record := range m.session.Annotations() {
		if record.Position.Page != pageNumber {
			continue
		}
		at := float64(line)
		if at >= record.Position.Bounding.Y1 && at <= record.Position.Bounding.Y2 {
			return record, true
		}
	}
	return annot.Annotation{}, false
}

func (m *model) renderPalette() string {
	var b strings.Builder
	if m.paletteTarget != "" {
		b.WriteString(sectionHeaderStyle.Render("Relabel annotation"))
	} else {
		b.WriteString(sectionHeaderStyle.Render("Annotate selection"))
	}
	b.WriteString("\n")
	busy := m.session.Busy()
	for i, kind := range muse.Kinds {
		marker := "  "
		if i == m.paletteCursor {
			marker = "› "
		}
		entry := fmt.Sprintf("%s%d %s %s", marker, i+1, kind.Glyph(), kind.Title())
		if busy && kind.Remote() {
			entry = helperStyle.Render(entry + "  (waiting)")
		} else if i == m.paletteCursor {
			entry = cursorLineStyle.Render(entry)
		}
		b.WriteString(entry + "\n")
	}
	b.WriteString(helperStyle.Render("enter/1-6 confirm · esc cancel"))
	return b.String()
}

func (m *model) renderAnnotationChips() string {
	records := m.session.Annotations()
	if len(records) == 0 {
		if m.session.AnnotationPhase() == annot.PhaseDetached {
			return helperStyle.Render("Annotations — open a document first.")
		}
		return helperStyle.Render("Annotations — none yet. v starts a selection.")
	}

	highlights := 0
	for _, record := range records {
		if !record.Label.Action.Remote() {
			highlights++
		}
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Annotations — %d (%d plain highlights)", len(records), highlights)))
	b.WriteString("\n")

	activeID := m.session.ActiveAnchor()
	shown := records
	if len(shown) > maxAnnotationChips {
		shown = shown[:maxAnnotationChips]
	}
	chips := make([]string, 0, len(shown))
	for _, record := range shown {
		chip := fmt.Sprintf("%s p%d %s", record.Label.Glyph, record.Position.Page, results.Preview(record.Content.Text))
		if runes := []rune(chip); len(runes) > 32 {
			chip = string(runes[:32]) + "…"
		}
		if record.ID == activeID {
			chip = anchoredStyle.Render(chip)
		} else {
			chip = chipStyle.Render(chip)
		}
		chips = append(chips, "["+chip+"]")
	}
	b.WriteString(strings.Join(chips, " "))
	if extra := len(records) - len(shown); extra > 0 {
		b.WriteString(helperStyle.Render(fmt.Sprintf(" +%d more", extra)))
	}
	return b.String()
}

func (m *model) renderResults() string {
	records := m.session.Results()
	if len(records) == 0 {
		return helperStyle.Render("Results — empty. Annotate a selection or press S / Q.")
	}

	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Results — %d (newest first)", len(records))))
	b.WriteString("\n")
	shown := records
	if len(shown) > maxVisibleResults {
		shown = shown[:maxVisibleResults]
	}
	for _, record := range shown {
		head := fmt.Sprintf("%s %s", record.Kind.Glyph(), record.Kind.Title())
		if record.Topic != "" {
			head += " · " + record.Topic
		}
		b.WriteString(head + "\n")
		if record.Failed() {
			b.WriteString("   " + failedResultStyle.Render(record.Err) + "\n")
		} else {
			b.WriteString("   " + record.Preview + "\n")
		}
		if len(record.Files) > 0 {
			b.WriteString("   " + helperStyle.Render("related: "+strings.Join(record.Files, ", ")) + "\n")
		}
	}
	if extra := len(records) - len(shown); extra > 0 {
		b.WriteString(helperStyle.Render(fmt.Sprintf("…and %d older (ctrl+d drops newest, ctrl+l clears)", extra)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderChat() string {
	messages := m.session.Chat()
	if len(messages) == 0 {
		return helperStyle.Render("Chat — quiet. c asks a question.")
	}

	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Chat — %d turns", len(messages))))
	b.WriteString("\n")
	start := 0
	if len(messages) > maxVisibleChatTurns {
		start = len(messages) - maxVisibleChatTurns
	}
	for _, message := range messages[start:] {
		speaker := "You"
		if message.Sender == results.SenderAssistant {
			speaker = "MUSE"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", chipStyle.Render(speaker+":"), results.Preview(message.Content)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderStatus() string {
	var parts []string
	if m.session.Busy() {
		parts = append(parts, fmt.Sprintf("%s working…", m.spinner.View()))
	}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	if m.lastJob.ID != "" && m.lastJob.Status != jobStatusRunning {
		parts = append(parts, helperStyle.Render(fmt.Sprintf("last job %s %s in %s", m.lastJob.ID, m.lastJob.Status, m.lastJob.Duration.Round(time.Millisecond))))
	}
	if len(parts) == 0 {
		parts = append(parts, helperStyle.Render("? toggles the key reference."))
	}
	return strings.Join(parts, "\n")
}

func (m *model) renderHelp() string {
	rows := []string{
		"j/k move · h/l page · g/G page edges",
		"v select · enter action menu · ]/[ cycle anchors · # jump to fragment",
		"x delete annotation · D clear annotations",
		"S summarize document · Q assess document",
		"c chat · C clear chat · ctrl+d drop newest result · ctrl+l clear results",
		"b back to documents · q quit",
	}
	return helperStyle.Render(strings.Join(rows, "\n"))
}
