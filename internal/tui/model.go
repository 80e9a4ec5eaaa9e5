package tui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skurup/inkwell/internal/annot"
	"github.com/skurup/inkwell/internal/docview"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/session"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Client     muse.Client
	Logger     *zap.Logger
	HTTPClient *http.Client
	// InitialFragment is an externally supplied navigation fragment
	// (eg. from a previous session) resolved once a document opens.
	InitialFragment string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	composer := textinput.New()
	composer.CharLimit = 400
	composer.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:        config,
		session:       session.New(config.Client, config.Logger),
		jobs:          newJobBus(config.Logger),
		stage:         stagePicker,
		mode:          modeNormal,
		composer:      composer,
		composerMode:  composerModeIdle,
		spinner:       spin,
		viewport:      vp,
		viewportDirty: true,
		infoMessage:   "Fetching the document list…",
	}
}

type model struct {
	config  Config
	session *session.Session
	jobs    *jobBus

	stage stage
	mode  interactionMode

	docList   []muse.Document
	docCursor int

	document        *docview.Document
	pageIdx         int
	cursorLine      int
	selectionAnchor int
	selectionActive bool

	paletteOpen   bool
	paletteCursor int
	paletteTarget string

	composer     textinput.Model
	composerMode composerMode
	spinner      spinner.Model
	viewport     viewport.Model

	lastJob       jobSnapshot
	infoMessage   string
	errorMessage  string
	helpVisible   bool
	viewportDirty bool
	width         int
	height        int
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.jobs.Start(jobKindList, listDocumentsJob(m.config.Client)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.stage == stageLoading || m.session.Busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageViewer {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.lastJob = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		m.lastJob = msg.Snapshot
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case documentsMsg:
		return m.handleDocuments(msg)
	case uploadMsg:
		return m.handleUpload(msg)
	case documentMsg:
		return m.handleDocumentOpened(msg)
	case analysisMsg:
		return m.handleAnalysisSettled(msg)
	case askMsg:
		m.session.SettleChat(msg.outcome)
		if msg.outcome.Err != nil {
			m.infoMessage = "The service couldn't answer; see the chat pane."
		} else {
			m.infoMessage = "Answer added to the chat."
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 22
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

func (m *model) handleDocuments(msg documentsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Press r to retry the listing."
		return m, nil
	}
	m.docList = msg.docs
	if m.docCursor >= len(m.docList) {
		m.docCursor = 0
	}
	m.errorMessage = ""
	if len(m.docList) == 0 {
		m.infoMessage = "No documents on the service yet. Press u to upload one."
	} else {
		m.infoMessage = fmt.Sprintf("%d document(s) available. Enter opens the selection.", len(m.docList))
	}
	return m, nil
}

func (m *model) handleUpload(msg uploadMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Upload failed."
		return m, nil
	}
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Uploaded %s.", msg.doc.Display())
	return m, m.jobs.Start(jobKindList, listDocumentsJob(m.config.Client))
}

func (m *model) handleDocumentOpened(msg documentMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.stage = stagePicker
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Pick another document."
		return m, nil
	}
	m.document = msg.doc
	m.session.SelectDocument(msg.doc.Meta)
	m.stage = stageViewer
	m.mode = modeNormal
	m.pageIdx = 0
	m.cursorLine = 0
	m.selectionActive = false
	m.paletteOpen = false
	m.viewport.SetYOffset(0)
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loaded %s (%d pages). Press v to select, ? for keys.", msg.doc.Meta.Display(), len(msg.doc.Pages))
	if fragment := m.config.InitialFragment; fragment != "" {
		m.config.InitialFragment = ""
		// Fragments from other sessions won't resolve; that is fine.
		if m.session.Navigate(fragment) {
			if record, ok := m.session.TakePendingScroll(); ok {
				m.jumpToAnnotation(record)
			}
		}
	}
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleAnalysisSettled(msg analysisMsg) (tea.Model, tea.Cmd) {
	record := m.session.Settle(msg.outcome)
	if record.Failed() {
		m.errorMessage = record.Err
		m.infoMessage = fmt.Sprintf("%s %s failed; the result log has details.", record.Kind.Glyph(), record.Kind.Title())
	} else {
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("%s %s result ready.", record.Kind.Glyph(), record.Kind.Title())
	}
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composer.Focused() {
		return m, m.processComposerKey(key)
	}
	if m.paletteOpen {
		return m, m.handlePaletteKey(key)
	}

	switch m.stage {
	case stagePicker:
		return m.handlePickerKey(key)
	case stageLoading:
		return m, nil
	case stageViewer:
		return m.handleViewerKey(key)
	default:
		return m, nil
	}
}

// processComposerKey drives the shared input line while it has focus.
func (m *model) processComposerKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		m.composer.SetValue("")
		m.composer.Blur()
		m.composerMode = composerModeIdle
		m.infoMessage = "Composer cleared."
		return nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.composer.Value())
		m.composer.SetValue("")
		m.composer.Blur()
		mode := m.composerMode
		m.composerMode = composerModeIdle
		return m.submitComposer(mode, value)
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return cmd
}

func (m *model) submitComposer(mode composerMode, value string) tea.Cmd {
	if value == "" {
		m.infoMessage = "Nothing entered."
		return nil
	}
	switch mode {
	case composerModeChat:
		pending, err := m.session.BeginChat(value)
		switch {
		case errors.Is(err, session.ErrBusy):
			m.infoMessage = "Another action is still running; try again when it settles."
			return nil
		case err != nil:
			m.errorMessage = err.Error()
			return nil
		}
		m.infoMessage = "Question sent…"
		return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindAsk, askJob(pending)))
	case composerModeUpload:
		m.infoMessage = fmt.Sprintf("Uploading %s…", value)
		return m.jobs.Start(jobKindUpload, uploadDocumentJob(m.config.Client, value))
	case composerModeFragment:
		if m.session.Navigate(value) {
			if record, ok := m.session.TakePendingScroll(); ok {
				m.jumpToAnnotation(record)
			}
			m.infoMessage = fmt.Sprintf("Jumped to %s.", value)
		} else {
			// Unresolvable fragments are not errors; they may belong
			// to annotations from another session.
			m.infoMessage = "Fragment does not match an annotation here."
		}
		m.markViewportDirty()
		return nil
	default:
		return nil
	}
}

func (m *model) openComposer(mode composerMode) tea.Cmd {
	m.composerMode = mode
	switch mode {
	case composerModeChat:
		m.composer.Placeholder = composerChatPlaceholder
	case composerModeUpload:
		m.composer.Placeholder = composerUploadPlaceholder
	case composerModeFragment:
		m.composer.Placeholder = composerFragmentPlaceholder
	}
	m.composer.SetValue("")
	return m.composer.Focus()
}

func (m *model) handlePickerKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.docCursor > 0 {
			m.docCursor--
		}
	case "down", "j":
		if m.docCursor < len(m.docList)-1 {
			m.docCursor++
		}
	case "enter":
		if len(m.docList) == 0 {
			m.infoMessage = "Nothing to open. Press u to upload a PDF."
			return m, nil
		}
		doc := m.docList[m.docCursor]
		m.stage = stageLoading
		m.infoMessage = fmt.Sprintf("Opening %s…", doc.Display())
		m.errorMessage = ""
		return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindOpen, openDocumentJob(m.config.Client, m.config.HTTPClient, doc)))
	case "r":
		m.infoMessage = "Refreshing the document list…"
		return m, m.jobs.Start(jobKindList, listDocumentsJob(m.config.Client))
	case "u":
		return m, m.openComposer(composerModeUpload)
	case "?":
		m.helpVisible = !m.helpVisible
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) handleViewerKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEsc {
		if m.mode == modeSelect {
			m.mode = modeNormal
			m.selectionActive = false
			m.infoMessage = "Selection canceled."
			m.markViewportDirty()
			return m, nil
		}
		return m, tea.Quit
	}

	switch key.String() {
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "left", "h":
		m.setPage(m.pageIdx - 1)
	case "right", "l":
		m.setPage(m.pageIdx + 1)
	case "g":
		m.cursorLine = 0
		m.markViewportDirty()
	case "G":
		m.cursorLine = m.pageLineCount() - 1
		m.markViewportDirty()
	case "v":
		m.toggleSelectMode()
	case "enter":
		if m.mode == modeSelect {
			m.paletteTarget = ""
			m.openPalette()
			return m, nil
		}
		if record, ok := m.annotationAtCursor(); ok {
			m.paletteTarget = record.ID
			m.openPalette()
			return m, nil
		}
		m.infoMessage = "Press v to start a selection first."
	case "]":
		m.cycleAnchor(1)
	case "[":
		m.cycleAnchor(-1)
	case "x":
		m.deleteCurrentAnnotation()
	case "D":
		m.session.ResetAnnotations()
		m.infoMessage = "All annotations cleared."
		m.markViewportDirty()
	case "S":
		if doc, ok := m.session.SelectedDocument(); ok {
			return m, m.dispatch(muse.KindSummarize, muse.Target{Document: doc.Filename})
		}
	case "Q":
		if doc, ok := m.session.SelectedDocument(); ok {
			return m, m.dispatch(muse.KindAssess, muse.Target{Document: doc.Filename})
		}
	case "c":
		return m, m.openComposer(composerModeChat)
	case "C":
		m.session.ClearChat()
		m.infoMessage = "Chat cleared."
	case "#":
		return m, m.openComposer(composerModeFragment)
	case "ctrl+d":
		m.deleteNewestResult()
	case "ctrl+l":
		m.session.ClearResults()
		m.infoMessage = "Result log cleared."
	case "b":
		m.stage = stagePicker
		m.infoMessage = "Back to the document list."
	case "?":
		m.helpVisible = !m.helpVisible
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) handlePaletteKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		m.paletteOpen = false
		m.paletteTarget = ""
		m.infoMessage = "Action menu closed."
		return nil
	case "up", "k":
		if m.paletteCursor > 0 {
			m.paletteCursor--
		}
		return nil
	case "down", "j":
		if m.paletteCursor < len(muse.Kinds)-1 {
			m.paletteCursor++
		}
		return nil
	case "enter":
		return m.confirmPalette(muse.Kinds[m.paletteCursor])
	case "1", "2", "3", "4", "5", "6":
		idx := int(key.String()[0] - '1')
		if idx < len(muse.Kinds) {
			return m.confirmPalette(muse.Kinds[idx])
		}
		return nil
	}
	return nil
}

func (m *model) openPalette() {
	m.paletteOpen = true
	m.paletteCursor = 0
}

func (m *model) confirmPalette(kind muse.ActionKind) tea.Cmd {
	m.paletteOpen = false

	if m.paletteTarget != "" {
		id := m.paletteTarget
		m.paletteTarget = ""
		if err := m.session.RelabelAnnotation(id, kind); err != nil {
			m.errorMessage = err.Error()
			return nil
		}
		m.markViewportDirty()
		record, _ := m.session.Annotation(id)
		if !kind.Remote() {
			m.infoMessage = "Annotation kept as a plain highlight."
			return nil
		}
		return m.dispatch(kind, muse.Target{Text: record.Content.Text})
	}

	start, end, ok := m.selectionRange()
	if !ok {
		m.errorMessage = "No active selection."
		return nil
	}
	page, pageOK := m.currentPage()
	if !pageOK {
		return nil
	}
	text := m.document.Excerpt(page.Number, start, end)
	pos := annot.Position{
		Page:     page.Number,
		Bounding: annot.Rect{Y1: float64(start), Y2: float64(end)},
	}
	record := m.session.CreateAnnotation(pos, annot.Content{Text: text}, kind)
	m.mode = modeNormal
	m.selectionActive = false
	m.session.ActivateAnchor(record.ID)
	m.markViewportDirty()

	if !kind.Remote() {
		m.infoMessage = fmt.Sprintf("Highlight saved (%d total).", len(m.session.Annotations()))
		return nil
	}
	return m.dispatch(kind, muse.Target{Text: text})
}

// dispatch admits one remote action. While busy the affordance is a
// no-op with feedback; nothing is queued.
func (m *model) dispatch(kind muse.ActionKind, target muse.Target) tea.Cmd {
	pending, err := m.session.BeginAction(kind, target)
	switch {
	case errors.Is(err, session.ErrBusy):
		m.infoMessage = "Another action is still running; wait for it to settle."
		return nil
	case errors.Is(err, session.ErrNoTarget):
		m.errorMessage = "Nothing selected to act on."
		return nil
	case err != nil:
		m.errorMessage = err.Error()
		return nil
	}
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("%s %s dispatched…", kind.Glyph(), kind.Title())
	return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindAnalyze, analyzeJob(pending)))
}

func (m *model) toggleSelectMode() {
	if m.mode == modeSelect {
		m.mode = modeNormal
		m.selectionActive = false
		m.infoMessage = "Selection canceled."
	} else {
		m.mode = modeSelect
		m.selectionAnchor = m.cursorLine
		m.selectionActive = true
		m.infoMessage = "Extend the selection with j/k, Enter for actions."
	}
	m.markViewportDirty()
}

func (m *model) selectionRange() (int, int, bool) {
	if !m.selectionActive {
		return 0, 0, false
	}
	start, end := m.selectionAnchor, m.cursorLine
	if start > end {
		start, end = end, start
	}
	return start, end, true
}

func (m *model) deleteCurrentAnnotation() {
	id := m.session.ActiveAnchor()
	if id == "" {
		if record, ok := m.annotationAtCursor(); ok {
			id = record.ID
		}
	}
	if id == "" {
		m.infoMessage = "No annotation under the cursor."
		return
	}
	if m.session.DeleteAnnotation(id) {
		m.infoMessage = fmt.Sprintf("Annotation removed (%d left).", len(m.session.Annotations()))
	}
	m.markViewportDirty()
}

func (m *model) deleteNewestResult() {
	records := m.session.Results()
	if len(records) == 0 {
		m.infoMessage = "Result log is empty."
		return
	}
	m.session.DeleteResult(records[0].ID)
	m.infoMessage = fmt.Sprintf("Result removed (%d left).", len(m.session.Results()))
}

func (m *model) cycleAnchor(delta int) {
	records := m.session.Annotations()
	if len(records) == 0 {
		m.infoMessage = "No annotations to cycle through."
		return
	}
	idx := 0
	if delta < 0 {
		idx = len(records) - 1
	}
	if active := m.session.ActiveAnchor(); active != "" {
		for i := range records {
			if records[i].ID == active {
				idx = (i + delta + len(records)) % len(records)
				break
			}
		}
	}
	record := records[idx]
	fragment := m.session.ActivateAnchor(record.ID)
	m.jumpToAnnotation(record)
	m.infoMessage = fmt.Sprintf("Anchored %s %s (%s).", record.Label.Glyph, fragment, record.Label.Action.Title())
}

func (m *model) jumpToAnnotation(record annot.Annotation) {
	if m.document == nil {
		return
	}
	if record.Position.Page >= 1 && record.Position.Page <= len(m.document.Pages) {
		m.pageIdx = record.Position.Page - 1
	}
	line := int(record.Position.Bounding.Y1)
	if count := m.pageLineCount(); line >= count {
		line = count - 1
	}
	if line < 0 {
		line = 0
	}
	m.cursorLine = line
	m.markViewportDirty()
}

func (m *model) setPage(idx int) {
	if m.document == nil || idx < 0 || idx >= len(m.document.Pages) {
		return
	}
	m.pageIdx = idx
	m.cursorLine = 0
	m.mode = modeNormal
	m.selectionActive = false
	m.viewport.SetYOffset(0)
	m.markViewportDirty()
}

func (m *model) currentPage() (docview.Page, bool) {
	if m.document == nil {
		return docview.Page{}, false
	}
	return m.document.Page(m.pageIdx + 1)
}

func (m *model) pageLineCount() int {
	page, ok := m.currentPage()
	if !ok || len(page.Lines) == 0 {
		return 1
	}
	return len(page.Lines)
}

func (m *model) moveCursor(delta int) {
	next := m.cursorLine + delta
	if next < 0 {
		next = 0
	}
	if max := m.pageLineCount() - 1; next > max {
		next = max
	}
	if next == m.cursorLine {
		return
	}
	m.cursorLine = next
	m.markViewportDirty()
}

func (m *model) annotationAtCursor() (annot.Annotation, bool) {
	page, ok := m.currentPage()
	if !ok {
		return annot.Annotation{}, false
	}
	for _, record := range m.session.Annotations() {
		if record.Position.Page != page.Number {
			continue
		}
		line := float64(m.cursorLine)
		if line >= record.Position.Bounding.Y1 && line <= record.Position.Bounding.Y2 {
			return record, true
		}
	}
	return annot.Annotation{}, false
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if m.viewportDirty {
		m.refreshViewport()
	}
}

func (m *model) refreshViewport() {
	m.viewportDirty = false
	page, ok := m.currentPage()
	if !ok {
		m.viewport.SetContent(helperStyle.Render("Open a document to start reading."))
		return
	}
	m.viewport.SetContent(m.renderPage(page))
	m.ensureCursorVisible()
}

func (m *model) ensureCursorVisible() {
	top := m.viewport.YOffset
	bottom := top + m.viewport.Height - 1
	if m.cursorLine < top {
		m.viewport.SetYOffset(m.cursorLine)
	} else if m.cursorLine > bottom {
		m.viewport.SetYOffset(m.cursorLine - m.viewport.Height + 1)
	}
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	cursorLineStyle    = lipgloss.NewStyle().Bold(true)
	selectionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))
	annotationStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	anchoredStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	chipStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	failedResultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	heroAccentColor    = lipgloss.Color("205")
	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	heroBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Padding(0, 2)
)
