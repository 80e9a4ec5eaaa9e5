package tui

type stage int

const (
	stagePicker stage = iota
	stageLoading
	stageViewer
)

type interactionMode int

const (
	modeNormal interactionMode = iota
	modeSelect
)

type composerMode int

const (
	composerModeIdle composerMode = iota
	composerModeChat
	composerModeUpload
	composerModeFragment
)

const (
	composerChatPlaceholder     = "Ask about the loaded document…"
	composerUploadPlaceholder   = "Path to a PDF to upload…"
	composerFragmentPlaceholder = "Navigation fragment, eg. highlight-hl-1-a1b2c3d4"
)

const heroTagline = "Annotate documents and trigger EduMUSE analysis flows."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	maxVisibleResults         = 3
	maxVisibleChatTurns       = 6
	maxAnnotationChips        = 4
)
