package muse

import "fmt"

// ActionKind enumerates the analysis intents a user can attach to a span
// of document content. KindHighlight is the only kind that never reaches
// the service; everything else maps onto a flow run by the backend.
type ActionKind string

const (
	KindHighlight ActionKind = "highlight"
	KindSearch    ActionKind = "search"
	KindExplain   ActionKind = "explain"
	KindAnalyze   ActionKind = "analyze"
	KindSummarize ActionKind = "summarize"
	KindAssess    ActionKind = "assess"
)

// Kinds lists every action kind in menu order.
var Kinds = []ActionKind{
	KindHighlight,
	KindSearch,
	KindExplain,
	KindAnalyze,
	KindSummarize,
	KindAssess,
}

// Valid reports whether k is one of the closed set of action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case KindHighlight, KindSearch, KindExplain, KindAnalyze, KindSummarize, KindAssess:
		return true
	}
	return false
}

// Remote reports whether k triggers a service call. Highlight-only
// annotations stay local.
func (k ActionKind) Remote() bool {
	return k.Valid() && k != KindHighlight
}

// FlowKey returns the educational_content field that carries the payload
// for k. The mapping is exhaustive over remote kinds; unrecognized or
// local kinds return an error instead of silently missing the payload.
func (k ActionKind) FlowKey() (string, error) {
	switch k {
	case KindSearch:
		return "web_search", nil
	case KindExplain:
		return "llm_knowledge", nil
	case KindAnalyze:
		return "hybrid_retrieval", nil
	case KindSummarize:
		return "summary", nil
	case KindAssess:
		return "assessment", nil
	case KindHighlight:
		return "", fmt.Errorf("action %q has no remote flow", k)
	default:
		return "", fmt.Errorf("unknown action kind %q", k)
	}
}

// Glyph returns the display marker rendered next to annotations and
// results of this kind.
func (k ActionKind) Glyph() string {
	switch k {
	case KindHighlight:
		return "💡"
	case KindSearch:
		return "🔍"
	case KindExplain:
		return "🧠"
	case KindAnalyze:
		return "⚡"
	case KindSummarize:
		return "📝"
	case KindAssess:
		return "🎯"
	default:
		return "·"
	}
}

// Title returns a short human label for menus and result headers.
func (k ActionKind) Title() string {
	switch k {
	case KindHighlight:
		return "Highlight"
	case KindSearch:
		return "Web Search"
	case KindExplain:
		return "Explain"
	case KindAnalyze:
		return "Deep Analyze"
	case KindSummarize:
		return "Summarize"
	case KindAssess:
		return "Assess"
	default:
		return string(k)
	}
}
