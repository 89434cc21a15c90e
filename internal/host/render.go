package host

import "golang.org/x/text/language"

// RenderContext tracks what has already been rendered during one page load.
// Several license clients, one per extension, share it so that a notice is
// printed once per page rather than once per extension.
type RenderContext struct {
	Language language.Tag

	NoticeShown     bool
	HelpShown       bool
	MissingKeyShown map[string]bool
}

// NewRenderContext returns an empty render context for lang.
func NewRenderContext(lang language.Tag) *RenderContext {
	return &RenderContext{
		Language:        lang,
		MissingKeyShown: make(map[string]bool),
	}
}

// MarkMissingKey records the missing-key message for product and reports
// whether this is the first time it was marked.
func (rc *RenderContext) MarkMissingKey(product string) bool {
	if rc.MissingKeyShown == nil {
		rc.MissingKeyShown = make(map[string]bool)
	}
	if rc.MissingKeyShown[product] {
		return false
	}
	rc.MissingKeyShown[product] = true
	return true
}
