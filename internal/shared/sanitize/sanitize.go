// Package sanitize scrubs rendered preview markup before it leaves the
// service.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
)

// Sanitizer applies a bluemonday policy to mounted HTML. A nil *Sanitizer
// passes markup through untouched.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a sanitizer when enabled, nil otherwise.
func New(enabled bool) *Sanitizer {
	if !enabled {
		return nil
	}
	return &Sanitizer{policy: Policy()}
}

// Policy is the user-generated-content policy extended with the class, id,
// style and data attributes components commonly render.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.AllowDataAttributes()
	p.AllowAttrs("id", "role", "title").Globally()
	p.AllowAttrs("style").Globally()
	p.AllowAttrs("type", "value", "checked", "disabled", "placeholder", "name").OnElements("input", "button", "select", "option", "textarea")
	p.AllowElements("button", "input", "select", "option", "textarea", "label", "form", "section", "article", "header", "footer", "nav", "main")
	return p
}

// HTML sanitizes one fragment
func (s *Sanitizer) HTML(markup string) string {
	if s == nil {
		return markup
	}
	return s.policy.Sanitize(markup)
}

// View returns view with its HTML sanitized
func (s *Sanitizer) View(view host.View) host.View {
	if s == nil || view.HTML == "" {
		return view
	}
	view.HTML = s.policy.Sanitize(view.HTML)
	return view
}
