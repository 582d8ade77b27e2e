// Package template renders parameterized artifact templates.
//
// Stencil placeholders are delimiter-bounded uppercase identifiers of the
// form @NAME@. The delimiter is chosen so substitution can never touch the
// second, curly-brace templating syntax ({{ ... }} blocks and ${...}
// parameter expressions) retained verbatim in several outputs for a later
// rendering pass by another system.
package template

import (
	"regexp"
	"strings"

	"github.com/rzbill/stencil/pkg/types"
)

var (
	// placeholderRegex matches the current single-delimiter syntax.
	placeholderRegex = regexp.MustCompile(`@([A-Z][A-Z0-9_]*)@`)

	// legacyRegex matches the legacy doubled-delimiter syntax, normalized
	// to the single form before substitution. Its survival in a rendered
	// artifact signals an unresolved or mistyped token.
	legacyRegex = regexp.MustCompile(`@@([A-Z][A-Z0-9_]*)@@`)
)

// LegacyMarker is the forbidden substring guardrail checks look for.
const LegacyMarker = "@@"

// Renderer substitutes resolved tokens into template bodies. Rendering is
// pure: no I/O, and the same (template, tokens) pair always yields the
// same output.
type Renderer struct {
	phRegex     *regexp.Regexp
	legacyRegex *regexp.Regexp
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		phRegex:     placeholderRegex,
		legacyRegex: legacyRegex,
	}
}

// Render substitutes every bound token in body. Unresolved placeholders
// are left in the output unchanged rather than raising: some templates
// intentionally retain markers for a later stage, and leakage is the
// validator's call, not the renderer's.
func (r *Renderer) Render(body string, tokens types.TokenMap) string {
	normalized := r.legacyRegex.ReplaceAllString(body, "@$1@")

	return r.phRegex.ReplaceAllStringFunc(normalized, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := tokens[name]; ok {
			return value
		}
		return match
	})
}

// Placeholders returns the unique placeholder names referenced by body, in
// first-appearance order. Legacy doubled markers are counted with their
// normalized names.
func (r *Renderer) Placeholders(body string) []string {
	normalized := r.legacyRegex.ReplaceAllString(body, "@$1@")

	seen := make(map[string]bool)
	var names []string
	for _, m := range r.phRegex.FindAllStringSubmatch(normalized, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Unresolved returns the placeholder names still present in a rendered
// body, legacy markers included.
func Unresolved(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range legacyRegex.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	stripped := legacyRegex.ReplaceAllString(body, "")
	for _, m := range placeholderRegex.FindAllStringSubmatch(stripped, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// IndentBlock prefixes every non-empty line of block with indent. Used for
// template-specific derived fields that embed a multi-line value into a
// structured document.
func IndentBlock(block, indent string) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}
