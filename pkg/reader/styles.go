package reader

import (
	"fmt"
	"strings"

	"epicshelf/pkg/settings"
)

// styleOverrideID names the injected style element so a re-application can
// replace an earlier one inside the same chapter document.
const styleOverrideID = "book-theme-style"

// BuildStylesheet renders the style override for the given settings. The
// override is injected into every served chapter document, not once
// globally, because each chapter is an isolated document. It forces a
// uniform text color, font, size scale, line height and alignment on all
// text-bearing elements, strips underline decoration and centers headings
// at a larger size.
func BuildStylesheet(s settings.Settings) string {
	theme := s.ResolveTheme()
	font := s.ResolveFont()
	size := s.ResolveFontSize()
	lineHeight := s.ResolveLineHeight()
	align := s.ResolveTextAlign()
	color := s.ResolveTextColor()

	var b strings.Builder
	fmt.Fprintf(&b, `* {
    color: %s !important;
    text-decoration: none !important;
}
html, body {
    background-color: %s !important;
    color: %s !important;
    font-family: %s !important;
    font-size: %d%% !important;
    line-height: %.2f !important;
}
body {
    margin: 0 !important;
    padding: 1em !important;
}
p, div, span, h1, h2, h3, h4, h5, h6, li, dt, dd, a, em, strong, b, i {
    color: %s !important;
    text-decoration: none !important;
    font-family: %s !important;
    font-size: %d%% !important;
    line-height: %.2f !important;
    text-align: %s !important;
}
h1, h2, h3, h4, h5, h6 {
    text-align: center !important;
    font-size: %d%% !important;
    margin-top: 1.5em !important;
    margin-bottom: 1.5em !important;
}
a {
    color: %s !important;
    text-decoration: none !important;
}
img {
    max-width: 100%% !important;
    height: auto !important;
}
table {
    width: 100%% !important;
    border-collapse: collapse !important;
}
td, th {
    color: %s !important;
}
`,
		color.Color,
		theme.Background, color.Color, font.Family, size.Scale, lineHeight.Value,
		color.Color, font.Family, size.Scale, lineHeight.Value, align.ID,
		size.Scale*18/10,
		color.Color,
		color.Color,
	)
	return b.String()
}

// injectStylesheet places the override into a chapter document, replacing a
// previously injected element when present. When no head tag exists the
// style block is prepended.
func injectStylesheet(doc []byte, css string) []byte {
	styleTag := fmt.Sprintf("<style id=%q>\n%s</style>", styleOverrideID, css)
	html := string(doc)
	if start := strings.Index(html, `<style id="`+styleOverrideID+`"`); start >= 0 {
		if end := strings.Index(html[start:], "</style>"); end >= 0 {
			html = html[:start] + styleTag + html[start+end+len("</style>"):]
			return []byte(html)
		}
	}
	if idx := strings.Index(strings.ToLower(html), "</head>"); idx >= 0 {
		return []byte(html[:idx] + styleTag + html[idx:])
	}
	return []byte(styleTag + html)
}
