// Package settings holds reading preferences: six independent axes, each
// resolved through a fixed lookup table to concrete style values.
package settings

// Settings is the per-device preference object. Each field is an id into
// the corresponding lookup table; unknown ids resolve to the axis default.
type Settings struct {
	Theme      string `json:"theme" yaml:"theme"`
	Font       string `json:"font" yaml:"font"`
	FontSize   string `json:"fontSize" yaml:"fontSize"`
	LineHeight string `json:"lineHeight" yaml:"lineHeight"`
	TextAlign  string `json:"textAlign" yaml:"textAlign"`
	TextColor  string `json:"textColor" yaml:"textColor"`
}

// Default returns the default settings object.
func Default() Settings {
	return Settings{
		Theme:      "light",
		Font:       "serif",
		FontSize:   "medium",
		LineHeight: "relaxed",
		TextAlign:  "justify",
		TextColor:  "dark",
	}
}

type Theme struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

type Font struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

type FontSize struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Scale is a percentage relative to the publisher font size.
	Scale int `json:"scale"`
}

type LineHeight struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type TextAlign struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TextColor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

var Themes = map[string]Theme{
	"light": {ID: "light", Name: "Light", Background: "#ffffff", Text: "#1f2937"},
	"sepia": {ID: "sepia", Name: "Sepia", Background: "#f4ecd8", Text: "#5c4b37"},
	"dark":  {ID: "dark", Name: "Dark", Background: "#1f2937", Text: "#f9fafb"},
}

var Fonts = map[string]Font{
	"serif": {ID: "serif", Name: "Serif", Family: `Georgia, Cambria, "Times New Roman", serif`},
	"sans":  {ID: "sans", Name: "Sans-serif", Family: `-apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif`},
	"mono":  {ID: "mono", Name: "Monospace", Family: `"Courier New", Courier, monospace`},
}

var FontSizes = map[string]FontSize{
	"small":  {ID: "small", Name: "Small", Scale: 90},
	"medium": {ID: "medium", Name: "Medium", Scale: 100},
	"large":  {ID: "large", Name: "Large", Scale: 120},
	"xlarge": {ID: "xlarge", Name: "Extra Large", Scale: 140},
}

var LineHeights = map[string]LineHeight{
	"normal":  {ID: "normal", Name: "Normal", Value: 1.5},
	"relaxed": {ID: "relaxed", Name: "Relaxed", Value: 1.75},
	"loose":   {ID: "loose", Name: "Loose", Value: 2},
}

var TextAligns = map[string]TextAlign{
	"left":    {ID: "left", Name: "Left"},
	"justify": {ID: "justify", Name: "Justify"},
}

var TextColors = map[string]TextColor{
	"dark":  {ID: "dark", Name: "Dark", Color: "#1f2937"},
	"black": {ID: "black", Name: "Black", Color: "#000000"},
	"brown": {ID: "brown", Name: "Brown", Color: "#92400e"},
	"gray":  {ID: "gray", Name: "Gray", Color: "#4b5563"},
	"white": {ID: "white", Name: "White", Color: "#ddd"},
}

// ResolveTheme returns the theme for id, falling back to light.
func (s Settings) ResolveTheme() Theme {
	if t, ok := Themes[s.Theme]; ok {
		return t
	}
	return Themes["light"]
}

// ResolveFont returns the font for id, falling back to serif.
func (s Settings) ResolveFont() Font {
	if f, ok := Fonts[s.Font]; ok {
		return f
	}
	return Fonts["serif"]
}

// ResolveFontSize returns the font size for id, falling back to medium.
func (s Settings) ResolveFontSize() FontSize {
	if f, ok := FontSizes[s.FontSize]; ok {
		return f
	}
	return FontSizes["medium"]
}

// ResolveLineHeight returns the line height for id, falling back to relaxed.
func (s Settings) ResolveLineHeight() LineHeight {
	if l, ok := LineHeights[s.LineHeight]; ok {
		return l
	}
	return LineHeights["relaxed"]
}

// ResolveTextAlign returns the alignment for id, falling back to justify.
func (s Settings) ResolveTextAlign() TextAlign {
	if a, ok := TextAligns[s.TextAlign]; ok {
		return a
	}
	return TextAligns["justify"]
}

// ResolveTextColor returns the text color for id, falling back to dark.
func (s Settings) ResolveTextColor() TextColor {
	if c, ok := TextColors[s.TextColor]; ok {
		return c
	}
	return TextColors["dark"]
}
