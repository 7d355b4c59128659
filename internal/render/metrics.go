package render

import (
	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

// Face identifies one embedded bitmap font.
type Face int

const (
	FaceRegular Face = iota
	FaceBold
	FaceItalic
	FaceBoldItalic
	FaceHyper
	FaceHyperBold
)

func (f Face) String() string {
	switch f {
	case FaceBold:
		return "vollkorn20black"
	case FaceItalic:
		return "vollkorn20italic"
	case FaceBoldItalic:
		return "vollkorn20blackitalic"
	case FaceHyper:
		return "hyperl20reg"
	case FaceHyperBold:
		return "hyperl20bold"
	default:
		return "vollkorn20reg"
	}
}

// FaceFor picks the font a style is drawn with. Hyperlegible wins over italic.
func FaceFor(st markup.Style) Face {
	switch {
	case st.Hyperlegible && st.Bold:
		return FaceHyperBold
	case st.Hyperlegible:
		return FaceHyper
	case st.Bold && st.Italic:
		return FaceBoldItalic
	case st.Bold:
		return FaceBold
	case st.Italic:
		return FaceItalic
	default:
		return FaceRegular
	}
}

type faceMetrics struct {
	advance    [128]uint8
	fallback   uint8
	ascent     int
	lineHeight int
}

// Metrics is the glyph-advance table for the device's 20px font set. Each
// face assigns glyphs to a few hand-picked width classes approximating the
// Vollkorn and Atkinson Hyperlegible advances. The layout engine and both
// render backends read positions from here and nowhere else.
type Metrics struct {
	faces [6]faceMetrics
}

type widthClass struct {
	chars string
	width uint8
}

var vollkornClasses = []widthClass{
	{" ", 5},
	{"ijl.,:;'!|`", 5},
	{"frt()[]{}-\"/", 7},
	{"acesz?", 9},
	{"0123456789", 10},
	{"ABCDEFGHKLNOPQRSTUVXYZ&", 13},
	{"IJ", 7},
	{"mw%@", 15},
	{"MW", 18},
	{"+=<>~^*#$_", 10},
}

var hyperlegibleClasses = []widthClass{
	{" ", 5},
	{"ijl.,:;'!|`", 5},
	{"frt()[]{}-\"/", 7},
	{"0123456789", 11},
	{"ABCDEFGHKLNOPQRSTUVXYZ&", 13},
	{"IJ", 6},
	{"mw%@", 16},
	{"MW", 18},
}

// degree sign and the other non-ASCII glyphs present in the fonts
var extraAdvances = map[rune]uint8{
	'°':      7,
	'…':      14,
	'–':      10,
	'\u2014': 18,
}

func buildFace(classes []widthClass, fallback uint8, delta int, ascent, lineHeight int) faceMetrics {
	fm := faceMetrics{fallback: fallback, ascent: ascent, lineHeight: lineHeight}
	for i := range fm.advance {
		fm.advance[i] = fallback
	}
	for _, c := range classes {
		for _, r := range c.chars {
			w := int(c.width)
			if r != ' ' {
				w += delta
			}
			fm.advance[r] = uint8(w)
		}
	}
	return fm
}

// NewMetrics returns the width-class table for the 20px font set.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.faces[FaceRegular] = buildFace(vollkornClasses, 10, 0, 16, 30)
	m.faces[FaceBold] = buildFace(vollkornClasses, 11, 1, 16, 30)
	m.faces[FaceItalic] = buildFace(vollkornClasses, 10, 0, 16, 30)
	m.faces[FaceBoldItalic] = buildFace(vollkornClasses, 11, 1, 16, 30)
	m.faces[FaceHyper] = buildFace(hyperlegibleClasses, 11, 0, 17, 32)
	m.faces[FaceHyperBold] = buildFace(hyperlegibleClasses, 12, 1, 17, 32)
	return m
}

// Advance implements layout.Measurer.
func (m *Metrics) Advance(r rune, st markup.Style) int {
	return m.advance(r, FaceFor(st))
}

// LineHeight implements layout.Measurer.
func (m *Metrics) LineHeight(st markup.Style) int {
	return m.faces[FaceFor(st)].lineHeight
}

// Ascent is the baseline offset from the top of a line for the face.
func (m *Metrics) Ascent(st markup.Style) int {
	return m.faces[FaceFor(st)].ascent
}

func (m *Metrics) advance(r rune, f Face) int {
	fm := &m.faces[f]
	if r >= 0 && r < 128 {
		if r < ' ' {
			return 0
		}
		return int(fm.advance[r])
	}
	if w, ok := extraAdvances[r]; ok {
		if f == FaceBold || f == FaceBoldItalic || f == FaceHyperBold {
			return int(w) + 1
		}
		return int(w)
	}
	return int(fm.fallback)
}

// TextWidth measures s in one style.
func (m *Metrics) TextWidth(s string, st markup.Style) int {
	w := 0
	for _, r := range s {
		w += m.Advance(r, st)
	}
	return w
}
