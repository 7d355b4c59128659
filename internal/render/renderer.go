package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bobby-s-dev/pinkweather/internal/layout"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

const (
	DisplayWidth  = 400
	DisplayHeight = 300

	headerHeight   = 34
	forecastHeight = 64
	margin         = 6
)

// NarrativeBox is the pixel box reserved for the narrative text.
var NarrativeBox = image.Rect(margin, headerHeight, DisplayWidth-margin, DisplayHeight-forecastHeight)

var (
	White = color.RGBA{0xff, 0xff, 0xff, 0xff}
	Black = color.RGBA{0x00, 0x00, 0x00, 0xff}
	Red   = color.RGBA{0xff, 0x00, 0x00, 0xff}

	// Palette is the panel's three ink colors.
	Palette = color.Palette{White, Black, Red}
)

type ForecastCell struct {
	Label string `json:"label"`
	Temp  string `json:"temp"`
	Icon  string `json:"icon"`
	// Special marks a sunrise or sunset cell.
	Special bool `json:"special,omitempty"`
}

// Frame is everything drawn in one display refresh.
type Frame struct {
	Header    string
	SubHeader string
	Narrative layout.Result
	Forecast  []ForecastCell
}

type Renderer struct {
	metrics *Metrics
	backend Backend
}

func NewRenderer(metrics *Metrics, backend Backend) *Renderer {
	return &Renderer{metrics: metrics, backend: backend}
}

func (r *Renderer) Backend() string {
	return r.backend.Name()
}

// Render draws a frame onto a fresh paletted image.
func (r *Renderer) Render(f Frame) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, DisplayWidth, DisplayHeight), Palette)
	draw.Draw(img, img.Bounds(), image.NewUniform(White), image.Point{}, draw.Src)

	r.drawHeader(img, f)
	r.drawNarrative(img, f.Narrative)
	r.drawForecast(img, f.Forecast)
	return img
}

func (r *Renderer) drawHeader(img *image.Paletted, f Frame) {
	bold := markup.Style{Hyperlegible: true, Bold: true}
	r.drawText(img, margin, r.metrics.Ascent(bold)+4, f.Header, bold, Black)

	if f.SubHeader != "" {
		st := markup.Style{Hyperlegible: true}
		x := DisplayWidth - margin - r.metrics.TextWidth(f.SubHeader, st)
		r.drawText(img, x, r.metrics.Ascent(st)+4, f.SubHeader, st, Black)
	}
	hline(img, 0, DisplayWidth, headerHeight-3, Black)
}

func (r *Renderer) drawNarrative(img *image.Paletted, res layout.Result) {
	// clip so a degraded (overflowing) narrative cannot draw over the forecast row
	clip := img.SubImage(NarrativeBox).(*image.Paletted)

	top := NarrativeBox.Min.Y
	for _, line := range res.Lines {
		if top >= NarrativeBox.Max.Y {
			break
		}
		baseline := top + ascentFor(line, r.metrics)
		x := NarrativeBox.Min.X
		for _, run := range line.Runs {
			c := Black
			if run.Accent {
				c = Red
			}
			x = r.drawText(clip, x, baseline, run.Text, run.Style, c)
		}
		top += line.Height
	}

	if res.Overflow {
		for i := 0; i < 6; i++ {
			hline(img, NarrativeBox.Max.X-6+i, NarrativeBox.Max.X, NarrativeBox.Max.Y-6+i, Red)
		}
	}
}

func ascentFor(line layout.Line, m *Metrics) int {
	a := 0
	for _, run := range line.Runs {
		if v := m.Ascent(run.Style); v > a {
			a = v
		}
	}
	if a == 0 {
		a = m.Ascent(markup.Style{})
	}
	// center the ascent in the line's leading
	return a + (line.Height-m.LineHeight(markup.Style{}))/2 + 4
}

func (r *Renderer) drawForecast(img *image.Paletted, cells []ForecastCell) {
	if len(cells) == 0 {
		return
	}
	if len(cells) > 5 {
		cells = cells[:5]
	}
	y0 := DisplayHeight - forecastHeight
	hline(img, 0, DisplayWidth, y0, Black)

	cellWidth := DisplayWidth / len(cells)
	label := markup.Style{}
	temp := markup.Style{Hyperlegible: true}
	for i, c := range cells {
		cx := i*cellWidth + cellWidth/2

		lc := Black
		if c.Special {
			lc = Red
		}
		lw := r.metrics.TextWidth(c.Label, label)
		r.drawText(img, cx-lw/2, y0+18, c.Label, label, lc)

		iw := r.metrics.TextWidth(c.Icon, label)
		r.drawText(img, cx-iw/2, y0+38, c.Icon, label, iconColor(c.Icon))

		tw := r.metrics.TextWidth(c.Temp, temp)
		r.drawText(img, cx-tw/2, y0+58, c.Temp, temp, Black)
	}
}

// iconColor draws severe-weather icon codes in red.
func iconColor(icon string) color.Color {
	if len(icon) >= 2 && (icon[:2] == "11" || icon[:2] == "13") {
		return Red
	}
	return Black
}

// drawText places each glyph at the origin Metrics dictates and returns the
// pen position after the last glyph.
func (r *Renderer) drawText(dst draw.Image, x, baseline int, s string, st markup.Style, c color.Color) int {
	for _, ch := range s {
		if ch != ' ' {
			r.backend.DrawGlyph(dst, x, baseline, ch, st, c)
		}
		x += r.metrics.Advance(ch, st)
	}
	return x
}

func hline(img draw.Image, x0, x1, y int, c color.Color) {
	for x := x0; x < x1; x++ {
		img.Set(x, y, c)
	}
}
