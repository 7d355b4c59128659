package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

// Backend rasterizes single glyphs. Callers compute every glyph origin from
// Metrics, so two backends can differ in how glyphs look but never in
// where lines break or runs start.
type Backend interface {
	Name() string
	DrawGlyph(dst draw.Image, x, baseline int, r rune, st markup.Style, c color.Color)
}

// BackendByName returns the backend configured as "bitmap" or "preview".
func BackendByName(name string) (Backend, error) {
	switch name {
	case "", "bitmap":
		return NewBitmapBackend(), nil
	case "preview":
		return NewPreviewBackend(), nil
	}
	return nil, fmt.Errorf("unknown display backend %q", name)
}

// BitmapBackend mimics the device rasterizer: 1-bit glyph cells, bold by
// double strike, italic by shearing the cell.
type BitmapBackend struct {
	face *basicfont.Face
}

func NewBitmapBackend() *BitmapBackend {
	return &BitmapBackend{face: basicfont.Face7x13}
}

func (b *BitmapBackend) Name() string {
	return "bitmap"
}

func (b *BitmapBackend) DrawGlyph(dst draw.Image, x, baseline int, r rune, st markup.Style, c color.Color) {
	dr, mask, maskp, _, ok := b.face.Glyph(fixed.P(x, baseline), r)
	if !ok {
		return
	}
	strikes := 1
	if st.Bold {
		strikes = 2
	}
	for s := 0; s < strikes; s++ {
		for y := dr.Min.Y; y < dr.Max.Y; y++ {
			shift := s
			if st.Italic {
				shift += (dr.Max.Y - y) / 4
			}
			for xx := dr.Min.X; xx < dr.Max.X; xx++ {
				_, _, _, a := mask.At(maskp.X+xx-dr.Min.X, maskp.Y+y-dr.Min.Y).RGBA()
				if a >= 0x8000 {
					dst.Set(xx+shift, y, c)
				}
			}
		}
	}
}

// PreviewBackend draws with the inconsolata faces through font.Drawer,
// used by the preview server.
type PreviewBackend struct {
	regular font.Face
	bold    font.Face
}

func NewPreviewBackend() *PreviewBackend {
	return &PreviewBackend{
		regular: inconsolata.Regular8x16,
		bold:    inconsolata.Bold8x16,
	}
}

func (p *PreviewBackend) Name() string {
	return "preview"
}

func (p *PreviewBackend) DrawGlyph(dst draw.Image, x, baseline int, r rune, st markup.Style, c color.Color) {
	face := p.regular
	if st.Bold {
		face = p.bold
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(string(r))
}

var (
	_ Backend = (*BitmapBackend)(nil)
	_ Backend = (*PreviewBackend)(nil)
)
