// Package layout wraps styled runs into lines that must fit a pixel box.
//
// Wrapping is greedy and only ever happens at whitespace. A token is a
// maximal stretch of non-whitespace characters and may span several runs
// (a hyperlegible numeral followed by a regular degree sign is one token).
// Content that does not fit the height budget is reported through
// Result.Overflow and is never dropped.
package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

// Measurer supplies glyph metrics. The layout engine and every render
// backend must share one Measurer so wrap decisions agree.
type Measurer interface {
	Advance(r rune, st markup.Style) int
	LineHeight(st markup.Style) int
}

type Line struct {
	Runs   []markup.StyledRun `json:"runs"`
	Width  int                `json:"width_px"`
	Height int                `json:"height_px"`
}

// Text returns the line's characters without styling.
func (l Line) Text() string {
	return markup.Text(l.Runs)
}

type Result struct {
	Lines       []Line `json:"lines"`
	TotalHeight int    `json:"total_height_px"`
	MaxWidth    int    `json:"max_width_px"`
	MaxHeight   int    `json:"max_height_px"`
	Overflow    bool   `json:"overflow"`
}

// MaxLineWidth returns the widest line in pixels.
func (r Result) MaxLineWidth() int {
	w := 0
	for _, l := range r.Lines {
		if l.Width > w {
			w = l.Width
		}
	}
	return w
}

type piece struct {
	text  string
	style markup.Style
	width int
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenSpace
	tokenBreak
)

type token struct {
	kind   tokenKind
	pieces []piece
	width  int
}

// Layout wraps runs into lines no wider than maxWidth where possible.
func Layout(runs []markup.StyledRun, m Measurer, maxWidth, maxHeight int) Result {
	tokens := tokenize(runs, m)

	var (
		lines   []Line
		cur     []piece
		width   int
		pending *token // whitespace seen since the last word
	)

	closeLine := func() {
		lines = append(lines, newLine(cur, width, m))
		cur = nil
		width = 0
	}

	for i := range tokens {
		tok := &tokens[i]
		switch tok.kind {
		case tokenBreak:
			pending = nil
			closeLine()
		case tokenSpace:
			pending = tok
		case tokenWord:
			gap := pendingWidth(pending)
			if len(cur) > 0 && width+gap+tok.width > maxWidth {
				// whitespace at a break is consumed
				closeLine()
				pending = nil
			}
			if pending != nil {
				cur = append(cur, pending.pieces...)
				width += pending.width
				pending = nil
			}
			cur = append(cur, tok.pieces...)
			width += tok.width
		}
	}

	if pending != nil && width+pending.width <= maxWidth {
		cur = append(cur, pending.pieces...)
		width += pending.width
	}
	if len(cur) > 0 {
		closeLine()
	}

	res := Result{Lines: lines, MaxWidth: maxWidth, MaxHeight: maxHeight}
	for _, l := range lines {
		res.TotalHeight += l.Height
	}
	res.Overflow = res.TotalHeight > maxHeight
	return res
}

func pendingWidth(t *token) int {
	if t == nil {
		return 0
	}
	return t.width
}

func tokenize(runs []markup.StyledRun, m Measurer) []token {
	var (
		tokens []token
		cur    *token
	)
	emit := func() {
		if cur != nil {
			tokens = append(tokens, *cur)
			cur = nil
		}
	}

	for _, run := range runs {
		text := run.Text
		for len(text) > 0 {
			r, _ := utf8.DecodeRuneInString(text)
			var kind tokenKind
			switch {
			case r == '\n':
				kind = tokenBreak
			case unicode.IsSpace(r):
				kind = tokenSpace
			default:
				kind = tokenWord
			}

			if kind == tokenBreak {
				emit()
				tokens = append(tokens, token{kind: tokenBreak})
				text = text[1:]
				continue
			}

			n := spanLen(text, kind == tokenSpace)
			seg := text[:n]
			text = text[n:]

			if cur == nil || cur.kind != kind {
				emit()
				cur = &token{kind: kind}
			}
			w := measure(seg, run.Style, m)
			cur.pieces = append(cur.pieces, piece{text: seg, style: run.Style, width: w})
			cur.width += w
		}
	}
	emit()
	return tokens
}

// spanLen returns the byte length of the leading stretch of s that is all
// whitespace (space=true) or all non-whitespace, stopping at newlines.
func spanLen(s string, space bool) int {
	for i, r := range s {
		if r == '\n' || unicode.IsSpace(r) != space {
			return i
		}
	}
	return len(s)
}

func measure(s string, st markup.Style, m Measurer) int {
	w := 0
	for _, r := range s {
		w += m.Advance(r, st)
	}
	return w
}

func newLine(pieces []piece, width int, m Measurer) Line {
	line := Line{Width: width}
	for _, p := range pieces {
		if h := m.LineHeight(p.style); h > line.Height {
			line.Height = h
		}
		if n := len(line.Runs); n > 0 && line.Runs[n-1].Style == p.style {
			line.Runs[n-1].Text += p.text
			continue
		}
		line.Runs = append(line.Runs, markup.StyledRun{Text: p.text, Style: p.style})
	}
	if line.Height == 0 {
		line.Height = m.LineHeight(markup.Style{})
	}
	return line
}

// String renders the wrapped text with one line per row, for debugging.
func (r Result) String() string {
	rows := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		rows[i] = l.Text()
	}
	return strings.Join(rows, "\n")
}
