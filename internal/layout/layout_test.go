package layout

import (
	"strings"
	"testing"
	"unicode"

	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

// fixedMeasurer gives every rune the same advance; hyperlegible lines are taller.
type fixedMeasurer struct {
	advance int
	height  int
	tall    int
}

func (f fixedMeasurer) Advance(r rune, st markup.Style) int {
	return f.advance
}

func (f fixedMeasurer) LineHeight(st markup.Style) int {
	if st.Hyperlegible && f.tall > 0 {
		return f.tall
	}
	return f.height
}

func mustParse(t *testing.T, s string) []markup.StyledRun {
	t.Helper()
	runs, err := markup.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return runs
}

func TestLayoutGreedyWrap(t *testing.T) {
	m := fixedMeasurer{advance: 10, height: 20}
	res := Layout(mustParse(t, "aaa bbb ccc dddd"), m, 70, 100)

	want := []string{"aaa bbb", "ccc", "dddd"}
	if len(res.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), res.String())
	}
	for i, w := range want {
		if got := res.Lines[i].Text(); got != w {
			t.Errorf("line %d: expected %q, got %q", i, w, got)
		}
	}
	if res.Lines[0].Width != 70 {
		t.Errorf("expected first line width 70, got %d", res.Lines[0].Width)
	}
	if res.TotalHeight != 60 || res.Overflow {
		t.Errorf("expected 60px without overflow, got %d overflow=%v", res.TotalHeight, res.Overflow)
	}
}

func TestLayoutOversizeTokenStandsAlone(t *testing.T) {
	m := fixedMeasurer{advance: 10, height: 20}
	res := Layout(mustParse(t, "hi extraordinarily ok"), m, 50, 100)

	want := []string{"hi", "extraordinarily", "ok"}
	if len(res.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), res.String())
	}
	for i, w := range want {
		if got := res.Lines[i].Text(); got != w {
			t.Errorf("line %d: expected %q, got %q", i, w, got)
		}
	}
	if res.Lines[1].Width != 150 {
		t.Errorf("expected oversize line to keep its full width, got %d", res.Lines[1].Width)
	}
}

func TestLayoutTokenSpansRuns(t *testing.T) {
	m := fixedMeasurer{advance: 10, height: 20, tall: 26}
	res := Layout(mustParse(t, "temp <h>12</h>°C now"), m, 80, 100)

	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", res.String())
	}
	if got := res.Lines[1].Text(); got != "12°C now" {
		t.Fatalf("expected the numeral and unit to stay together, got %q", got)
	}
	if res.Lines[0].Height != 20 || res.Lines[1].Height != 26 {
		t.Errorf("expected heights 20 and 26, got %d and %d", res.Lines[0].Height, res.Lines[1].Height)
	}
	if len(res.Lines[1].Runs) != 2 || !res.Lines[1].Runs[0].Hyperlegible {
		t.Errorf("unexpected runs %+v", res.Lines[1].Runs)
	}
}

func TestLayoutNeverBreaksInsideToken(t *testing.T) {
	input := "Clear and <red>freezing,</red> <h>-3</h>° (<i>feels like</i> <h>-9</h>° due to wind). " +
		"<red><bi>much</bi> colder than yesterday.</red> <b>Tomorrow:</b> sunny skies, h:<h>2</h>° l:<h>-6</h>°."
	runs := mustParse(t, input)
	words := strings.Fields(markup.Text(runs))

	for _, width := range []int{40, 90, 130, 200, 400} {
		res := Layout(runs, fixedMeasurer{advance: 7, height: 20}, width, 1000)
		var got []string
		for _, l := range res.Lines {
			got = append(got, strings.Fields(l.Text())...)
		}
		if strings.Join(got, " ") != strings.Join(words, " ") {
			t.Fatalf("width %d: tokens changed:\n got %q\nwant %q", width, got, words)
		}
		for i, l := range res.Lines {
			text := l.Text()
			if text != strings.TrimRightFunc(text, unicode.IsSpace) && i < len(res.Lines)-1 {
				t.Errorf("width %d line %d keeps whitespace at a break: %q", width, i, text)
			}
		}
	}
}

func TestLayoutOverflowBoundary(t *testing.T) {
	m := fixedMeasurer{advance: 10, height: 20}
	runs := mustParse(t, "one two three four five")

	res := Layout(runs, m, 40, 100)
	if res.TotalHeight != 100 {
		t.Fatalf("expected 100px, got %d (%q)", res.TotalHeight, res.String())
	}
	if res.Overflow {
		t.Error("total equal to max must not overflow")
	}

	res = Layout(runs, m, 40, 99)
	if !res.Overflow {
		t.Error("expected overflow one pixel below the total height")
	}
	if len(res.Lines) != 5 {
		t.Errorf("expected all 5 lines to be kept, got %d", len(res.Lines))
	}
}

func TestLayoutOverflowKeepsEveryLine(t *testing.T) {
	// 31 lines of 10px each: 310px against a 300px budget.
	m := fixedMeasurer{advance: 10, height: 10}
	words := make([]string, 31)
	for i := range words {
		words[i] = strings.Repeat("w", 40)
	}
	res := Layout(mustParse(t, strings.Join(words, " ")), m, 400, 300)

	if len(res.Lines) != 31 {
		t.Fatalf("expected 31 lines, got %d", len(res.Lines))
	}
	if res.TotalHeight != 310 || !res.Overflow {
		t.Errorf("expected 310px with overflow, got %d overflow=%v", res.TotalHeight, res.Overflow)
	}
}

func TestLayoutForcedBreak(t *testing.T) {
	m := fixedMeasurer{advance: 10, height: 20}
	res := Layout(mustParse(t, "first\nsecond line"), m, 400, 100)
	if len(res.Lines) != 2 || res.Lines[0].Text() != "first" || res.Lines[1].Text() != "second line" {
		t.Fatalf("unexpected lines %q", res.String())
	}
}

func TestLayoutEmpty(t *testing.T) {
	res := Layout(nil, fixedMeasurer{advance: 10, height: 20}, 400, 300)
	if len(res.Lines) != 0 || res.TotalHeight != 0 || res.Overflow {
		t.Fatalf("unexpected result %+v", res)
	}
}
