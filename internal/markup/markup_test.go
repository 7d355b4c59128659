package markup

import (
	"errors"
	"testing"
)

func TestParseNested(t *testing.T) {
	runs, err := Parse("<b>Hi <i>there</i></b>")
	if err != nil {
		t.Fatal(err)
	}
	want := []StyledRun{
		{Text: "Hi ", Style: Style{Bold: true}},
		{Text: "there", Style: Style{Bold: true, Italic: true}},
	}
	if len(runs) != len(want) {
		t.Fatalf("expected %d runs, got %d: %+v", len(want), len(runs), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d: expected %+v, got %+v", i, want[i], runs[i])
		}
	}
}

func TestParseCombinesAccentAndHyperlegible(t *testing.T) {
	runs, err := Parse("It is <red><h>8</h>° warmer</red>.")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected 4 runs, got %+v", runs)
	}
	if !runs[1].Accent || !runs[1].Hyperlegible || runs[1].Text != "8" {
		t.Errorf("unexpected run %+v", runs[1])
	}
	if !runs[2].Accent || runs[2].Hyperlegible {
		t.Errorf("unexpected run %+v", runs[2])
	}
	if runs[3] != (StyledRun{Text: "."}) {
		t.Errorf("unexpected run %+v", runs[3])
	}
}

func TestParseStripRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"  leading and trailing  ",
		"<b>Hi <i>there</i></b>",
		"Clear and <red>freezing,</red> <h>-3</h>° (<i>feels like</i> <h>-9</h>°)",
		"a<b> </b>b\n<bi>tabs\tkept</bi>",
		"<red><bi>much</bi> warmer than yesterday.</red>",
		"<h></h>empty nodes are fine",
		"arrows > are text",
	}
	for _, in := range inputs {
		runs, err := Parse(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got, want := Text(runs), Strip(in); got != want {
			t.Errorf("%q: runs concatenate to %q, want %q", in, got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unbalanced":    "<b>Hi</i>",
		"crossing":      "<b><i>x</b></i>",
		"unknown tag":   "<u>x</u>",
		"attribute":     `<b class="x">x</b>`,
		"unterminated":  "<b>x</b",
		"unclosed":      "<red>x",
		"stray closing": "x</b>",
		"empty":         "<>x",
		"self closing":  "<b/>",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			runs, err := Parse(in)
			if err == nil {
				t.Fatalf("expected error, got runs %+v", runs)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseErrorOffset(t *testing.T) {
	_, err := Parse("<b>Hi</i>")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Offset != 5 {
		t.Errorf("expected offset 5, got %d", perr.Offset)
	}
}
