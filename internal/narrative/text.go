package narrative

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bobby-s-dev/pinkweather/internal/markup"
)

// formatTemp rounds to whole degrees and never prints "-0".
func formatTemp(v float64) string {
	r := math.Round(v)
	if r == 0 {
		return "0"
	}
	return strconv.Itoa(int(r))
}

func deg(v float64) string {
	return "<h>" + formatTemp(v) + "</h>°"
}

// clockPhrase names an hour the way the narrative speaks about precipitation
// ending: "around 3p", "around noon", "around midnight".
func clockPhrase(t time.Time) string {
	h := t.Hour()
	switch {
	case h == 0:
		return "around midnight"
	case h == 12:
		return "around noon"
	case h < 12:
		return "around <h>" + strconv.Itoa(h) + "</h>a"
	default:
		return "around <h>" + strconv.Itoa(h-12) + "</h>p"
	}
}

// startPhrase is clockPhrase with the small hours folded into "overnight".
func startPhrase(t time.Time) string {
	if h := t.Hour(); h <= 8 {
		return "overnight"
	}
	return clockPhrase(t)
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h <= 11:
		return "morning"
	case h >= 12 && h <= 17:
		return "afternoon"
	case h >= 18 && h <= 22:
		return "evening"
	default:
		return "overnight"
	}
}

func clockTime(t time.Time) string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	suffix := "a"
	if t.Hour() >= 12 {
		suffix = "p"
	}
	return "<h>" + strconv.Itoa(h) + ":" + t.Format("04") + "</h>" + suffix
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// abbreviations shorten a narrative that still does not fit after the
// short fragment variants. Order matters: longer phrases come first.
var abbreviations = []struct{ long, short string }{
	{"Tomorrow", "Tmrrw"},
	{"yesterday", "yday"},
	{"Expected", "Exp"},
	{"expected", "exp"},
	{"around ", "~"},
	{"afternoon", "PM"},
	{"morning", "AM"},
	{"evening", "eve"},
	{"overnight", "o/n"},
	{"likely", "prob"},
	{"possible", "poss"},
	{"Thunderstorms", "T-storms"},
	{"thunderstorms", "t-storms"},
	{"clearing", "clear"},
	{"starting", "start"},
	{"feels like", "feels"},
	{"due to wind gusts", "gusts"},
	{"due to wind", "wind"},
	{"due to high humidity", "humid"},
	{"due to humidity", "humid"},
	{"Air quality", "AQI"},
}

func abbreviate(s string) string {
	for _, a := range abbreviations {
		s = strings.ReplaceAll(s, a.long, a.short)
	}
	return s
}

func endsSentence(text string) bool {
	clean := strings.TrimRightFunc(markup.Strip(text), unicode.IsSpace)
	return strings.HasSuffix(clean, ".") || strings.HasSuffix(clean, "!") || strings.HasSuffix(clean, "?")
}

// join strings fragments into sentences, adding a full stop wherever a
// fragment does not already end one.
func join(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			if endsSentence(b.String()) {
				b.WriteString(" ")
			} else {
				b.WriteString(". ")
			}
		}
		b.WriteString(p)
	}
	out := b.String()
	if out != "" && !endsSentence(out) {
		out += "."
	}
	return out
}
