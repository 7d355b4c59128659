// Package markup parses narrative markup into styled text runs.
//
// The grammar is a small XML subset: the tags b, i, bi, red and h, no
// attributes, strict nesting. Text between tags is kept byte for byte,
// whitespace included, because pixel layout depends on it.
package markup

import (
	"fmt"
	"strings"
)

// Style is the set of flags accumulated from enclosing tags.
type Style struct {
	Bold         bool `json:"bold"`
	Italic       bool `json:"italic"`
	Accent       bool `json:"accent"`
	Hyperlegible bool `json:"hyperlegible"`
}

// StyledRun is a span of text sharing one style combination.
type StyledRun struct {
	Text string `json:"text"`
	Style
}

// ParseError reports malformed markup. Offset is a byte index into the input.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("markup: %s at offset %d", e.Msg, e.Offset)
}

var tagStyles = map[string]Style{
	"b":   {Bold: true},
	"i":   {Italic: true},
	"bi":  {Bold: true, Italic: true},
	"red": {Accent: true},
	"h":   {Hyperlegible: true},
}

type frame struct {
	name   string
	offset int
	style  Style
}

// Parse turns markup into runs, one per non-empty text node.
func Parse(s string) ([]StyledRun, error) {
	var (
		runs  []StyledRun
		stack []frame
		cur   Style
		text  strings.Builder
	)

	flush := func() {
		if text.Len() == 0 {
			return
		}
		runs = append(runs, StyledRun{Text: text.String(), Style: cur})
		text.Reset()
	}

	for i := 0; i < len(s); {
		if s[i] != '<' {
			next := strings.IndexByte(s[i:], '<')
			if next < 0 {
				next = len(s) - i
			}
			text.WriteString(s[i : i+next])
			i += next
			continue
		}

		end := strings.IndexByte(s[i:], '>')
		if end < 0 {
			return nil, &ParseError{Offset: i, Msg: "unterminated tag"}
		}
		body := s[i+1 : i+end]
		closing := strings.HasPrefix(body, "/")
		name := strings.TrimPrefix(body, "/")

		if name == "" {
			return nil, &ParseError{Offset: i, Msg: "empty tag"}
		}
		if strings.ContainsAny(name, " \t\r\n=\"'/<") {
			return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("malformed tag %q", body)}
		}
		tagStyle, ok := tagStyles[name]
		if !ok {
			return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("unknown tag %q", name)}
		}

		flush()
		if closing {
			if len(stack) == 0 {
				return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("unexpected </%s>", name)}
			}
			top := stack[len(stack)-1]
			if top.name != name {
				return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("</%s> closes <%s> opened at %d", name, top.name, top.offset)}
			}
			stack = stack[:len(stack)-1]
			cur = top.style
		} else {
			stack = append(stack, frame{name: name, offset: i, style: cur})
			cur = merge(cur, tagStyle)
		}
		i += end + 1
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, &ParseError{Offset: top.offset, Msg: fmt.Sprintf("unclosed <%s>", top.name)}
	}
	flush()
	return runs, nil
}

func merge(a, b Style) Style {
	return Style{
		Bold:         a.Bold || b.Bold,
		Italic:       a.Italic || b.Italic,
		Accent:       a.Accent || b.Accent,
		Hyperlegible: a.Hyperlegible || b.Hyperlegible,
	}
}

// Strip removes recognized and unrecognized tags alike. It does not validate.
func Strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '<' {
			if end := strings.IndexByte(s[i:], '>'); end >= 0 {
				i += end
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Text concatenates the text of all runs.
func Text(runs []StyledRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
