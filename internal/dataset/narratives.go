package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/engine"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

// NarrativeColumns is the header of the narrative CSV, in order.
var NarrativeColumns = []string{
	"timestamp", "date", "hour", "narrative_text", "text_length_px",
	"text_height_px", "line_count", "fits_display", "temp", "weather_desc",
}

// NarrativeRow is one generated narrative with its measured layout.
type NarrativeRow struct {
	Timestamp   int64    `json:"timestamp"`
	Date        string   `json:"date"`
	Hour        string   `json:"hour"`
	Text        string   `json:"narrative_text"`
	WidthPx     int      `json:"text_length_px"`
	HeightPx    int      `json:"text_height_px"`
	LineCount   int      `json:"line_count"`
	Fits        bool     `json:"fits_display"`
	Temp        *float64 `json:"temp,omitempty"`
	WeatherDesc string   `json:"weather_desc"`
}

// RowError locates a malformed narrative CSV record.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("narrative csv line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// MismatchError reports a row whose recorded fit disagrees with a fresh
// layout.
type MismatchError struct {
	Timestamp int64
	Recorded  bool
	Actual    bool
	HeightPx  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("narrative %d: recorded fits_display=%t, layout gives %t (%dpx)",
		e.Timestamp, e.Recorded, e.Actual, e.HeightPx)
}

// RowFromOutput records an engine output for the snapshot it came from.
func RowFromOutput(s models.WeatherSnapshot, out engine.Output) NarrativeRow {
	return NarrativeRow{
		Timestamp:   s.Timestamp,
		Date:        s.Date(),
		Hour:        s.Local.Format("15:04"),
		Text:        out.Markup,
		WidthPx:     out.Layout.MaxLineWidth(),
		HeightPx:    out.Layout.TotalHeight,
		LineCount:   len(out.Layout.Lines),
		Fits:        !out.Layout.Overflow,
		Temp:        s.Temp,
		WeatherDesc: s.ConditionText(),
	}
}

// VerifyRow lays the row's narrative out again and fails when the result
// disagrees with the recorded fits_display.
func VerifyRow(row NarrativeRow, e *engine.Engine) error {
	_, res, err := e.Measure(row.Text)
	if err != nil {
		return fmt.Errorf("narrative %d: %w", row.Timestamp, err)
	}
	if row.Fits != !res.Overflow {
		return &MismatchError{Timestamp: row.Timestamp, Recorded: row.Fits, Actual: !res.Overflow, HeightPx: res.TotalHeight}
	}
	return nil
}

// Snapshot rebuilds the minimal snapshot a row was generated from.
func (r NarrativeRow) Snapshot(loc *time.Location) (models.WeatherSnapshot, error) {
	temp := ""
	if r.Temp != nil {
		temp = strconv.FormatFloat(*r.Temp, 'f', -1, 64)
	}
	header := []string{"timestamp", "temp", "weather_desc"}
	rec := []string{strconv.FormatInt(r.Timestamp, 10), temp, r.WeatherDesc}
	return normalize.FromCSVRow(header, rec, normalize.NarrativeMapping, loc)
}

// CharCount is the narrative length without markup.
func (r NarrativeRow) CharCount() int {
	return len([]rune(markup.Strip(r.Text)))
}

func WriteNarratives(w io.Writer, rows []NarrativeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NarrativeColumns); err != nil {
		return err
	}
	for _, r := range rows {
		temp := ""
		if r.Temp != nil {
			temp = strconv.FormatFloat(*r.Temp, 'f', 1, 64)
		}
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Date,
			r.Hour,
			r.Text,
			strconv.Itoa(r.WidthPx),
			strconv.Itoa(r.HeightPx),
			strconv.Itoa(r.LineCount),
			strconv.FormatBool(r.Fits),
			temp,
			r.WeatherDesc,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadNarratives parses a narrative CSV. Columns are matched by header
// name; unknown columns are ignored.
func ReadNarratives(r io.Reader) ([]NarrativeRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("narrative csv is empty")
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"timestamp", "narrative_text", "fits_display"} {
		if _, ok := index[required]; !ok {
			return nil, &RowError{Line: 1, Column: required, Err: errors.New("missing column")}
		}
	}

	var rows []NarrativeRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p := rowParser{index: index, rec: rec, line: line}
		row := NarrativeRow{
			Timestamp:   p.parseInt64("timestamp"),
			Date:        p.text("date"),
			Hour:        p.text("hour"),
			Text:        p.text("narrative_text"),
			WidthPx:     p.parseInt("text_length_px"),
			HeightPx:    p.parseInt("text_height_px"),
			LineCount:   p.parseInt("line_count"),
			Fits:        p.parseBool("fits_display"),
			Temp:        p.parseFloat("temp"),
			WeatherDesc: p.text("weather_desc"),
		}
		if p.err != nil {
			return nil, p.err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// rowParser keeps the first conversion error so a record can be read
// field by field.
type rowParser struct {
	index map[string]int
	rec   []string
	line  int
	err   error
}

func (p *rowParser) text(col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return p.rec[i]
}

func (p *rowParser) fail(col string, err error) {
	if p.err == nil {
		p.err = &RowError{Line: p.line, Column: col, Err: err}
	}
}

func (p *rowParser) parseInt64(col string) int64 {
	v := strings.TrimSpace(p.text(col))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(col, err)
	}
	return n
}

func (p *rowParser) parseInt(col string) int {
	return int(p.parseInt64(col))
}

func (p *rowParser) parseBool(col string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(p.text(col)))
	if err != nil {
		p.fail(col, err)
	}
	return b
}

func (p *rowParser) parseFloat(col string) *float64 {
	v := strings.TrimSpace(p.text(col))
	switch strings.ToLower(v) {
	case "", "nan", "null":
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, err)
		return nil
	}
	return &f
}

// Summary counts the rows of a generated narrative set.
type Summary struct {
	Total        int     `json:"total"`
	Overflows    int     `json:"overflows"`
	OverflowRate float64 `json:"overflow_rate"`
	AvgChars     float64 `json:"avg_chars"`
	AvgLines     float64 `json:"avg_lines"`
}

func Summarize(rows []NarrativeRow) Summary {
	sum := Summary{Total: len(rows)}
	if len(rows) == 0 {
		return sum
	}
	var chars, lines int
	for _, r := range rows {
		if !r.Fits {
			sum.Overflows++
		}
		chars += r.CharCount()
		lines += r.LineCount
	}
	n := float64(len(rows))
	sum.OverflowRate = float64(sum.Overflows) / n
	sum.AvgChars = float64(chars) / n
	sum.AvgLines = float64(lines) / n
	return sum
}

// Generate runs the engine over every hourly row of the series, up to
// limit rows when limit is positive. It stops at the first failure.
func Generate(s *Series, e *engine.Engine, limit int) ([]NarrativeRow, error) {
	stamps := s.Timestamps()
	if limit > 0 && limit < len(stamps) {
		stamps = stamps[:limit]
	}
	rows := make([]NarrativeRow, 0, len(stamps))
	for _, ts := range stamps {
		snap, err := s.At(ts)
		if err != nil {
			return rows, err
		}
		out, err := e.Run(snap)
		if err != nil {
			return rows, fmt.Errorf("narrative %d: %w", ts, err)
		}
		rows = append(rows, RowFromOutput(snap, out))
	}
	return rows, nil
}
