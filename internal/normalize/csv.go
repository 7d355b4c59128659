package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// TimeUnix marks a timestamp column holding epoch seconds.
const TimeUnix = "unix"

// ColumnMapping tells FromCSVRow which header names carry which field.
// An empty name means the source has no such column.
type ColumnMapping struct {
	Timestamp string
	// TimeFormat is TimeUnix or a time layout interpreted in the row's location.
	TimeFormat    string
	Temp          string
	FeelsLike     string
	Humidity      string
	Wind          string
	WindGust      string
	Condition     string
	ConditionCode string
	IsDay         string
	Units         Units
}

// NarrativeMapping reads the historical narrative CSV.
var NarrativeMapping = ColumnMapping{
	Timestamp:  "timestamp",
	TimeFormat: TimeUnix,
	Temp:       "temp",
	Condition:  "weather_desc",
	Units:      Canonical,
}

// OpenMeteoMapping reads the hourly section of an Open-Meteo CSV export.
var OpenMeteoMapping = ColumnMapping{
	Timestamp:     "time",
	TimeFormat:    "2006-01-02T15:04",
	Temp:          "temperature_2m (°C)",
	FeelsLike:     "apparent_temperature (°C)",
	Humidity:      "relative_humidity_2m (%)",
	Wind:          "wind_speed_10m (km/h)",
	WindGust:      "wind_gusts_10m (km/h)",
	ConditionCode: "weather_code (wmo code)",
	IsDay:         "is_day ()",
	Units:         Canonical,
}

// FromCSVRow builds a snapshot from one CSV record. Empty, "nan" and
// "null" cells are treated as missing.
func FromCSVRow(header, row []string, m ColumnMapping, loc *time.Location) (models.WeatherSnapshot, error) {
	if loc == nil {
		loc = time.UTC
	}
	units := m.Units
	if units == "" {
		units = Canonical
	}
	r := csvRow{index: make(map[string]int, len(header)), row: row}
	for i, name := range header {
		r.index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	raw, ok := r.cell(m.Timestamp)
	if !ok {
		return models.WeatherSnapshot{}, &ValidationError{Field: "timestamp", Reason: "missing"}
	}
	ts, err := parseTimestamp(raw, m.TimeFormat, loc)
	if err != nil {
		return models.WeatherSnapshot{}, &ValidationError{Field: "timestamp", Reason: err.Error()}
	}

	s := models.WeatherSnapshot{
		Timestamp: ts,
		Local:     localize(ts, loc),
	}
	fields := []struct {
		column string
		dst    **float64
		conv   func(float64) float64
	}{
		{m.Temp, &s.Temp, units.temp},
		{m.FeelsLike, &s.FeelsLike, units.temp},
		{m.Humidity, &s.Humidity, nil},
		{m.Wind, &s.Wind, units.wind},
		{m.WindGust, &s.WindGust, units.wind},
	}
	for _, f := range fields {
		v, err := r.float(f.column)
		if err != nil {
			return models.WeatherSnapshot{}, err
		}
		if v != nil && f.conv != nil {
			v = models.Float(f.conv(*v))
		}
		*f.dst = v
	}

	code, err := r.float(m.ConditionCode)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	if code != nil {
		s.ConditionCode = models.Int(int(*code))
	}
	if text, ok := r.cell(m.Condition); ok {
		s.Condition = models.String(text)
	}

	day := isDaytime(s.Local, nil)
	if v, ok := r.cell(m.IsDay); ok {
		day = v == "1"
	}
	sanitize(&s)
	resolveCondition(&s, day)

	if err := Validate(s); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return s, nil
}

func parseTimestamp(raw, format string, loc *time.Location) (int64, error) {
	if format == "" || format == TimeUnix {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil {
				return 0, err
			}
			ts = int64(f)
		}
		return ts, nil
	}
	t, err := time.ParseInLocation(format, raw, loc)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

type csvRow struct {
	index map[string]int
	row   []string
}

func (r csvRow) cell(column string) (string, bool) {
	if column == "" {
		return "", false
	}
	i, ok := r.index[column]
	if !ok || i >= len(r.row) {
		return "", false
	}
	v := strings.TrimSpace(r.row[i])
	switch strings.ToLower(v) {
	case "", "nan", "null":
		return "", false
	}
	return v, true
}

func (r csvRow) float(column string) (*float64, error) {
	v, ok := r.cell(column)
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &ValidationError{Field: column, Reason: "not a number: " + v}
	}
	return &f, nil
}
