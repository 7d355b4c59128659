package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

const (
	// Tolerance is how far a requested timestamp may be from the nearest
	// hourly row.
	Tolerance = 30 * time.Minute

	forecastStep    = 3
	forecastHorizon = 24 * time.Hour

	rainColumn = "rain (mm)"
	snowColumn = "snowfall (cm)"
)

type hour struct {
	snap   models.WeatherSnapshot
	precip float64
}

type dayRange struct {
	low, high float64
}

// Series is one loaded Open-Meteo export.
type Series struct {
	Dataset  Dataset
	Location *time.Location
	// Skipped counts hourly rows rejected by the normalizer.
	Skipped int

	hours []hour
	days  map[string]dayRange
	sun   map[string]models.SunTimes
}

// LoadOpenMeteo reads an Open-Meteo CSV export. The coordinate preamble is
// skipped; the hourly section is required and the daily section, when
// present, supplies sunrise and sunset.
func LoadOpenMeteo(r io.Reader, loc *time.Location) (*Series, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	s := &Series{
		Location: loc,
		days:     make(map[string]dayRange),
		sun:      make(map[string]models.SunTimes),
	}

	var (
		section string
		header  []string
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read open-meteo csv: %w", err)
		}
		if len(rec) >= 2 && strings.TrimPrefix(rec[0], "\ufeff") == "time" {
			switch {
			case strings.HasPrefix(rec[1], "temperature_2m"):
				section, header = "hourly", rec
				continue
			case strings.HasPrefix(rec[1], "sunrise"):
				section, header = "daily", rec
				continue
			}
		}

		switch section {
		case "hourly":
			if err := s.addHour(header, rec); err != nil {
				return nil, err
			}
		case "daily":
			s.addDay(header, rec)
		}
	}

	if len(s.hours) == 0 {
		return nil, errors.New("open-meteo csv has no hourly rows")
	}
	sort.SliceStable(s.hours, func(i, j int) bool {
		return s.hours[i].snap.Timestamp < s.hours[j].snap.Timestamp
	})
	return s, nil
}

func (s *Series) addHour(header, rec []string) error {
	snap, err := normalize.FromCSVRow(header, rec, normalize.OpenMeteoMapping, s.Location)
	if err != nil {
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			s.Skipped++
			return nil
		}
		return err
	}

	h := hour{snap: snap}
	for i, name := range header {
		if i >= len(rec) || (name != rainColumn && name != snowColumn) {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err == nil && v > 0 {
			h.precip += v
		}
	}
	s.hours = append(s.hours, h)

	date := snap.Date()
	temp := *snap.Temp
	if d, ok := s.days[date]; ok {
		if temp < d.low {
			d.low = temp
		}
		if temp > d.high {
			d.high = temp
		}
		s.days[date] = d
	} else {
		s.days[date] = dayRange{low: temp, high: temp}
	}
	return nil
}

func (s *Series) addDay(header, rec []string) {
	var date, rise, set string
	for i, name := range header {
		if i >= len(rec) {
			break
		}
		switch {
		case name == "time":
			date = rec[i]
		case strings.HasPrefix(name, "sunrise"):
			rise = rec[i]
		case strings.HasPrefix(name, "sunset"):
			set = rec[i]
		}
	}
	sunrise, err1 := time.ParseInLocation("2006-01-02T15:04", rise, s.Location)
	sunset, err2 := time.ParseInLocation("2006-01-02T15:04", set, s.Location)
	if date == "" || err1 != nil || err2 != nil {
		return
	}
	s.sun[date] = models.SunTimes{Sunrise: sunrise.Unix(), Sunset: sunset.Unix()}
}

func (s *Series) Len() int {
	return len(s.hours)
}

// Range returns the first and last hourly timestamps.
func (s *Series) Range() (first, last int64) {
	return s.hours[0].snap.Timestamp, s.hours[len(s.hours)-1].snap.Timestamp
}

// Timestamps lists every hourly timestamp in order.
func (s *Series) Timestamps() []int64 {
	out := make([]int64, len(s.hours))
	for i, h := range s.hours {
		out[i] = h.snap.Timestamp
	}
	return out
}

func (s *Series) closest(ts int64) int {
	i := sort.Search(len(s.hours), func(i int) bool {
		return s.hours[i].snap.Timestamp >= ts
	})
	if i == len(s.hours) {
		return i - 1
	}
	if i > 0 && ts-s.hours[i-1].snap.Timestamp <= s.hours[i].snap.Timestamp-ts {
		return i - 1
	}
	return i
}

// At returns the snapshot nearest ts with the day's range, sun times and a
// 3-hourly forecast for the following 24 hours attached.
func (s *Series) At(ts int64) (models.WeatherSnapshot, error) {
	i := s.closest(ts)
	snap := s.hours[i].snap
	diff := snap.Timestamp - ts
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Second > Tolerance {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %d", ErrNoData, ts)
	}

	if d, ok := s.days[snap.Date()]; ok {
		snap.Low, snap.High = models.Float(d.low), models.Float(d.high)
	}
	if sun, ok := s.sun[snap.Date()]; ok {
		snap.Sun = &sun
	}

	horizon := snap.Timestamp + int64(forecastHorizon/time.Second)
	snap.Forecast = nil
	for j := i + forecastStep; j < len(s.hours); j += forecastStep {
		h := s.hours[j]
		if h.snap.Timestamp > horizon {
			break
		}
		pop := 0.0
		if h.precip > 0 {
			pop = 1
		}
		snap.Forecast = append(snap.Forecast, models.ForecastPoint{
			Dt:        h.snap.Timestamp,
			Temp:      h.snap.Temp,
			Icon:      h.snap.Icon,
			Condition: strings.ToLower(h.snap.ConditionText()),
			Pop:       models.Float(pop),
			Wind:      h.snap.Wind,
			WindGust:  h.snap.WindGust,
		})
	}
	return snap, nil
}
