package normalize

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// ValidationError reports a snapshot field that is required or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot field %q: %s", e.Field, e.Reason)
}

// Units names the unit system a source reports in.
type Units string

const (
	// Metric is °C with wind in m/s, as OpenWeather reports it.
	Metric Units = "metric"
	// Imperial is °F with wind in mph.
	Imperial Units = "imperial"
	// Standard is kelvin with wind in m/s.
	Standard Units = "standard"
	// Canonical is °C with wind in km/h, the engine's own units.
	Canonical Units = "canonical"
)

func (u Units) temp(v float64) float64 {
	switch u {
	case Imperial:
		return (v - 32) * 5 / 9
	case Standard:
		return v - 273.15
	default:
		return v
	}
}

func (u Units) wind(v float64) float64 {
	switch u {
	case Imperial:
		return v * 1.609344
	case Canonical:
		return v
	default:
		return v * 3.6
	}
}

func parseUnits(s string) (Units, error) {
	switch u := Units(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return Metric, nil
	case Metric, Imperial, Standard, Canonical:
		return u, nil
	default:
		return "", &ValidationError{Field: "units", Reason: fmt.Sprintf("unknown unit system %q", s)}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks that the fields every downstream stage depends on are
// present. Optional fields stay nil and are simply left out of the narrative.
func Validate(s models.WeatherSnapshot) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Tag() == "required" {
			reason = "missing"
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return fmt.Errorf("validate snapshot: %w", err)
}

var markupChars = strings.NewReplacer("<", "", ">", "")

// cleanText drops the characters the narrative markup reserves. Text that
// is empty afterwards is treated as missing.
func cleanText(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(markupChars.Replace(*p))
	if t == "" {
		return nil
	}
	return &t
}

func inRange(p *float64, lo, hi float64) *float64 {
	if p == nil || math.IsNaN(*p) || *p < lo || *p > hi {
		return nil
	}
	return p
}

// sanitize turns out-of-range optional values into missing ones and strips
// markup from upstream text before it can reach the narrative.
func sanitize(s *models.WeatherSnapshot) {
	s.Humidity = inRange(s.Humidity, 0, 100)
	s.Condition = cleanText(s.Condition)
	if s.AirQuality != nil {
		aq := *s.AirQuality
		aq.Description = markupChars.Replace(aq.Description)
		s.AirQuality = &aq
	}
	for i := range s.Forecast {
		f := &s.Forecast[i]
		f.Condition = markupChars.Replace(f.Condition)
		f.Pop = inRange(f.Pop, 0, 1)
	}
}

func localize(ts int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc)
}

func isDaytime(local time.Time, sun *models.SunTimes) bool {
	if sun != nil && sun.Sunrise > 0 && sun.Sunset > 0 {
		ts := local.Unix()
		return ts >= sun.Sunrise && ts < sun.Sunset
	}
	h := local.Hour()
	return h >= 6 && h < 18
}

// resolveCondition fills description and icon from a WMO code when the
// source only supplied the code.
func resolveCondition(s *models.WeatherSnapshot, day bool) {
	if s.ConditionCode != nil {
		if s.Condition == nil {
			if desc, ok := WMODescription(*s.ConditionCode); ok {
				s.Condition = models.String(desc)
			}
		}
		if s.Icon == "" {
			s.Icon = WMOIcon(*s.ConditionCode, day)
		}
	}
	if s.Icon == "" && s.Condition != nil {
		s.Icon = iconForText(*s.Condition, day)
	}
}

func iconForText(text string, day bool) string {
	t := strings.ToLower(text)
	var base string
	switch {
	case strings.Contains(t, "thunder") || strings.Contains(t, "storm"):
		base = "11"
	case strings.Contains(t, "snow"):
		base = "13"
	case strings.Contains(t, "rain") || strings.Contains(t, "drizzle") || strings.Contains(t, "shower"):
		base = "10"
	case strings.Contains(t, "fog") || strings.Contains(t, "mist"):
		base = "50"
	case strings.Contains(t, "overcast") || strings.Contains(t, "cloudy") || strings.Contains(t, "clouds"):
		if strings.Contains(t, "partly") || strings.Contains(t, "scattered") {
			base = "03"
		} else {
			base = "04"
		}
	case strings.Contains(t, "clear") || strings.Contains(t, "sunny"):
		base = "01"
	default:
		return ""
	}
	if day {
		return base + "d"
	}
	return base + "n"
}

func convert(p *float64, fn func(float64) float64) *float64 {
	if p == nil {
		return nil
	}
	return models.Float(fn(*p))
}
