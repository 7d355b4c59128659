package narrative

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/compare"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

func yesterdayAvg(date string, avg float64) compare.Source {
	return compare.SourceFunc(func(d string) (models.HistoryRecord, bool) {
		if d != date {
			return models.HistoryRecord{}, false
		}
		return models.HistoryRecord{Date: d, AvgTemp: avg}, true
	})
}

func snap(local time.Time, temp float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{Timestamp: local.Unix(), Local: local, Temp: models.Float(temp)}
}

func point(base time.Time, hours int, temp float64, cond, icon string, pop float64) models.ForecastPoint {
	return models.ForecastPoint{
		Dt:        base.Add(time.Duration(hours) * time.Hour).Unix(),
		Temp:      models.Float(temp),
		Condition: cond,
		Icon:      icon,
		Pop:       models.Float(pop),
	}
}

func TestComposeMuchWarmerThanYesterday(t *testing.T) {
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewComposer(yesterdayAvg("2024-03-01", 42), WithMoon(false))

	text, err := c.Compose(snap(now, 50))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "<red><bi>Much</bi> warmer than yesterday.</red>") {
		t.Errorf("expected much warmer comparison in red, got %q", text)
	}
	if _, err := markup.Parse(text); err != nil {
		t.Errorf("narrative does not parse: %v", err)
	}
}

func TestComposeWithoutHistory(t *testing.T) {
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewComposer(nil, WithMoon(false))

	p, err := c.Plan(snap(now, 50))
	if err != nil {
		t.Fatal(err)
	}
	if p.HasComparison {
		t.Error("expected no comparison")
	}
	for _, f := range p.Fragments {
		if f.Kind == KindComparison {
			t.Error("expected no comparison fragment")
		}
	}
}

func TestComposeMinimalSnapshot(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	text, err := NewComposer(nil, WithMoon(false)).Compose(snap(now, 12))
	if err != nil {
		t.Fatal(err)
	}
	if text != "<h>12</h>°." {
		t.Errorf("unexpected narrative %q", text)
	}
}

func TestComposeCurrentConditions(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := snap(now, -3)
	s.Condition = models.String("clear sky")
	s.FeelsLike = models.Float(-9)
	s.WindGust = models.Float(30)
	s.Low = models.Float(-12)
	s.High = models.Float(4)

	text, err := NewComposer(nil, WithMoon(false)).Compose(s)
	if err != nil {
		t.Fatal(err)
	}
	want := "Clear and <red>freezing,</red> <h>-3</h>° (<i>feels like</i> <h>-9</h>° due to wind gusts), l:<red><h>-12</h>° h:<h>4</h>°</red>."
	if text != want {
		t.Errorf("expected\n%q\ngot\n%q", want, text)
	}
}

func TestComposeRejectsMissingTemp(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	_, err := NewComposer(nil).Compose(models.WeatherSnapshot{Timestamp: now.Unix(), Local: now})
	var verr *normalize.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPrecipitationEndsAndReturns(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	s := snap(now, 14)
	s.Condition = models.String("light rain")
	s.Forecast = []models.ForecastPoint{
		point(now, 3, 14, "light rain", "10d", 0.9),
		point(now, 6, 15, "clear sky", "01d", 0),
		point(now, 9, 13, "moderate rain", "10n", 0.8),
	}

	p, err := NewComposer(nil, WithMoon(false)).Plan(s)
	if err != nil {
		t.Fatal(err)
	}
	var got string
	for _, f := range p.Fragments {
		if f.Kind == KindPrecipitation {
			got = f.Text
		}
		if f.Kind == KindUpcoming {
			t.Error("expected no upcoming fragment while it is raining")
		}
	}
	want := "<i>Expected</i> to end around <h>4</h>p and return this evening"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOutlookEveningIsTomorrow(t *testing.T) {
	now := time.Date(2024, 1, 10, 19, 0, 0, 0, time.UTC)
	s := snap(now, 3)
	s.Condition = models.String("overcast clouds")
	s.Icon = "04n"
	s.Forecast = []models.ForecastPoint{
		point(now, 3, 2, "rain", "10n", 0.8),
		point(now, 6, 1, "rain", "10n", 0.8),
		point(now, 9, -1, "clear sky", "01n", 0),
	}

	text, err := NewComposer(nil, WithMoon(false)).Compose(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "<b>Tomorrow:</b> rain expected starting evening, clearing overnight, h:<h>2</h>° l:<h>-1</h>°") {
		t.Errorf("unexpected outlook in %q", text)
	}
	if !strings.Contains(text, "Rain <i>likely</i> to start around <h>10</h>p") {
		t.Errorf("expected upcoming rain in %q", text)
	}

	morning := snap(now.Add(-10*time.Hour), 3)
	morning.Forecast = s.Forecast
	text, _ = NewComposer(nil, WithMoon(false)).Compose(morning)
	if !strings.Contains(text, "<b>Later:</b>") {
		t.Errorf("expected daytime outlook to say Later, got %q", text)
	}
}

func richSnapshot() models.WeatherSnapshot {
	now := time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)
	s := snap(now, -4)
	s.Condition = models.String("light snow")
	s.FeelsLike = models.Float(-11)
	s.Wind = models.Float(22)
	s.Low = models.Float(-9)
	s.High = models.Float(1)
	s.AirQuality = &models.AirQuality{AQI: 4}
	s.Sun = &models.SunTimes{Sunrise: now.Add(-6 * time.Hour).Unix(), Sunset: now.Add(4 * time.Hour).Unix()}
	s.Forecast = []models.ForecastPoint{
		point(now, 3, -5, "snow", "13d", 0.9),
		point(now, 6, -6, "overcast clouds", "04n", 0.1),
		point(now, 9, -8, "snow", "13n", 0.7),
		point(now, 12, -9, "clear sky", "01n", 0),
		point(now, 15, -7, "clear sky", "01d", 0),
	}
	return s
}

func TestCandidatesAllParse(t *testing.T) {
	s := richSnapshot()
	c := NewComposer(yesterdayAvg("2024-01-09", 3))
	p, err := c.Plan(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Fragments) < 5 {
		t.Fatalf("expected a rich plan, got %d fragments", len(p.Fragments))
	}
	for i := 1; i < len(p.Fragments); i++ {
		if p.Fragments[i].Priority > p.Fragments[i-1].Priority {
			t.Fatal("fragments not ordered by priority")
		}
	}
	if p.Fragments[0].Kind != KindCurrent {
		t.Errorf("expected current conditions first, got %s", p.Fragments[0].Kind)
	}
	for _, cand := range p.Candidates() {
		if _, err := markup.Parse(cand); err != nil {
			t.Errorf("candidate %q does not parse: %v", cand, err)
		}
	}
}

func TestComposeFittingDropsLowPriorityFirst(t *testing.T) {
	s := richSnapshot()
	c := NewComposer(yesterdayAvg("2024-01-09", 3))
	full, err := c.Compose(s)
	if err != nil {
		t.Fatal(err)
	}

	limit := len(markup.Strip(full)) / 3
	text, err := c.ComposeFitting(s, func(m string) bool {
		return len(markup.Strip(m)) <= limit
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(markup.Strip(text)) > limit {
		t.Errorf("expected fitted text within %d chars, got %d", limit, len(markup.Strip(text)))
	}
	if !strings.Contains(text, "<h>-4</h>°") {
		t.Errorf("expected current conditions to survive, got %q", text)
	}
	if strings.Contains(text, "Sunset") {
		t.Errorf("expected sunset to be dropped before higher priorities, got %q", text)
	}
}

func TestComposeFittingNothingFits(t *testing.T) {
	s := richSnapshot()
	c := NewComposer(nil)
	p, _ := c.Plan(s)
	cands := p.Candidates()

	text, err := c.ComposeFitting(s, func(string) bool { return false })
	if err != nil {
		t.Fatal(err)
	}
	for _, cand := range cands {
		if len(markup.Strip(cand)) < len(markup.Strip(text)) {
			t.Errorf("expected the shortest candidate, %q is shorter than %q", cand, text)
		}
	}
}

func TestFormatTemp(t *testing.T) {
	cases := map[float64]string{-0.4: "0", 0.4: "0", -0.6: "-1", 2.5: "3", -12.2: "-12"}
	for in, want := range cases {
		if got := formatTemp(in); got != want {
			t.Errorf("%v: expected %s, got %s", in, want, got)
		}
	}
}

func TestMoonPhase(t *testing.T) {
	if name := MoonName(MoonPhase(referenceNewMoon)); name != "New Moon" {
		t.Errorf("expected new moon at reference, got %s", name)
	}
	full := referenceNewMoon.Add(time.Duration(synodicMonth / 2 * 24 * float64(time.Hour)))
	if name := MoonName(MoonPhase(full)); name != "Full Moon" {
		t.Errorf("expected full moon half a cycle later, got %s", name)
	}
	before := referenceNewMoon.AddDate(0, 0, -3*29)
	if p := MoonPhase(before); p < 0 || p >= 1 {
		t.Errorf("phase out of range: %v", p)
	}
}
