package narrative

import (
	"math"
	"strings"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/compare"
	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// Fragment kinds, also used as log fields.
const (
	KindCurrent       = "current"
	KindComparison    = "comparison"
	KindPrecipitation = "precipitation"
	KindUpcoming      = "upcoming"
	KindOutlook       = "outlook"
	KindAirQuality    = "air_quality"
	KindSunset        = "sunset"
	KindMoon          = "moon"
)

// Fragment is one self-contained clause of the narrative. Short, when
// set, says the same thing in fewer characters.
type Fragment struct {
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`
	Text     string `json:"text"`
	Short    string `json:"short,omitempty"`
}

func (f Fragment) short() string {
	if f.Short != "" {
		return f.Short
	}
	return f.Text
}

func conditionWord(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case d == "":
		return ""
	case strings.Contains(d, "overcast"):
		return "Overcast"
	case strings.Contains(d, "clear"):
		return "Clear"
	case strings.Contains(d, "partly") || strings.Contains(d, "scattered"):
		return "Partly cloudy"
	case strings.Contains(d, "cloudy") || strings.Contains(d, "clouds"):
		return "Cloudy"
	case strings.Contains(d, "thunder") || strings.Contains(d, "storm"):
		return "Stormy"
	case strings.Contains(d, "snow"):
		return "Snowy"
	case strings.Contains(d, "rain") || strings.Contains(d, "drizzle") || strings.Contains(d, "shower"):
		return "Rainy"
	case strings.Contains(d, "fog") || strings.Contains(d, "mist"):
		return "Foggy"
	default:
		return capitalize(d)
	}
}

// temperatureContext describes how the temperature feels for the season.
// Between 10° and 20° the word depends on the month: mild in winter, cool
// in summer, nothing otherwise.
func temperatureContext(temp float64, month time.Month) string {
	switch {
	case temp <= -10:
		return "bitterly cold"
	case temp <= 0:
		return "freezing"
	case temp <= 5:
		return "cold"
	case temp <= 10:
		return "chilly"
	case temp >= 35:
		return "extremely hot"
	case temp >= 30:
		return "very hot"
	case temp >= 25:
		return "hot"
	case temp >= 20:
		return "warm"
	}
	switch month {
	case time.December, time.January, time.February:
		return "mild"
	case time.June, time.July, time.August:
		if temp < 15 {
			return "cool"
		}
	}
	return ""
}

func styleContext(ctx string) string {
	switch strings.ToLower(ctx) {
	case "bitterly cold", "freezing", "extremely hot":
		return "<red>" + ctx + ",</red> "
	case "chilly", "very hot":
		return "<b>" + ctx + ",</b> "
	default:
		return ctx + ", "
	}
}

func opening(cond, ctx string) string {
	switch {
	case cond != "" && ctx != "":
		return cond + " and " + styleContext(ctx)
	case cond != "":
		return cond + ", "
	case ctx != "":
		return styleContext(capitalize(ctx))
	default:
		return ""
	}
}

func explainFeelsLike(s models.WeatherSnapshot) string {
	temp, feels := *s.Temp, *s.FeelsLike
	diff := feels - temp
	wind, gust, humidity := value(s.Wind), value(s.WindGust), value(s.Humidity)
	switch {
	case diff < -3 && gust > 25:
		return "due to wind gusts"
	case diff < -3 && wind > 15:
		return "due to wind"
	case diff > 5 && temp > 25 && humidity > 60:
		return "due to high humidity"
	case diff > 3 && temp > 20 && humidity > 70:
		return "due to humidity"
	}
	return ""
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func rangeEmphasis(low, high float64) (string, string) {
	switch r := high - low; {
	case r >= 15:
		return "<red>", "</red>"
	case r >= 10:
		return "<b>", "</b>"
	}
	return "", ""
}

func currentFragment(s models.WeatherSnapshot) Fragment {
	temp := *s.Temp
	lead := opening(conditionWord(s.ConditionText()), temperatureContext(temp, s.Local.Month()))

	full := deg(temp)
	short := full
	if s.FeelsLike != nil && math.Abs(*s.FeelsLike-temp) >= 3 {
		reason := explainFeelsLike(s)
		if reason != "" {
			full += " (<i>feels like</i> " + deg(*s.FeelsLike) + " " + reason + ")"
		} else {
			full += " (<i>feels like</i> " + deg(*s.FeelsLike) + ")"
		}
		short += " (<i>feels like</i> " + deg(*s.FeelsLike) + ")"
	}
	if s.High != nil && s.Low != nil {
		if on, off := rangeEmphasis(*s.Low, *s.High); on != "" {
			full += ", l:" + on + deg(*s.Low) + " h:" + deg(*s.High) + off
		}
	}
	return Fragment{Kind: KindCurrent, Priority: 10, Text: lead + full, Short: lead + short}
}

func comparisonFragment(res compare.Result) Fragment {
	var text, short string
	switch res.Bucket {
	case compare.MuchWarmer:
		text = "<red><bi>Much</bi> warmer than yesterday.</red>"
	case compare.MuchColder:
		text = "<red><bi>Much</bi> colder than yesterday.</red>"
	case compare.Warmer:
		text = "<red>Warmer than yesterday.</red>"
		if res.Slight() {
			text = "<red><i>Lil'</i> warmer than yesterday.</red>"
		}
	case compare.Colder:
		text = "<red>Colder than yesterday.</red>"
		if res.Slight() {
			text = "<red><i>Lil'</i> colder than yesterday.</red>"
		}
	default:
		text = "About the same as yesterday."
		short = "Same as yesterday."
	}
	prio := 7
	if res.Bucket.Much() {
		prio = 9
	}
	return Fragment{Kind: KindComparison, Priority: prio, Text: text, Short: short}
}

type precipKind int

const (
	precipNone precipKind = iota
	precipRain
	precipSnow
	precipStorm
)

var (
	rainWords  = []string{"rain", "drizzle", "shower"}
	snowWords  = []string{"snow"}
	stormWords = []string{"storm", "thunder"}
)

func containsAny(s string, words []string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func iconIs(icon string, codes ...string) bool {
	for _, c := range codes {
		if strings.HasPrefix(icon, c) {
			return true
		}
	}
	return false
}

func currentPrecip(s models.WeatherSnapshot) precipKind {
	desc := s.ConditionText()
	icon := s.Icon
	if len(s.Forecast) > 0 && icon == "" {
		icon = s.Forecast[0].Icon
	}
	switch {
	case containsAny(desc, snowWords) || iconIs(icon, "13"):
		return precipSnow
	case containsAny(desc, rainWords) || iconIs(icon, "09", "10"):
		return precipRain
	case containsAny(desc, stormWords) || iconIs(icon, "11"):
		return precipStorm
	}
	return precipNone
}

func pointPrecipitates(p models.ForecastPoint) bool {
	if value(p.Pop) >= 0.3 {
		return true
	}
	return containsAny(p.Condition, rainWords) || containsAny(p.Condition, snowWords) ||
		containsAny(p.Condition, stormWords) || iconIs(p.Icon, "09", "10", "11", "13")
}

func localTime(s models.WeatherSnapshot, ts int64) time.Time {
	return time.Unix(ts, 0).In(s.Local.Location())
}

// precipitationFragment says when the current precipitation ends and, if
// the forecast shows it, when it comes back.
func precipitationFragment(s models.WeatherSnapshot) (Fragment, bool) {
	kind := currentPrecip(s)
	if kind == precipNone {
		return Fragment{}, false
	}
	end := -1
	for i, p := range s.Forecast {
		if p.Dt > s.Timestamp && !pointPrecipitates(p) {
			end = i
			break
		}
	}
	if end < 0 {
		return Fragment{}, false
	}
	endAt := clockPhrase(localTime(s, s.Forecast[end].Dt))

	returns := ""
	for _, p := range s.Forecast[end+1:] {
		if p.Dt <= s.Timestamp+24*3600 && pointPrecipitates(p) {
			if returns = timeOfDay(localTime(s, p.Dt)); returns != "overnight" {
				returns = "this " + returns
			}
			break
		}
	}

	var text string
	switch kind {
	case precipStorm:
		text = "<red>T-storms</red> <i>clearing</i> " + endAt
	case precipSnow:
		text = "<i>Expected</i> to stop " + endAt
	default:
		text = "<i>Expected</i> to end " + endAt
	}
	short := text
	if returns != "" && kind != precipStorm {
		text += " and return " + returns
		short += ", back " + returns
	}
	return Fragment{Kind: KindPrecipitation, Priority: 9, Text: text, Short: short}, true
}

// upcomingFragment warns about precipitation starting within the next
// few forecast points while it is currently dry.
func upcomingFragment(s models.WeatherSnapshot) (Fragment, bool) {
	if currentPrecip(s) != precipNone {
		return Fragment{}, false
	}
	seen := 0
	for _, p := range s.Forecast {
		if p.Dt <= s.Timestamp {
			continue
		}
		seen++
		if seen > 6 {
			break
		}
		at := startPhrase(localTime(s, p.Dt))
		switch {
		case containsAny(p.Condition, snowWords) || iconIs(p.Icon, "13"):
			return Fragment{Kind: KindUpcoming, Priority: 8, Text: "<red>Snow</red> <i>likely</i> to start " + at}, true
		case containsAny(p.Condition, stormWords) || iconIs(p.Icon, "11"):
			return Fragment{Kind: KindUpcoming, Priority: 8, Text: "<red>Thunderstorms</red> <i>approaching</i> " + at}, true
		case containsAny(p.Condition, rainWords) || iconIs(p.Icon, "09", "10") || value(p.Pop) > 0.5:
			return Fragment{Kind: KindUpcoming, Priority: 8, Text: "Rain <i>likely</i> to start " + at}, true
		}
	}
	return Fragment{}, false
}

type period struct {
	start, end int64
	pops       []float64
	gusts      []float64
}

func periods(points []models.ForecastPoint, match func(models.ForecastPoint) bool) []period {
	var out []period
	var cur *period
	for _, p := range points {
		if match(p) {
			if cur == nil {
				cur = &period{start: p.Dt}
			}
			cur.end = p.Dt
			cur.pops = append(cur.pops, value(p.Pop))
			cur.gusts = append(cur.gusts, value(p.WindGust))
			continue
		}
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func describePrecip(s models.WeatherSnapshot, word string, ps []period) string {
	var sum float64
	var n int
	for _, p := range ps {
		for _, v := range p.pops {
			sum += v
			n++
		}
	}
	likelihood := "possible"
	if n > 0 {
		switch avg := sum / float64(n); {
		case avg >= 0.7:
			likelihood = "expected"
		case avg >= 0.4:
			likelihood = "likely"
		}
	}
	switch len(ps) {
	case 1:
		return word + " " + likelihood + " starting " + timeOfDay(localTime(s, ps[0].start))
	case 2:
		return word + " " + likelihood + " " + timeOfDay(localTime(s, ps[0].start)) + " and " + timeOfDay(localTime(s, ps[1].start))
	default:
		return word + " " + likelihood + " off and on"
	}
}

// outlookFragment summarizes the next 24 hours. After 6pm it is framed
// as tomorrow.
func outlookFragment(s models.WeatherSnapshot) (Fragment, bool) {
	var upcoming []models.ForecastPoint
	high, low := math.Inf(-1), math.Inf(1)
	for _, p := range s.Forecast {
		if p.Dt <= s.Timestamp || p.Dt > s.Timestamp+24*3600 {
			continue
		}
		upcoming = append(upcoming, p)
		if p.Temp != nil {
			high = math.Max(high, *p.Temp)
			low = math.Min(low, *p.Temp)
		}
	}
	if math.IsInf(high, -1) {
		return Fragment{}, false
	}

	on, off := rangeEmphasis(low, high)
	temps := on + "h:" + deg(high) + " l:" + deg(low) + off

	prefix := "<b>Later:</b>"
	if s.Local.Hour() >= 18 {
		prefix = "<b>Tomorrow:</b>"
	}

	rain := periods(upcoming, func(p models.ForecastPoint) bool {
		return containsAny(p.Condition, []string{"rain", "drizzle"}) || iconIs(p.Icon, "09", "10")
	})
	snow := periods(upcoming, func(p models.ForecastPoint) bool {
		return containsAny(p.Condition, snowWords) || iconIs(p.Icon, "13")
	})
	storms := periods(upcoming, func(p models.ForecastPoint) bool {
		return containsAny(p.Condition, stormWords) || iconIs(p.Icon, "11")
	})
	clearSky := periods(upcoming, func(p models.ForecastPoint) bool {
		return containsAny(p.Condition, []string{"clear"}) || iconIs(p.Icon, "01")
	})
	clouds := periods(upcoming, func(p models.ForecastPoint) bool {
		return containsAny(p.Condition, []string{"cloud"}) || iconIs(p.Icon, "02", "03", "04")
	})
	windy := periods(upcoming, func(p models.ForecastPoint) bool {
		return value(p.Wind) > 25 || value(p.WindGust) > 40
	})

	var parts []string
	switch {
	case len(storms) > 0:
		parts = append(parts, "<red>"+describePrecip(s, "thunderstorms", storms)+"</red>")
	case len(snow) > 0:
		parts = append(parts, "<red>"+describePrecip(s, "snow", snow)+"</red>")
	case len(rain) > 0:
		parts = append(parts, describePrecip(s, "rain", rain))
	}
	precip := len(parts) > 0

	switch {
	case (len(rain) > 0 || len(snow) > 0) && len(clearSky) > 0:
		if len(clearSky) == 1 {
			parts = append(parts, "clearing "+timeOfDay(localTime(s, clearSky[0].start)))
		} else {
			parts = append(parts, "with some clear breaks")
		}
	case len(clouds) > 0 && len(clearSky) > 0:
		parts = append(parts, "partly cloudy")
	case len(clouds) > 0:
		parts = append(parts, "mostly cloudy")
	case len(clearSky) > 0:
		parts = append(parts, "sunny skies")
	}

	switch len(windy) {
	case 0:
	case 1:
		gust := 0.0
		for _, g := range windy[0].gusts {
			gust = math.Max(gust, g)
		}
		word := "windy "
		if gust > 56 {
			word = "gusty winds "
		}
		parts = append(parts, word+timeOfDay(localTime(s, windy[0].start)))
	default:
		parts = append(parts, "windy periods")
	}

	text := prefix + " " + temps
	short := text
	if len(parts) > 0 {
		text = prefix + " " + strings.Join(parts, ", ") + ", " + temps
		if precip {
			short = prefix + " " + parts[0] + ", " + temps
		}
	}
	return Fragment{Kind: KindOutlook, Priority: 6, Text: text, Short: short}, true
}

func airQualityFragment(s models.WeatherSnapshot) (Fragment, bool) {
	aq := s.AirQuality
	if aq == nil || aq.AQI < 3 {
		return Fragment{}, false
	}
	word := strings.ToLower(strings.TrimSpace(aq.Description))
	switch aq.AQI {
	case 3:
		if word == "" {
			word = "moderate"
		}
		return Fragment{Kind: KindAirQuality, Priority: 5,
			Text:  "Air quality <b>" + word + "</b>",
			Short: "AQI <b>" + word + "</b>"}, true
	case 4:
		if word == "" {
			word = "poor"
		}
		return Fragment{Kind: KindAirQuality, Priority: 5,
			Text:  "Air quality <red>" + word + "</red>, limit time outdoors",
			Short: "AQI <red>" + word + "</red>"}, true
	default:
		if word == "" {
			word = "very poor"
		}
		return Fragment{Kind: KindAirQuality, Priority: 5,
			Text:  "Air quality <red>" + word + "</red>, stay inside",
			Short: "AQI <red>" + word + "</red>"}, true
	}
}

// sunsetFragment mentions sunset while it is still ahead today.
func sunsetFragment(s models.WeatherSnapshot) (Fragment, bool) {
	if s.Sun == nil || s.Sun.Sunset == 0 {
		return Fragment{}, false
	}
	if s.Timestamp < s.Sun.Sunrise || s.Timestamp >= s.Sun.Sunset || s.Sun.Sunset-s.Timestamp > 12*3600 {
		return Fragment{}, false
	}
	at := clockTime(localTime(s, s.Sun.Sunset))
	return Fragment{Kind: KindSunset, Priority: 4, Text: "Sunset at " + at, Short: "Sunset " + at}, true
}

func moonFragment(s models.WeatherSnapshot) (Fragment, bool) {
	switch MoonName(MoonPhase(time.Unix(s.Timestamp, 0))) {
	case "Full Moon":
		return Fragment{Kind: KindMoon, Priority: 4, Text: "<i>Full moon tonight</i>", Short: "<i>Full moon!</i>"}, true
	case "New Moon":
		return Fragment{Kind: KindMoon, Priority: 4, Text: "<i>New moon tonight</i>", Short: "<i>New moon!</i>"}, true
	}
	return Fragment{}, false
}
