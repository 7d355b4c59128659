package narrative

import (
	"math"
	"time"
)

const synodicMonth = 29.530588853

// referenceNewMoon is the new moon of 2025-11-20 06:47 UTC.
var referenceNewMoon = time.Date(2025, 11, 20, 6, 47, 0, 0, time.UTC)

// MoonPhase returns the lunar phase in [0, 1): 0 new, 0.5 full.
func MoonPhase(t time.Time) float64 {
	days := t.Sub(referenceNewMoon).Hours() / 24
	p := math.Mod(days/synodicMonth, 1)
	if p < 0 {
		p++
	}
	return p
}

// MoonName names the phase with the display's thresholds.
func MoonName(phase float64) string {
	switch {
	case phase < 0.03 || phase >= 0.97:
		return "New Moon"
	case phase < 0.22:
		return "Waxing Crescent"
	case phase < 0.28:
		return "First Quarter"
	case phase < 0.47:
		return "Waxing Gibbous"
	case phase < 0.53:
		return "Full Moon"
	case phase < 0.72:
		return "Waning Gibbous"
	case phase < 0.78:
		return "Third Quarter"
	default:
		return "Waning Crescent"
	}
}
