package normalize

// WMO weather interpretation codes as used by Open-Meteo.
var wmoDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// WMODescription returns the text for a WMO code and whether the code is known.
func WMODescription(code int) (string, bool) {
	desc, ok := wmoDescriptions[code]
	return desc, ok
}

// WMOIcon maps a WMO code onto the OpenWeather icon names the display
// ships bitmaps for.
func WMOIcon(code int, day bool) string {
	var base string
	switch {
	case code == 0:
		base = "01"
	case code == 1:
		base = "02"
	case code == 2:
		base = "03"
	case code == 3:
		base = "04"
	case code <= 48:
		base = "50"
	case code <= 57:
		base = "09"
	case code <= 67:
		base = "10"
	case code <= 77:
		base = "13"
	case code <= 82:
		base = "09"
	case code <= 86:
		base = "13"
	default:
		base = "11"
	}
	if day {
		return base + "d"
	}
	return base + "n"
}
