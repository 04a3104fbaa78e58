package weather

import (
	"strings"

	"github.com/i474232898/weather-lookup/internal/common"
)

// MapCondition derives a Condition from a provider icon code ("04d") and,
// when the icon is missing or unknown, from free-text description.
func MapCondition(icon, text string) Condition {
	if len(icon) >= 2 {
		switch icon[:2] {
		case "01":
			return ConditionClear
		case "02", "03", "04":
			return ConditionCloudy
		case "09", "10":
			return ConditionRain
		case "11":
			return ConditionStorm
		case "13":
			return ConditionSnow
		case "50":
			return ConditionMist
		}
	}

	switch {
	case strings.TrimSpace(text) == "":
		return ConditionUnknown
	case common.HasAnyFold(text, "thunder", "storm"):
		return ConditionStorm
	case common.HasAnyFold(text, "snow", "sleet", "blizzard"):
		return ConditionSnow
	case common.HasAnyFold(text, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAnyFold(text, "mist", "fog", "haze", "smoke"):
		return ConditionMist
	case common.HasAnyFold(text, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAnyFold(text, "sunny", "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

// Glyph is a single-rune symbol for terminal output.
func (c Condition) Glyph() string {
	switch c {
	case ConditionClear:
		return "☀"
	case ConditionCloudy:
		return "☁"
	case ConditionRain:
		return "☂"
	case ConditionSnow:
		return "❄"
	case ConditionStorm:
		return "⚡"
	case ConditionMist:
		return "≋"
	default:
		return "?"
	}
}

// IconURL returns the provider-hosted image for an icon code.
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + icon + "@2x.png"
}
