package transform

import "math"

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// US EPA PM2.5 breakpoints (µg/m³ → index).
var pm25Breakpoints = []breakpoint{
	{0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 500.4, 301, 500},
}

// USEPAAQI converts a PM2.5 concentration to the US EPA 0-500 index by
// linear interpolation within the matching breakpoint segment.
func USEPAAQI(pm25 float64) int {
	if math.IsNaN(pm25) || pm25 <= 0 {
		return 0
	}
	last := pm25Breakpoints[len(pm25Breakpoints)-1]
	if pm25 > last.cHigh {
		return int(last.iHigh)
	}

	for _, bp := range pm25Breakpoints {
		if pm25 <= bp.cHigh {
			aqi := (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(pm25-bp.cLow) + bp.iLow
			return int(math.Round(aqi))
		}
	}
	return int(last.iHigh)
}

// USEPACategory labels a US EPA index value.
func USEPACategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// ProviderAQILabel labels the provider's own 1-5 scale.
func ProviderAQILabel(index int) string {
	switch index {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}
