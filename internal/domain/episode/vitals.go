package episode

import "math"

// Physiological bounds accepted for a single reading.
const (
	MinTemperatureF = 95.0
	MaxTemperatureF = 108.0
	MinPulseRate    = 40
	MaxPulseRate    = 180
)

// ValidateVitals checks one reading's vitals. Out-of-range values are rejected, never clamped.
// Both the quick-log and the daily-log flows go through this routine.
func ValidateVitals(temperatureF *float64, pulseRate *int) error {
	if temperatureF == nil {
		return validationError("temperature is required")
	}
	t := *temperatureF
	if math.IsNaN(t) || t < MinTemperatureF || t > MaxTemperatureF {
		return validationError("temperature must be between %.1f and %.1f °F, got %v", MinTemperatureF, MaxTemperatureF, t)
	}
	if pulseRate != nil {
		p := *pulseRate
		if p < MinPulseRate || p > MaxPulseRate {
			return validationError("pulse rate must be between %d and %d bpm, got %d", MinPulseRate, MaxPulseRate, p)
		}
	}
	return nil
}
