package episode

// Fever breakpoints in °F. Each band excludes its lower bound, so ties go to the lower band.
const (
	mildAboveF     = 98.6
	moderateAboveF = 99.5
	highAboveF     = 100.4
)

// ClassifySeverity maps a temperature onto a fever severity band.
func ClassifySeverity(temperatureF float64) SeverityBand {
	switch {
	case temperatureF > highAboveF:
		return SeverityHigh
	case temperatureF > moderateAboveF:
		return SeverityModerate
	case temperatureF > mildAboveF:
		return SeverityMild
	default:
		return SeverityNormal
	}
}
