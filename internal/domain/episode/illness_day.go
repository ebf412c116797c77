package episode

import "time"

const dayLength = 24 * time.Hour

// DayOfIllness returns floor((now-startedAt) in whole days)+1, never less than 1.
// A reading taken on the start date is day 1.
func DayOfIllness(startedAt, now time.Time) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		return 1
	}
	return int(elapsed/dayLength) + 1
}

// ResolveDay prefers a caller-supplied day number and falls back to the computed one.
func ResolveDay(explicit *int, startedAt, now time.Time) (int, error) {
	if explicit != nil {
		if *explicit < 1 {
			return 0, validationError("day of illness must be at least 1, got %d", *explicit)
		}
		return *explicit, nil
	}
	return DayOfIllness(startedAt, now), nil
}
