package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// It is shared by the Detector and the text generator to determine "today".
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// StartOfDay truncates t to local midnight, keeping its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
