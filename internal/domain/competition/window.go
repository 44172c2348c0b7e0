package competition

import "time"

// IsWithinWindow reports whether start <= now <= end. Both bounds are
// inclusive.
func IsWithinWindow(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

func validRange(start, end time.Time) bool {
	return start.Before(end)
}
