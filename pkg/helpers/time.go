package helpers

import (
	"time"

	units "github.com/docker/go-units"
)

// Elapsed is the human readable time between start and end.
func Elapsed(start, end time.Time) string {
	if end.IsZero() {
		return ""
	}

	return units.HumanDuration(end.Sub(start))
}
