package service

import (
	"time"

	"talkquest/internal/models"
)

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now
func SystemClock() Clock {
	return systemClock{}
}

// today returns the calendar day of the clock's instant in loc
func today(clock Clock, loc *time.Location) models.Date {
	if loc == nil {
		loc = time.UTC
	}
	return models.DateOf(clock.Now().In(loc))
}
