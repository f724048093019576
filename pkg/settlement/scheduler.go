package settlement

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs delayed calls. Sessions take it as a dependency so tests can
// drive polling with a fake clock.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

// SystemScheduler schedules on the wall clock.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

func (systemScheduler) Now() time.Time {
	return time.Now().UTC()
}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
