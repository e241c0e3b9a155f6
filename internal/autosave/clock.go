package autosave

import "time"

// Timer is the cancelable half of a delayed call.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls. Sessions use the wall clock unless WithClock is given.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
