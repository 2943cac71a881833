package auth

import "time"

// Timer is a cancellable one-shot timer handle.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so renewal scheduling can be driven in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
