package service

import (
    "time"
)

// Scheduler runs a task once after a delay. The default implementation uses
// the wall clock; tests substitute one they can advance by hand.
type Scheduler interface {
    Schedule(delay time.Duration, task func())
}

type TimerScheduler struct {
}

func (scheduler *TimerScheduler) Schedule(delay time.Duration, task func()) {
    time.AfterFunc(delay, task)
}
