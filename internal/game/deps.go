package game

import (
	"log"
	"math/rand"
	"time"
)

// Clock abstracts wall-clock reads so tests can substitute fixed times.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler schedules one-shot callbacks. Tests substitute a manual
// implementation to fast-forward phase deadlines without sleeping.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemScheduler schedules through the runtime timer heap.
type SystemScheduler struct{}

// AfterFunc runs fn after d on its own goroutine.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Deps carries shared infrastructure dependencies required by the engine.
type Deps struct {
	Logger    *log.Logger
	Clock     Clock
	Scheduler Scheduler
	RNG       *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Scheduler == nil {
		d.Scheduler = SystemScheduler{}
	}
	if d.RNG == nil {
		d.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return d
}
