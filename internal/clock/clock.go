package clock

import (
	"sync"
	"time"
)

// Clock abstracts time for components that schedule delayed or periodic work,
// so that tests can drive timers explicitly instead of sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// System returns a Clock backed by the real time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Fake is a manually advanced clock. The zero value is not usable,
// use NewFake instead.
type Fake struct {
	mut     sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

func NewFake() *Fake {
	return &Fake{now: time.Unix(0, 0)}
}

func (f *Fake) Now() time.Time {
	f.mut.Lock()
	defer f.mut.Unlock()

	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mut.Lock()
	defer f.mut.Unlock()

	w := &fakeWaiter{
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}

	if d <= 0 {
		w.ch <- f.now
		return w.ch
	}

	f.waiters = append(f.waiters, w)

	return w.ch
}

// Advance moves the clock forward and fires every timer whose deadline
// has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mut.Lock()
	defer f.mut.Unlock()

	f.now = f.now.Add(d)

	remaining := f.waiters[:0]

	for _, w := range f.waiters {
		if !w.deadline.After(f.now) {
			w.ch <- f.now
		} else {
			remaining = append(remaining, w)
		}
	}

	f.waiters = remaining
}

// Waiters returns the number of timers that have not fired yet.
func (f *Fake) Waiters() int {
	f.mut.Lock()
	defer f.mut.Unlock()

	return len(f.waiters)
}
