package exam

import (
	"fmt"
	"sync"
	"time"
)

// timer drives Session.Tick on a fixed interval until stopped.
type timer struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startTimer(interval time.Duration, tick func()) *timer {
	t := &timer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				tick()
			}
		}
	}()
	return t
}

// cancel is safe to call more than once and while holding the session lock:
// it does not wait for the goroutine, whose last tick is a no-op once the
// session has left the active state.
func (t *timer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

// FormatDuration renders seconds as "<m> min <s> sec".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d min %d sec", seconds/60, seconds%60)
}
