package drawing

import "time"

// TimerFrames approximates a display refresh with a fixed timer.
type TimerFrames struct {
	interval time.Duration
}

// NewTimerFrames returns a scheduler that fires after interval.
func NewTimerFrames(interval time.Duration) *TimerFrames {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TimerFrames{interval: interval}
}

func (f *TimerFrames) Schedule(fn func()) func() {
	t := time.AfterFunc(f.interval, fn)
	return func() { t.Stop() }
}
