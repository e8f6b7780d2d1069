package metrics

import "time"

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Milliseconds is the elapsed time in the unit the latency histograms use.
func (t *Timer) Milliseconds() float64 {
	return float64(t.Duration().Microseconds()) / 1000
}
