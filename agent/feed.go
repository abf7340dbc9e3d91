package agent

// Feed is a bounded ring buffer of activity events. With the default
// capacity of 1 it only remembers the newest event.
type Feed struct {
	buf   []ActivityEvent
	start int
	n     int
}

// NewFeed returns a Feed holding at most capacity events. Capacities below
// one are raised to one.
func NewFeed(capacity int) *Feed {
	if capacity < 1 {
		capacity = 1
	}
	return &Feed{buf: make([]ActivityEvent, capacity)}
}

// Push records ev, evicting the oldest event when full.
func (f *Feed) Push(ev ActivityEvent) {
	if f.n < len(f.buf) {
		f.buf[(f.start+f.n)%len(f.buf)] = ev
		f.n++
		return
	}
	f.buf[f.start] = ev
	f.start = (f.start + 1) % len(f.buf)
}

// Latest returns the newest event.
func (f *Feed) Latest() (ActivityEvent, bool) {
	if f == nil || f.n == 0 {
		return ActivityEvent{}, false
	}
	return f.buf[(f.start+f.n-1)%len(f.buf)], true
}

// Events returns the buffered events, oldest first.
func (f *Feed) Events() []ActivityEvent {
	if f == nil {
		return nil
	}
	out := make([]ActivityEvent, 0, f.n)
	for i := 0; i < f.n; i++ {
		out = append(out, f.buf[(f.start+i)%len(f.buf)])
	}
	return out
}

// Len is the number of buffered events.
func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	return f.n
}

// Reset forgets every event.
func (f *Feed) Reset() {
	f.start, f.n = 0, 0
}
