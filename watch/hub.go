package watch

import "sync"

// subscriber is one consumer of published views.
type subscriber struct {
	ch chan View
}

// hub fans views out to subscribers. A slow subscriber loses its oldest
// pending view; publish never blocks the engine loop.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
	last   *View
}

func newHub(buffer int) *hub {
	if buffer < 1 {
		buffer = 1
	}
	return &hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// subscribe registers a consumer. The latest published view, if any, is
// queued immediately.
func (h *hub) subscribe() (<-chan View, func()) {
	s := &subscriber{ch: make(chan View, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	if h.last != nil {
		s.ch <- *h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.ch)
			}
		})
	}
}

func (h *hub) publish(v View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &v
	for s := range h.subs {
		select {
		case s.ch <- v:
			continue
		default:
		}
		// Full: drop the oldest pending view. publish is the only sender and
		// holds the lock, so the retry finds room.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- v:
		default:
		}
	}
}

// close ends every subscription.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
}
