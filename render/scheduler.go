// Package render keeps the operator's scroll position across background
// refreshes of the live view.
package render

// Intent travels with every committed view update.
type Intent struct {
	// RestoreScroll is set on engine-driven updates. Interactive updates
	// leave it false.
	RestoreScroll bool
}

// Scheduler tracks the last scroll offset the operator chose and restores
// it after a background update repaints the content.
type Scheduler struct {
	offset  int
	pending bool
}

// Scrolled records the viewport offset after an operator scroll.
func (s *Scheduler) Scrolled(offset int) {
	if offset < 0 {
		offset = 0
	}
	s.offset = offset
}

// Offset is the last recorded offset.
func (s *Scheduler) Offset() int { return s.offset }

// Commit registers an update about to be applied to the view.
func (s *Scheduler) Commit(in Intent) {
	if in.RestoreScroll {
		s.pending = true
	}
}

// Pending reports whether a restore is owed to the next paint.
func (s *Scheduler) Pending() bool { return s.pending }

// BeforePaint runs after the content changed and before the frame is
// painted. If a restore is owed and the operator is scrolled down, restore
// is called with the saved offset. It reports whether restore ran.
func (s *Scheduler) BeforePaint(restore func(offset int)) bool {
	if !s.pending {
		return false
	}
	s.pending = false
	if s.offset <= 0 {
		return false
	}
	restore(s.offset)
	return true
}
