package framesync

import (
	"time"

	"github.com/hazyhaar/hubframe/uiloop"
)

// DefaultReflowDelay is the wait before the second report of a change, long
// enough for images and web fonts to settle.
const DefaultReflowDelay = 350 * time.Millisecond

// Snapshot reads the current height and expansion flag. It is called at
// emission time, so a delayed report reflects the state when it fires.
type Snapshot func() (height int, expanded bool, ok bool)

// Scheduler applies the report timing policy on a UI loop.
type Scheduler struct {
	loop     *uiloop.Loop
	ch       *Channel
	snapshot Snapshot
	delay    time.Duration
}

// NewScheduler creates a Scheduler. delay <= 0 selects DefaultReflowDelay.
func NewScheduler(loop *uiloop.Loop, ch *Channel, snapshot Snapshot, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultReflowDelay
	}
	return &Scheduler{loop: loop, ch: ch, snapshot: snapshot, delay: delay}
}

// Now emits one report. Must run on the loop.
func (s *Scheduler) Now() {
	h, expanded, ok := s.snapshot()
	if !ok {
		return
	}
	s.ch.ReportHeight(h, expanded)
}

// Changed emits a report now and another after the reflow delay. Must run
// on the loop. Earlier delayed reports are not cancelled.
func (s *Scheduler) Changed() {
	s.Now()
	s.loop.After(s.delay, s.Now)
}

// Toggled is Changed plus a report two frames later, after the
// presentation has laid out the new listing.
func (s *Scheduler) Toggled() {
	s.Now()
	s.loop.NextFrame(func() { s.loop.NextFrame(s.Now) })
	s.loop.After(s.delay, s.Now)
}
