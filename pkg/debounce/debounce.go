// Package debounce collapses a stream of transcript snapshots into a single
// commit once the input has been quiet for a while.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the delay after the last update before a transcript
// is considered final.
const DefaultQuietPeriod = time.Second

// Debouncer owns a single timer slot. Every Update replaces the pending
// transcript and restarts the timer; commit runs at most once per quiet
// period, with the most recent transcript, on the timer's goroutine.
type Debouncer struct {
	quiet  time.Duration
	commit func(transcript string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending string
}

func New(quiet time.Duration, commit func(transcript string)) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{
		quiet:  quiet,
		commit: commit,
	}
}

// Update records the latest transcript and (re)arms the timer.
func (d *Debouncer) Update(transcript string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.pending = transcript
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Cancel drops the pending transcript without committing it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.pending = ""
}

// Take disarms the timer and hands back the pending transcript instead of
// committing it. It reports whether anything was pending.
func (d *Debouncer) Take() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return "", false
	}
	d.stopLocked()
	transcript := d.pending
	d.pending = ""
	return transcript, true
}

// Pending reports whether a timer is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// Transcript returns the transcript waiting for the timer, if any.
func (d *Debouncer) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pending
}

// stopLocked disarms the current timer. Bumping the generation makes a
// callback that already started give up.
func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.gen++
	transcript := d.pending
	d.pending = ""
	d.mu.Unlock()

	d.commit(transcript)
}
