package board

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRotateInterval is how long each railway stays selected
const DefaultRotateInterval = 10 * time.Second

// Selection is the selected group and railway within it
type Selection struct {
	Group   int `json:"group"`
	Railway int `json:"railway"`
}

// Rotator cycles through the railways of the selected group on a timer.
// It is safe for concurrent use.
type Rotator struct {
	mu       sync.Mutex
	sizes    []int
	sel      Selection
	interval time.Duration
	timer    *time.Timer
	// gen changes whenever the timer is re-armed; a tick from an older arm
	// is ignored
	gen     uint64
	stopped bool
}

// NewRotator starts rotating. sizes holds the number of railways per group.
// A non-positive interval disables automatic rotation.
func NewRotator(sizes []int, interval time.Duration) *Rotator {
	r := &Rotator{
		sizes:    append([]int(nil), sizes...),
		interval: interval,
	}
	if interval > 0 {
		r.mu.Lock()
		r.arm()
		r.mu.Unlock()
	}
	return r
}

// arm starts a fresh timer under a new generation. Callers hold mu.
func (r *Rotator) arm() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(r.interval, func() { r.tick(gen) })
}

func (r *Rotator) tick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || gen != r.gen {
		return
	}
	r.advance()
	r.timer.Reset(r.interval)
}

func (r *Rotator) advance() {
	if r.sel.Group >= len(r.sizes) {
		return
	}
	if n := r.sizes[r.sel.Group]; n > 0 {
		r.sel.Railway = (r.sel.Railway + 1) % n
	}
}

// Selection returns the current selection
func (r *Rotator) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sel
}

// Advance moves to the next railway of the group, wrapping at the end
func (r *Rotator) Advance() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return r.sel
}

// SelectGroup switches group, resets the railway index and restarts the
// interval so the first railway gets a full period
func (r *Rotator) SelectGroup(i int) (Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.sizes) {
		return r.sel, fmt.Errorf("group %d out of range [0, %d)", i, len(r.sizes))
	}
	r.sel = Selection{Group: i}
	if r.timer != nil && !r.stopped {
		r.arm()
	}
	return r.sel, nil
}

// Stop halts automatic rotation. A tick already in flight does nothing.
func (r *Rotator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}
