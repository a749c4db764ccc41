package pattern

import (
	"sync"
	"sync/atomic"
)

// PlaySet is the set of patterns currently eligible for playback. The
// output worker reads it every iteration, so reads never take a lock: the
// slice is copy-on-write behind an atomic pointer and mutators swap in a
// fresh copy. A reader may see a momentarily stale membership, never a
// torn one.
type PlaySet struct {
	ptr atomic.Pointer[[]*Pattern]
	mu  sync.Mutex // serializes mutators only
}

// NewPlaySet returns an empty play-set.
func NewPlaySet() *PlaySet {
	ps := &PlaySet{}
	empty := []*Pattern{}
	ps.ptr.Store(&empty)
	return ps
}

// Patterns returns the current membership snapshot.
func (ps *PlaySet) Patterns() []*Pattern {
	return *ps.ptr.Load()
}

// Len returns the number of patterns in the set.
func (ps *PlaySet) Len() int {
	return len(*ps.ptr.Load())
}

// Add appends a pattern unless it is already present.
func (ps *PlaySet) Add(p *Pattern) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	cur := *ps.ptr.Load()
	for _, q := range cur {
		if q == p {
			return
		}
	}
	next := make([]*Pattern, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = p
	ps.ptr.Store(&next)
}

// Remove drops a pattern from the set.
func (ps *PlaySet) Remove(p *Pattern) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	cur := *ps.ptr.Load()
	next := make([]*Pattern, 0, len(cur))
	for _, q := range cur {
		if q != p {
			next = append(next, q)
		}
	}
	ps.ptr.Store(&next)
}

// Replace swaps the whole membership, e.g. on a screen-set change.
func (ps *PlaySet) Replace(patterns []*Pattern) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	next := make([]*Pattern, len(patterns))
	copy(next, patterns)
	ps.ptr.Store(&next)
}

// Find returns the pattern with the given id, or nil.
func (ps *PlaySet) Find(id int) *Pattern {
	for _, p := range ps.Patterns() {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

// PlayQueue plays every member pattern for the window ending at tick.
func (ps *PlaySet) PlayQueue(tick int64, songMode, resumeNoteOns bool) {
	for _, p := range ps.Patterns() {
		p.PlayQueue(tick, songMode, resumeNoteOns)
	}
}

// SetLastTicks repositions every member's played-through marker.
func (ps *PlaySet) SetLastTicks(tick int64) {
	for _, p := range ps.Patterns() {
		p.SetLastTick(tick)
	}
}

// Off releases every sounding note across the set.
func (ps *PlaySet) Off() {
	for _, p := range ps.Patterns() {
		p.Off()
	}
}
