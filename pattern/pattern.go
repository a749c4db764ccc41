package pattern

import (
	"sort"
	"sync"

	"go-perform/debug"
	"go-perform/midi"
)

// Sender is the output side a pattern emits into. Patterns never hold a
// reference back to the engine; they publish through this narrow seam.
type Sender interface {
	Send(ev midi.Event) error
}

// Pattern is one recorded sequence of MIDI events plus the triggers that
// place it on the song timeline. Event ticks are local, in [0, length).
//
// A Pattern is read by the output worker and written by the input worker
// and the UI; every method holds the pattern mutex for a short, bounded
// critical section.
type Pattern struct {
	mu       sync.Mutex
	id       int
	name     string
	channel  uint8
	inBus    int // recording source port, -1 = any
	length   int64
	events   []midi.Event
	triggers TriggerList

	armed     bool
	recording bool
	thru      bool

	queued      bool
	queuedTick  int64
	oneShot     bool
	oneShotTick int64

	lastTick  int64 // next transport tick not yet played
	offset    int64 // active trigger offset
	transpose int8

	notesOn map[uint8]bool
	out     Sender
}

// New creates an empty pattern of the given length in ticks.
func New(id int, channel uint8, length int64) *Pattern {
	p := &Pattern{
		id:      id,
		channel: channel,
		inBus:   -1,
		length:  length,
		notesOn: make(map[uint8]bool),
	}
	p.triggers.length = length
	return p
}

// SetSender wires the pattern's output seam.
func (p *Pattern) SetSender(s Sender) {
	p.mu.Lock()
	p.out = s
	p.mu.Unlock()
}

func (p *Pattern) ID() int { return p.id }

func (p *Pattern) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *Pattern) SetName(name string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

func (p *Pattern) Channel() uint8 { return p.channel }

// Length returns the pattern length in ticks.
func (p *Pattern) Length() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.length
}

// InBus returns the input port this pattern records from, -1 for any.
func (p *Pattern) InBus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inBus
}

func (p *Pattern) SetInBus(bus int) {
	p.mu.Lock()
	p.inBus = bus
	p.mu.Unlock()
}

func (p *Pattern) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed
}

// SetArmed arms or disarms live playback. Disarming releases any sounding
// notes so nothing hangs.
func (p *Pattern) SetArmed(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed && !on {
		p.offLocked()
	}
	p.armed = on
}

func (p *Pattern) ToggleArmed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed {
		p.offLocked()
	}
	p.armed = !p.armed
	return p.armed
}

func (p *Pattern) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

func (p *Pattern) SetRecording(on bool) {
	p.mu.Lock()
	p.recording = on
	p.mu.Unlock()
}

func (p *Pattern) SetThru(on bool) {
	p.mu.Lock()
	p.thru = on
	p.mu.Unlock()
}

// ToggleQueued schedules an arm/disarm flip at the next pattern boundary
// after the given transport tick.
func (p *Pattern) ToggleQueued(tick int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queued {
		p.queued = false
		return
	}
	p.queued = true
	p.queuedTick = nextBoundary(tick, p.length)
}

// ToggleOneShot schedules a single pass starting at the next boundary,
// after which the pattern mutes itself again.
func (p *Pattern) ToggleOneShot(tick int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oneShot = !p.oneShot
	if p.oneShot {
		p.oneShotTick = nextBoundary(tick, p.length)
	}
	return p.oneShot
}

// Queued reports whether an arm/disarm flip is pending.
func (p *Pattern) Queued() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}

// OneShot reports whether a single pass is pending.
func (p *Pattern) OneShot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oneShot
}

func nextBoundary(tick, length int64) int64 {
	if length <= 0 {
		return tick
	}
	return tick - mod(tick, length) + length
}

// EventCount returns the number of recorded events.
func (p *Pattern) EventCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Events returns a copy of the recorded events.
func (p *Pattern) Events() []midi.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]midi.Event, len(p.events))
	copy(out, p.events)
	return out
}

// SetLastTick repositions the played-through marker so the next Play call
// starts its window at the given transport tick. Used on start, seek, and
// loop wrap.
func (p *Pattern) SetLastTick(tick int64) {
	p.mu.Lock()
	p.lastTick = tick
	p.mu.Unlock()
}

// PlayQueue emits the pattern's due events for the window ending at tick.
// It first consumes any pending queued or one-shot transition, then plays.
// Calling it again for the same tick emits nothing: the window is empty.
func (p *Pattern) PlayQueue(tick int64, songMode, resumeNoteOns bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queued && tick >= p.queuedTick {
		if p.armed {
			p.emitWindow(p.lastTick, p.queuedTick-1)
			p.offLocked()
		}
		p.armed = !p.armed
		p.queued = false
		if p.lastTick < p.queuedTick {
			p.lastTick = p.queuedTick
		}
	}
	if p.oneShot && tick >= p.oneShotTick {
		p.oneShot = false
		p.armed = true
		p.queued = true
		p.queuedTick = p.oneShotTick + p.length // mute again after one pass
		if p.lastTick < p.oneShotTick {
			p.lastTick = p.oneShotTick
		}
	}
	p.playLocked(tick, songMode, resumeNoteOns)
}

// Play is PlayQueue without the queue handling; exposed for live use.
func (p *Pattern) Play(tick int64, songMode, resumeNoteOns bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playLocked(tick, songMode, resumeNoteOns)
}

func (p *Pattern) playLocked(tick int64, songMode, resumeNoteOns bool) {
	start := p.lastTick
	end := tick
	if end < start {
		return // window already played
	}

	if songMode {
		state, changeTick, offset, transpose := p.triggers.frame(end)
		if state && !p.armed {
			p.armed = true
			p.offset = offset
			p.transpose = transpose
			if changeTick > start {
				start = changeTick
			}
			if resumeNoteOns {
				p.resumeNoteOnsLocked(start)
			}
		} else if !state && p.armed {
			// trigger turns off inside this window: play out the tail
			if changeTick >= start {
				p.emitWindow(start, changeTick)
			}
			p.offLocked()
			p.armed = false
			p.lastTick = end + 1
			return
		} else if state {
			p.offset = offset
			p.transpose = transpose
		}
	}

	if p.armed {
		p.emitWindow(start, end)
	}
	p.lastTick = end + 1
}

// emitWindow sends every event whose unrolled position falls in
// [start, end]. The pattern repeats every length ticks, shifted by the
// active trigger offset; the fractional unroll uses floor division so
// negative phases behave.
func (p *Pattern) emitWindow(start, end int64) {
	if p.length <= 0 || len(p.events) == 0 || end < start {
		return
	}
	kLo := floorDiv(start-p.offset, p.length)
	kHi := floorDiv(end-p.offset, p.length)
	for k := kLo; k <= kHi; k++ {
		base := k*p.length + p.offset
		lo := start - base
		if lo < 0 {
			lo = 0
		}
		hi := end - base
		if hi > p.length-1 {
			hi = p.length - 1
		}
		if hi < lo {
			continue
		}
		first := sort.Search(len(p.events), func(i int) bool {
			return p.events[i].Tick >= lo
		})
		for i := first; i < len(p.events) && p.events[i].Tick <= hi; i++ {
			p.emit(p.events[i], base+p.events[i].Tick)
		}
	}
}

func (p *Pattern) emit(ev midi.Event, abs int64) {
	if p.out == nil {
		return // degraded: no port, stay silent
	}
	out := ev
	out.Tick = abs
	out.Status = ev.Kind() | p.channel&0x0F
	if p.transpose != 0 && (ev.Kind() == midi.StatusNoteOn || ev.Kind() == midi.StatusNoteOff) {
		key := int(ev.D0) + int(p.transpose)
		if key < 0 {
			key = 0
		}
		if key > 127 {
			key = 127
		}
		out.D0 = uint8(key)
	}
	if out.IsNoteOn() {
		p.notesOn[out.D0] = true
	} else if out.IsNoteOff() {
		delete(p.notesOn, out.D0)
	}
	if err := p.out.Send(out); err != nil {
		debug.Log("pattern", "send failed on pattern %d: %v", p.id, err)
	}
}

// resumeNoteOnsLocked re-sounds notes that are mid-note at the given
// transport tick, for triggers that start inside a note.
func (p *Pattern) resumeNoteOnsLocked(tick int64) {
	if p.length <= 0 {
		return
	}
	local := mod(tick-p.offset, p.length)
	sounding := make(map[uint8]uint8)
	for _, ev := range p.events {
		if ev.Tick >= local {
			break
		}
		if ev.IsNoteOn() {
			sounding[ev.D0] = ev.D1
		} else if ev.IsNoteOff() {
			delete(sounding, ev.D0)
		}
	}
	for key, vel := range sounding {
		p.emit(midi.NoteOn(p.channel, key, vel), tick)
	}
}

// Off releases every sounding note the pattern has emitted.
func (p *Pattern) Off() {
	p.mu.Lock()
	p.offLocked()
	p.mu.Unlock()
}

func (p *Pattern) offLocked() {
	if p.out == nil {
		p.notesOn = make(map[uint8]bool)
		return
	}
	for key := range p.notesOn {
		p.out.Send(midi.NoteOff(p.channel, key))
	}
	p.notesOn = make(map[uint8]bool)
}

// StreamEvent is the recording sink. The event's Tick is the transport
// tick the input worker stamped; it is folded into the pattern's local
// time. Returns false when the pattern is not recording.
func (p *Pattern) StreamEvent(ev midi.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.thru && p.out != nil {
		echo := ev
		echo.Status = ev.Kind() | p.channel&0x0F
		p.out.Send(echo)
	}
	if !p.recording || p.length <= 0 {
		return p.thru
	}
	ev.Tick = mod(ev.Tick, p.length)
	pos := sort.Search(len(p.events), func(i int) bool {
		return p.events[i].Tick > ev.Tick
	})
	p.events = append(p.events, midi.Event{})
	copy(p.events[pos+1:], p.events[pos:])
	p.events[pos] = ev
	return true
}

// AddEvent inserts an event at a local tick, used by tests and editing.
func (p *Pattern) AddEvent(ev midi.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.Tick = mod(ev.Tick, p.length)
	pos := sort.Search(len(p.events), func(i int) bool {
		return p.events[i].Tick > ev.Tick
	})
	p.events = append(p.events, midi.Event{})
	copy(p.events[pos+1:], p.events[pos:])
	p.events[pos] = ev
}

// TriggerState reports whether a trigger covers the given tick.
func (p *Pattern) TriggerState(tick int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.StateAt(tick)
}

// Trigger mutators. All take song-timeline ticks.

func (p *Pattern) AddTrigger(tick, length, offset int64) {
	p.mu.Lock()
	p.triggers.Add(tick, length, offset, 0)
	p.mu.Unlock()
}

func (p *Pattern) SplitTrigger(tick int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.Split(tick)
}

func (p *Pattern) GrowTrigger(tick, newEnd int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.Grow(tick, newEnd)
}

func (p *Pattern) MoveTriggers(tick, delta int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.Move(tick, delta)
}

func (p *Pattern) PasteTrigger(tick int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.Paste(tick)
}

func (p *Pattern) RemoveTrigger(tick int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.Remove(tick)
}

func (p *Pattern) ClearTriggers() {
	p.mu.Lock()
	p.triggers.Clear()
	p.mu.Unlock()
}

// Triggers returns a snapshot of the trigger list.
func (p *Pattern) Triggers() []Trigger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers.All()
}

// RestoreTriggers replaces the trigger list from a snapshot.
func (p *Pattern) RestoreTriggers(snapshot []Trigger) {
	p.mu.Lock()
	p.triggers.Restore(snapshot)
	p.mu.Unlock()
}

func mod(a, n int64) int64 {
	if n <= 0 {
		return a
	}
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func floorDiv(a, n int64) int64 {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
